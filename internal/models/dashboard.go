package models

import "github.com/cleanward/internal/types"

// LeaderboardEntry is one ranked citizen
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	WardNumber int    `json:"wardNumber"`
	Score      int    `json:"score"`
	IsViewer   bool   `json:"isViewer"`
}

// Leaderboard is the top-N window plus the viewer's own row
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
	Viewer  *LeaderboardEntry  `json:"viewer,omitempty"`
}

// CitizenDashboard composes everything a citizen sees
type CitizenDashboard struct {
	Profile        UserProfile   `json:"profile"`
	Ward           *WardView     `json:"ward,omitempty"`
	Ledger         []LedgerEntry `json:"ledger"`
	AvailableTasks []Task        `json:"availableTasks"`
	Leaderboard    Leaderboard   `json:"leaderboard"`
}

// WardStatistics are the aggregate figures on the authority dashboard
type WardStatistics struct {
	TotalWards         int                           `json:"totalWards"`
	AverageScore       int                           `json:"averageScore"`
	CriticalCount      int                           `json:"criticalCount"`
	ImprovedCount      int                           `json:"improvedCount"`
	StatusDistribution map[types.PollutionStatus]int `json:"statusDistribution"`
}

// AuthorityDashboard composes everything an authority sees
type AuthorityDashboard struct {
	Statistics     WardStatistics      `json:"statistics"`
	Zones          []ZoneSummary       `json:"zones"`
	TopWards       []WardView          `json:"topWards"`
	BottomWards    []WardView          `json:"bottomWards"`
	ActiveCitizens int                 `json:"activeCitizens"`
	PendingQueue   []PendingSubmission `json:"pendingQueue"`
}
