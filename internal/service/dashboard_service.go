package service

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cleanward/internal/catalog"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/storage"
	"github.com/cleanward/internal/types"
	"github.com/cleanward/internal/wards"
)

// DashboardService composes the citizen and authority dashboards
type DashboardService struct {
	profiles        ProfileStore
	cache           LeaderboardCache
	tasks           *TaskService
	reviews         *ReviewService
	wardSvc         *WardService
	leaderboardSize int
	rankingSize     int
	logger          *logging.Logger
}

// NewDashboardService creates a new dashboard service. cache may be nil.
func NewDashboardService(
	profiles ProfileStore,
	cache LeaderboardCache,
	tasks *TaskService,
	reviews *ReviewService,
	wardSvc *WardService,
	leaderboardSize, rankingSize int,
) *DashboardService {
	if leaderboardSize <= 0 {
		leaderboardSize = 10
	}
	if rankingSize <= 0 {
		rankingSize = 5
	}
	return &DashboardService{
		profiles:        profiles,
		cache:           cache,
		tasks:           tasks,
		reviews:         reviews,
		wardSvc:         wardSvc,
		leaderboardSize: leaderboardSize,
		rankingSize:     rankingSize,
		logger:          logging.WithField("component", "dashboard_service"),
	}
}

// Leaderboard returns the top citizens. When viewerID is set the viewer's
// own row is always returned in Viewer, with its real rank, even when it
// falls outside the top window.
func (s *DashboardService) Leaderboard(ctx context.Context, viewerID string) (*models.Leaderboard, error) {
	top, err := s.topCitizens(ctx)
	if err != nil {
		return nil, err
	}

	board := &models.Leaderboard{Entries: make([]models.LeaderboardEntry, len(top))}
	copy(board.Entries, top)
	if viewerID == "" {
		return board, nil
	}

	for i := range board.Entries {
		if board.Entries[i].UserID == viewerID {
			board.Entries[i].IsViewer = true
			row := board.Entries[i]
			board.Viewer = &row
			return board, nil
		}
	}

	row, err := s.profiles.CitizenRank(ctx, viewerID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return board, nil
	case err != nil:
		return nil, backendFailure(s.logger, "citizen_rank", err, types.CodeUnknown, msgUnexpected)
	}
	row.IsViewer = true
	board.Viewer = row
	return board, nil
}

func (s *DashboardService) topCitizens(ctx context.Context) ([]models.LeaderboardEntry, error) {
	if s.cache != nil {
		entries, found, err := s.cache.GetLeaderboard(ctx, s.leaderboardSize)
		if err != nil {
			s.logger.WithError(err).Warn("leaderboard cache read failed")
		} else if found {
			return entries, nil
		}
	}

	entries, err := s.profiles.ListTopCitizens(ctx, s.leaderboardSize)
	if err != nil {
		return nil, backendFailure(s.logger, "list_top_citizens", err, types.CodeUnknown, msgUnexpected)
	}

	if s.cache != nil {
		if err := s.cache.SetLeaderboard(ctx, s.leaderboardSize, entries); err != nil {
			s.logger.WithError(err).Warn("leaderboard cache write failed")
		}
	}
	return entries, nil
}

// Citizen composes the citizen dashboard
func (s *DashboardService) Citizen(ctx context.Context, userID string) (*models.CitizenDashboard, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewServiceError(types.CodeProfileNotFound, msgProfileMissing)
		}
		return nil, backendFailure(s.logger, "citizen_dashboard", err, types.CodeUnknown, msgUnexpected)
	}

	dash := &models.CitizenDashboard{Profile: *profile}
	if v, err := s.wardSvc.Get(profile.WardNumber); err == nil {
		dash.Ward = v
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ledger, err := s.tasks.ListLedger(gctx, userID)
		if err != nil {
			return err
		}
		dash.Ledger = ledger
		entries := make([]models.UserTask, len(ledger))
		for i, e := range ledger {
			entries[i] = e.UserTask
		}
		dash.AvailableTasks = catalog.ListAvailableTasks(entries)
		return nil
	})
	g.Go(func() error {
		board, err := s.Leaderboard(gctx, userID)
		if err != nil {
			return err
		}
		dash.Leaderboard = *board
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dash, nil
}

// Authority composes the authority dashboard
func (s *DashboardService) Authority(ctx context.Context) (*models.AuthorityDashboard, error) {
	views, err := s.wardSvc.List(WardFilter{})
	if err != nil {
		return nil, err
	}

	dash := &models.AuthorityDashboard{
		Statistics: WardStatistics(views),
		Zones:      s.wardSvc.Zones(),
	}
	dash.TopWards, dash.BottomWards = rankWards(views, s.rankingSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.profiles.CountActiveCitizens(gctx)
		if err != nil {
			return backendFailure(s.logger, "count_active_citizens", err, types.CodeUnknown, msgUnexpected)
		}
		dash.ActiveCitizens = n
		return nil
	})
	g.Go(func() error {
		pending, err := s.reviews.ListPending(gctx)
		if err != nil {
			return err
		}
		dash.PendingQueue = pending
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if dash.PendingQueue == nil {
		dash.PendingQueue = []models.PendingSubmission{}
	}
	return dash, nil
}

// WardStatistics aggregates ward views. Improved wards are those whose
// 30-day trend is negative.
func WardStatistics(views []models.WardView) models.WardStatistics {
	stats := models.WardStatistics{
		TotalWards: len(views),
		StatusDistribution: map[types.PollutionStatus]int{
			types.StatusGood:      0,
			types.StatusModerate:  0,
			types.StatusUnhealthy: 0,
			types.StatusSevere:    0,
			types.StatusHazardous: 0,
		},
	}
	total := 0
	for _, v := range views {
		total += v.PollutionScore
		if wards.IsCritical(v.PollutionScore) {
			stats.CriticalCount++
		}
		if v.Trend30d < 0 {
			stats.ImprovedCount++
		}
		stats.StatusDistribution[v.Status]++
	}
	stats.AverageScore = roundedMean(total, len(views))
	return stats
}

// rankWards returns the n cleanest and n most polluted wards. Ties keep
// ward id order.
func rankWards(views []models.WardView, n int) (top, bottom []models.WardView) {
	sorted := make([]models.WardView, len(views))
	copy(sorted, views)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PollutionScore != sorted[j].PollutionScore {
			return sorted[i].PollutionScore > sorted[j].PollutionScore
		}
		return sorted[i].ID < sorted[j].ID
	})
	if n > len(sorted) {
		n = len(sorted)
	}

	top = append([]models.WardView(nil), sorted[:n]...)
	bottom = make([]models.WardView, 0, n)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		bottom = append(bottom, sorted[i])
	}
	return top, bottom
}
