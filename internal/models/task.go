package models

import (
	"time"

	"github.com/cleanward/internal/types"
)

// Task is a catalog entry a citizen can adopt as a goal
type Task struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Category    types.TaskCategory `json:"category"`
	Points      int                `json:"points"`
}

// UserTask is a ledger entry linking a profile to a task
type UserTask struct {
	ID             string           `json:"id" db:"id"`
	UserID         string           `json:"userId" db:"user_id"`
	TaskID         string           `json:"taskId" db:"task_id"`
	Status         types.TaskStatus `json:"status" db:"status"`
	SubmissionText *string          `json:"submissionText,omitempty" db:"submission_text"`
	ProofNote      *string          `json:"proofNote,omitempty" db:"proof_note"`
	ProofKey       *string          `json:"-" db:"proof_key"`
	ProofURL       *string          `json:"proofUrl,omitempty" db:"proof_url"`
	PointsRewarded *int             `json:"pointsRewarded,omitempty" db:"points_rewarded"`
	SubmittedAt    *time.Time       `json:"submittedAt,omitempty" db:"submitted_at"`
	VerifiedAt     *time.Time       `json:"verifiedAt,omitempty" db:"verified_at"`
	VerifiedBy     *string          `json:"verifiedBy,omitempty" db:"verified_by"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" db:"updated_at"`
}

// LedgerEntry is a UserTask with its catalog task and display title
type LedgerEntry struct {
	UserTask
	Task         Task   `json:"task"`
	DisplayTitle string `json:"displayTitle"`
}

// PendingSubmission is a submitted entry awaiting authority review
type PendingSubmission struct {
	Entry         UserTask       `json:"entry"`
	Task          Task           `json:"task"`
	DisplayTitle  string         `json:"displayTitle"`
	Citizen       CitizenSummary `json:"citizen"`
	DefaultPoints int            `json:"defaultPoints"`
}

// CitizenSummary is the slice of a profile shown to reviewers and on leaderboards
type CitizenSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	WardNumber int    `json:"wardNumber"`
	Score      int    `json:"score"`
}

// ReviewResult is returned by approve and reject
type ReviewResult struct {
	Entry    UserTask `json:"entry"`
	NewScore int      `json:"newScore"`
	Awarded  int      `json:"awarded"`
	UserID   string   `json:"userId"`
}
