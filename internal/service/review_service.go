package service

import (
	"context"
	"errors"

	"github.com/cleanward/internal/catalog"
	"github.com/cleanward/internal/events"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/storage"
	"github.com/cleanward/internal/types"
)

// LeaderboardCache caches the top-N ranking
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, size int) ([]models.LeaderboardEntry, bool, error)
	SetLeaderboard(ctx context.Context, size int, entries []models.LeaderboardEntry) error
	InvalidateLeaderboard(ctx context.Context) error
}

// ReviewService lets authorities approve or reject submitted proof
type ReviewService struct {
	ledger LedgerStore
	cache  LeaderboardCache
	events EventPublisher
	logger *logging.Logger
}

// NewReviewService creates a new review service. cache and events may be nil.
func NewReviewService(ledger LedgerStore, cache LeaderboardCache, events EventPublisher) *ReviewService {
	return &ReviewService{
		ledger: ledger,
		cache:  cache,
		events: events,
		logger: logging.WithField("component", "review_service"),
	}
}

// ListPending returns submitted entries, most recently submitted first
func (s *ReviewService) ListPending(ctx context.Context) ([]models.PendingSubmission, error) {
	pending, err := s.ledger.ListPending(ctx)
	if err != nil {
		return nil, backendFailure(s.logger, "list_pending", err, types.CodeUnknown, msgUnexpected)
	}
	for i := range pending {
		le := ledgerEntry(pending[i].Entry)
		pending[i].Task = le.Task
		pending[i].DisplayTitle = le.DisplayTitle
		pending[i].DefaultPoints = catalog.DefaultPoints(le.Task)
	}
	return pending, nil
}

// Approve verifies a submitted entry and credits points to its owner.
// points defaults to the task's default award and must not be negative.
func (s *ReviewService) Approve(ctx context.Context, entryID string, points *int, reviewerID string) (*models.ReviewResult, error) {
	if points != nil && *points < 0 {
		return nil, types.NewServiceError(types.CodeInvalidPoints, "Points must be zero or more")
	}

	entry, err := s.submittedEntry(ctx, entryID, types.CodeApproveFailed, msgApproveFailed)
	if err != nil {
		return nil, err
	}

	awarded := catalog.DefaultPoints(ledgerEntry(*entry).Task)
	if points != nil {
		awarded = *points
	}

	updated, score, err := s.ledger.Verify(ctx, entryID, reviewerID, awarded)
	if err != nil {
		return nil, s.reviewFailure(err, "approve", types.CodeApproveFailed, msgApproveFailed)
	}

	s.logger.WithFields(map[string]interface{}{
		"entry_id":  entryID,
		"user_id":   updated.UserID,
		"reviewer":  reviewerID,
		"awarded":   awarded,
		"new_score": score,
	}).Info("submission approved")

	s.afterReview(ctx, updated)
	return &models.ReviewResult{Entry: *updated, NewScore: score, Awarded: awarded, UserID: updated.UserID}, nil
}

// Reject closes a submitted entry without awarding points
func (s *ReviewService) Reject(ctx context.Context, entryID, reviewerID string) (*models.ReviewResult, error) {
	if _, err := s.submittedEntry(ctx, entryID, types.CodeRejectFailed, msgRejectFailed); err != nil {
		return nil, err
	}

	updated, err := s.ledger.Reject(ctx, entryID, reviewerID)
	if err != nil {
		return nil, s.reviewFailure(err, "reject", types.CodeRejectFailed, msgRejectFailed)
	}

	s.logger.WithFields(map[string]interface{}{
		"entry_id": entryID,
		"user_id":  updated.UserID,
		"reviewer": reviewerID,
	}).Info("submission rejected")

	s.afterReview(ctx, updated)
	return &models.ReviewResult{Entry: *updated, UserID: updated.UserID}, nil
}

func (s *ReviewService) submittedEntry(ctx context.Context, entryID, failCode, failMsg string) (*models.UserTask, error) {
	entry, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewServiceError(types.CodeEntryNotFound, msgEntryNotFound)
		}
		return nil, s.actionFailed(err, "review_lookup", failCode, failMsg)
	}
	if entry.Status != types.TaskStatusSubmitted {
		return nil, types.NewServiceError(types.CodeInvalidTransition, "Only submitted actions can be reviewed")
	}
	return entry, nil
}

func (s *ReviewService) reviewFailure(err error, op, failCode, failMsg string) *types.ServiceError {
	switch {
	case errors.Is(err, storage.ErrStatusConflict):
		return types.NewServiceError(types.CodeInvalidTransition, "Only submitted actions can be reviewed")
	case errors.Is(err, storage.ErrNotFound):
		return types.NewServiceError(types.CodeEntryNotFound, msgEntryNotFound)
	}
	return s.actionFailed(err, op, failCode, failMsg)
}

// actionFailed reports any backend failure of a review action with the
// action's own message, leaving the entry untouched
func (s *ReviewService) actionFailed(err error, op, failCode, failMsg string) *types.ServiceError {
	s.logger.WithError(err).WithField("operation", op).Error("review action failed")
	return types.NewServiceError(failCode, failMsg)
}

// afterReview drops the cached ranking and tells dashboards to refetch
func (s *ReviewService) afterReview(ctx context.Context, entry *models.UserTask) {
	if s.cache != nil {
		if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to invalidate leaderboard cache")
		}
	}
	if s.events != nil {
		s.events.Broadcast(events.TopicReviewQueue, map[string]string{"entryId": entry.ID})
		s.events.Broadcast(events.TopicLeaderboard, nil)
		s.events.SendToUser(entry.UserID, events.TopicLedger, map[string]string{
			"entryId": entry.ID,
			"status":  string(entry.Status),
		})
	}
}
