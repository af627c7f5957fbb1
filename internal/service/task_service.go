package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cleanward/internal/catalog"
	apperrors "github.com/cleanward/internal/errors"
	"github.com/cleanward/internal/events"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/storage"
	"github.com/cleanward/internal/types"
)

// LedgerStore persists user_tasks rows
type LedgerStore interface {
	Create(ctx context.Context, entry *models.UserTask) error
	GetByID(ctx context.Context, id string) (*models.UserTask, error)
	ListByUser(ctx context.Context, userID string) ([]models.UserTask, error)
	ListPending(ctx context.Context) ([]models.PendingSubmission, error)
	MarkSubmitted(ctx context.Context, id, userID, proofKey, proofURL string, note *string) (*models.UserTask, error)
	Verify(ctx context.Context, id, reviewerID string, points int) (*models.UserTask, int, error)
	Reject(ctx context.Context, id, reviewerID string) (*models.UserTask, error)
}

// BlobStorage stores proof images
type BlobStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher notifies connected dashboards
type EventPublisher interface {
	Broadcast(topic string, data interface{})
	SendToUser(userID, topic string, data interface{})
}

// TaskService manages a citizen's green goals
type TaskService struct {
	ledger    LedgerStore
	blobs     BlobStorage
	events    EventPublisher
	maxUpload int64
	logger    *logging.Logger
}

// NewTaskService creates a new task service. blobs may be nil, which
// disables proof uploads. events may be nil.
func NewTaskService(ledger LedgerStore, blobs BlobStorage, events EventPublisher, maxUpload int64) *TaskService {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return &TaskService{
		ledger:    ledger,
		blobs:     blobs,
		events:    events,
		maxUpload: maxUpload,
		logger:    logging.WithField("component", "task_service"),
	}
}

// ProofUpload is the image and note sent with a proof submission
type ProofUpload struct {
	Data     []byte
	Filename string
	Note     string
}

// ListLedger returns the citizen's entries with task details
func (s *TaskService) ListLedger(ctx context.Context, userID string) ([]models.LedgerEntry, error) {
	entries, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, backendFailure(s.logger, "list_ledger", err, types.CodeUnknown, msgUnexpected)
	}
	out := make([]models.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntry(e))
	}
	return out, nil
}

// ListAvailable returns the tasks the citizen can still adopt
func (s *TaskService) ListAvailable(ctx context.Context, userID string) ([]models.Task, error) {
	entries, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, backendFailure(s.logger, "list_available", err, types.CodeUnknown, msgUnexpected)
	}
	return catalog.ListAvailableTasks(entries), nil
}

// AddGoal adopts a catalog task as a pending ledger entry. The custom task
// needs a title, which becomes the entry's display title.
func (s *TaskService) AddGoal(ctx context.Context, userID, taskID, customTitle string) (*models.LedgerEntry, error) {
	if _, ok := catalog.Get(taskID); !ok {
		return nil, types.NewServiceError(types.CodeUnknownTask, "Please select a valid task")
	}

	entry := &models.UserTask{UserID: userID, TaskID: taskID}
	if catalog.IsCustom(taskID) {
		title := strings.TrimSpace(customTitle)
		if title == "" {
			return nil, types.NewServiceError(types.CodeCustomTitle, "Please describe your custom action")
		}
		entry.SubmissionText = &title
	} else {
		existing, err := s.ledger.ListByUser(ctx, userID)
		if err != nil {
			return nil, backendFailure(s.logger, "add_goal", err, types.CodeUnknown, msgUnexpected)
		}
		for _, e := range existing {
			if e.TaskID == taskID && e.Status.Active() {
				return nil, goalAlreadyActive()
			}
		}
	}

	if err := s.ledger.Create(ctx, entry); err != nil {
		if apperrors.IsCategory(err, apperrors.CategoryConflict) {
			return nil, goalAlreadyActive()
		}
		return nil, backendFailure(s.logger, "add_goal", err, types.CodeUnknown, msgUnexpected)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"task_id":  taskID,
		"entry_id": entry.ID,
	}).Info("goal added")

	out := ledgerEntry(*entry)
	return &out, nil
}

// SubmitProof uploads a proof image for a pending entry and moves it to
// submitted. The blob is removed again if the ledger update fails.
func (s *TaskService) SubmitProof(ctx context.Context, userID, entryID string, proof ProofUpload) (*models.LedgerEntry, error) {
	if len(proof.Data) == 0 {
		return nil, types.NewServiceError(types.CodeImageRequired, "Please select an image to upload")
	}
	if int64(len(proof.Data)) > s.maxUpload {
		return nil, types.NewServiceError(types.CodeInvalidImage,
			fmt.Sprintf("Image must be at most %d MB", s.maxUpload>>20))
	}
	contentType := http.DetectContentType(proof.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, types.NewServiceError(types.CodeInvalidImage, "Please upload an image file")
	}

	entry, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewServiceError(types.CodeEntryNotFound, msgEntryNotFound)
		}
		return nil, backendFailure(s.logger, "submit_proof", err, types.CodeUnknown, msgUnexpected)
	}
	if entry.UserID != userID {
		return nil, types.NewServiceError(types.CodeEntryNotFound, msgEntryNotFound)
	}
	if !entry.Status.CanTransitionTo(types.TaskStatusSubmitted) {
		return nil, types.NewServiceError(types.CodeInvalidTransition, "Proof can only be submitted for pending goals")
	}

	if s.blobs == nil {
		s.logger.WithField("entry_id", entryID).Warn("proof upload attempted with no bucket configured")
		return nil, types.NewServiceError(types.CodeUploadFailed, msgUploadFailed)
	}

	key := storage.ProofKey(userID, entryID, contentType, proof.Filename)
	url, err := s.blobs.Upload(ctx, key, contentType, proof.Data)
	if err != nil {
		s.logger.WithError(err).WithField("entry_id", entryID).Error("proof upload failed")
		return nil, types.NewServiceError(types.CodeUploadFailed, msgUploadFailed)
	}

	var note *string
	if n := strings.TrimSpace(proof.Note); n != "" {
		note = &n
	}

	updated, err := s.ledger.MarkSubmitted(ctx, entryID, userID, key, url, note)
	if err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.logger.WithError(derr).WithField("key", key).Warn("failed to remove orphaned proof")
		}
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, types.NewServiceError(types.CodeInvalidTransition, "Proof can only be submitted for pending goals")
		}
		return nil, backendFailure(s.logger, "submit_proof", err, types.CodeUnknown, msgUnexpected)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"entry_id": entryID,
		"bytes":    len(proof.Data),
	}).Info("proof submitted")

	if s.events != nil {
		s.events.Broadcast(events.TopicReviewQueue, map[string]string{"entryId": entryID})
	}

	out := ledgerEntry(*updated)
	return &out, nil
}

func ledgerEntry(e models.UserTask) models.LedgerEntry {
	task, ok := catalog.Get(e.TaskID)
	if !ok {
		task = models.Task{ID: e.TaskID, Title: e.TaskID}
	}
	return models.LedgerEntry{UserTask: e, Task: task, DisplayTitle: catalog.DisplayTitle(e)}
}

func goalAlreadyActive() *types.ServiceError {
	return types.NewServiceError(types.CodeGoalAlreadyActive, "This goal is already in your list")
}
