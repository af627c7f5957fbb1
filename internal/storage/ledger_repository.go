package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

const ledgerColumns = `id, user_id, task_id, status, submission_text, proof_note, proof_key,
	proof_url, points_rewarded, submitted_at, verified_at, verified_by, created_at, updated_at`

// LedgerRepository handles user_tasks rows
type LedgerRepository struct {
	db *PostgresDB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *PostgresDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func scanUserTask(row pgx.Row) (*models.UserTask, error) {
	var t models.UserTask
	var status string
	err := row.Scan(
		&t.ID, &t.UserID, &t.TaskID, &status, &t.SubmissionText, &t.ProofNote, &t.ProofKey,
		&t.ProofURL, &t.PointsRewarded, &t.SubmittedAt, &t.VerifiedAt, &t.VerifiedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = types.TaskStatus(status)
	return &t, nil
}

// Create inserts a new pending entry
func (r *LedgerRepository) Create(ctx context.Context, entry *models.UserTask) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	entry.Status = types.TaskStatusPending
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query := `
		INSERT INTO user_tasks (id, user_id, task_id, status, submission_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool().Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.TaskID,
		string(entry.Status),
		entry.SubmissionText,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger entry
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*models.UserTask, error) {
	query := `SELECT ` + ledgerColumns + ` FROM user_tasks WHERE id = $1`

	t, err := scanUserTask(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return t, nil
}

// ListByUser returns a citizen's entries, newest first
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string) ([]models.UserTask, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM user_tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.UserTask
	for rows.Next() {
		t, err := scanUserTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger: %w", err)
	}
	return entries, nil
}

// ListPending returns submitted entries joined with their citizen, most
// recently submitted first. Task details are left to the caller.
func (r *LedgerRepository) ListPending(ctx context.Context) ([]models.PendingSubmission, error) {
	query := `
		SELECT t.id, t.user_id, t.task_id, t.status, t.submission_text, t.proof_note, t.proof_key,
			t.proof_url, t.points_rewarded, t.submitted_at, t.verified_at, t.verified_by,
			t.created_at, t.updated_at,
			p.first_name, p.last_name, p.email, p.ward_number, p.score
		FROM user_tasks t
		JOIN profiles p ON p.id = t.user_id
		WHERE t.status = 'submitted'
		ORDER BY t.submitted_at DESC NULLS LAST, t.id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingSubmission
	for rows.Next() {
		var s models.PendingSubmission
		var status, first, last string
		e := &s.Entry
		err := rows.Scan(
			&e.ID, &e.UserID, &e.TaskID, &status, &e.SubmissionText, &e.ProofNote, &e.ProofKey,
			&e.ProofURL, &e.PointsRewarded, &e.SubmittedAt, &e.VerifiedAt, &e.VerifiedBy,
			&e.CreatedAt, &e.UpdatedAt,
			&first, &last, &s.Citizen.Email, &s.Citizen.WardNumber, &s.Citizen.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending submission: %w", err)
		}
		e.Status = types.TaskStatus(status)
		s.Citizen.ID = e.UserID
		s.Citizen.Name = (&models.UserProfile{FirstName: first, LastName: last}).FullName()
		pending = append(pending, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending submissions: %w", err)
	}
	return pending, nil
}

// MarkSubmitted attaches proof to a pending entry owned by userID and moves it
// to submitted. It returns ErrStatusConflict when the entry is not pending.
func (r *LedgerRepository) MarkSubmitted(ctx context.Context, id, userID, proofKey, proofURL string, note *string) (*models.UserTask, error) {
	now := time.Now().UTC()
	query := `
		UPDATE user_tasks
		SET status = 'submitted', proof_key = $3, proof_url = $4, proof_note = $5,
			submitted_at = $6, updated_at = $6
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING ` + ledgerColumns

	t, err := scanUserTask(r.db.Pool().QueryRow(ctx, query, id, userID, proofKey, proofURL, note, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to submit proof: %w", err)
	}
	return t, nil
}

// Verify approves a submitted entry and credits points to its owner in a
// single transaction. It returns the updated entry and the owner's new score.
func (r *LedgerRepository) Verify(ctx context.Context, id, reviewerID string, points int) (*models.UserTask, int, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	t, err := r.review(ctx, tx, id, reviewerID, types.TaskStatusVerified, &points)
	if err != nil {
		return nil, 0, err
	}

	var score int
	err = tx.QueryRow(ctx, `
		UPDATE profiles SET score = score + $2, updated_at = $3
		WHERE id = $1
		RETURNING score
	`, t.UserID, points, time.Now().UTC()).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, fmt.Errorf("profile %s missing for ledger entry %s: %w", t.UserID, id, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to credit score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to commit approval: %w", err)
	}
	return t, score, nil
}

// Reject moves a submitted entry to rejected
func (r *LedgerRepository) Reject(ctx context.Context, id, reviewerID string) (*models.UserTask, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	t, err := r.review(ctx, tx, id, reviewerID, types.TaskStatusRejected, nil)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rejection: %w", err)
	}
	return t, nil
}

// review applies a submitted -> next transition inside tx
func (r *LedgerRepository) review(ctx context.Context, tx pgx.Tx, id, reviewerID string, next types.TaskStatus, points *int) (*models.UserTask, error) {
	now := time.Now().UTC()
	query := `
		UPDATE user_tasks
		SET status = $2, points_rewarded = $3, verified_at = $4, verified_by = $5, updated_at = $4
		WHERE id = $1 AND status = 'submitted'
		RETURNING ` + ledgerColumns

	t, err := scanUserTask(tx.QueryRow(ctx, query, id, string(next), points, now, reviewerID))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update ledger entry: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check ledger entry: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrStatusConflict
}
