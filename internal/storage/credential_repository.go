package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cleanward/internal/models"
)

// CredentialRepository handles credentials and the sign-up transaction
type CredentialRepository struct {
	db *PostgresDB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *PostgresDB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByEmail retrieves a credential by email address
func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := `
		SELECT user_id, email, password_hash, confirmed_at, created_at
		FROM credentials
		WHERE email = $1
	`

	var c models.Credential
	err := r.db.Pool().QueryRow(ctx, query, NormalizeEmail(email)).Scan(
		&c.UserID, &c.Email, &c.PasswordHash, &c.ConfirmedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &c, nil
}

// Confirm stamps confirmed_at on a credential. Confirming twice keeps the
// first timestamp.
func (r *CredentialRepository) Confirm(ctx context.Context, userID string) error {
	query := `
		UPDATE credentials SET confirmed_at = COALESCE(confirmed_at, $2)
		WHERE user_id = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to confirm credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Register creates the credential and its profile in one transaction. When
// useFunction is set the profile is written by create_user_profile, otherwise
// by a direct insert with the same columns.
func (r *CredentialRepository) Register(ctx context.Context, cred *models.Credential, profile *models.UserProfile, useFunction bool) error {
	if cred.UserID == "" {
		cred.UserID = uuid.New().String()
	}
	now := time.Now().UTC()
	cred.Email = NormalizeEmail(cred.Email)
	cred.CreatedAt = now
	profile.ID = cred.UserID
	profile.Email = cred.Email
	profile.CreatedAt = now
	profile.UpdatedAt = now

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO credentials (user_id, email, password_hash, confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, cred.UserID, cred.Email, cred.PasswordHash, cred.ConfirmedAt, cred.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	args := []interface{}{
		profile.ID, profile.FirstName, profile.LastName, profile.Email, profile.Phone,
		profile.Age, string(profile.Sex), profile.Gender, profile.WardNumber, string(profile.Role), now,
	}
	if useFunction {
		_, err = tx.Exec(ctx, `SELECT create_user_profile($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, args...)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO profiles (id, first_name, last_name, email, phone, age, sex, gender,
				ward_number, role, score, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $11)
		`, args...)
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sign-up: %w", err)
	}
	profile.Score = 0
	return nil
}
