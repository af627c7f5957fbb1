package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

const profileColumns = `id, first_name, last_name, email, phone, age, sex, gender,
	ward_number, role, score, created_at, updated_at`

// ProfileRepository handles profile persistence
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	var sex, role string
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Age, &sex, &p.Gender,
		&p.WardNumber, &role, &p.Score, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Sex = types.Sex(sex)
	p.Role = types.Role(role)
	return &p, nil
}

// GetByID retrieves a profile by user ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// LookupRole returns the stored role of a profile. found is false when no
// profile row exists.
func (r *ProfileRepository) LookupRole(ctx context.Context, userID string) (types.Role, bool, error) {
	var role string
	err := r.db.Pool().QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.RoleNone, false, nil
		}
		return types.RoleNone, false, fmt.Errorf("failed to look up role: %w", err)
	}
	return types.Role(role), true, nil
}

// UpdateWard changes the ward of a profile
func (r *ProfileRepository) UpdateWard(ctx context.Context, userID string, ward int) (*models.UserProfile, error) {
	query := `
		UPDATE profiles SET ward_number = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.db.Pool().QueryRow(ctx, query, userID, ward, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update ward: %w", err)
	}
	return p, nil
}

// ListTopCitizens returns the highest scoring citizens with their
// competition rank (equal scores share a rank)
func (r *ProfileRepository) ListTopCitizens(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT rank, id, first_name, last_name, ward_number, score FROM (
			SELECT RANK() OVER (ORDER BY score DESC) AS rank,
				id, first_name, last_name, ward_number, score, created_at
			FROM profiles
			WHERE role = 'citizen'
		) ranked
		ORDER BY rank, created_at, id
		LIMIT $1
	`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top citizens: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

// CitizenRank returns one citizen's leaderboard row
func (r *ProfileRepository) CitizenRank(ctx context.Context, userID string) (*models.LeaderboardEntry, error) {
	query := `
		SELECT
			(SELECT COUNT(*) + 1 FROM profiles o WHERE o.role = 'citizen' AND o.score > p.score) AS rank,
			p.id, p.first_name, p.last_name, p.ward_number, p.score
		FROM profiles p
		WHERE p.id = $1 AND p.role = 'citizen'
	`

	e, err := scanLeaderboardEntry(r.db.Pool().QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get citizen rank: %w", err)
	}
	return &e, nil
}

func scanLeaderboardEntry(row pgx.Row) (models.LeaderboardEntry, error) {
	var e models.LeaderboardEntry
	var rank int64
	var first, last string
	if err := row.Scan(&rank, &e.UserID, &first, &last, &e.WardNumber, &e.Score); err != nil {
		return e, err
	}
	e.Rank = int(rank)
	e.Name = (&models.UserProfile{FirstName: first, LastName: last}).FullName()
	return e, nil
}

// CountActiveCitizens counts citizens with at least one ledger entry
func (r *ProfileRepository) CountActiveCitizens(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM profiles p
		WHERE p.role = 'citizen'
		  AND EXISTS (SELECT 1 FROM user_tasks t WHERE t.user_id = p.id)
	`
	var n int64
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active citizens: %w", err)
	}
	return int(n), nil
}

// ProbeCreateProfileFunction reports whether the create_user_profile
// procedure is installed
func (r *ProfileRepository) ProbeCreateProfileFunction(ctx context.Context) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = 'create_user_profile')`
	var exists bool
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to probe create_user_profile: %w", err)
	}
	return exists, nil
}
