package storage

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

// migratedTestPostgres opens the development database with the schema applied
func migratedTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	db := openTestPostgres(t)
	if err := NewMigrator(testPostgresConfig().DSN(), "../../migrations/postgres").Up(); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
	}
	return db
}

func registerTestCitizen(t *testing.T, creds *CredentialRepository, useFunction bool) *models.UserProfile {
	t.Helper()
	profile := &models.UserProfile{
		FirstName:  "Test",
		LastName:   "Citizen",
		Phone:      "9876543210",
		Age:        30,
		Sex:        types.SexFemale,
		WardNumber: 17,
		Role:       types.RoleCitizen,
	}
	cred := &models.Credential{
		Email:        fmt.Sprintf("%s@example.org", uuid.New().String()),
		PasswordHash: "hash",
	}
	require.NoError(t, creds.Register(testContext(t), cred, profile, useFunction))
	return profile
}

func TestCredentialRepository_Register(t *testing.T) {
	db := migratedTestPostgres(t)
	ctx := testContext(t)
	creds := NewCredentialRepository(db)
	profiles := NewProfileRepository(db)

	hasFunction, err := profiles.ProbeCreateProfileFunction(ctx)
	require.NoError(t, err)
	assert.True(t, hasFunction)

	for _, useFunction := range []bool{true, false} {
		p := registerTestCitizen(t, creds, useFunction)

		got, err := profiles.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 17, got.WardNumber)
		assert.Equal(t, 0, got.Score)
		assert.Equal(t, types.RoleCitizen, got.Role)

		cred, err := creds.GetByEmail(ctx, p.Email)
		require.NoError(t, err)
		assert.False(t, cred.Confirmed())
		require.NoError(t, creds.Confirm(ctx, cred.UserID))
		cred, err = creds.GetByEmail(ctx, p.Email)
		require.NoError(t, err)
		assert.True(t, cred.Confirmed())
	}
}

func TestCredentialRepository_DuplicateEmail(t *testing.T) {
	db := migratedTestPostgres(t)
	creds := NewCredentialRepository(db)
	p := registerTestCitizen(t, creds, false)

	err := creds.Register(testContext(t),
		&models.Credential{Email: p.Email, PasswordHash: "x"},
		&models.UserProfile{FirstName: "A", LastName: "B", Phone: "1", Age: 20, Sex: types.SexMale, WardNumber: 1, Role: types.RoleCitizen},
		false,
	)
	require.Error(t, err)
}

func TestLedgerRepository_Lifecycle(t *testing.T) {
	db := migratedTestPostgres(t)
	ctx := testContext(t)
	creds := NewCredentialRepository(db)
	profiles := NewProfileRepository(db)
	ledger := NewLedgerRepository(db)

	citizen := registerTestCitizen(t, creds, false)
	reviewer := registerTestCitizen(t, creds, false)

	entry := &models.UserTask{UserID: citizen.ID, TaskID: "sapling-001"}
	require.NoError(t, ledger.Create(ctx, entry))
	assert.Equal(t, types.TaskStatusPending, entry.Status)

	// a second active entry for the same task violates the partial index
	require.Error(t, ledger.Create(ctx, &models.UserTask{UserID: citizen.ID, TaskID: "sapling-001"}))

	_, err := ledger.MarkSubmitted(ctx, entry.ID, reviewer.ID, "k", "u", nil)
	assert.ErrorIs(t, err, ErrStatusConflict, "only the owner can submit")

	note := "planted near the school"
	submitted, err := ledger.MarkSubmitted(ctx, entry.ID, citizen.ID, "proofs/k.jpg", "https://cdn/proofs/k.jpg", &note)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	pending, err := ledger.ListPending(ctx)
	require.NoError(t, err)
	var found bool
	for _, p := range pending {
		if p.Entry.ID == entry.ID {
			found = true
			assert.Equal(t, "Test Citizen", p.Citizen.Name)
		}
	}
	assert.True(t, found)

	verified, score, err := ledger.Verify(ctx, entry.ID, reviewer.ID, 75)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusVerified, verified.Status)
	assert.Equal(t, 75, score)

	_, _, err = ledger.Verify(ctx, entry.ID, reviewer.ID, 75)
	assert.ErrorIs(t, err, ErrStatusConflict)

	got, err := profiles.GetByID(ctx, citizen.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, got.Score, "score must be credited exactly once")

	rank, err := profiles.CitizenRank(ctx, citizen.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rank.Rank, 1)

	_, err = ledger.Reject(ctx, uuid.New().String(), reviewer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
