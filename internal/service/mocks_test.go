package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/storage"
	"github.com/cleanward/internal/types"
)

// Mock repositories for testing

// mockBackend is an in-memory stand-in for the credential, profile and
// ledger tables
type mockBackend struct {
	mu          sync.Mutex
	credentials map[string]*models.Credential // by email
	profiles    map[string]*models.UserProfile
	entries     map[string]*models.UserTask
	seq         int

	registerCalls int
	usedFunction  []bool

	registerErr error
	getEntryErr error
	verifyErr   error
	markErr     error
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		credentials: map[string]*models.Credential{},
		profiles:    map[string]*models.UserProfile{},
		entries:     map[string]*models.UserTask{},
	}
}

func (m *mockBackend) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockBackend) addProfile(p models.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.profiles[p.ID] = &cp
}

func (m *mockBackend) addEntry(e models.UserTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := e
	m.entries[e.ID] = &cp
}

func (m *mockBackend) score(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID].Score
}

func (m *mockBackend) entry(id string) models.UserTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.entries[id]
}

// CredentialStore

func (m *mockBackend) GetByEmail(_ context.Context, email string) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[storage.NormalizeEmail(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockBackend) Confirm(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credentials {
		if c.UserID == userID {
			now := time.Now()
			c.ConfirmedAt = &now
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockBackend) Register(_ context.Context, cred *models.Credential, profile *models.UserProfile, useFunction bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerCalls++
	m.usedFunction = append(m.usedFunction, useFunction)
	if m.registerErr != nil {
		return m.registerErr
	}
	email := storage.NormalizeEmail(cred.Email)
	if _, exists := m.credentials[email]; exists {
		return fmt.Errorf("failed to create credential: %w", &pgconn.PgError{Code: "23505"})
	}
	cred.UserID = m.nextID("user")
	cred.Email = email
	profile.ID = cred.UserID
	profile.Email = email
	c := *cred
	p := *profile
	m.credentials[email] = &c
	m.profiles[p.ID] = &p
	return nil
}

// ProfileStore

func (m *mockBackend) GetByID(_ context.Context, id string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockBackend) LookupRole(_ context.Context, userID string) (types.Role, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return types.RoleNone, false, nil
	}
	return p.Role, true, nil
}

func (m *mockBackend) UpdateWard(_ context.Context, userID string, ward int) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	p.WardNumber = ward
	cp := *p
	return &cp, nil
}

func (m *mockBackend) ranked() []models.LeaderboardEntry {
	var citizens []*models.UserProfile
	for _, p := range m.profiles {
		if p.Role == types.RoleCitizen {
			citizens = append(citizens, p)
		}
	}
	sort.Slice(citizens, func(i, j int) bool {
		if citizens[i].Score != citizens[j].Score {
			return citizens[i].Score > citizens[j].Score
		}
		return citizens[i].ID < citizens[j].ID
	})
	out := make([]models.LeaderboardEntry, 0, len(citizens))
	for i, p := range citizens {
		rank := i + 1
		if i > 0 && citizens[i-1].Score == p.Score {
			rank = out[i-1].Rank
		}
		out = append(out, models.LeaderboardEntry{
			Rank: rank, UserID: p.ID, Name: p.FullName(), WardNumber: p.WardNumber, Score: p.Score,
		})
	}
	return out
}

func (m *mockBackend) ListTopCitizens(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.ranked()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockBackend) CitizenRank(_ context.Context, userID string) (*models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.ranked() {
		if e.UserID == userID {
			return &e, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockBackend) CountActiveCitizens(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := map[string]bool{}
	for _, e := range m.entries {
		active[e.UserID] = true
	}
	return len(active), nil
}

// LedgerStore

func (m *mockBackend) Create(_ context.Context, entry *models.UserTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.nextID("entry")
	entry.Status = types.TaskStatusPending
	entry.CreatedAt = time.Now()
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

func (m *mockBackend) getEntry(id string) (*models.UserTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getEntryErr != nil {
		return nil, m.getEntryErr
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockBackend) ListByUser(_ context.Context, userID string) ([]models.UserTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserTask
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockBackend) ListPending(_ context.Context) ([]models.PendingSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PendingSubmission
	for _, e := range m.entries {
		if e.Status != types.TaskStatusSubmitted {
			continue
		}
		s := models.PendingSubmission{Entry: *e}
		if p, ok := m.profiles[e.UserID]; ok {
			s.Citizen = models.CitizenSummary{ID: p.ID, Name: p.FullName(), Email: p.Email, WardNumber: p.WardNumber, Score: p.Score}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entry.SubmittedAt.After(*out[j].Entry.SubmittedAt)
	})
	return out, nil
}

func (m *mockBackend) MarkSubmitted(_ context.Context, id, userID, proofKey, proofURL string, note *string) (*models.UserTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return nil, m.markErr
	}
	e, ok := m.entries[id]
	if !ok || e.UserID != userID || e.Status != types.TaskStatusPending {
		return nil, storage.ErrStatusConflict
	}
	now := time.Now()
	e.Status = types.TaskStatusSubmitted
	e.ProofKey = &proofKey
	e.ProofURL = &proofURL
	e.ProofNote = note
	e.SubmittedAt = &now
	cp := *e
	return &cp, nil
}

func (m *mockBackend) Verify(_ context.Context, id, reviewerID string, points int) (*models.UserTask, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verifyErr != nil {
		return nil, 0, m.verifyErr
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	if e.Status != types.TaskStatusSubmitted {
		return nil, 0, storage.ErrStatusConflict
	}
	now := time.Now()
	e.Status = types.TaskStatusVerified
	e.PointsRewarded = &points
	e.VerifiedAt = &now
	e.VerifiedBy = &reviewerID
	p := m.profiles[e.UserID]
	p.Score += points
	cp := *e
	return &cp, p.Score, nil
}

func (m *mockBackend) Reject(_ context.Context, id, reviewerID string) (*models.UserTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if e.Status != types.TaskStatusSubmitted {
		return nil, storage.ErrStatusConflict
	}
	now := time.Now()
	e.Status = types.TaskStatusRejected
	e.VerifiedAt = &now
	e.VerifiedBy = &reviewerID
	cp := *e
	return &cp, nil
}

// mockLedger routes GetByID to ledger entries; mockBackend's GetByID serves profiles
type mockLedger struct {
	*mockBackend
}

func (l mockLedger) GetByID(_ context.Context, id string) (*models.UserTask, error) {
	return l.getEntry(id)
}

type mockBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
	deletes int
	err     error
}

func newMockBlobs() *mockBlobs {
	return &mockBlobs{objects: map[string][]byte{}}
}

func (b *mockBlobs) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.err != nil {
		return "", b.err
	}
	b.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (b *mockBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	delete(b.objects, key)
	return nil
}

type publishedEvent struct {
	UserID string
	Topic  string
}

type mockEvents struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (e *mockEvents) Broadcast(topic string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, publishedEvent{Topic: topic})
}

func (e *mockEvents) SendToUser(userID, topic string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, publishedEvent{UserID: userID, Topic: topic})
}

func (e *mockEvents) topics() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Topic)
	}
	return out
}

type mockLeaderboardCache struct {
	mu            sync.Mutex
	entries       map[int][]models.LeaderboardEntry
	invalidations int
	gets          int
}

func newMockLeaderboardCache() *mockLeaderboardCache {
	return &mockLeaderboardCache{entries: map[int][]models.LeaderboardEntry{}}
}

func (c *mockLeaderboardCache) GetLeaderboard(_ context.Context, size int) ([]models.LeaderboardEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	e, ok := c.entries[size]
	return e, ok, nil
}

func (c *mockLeaderboardCache) SetLeaderboard(_ context.Context, size int, entries []models.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[size] = entries
	return nil
}

func (c *mockLeaderboardCache) InvalidateLeaderboard(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	c.entries = map[int][]models.LeaderboardEntry{}
	return nil
}

type mockRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (r *mockRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = map[string]time.Time{}
	}
	r.revoked[tokenID] = until
	return nil
}

func (r *mockRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[tokenID]
	return ok, nil
}

func serviceCode(err error) string {
	var se *types.ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
