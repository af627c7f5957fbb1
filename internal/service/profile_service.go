package service

import (
	"context"
	"errors"

	"github.com/cleanward/internal/events"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/storage"
	"github.com/cleanward/internal/types"
	"github.com/cleanward/internal/wards"
)

// MsgInvalidWard is shown when a ward change is out of range
const MsgInvalidWard = "Please enter a valid ward number between 1 and 250"

// ProfileService reads and updates the signed-in user's profile
type ProfileService struct {
	profiles ProfileStore
	cache    LeaderboardCache
	events   EventPublisher
	logger   *logging.Logger
}

// NewProfileService creates a new profile service. cache and events may be nil.
func NewProfileService(profiles ProfileStore, cache LeaderboardCache, events EventPublisher) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		cache:    cache,
		events:   events,
		logger:   logging.WithField("component", "profile_service"),
	}
}

// Get returns a profile
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewServiceError(types.CodeProfileNotFound, msgProfileMissing)
		}
		return nil, backendFailure(s.logger, "get_profile", err, types.CodeUnknown, msgUnexpected)
	}
	return p, nil
}

// ChangeWard moves the user to another ward
func (s *ProfileService) ChangeWard(ctx context.Context, userID string, ward int) (*models.UserProfile, error) {
	if !wards.ValidID(ward) {
		return nil, types.NewServiceError(types.CodeWardOutOfRange, MsgInvalidWard)
	}

	p, err := s.profiles.UpdateWard(ctx, userID, ward)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewServiceError(types.CodeProfileNotFound, msgProfileMissing)
		}
		return nil, backendFailure(s.logger, "change_ward", err, types.CodeUnknown, msgUnexpected)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"ward":    ward,
	}).Info("ward changed")

	// the leaderboard shows each citizen's ward
	if s.cache != nil {
		if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to invalidate leaderboard cache")
		}
	}
	if s.events != nil {
		s.events.SendToUser(userID, events.TopicProfile, map[string]int{"wardNumber": ward})
	}
	return p, nil
}
