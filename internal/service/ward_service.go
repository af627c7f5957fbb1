package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cleanward/internal/adapter"
	"github.com/cleanward/internal/events"
	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
	"github.com/cleanward/internal/wards"
)

// ReadingStore keeps the history of live readings
type ReadingStore interface {
	BatchInsert(ctx context.Context, readings []models.LiveReading) error
	History(ctx context.Context, wardID int, from, to time.Time, limit int) ([]models.LiveReading, error)
}

// Ward list orderings
const (
	SortByID    = "id"
	SortByScore = "score" // cleanest first
	SortByWorst = "worst" // most polluted first
	SortByName  = "name"
)

// WardFilter narrows and orders ListWards
type WardFilter struct {
	Zone string
	Sort string
}

// RefreshResult summarizes one overlay refresh
type RefreshResult struct {
	Generation uint64        `json:"generation"`
	Requested  int           `json:"requested"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed"`
	Stale      int           `json:"stale"`
	Duration   time.Duration `json:"duration"`
}

// WardService serves ward reference data merged with the live overlay
type WardService struct {
	overlay     *wards.Overlay
	provider    adapter.PollutionProvider
	readings    ReadingStore
	events      EventPublisher
	concurrency int
	logger      *logging.Logger
}

// NewWardService creates a new ward service. provider, readings and events
// may be nil; wards are then served from the static table only.
func NewWardService(overlay *wards.Overlay, provider adapter.PollutionProvider, readings ReadingStore, events EventPublisher, concurrency int) *WardService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &WardService{
		overlay:     overlay,
		provider:    provider,
		readings:    readings,
		events:      events,
		concurrency: concurrency,
		logger:      logging.WithField("component", "ward_service"),
	}
}

// Get returns one ward with its status and live overlay
func (s *WardService) Get(id int) (*models.WardView, error) {
	w, ok := wards.GetByID(id)
	if !ok {
		return nil, wardNotFound(id)
	}
	v := s.overlay.Merge(w)
	return &v, nil
}

// List returns wards, optionally limited to one zone
func (s *WardService) List(filter WardFilter) ([]models.WardView, error) {
	all := wards.All()
	views := make([]models.WardView, 0, len(all))
	for _, w := range all {
		if filter.Zone != "" && !strings.EqualFold(w.Zone, filter.Zone) {
			continue
		}
		views = append(views, s.overlay.Merge(w))
	}

	switch filter.Sort {
	case "", SortByID:
	case SortByScore:
		sort.SliceStable(views, func(i, j int) bool { return views[i].PollutionScore > views[j].PollutionScore })
	case SortByWorst:
		sort.SliceStable(views, func(i, j int) bool { return views[i].PollutionScore < views[j].PollutionScore })
	case SortByName:
		sort.SliceStable(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	default:
		return nil, types.NewServiceError(types.CodeInvalidInput,
			fmt.Sprintf("Unknown sort %q (use id, score, worst or name)", filter.Sort))
	}
	return views, nil
}

// Zones summarizes every zone in table order
func (s *WardService) Zones() []models.ZoneSummary {
	byZone := make(map[string]*models.ZoneSummary)
	totals := make(map[string]int)
	for _, w := range wards.All() {
		z, ok := byZone[w.Zone]
		if !ok {
			z = &models.ZoneSummary{Zone: w.Zone}
			byZone[w.Zone] = z
		}
		z.WardCount++
		totals[w.Zone] += w.PollutionScore
		if wards.IsCritical(w.PollutionScore) {
			z.CriticalCount++
		}
	}

	out := make([]models.ZoneSummary, 0, len(byZone))
	for _, name := range wards.Zones() {
		z, ok := byZone[name]
		if !ok {
			continue
		}
		z.AverageScore = roundedMean(totals[name], z.WardCount)
		out = append(out, *z)
	}
	return out
}

// Refresh fetches live readings for ids (all wards when empty) and merges
// them into the overlay. Per-ward failures are logged and counted; the
// static baseline is never touched. A result from an older refresh never
// replaces a newer one.
func (s *WardService) Refresh(ctx context.Context, ids []int) (*RefreshResult, error) {
	if s.provider == nil {
		return nil, types.NewServiceError(types.CodeBackendMisconfigured, "Live pollution data is not configured")
	}
	if len(ids) == 0 {
		for id := wards.MinID; id <= wards.MaxID; id++ {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		if !wards.ValidID(id) {
			return nil, wardNotFound(id)
		}
	}

	start := time.Now()
	gen := s.overlay.NextGeneration()
	logger := s.logger.WithField("generation", gen)

	var (
		failed, stale atomic.Int64
		mu            sync.Mutex
		fresh         []models.LiveReading
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			reading, err := s.provider.FetchWard(ctx, id)
			if err != nil {
				failed.Add(1)
				logger.WithError(err).WithField("ward_id", id).Warn("live reading fetch failed")
				return nil
			}
			if err := s.overlay.Apply(gen, reading); err != nil {
				if errors.Is(err, wards.ErrStaleGeneration) {
					stale.Add(1)
				} else {
					failed.Add(1)
					logger.WithError(err).WithField("ward_id", id).Warn("live reading rejected")
				}
				return nil
			}
			mu.Lock()
			fresh = append(fresh, reading)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := &RefreshResult{
		Generation: gen,
		Requested:  len(ids),
		Updated:    len(fresh),
		Failed:     int(failed.Load()),
		Stale:      int(stale.Load()),
		Duration:   time.Since(start),
	}

	if s.readings != nil && len(fresh) > 0 {
		if err := s.readings.BatchInsert(ctx, fresh); err != nil {
			logger.WithError(err).Warn("failed to record reading history")
		}
	}
	if s.events != nil && len(fresh) > 0 {
		s.events.Broadcast(events.TopicWards, result)
	}

	logger.WithFields(map[string]interface{}{
		"requested": result.Requested,
		"updated":   result.Updated,
		"failed":    result.Failed,
		"stale":     result.Stale,
		"duration":  result.Duration.String(),
	}).Info("live overlay refreshed")

	return result, nil
}

// History returns recorded readings of a ward in [from, to)
func (s *WardService) History(ctx context.Context, id int, from, to time.Time, limit int) ([]models.LiveReading, error) {
	if !wards.ValidID(id) {
		return nil, wardNotFound(id)
	}
	if s.readings == nil {
		return nil, types.NewServiceError(types.CodeHistoryUnavailable, "Reading history is not enabled")
	}
	if !from.Before(to) {
		return nil, types.NewServiceError(types.CodeInvalidInput, "The start of the range must be before its end")
	}

	readings, err := s.readings.History(ctx, id, from, to, limit)
	if err != nil {
		return nil, backendFailure(s.logger, "reading_history", err, types.CodeUnknown, msgUnexpected)
	}
	if readings == nil {
		readings = []models.LiveReading{}
	}
	return readings, nil
}

func wardNotFound(id int) *types.ServiceError {
	return types.NewServiceError(types.CodeWardNotFound, fmt.Sprintf("Ward %d not found", id))
}

func roundedMean(total, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}
