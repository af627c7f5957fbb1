package wards

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cleanward/internal/models"
)

var (
	// ErrUnknownWard is returned for overlay data that names no ward in the table
	ErrUnknownWard = errors.New("overlay references unknown ward")
	// ErrStaleGeneration is returned when a newer refresh already wrote the ward
	ErrStaleGeneration = errors.New("overlay result from an older refresh")
)

type overlayEntry struct {
	generation uint64
	reading    models.LiveReading
}

// Overlay stores live readings with a TTL. Every refresh takes a generation
// number and a write from an older generation never replaces a newer one.
type Overlay struct {
	mu         sync.Mutex
	store      *cache.Cache
	generation atomic.Uint64
}

// NewOverlay creates an overlay whose entries expire after ttl
func NewOverlay(ttl time.Duration) *Overlay {
	cleanup := ttl
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Overlay{
		store: cache.New(ttl, cleanup),
	}
}

// NextGeneration starts a new refresh
func (o *Overlay) NextGeneration() uint64 {
	return o.generation.Add(1)
}

// Apply stores a reading produced by refresh generation gen
func (o *Overlay) Apply(gen uint64, r models.LiveReading) error {
	if !ValidID(r.WardID) {
		return ErrUnknownWard
	}

	key := strconv.Itoa(r.WardID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if cur, ok := o.store.Get(key); ok {
		if cur.(overlayEntry).generation > gen {
			return ErrStaleGeneration
		}
	}
	o.store.SetDefault(key, overlayEntry{generation: gen, reading: r})
	return nil
}

// Get returns the live reading for a ward if one is present and unexpired
func (o *Overlay) Get(wardID int) (models.LiveReading, bool) {
	v, ok := o.store.Get(strconv.Itoa(wardID))
	if !ok {
		return models.LiveReading{}, false
	}
	return v.(overlayEntry).reading, true
}

// Merge returns the ward view with its live reading, if any
func (o *Overlay) Merge(w models.Ward) models.WardView {
	if r, ok := o.Get(w.ID); ok {
		return View(w, &r)
	}
	return View(w, nil)
}

// Len returns the number of stored readings, counting expired ones not yet evicted
func (o *Overlay) Len() int {
	return o.store.ItemCount()
}
