package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/service"
)

// OverlayRefresher refreshes the live ward overlay. ids == nil means all wards.
type OverlayRefresher interface {
	Refresh(ctx context.Context, ids []int) (*service.RefreshResult, error)
}

// OverlayWorker periodically refreshes the live pollution overlay
type OverlayWorker struct {
	refresher  OverlayRefresher
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool
	logger     *logging.Logger

	mu                  sync.RWMutex
	running             bool
	stopCh              chan struct{}
	doneCh              chan struct{}
	lastRun             time.Time
	lastResult          *service.RefreshResult
	lastErr             error
	runs                int
	consecutiveFailures int
}

// OverlayWorkerConfig holds configuration for the overlay worker
type OverlayWorkerConfig struct {
	Refresher OverlayRefresher
	Interval  time.Duration
	// Timeout bounds one refresh (default: the interval)
	Timeout    time.Duration
	RunOnStart bool
}

// NewOverlayWorker creates a new overlay worker
func NewOverlayWorker(cfg *OverlayWorkerConfig) (*OverlayWorker, error) {
	if cfg.Refresher == nil {
		return nil, fmt.Errorf("overlay refresher cannot be nil")
	}

	// Default interval: 10 minutes
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}

	return &OverlayWorker{
		refresher:  cfg.Refresher,
		interval:   interval,
		timeout:    timeout,
		runOnStart: cfg.RunOnStart,
		logger:     logging.WithField("component", "overlay_worker"),
	}, nil
}

// Start begins the refresh loop
func (w *OverlayWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("overlay worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.WithField("interval", w.interval.String()).Info("starting overlay worker")
	go w.loop(ctx, w.stopCh, w.doneCh)
	return nil
}

// Stop gracefully stops the worker, waiting for an in-flight refresh
func (w *OverlayWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("overlay worker is not running")
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.Info("overlay worker stopped")
	case <-ctx.Done():
		w.logger.Warn("overlay worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *OverlayWorker) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	if w.runOnStart {
		w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single refresh of all wards and records the outcome
func (w *OverlayWorker) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result, err := w.refresher.Refresh(runCtx, nil)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRun = time.Now()
	w.runs++
	w.lastErr = err
	if err != nil {
		w.consecutiveFailures++
		w.logger.WithError(err).WithField("consecutive_failures", w.consecutiveFailures).Warn("overlay refresh failed")
		return
	}
	w.lastResult = result
	// a refresh where every ward failed counts as a failure
	if result.Requested > 0 && result.Updated == 0 && result.Stale == 0 {
		w.consecutiveFailures++
	} else {
		w.consecutiveFailures = 0
	}
}

// OverlayWorkerStatus represents the state of the overlay worker
type OverlayWorkerStatus struct {
	Running             bool                   `json:"running"`
	Interval            string                 `json:"interval"`
	LastRun             *time.Time             `json:"lastRun,omitempty"`
	LastResult          *service.RefreshResult `json:"lastResult,omitempty"`
	LastError           string                 `json:"lastError,omitempty"`
	Runs                int                    `json:"runs"`
	ConsecutiveFailures int                    `json:"consecutiveFailures"`
}

// GetStatus returns current worker status
func (w *OverlayWorker) GetStatus() *OverlayWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := &OverlayWorkerStatus{
		Running:             w.running,
		Interval:            w.interval.String(),
		LastResult:          w.lastResult,
		Runs:                w.runs,
		ConsecutiveFailures: w.consecutiveFailures,
	}
	if !w.lastRun.IsZero() {
		t := w.lastRun
		status.LastRun = &t
	}
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}
	return status
}
