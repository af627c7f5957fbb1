// Package adapter contains clients for external data providers.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cleanward/internal/circuitbreaker"
	cwerrors "github.com/cleanward/internal/errors"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

const providerName = "pollution"

// maxBodyBytes bounds a single provider response
const maxBodyBytes = 64 << 10

// ErrMalformedReading is returned when a provider response fails validation
var ErrMalformedReading = errors.New("malformed live reading")

// PollutionProvider fetches the live overlay for one ward
type PollutionProvider interface {
	FetchWard(ctx context.Context, wardID int) (models.LiveReading, error)
}

// PollutionClientConfig configures the HTTP client
type PollutionClientConfig struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	RequestsPerSecond   float64
	Burst               int
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

// PollutionClient calls the live pollution provider over HTTP. Calls are
// throttled by a token bucket and guarded by a circuit breaker.
type PollutionClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
}

// NewPollutionClient creates a client for the provider at cfg.BaseURL
func NewPollutionClient(cfg PollutionClientConfig) *PollutionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &PollutionClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:         providerName,
			MaxFailures:  cfg.BreakerMaxFailures,
			ResetTimeout: cfg.BreakerResetTimeout,
			IsFailure:    isProviderFailure,
		}),
	}
}

// wireReading is the provider's response body
type wireReading struct {
	WardID        *int     `json:"wardId"`
	AQI           *int     `json:"aqi"`
	PM25          *float64 `json:"pm25"`
	LastUpdated   string   `json:"lastUpdated"`
	TrafficStatus string   `json:"trafficStatus"`
}

// FetchWard fetches and validates the live reading for wardID
func (c *PollutionClient) FetchWard(ctx context.Context, wardID int) (models.LiveReading, error) {
	var reading models.LiveReading

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err := c.get(ctx, fmt.Sprintf("%s/wards/%d/live", c.baseURL, wardID))
		if err != nil {
			return err
		}

		reading, err = decodeReading(body, wardID)
		return err
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrProbeInFlight) {
		return models.LiveReading{}, cwerrors.NewProviderError(providerName, err)
	}
	return reading, err
}

// BreakerStats exposes the circuit breaker snapshot
func (c *PollutionClient) BreakerStats() circuitbreaker.Stats {
	return c.breaker.Stats()
}

func (c *PollutionClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cwerrors.NewProviderError(providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, cwerrors.NewProviderError(providerName, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, cwerrors.NewProviderRateLimitError(providerName)
	case resp.StatusCode == http.StatusNotFound:
		return nil, cwerrors.NewNotFoundError(types.CodeWardNotFound, "live reading", "")
	case resp.StatusCode != http.StatusOK:
		return nil, cwerrors.NewProviderError(providerName, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	return body, nil
}

func decodeReading(body []byte, wardID int) (models.LiveReading, error) {
	var w wireReading
	if err := json.Unmarshal(body, &w); err != nil {
		return models.LiveReading{}, fmt.Errorf("%w: %v", ErrMalformedReading, err)
	}

	switch {
	case w.WardID == nil || *w.WardID != wardID:
		return models.LiveReading{}, fmt.Errorf("%w: ward id mismatch", ErrMalformedReading)
	case w.AQI == nil || *w.AQI < 0 || *w.AQI > 999:
		return models.LiveReading{}, fmt.Errorf("%w: aqi out of range", ErrMalformedReading)
	case w.PM25 != nil && *w.PM25 < 0:
		return models.LiveReading{}, fmt.Errorf("%w: negative pm2.5", ErrMalformedReading)
	}

	updated, err := time.Parse(time.RFC3339, w.LastUpdated)
	if err != nil {
		return models.LiveReading{}, fmt.Errorf("%w: lastUpdated: %v", ErrMalformedReading, err)
	}

	traffic := types.TrafficStatus(w.TrafficStatus)
	switch traffic {
	case "", types.TrafficLow, types.TrafficModerate, types.TrafficHeavy:
	default:
		return models.LiveReading{}, fmt.Errorf("%w: unknown traffic status %q", ErrMalformedReading, w.TrafficStatus)
	}

	r := models.LiveReading{
		WardID:        wardID,
		AQI:           *w.AQI,
		TrafficStatus: traffic,
		LastUpdated:   updated.UTC(),
	}
	if w.PM25 != nil {
		r.PM25 = *w.PM25
	}
	return r, nil
}

// A ward the provider does not know and a malformed body are not signs of
// an unhealthy provider.
func isProviderFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedReading) {
		return false
	}
	var catErr *cwerrors.CategorizedError
	if errors.As(err, &catErr) && catErr.Category == cwerrors.CategoryNotFound {
		return false
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
