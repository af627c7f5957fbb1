// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cleanward/internal/logging"
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/service"
	"github.com/cleanward/internal/types"
	"github.com/cleanward/internal/worker"
)

// Service interfaces for dependency injection and testing

// AuthServiceInterface defines sign-in, sign-up and session operations
type AuthServiceInterface interface {
	SignIn(ctx context.Context, in service.SignInInput) (*service.SessionResult, error)
	SignUp(ctx context.Context, form service.SignUpForm, clientIP string) (*service.SessionResult, error)
	SignOut(ctx context.Context, token string) error
	Confirm(ctx context.Context, token string) error
}

// ProfileServiceInterface defines profile operations
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	ChangeWard(ctx context.Context, userID string, ward int) (*models.UserProfile, error)
}

// TaskServiceInterface defines green goal operations
type TaskServiceInterface interface {
	ListLedger(ctx context.Context, userID string) ([]models.LedgerEntry, error)
	ListAvailable(ctx context.Context, userID string) ([]models.Task, error)
	AddGoal(ctx context.Context, userID, taskID, customTitle string) (*models.LedgerEntry, error)
	SubmitProof(ctx context.Context, userID, entryID string, proof service.ProofUpload) (*models.LedgerEntry, error)
}

// ReviewServiceInterface defines authority review operations
type ReviewServiceInterface interface {
	ListPending(ctx context.Context) ([]models.PendingSubmission, error)
	Approve(ctx context.Context, entryID string, points *int, reviewerID string) (*models.ReviewResult, error)
	Reject(ctx context.Context, entryID, reviewerID string) (*models.ReviewResult, error)
}

// WardServiceInterface defines ward reference data operations
type WardServiceInterface interface {
	Get(id int) (*models.WardView, error)
	List(filter service.WardFilter) ([]models.WardView, error)
	Zones() []models.ZoneSummary
	Refresh(ctx context.Context, ids []int) (*service.RefreshResult, error)
	History(ctx context.Context, id int, from, to time.Time, limit int) ([]models.LiveReading, error)
}

// DashboardServiceInterface defines dashboard composition
type DashboardServiceInterface interface {
	Citizen(ctx context.Context, userID string) (*models.CitizenDashboard, error)
	Authority(ctx context.Context) (*models.AuthorityDashboard, error)
	Leaderboard(ctx context.Context, viewerID string) (*models.Leaderboard, error)
}

// WorkerStatusProvider reports the overlay worker state
type WorkerStatusProvider interface {
	GetStatus() *worker.OverlayWorkerStatus
}

// Dependencies are the collaborators of the server. In degraded mode only
// Gate, Wards, Events and Worker are required.
type Dependencies struct {
	Gate       SessionEvaluator
	Auth       AuthServiceInterface
	Profiles   ProfileServiceInterface
	Tasks      TaskServiceInterface
	Reviews    ReviewServiceInterface
	Wards      WardServiceInterface
	Dashboards DashboardServiceInterface
	// Events serves the websocket stream; nil disables /api/ws
	Events http.Handler
	Worker WorkerStatusProvider

	// Issues are the configuration problems found at startup
	Issues []string
	// Degraded is set when Postgres could not be reached
	Degraded bool
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	deps       Dependencies
	config     *ServerConfig
	startedAt  time.Time
	logger     *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
	TrustedProxies    []string
	RequestsPerMinute int
	Burst             int
	MaxUploadBytes    int64
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		deps:      deps,
		config:    config,
		startedAt: time.Now(),
		logger:    logging.WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerMinute, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(ClientIPMiddleware(NewProxyList(s.config.TrustedProxies)))
	s.router.Use(SessionMiddleware(s.deps.Gate))
	s.router.Use(LoggingMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter)) // keyed by session, so after it
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	// CORS wraps the router so preflight requests never reach route matching
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/ws", s.handleWS).Methods("GET")

	// Auth endpoints
	api.HandleFunc("/auth/signup", s.backend(s.handleSignUp)).Methods("POST")
	api.HandleFunc("/auth/signin", s.backend(s.handleSignIn)).Methods("POST")
	api.HandleFunc("/auth/signout", s.backend(s.handleSignOut)).Methods("POST")
	api.HandleFunc("/auth/confirm", s.backend(s.handleConfirm)).Methods("POST")
	api.HandleFunc("/session", s.handleSession).Methods("GET")

	// Profile endpoints
	api.HandleFunc("/profile", s.backend(requireAuth(s.handleGetProfile))).Methods("GET")
	api.HandleFunc("/profile/ward", s.backend(requireAuth(s.handleChangeWard))).Methods("PUT")

	// Task and ledger endpoints
	api.HandleFunc("/tasks/available", s.backend(requireAuth(s.handleAvailableTasks))).Methods("GET")
	api.HandleFunc("/goals", s.backend(requireAuth(s.handleListGoals))).Methods("GET")
	api.HandleFunc("/goals", s.backend(requireAuth(s.handleAddGoal))).Methods("POST")
	api.HandleFunc("/goals/{id}/proof", s.backend(requireAuth(s.handleSubmitProof))).Methods("POST")

	// Review endpoints
	api.HandleFunc("/review/pending", s.backend(requireRole(types.RoleAdmin, s.handlePendingReviews))).Methods("GET")
	api.HandleFunc("/review/{id}/approve", s.backend(requireRole(types.RoleAdmin, s.handleApprove))).Methods("POST")
	api.HandleFunc("/review/{id}/reject", s.backend(requireRole(types.RoleAdmin, s.handleReject))).Methods("POST")

	// Ward endpoints work in degraded mode
	api.HandleFunc("/wards", s.handleListWards).Methods("GET")
	api.HandleFunc("/wards/zones", s.handleZones).Methods("GET")
	api.HandleFunc("/wards/refresh", requireRole(types.RoleAdmin, s.handleRefreshWards)).Methods("POST")
	api.HandleFunc("/wards/{id:[0-9]+}", s.handleGetWard).Methods("GET")
	api.HandleFunc("/wards/{id:[0-9]+}/readings", s.handleWardReadings).Methods("GET")

	// Dashboard endpoints
	api.HandleFunc("/dashboard/citizen", s.backend(requireAuth(s.handleCitizenDashboard))).Methods("GET")
	api.HandleFunc("/dashboard/authority", s.backend(requireRole(types.RoleAdmin, s.handleAuthorityDashboard))).Methods("GET")
	api.HandleFunc("/leaderboard", s.backend(s.handleLeaderboard)).Methods("GET")
}

// backend rejects requests that need Postgres while degraded
func (s *Server) backend(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Degraded {
			respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
				"This feature is temporarily unavailable. Ward data is still available.", nil)
			return
		}
		next(w, r)
	}
}

// Handler returns the root handler including CORS
func (s *Server) Handler() http.Handler {
	return NewCORS(s.config.AllowedOrigins).Handler(s.router)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.deps.Degraded {
		status = "degraded"
	}
	body := map[string]interface{}{
		"status":   status,
		"service":  "cleanward",
		"degraded": s.deps.Degraded,
		"uptime":   time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.deps.Worker != nil {
		body["overlayWorker"] = s.deps.Worker.GetStatus()
	}
	respondJSON(w, http.StatusOK, body)
}

// handleStatus reports the configuration banner
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	issues := s.deps.Issues
	if issues == nil {
		issues = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"configured": len(issues) == 0 && !s.deps.Degraded,
		"degraded":   s.deps.Degraded,
		"issues":     issues,
	})
}

// handleWS upgrades to the dashboard event stream
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Live updates are not available", nil)
		return
	}
	s.deps.Events.ServeHTTP(w, r)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
