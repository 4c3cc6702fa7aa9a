// Package worker provides the HTTP worker service for dealscope.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/calibervc/dealscope/internal/config"
	"github.com/calibervc/dealscope/internal/db/gorm"
	"github.com/calibervc/dealscope/internal/scoring"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxRequestBodySize limits incoming request bodies. Batch event
	// payloads from a deck analysis stay well under this.
	MaxRequestBodySize = 2 << 20 // 2 MB
)

// Service is the main worker service orchestrator.
type Service struct {
	// Version of the worker binary
	version string

	// Configuration
	config *config.Config

	// Database
	store        *gorm.Store
	subjectStore *gorm.SubjectStore
	eventStore   *gorm.EventStore
	alertStore   *gorm.AlertStore

	// Scoring engine
	engine *scoring.Engine

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Initialization state (for deferred init)
	ready     atomic.Bool
	initError error
	initMu    sync.RWMutex
}

// NewService creates a new worker service with deferred initialization.
// The service starts immediately with the health endpoint available,
// while database initialization happens in the background.
func NewService(version string) (*Service, error) {
	cfg := config.Get()

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:   version,
		config:    cfg,
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	// Setup middleware and routes (health endpoint works immediately)
	svc.setupMiddleware()
	svc.setupRoutes()

	// Start async initialization
	go svc.initializeAsync()

	return svc, nil
}

// initializeAsync performs heavy initialization in the background.
func (s *Service) initializeAsync() {
	log.Info().Msg("Starting async initialization...")

	if s.config.DBDSN == "" {
		if err := config.EnsureAll(); err != nil {
			s.setInitError(fmt.Errorf("ensure data dir: %w", err))
			return
		}
	}

	// Initialize database (this includes migrations - can be slow)
	store, err := gorm.NewStore(gorm.Config{
		DSN:      s.config.DBDSN,
		Path:     s.config.DBPath,
		MaxConns: s.config.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		s.setInitError(fmt.Errorf("init database: %w", err))
		return
	}

	subjectStore := gorm.NewSubjectStore(store)
	eventStore := gorm.NewEventStore(store)
	alertStore := gorm.NewAlertStore(store)
	engine := scoring.NewEngine(eventStore, subjectStore, alertStore, s.config.RedFlagTriggers, log.Logger)

	s.initMu.Lock()
	s.store = store
	s.subjectStore = subjectStore
	s.eventStore = eventStore
	s.alertStore = alertStore
	s.engine = engine
	s.initMu.Unlock()

	s.ready.Store(true)
	log.Info().Msg("Async initialization complete - service ready")
}

// setInitError records an initialization failure.
func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
	log.Error().Err(err).Msg("Worker initialization failed")
}

// GetInitError returns the initialization error, if any.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
	s.router.Use(SecurityHeaders)
	s.router.Use(MaxBodySize(MaxRequestBodySize))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Health check returns 200 immediately so clients can connect during init
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)

	// Version endpoint for stale worker detection
	s.router.Get("/api/version", s.handleVersion)

	// Readiness check - returns 200 only when fully initialized
	s.router.Get("/api/ready", s.handleReady)

	// Routes that require DB to be ready
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		// Subject routes
		r.Post("/api/subjects", s.handleCreateSubject)
		r.Get("/api/subjects", s.handleListSubjects)
		r.Get("/api/subjects/{subjectID}/score", s.handleGetScore)
		r.Post("/api/subjects/{subjectID}/base-score", s.handleSetBaseScore)
		r.Post("/api/subjects/{subjectID}/recalculate", s.handleRecalculate)

		// Event routes
		r.Post("/api/subjects/{subjectID}/events", s.handleAppendEvent)
		r.Get("/api/subjects/{subjectID}/events", s.handleGetEvents)
		r.Post("/api/events", s.handleAppendEventBatch)

		// Derived views
		r.Get("/api/subjects/{subjectID}/history", s.handleGetHistory)
		r.Get("/api/subjects/{subjectID}/alerts", s.handleGetAlerts)
	})
}

// requireReady is middleware that returns 503 if the service isn't ready.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.GetInitError(); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			http.Error(w, "service initializing", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the worker service on the given port; a port of 0 falls
// back to the configured worker port.
// The HTTP server starts immediately; database initialization happens async.
func (s *Service) Start(port int) error {
	if port <= 0 {
		port = config.GetWorkerPort()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Int("port", port).
		Msg("Worker HTTP server started (initialization in progress)")

	return nil
}

// Shutdown gracefully stops the worker service.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	s.initMu.RLock()
	store := s.store
	s.initMu.RUnlock()
	if store != nil {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Database close error")
		}
	}

	s.wg.Wait()

	log.Info().Msg("Worker service shutdown complete")
	return nil
}
