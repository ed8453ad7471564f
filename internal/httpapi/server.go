package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MimeLyc/livesub/internal/config"
	"github.com/MimeLyc/livesub/internal/prefetch"
	"github.com/MimeLyc/livesub/internal/service"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
	SetDefaultTargetLanguage(lang string) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	svc      *service.Service
	broker   *Broker
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier
	stats    func() prefetch.Stats

	allowedOrigins []string

	router chi.Router

	mu       sync.Mutex
	server   *http.Server
	shutdown bool
}

type Option func(*Server)

// WithBroker shares the broker that the service sends refresh events through.
func WithBroker(broker *Broker) Option {
	return func(s *Server) {
		s.broker = broker
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithPrefetchStats reports the prefetch queue counters on the health route.
func WithPrefetchStats(stats func() prefetch.Stats) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(svc *service.Service, opts ...Option) *Server {
	s := &Server{
		svc: svc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.broker == nil {
		s.broker = NewBroker()
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Broker() *Broker {
	return s.broker
}

// ListenAndServe serves until Shutdown. It returns http.ErrServerClosed when
// Shutdown already ran.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.broker.Close()

	s.mu.Lock()
	s.shutdown = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(corsOptions(s.allowedOrigins)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Put("/language/default", s.handleSetDefaultLanguage)

		r.Route("/tabs/{tabID}", func(r chi.Router) {
			r.Delete("/", s.handleTabClosed)

			r.Post("/subtitle", s.handleLoadSubtitle)
			r.Get("/subtitle/current", s.handleCurrentSubtitle)
			r.Get("/subtitle/options", s.handleSubtitleOptions)
			r.Get("/subtitle.vtt", s.handleExportTrack)

			r.Get("/language", s.handleGetTabLanguage)
			r.Put("/language", s.handleChangeTabLanguage)

			r.Post("/video", s.handleVideoFound)
			r.Delete("/video", s.handleVideoNotFound)

			r.Get("/events", s.handleEvents)
		})

		r.Get("/videos/{videoID}/selection", s.handleGetSelection)
		r.Put("/videos/{videoID}/selection", s.handleSaveSelection)
	})

	s.router = r
}
