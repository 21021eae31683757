// Package api exposes the assessment engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/config"
	"github.com/abhisek/gatekeep/internal/proctor"
)

// Assessments is the engine surface the API drives.
type Assessments interface {
	SubmitIntake(ctx context.Context, req assessment.IntakeRequest) (*assessment.Session, error)
	Get(ctx context.Context, id string) (*assessment.Session, error)
	List(ctx context.Context, f assessment.ListFilter) ([]*assessment.Session, error)
	Materials(ctx context.Context, id string) (*assessment.StageMaterials, error)
	SaveDraft(ctx context.Context, id string, stage assessment.Stage, sub assessment.Submission) (*assessment.Session, error)
	SubmitStageAnswers(ctx context.Context, id string, stage assessment.Stage, sub assessment.Submission) (*assessment.StepResult, error)
	ReportViolation(ctx context.Context, id string, sig proctor.Signal) (*assessment.ProctorOutcome, error)
	Abort(ctx context.Context, id, reason string) (*assessment.Session, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	engine   Assessments
	ready    []Pinger
	logger   *zap.Logger
	validate *validator.Validate
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReadiness adds dependencies checked by /ready.
func WithReadiness(p ...Pinger) Option {
	return func(s *Server) { s.ready = append(s.ready, p...) }
}

// NewServer creates a new API server.
func NewServer(cfg config.ServerConfig, engine Assessments, opts ...Option) *Server {
	s := &Server{
		config:   cfg,
		engine:   engine,
		logger:   zap.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(s)
	}
	if s.config.MaxUploadBytes <= 0 {
		s.config.MaxUploadBytes = 5 << 20
	}
	s.setupRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

// HTTPServer wraps the router in an http.Server using the configured
// timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleIntake)
		r.Get("/", s.handleListSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Get("/materials", s.handleMaterials)
			r.Get("/verdict", s.handleVerdict)
			r.Put("/stages/{stage}/draft", s.handleSaveDraft)
			r.Post("/stages/{stage}/submit", s.handleSubmit)
			r.Post("/violations", s.handleViolation)
			r.Post("/abort", s.handleAbort)
			r.Get("/proctor", s.handleProctorWS)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using zap.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
