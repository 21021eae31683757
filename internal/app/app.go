// Package app assembles a running gatekeep instance from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/api"
	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/classifier"
	"github.com/abhisek/gatekeep/internal/config"
	"github.com/abhisek/gatekeep/internal/llm"
	"github.com/abhisek/gatekeep/internal/lock"
	"github.com/abhisek/gatekeep/internal/notify"
	"github.com/abhisek/gatekeep/internal/questions"
	"github.com/abhisek/gatekeep/internal/resume"
	"github.com/abhisek/gatekeep/internal/sandbox"
	"github.com/abhisek/gatekeep/internal/scoring"
	"github.com/abhisek/gatekeep/internal/store"
	"github.com/abhisek/gatekeep/internal/store/postgres"
)

// App owns every long-lived dependency of the service.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Storage *Storage
	Engine  *assessment.Engine
	Sweeper *assessment.Sweeper
	Server  *api.Server

	ready   []api.Pinger
	closers []func() error
}

// Storage is the session repository plus the optional event log. Events is
// nil unless the sqlite driver is in use.
type Storage struct {
	Sessions assessment.SessionRepo
	Events   *store.EventRepo

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks the backing database.
func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the database.
func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStorage opens the configured session store. Read-only commands use
// it on its own without building the rest of the app.
func OpenStorage(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Storage, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return &Storage{Sessions: assessment.NewMemoryRepo()}, nil

	case config.StorePostgres:
		repo, err := postgres.Open(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return &Storage{Sessions: repo, ping: repo.Ping, close: repo.Close}, nil

	default:
		path := cfg.Path
		if path == "" {
			p, err := store.DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		if err := store.EnsureDir(path); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		logger.Debug("opened sqlite store", zap.String("path", path))
		return &Storage{
			Sessions: s.Sessions(),
			Events:   s.Events(),
			ping:     s.DB().PingContext,
			close:    s.Close,
		}, nil
	}
}

// New builds the engine and HTTP server described by cfg. The caller must
// call Close.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger
	var err error

	a.Storage, err = OpenStorage(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.Storage.Close)
	a.ready = append(a.ready, a.Storage)

	locker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}

	provider, err := a.newProvider(ctx)
	if err != nil {
		return err
	}

	generator, err := a.newGenerator(provider)
	if err != nil {
		return err
	}

	extractor := resume.Extractor(resume.NewTextExtractor(cfg.Resume.Skills))
	if cfg.Resume.Extractor == config.ExtractorLLM {
		if provider == nil {
			return errors.New("resume extractor \"llm\" needs an LLM provider")
		}
		extractor = resume.NewLLMExtractor(provider)
	}

	runner, err := a.newRunner()
	if err != nil {
		return err
	}

	opts := assessment.Options{
		Repo:            a.Storage.Sessions,
		Locker:          locker,
		Generator:       generator,
		Extractor:       extractor,
		Classifier:      classifier.NewService(provider, classifier.WithLogger(logger)),
		Runner:          runner,
		Reporter:        a.newReporter(),
		Thresholds:      cfg.Assessment.Thresholds,
		Policy:          cfg.Assessment.Policy,
		Durations:       cfg.Assessment.Durations,
		DefaultLanguage: cfg.Assessment.DefaultLanguage,
		NewID:           uuid.NewString,
		Logger:          logger,
	}
	if a.Storage.Events != nil {
		opts.Transitions = a.Storage.Events
	}

	a.Engine, err = assessment.New(opts)
	if err != nil {
		return err
	}
	a.Sweeper = assessment.NewSweeper(a.Engine, cfg.Assessment.SweepInterval, logger)
	a.Server = api.NewServer(cfg.Server, a.Engine,
		api.WithLogger(logger),
		api.WithReadiness(a.ready...))

	return nil
}

func (a *App) newLocker(ctx context.Context) (assessment.Locker, error) {
	if a.Config.Lock.Driver != config.LockRedis {
		return lock.NewLocal(), nil
	}
	r, err := lock.NewRedis(ctx, a.Config.Lock.Redis, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, r.Close)
	return r, nil
}

// newProvider returns nil when no LLM is configured. Only the sqlite store
// keeps request events; other stores log them.
func (a *App) newProvider(ctx context.Context) (llm.Provider, error) {
	var recorder llm.EventRecorder
	if a.Storage.Events != nil {
		recorder = a.Storage.Events
	}
	p, err := llm.NewProvider(ctx, a.Config.LLM, recorder, a.Logger)
	if errors.Is(err, llm.ErrNotConfigured) {
		a.Logger.Info("no LLM provider configured, using the question bank and keyword rules")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Logger.Info("LLM provider ready", zap.String("provider", a.Config.LLM.Provider), zap.String("model", p.ModelID()))
	return p, nil
}

func (a *App) newGenerator(provider llm.Provider) (questions.Generator, error) {
	qc := a.Config.Questions
	var bank *questions.Bank
	var err error
	if qc.BankPath != "" {
		bank, err = questions.LoadBankFile(qc.BankPath, qc.Bank)
	} else {
		bank, err = questions.DefaultBank(qc.Bank)
	}
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	a.Logger.Debug("question bank loaded", zap.String("version", bank.Version()))

	if provider == nil {
		return bank, nil
	}
	return questions.NewFallback(questions.NewLLMGenerator(provider, questions.DefaultConfig()), bank, a.Logger), nil
}

func (a *App) newRunner() (scoring.CodeRunner, error) {
	sc := a.Config.Sandbox
	if sc.Driver == config.SandboxProcess {
		a.Logger.Warn("running candidate code as local processes without isolation")
		return sandbox.NewProcess(sc.Docker.Timeout, a.Logger), nil
	}
	d, err := sandbox.NewDocker(sc.Docker, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, d.Close)
	a.ready = append(a.ready, d)
	return d, nil
}

func (a *App) newReporter() assessment.Reporter {
	senders := notify.Multi{notify.NewLogSender(a.Logger)}
	if url := a.Config.Notify.WebhookURL; url != "" {
		client := &http.Client{Timeout: a.Config.Notify.Timeout}
		senders = append(senders, notify.NewWebhookSender(url, notify.WithHTTPClient(client)))
	}
	return senders
}

// Serve runs the deadline sweeper and the HTTP server until ctx is
// cancelled, then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Sweeper.Start(ctx)

	srv := a.Server.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	a.Logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("http shutdown failed", zap.Error(err))
	}
	cancel()
	<-a.Sweeper.Done()
	return serveErr
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
