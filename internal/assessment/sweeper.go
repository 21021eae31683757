package assessment

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically concludes sessions whose stage deadline has passed,
// so a candidate who walks away still gets a verdict.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
	done     chan struct{}
}

// NewSweeper creates a sweeper. A non-positive interval defaults to one
// minute.
func NewSweeper(engine *Engine, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the sweeper in a goroutine until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// Done is closed once the sweeper has stopped.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("deadline sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("deadline sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.engine.ExpireDue(ctx)
	if err != nil {
		s.logger.Error("deadline sweep incomplete", zap.Int("expired", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions concluded", zap.Int("count", n))
	}
}
