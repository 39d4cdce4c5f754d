package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when the sweeper is configured without an interval.
const DefaultSweepInterval = 10 * time.Minute

// CacheSweeper periodically removes expired and invalid cache entries so the
// read path never has to.
type CacheSweeper interface {
	// Run starts the background sweep. It sweeps immediately, then on every
	// interval until ctx is cancelled or Stop is called. Calling Run on a
	// running sweeper is a no-op.
	Run(ctx context.Context)

	// Stop ends the sweep and waits for the goroutine to exit.
	Stop()

	// SweepOnce performs a single expired-then-invalid pass.
	SweepOnce(ctx context.Context) (expired, invalid int64, err error)
}

type cacheSweeper struct {
	cache    QueryCacheService
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewCacheSweeper creates a sweeper over cache.
func NewCacheSweeper(cache QueryCacheService, interval time.Duration, logger *zap.Logger) CacheSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &cacheSweeper{
		cache:    cache,
		interval: interval,
		logger:   logger.Named("cache-sweeper"),
	}
}

var _ CacheSweeper = (*cacheSweeper)(nil)

func (s *cacheSweeper) Run(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go func(done chan struct{}) {
		defer close(done)
		defer s.exited(done)

		s.logger.Info("Cache sweeper started", zap.Duration("interval", s.interval))

		// Sweep immediately on startup, then at each interval
		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Cache sweeper stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}(s.done)
}

func (s *cacheSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

// exited clears running when the goroutine ends on its own, unless a later
// Run has already replaced it.
func (s *cacheSweeper) exited(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done {
		s.running = false
	}
}

func (s *cacheSweeper) SweepOnce(ctx context.Context) (int64, int64, error) {
	expired, err := s.cache.CleanupExpired(ctx)
	if err != nil {
		return expired, 0, err
	}
	invalid, err := s.cache.CleanupInvalid(ctx)
	if err != nil {
		return expired, invalid, err
	}
	return expired, invalid, nil
}

func (s *cacheSweeper) sweep(ctx context.Context) {
	expired, invalid, err := s.SweepOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Cache sweep failed", zap.Error(err))
		return
	}
	if expired+invalid > 0 {
		s.logger.Info("Cache sweep completed",
			zap.Int64("expired_deleted", expired),
			zap.Int64("invalid_deleted", invalid))
	}
}
