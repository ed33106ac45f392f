package reservation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// ExpiryHandler is told about every hold the sweeper frees.
type ExpiryHandler func(ctx context.Context, h model.Hold)

// SweeperConfig controls the background expiry job.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
	// SnapshotMaxAge drops display snapshots idle for longer than this.
	SnapshotMaxAge time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:       time.Second,
		BatchSize:      500,
		SnapshotMaxAge: 10 * time.Minute,
	}
}

// Sweeper releases lapsed holds off the request path.
type Sweeper struct {
	coord   *Coordinator
	cfg     SweeperConfig
	log     *slog.Logger
	handler ExpiryHandler

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

func NewSweeper(coord *Coordinator, cfg SweeperConfig, log *slog.Logger) *Sweeper {
	def := DefaultSweeperConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.SnapshotMaxAge <= 0 {
		cfg.SnapshotMaxAge = def.SnapshotMaxAge
	}
	return &Sweeper{coord: coord, cfg: cfg, log: logger.Component(log, "hold-sweeper")}
}

// OnExpire registers the callback for freed holds. Call before Start.
func (s *Sweeper) OnExpire(h ExpiryHandler) { s.handler = h }

// Start launches the ticker loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	done := s.done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		s.log.Info("hold sweeper started", "interval", s.cfg.Interval)
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	close(s.done)
	s.done = nil
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("hold sweeper stopped")
}

// Sweep runs one expiry pass and returns how many holds it freed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	expired, err := s.coord.ExpireDue(ctx, s.cfg.BatchSize)
	if err != nil {
		s.log.Warn("expire holds failed", "error", err)
	}
	for _, h := range expired {
		s.log.Info("hold expired", "hold_id", h.ID, "holder", h.HolderID, "session", h.Session.String(), "seats", h.Seats.String())
		if s.handler != nil {
			s.handler(ctx, h)
		}
	}
	s.coord.PruneSnapshots(s.cfg.SnapshotMaxAge)
	return len(expired)
}
