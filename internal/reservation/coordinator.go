package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Options tunes a Coordinator.
type Options struct {
	HoldTTL         time.Duration // default hold lifetime
	SnapshotRefresh time.Duration // display snapshot staleness bound
}

func (o Options) withDefaults() Options {
	if o.HoldTTL <= 0 {
		o.HoldTTL = 10 * time.Minute
	}
	if o.SnapshotRefresh <= 0 {
		o.SnapshotRefresh = 5 * time.Second
	}
	return o
}

// Coordinator is the single entry point to seat occupancy.
type Coordinator struct {
	store   Store
	clock   clock.Clock
	log     *slog.Logger
	opts    Options
	display *SnapshotCache
}

func NewCoordinator(store Store, clk clock.Clock, log *slog.Logger, opts Options) *Coordinator {
	opts = opts.withDefaults()
	c := &Coordinator{
		store: store,
		clock: clk,
		log:   logger.Component(log, "reservation"),
		opts:  opts,
	}
	c.display = NewSnapshotCache(opts.SnapshotRefresh, clk, store.Occupied)
	return c
}

// HoldTTL is the lifetime applied when TryReserve gets ttl <= 0.
func (c *Coordinator) HoldTTL() time.Duration { return c.opts.HoldTTL }

// GetOccupied returns held and confirmed seats for display. The result may
// be up to one snapshot period old.
func (c *Coordinator) GetOccupied(ctx context.Context, session model.SessionKey) (model.SeatSet, error) {
	if err := session.Validate(); err != nil {
		return 0, err
	}
	seats, _, err := c.display.Get(ctx, session)
	return seats, err
}

// OccupiedNow reads occupancy straight from the store.
func (c *Coordinator) OccupiedNow(ctx context.Context, session model.SessionKey) (model.SeatSet, error) {
	if err := session.Validate(); err != nil {
		return 0, err
	}
	return c.store.Occupied(ctx, session)
}

// TryReserve claims all of seats for holderID or none of them. On overlap
// the error carries exactly the seats that were already taken.
func (c *Coordinator) TryReserve(ctx context.Context, session model.SessionKey, seats model.SeatSet, holderID string, ttl time.Duration) (model.Hold, error) {
	if err := session.Validate(); err != nil {
		return model.Hold{}, err
	}
	if seats.IsEmpty() {
		return model.Hold{}, errs.Validation("at least one seat is required")
	}
	if ttl <= 0 {
		ttl = c.opts.HoldTTL
	}
	now := c.clock.Now()
	h := model.Hold{
		ID:        uuid.NewString(),
		HolderID:  holderID,
		Session:   session,
		Seats:     seats,
		Status:    model.HoldHeld,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := c.store.Reserve(ctx, h); err != nil {
		if taken, ok := ConflictSeats(err); ok {
			c.log.Info("reserve conflict", "session", session.String(), "holder", holderID, "taken", taken.String())
		}
		return model.Hold{}, err
	}
	c.display.Invalidate(session)
	c.log.Debug("seats held", "session", session.String(), "hold_id", h.ID, "seats", seats.String(), "expires_at", h.ExpiresAt)
	return h, nil
}

// Release frees a held or confirmed claim. Unknown, expired and already
// released ids are a no-op.
func (c *Coordinator) Release(ctx context.Context, holdID string) error {
	if holdID == "" {
		return nil
	}
	h, released, err := c.store.Release(ctx, holdID)
	if err != nil {
		return err
	}
	if released {
		c.display.Invalidate(h.Session)
		c.log.Debug("hold released", "session", h.Session.String(), "hold_id", holdID, "seats", h.Seats.String())
	}
	return nil
}

// Finalize makes a held claim permanent.
func (c *Coordinator) Finalize(ctx context.Context, holdID string) (model.Hold, error) {
	h, err := c.store.Finalize(ctx, holdID, c.clock.Now())
	if err != nil {
		return model.Hold{}, err
	}
	c.display.Invalidate(h.Session)
	return h, nil
}

// ExpireDue frees lapsed holds; the Sweeper calls it on every tick.
func (c *Coordinator) ExpireDue(ctx context.Context, limit int) ([]model.Hold, error) {
	expired, err := c.store.ExpireDue(ctx, c.clock.Now(), limit)
	for _, h := range expired {
		c.display.Invalidate(h.Session)
	}
	return expired, err
}

// PruneSnapshots drops display entries unused for a while.
func (c *Coordinator) PruneSnapshots(maxAge time.Duration) int {
	return c.display.Prune(maxAge)
}
