// Package reservation owns seat occupancy. A Coordinator serializes every
// mutation of a session's seat map through a Store, which is either an
// in-process map guarded by per-session locks or a Redis primary driven by
// Lua scripts that check and claim a whole seat set in one step.
package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Store is the authoritative occupancy backend. Implementations must apply
// Reserve, Release, Finalize and ExpireDue atomically per session.
type Store interface {
	// Occupied returns held and confirmed seats of a session.
	Occupied(ctx context.Context, session model.SessionKey) (model.SeatSet, error)
	// Reserve claims every seat of h or none; on overlap it returns a
	// *ConflictError naming exactly the seats already taken.
	Reserve(ctx context.Context, h model.Hold) error
	// Release frees a held or confirmed claim. Unknown and expired ids
	// report released=false with no error.
	Release(ctx context.Context, holdID string) (model.Hold, bool, error)
	// Finalize makes a held claim permanent. It fails with ErrHoldExpired
	// when the deadline has passed and with ErrHoldNotFound for ids it has
	// never seen (or forgot after the tombstone retention).
	Finalize(ctx context.Context, holdID string, now time.Time) (model.Hold, error)
	// ExpireDue frees up to limit held claims whose deadline is at or
	// before now and returns them.
	ExpireDue(ctx context.Context, now time.Time, limit int) ([]model.Hold, error)
}

// ConflictError reports the requested seats that are already held or sold.
type ConflictError struct {
	Session model.SessionKey
	Seats   model.SeatSet
}

func (e *ConflictError) Error() string {
	return "seats already taken: " + e.Seats.String()
}

// NewConflict builds a conflict error marked with errs.ErrConflict.
func NewConflict(session model.SessionKey, seats model.SeatSet) error {
	return errs.Mark(&ConflictError{Session: session, Seats: seats}, errs.ErrConflict)
}

// ConflictSeats extracts the overlapping seats from err.
func ConflictSeats(err error) (model.SeatSet, bool) {
	var ce *ConflictError
	if errs.As(err, &ce) {
		return ce.Seats, true
	}
	return 0, false
}
