package booking

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Repository persists orders. Orders are created once and afterwards only
// changed through Transition.
type Repository interface {
	Create(ctx context.Context, o *model.Order) error
	// Get fails with errs.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*model.Order, error)
	// ListByCustomer returns newest first.
	ListByCustomer(ctx context.Context, customerID uint64, limit int) ([]model.Order, error)
	// Transition stores o only if the stored status is still from; otherwise
	// it fails with errs.ErrInvalidTransition. This makes every transition
	// at most once across processes.
	Transition(ctx context.Context, from model.OrderStatus, o *model.Order) error
}

// SeatReserver is the part of the reservation coordinator orders use.
type SeatReserver interface {
	TryReserve(ctx context.Context, session model.SessionKey, seats model.SeatSet, holderID string, ttl time.Duration) (model.Hold, error)
	Release(ctx context.Context, holdID string) error
	Finalize(ctx context.Context, holdID string) (model.Hold, error)
}

//go:generate mockgen -destination=mocks/payment.go -package=mocks github.com/iliyamo/cinema-seat-booking/internal/payment Gateway
//go:generate mockgen -destination=mocks/promo.go -package=mocks github.com/iliyamo/cinema-seat-booking/internal/promo Validator
//go:generate mockgen -destination=mocks/queue.go -package=mocks github.com/iliyamo/cinema-seat-booking/internal/queue Publisher
