package booking

import (
	"context"
	"slices"
	"sync"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// MemoryRepository keeps orders in process.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]model.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]model.Order)}
}

func (r *MemoryRepository) Create(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; exists {
		return errs.Newf("order %s already exists", o.ID)
	}
	r.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, errs.Mark(errs.Newf("order %s", id), errs.ErrNotFound)
	}
	out := cloneOrder(o)
	return &out, nil
}

func (r *MemoryRepository) ListByCustomer(_ context.Context, customerID uint64, limit int) ([]model.Order, error) {
	r.mu.RLock()
	var out []model.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, cloneOrder(o))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Transition(_ context.Context, from model.OrderStatus, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return errs.Mark(errs.Newf("order %s", o.ID), errs.ErrNotFound)
	}
	if cur.Status != from {
		return errs.Mark(errs.Newf("order %s is %s, expected %s", o.ID, cur.Status, from), errs.ErrInvalidTransition)
	}
	if ref := o.BookingReference; ref != "" {
		for id, other := range r.orders {
			if id != o.ID && other.BookingReference == ref {
				return errs.Mark(errs.Newf("booking reference %s already used", ref), errs.ErrDuplicate)
			}
		}
	}
	r.orders[o.ID] = cloneOrder(*o)
	return nil
}

func cloneOrder(o model.Order) model.Order {
	if o.Promo != nil {
		p := *o.Promo
		o.Promo = &p
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		o.CancelledAt = &t
	}
	return o
}
