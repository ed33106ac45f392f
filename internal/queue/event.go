// Package queue carries order lifecycle events to the message broker and
// consumes them for the booking log.
package queue

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Event types, also used as routing keys and Kafka message keys' prefix.
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is published on every order transition. It carries the
// persisted order record so notification and history consumers never need
// to query the primary database.
type OrderEvent struct {
	Type             string   `json:"type"`
	OrderID          string   `json:"order_id"`
	CustomerID       uint64   `json:"customer_id"`
	MovieID          uint64   `json:"movie_id"`
	Showtime         string   `json:"showtime"`
	HallID           uint64   `json:"hall_id"`
	SeatIDs          []int    `json:"seat_ids"`
	SeatLabels       []string `json:"seats"`
	Status           string   `json:"status"`
	Subtotal         string   `json:"subtotal"`
	BookingFee       string   `json:"booking_fee"`
	Tax              string   `json:"tax"`
	Discount         string   `json:"discount"`
	Total            string   `json:"total"`
	PromoCode        string   `json:"promo_code,omitempty"`
	PaymentMethod    string   `json:"payment_method,omitempty"`
	TransactionID    string   `json:"transaction_id,omitempty"`
	BookingReference string   `json:"booking_reference,omitempty"`
	RefundAmount     string   `json:"refund_amount,omitempty"`
	CancelReason     string   `json:"cancel_reason,omitempty"`
	CreatedAt        string   `json:"created_at"`
	OccurredAt       string   `json:"occurred_at"`
}

// NewOrderEvent snapshots o for publication.
func NewOrderEvent(eventType string, o *model.Order, at time.Time) OrderEvent {
	ev := OrderEvent{
		Type:             eventType,
		OrderID:          o.ID,
		CustomerID:       o.CustomerID,
		MovieID:          o.Session.MovieID,
		Showtime:         o.Session.Showtime,
		HallID:           o.Session.HallID,
		SeatIDs:          o.Seats.Ints(),
		SeatLabels:       o.Seats.Labels(),
		Status:           string(o.Status),
		Subtotal:         o.Pricing.Subtotal.StringFixed(2),
		BookingFee:       o.Pricing.BookingFee.StringFixed(2),
		Tax:              o.Pricing.Tax.StringFixed(2),
		Discount:         o.Pricing.Discount.StringFixed(2),
		Total:            o.Pricing.Total.StringFixed(2),
		PaymentMethod:    string(o.PaymentMethod),
		TransactionID:    o.TransactionID,
		BookingReference: o.BookingReference,
		CancelReason:     string(o.CancelReason),
		CreatedAt:        o.CreatedAt.UTC().Format(time.RFC3339),
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
	if o.Promo != nil {
		ev.PromoCode = o.Promo.Code
	}
	if o.Status == model.OrderCancelled {
		ev.RefundAmount = o.RefundAmount.StringFixed(2)
	}
	return ev
}

// Publisher delivers events to a broker. Publishing is best effort: callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
	Close() error
}

// NopPublisher drops every event. Used when EVENT_SINK=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                              { return nil }
