package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderCancelled},
}

// CanTransition reports whether the state machine allows s -> to.
// CANCELLED has no way out and CONFIRMED cannot be confirmed again.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	return s == OrderPending || s == OrderConfirmed || s == OrderCancelled
}

// CancelReason records why an order reached CANCELLED.
type CancelReason string

const (
	CancelByCustomer    CancelReason = "customer"
	CancelAbandoned     CancelReason = "abandoned"
	CancelHoldExpired   CancelReason = "hold_expired"
	CancelPaymentFailed CancelReason = "payment_failed"
)

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PayCard         PaymentMethod = "CARD"
	PayEWallet      PaymentMethod = "E_WALLET"
	PayCash         PaymentMethod = "CASH"
	PayBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCard, PayEWallet, PayCash, PayBankTransfer:
		return true
	}
	return false
}

// PriceBreakdown is the priced result for a seat set. Amounts are in euros
// with two decimals; Total always equals
// Subtotal + BookingFee + Tax - Discount.
type PriceBreakdown struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	BookingFee decimal.Decimal `json:"booking_fee"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
}

// Order is a customer's purchase of seats for one session. Orders are never
// deleted; cancelled orders stay for audit and history.
//
// Fields:
//
//	ID               – UUID primary key.
//	CustomerID       – authenticated customer.
//	Session          – screening.
//	Seats            – purchased seats.
//	HoldID           – reservation hold backing the seats.
//	Pricing          – breakdown priced at creation.
//	Promo            – promotion snapshot, nil when none was applied.
//	Status           – PENDING, CONFIRMED or CANCELLED.
//	CreatedAt        – creation timestamp, start of the cancellation window.
//	UpdatedAt        – last transition.
//	PaymentMethod    – set on confirmation.
//	TransactionID    – gateway reference, set on confirmation.
//	PaidAt           – capture time.
//	BookingReference – printable reference, BK-yyyyMMdd-NNNN.
//	RefundAmount     – amount refunded on cancellation.
//	CancelReason     – why the order was cancelled.
//	CancelledAt      – cancellation time.
type Order struct {
	ID               string           // orders.id
	CustomerID       uint64           // orders.customer_id
	Session          SessionKey       // orders.movie_id, orders.showtime, orders.hall_id
	Seats            SeatSet          // order_seats.seat_id
	HoldID           string           // orders.hold_id
	Pricing          PriceBreakdown   // orders.subtotal .. orders.total
	Promo            *PromoDescriptor // orders.promo_code, discount_type, discount_value
	Status           OrderStatus      // orders.status
	CreatedAt        time.Time        // orders.created_at
	UpdatedAt        time.Time        // orders.updated_at
	PaymentMethod    PaymentMethod    // orders.payment_method
	TransactionID    string           // orders.transaction_id
	PaidAt           *time.Time       // orders.paid_at (nullable)
	BookingReference string           // orders.booking_reference
	RefundAmount     decimal.Decimal  // orders.refund_amount
	CancelReason     CancelReason     // orders.cancel_reason
	CancelledAt      *time.Time       // orders.cancelled_at (nullable)
}
