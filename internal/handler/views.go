package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Amounts go out as fixed two-decimal strings so clients never see float
// rounding.

type priceView struct {
	Subtotal   string `json:"subtotal"`
	BookingFee string `json:"booking_fee"`
	Tax        string `json:"tax"`
	Discount   string `json:"discount"`
	Total      string `json:"total"`
	Currency   string `json:"currency"`
}

func newPriceView(p model.PriceBreakdown, currency string) priceView {
	return priceView{
		Subtotal:   money(p.Subtotal),
		BookingFee: money(p.BookingFee),
		Tax:        money(p.Tax),
		Discount:   money(p.Discount),
		Total:      money(p.Total),
		Currency:   currency,
	}
}

type promoView struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
}

func newPromoView(p *model.PromoDescriptor) *promoView {
	if p == nil {
		return nil
	}
	return &promoView{Code: p.Code, DiscountType: string(p.DiscountType), DiscountValue: p.DiscountValue.String()}
}

type orderView struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	MovieID          uint64     `json:"movie_id"`
	Showtime         string     `json:"showtime"`
	HallID           uint64     `json:"hall_id"`
	Seats            []int      `json:"seat_ids"`
	SeatLabels       []string   `json:"seat_labels"`
	Pricing          priceView  `json:"pricing"`
	Promo            *promoView `json:"promo,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	PayBefore        *time.Time `json:"pay_before,omitempty"`
	PaymentMethod    string     `json:"payment_method,omitempty"`
	TransactionID    string     `json:"transaction_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	BookingReference string     `json:"booking_reference,omitempty"`
	RefundAmount     string     `json:"refund_amount,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

func newOrderView(o *model.Order, holdTTL time.Duration, currency string) orderView {
	v := orderView{
		ID:               o.ID,
		Status:           string(o.Status),
		MovieID:          o.Session.MovieID,
		Showtime:         o.Session.Showtime,
		HallID:           o.Session.HallID,
		Seats:            o.Seats.Ints(),
		SeatLabels:       o.Seats.Labels(),
		Pricing:          newPriceView(o.Pricing, currency),
		Promo:            newPromoView(o.Promo),
		CreatedAt:        o.CreatedAt,
		PaymentMethod:    string(o.PaymentMethod),
		TransactionID:    o.TransactionID,
		PaidAt:           o.PaidAt,
		BookingReference: o.BookingReference,
		CancelReason:     string(o.CancelReason),
		CancelledAt:      o.CancelledAt,
	}
	if o.Status == model.OrderPending {
		deadline := o.CreatedAt.Add(holdTTL)
		v.PayBefore = &deadline
	}
	if o.Status == model.OrderCancelled && !o.RefundAmount.IsZero() {
		v.RefundAmount = money(o.RefundAmount)
	}
	return v
}

type seatView struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Type  string `json:"type"`
	Price string `json:"price"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
