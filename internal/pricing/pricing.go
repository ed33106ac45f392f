// Package pricing turns a seat selection and an optional promotion into a
// price breakdown. The engine is pure: it never reads occupancy or checks
// whether a promotion is still valid.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Rates are the surcharges applied on top of seat prices.
type Rates struct {
	BookingFee decimal.Decimal // fraction of subtotal
	Tax        decimal.Decimal // fraction of subtotal + fee - discount
}

func DefaultRates() Rates {
	return Rates{
		BookingFee: decimal.RequireFromString("0.10"),
		Tax:        decimal.RequireFromString("0.10"),
	}
}

type Engine struct {
	rates Rates
}

func NewEngine(rates Rates) *Engine {
	return &Engine{rates: rates}
}

// Rates returns the configured surcharges.
func (e *Engine) Rates() Rates { return e.rates }

// Price computes the breakdown for seats. Every component is rounded to
// cents and Total is derived from the rounded components, so the identity
// Total = Subtotal + BookingFee + Tax - Discount holds on stored values.
// The discount is clamped to [0, Subtotal+BookingFee].
func (e *Engine) Price(seats model.SeatSet, promo *model.PromoDescriptor) model.PriceBreakdown {
	subtotal := decimal.Zero
	for _, id := range seats.IDs() {
		s, _ := model.SeatAt(id)
		subtotal = subtotal.Add(s.BasePrice)
	}
	subtotal = subtotal.Round(2)

	fee := subtotal.Mul(e.rates.BookingFee).Round(2)
	gross := subtotal.Add(fee)

	discount := clampDiscount(discountFor(subtotal, promo), gross)
	taxable := gross.Sub(discount)
	tax := taxable.Mul(e.rates.Tax).Round(2)

	return model.PriceBreakdown{
		Subtotal:   subtotal,
		BookingFee: fee,
		Tax:        tax,
		Discount:   discount,
		Total:      subtotal.Add(fee).Add(tax).Sub(discount),
	}
}

func discountFor(subtotal decimal.Decimal, promo *model.PromoDescriptor) decimal.Decimal {
	if promo == nil {
		return decimal.Zero
	}
	switch promo.DiscountType {
	case model.DiscountPercentage:
		return subtotal.Mul(promo.DiscountValue).Div(hundred).Round(2)
	case model.DiscountFixedAmount:
		return promo.DiscountValue.Round(2)
	default:
		return decimal.Zero
	}
}

func clampDiscount(d, ceiling decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(ceiling) {
		return ceiling
	}
	return d
}

// SameAmount compares two amounts at cent precision.
func SameAmount(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}
