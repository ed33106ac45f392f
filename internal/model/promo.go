package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how DiscountValue is applied.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixedAmount
}

// PromoDescriptor is the resolved promotion snapshotted onto an order. Once
// an order is priced the descriptor never changes, even if the code is
// later withdrawn.
type PromoDescriptor struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

// PromoCode is a stored promotion.
//
// Fields:
//
//	ID            – primary key identifier.
//	Code          – upper-case code customers type in.
//	DiscountType  – PERCENTAGE or FIXED_AMOUNT.
//	DiscountValue – percent (0-100) or currency amount.
//	Description   – free text shown at checkout.
//	ExpiresAt     – optional expiry.
//	UsageLimit    – maximum redemptions; 0 means unlimited.
//	UsedCount     – redemptions so far.
//	Active        – manual kill switch.
//	CreatedAt     – creation timestamp.
type PromoCode struct {
	ID            uint64          // promo_codes.id
	Code          string          // promo_codes.code
	DiscountType  DiscountType    // promo_codes.discount_type
	DiscountValue decimal.Decimal // promo_codes.discount_value
	Description   string          // promo_codes.description
	ExpiresAt     *time.Time      // promo_codes.expires_at (nullable)
	UsageLimit    int             // promo_codes.usage_limit
	UsedCount     int             // promo_codes.used_count
	Active        bool            // promo_codes.active
	CreatedAt     time.Time       // promo_codes.created_at
}

// Rejection messages shown to customers.
const (
	PromoMsgRequired  = "Promo code is required"
	PromoMsgUnknown   = "Invalid promo code"
	PromoMsgInactive  = "This promo code is no longer active"
	PromoMsgExpired   = "This promo code has expired"
	PromoMsgExhausted = "This promo code has reached its usage limit"
)

// Check reports whether the code may be redeemed at now and, if not, why.
func (p PromoCode) Check(now time.Time) (bool, string) {
	if !p.Active {
		return false, PromoMsgInactive
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false, PromoMsgExpired
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return false, PromoMsgExhausted
	}
	return true, ""
}

// Descriptor snapshots the discount terms.
func (p PromoCode) Descriptor() PromoDescriptor {
	return PromoDescriptor{Code: p.Code, DiscountType: p.DiscountType, DiscountValue: p.DiscountValue}
}
