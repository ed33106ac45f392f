package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// PromoRepo reads promo codes and keeps their usage counters. Codes are
// stored upper-case; callers normalize before looking them up.
type PromoRepo struct {
	db *sql.DB
}

// NewPromoRepo returns a new PromoRepo bound to the given database.
func NewPromoRepo(db *sql.DB) *PromoRepo { return &PromoRepo{db: db} }

// FindByCode returns the promo code or an ErrNotFound error.
func (r *PromoRepo) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	const q = `SELECT id, code, discount_type, discount_value, description,
                      expires_at, usage_limit, used_count, active, created_at
               FROM promo_codes WHERE code = ?`
	var (
		p           model.PromoCode
		dtype       string
		description sql.NullString
		expiresAt   sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, code).Scan(
		&p.ID, &p.Code, &dtype, &p.DiscountValue, &description,
		&expiresAt, &p.UsageLimit, &p.UsedCount, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		return nil, dbError(err, "load promo code", "promo code", code)
	}
	p.DiscountType = model.DiscountType(dtype)
	p.Description = description.String
	p.ExpiresAt = timePtr(expiresAt)
	return &p, nil
}

// IncrementUsage consumes one use. The conditional update makes the limit
// check and the increment a single atomic step; false means the code is
// exhausted (or unknown).
func (r *PromoRepo) IncrementUsage(ctx context.Context, code string) (bool, error) {
	const q = `UPDATE promo_codes
               SET used_count = used_count + 1
               WHERE code = ? AND (usage_limit = 0 OR used_count < usage_limit)`
	res, err := r.db.ExecContext(ctx, q, code)
	if err != nil {
		return false, errs.Transient(err, "increment promo usage")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Transient(err, "increment promo usage")
	}
	return n == 1, nil
}

// DecrementUsage gives a use back. It never drops below zero.
func (r *PromoRepo) DecrementUsage(ctx context.Context, code string) error {
	const q = `UPDATE promo_codes SET used_count = used_count - 1 WHERE code = ? AND used_count > 0`
	if _, err := r.db.ExecContext(ctx, q, code); err != nil {
		return errs.Transient(err, "decrement promo usage")
	}
	return nil
}
