// Package promo resolves promotion codes into discount terms. The booking
// core only sees the Validator capability and its Valid/Invalid result.
package promo

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Result is either Valid with the resolved terms or Invalid with a reason.
type Result struct {
	Valid   bool
	Promo   model.PromoDescriptor
	Message string
}

func Valid(d model.PromoDescriptor) Result { return Result{Valid: true, Promo: d} }

func Invalid(msg string) Result { return Result{Message: msg} }

// Validator resolves a code. A returned error means the collaborator could
// not answer; an unusable code is an Invalid result, not an error.
type Validator interface {
	Validate(ctx context.Context, code string) (Result, error)
}

// Redeemer records that an order used a code.
type Redeemer interface {
	// Redeem consumes one use. It fails with ErrValidation when the usage
	// limit was reached in the meantime.
	Redeem(ctx context.Context, code string) error
	// Unredeem gives back a use taken by an order that was never stored.
	Unredeem(ctx context.Context, code string) error
}

// Catalog is where promo codes live.
type Catalog interface {
	FindByCode(ctx context.Context, code string) (*model.PromoCode, error) // ErrNotFound when absent
	IncrementUsage(ctx context.Context, code string) (bool, error)         // false when the limit is reached
	DecrementUsage(ctx context.Context, code string) error
}

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// Normalize upper-cases and syntax-checks a code typed by a customer.
func Normalize(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return "", errs.Validation(model.PromoMsgRequired)
	}
	if !codePattern.MatchString(c) {
		return "", errs.Validation("promo code %q is malformed", code)
	}
	return c, nil
}

// Service validates and redeems codes held in a Catalog.
type Service struct {
	catalog Catalog
	clock   clock.Clock
	log     *slog.Logger
}

func NewService(catalog Catalog, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{catalog: catalog, clock: clk, log: logger.Component(log, "promo")}
}

func (s *Service) Validate(ctx context.Context, code string) (Result, error) {
	c, err := Normalize(code)
	if err != nil {
		if strings.TrimSpace(code) == "" {
			return Invalid(model.PromoMsgRequired), nil
		}
		return Result{}, err
	}
	p, err := s.catalog.FindByCode(ctx, c)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return Invalid(model.PromoMsgUnknown), nil
		}
		return Result{}, errs.Transient(err, "promo lookup")
	}
	if ok, reason := p.Check(s.clock.Now()); !ok {
		return Invalid(reason), nil
	}
	if !p.DiscountType.Valid() || p.DiscountValue.IsNegative() {
		s.log.Warn("promo code has unusable terms", "code", p.Code, "type", p.DiscountType)
		return Invalid(model.PromoMsgUnknown), nil
	}
	return Valid(p.Descriptor()), nil
}

func (s *Service) Redeem(ctx context.Context, code string) error {
	ok, err := s.catalog.IncrementUsage(ctx, code)
	if err != nil {
		return errs.Transient(err, "promo redeem")
	}
	if !ok {
		return errs.Validation(model.PromoMsgExhausted)
	}
	return nil
}

func (s *Service) Unredeem(ctx context.Context, code string) error {
	if err := s.catalog.DecrementUsage(ctx, code); err != nil {
		return errs.Transient(err, "promo unredeem")
	}
	return nil
}
