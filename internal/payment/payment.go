// Package payment is the boundary to the payment provider. The booking core
// drives its state machine from the tagged Result only.
package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Details describes how the customer wants to pay.
type Details struct {
	Method     model.PaymentMethod `json:"payment_method"`
	CardNumber string              `json:"card_number,omitempty"`
	CardHolder string              `json:"card_holder,omitempty"`
	WalletID   string              `json:"wallet_id,omitempty"`
}

// Normalize validates d and strips spaces and dashes from the card number.
func (d Details) Normalize() (Details, error) {
	if !d.Method.Valid() {
		return d, errs.Validation("unsupported payment method %q", d.Method)
	}
	if d.Method != model.PayCard {
		return d, nil
	}
	digits := strings.NewReplacer(" ", "", "-", "").Replace(d.CardNumber)
	if len(digits) < 13 || len(digits) > 19 {
		return d, errs.Validation("card number must have 13 to 19 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return d, errs.Validation("card number must contain only digits")
		}
	}
	d.CardNumber = digits
	return d, nil
}

// MaskedCard keeps the last four digits only.
func (d Details) MaskedCard() string {
	if len(d.CardNumber) < 4 {
		return ""
	}
	return "****" + d.CardNumber[len(d.CardNumber)-4:]
}

type CaptureRequest struct {
	OrderID        string
	Amount         decimal.Decimal
	Currency       string
	Details        Details
	IdempotencyKey string
}

type RefundRequest struct {
	OrderID        string
	TransactionID  string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Result is Success with a transaction id or Failure with a message.
// A failure that is not Retryable ends the order.
type Result struct {
	Success       bool
	TransactionID string
	Message       string
	Retryable     bool
}

func Succeeded(txID string) Result { return Result{Success: true, TransactionID: txID} }

func Declined(msg string, retryable bool) Result {
	return Result{Message: msg, Retryable: retryable}
}

type RefundResult struct {
	RefundID string
}

// Gateway captures and refunds payments. Errors mean the provider could not
// be reached; a declined payment is a Result, not an error. Calls with the
// same IdempotencyKey must not charge or refund twice.
type Gateway interface {
	Capture(ctx context.Context, req CaptureRequest) (Result, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}
