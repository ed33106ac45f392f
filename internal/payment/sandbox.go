package payment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
)

// SandboxGateway approves every well-formed payment, remembers results per
// idempotency key and can be scripted to decline or fail.
type SandboxGateway struct {
	mu       sync.Mutex
	captures map[string]Result
	refunds  map[string]RefundResult
	script   []scripted
	log      *slog.Logger
}

type scripted struct {
	result Result
	err    error
}

func NewSandboxGateway(log *slog.Logger) *SandboxGateway {
	return &SandboxGateway{
		captures: make(map[string]Result),
		refunds:  make(map[string]RefundResult),
		log:      logger.Component(log, "payment-sandbox"),
	}
}

// DeclineNext makes the next capture return a declined result.
func (g *SandboxGateway) DeclineNext(msg string, retryable bool) {
	g.mu.Lock()
	g.script = append(g.script, scripted{result: Declined(msg, retryable)})
	g.mu.Unlock()
}

// FailNext makes the next call return err, as if the provider were down.
func (g *SandboxGateway) FailNext(err error) {
	g.mu.Lock()
	g.script = append(g.script, scripted{err: err})
	g.mu.Unlock()
}

func (g *SandboxGateway) pop() (scripted, bool) {
	if len(g.script) == 0 {
		return scripted{}, false
	}
	s := g.script[0]
	g.script = g.script[1:]
	return s, true
}

func (g *SandboxGateway) Capture(_ context.Context, req CaptureRequest) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.captures[req.IdempotencyKey]; ok && prev.Success {
		return prev, nil
	}
	if s, ok := g.pop(); ok {
		if s.err != nil {
			return Result{}, s.err
		}
		return s.result, nil
	}
	if _, err := req.Details.Normalize(); err != nil {
		return Declined(err.Error(), true), nil
	}
	if !req.Amount.IsPositive() {
		return Declined("amount must be positive", false), nil
	}

	res := Succeeded("TXN-" + ulid.Make().String())
	g.captures[req.IdempotencyKey] = res
	g.log.Info("payment captured", "order_id", req.OrderID, "amount", req.Amount.StringFixed(2),
		"method", req.Details.Method, "card", req.Details.MaskedCard(), "transaction_id", res.TransactionID)
	return res, nil
}

func (g *SandboxGateway) Refund(_ context.Context, req RefundRequest) (RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.refunds[req.IdempotencyKey]; ok {
		return prev, nil
	}
	if s, ok := g.pop(); ok && s.err != nil {
		return RefundResult{}, s.err
	}
	if req.TransactionID == "" {
		return RefundResult{}, errs.New("refund without transaction id")
	}
	res := RefundResult{RefundID: "RFD-" + ulid.Make().String()}
	g.refunds[req.IdempotencyKey] = res
	g.log.Info("payment refunded", "order_id", req.OrderID, "amount", req.Amount.StringFixed(2), "refund_id", res.RefundID)
	return res, nil
}

// Refunds reports how many distinct refunds were issued.
func (g *SandboxGateway) Refunds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}
