// Package booking implements the order lifecycle: it reserves seats, prices
// them, drives payment capture and enforces the cancellation policy.
//
//	PENDING ──pay──▶ CONFIRMED ──cancel (within window, once)──▶ CANCELLED
//	   └──abandon / hold expiry / final decline──▶ CANCELLED
package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/payment"
	"github.com/iliyamo/cinema-seat-booking/internal/pricing"
	"github.com/iliyamo/cinema-seat-booking/internal/promo"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
)

// Config holds the lifecycle policy.
type Config struct {
	HoldTTL      time.Duration // how long a PENDING order keeps its seats
	CancelWindow time.Duration // how long after creation a CONFIRMED order may be cancelled
	Currency     string
	HistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		HoldTTL:      10 * time.Minute,
		CancelWindow: 24 * time.Hour,
		Currency:     "EUR",
		HistoryLimit: 100,
	}
}

// Deps are the collaborators of a Service.
type Deps struct {
	Repo     Repository
	Seats    SeatReserver
	Pricing  *pricing.Engine
	Promos   promo.Validator
	Payments payment.Gateway
	Events   queue.Publisher
	Clock    clock.Clock
	Log      *slog.Logger
	Config   Config
}

type Service struct {
	repo     Repository
	seats    SeatReserver
	pricing  *pricing.Engine
	promos   promo.Validator
	redeemer promo.Redeemer
	payments payment.Gateway
	events   queue.Publisher
	clock    clock.Clock
	log      *slog.Logger
	cfg      Config
	locks    keyedMutex
}

func NewService(d Deps) *Service {
	cfg := d.Config
	def := DefaultConfig()
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = def.HoldTTL
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = def.CancelWindow
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	events := d.Events
	if events == nil {
		events = queue.NopPublisher{}
	}
	s := &Service{
		repo:     d.Repo,
		seats:    d.Seats,
		pricing:  d.Pricing,
		promos:   d.Promos,
		payments: d.Payments,
		events:   events,
		clock:    d.Clock,
		log:      logger.Component(d.Log, "booking"),
		cfg:      cfg,
		locks:    keyedMutex{locks: make(map[string]*refLock)},
	}
	if r, ok := d.Promos.(promo.Redeemer); ok {
		s.redeemer = r
	}
	return s
}

// HoldTTL is how long a PENDING order keeps its seats.
func (s *Service) HoldTTL() time.Duration { return s.cfg.HoldTTL }

// CancelWindow is how long after creation a CONFIRMED order may be cancelled.
func (s *Service) CancelWindow() time.Duration { return s.cfg.CancelWindow }

func (s *Service) Currency() string { return s.cfg.Currency }

// CreateOrderInput is a customer's final seat selection.
type CreateOrderInput struct {
	CustomerID    uint64
	Session       model.SessionKey
	Seats         []int
	ExpectedTotal decimal.Decimal
	PromoCode     string
}

// Quote prices a selection without reserving anything.
func (s *Service) Quote(ctx context.Context, seatIDs []int, promoCode string) (model.PriceBreakdown, *model.PromoDescriptor, error) {
	if len(seatIDs) == 0 {
		return model.PriceBreakdown{}, nil, errs.Validation("at least one seat is required")
	}
	seats, err := model.SeatSetFromInts(seatIDs)
	if err != nil {
		return model.PriceBreakdown{}, nil, err
	}
	snap, err := s.resolvePromo(ctx, promoCode)
	if err != nil {
		return model.PriceBreakdown{}, nil, err
	}
	return s.pricing.Price(seats, snap), snap, nil
}

// CreateOrder reserves the seats and stores a PENDING order. The price is
// computed here and must match what the customer was shown.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if in.CustomerID == 0 {
		return nil, errs.Validation("customer id is required")
	}
	in.Session = in.Session.Normalize()
	if err := in.Session.Validate(); err != nil {
		return nil, err
	}
	if len(in.Seats) == 0 {
		return nil, errs.Validation("at least one seat is required")
	}
	seats, err := model.SeatSetFromInts(in.Seats)
	if err != nil {
		return nil, err
	}
	snap, err := s.resolvePromo(ctx, in.PromoCode)
	if err != nil {
		return nil, err
	}
	price := s.pricing.Price(seats, snap)
	if !pricing.SameAmount(price.Total, in.ExpectedTotal) {
		return nil, errs.Validation("expected total %s does not match current price %s",
			in.ExpectedTotal.StringFixed(2), price.Total.StringFixed(2))
	}

	orderID := uuid.NewString()
	hold, err := s.seats.TryReserve(ctx, in.Session, seats, orderID, s.cfg.HoldTTL)
	if err != nil {
		return nil, err
	}

	redeemed := false
	if snap != nil && s.redeemer != nil {
		if err := s.redeemer.Redeem(ctx, snap.Code); err != nil {
			s.releaseHold(ctx, hold.ID)
			return nil, err
		}
		redeemed = true
	}

	now := s.clock.Now()
	o := &model.Order{
		ID:         orderID,
		CustomerID: in.CustomerID,
		Session:    in.Session,
		Seats:      seats,
		HoldID:     hold.ID,
		Pricing:    price,
		Promo:      snap,
		Status:     model.OrderPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		s.releaseHold(ctx, hold.ID)
		if redeemed {
			if uerr := s.redeemer.Unredeem(ctx, snap.Code); uerr != nil {
				s.log.Warn("promo usage not returned", "code", snap.Code, "error", uerr)
			}
		}
		return nil, errs.Transient(err, "store order")
	}

	s.log.Info("order created", "order_id", o.ID, "customer_id", o.CustomerID,
		"session", o.Session.String(), "seats", o.Seats.String(), "total", o.Pricing.Total.StringFixed(2))
	s.publish(ctx, queue.EventOrderCreated, o)
	return o, nil
}

// resolvePromo snapshots a promotion. An empty code means no promotion.
func (s *Service) resolvePromo(ctx context.Context, code string) (*model.PromoDescriptor, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	normalized, err := promo.Normalize(code)
	if err != nil {
		return nil, err
	}
	if s.promos == nil {
		return nil, errs.Validation(model.PromoMsgUnknown)
	}
	res, err := s.promos.Validate(ctx, normalized)
	if err != nil {
		if errs.Kind(err) == nil {
			err = errs.Transient(err, "promo validation")
		}
		return nil, err
	}
	if !res.Valid {
		return nil, errs.Validation("%s", res.Message)
	}
	d := res.Promo
	return &d, nil
}

// CapturePayment charges a PENDING order and confirms it. A declined
// payment leaves the order PENDING so the customer can retry, unless the
// provider says the decline is final. Retrying is safe: the capture is
// keyed by order id and no new hold is ever taken.
func (s *Service) CapturePayment(ctx context.Context, orderID string, customerID uint64, details payment.Details) (*model.Order, error) {
	details, err := details.Normalize()
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(model.OrderConfirmed) {
		return nil, errs.Mark(errs.Newf("order %s is %s; only PENDING orders can be paid", o.ID, o.Status), errs.ErrInvalidTransition)
	}

	var res payment.Result
	if o.Pricing.Total.IsPositive() {
		res, err = s.payments.Capture(ctx, payment.CaptureRequest{
			OrderID:        o.ID,
			Amount:         o.Pricing.Total,
			Currency:       s.cfg.Currency,
			Details:        details,
			IdempotencyKey: "capture-" + o.ID,
		})
		if err != nil {
			return nil, errs.Transient(err, "payment capture")
		}
		if !res.Success {
			s.log.Info("payment declined", "order_id", o.ID, "message", res.Message, "retryable", res.Retryable)
			if !res.Retryable {
				if cerr := s.cancelPending(ctx, o, model.CancelPaymentFailed); cerr != nil {
					s.log.Error("cancel after final decline failed", "order_id", o.ID, "error", cerr)
				}
			}
			return nil, errs.Payment(res.Message)
		}
	}

	if res.Success {
		// Record the capture before touching the hold.
		o.PaymentMethod = details.Method
		o.TransactionID = res.TransactionID
		o.UpdatedAt = s.clock.Now()
		if err := s.repo.Transition(ctx, model.OrderPending, o); err != nil {
			if errs.Is(err, errs.ErrInvalidTransition) {
				return nil, err
			}
			s.abortCapture(ctx, o)
			return nil, errs.Transient(err, "store capture")
		}
	}

	if _, err := s.seats.Finalize(ctx, o.HoldID); err != nil {
		if errs.Is(err, errs.ErrHoldExpired) || errs.Is(err, errs.ErrHoldNotFound) {
			return nil, s.expireAfterCapture(ctx, o)
		}
		return nil, err
	}

	now := s.clock.Now()
	o.Status = model.OrderConfirmed
	o.PaymentMethod = details.Method
	o.PaidAt = &now
	o.UpdatedAt = now
	if err := s.storeConfirmation(ctx, o); err != nil {
		if errs.Is(err, errs.ErrInvalidTransition) {
			return nil, err
		}
		o.Status = model.OrderPending
		o.PaidAt = nil
		o.BookingReference = ""
		s.abortCapture(ctx, o)
		return nil, errs.Transient(err, "store confirmation")
	}

	s.log.Info("order confirmed", "order_id", o.ID, "transaction_id", o.TransactionID, "booking_reference", o.BookingReference)
	s.publish(ctx, queue.EventOrderConfirmed, o)
	return o, nil
}

// maxReferenceAttempts bounds how often a colliding booking reference is
// redrawn before the confirmation is given up.
const maxReferenceAttempts = 5

// storeConfirmation writes the CONFIRMED row, drawing a new booking
// reference whenever the drawn one is already taken.
func (s *Service) storeConfirmation(ctx context.Context, o *model.Order) error {
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		o.BookingReference = newBookingReference(*o.PaidAt)
		err = s.repo.Transition(ctx, model.OrderPending, o)
		if !errs.Is(err, errs.ErrDuplicate) {
			return err
		}
		s.log.Warn("booking reference taken, drawing another", "order_id", o.ID, "reference", o.BookingReference)
	}
	return err
}

// abortCapture undoes a capture whose order could not be stored as paid.
// The money is refunded and the seats go back to the pool, so a retry of
// the payment ends in cancellation instead of a sale nobody recorded. When
// the order row cannot be cancelled either, the hold is still released and
// the order is left for the next payment attempt or abandon to settle.
func (s *Service) abortCapture(ctx context.Context, o *model.Order) {
	if err := s.cancelPending(ctx, o, model.CancelPaymentFailed); err != nil {
		s.log.Error("captured payment not settled; seats released",
			"order_id", o.ID, "transaction_id", o.TransactionID, "error", err)
		s.releaseHold(ctx, o.HoldID)
	}
}

// expireAfterCapture handles a hold that lapsed while the customer was
// paying: the capture is refunded and the order cancelled. If the refund
// cannot be issued the order stays PENDING so a retry repeats this path.
func (s *Service) expireAfterCapture(ctx context.Context, o *model.Order) error {
	if err := s.cancelPending(ctx, o, model.CancelHoldExpired); err != nil {
		return err
	}
	return errs.Mark(errs.Newf("seat hold for order %s expired before payment completed", o.ID), errs.ErrHoldExpired)
}

// AbandonOrder lets the customer give up a PENDING order and free the seats.
func (s *Service) AbandonOrder(ctx context.Context, orderID string, customerID uint64) (*model.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if o.Status != model.OrderPending {
		return nil, errs.Mark(errs.Newf("order %s is %s; only PENDING orders can be abandoned", o.ID, o.Status), errs.ErrInvalidTransition)
	}
	if err := s.cancelPending(ctx, o, model.CancelAbandoned); err != nil {
		return nil, err
	}
	return o, nil
}

// HandleHoldExpired cancels the PENDING order owning a lapsed hold. It is
// registered as the sweeper's expiry callback.
func (s *Service) HandleHoldExpired(ctx context.Context, h model.Hold) {
	unlock := s.locks.Lock(h.HolderID)
	defer unlock()

	o, err := s.repo.Get(ctx, h.HolderID)
	if err != nil {
		if !errs.Is(err, errs.ErrNotFound) {
			s.log.Warn("load order for expired hold", "hold_id", h.ID, "order_id", h.HolderID, "error", err)
		}
		return
	}
	if o.Status != model.OrderPending || o.HoldID != h.ID {
		return
	}
	if err := s.cancelPending(ctx, o, model.CancelHoldExpired); err != nil {
		s.log.Warn("auto-cancel expired order", "order_id", o.ID, "error", err)
	}
}

// cancelPending moves o from PENDING to CANCELLED and frees its seats. A
// capture already recorded on the order is refunded first; if the refund
// fails nothing changes.
func (s *Service) cancelPending(ctx context.Context, o *model.Order, reason model.CancelReason) error {
	if o.TransactionID != "" && o.RefundAmount.IsZero() && o.Pricing.Total.IsPositive() {
		if _, err := s.payments.Refund(ctx, payment.RefundRequest{
			OrderID:        o.ID,
			TransactionID:  o.TransactionID,
			Amount:         o.Pricing.Total,
			IdempotencyKey: "refund-" + o.ID,
		}); err != nil {
			return errs.Transient(err, "refund capture")
		}
		o.RefundAmount = o.Pricing.Total
	}

	now := s.clock.Now()
	o.Status = model.OrderCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	if err := s.repo.Transition(ctx, model.OrderPending, o); err != nil {
		if errs.Is(err, errs.ErrInvalidTransition) {
			return err
		}
		return errs.Transient(err, "store cancellation")
	}
	s.releaseHold(ctx, o.HoldID)
	s.log.Info("order cancelled", "order_id", o.ID, "reason", reason, "refund", o.RefundAmount.StringFixed(2))
	s.publish(ctx, queue.EventOrderCancelled, o)
	return nil
}

// CancelResult is returned to the customer after a cancellation.
type CancelResult struct {
	Success      bool            `json:"success"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Message      string          `json:"message"`
}

// CancelOrder cancels a CONFIRMED order within the cancellation window,
// refunds the full total and returns the seats to the pool. A second
// cancellation is rejected.
func (s *Service) CancelOrder(ctx context.Context, orderID string, customerID uint64) (CancelResult, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	o, err := s.load(ctx, orderID, customerID)
	if err != nil {
		return CancelResult{}, err
	}
	switch o.Status {
	case model.OrderCancelled:
		return CancelResult{}, errs.Mark(errs.Newf("order %s is already cancelled", o.ID), errs.ErrInvalidTransition)
	case model.OrderPending:
		return CancelResult{}, errs.Mark(errs.Newf("order %s is not paid yet; abandon it instead", o.ID), errs.ErrInvalidTransition)
	}

	now := s.clock.Now()
	if now.Sub(o.CreatedAt) > s.cfg.CancelWindow {
		return CancelResult{}, errs.Mark(
			errs.Newf("orders can only be cancelled within %s of booking", humanWindow(s.cfg.CancelWindow)),
			errs.ErrCancelWindowClosed)
	}

	refund := o.Pricing.Total
	if refund.IsPositive() && o.TransactionID != "" {
		if _, err := s.payments.Refund(ctx, payment.RefundRequest{
			OrderID:        o.ID,
			TransactionID:  o.TransactionID,
			Amount:         refund,
			IdempotencyKey: "refund-" + o.ID,
		}); err != nil {
			return CancelResult{}, errs.Transient(err, "refund")
		}
	}

	o.Status = model.OrderCancelled
	o.CancelReason = model.CancelByCustomer
	o.RefundAmount = refund
	o.CancelledAt = &now
	o.UpdatedAt = now
	if err := s.repo.Transition(ctx, model.OrderConfirmed, o); err != nil {
		if errs.Is(err, errs.ErrInvalidTransition) {
			return CancelResult{}, err
		}
		return CancelResult{}, errs.Transient(err, "store cancellation")
	}
	s.releaseHold(ctx, o.HoldID)

	s.log.Info("order cancelled", "order_id", o.ID, "reason", model.CancelByCustomer, "refund", refund.StringFixed(2))
	s.publish(ctx, queue.EventOrderCancelled, o)
	return CancelResult{
		Success:      true,
		RefundAmount: refund,
		Message:      fmt.Sprintf("Order cancelled. %s %s will be refunded.", refund.StringFixed(2), s.cfg.Currency),
	}, nil
}

// GetOrder returns one of the customer's orders.
func (s *Service) GetOrder(ctx context.Context, orderID string, customerID uint64) (*model.Order, error) {
	return s.load(ctx, orderID, customerID)
}

// ListOrders returns the customer's order history, newest first.
func (s *Service) ListOrders(ctx context.Context, customerID uint64) ([]model.Order, error) {
	orders, err := s.repo.ListByCustomer(ctx, customerID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, errs.Transient(err, "list orders")
	}
	return orders, nil
}

// load fetches an order and hides other customers' orders as not found.
func (s *Service) load(ctx context.Context, orderID string, customerID uint64) (*model.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errs.Validation("order id is required")
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, errs.Transient(err, "load order")
	}
	if customerID != 0 && o.CustomerID != customerID {
		return nil, errs.Mark(errs.Newf("order %s", orderID), errs.ErrNotFound)
	}
	return o, nil
}

func (s *Service) releaseHold(ctx context.Context, holdID string) {
	if err := s.seats.Release(ctx, holdID); err != nil {
		// The hold still lapses on its own; confirmed holds need a manual release.
		s.log.Error("release hold failed", "hold_id", holdID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, o *model.Order) {
	if err := s.events.Publish(ctx, queue.NewOrderEvent(eventType, o, s.clock.Now())); err != nil {
		s.log.Warn("publish order event failed", "type", eventType, "order_id", o.ID, "error", err)
	}
}

// newBookingReference renders BK-yyyyMMdd-NNNN.
func newBookingReference(at time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(at.UnixNano() % 10000)
	}
	return fmt.Sprintf("BK-%s-%04d", at.UTC().Format("20060102"), n.Int64())
}

func humanWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
