package booking_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/booking/mocks"
	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/payment"
	"github.com/iliyamo/cinema-seat-booking/internal/pricing"
	"github.com/iliyamo/cinema-seat-booking/internal/promo"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/reservation"
)

var (
	t0      = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cash    = payment.Details{Method: model.PayCash}
	bookRef = regexp.MustCompile(`^BK-20250601-\d{4}$`)
)

const customer = uint64(42)

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type serviceSuite struct {
	suite.Suite

	ctx     context.Context
	ctrl    *gomock.Controller
	gateway *mocks.MockGateway
	promos  *mocks.MockValidator
	events  *mocks.MockPublisher
	clk     *clock.MockClock
	coord   *reservation.Coordinator
	repo    booking.Repository
	svc     *booking.Service
	session model.SessionKey

	mu        sync.Mutex
	published []queue.OrderEvent
}

func TestService(t *testing.T) {
	suite.Run(t, new(serviceSuite))
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.gateway = mocks.NewMockGateway(s.ctrl)
	s.promos = mocks.NewMockValidator(s.ctrl)
	s.events = mocks.NewMockPublisher(s.ctrl)
	s.clk = clock.NewMockClock(t0)
	s.coord = reservation.NewCoordinator(reservation.NewMemoryStore(time.Hour), s.clk, logger.Discard(), reservation.Options{})
	s.repo = booking.NewMemoryRepository()
	s.session = model.SessionKey{MovieID: 5, HallID: 2, Showtime: "2025-06-01 19:30"}
	s.published = nil

	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev queue.OrderEvent) error {
		s.mu.Lock()
		s.published = append(s.published, ev)
		s.mu.Unlock()
		return nil
	}).AnyTimes()

	s.svc = s.newService(s.repo)
}

func (s *serviceSuite) newService(repo booking.Repository) *booking.Service {
	return booking.NewService(booking.Deps{
		Repo:     repo,
		Seats:    s.coord,
		Pricing:  pricing.NewEngine(pricing.DefaultRates()),
		Promos:   s.promos,
		Payments: s.gateway,
		Events:   s.events,
		Clock:    s.clk,
		Log:      logger.Discard(),
		Config:   booking.Config{HoldTTL: 10 * time.Minute, CancelWindow: 24 * time.Hour},
	})
}

func (s *serviceSuite) occupied() model.SeatSet {
	set, err := s.coord.GetOccupied(s.ctx, s.session)
	s.Require().NoError(err)
	return set
}

func (s *serviceSuite) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.published))
	for i, ev := range s.published {
		out[i] = ev.Type
	}
	return out
}

// createTwoNormal books seats 9 and 10 (NORMAL, 24.20 total).
func (s *serviceSuite) createTwoNormal() *model.Order {
	o, err := s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID:    customer,
		Session:       s.session,
		Seats:         []int{9, 10},
		ExpectedTotal: amount("24.20"),
	})
	s.Require().NoError(err)
	return o
}

func (s *serviceSuite) confirm(o *model.Order) *model.Order {
	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Succeeded("TXN-1"), nil)
	paid, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.Require().NoError(err)
	return paid
}

func (s *serviceSuite) TestCreateOrder() {
	o := s.createTwoNormal()

	s.Equal(model.OrderPending, o.Status)
	s.Equal(model.MustSeatSet(9, 10), o.Seats)
	s.True(o.Pricing.Total.Equal(amount("24.20")))
	s.NotEmpty(o.HoldID)
	s.Equal(t0, o.CreatedAt)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())
	s.Equal([]string{queue.EventOrderCreated}, s.eventTypes())

	stored, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(o.HoldID, stored.HoldID)
}

func (s *serviceSuite) TestCreateOrder_PriceMismatch() {
	_, err := s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID: customer, Session: s.session, Seats: []int{9, 10}, ExpectedTotal: amount("20.00"),
	})
	s.True(errs.Is(err, errs.ErrValidation))
	s.True(s.occupied().IsEmpty(), "no hold taken for a rejected order")
}

func (s *serviceSuite) TestCreateOrder_Validation() {
	cases := []booking.CreateOrderInput{
		{CustomerID: customer, Session: s.session, Seats: nil},
		{CustomerID: customer, Session: s.session, Seats: []int{3, 3}},
		{CustomerID: customer, Session: s.session, Seats: []int{64}},
		{CustomerID: customer, Session: model.SessionKey{}, Seats: []int{1}},
		{CustomerID: 0, Session: s.session, Seats: []int{1}},
		{CustomerID: customer, Session: s.session, Seats: []int{1}, PromoCode: "bad code!"},
	}
	for _, in := range cases {
		_, err := s.svc.CreateOrder(s.ctx, in)
		s.True(errs.Is(err, errs.ErrValidation), "input %+v: %v", in, err)
	}
}

func (s *serviceSuite) TestCreateOrder_Conflict() {
	s.createTwoNormal()

	_, err := s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID: 7, Session: s.session, Seats: []int{10, 11}, ExpectedTotal: amount("24.20"),
	})
	s.True(errs.Is(err, errs.ErrConflict))
	taken, ok := reservation.ConflictSeats(err)
	s.Require().True(ok)
	s.Equal(model.MustSeatSet(10), taken)

	orders, err := s.svc.ListOrders(s.ctx, 7)
	s.Require().NoError(err)
	s.Empty(orders)
}

func (s *serviceSuite) TestCreateOrder_ConcurrentOverlap() {
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	for i, seats := range [][]int{{12, 13}, {13, 14}} {
		i, seats := i, seats
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, results[i] = s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
				CustomerID: uint64(100 + i), Session: s.session, Seats: seats, ExpectedTotal: amount("24.20"),
			})
		}()
	}
	close(start)
	wg.Wait()

	s.True((results[0] == nil) != (results[1] == nil), "exactly one order wins: %v", results)
	for _, err := range results {
		if err != nil {
			taken, _ := reservation.ConflictSeats(err)
			s.Equal(model.MustSeatSet(13), taken)
		}
	}
}

func (s *serviceSuite) TestCreateOrder_PromoSnapshot() {
	s.promos.EXPECT().Validate(gomock.Any(), "SAVE10").Return(promo.Valid(model.PromoDescriptor{
		Code: "SAVE10", DiscountType: model.DiscountPercentage, DiscountValue: amount("10"),
	}), nil)

	o, err := s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID: customer, Session: s.session, Seats: []int{9, 10}, ExpectedTotal: amount("22.00"), PromoCode: "save10",
	})
	s.Require().NoError(err)
	s.True(o.Pricing.Discount.Equal(amount("2")))
	s.True(o.Pricing.Tax.Equal(amount("2")))
	s.Require().NotNil(o.Promo)
	s.Equal("SAVE10", o.Promo.Code)

	// Payment never re-validates the promotion.
	paid := s.confirm(o)
	s.True(paid.Pricing.Total.Equal(amount("22.00")))
}

func (s *serviceSuite) TestCreateOrder_PromoRejected() {
	s.promos.EXPECT().Validate(gomock.Any(), "OLD").Return(promo.Invalid(model.PromoMsgExpired), nil)
	_, err := s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID: customer, Session: s.session, Seats: []int{9}, ExpectedTotal: amount("12.10"), PromoCode: "OLD",
	})
	s.True(errs.Is(err, errs.ErrValidation))
	s.Contains(err.Error(), model.PromoMsgExpired)
}

func (s *serviceSuite) TestCreateOrder_PromoUnavailable() {
	s.promos.EXPECT().Validate(gomock.Any(), "SAVE10").Return(promo.Result{}, errors.New("dial tcp: refused"))
	_, err := s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID: customer, Session: s.session, Seats: []int{9}, ExpectedTotal: amount("12.10"), PromoCode: "SAVE10",
	})
	s.True(errs.Is(err, errs.ErrTransient))
	s.True(s.occupied().IsEmpty())
}

type failingRepo struct{ booking.Repository }

func (failingRepo) Create(context.Context, *model.Order) error { return errors.New("db down") }

func (s *serviceSuite) TestCreateOrder_StoreFailureReleasesHold() {
	svc := s.newService(failingRepo{booking.NewMemoryRepository()})
	_, err := svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID: customer, Session: s.session, Seats: []int{9}, ExpectedTotal: amount("12.10"),
	})
	s.True(errs.Is(err, errs.ErrTransient))
	s.True(s.occupied().IsEmpty())
}

func (s *serviceSuite) TestCapturePayment_Confirms() {
	o := s.createTwoNormal()

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req payment.CaptureRequest) (payment.Result, error) {
			s.Equal(o.ID, req.OrderID)
			s.True(req.Amount.Equal(amount("24.20")))
			s.Equal("capture-"+o.ID, req.IdempotencyKey)
			return payment.Succeeded("TXN-ABC"), nil
		})
	paid, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.Require().NoError(err)

	s.Equal(model.OrderConfirmed, paid.Status)
	s.Equal("TXN-ABC", paid.TransactionID)
	s.Equal(model.PayCash, paid.PaymentMethod)
	s.Regexp(bookRef, paid.BookingReference)
	s.Require().NotNil(paid.PaidAt)

	// A confirmed hold outlives its TTL.
	s.clk.Add(time.Hour)
	_, err = s.coord.ExpireDue(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())

	_, err = s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrInvalidTransition), "cannot confirm twice")
	s.Equal([]string{queue.EventOrderCreated, queue.EventOrderConfirmed}, s.eventTypes())
}

func (s *serviceSuite) TestCapturePayment_DeclineThenRetry() {
	o := s.createTwoNormal()

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Declined("insufficient funds", true), nil)
	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrPayment))
	s.Contains(err.Error(), "insufficient funds")

	pending, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderPending, pending.Status)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())

	paid := s.confirm(o)
	s.Equal(model.OrderConfirmed, paid.Status)
	s.Equal(o.HoldID, paid.HoldID, "retry reuses the original hold")
}

func (s *serviceSuite) TestCapturePayment_FinalDeclineCancels() {
	o := s.createTwoNormal()

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Declined("card reported stolen", false), nil)
	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrPayment))

	got, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelPaymentFailed, got.CancelReason)
	s.True(s.occupied().IsEmpty())
}

func (s *serviceSuite) TestCapturePayment_GatewayDown() {
	o := s.createTwoNormal()

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Result{}, errors.New("timeout"))
	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrTransient))

	got, _ := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Equal(model.OrderPending, got.Status)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())
}

func (s *serviceSuite) TestCapturePayment_InvalidDetails() {
	o := s.createTwoNormal()
	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, payment.Details{Method: model.PayCard, CardNumber: "123"})
	s.True(errs.Is(err, errs.ErrValidation))
}

func (s *serviceSuite) TestCapturePayment_HoldLapsedRefunds() {
	o := s.createTwoNormal()
	s.clk.Add(11 * time.Minute)

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Succeeded("TXN-LATE"), nil)
	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
			s.Equal("TXN-LATE", req.TransactionID)
			s.True(req.Amount.Equal(amount("24.20")))
			return payment.RefundResult{RefundID: "RFD-1"}, nil
		})

	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrHoldExpired))

	got, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelHoldExpired, got.CancelReason)
	s.True(got.RefundAmount.Equal(amount("24.20")))
	s.True(s.occupied().IsEmpty())
}

// flakyRepo fails Transition for the first n writes that move an order
// into status, with err.
type flakyRepo struct {
	booking.Repository
	status model.OrderStatus
	err    error
	n      int
}

func (r *flakyRepo) Transition(ctx context.Context, from model.OrderStatus, o *model.Order) error {
	if o.Status == r.status && r.n > 0 {
		r.n--
		return r.err
	}
	return r.Repository.Transition(ctx, from, o)
}

func (s *serviceSuite) withRepo(repo booking.Repository) {
	s.repo = repo
	s.svc = s.newService(repo)
}

func (s *serviceSuite) TestCapturePayment_ConfirmStoreFailureRefunds() {
	s.withRepo(&flakyRepo{Repository: booking.NewMemoryRepository(), status: model.OrderConfirmed, err: errors.New("db down"), n: 1})
	o := s.createTwoNormal()

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Succeeded("TXN-1"), nil)
	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
			s.Equal("TXN-1", req.TransactionID)
			s.Equal("refund-"+o.ID, req.IdempotencyKey)
			s.True(req.Amount.Equal(amount("24.20")))
			return payment.RefundResult{RefundID: "RFD-1"}, nil
		})

	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrTransient))

	got, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelPaymentFailed, got.CancelReason)
	s.Equal("TXN-1", got.TransactionID)
	s.True(got.RefundAmount.Equal(amount("24.20")))
	s.Empty(got.BookingReference)
	s.True(s.occupied().IsEmpty())
	s.NotContains(s.eventTypes(), queue.EventOrderConfirmed)
}

func (s *serviceSuite) TestCapturePayment_RecordFailureRefunds() {
	s.withRepo(&flakyRepo{Repository: booking.NewMemoryRepository(), status: model.OrderPending, err: errors.New("db down"), n: 1})
	o := s.createTwoNormal()

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Succeeded("TXN-1"), nil)
	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).Return(payment.RefundResult{RefundID: "RFD-1"}, nil)

	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrTransient))

	got, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelPaymentFailed, got.CancelReason)
	s.True(got.RefundAmount.Equal(amount("24.20")))
	s.True(s.occupied().IsEmpty())
}

func (s *serviceSuite) TestCapturePayment_UnsettledCaptureStillFreesSeats() {
	// Neither the confirmation nor the cancellation can be stored. The
	// seats are released anyway and the capture stays on the order.
	s.withRepo(&flakyRepo{Repository: booking.NewMemoryRepository(), status: model.OrderConfirmed, err: errors.New("db down"), n: 1})
	o := s.createTwoNormal()
	down := &flakyRepo{Repository: s.repo, status: model.OrderCancelled, err: errors.New("db down"), n: 1}
	s.svc = s.newService(down)

	s.gateway.EXPECT().Capture(gomock.Any(), gomock.Any()).Return(payment.Succeeded("TXN-1"), nil)
	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).Return(payment.RefundResult{RefundID: "RFD-1"}, nil)

	_, err := s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrTransient))
	s.True(s.occupied().IsEmpty())

	got, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderPending, got.Status)
	s.Equal("TXN-1", got.TransactionID)
}

func (s *serviceSuite) TestAbandon_AfterRecordedCaptureRefunds() {
	o := s.createTwoNormal()
	o.TransactionID = "TXN-9"
	o.PaymentMethod = model.PayCash
	s.Require().NoError(s.repo.Transition(s.ctx, model.OrderPending, o))

	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
			s.Equal("TXN-9", req.TransactionID)
			return payment.RefundResult{RefundID: "RFD-9"}, nil
		})

	got, err := s.svc.AbandonOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelAbandoned, got.CancelReason)
	s.True(got.RefundAmount.Equal(amount("24.20")))
	s.True(s.occupied().IsEmpty())
}

func (s *serviceSuite) TestAbandon_RefundUnavailableKeepsOrder() {
	o := s.createTwoNormal()
	o.TransactionID = "TXN-9"
	s.Require().NoError(s.repo.Transition(s.ctx, model.OrderPending, o))

	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).Return(payment.RefundResult{}, errors.New("gateway timeout"))

	_, err := s.svc.AbandonOrder(s.ctx, o.ID, customer)
	s.True(errs.Is(err, errs.ErrTransient))

	got, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderPending, got.Status)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())
}

func (s *serviceSuite) TestCapturePayment_RedrawsTakenReference() {
	dup := errs.Mark(errors.New("Duplicate entry for key 'booking_reference'"), errs.ErrDuplicate)
	s.withRepo(&flakyRepo{Repository: booking.NewMemoryRepository(), status: model.OrderConfirmed, err: dup, n: 2})
	o := s.createTwoNormal()

	paid := s.confirm(o)
	s.Equal(model.OrderConfirmed, paid.Status)
	s.Regexp(bookRef, paid.BookingReference)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())
}

func (s *serviceSuite) TestHoldExpiryCancelsPendingOrder() {
	o := s.createTwoNormal()

	sw := reservation.NewSweeper(s.coord, reservation.SweeperConfig{}, logger.Discard())
	sw.OnExpire(s.svc.HandleHoldExpired)

	s.clk.Add(10 * time.Minute)
	s.Equal(1, sw.Sweep(s.ctx))

	got, err := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelHoldExpired, got.CancelReason)
	s.True(s.occupied().IsEmpty())

	_, err = s.svc.CapturePayment(s.ctx, o.ID, customer, cash)
	s.True(errs.Is(err, errs.ErrInvalidTransition))
}

func (s *serviceSuite) TestCancel_WithinWindow() {
	o := s.confirm(s.createTwoNormal())
	s.clk.Add(2 * time.Hour)

	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
			s.Equal("refund-"+o.ID, req.IdempotencyKey)
			return payment.RefundResult{RefundID: "RFD-2"}, nil
		})
	res, err := s.svc.CancelOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.True(res.Success)
	s.True(res.RefundAmount.Equal(o.Pricing.Total))
	s.True(s.occupied().IsEmpty(), "seats return to the pool")

	got, _ := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelByCustomer, got.CancelReason)

	_, err = s.svc.CancelOrder(s.ctx, o.ID, customer)
	s.True(errs.Is(err, errs.ErrInvalidTransition), "second cancel is rejected")
}

func (s *serviceSuite) TestCancel_AfterWindow() {
	o := s.confirm(s.createTwoNormal())
	s.clk.Add(25 * time.Hour)

	_, err := s.svc.CancelOrder(s.ctx, o.ID, customer)
	s.True(errs.Is(err, errs.ErrCancelWindowClosed))

	got, _ := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Equal(model.OrderConfirmed, got.Status)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())
}

func (s *serviceSuite) TestCancel_RefundUnavailable() {
	o := s.confirm(s.createTwoNormal())

	s.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).Return(payment.RefundResult{}, errors.New("gateway 503"))
	_, err := s.svc.CancelOrder(s.ctx, o.ID, customer)
	s.True(errs.Is(err, errs.ErrTransient))

	got, _ := s.svc.GetOrder(s.ctx, o.ID, customer)
	s.Equal(model.OrderConfirmed, got.Status)
	s.Equal(model.MustSeatSet(9, 10), s.occupied())
}

func (s *serviceSuite) TestCancel_PendingRejected_AbandonInstead() {
	o := s.createTwoNormal()

	_, err := s.svc.CancelOrder(s.ctx, o.ID, customer)
	s.True(errs.Is(err, errs.ErrInvalidTransition))

	got, err := s.svc.AbandonOrder(s.ctx, o.ID, customer)
	s.Require().NoError(err)
	s.Equal(model.OrderCancelled, got.Status)
	s.Equal(model.CancelAbandoned, got.CancelReason)
	s.True(s.occupied().IsEmpty())

	_, err = s.svc.AbandonOrder(s.ctx, o.ID, customer)
	s.True(errs.Is(err, errs.ErrInvalidTransition))
}

func (s *serviceSuite) TestOrdersAreScopedToCustomer() {
	o := s.createTwoNormal()

	_, err := s.svc.GetOrder(s.ctx, o.ID, 999)
	s.True(errs.Is(err, errs.ErrNotFound))
	_, err = s.svc.CancelOrder(s.ctx, o.ID, 999)
	s.True(errs.Is(err, errs.ErrNotFound))

	s.clk.Add(time.Minute)
	_, err = s.svc.CreateOrder(s.ctx, booking.CreateOrderInput{
		CustomerID: customer, Session: s.session, Seats: []int{0}, ExpectedTotal: amount("18.15"),
	})
	s.Require().NoError(err)

	history, err := s.svc.ListOrders(s.ctx, customer)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.True(history[0].CreatedAt.After(history[1].CreatedAt), "newest first")
}

func (s *serviceSuite) TestQuote() {
	b, snap, err := s.svc.Quote(s.ctx, []int{27, 28}, "")
	s.Require().NoError(err)
	s.Nil(snap)
	s.True(b.Total.Equal(amount("60.50")))
}
