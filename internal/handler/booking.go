package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/payment"
	"github.com/iliyamo/cinema-seat-booking/internal/promo"
	"github.com/iliyamo/cinema-seat-booking/internal/recommend"
	"github.com/iliyamo/cinema-seat-booking/internal/reservation"
	"github.com/iliyamo/cinema-seat-booking/internal/ticket"
)

// BookingHandler serves the seat map, promo checks and the customer's
// orders.
type BookingHandler struct {
	Orders *booking.Service         // order lifecycle
	Seats  *reservation.Coordinator // occupancy
	Promos promo.Validator          // promo lookups for the checkout form
	Log    *slog.Logger
}

// NewBookingHandler panics if a collaborator is missing.
func NewBookingHandler(orders *booking.Service, seats *reservation.Coordinator, promos promo.Validator, log *slog.Logger) *BookingHandler {
	if orders == nil || seats == nil || promos == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Orders: orders, Seats: seats, Promos: promos, Log: logger.Component(log, "http")}
}

func (h *BookingHandler) fail(c echo.Context, err error) error {
	return respondError(c, h.Log, err)
}

func (h *BookingHandler) orderView(o *model.Order) orderView {
	return newOrderView(o, h.Orders.HoldTTL(), h.Orders.Currency())
}

// ListSeats handles GET /v1/seats: the fixed 8x8 seat table.
func (h *BookingHandler) ListSeats(c echo.Context) error {
	table := model.SeatTable()
	out := make([]seatView, 0, len(table))
	for _, s := range table {
		out = append(out, seatView{
			ID:    int(s.ID),
			Label: s.ID.Label(),
			Row:   s.ID.Row(),
			Col:   s.ID.Col(),
			Type:  string(s.Type),
			Price: money(s.BasePrice),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"rows": model.Rows, "seats_per_row": model.RowWidth, "seats": out})
}

// Occupancy handles GET /v1/sessions/occupancy. The answer comes from the
// display snapshot and can trail the live state by a few seconds.
func (h *BookingHandler) Occupancy(c echo.Context) error {
	session, err := sessionFromQuery(c)
	if err != nil {
		return h.fail(c, err)
	}
	occupied, err := h.Seats.GetOccupied(c.Request().Context(), session)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"movie_id":        session.MovieID,
		"showtime":        session.Showtime,
		"hall_id":         session.HallID,
		"occupied":        occupied.Ints(),
		"occupied_labels": occupied.Labels(),
		"available":       model.Capacity - occupied.Len(),
	})
}

// Recommend handles GET /v1/sessions/recommendation?count=k. No free block
// is a normal answer, reported as found=false.
func (h *BookingHandler) Recommend(c echo.Context) error {
	session, err := sessionFromQuery(c)
	if err != nil {
		return h.fail(c, err)
	}
	var count int
	if err := echo.QueryParamsBinder(c).MustInt("count", &count).BindError(); err != nil {
		return h.fail(c, errs.Validation("count must be an integer"))
	}
	ctx := c.Request().Context()
	occupied, err := h.Seats.GetOccupied(ctx, session)
	if err != nil {
		return h.fail(c, err)
	}
	block, found, err := recommend.Recommend(count, occupied)
	if err != nil {
		return h.fail(c, err)
	}
	if !found {
		return c.JSON(http.StatusOK, echo.Map{"found": false, "count": count})
	}
	seats := block.Seats()
	price, _, err := h.Orders.Quote(ctx, seats.Ints(), "")
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"found":       true,
		"count":       count,
		"row":         block.Row,
		"seat_ids":    seats.Ints(),
		"seat_labels": seats.Labels(),
		"pricing":     newPriceView(price, h.Orders.Currency()),
	})
}

type validatePromoRequest struct {
	Code    string `json:"code" validate:"required"`
	SeatIDs []int  `json:"seat_ids" validate:"omitempty,max=64,dive,min=0,max=63"`
}

// ValidatePromo handles POST /v1/promo-codes/validate. When seat_ids are
// given the response also carries the discounted quote.
func (h *BookingHandler) ValidatePromo(c echo.Context) error {
	var req validatePromoRequest
	if err := bindAndValidate(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx := c.Request().Context()
	res, err := h.Promos.Validate(ctx, req.Code)
	if err != nil {
		return h.fail(c, err)
	}
	if !res.Valid {
		return c.JSON(http.StatusOK, echo.Map{"valid": false, "message": res.Message})
	}
	body := echo.Map{"valid": true, "promo": newPromoView(&res.Promo)}
	if len(req.SeatIDs) > 0 {
		price, _, err := h.Orders.Quote(ctx, req.SeatIDs, req.Code)
		if err != nil {
			return h.fail(c, err)
		}
		body["pricing"] = newPriceView(price, h.Orders.Currency())
	}
	return c.JSON(http.StatusOK, body)
}

type createOrderRequest struct {
	MovieID       uint64           `json:"movie_id" validate:"required"`
	Showtime      string           `json:"showtime" validate:"required,max=64"`
	HallID        uint64           `json:"hall_id" validate:"required"`
	SeatIDs       []int            `json:"seat_ids" validate:"required,min=1,max=64,dive,min=0,max=63"`
	ExpectedTotal *decimal.Decimal `json:"expected_total"`
	PromoCode     string           `json:"promo_code"`
}

// CreateOrder handles POST /v1/orders. The seats are held for the hold
// TTL; the response tells the client when payment is due.
func (h *BookingHandler) CreateOrder(c echo.Context) error {
	customerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.ExpectedTotal == nil {
		return h.fail(c, errs.Validation("expected_total is required"))
	}
	o, err := h.Orders.CreateOrder(c.Request().Context(), booking.CreateOrderInput{
		CustomerID:    customerID,
		Session:       model.SessionKey{MovieID: req.MovieID, Showtime: req.Showtime, HallID: req.HallID},
		Seats:         req.SeatIDs,
		ExpectedTotal: *req.ExpectedTotal,
		PromoCode:     req.PromoCode,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, h.orderView(o))
}

// ListOrders handles GET /v1/orders.
func (h *BookingHandler) ListOrders(c echo.Context) error {
	customerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	orders, err := h.Orders.ListOrders(c.Request().Context(), customerID)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]orderView, 0, len(orders))
	for i := range orders {
		out = append(out, h.orderView(&orders[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}

// GetOrder handles GET /v1/orders/:id.
func (h *BookingHandler) GetOrder(c echo.Context) error {
	customerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	o, err := h.Orders.GetOrder(c.Request().Context(), c.Param("id"), customerID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.orderView(o))
}

// Ticket handles GET /v1/orders/:id/ticket and answers the admission QR
// code as a PNG. Only CONFIRMED orders have a ticket.
func (h *BookingHandler) Ticket(c echo.Context) error {
	customerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	o, err := h.Orders.GetOrder(c.Request().Context(), c.Param("id"), customerID)
	if err != nil {
		return h.fail(c, err)
	}
	img, err := ticket.PNG(o, ticket.DefaultSize)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", img)
}

type paymentRequest struct {
	Method     string `json:"payment_method" validate:"required"`
	CardNumber string `json:"card_number"`
	CardHolder string `json:"card_holder"`
	WalletID   string `json:"wallet_id"`
}

// CapturePayment handles POST /v1/orders/:id/payment. A declined card
// answers 402 and the order stays payable unless the decline was final.
func (h *BookingHandler) CapturePayment(c echo.Context) error {
	customerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req paymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return h.fail(c, err)
	}
	o, err := h.Orders.CapturePayment(c.Request().Context(), c.Param("id"), customerID, payment.Details{
		Method:     model.PaymentMethod(req.Method),
		CardNumber: req.CardNumber,
		CardHolder: req.CardHolder,
		WalletID:   req.WalletID,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.orderView(o))
}

// AbandonOrder handles POST /v1/orders/:id/abandon.
func (h *BookingHandler) AbandonOrder(c echo.Context) error {
	customerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	o, err := h.Orders.AbandonOrder(c.Request().Context(), c.Param("id"), customerID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.orderView(o))
}

// CancelOrder handles DELETE /v1/orders/:id.
func (h *BookingHandler) CancelOrder(c echo.Context) error {
	customerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	res, err := h.Orders.CancelOrder(c.Request().Context(), c.Param("id"), customerID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":       res.Success,
		"refund_amount": money(res.RefundAmount),
		"currency":      h.Orders.Currency(),
		"message":       res.Message,
	})
}
