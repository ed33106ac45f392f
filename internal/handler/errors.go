package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/reservation"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Seats   []int    `json:"seats,omitempty"`
	Labels  []string `json:"seat_labels,omitempty"`
}

// respondError maps an error kind to its HTTP status. Unknown errors are
// logged with their stack and hidden behind a 500.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", status,
			"error", err,
			"stack", errs.ExtractStackLines(err, 12),
		)
	}
	return c.JSON(status, body)
}

func classify(err error) (int, errorBody) {
	switch {
	case errs.Is(err, errs.ErrConflict):
		b := errorBody{Error: "conflict", Message: "some seats are no longer available"}
		if seats, ok := reservation.ConflictSeats(err); ok {
			b.Seats = seats.Ints()
			b.Labels = seats.Labels()
		}
		return http.StatusConflict, b
	case errs.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, errorBody{Error: "validation_failed", Message: err.Error()}
	case errs.Is(err, errs.ErrPayment):
		return http.StatusPaymentRequired, errorBody{Error: "payment_failed", Message: err.Error()}
	case errs.Is(err, errs.ErrCancelWindowClosed):
		return http.StatusUnprocessableEntity, errorBody{Error: "cancel_window_closed", Message: err.Error()}
	case errs.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Error: "invalid_state", Message: err.Error()}
	case errs.Is(err, errs.ErrHoldExpired):
		return http.StatusGone, errorBody{Error: "hold_expired", Message: err.Error()}
	case errs.Is(err, errs.ErrNotFound), errs.Is(err, errs.ErrHoldNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()}
	case errs.Is(err, errs.ErrTransient):
		return http.StatusServiceUnavailable, errorBody{Error: "unavailable", Message: "service temporarily unavailable, please retry"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"}
}
