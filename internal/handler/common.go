package handler // handler holds the HTTP layer of the booking service

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// getUserID extracts the customer id the JWT middleware stored on the context.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get(middleware.CtxUserID) // set by middleware.JWTAuth
	switch t := v.(type) {
	case uint64:
		if t > 0 {
			return t, nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case int:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errs.New("invalid user_id in context")
}

// unauthorized matches the body the JWT middleware sends.
func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// bindAndValidate decodes the body into req and runs the struct tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errs.Validation("invalid request body")
	}
	return c.Validate(req)
}

// sessionFromQuery reads movie_id, showtime and hall_id query parameters.
func sessionFromQuery(c echo.Context) (model.SessionKey, error) {
	var k model.SessionKey
	err := echo.QueryParamsBinder(c).
		Uint64("movie_id", &k.MovieID).
		String("showtime", &k.Showtime).
		Uint64("hall_id", &k.HallID).
		BindError()
	if err != nil {
		return model.SessionKey{}, errs.Validation("movie_id and hall_id must be positive integers")
	}
	k = k.Normalize()
	return k, k.Validate()
}
