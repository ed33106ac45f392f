package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RoleCustomer is the only role allowed to place orders.
const RoleCustomer = "CUSTOMER"

// RequireRole aborts with 403 unless the role stored by JWTAuth is one of
// roles. Comparison ignores case.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if !allowed[strings.ToUpper(role)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
