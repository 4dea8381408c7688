package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agritrust/connect-api/internal/model"
)

// RequireRole returns a middleware that enforces that the authenticated
// subject's role is in the allowed set.  It assumes Authenticate ran earlier
// and stored the role in context.  The 403 body names the roles that would
// have been accepted; that list is static authorization metadata, not a
// secret.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed[r] = true
		names = append(names, string(r))
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(model.Role)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{
					"success":       false,
					"message":       "insufficient role",
					"requiredRoles": names,
				})
			}
			return next(c)
		}
	}
}

// AccountSource is the slice of the credential store the liveness check
// needs.
type AccountSource interface {
	GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// RequireActive rejects requests whose subject account has been deactivated
// or deleted, even when the presented access token is still cryptographically
// valid.  This costs one store read per request on the routes it wraps;
// account-scoped routes accept that cost so deactivation takes effect
// immediately instead of after the access token expires.
func RequireActive(accounts AccountSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get(CtxUserID).(uint64)
			if !ok {
				return unauthorized(c)
			}
			acct, err := accounts.GetByID(c.Request().Context(), id)
			if err != nil || !acct.IsActive {
				c.Logger().Debugf("auth: subject %d inactive or missing", id)
				return unauthorized(c)
			}
			return next(c)
		}
	}
}
