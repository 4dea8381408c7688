package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/agritrust/connect-api/internal/utils"
)

// AccessCookie is the cookie the auth flows use to carry the access token
// for browser clients.  The Authorization header takes precedence when both
// are present.
const AccessCookie = "accessToken"

// Context keys populated by Authenticate for downstream middleware and
// handlers.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxClaims = "claims"
)

// Authenticate returns an Echo middleware that gates a route behind a valid
// access token.  The token is read from the Authorization header first and
// the accessToken cookie second.  All failures produce the same 401 body so
// a caller cannot tell a missing token from an expired or forged one; the
// precise reason is only logged.
func Authenticate(ts *utils.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, source := extractToken(c)
			if raw == "" {
				c.Logger().Debug("auth: no token presented")
				return unauthorized(c)
			}
			claims, err := ts.Verify(raw, utils.KindAccess)
			if err != nil {
				c.Logger().Debugf("auth: %s token rejected: %v", source, err)
				return unauthorized(c)
			}
			c.Set(CtxUserID, claims.SubjectID)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxClaims, claims)
			return next(c)
		}
	}
}

// extractToken pulls the raw access token from the request, reporting where
// it came from for logging.
func extractToken(c echo.Context) (raw, source string) {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), "bearer"
	}
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value, "cookie"
	}
	return "", ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"message": "authentication required",
	})
}
