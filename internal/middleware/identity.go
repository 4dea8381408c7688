package middleware

// identity.go provides typed accessors for the values Authenticate stores in
// the Echo context, so handlers do not repeat type assertions.

import (
	"github.com/labstack/echo/v4"

	"github.com/agritrust/connect-api/internal/model"
)

// SubjectID returns the authenticated account id, or false when the request
// was not authenticated.
func SubjectID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	return id, ok
}

// SubjectRole returns the authenticated subject's role, or false when absent.
func SubjectRole(c echo.Context) (model.Role, bool) {
	role, ok := c.Get(CtxRole).(model.Role)
	return role, ok
}
