package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agritrust/connect-api/internal/config"
	"github.com/agritrust/connect-api/internal/middleware"
	"github.com/agritrust/connect-api/internal/repository"
)

// phoneRe accepts international numbers: optional +, 7 to 15 digits.
var phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// UserHandler serves the profile endpoints for the authenticated subject.
type UserHandler struct {
	Cfg      config.Config
	Accounts AccountStore
}

func NewUserHandler(cfg config.Config, accounts AccountStore) *UserHandler {
	return &UserHandler{Cfg: cfg, Accounts: accounts}
}

type updateProfileReq struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
}

// Profile handles GET /user/profile.
func (h *UserHandler) Profile(c echo.Context) error {
	id, ok := middleware.SubjectID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	ctx, cancel := h.opCtx(c)
	defer cancel()
	acct, err := h.Accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "account not found")
		}
		return fail(c, http.StatusInternalServerError, "could not load profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toPublicUser(acct)})
}

// UpdateProfile handles PUT /user/profile.  Only the display name and phone
// are mutable; both are re-validated server side.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	id, ok := middleware.SubjectID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()
	acct, err := h.Accounts.GetByID(ctx, id)
	if err != nil {
		return fail(c, http.StatusNotFound, "account not found")
	}

	fullName := acct.FullName
	if req.FullName != nil {
		fullName = strings.TrimSpace(*req.FullName)
		if len(fullName) < 2 {
			return fail(c, http.StatusBadRequest, "fullName must be at least 2 characters")
		}
	}
	phone := acct.Phone
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
		if phone != "" && !phoneRe.MatchString(phone) {
			return fail(c, http.StatusBadRequest, "phone number format is invalid")
		}
	}

	if err := h.Accounts.UpdateProfile(ctx, id, fullName, phone); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "account not found")
		}
		return fail(c, http.StatusInternalServerError, "could not update profile")
	}
	acct.FullName = fullName
	acct.Phone = phone
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toPublicUser(acct)})
}

// Deactivate handles DELETE /user.  The account is soft-deleted: is_active
// flips off, the stored refresh token is cleared and the token version is
// bumped, so every outstanding credential stops working at its next
// server-side check.
func (h *UserHandler) Deactivate(c echo.Context) error {
	id, ok := middleware.SubjectID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	ctx, cancel := h.opCtx(c)
	defer cancel()
	if err := h.Accounts.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "account not found")
		}
		return fail(c, http.StatusInternalServerError, "could not deactivate account")
	}

	for _, name := range []string{middleware.AccessCookie, RefreshCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.Cfg.IsProd(),
			SameSite: http.SameSiteStrictMode,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "account deactivated"})
}

func (h *UserHandler) opCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
