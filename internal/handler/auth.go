package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agritrust/connect-api/internal/config"
	"github.com/agritrust/connect-api/internal/middleware"
	"github.com/agritrust/connect-api/internal/model"
	"github.com/agritrust/connect-api/internal/repository"
	"github.com/agritrust/connect-api/internal/utils"
)

// Lifetimes of the out-of-band account tokens.
const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
)

// RefreshCookie carries the refresh token for browser clients.
const RefreshCookie = "refreshToken"

// invalidCredentials is the uniform login failure message.  Missing account,
// inactive account and wrong password all produce this exact body so the
// endpoint cannot be used to enumerate registered emails.
const invalidCredentials = "Invalid credentials"

// AuthHandler bundles dependencies for the account lifecycle endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Accounts AccountStore
	Tokens   *utils.TokenService
}

func NewAuthHandler(cfg config.Config, accounts AccountStore, tokens *utils.TokenService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: accounts, Tokens: tokens}
}

// ----- DTOs -----

type signupReq struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
	Role            string `json:"role"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type verifyReq struct {
	Token string `json:"token"`
}

// publicUser is the account shape returned to clients.  Password hashes and
// token hashes never leave the server.
type publicUser struct {
	ID              uint64     `json:"id"`
	FullName        string     `json:"fullName"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	Role            model.Role `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toPublicUser(a model.Account) publicUser {
	return publicUser{
		ID:              a.ID,
		FullName:        a.FullName,
		Email:           a.Email,
		Phone:           a.Phone,
		Role:            a.Role,
		IsEmailVerified: a.IsEmailVerified,
		CreatedAt:       a.CreatedAt,
	}
}

// Signup handles POST /auth/signup: validates the registration form, creates
// the account with a hashed password, and issues an email verification token
// with a 24h expiry.  The raw token appears in the response only outside
// production; a production deployment delivers it out-of-band.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.FullName == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" || req.Role == "" {
		return fail(c, http.StatusBadRequest, "fullName, email, password, confirmPassword and role are required")
	}
	if req.Password != req.ConfirmPassword {
		return fail(c, http.StatusBadRequest, "passwords do not match")
	}
	if len(req.Password) < utils.MinPasswordLen {
		return fail(c, http.StatusBadRequest, "password must be at least 8 characters")
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return fail(c, http.StatusBadRequest, "unknown role")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not create account")
	}
	verifyToken, err := utils.NewOpaqueToken(32)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not create account")
	}
	verifyExp := time.Now().UTC().Add(verifyTokenTTL)

	acct := &model.Account{
		FullName:           req.FullName,
		Email:              req.Email,
		PasswordHash:       hash,
		Phone:              strings.TrimSpace(req.Phone),
		Role:               role,
		VerifyTokenHash:    utils.HashToken(verifyToken),
		VerifyTokenExpires: &verifyExp,
		IsActive:           true,
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()
	if err := h.Accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusBadRequest, "email is already registered")
		}
		return fail(c, http.StatusInternalServerError, "could not create account")
	}

	resp := echo.Map{
		"success": true,
		"message": "account created, please verify your email",
		"user":    toPublicUser(*acct),
	}
	if !h.Cfg.IsProd() {
		resp["verificationToken"] = verifyToken
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login handles POST /auth/login.  Failure is uniform for missing accounts,
// deactivated accounts and wrong passwords; an unverified email is the only
// distinguishable case, and only after the password checked out.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password are required")
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusUnauthorized, invalidCredentials)
		}
		return fail(c, http.StatusInternalServerError, "login failed")
	}
	if !acct.IsActive || !utils.VerifyPassword(acct.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, invalidCredentials)
	}
	if !acct.IsEmailVerified {
		return fail(c, http.StatusForbidden, "please verify your email address")
	}

	access, accessExp, err := h.Tokens.IssueAccess(acct.ID, acct.Role, acct.RefreshTokenVersion)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "login failed")
	}
	refresh, refreshExp, err := h.Tokens.IssueRefresh(acct.ID, acct.Role, acct.RefreshTokenVersion)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "login failed")
	}
	// Storing the new hash revokes whatever refresh token was active before:
	// one session per account, most recent login wins.
	now := time.Now().UTC()
	if err := h.Accounts.RecordLogin(ctx, acct.ID, utils.HashToken(refresh), now); err != nil {
		return fail(c, http.StatusInternalServerError, "login failed")
	}

	h.setCookie(c, middleware.AccessCookie, access, accessExp)
	h.setCookie(c, RefreshCookie, refresh, refreshExp)

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         toPublicUser(acct),
	})
}

// Logout handles POST /auth/logout.  Best-effort: when the presented access
// token decodes to a subject, that subject's stored refresh token is cleared;
// either way the auth cookies are cleared and the call reports success.
// Clearing client state must never be blocked by a server-side hiccup.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := ""
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		raw = strings.TrimPrefix(auth, "Bearer ")
	} else if ck, err := c.Cookie(middleware.AccessCookie); err == nil {
		raw = ck.Value
	}
	if raw != "" {
		if claims, ok := h.Tokens.Decode(raw); ok && claims.Kind == utils.KindAccess {
			ctx, cancel := h.opCtx(c)
			defer cancel()
			if err := h.Accounts.ClearRefresh(ctx, claims.SubjectID); err != nil {
				c.Logger().Warnf("logout: clearing refresh for %d failed: %v", claims.SubjectID, err)
			}
		}
	}
	h.clearCookie(c, middleware.AccessCookie)
	h.clearCookie(c, RefreshCookie)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "logged out"})
}

// Refresh handles POST /auth/refresh-token.  The refresh token comes from
// the refreshToken cookie or the JSON body.  A refresh token is accepted
// only when its signature verifies, the account is active, its version
// matches the account's current version, and its hash equals the stored one.
// On success a new access token is minted; the refresh token is unchanged.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(RefreshCookie); err == nil && ck.Value != "" {
		raw = ck.Value
	} else {
		var req refreshReq
		_ = c.Bind(&req)
		raw = strings.TrimSpace(req.RefreshToken)
	}
	if raw == "" {
		return fail(c, http.StatusUnauthorized, "refresh token required")
	}

	claims, err := h.Tokens.Verify(raw, utils.KindRefresh)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh token")
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()
	acct, err := h.Accounts.GetByID(ctx, claims.SubjectID)
	if err != nil || !acct.IsActive {
		return fail(c, http.StatusUnauthorized, "invalid refresh token")
	}
	if claims.Version != acct.RefreshTokenVersion || utils.HashToken(raw) != acct.RefreshTokenHash {
		return fail(c, http.StatusUnauthorized, "invalid refresh token")
	}

	access, _, err := h.Tokens.IssueAccess(acct.ID, acct.Role, acct.RefreshTokenVersion)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not issue access token")
	}
	// Fresh access cookie with a short max-age regardless of the configured
	// access TTL.
	h.setCookie(c, middleware.AccessCookie, access, time.Now().UTC().Add(15*time.Minute))

	return c.JSON(http.StatusOK, echo.Map{"success": true, "accessToken": access})
}

// ForgotPassword handles POST /auth/forgot-password.  The response is the
// same whether or not the email belongs to an account, so the endpoint
// cannot be used for enumeration.  Outside production the raw reset token
// and link are included for testing when an account matched.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return fail(c, http.StatusBadRequest, "email is required")
	}

	resp := echo.Map{
		"success": true,
		"message": "if that email is registered, a reset link has been sent",
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()
	acct, err := h.Accounts.GetByEmail(ctx, email)
	if err != nil || !acct.IsActive {
		return c.JSON(http.StatusOK, resp)
	}

	resetToken, err := utils.NewOpaqueToken(32)
	if err != nil {
		return c.JSON(http.StatusOK, resp)
	}
	expires := time.Now().UTC().Add(resetTokenTTL)
	if err := h.Accounts.SetResetToken(ctx, acct.ID, utils.HashToken(resetToken), expires); err != nil {
		c.Logger().Warnf("forgot-password: storing token for %d failed: %v", acct.ID, err)
		return c.JSON(http.StatusOK, resp)
	}

	if !h.Cfg.IsProd() {
		resp["resetToken"] = resetToken
		resp["resetUrl"] = h.Cfg.PublicBaseURL + "/reset-password?token=" + resetToken
	}
	return c.JSON(http.StatusOK, resp)
}

// ResetPassword handles POST /auth/reset-password.  Consuming the token
// hashes the new password, bumps the refresh token version and clears the
// stored session in one atomic store write.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Token) == "" {
		return fail(c, http.StatusBadRequest, "reset token is required")
	}
	if len(req.Password) < utils.MinPasswordLen {
		return fail(c, http.StatusBadRequest, "password must be at least 8 characters")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not reset password")
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()
	err = h.Accounts.ResetPassword(ctx, utils.HashToken(req.Token), hash, time.Now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusBadRequest, "invalid or expired reset token")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not reset password")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "password updated"})
}

// VerifyEmail handles POST /auth/verify-email, consuming the verification
// token issued at signup.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return fail(c, http.StatusBadRequest, "verification token is required")
	}

	ctx, cancel := h.opCtx(c)
	defer cancel()
	err := h.Accounts.VerifyEmail(ctx, utils.HashToken(req.Token), time.Now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusBadRequest, "invalid or expired verification token")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not verify email")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "email verified"})
}

// opCtx bounds every store call made by a flow.
func (h *AuthHandler) opCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

func (h *AuthHandler) setCookie(c echo.Context, name, value string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires) / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context, name string) {
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
