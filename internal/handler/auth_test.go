package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agritrust/connect-api/internal/config"
	"github.com/agritrust/connect-api/internal/model"
	"github.com/agritrust/connect-api/internal/repository"
	"github.com/agritrust/connect-api/internal/utils"
)

// fakeAccounts is an in-memory AccountStore mirroring the repository's
// semantics closely enough for handler tests.
type fakeAccounts struct {
	nextID   uint64
	byID     map[uint64]*model.Account
	failWith error // when set, every method returns this
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{nextID: 1, byID: map[uint64]*model.Account{}}
}

func (f *fakeAccounts) findByEmail(email string) *fakeAccountRef {
	for id, a := range f.byID {
		if a.Email == email {
			return &fakeAccountRef{id: id, acct: a}
		}
	}
	return nil
}

type fakeAccountRef struct {
	id   uint64
	acct *model.Account
}

func (f *fakeAccounts) Create(_ context.Context, a *model.Account) error {
	if f.failWith != nil {
		return f.failWith
	}
	if f.findByEmail(a.Email) != nil {
		return repository.ErrEmailExists
	}
	a.ID = f.nextID
	a.CreatedAt = time.Now().UTC()
	f.nextID++
	cp := *a
	f.byID[a.ID] = &cp
	return nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (model.Account, error) {
	if f.failWith != nil {
		return model.Account{}, f.failWith
	}
	if ref := f.findByEmail(email); ref != nil {
		return *ref.acct, nil
	}
	return model.Account{}, repository.ErrNotFound
}

func (f *fakeAccounts) GetByID(_ context.Context, id uint64) (model.Account, error) {
	if f.failWith != nil {
		return model.Account{}, f.failWith
	}
	if a, ok := f.byID[id]; ok {
		return *a, nil
	}
	return model.Account{}, repository.ErrNotFound
}

func (f *fakeAccounts) RecordLogin(_ context.Context, id uint64, refreshHash string, at time.Time) error {
	a, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.RefreshTokenHash = refreshHash
	a.LastLogin = &at
	return nil
}

func (f *fakeAccounts) ClearRefresh(_ context.Context, id uint64) error {
	a, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.RefreshTokenHash = ""
	return nil
}

func (f *fakeAccounts) VerifyEmail(_ context.Context, tokenHash string, now time.Time) error {
	for _, a := range f.byID {
		if a.VerifyTokenHash == tokenHash && tokenHash != "" &&
			a.VerifyTokenExpires != nil && a.VerifyTokenExpires.After(now) {
			a.IsEmailVerified = true
			a.VerifyTokenHash = ""
			a.VerifyTokenExpires = nil
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeAccounts) SetResetToken(_ context.Context, id uint64, tokenHash string, expires time.Time) error {
	a, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ResetTokenHash = tokenHash
	a.ResetTokenExpires = &expires
	return nil
}

func (f *fakeAccounts) ResetPassword(_ context.Context, tokenHash, newPasswordHash string, now time.Time) error {
	for _, a := range f.byID {
		if a.ResetTokenHash == tokenHash && tokenHash != "" &&
			a.ResetTokenExpires != nil && a.ResetTokenExpires.After(now) {
			a.PasswordHash = newPasswordHash
			a.ResetTokenHash = ""
			a.ResetTokenExpires = nil
			a.RefreshTokenHash = ""
			a.RefreshTokenVersion++
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, id uint64, fullName, phone string) error {
	a, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.FullName = fullName
	a.Phone = phone
	return nil
}

func (f *fakeAccounts) Deactivate(_ context.Context, id uint64) error {
	a, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.IsActive = false
	a.RefreshTokenHash = ""
	a.RefreshTokenVersion++
	return nil
}

// ----- harness -----

func testConfig() config.Config {
	return config.Config{
		Env:           "test",
		BcryptCost:    bcrypt.MinCost,
		TokenIssuer:   "agritrust-connect",
		TokenAudience: "agritrust-clients",
		PublicBaseURL: "http://localhost:3000",
	}
}

func newAuthHarness(t *testing.T) (*echo.Echo, *AuthHandler, *fakeAccounts) {
	t.Helper()
	cfg := testConfig()
	accounts := newFakeAccounts()
	tokens := utils.NewTokenService(
		"access-secret", "refresh-secret",
		cfg.TokenIssuer, cfg.TokenAudience,
		15*time.Minute, 7*24*time.Hour,
	)
	h := NewAuthHandler(cfg, accounts, tokens)
	e := echo.New()
	e.POST("/auth/signup", h.Signup)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/logout", h.Logout)
	e.POST("/auth/refresh-token", h.Refresh)
	e.POST("/auth/forgot-password", h.ForgotPassword)
	e.POST("/auth/reset-password", h.ResetPassword)
	e.POST("/auth/verify-email", h.VerifyEmail)
	return e, h, accounts
}

func postJSON(e *echo.Echo, path string, body any, configure ...func(*http.Request)) *httptest.ResponseRecorder {
	var payload string
	if s, ok := body.(string); ok {
		payload = s
	} else {
		b, _ := json.Marshal(body)
		payload = string(b)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, fn := range configure {
		fn(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// signupAndVerify registers a farmer account and consumes the verification
// token, returning the account's email.
func signupAndVerify(t *testing.T, e *echo.Echo, email string) {
	t.Helper()
	rec := postJSON(e, "/auth/signup", map[string]string{
		"fullName":        "Asha Pillai",
		"email":           email,
		"password":        "Secret123!",
		"confirmPassword": "Secret123!",
		"phone":           "+919876543210",
		"role":            "farmer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	token, _ := body["verificationToken"].(string)
	require.NotEmpty(t, token, "non-prod signup should expose the verification token")

	rec = postJSON(e, "/auth/verify-email", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func login(t *testing.T, e *echo.Echo, email, password string) (access, refresh string) {
	t.Helper()
	rec := postJSON(e, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	access, _ = body["accessToken"].(string)
	refresh, _ = body["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

// ----- signup -----

func TestSignupCreatesUnverifiedAccount(t *testing.T) {
	e, _, accounts := newAuthHarness(t)

	rec := postJSON(e, "/auth/signup", map[string]string{
		"fullName":        "Asha Pillai",
		"email":           "Asha@Example.COM",
		"password":        "Secret123!",
		"confirmPassword": "Secret123!",
		"role":            "farmer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	acct, err := accounts.GetByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err, "email should have been lowercased before storage")
	assert.False(t, acct.IsEmailVerified)
	assert.NotEmpty(t, acct.VerifyTokenHash)
	assert.NotEqual(t, "Secret123!", acct.PasswordHash)

	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "farmer", user["role"])
	assert.NotContains(t, rec.Body.String(), acct.PasswordHash)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	e, _, _ := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")

	rec := postJSON(e, "/auth/signup", map[string]string{
		"fullName":        "Other Person",
		"email":           "asha@example.com",
		"password":        "Secret123!",
		"confirmPassword": "Secret123!",
		"role":            "buyer",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already registered")
}

func TestSignupValidation(t *testing.T) {
	e, _, _ := newAuthHarness(t)

	base := func() map[string]string {
		return map[string]string{
			"fullName":        "Asha Pillai",
			"email":           "asha@example.com",
			"password":        "Secret123!",
			"confirmPassword": "Secret123!",
			"role":            "farmer",
		}
	}

	cases := []struct {
		name   string
		mutate func(map[string]string)
		want   string
	}{
		{"missing email", func(m map[string]string) { m["email"] = "" }, "required"},
		{"password mismatch", func(m map[string]string) { m["confirmPassword"] = "Different1!" }, "do not match"},
		{"short password", func(m map[string]string) { m["password"] = "Ab1!"; m["confirmPassword"] = "Ab1!" }, "at least 8"},
		{"unknown role", func(m map[string]string) { m["role"] = "wizard" }, "unknown role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base()
			tc.mutate(req)
			rec := postJSON(e, "/auth/signup", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

// ----- login -----

func TestLoginFailureIsUniform(t *testing.T) {
	e, _, accounts := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")

	unknown := postJSON(e, "/auth/login", map[string]string{"email": "nobody@example.com", "password": "Secret123!"})
	wrongPass := postJSON(e, "/auth/login", map[string]string{"email": "asha@example.com", "password": "WrongPass1!"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	// Byte-identical bodies: the endpoint must not reveal whether the email
	// is registered.
	assert.Equal(t, unknown.Body.String(), wrongPass.Body.String())

	ref := accounts.findByEmail("asha@example.com")
	require.NotNil(t, ref)
	ref.acct.IsActive = false
	deactivated := postJSON(e, "/auth/login", map[string]string{"email": "asha@example.com", "password": "Secret123!"})
	assert.Equal(t, http.StatusUnauthorized, deactivated.Code)
	assert.Equal(t, unknown.Body.String(), deactivated.Body.String())
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	e, _, _ := newAuthHarness(t)

	rec := postJSON(e, "/auth/signup", map[string]string{
		"fullName":        "Asha Pillai",
		"email":           "asha@example.com",
		"password":        "Secret123!",
		"confirmPassword": "Secret123!",
		"role":            "farmer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(e, "/auth/login", map[string]string{"email": "asha@example.com", "password": "Secret123!"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "verify your email")
}

func TestLoginIssuesTokensAndCookies(t *testing.T) {
	e, h, accounts := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")

	rec := postJSON(e, "/auth/login", map[string]string{"email": "asha@example.com", "password": "Secret123!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	access := body["accessToken"].(string)
	refresh := body["refreshToken"].(string)

	claims, err := h.Tokens.Verify(access, utils.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, model.RoleFarmer, claims.Role)

	// Stored hash must match the refresh token that was handed out.
	acct, err := accounts.GetByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, utils.HashToken(refresh), acct.RefreshTokenHash)
	assert.NotNil(t, acct.LastLogin)

	var names []string
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
		assert.True(t, ck.HttpOnly, "cookie %s must be HttpOnly", ck.Name)
	}
	assert.Contains(t, names, "accessToken")
	assert.Contains(t, names, RefreshCookie)
}

// ----- refresh -----

func TestRefreshRotatesAccessOnly(t *testing.T) {
	e, h, _ := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")
	_, refresh := login(t, e, "asha@example.com", "Secret123!")

	rec := postJSON(e, "/auth/refresh-token", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	access, _ := body["accessToken"].(string)
	require.NotEmpty(t, access)
	_, err := h.Tokens.Verify(access, utils.KindAccess)
	assert.NoError(t, err)
	assert.NotContains(t, body, "refreshToken")
}

func TestRefreshViaCookie(t *testing.T) {
	e, _, _ := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")
	_, refresh := login(t, e, "asha@example.com", "Secret123!")

	rec := postJSON(e, "/auth/refresh-token", map[string]string{}, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: RefreshCookie, Value: refresh})
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSecondLoginRevokesFirstRefreshToken(t *testing.T) {
	e, _, _ := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")

	_, r1 := login(t, e, "asha@example.com", "Secret123!")
	_, r2 := login(t, e, "asha@example.com", "Secret123!")

	rec := postJSON(e, "/auth/refresh-token", map[string]string{"refreshToken": r1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "earlier session's refresh token must be dead")

	rec = postJSON(e, "/auth/refresh-token", map[string]string{"refreshToken": r2})
	assert.Equal(t, http.StatusOK, rec.Code, "latest session's refresh token must still work")
}

func TestRefreshRejectsGarbageAndDeactivated(t *testing.T) {
	e, _, accounts := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")
	_, refresh := login(t, e, "asha@example.com", "Secret123!")

	rec := postJSON(e, "/auth/refresh-token", map[string]string{"refreshToken": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(e, "/auth/refresh-token", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, accounts.Deactivate(context.Background(), 1))
	rec = postJSON(e, "/auth/refresh-token", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deactivation must kill the session")
}

// ----- logout -----

func TestLogoutClearsSessionAndCookies(t *testing.T) {
	e, _, accounts := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")
	access, refresh := login(t, e, "asha@example.com", "Secret123!")

	rec := postJSON(e, "/auth/logout", map[string]string{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	acct, err := accounts.GetByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.Empty(t, acct.RefreshTokenHash)

	for _, ck := range rec.Result().Cookies() {
		assert.Empty(t, ck.Value)
		assert.Negative(t, ck.MaxAge)
	}

	rec = postJSON(e, "/auth/refresh-token", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutWithoutTokenStillSucceeds(t *testing.T) {
	e, _, _ := newAuthHarness(t)
	rec := postJSON(e, "/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ----- password reset -----

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	e, h, _ := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")
	h.Cfg.Env = "prod" // dev responses include the token, which would differ

	known := postJSON(e, "/auth/forgot-password", map[string]string{"email": "asha@example.com"})
	unknown := postJSON(e, "/auth/forgot-password", map[string]string{"email": "nobody@example.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestPasswordResetFlow(t *testing.T) {
	e, _, _ := newAuthHarness(t)
	signupAndVerify(t, e, "asha@example.com")
	_, oldRefresh := login(t, e, "asha@example.com", "Secret123!")

	rec := postJSON(e, "/auth/forgot-password", map[string]string{"email": "asha@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	resetToken, _ := body["resetToken"].(string)
	require.NotEmpty(t, resetToken, "non-prod response should expose the reset token")

	rec = postJSON(e, "/auth/reset-password", map[string]string{
		"token":    resetToken,
		"password": "NewSecret456!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Old credentials are out, new ones are in.
	rec = postJSON(e, "/auth/login", map[string]string{"email": "asha@example.com", "password": "Secret123!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	login(t, e, "asha@example.com", "NewSecret456!")

	// Pre-reset sessions are revoked by the version bump.
	rec = postJSON(e, "/auth/refresh-token", map[string]string{"refreshToken": oldRefresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Tokens are single use.
	rec = postJSON(e, "/auth/reset-password", map[string]string{
		"token":    resetToken,
		"password": "ThirdSecret789!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPasswordRejectsBadToken(t *testing.T) {
	e, _, _ := newAuthHarness(t)
	rec := postJSON(e, "/auth/reset-password", map[string]string{
		"token":    "deadbeef",
		"password": "NewSecret456!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired")
}

// ----- email verification -----

func TestVerifyEmailRejectsReuseAndGarbage(t *testing.T) {
	e, _, _ := newAuthHarness(t)

	rec := postJSON(e, "/auth/signup", map[string]string{
		"fullName":        "Asha Pillai",
		"email":           "asha@example.com",
		"password":        "Secret123!",
		"confirmPassword": "Secret123!",
		"role":            "farmer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["verificationToken"].(string)

	rec = postJSON(e, "/auth/verify-email", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(e, "/auth/verify-email", map[string]string{"token": token})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "verification tokens are single use")

	rec = postJSON(e, "/auth/verify-email", map[string]string{"token": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
