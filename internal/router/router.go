package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/agritrust/connect-api/internal/config"
	"github.com/agritrust/connect-api/internal/handler"
	"github.com/agritrust/connect-api/internal/middleware"
	"github.com/agritrust/connect-api/internal/model"
	"github.com/agritrust/connect-api/internal/utils"
)

// Deps collects everything the routes need.  The composition root in
// cmd/server builds it once; nothing here reaches for globals.
type Deps struct {
	Cfg      config.Config
	Redis    *redis.Client
	Tokens   *utils.TokenService
	Accounts middleware.AccountSource
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Claim    *handler.ClaimHandler
	Health   *handler.HealthHandler
}

// Register wires all endpoints.
//
// The /auth group is public but rate limited.  Account-scoped groups run
// Authenticate followed by RequireActive, so a deactivated account is
// rejected on its next request even while its access token is still
// cryptographically valid.
func Register(e *echo.Echo, d Deps) {
	e.GET("/health", d.Health.Check)

	auth := e.Group("/auth")
	auth.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis))
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/refresh-token", d.Auth.Refresh)
	auth.POST("/forgot-password", d.Auth.ForgotPassword)
	auth.POST("/reset-password", d.Auth.ResetPassword)
	auth.POST("/verify-email", d.Auth.VerifyEmail)

	authn := middleware.Authenticate(d.Tokens)
	active := middleware.RequireActive(d.Accounts)

	user := e.Group("/user", authn, active)
	user.GET("/profile", d.User.Profile)
	user.PUT("/profile", d.User.UpdateProfile)
	user.DELETE("", d.User.Deactivate)

	claims := e.Group("/claims", authn, active)
	claims.POST("/submit", d.Claim.Submit, middleware.RequireRole(model.RoleFarmer))
	claims.GET("", d.Claim.List)
	claims.GET("/:id", d.Claim.Get)
	claims.PATCH("/:id/status", d.Claim.UpdateStatus, middleware.RequireRole(model.RoleAdmin))
}
