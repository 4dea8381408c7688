package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports whether the service can reach its database.  Load
// balancers and monitors poll this endpoint.
type HealthHandler struct {
	DB     *sql.DB
	DBName string
}

func NewHealthHandler(db *sql.DB, dbName string) *HealthHandler {
	return &HealthHandler{DB: db, DBName: dbName}
}

// Check handles GET /health: 200 while the database answers a ping within a
// short deadline, 503 otherwise.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		c.Logger().Errorf("health: database ping failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":   "unavailable",
			"database": echo.Map{"name": h.DBName, "status": "disconnected"},
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "ok",
		"database": echo.Map{"name": h.DBName, "status": "connected"},
	})
}
