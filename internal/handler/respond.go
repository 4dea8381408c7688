package handler

import "github.com/labstack/echo/v4"

// FieldError is one entry of the aggregated validation report returned by
// the claim intake endpoint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// fail writes the uniform error envelope.  Every error response carries a
// success flag and a human-readable message; raw driver errors never reach
// the client.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// failFields writes a validation failure carrying the full field-indexed
// violation list, so one round-trip tells the caller everything wrong.
func failFields(c echo.Context, status int, msg string, fields []FieldError) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg, "errors": fields})
}
