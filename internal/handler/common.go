package handler // handler defines http handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/moran1024a/Library-Control-web/internal/config"
	q "github.com/moran1024a/Library-Control-web/internal/queue"
	queue_publisher "github.com/moran1024a/Library-Control-web/internal/service"
)

var (
	phoneRe = regexp.MustCompile(`^\+?[0-9\-]{6,20}$`)
	// at least 6 chars, at least one letter and one digit
	passwordLetterRe = regexp.MustCompile(`[A-Za-z]`)
	passwordDigitRe  = regexp.MustCompile(`[0-9]`)
)

// validate is the shared request validator.  Two custom rules cover what
// the tag library cannot express: "phone" for loose international phone
// numbers and "userpassword" for the minimum password shape.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("userpassword", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) >= 6 && passwordLetterRe.MatchString(s) && passwordDigitRe.MatchString(s)
	})
	return v
}

// getUserID extracts the user_id stored by the JWT middleware and converts
// it to uint64.  JWT numeric claims decode as float64, but accept the
// other common representations too.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the authenticated request carries the admin role.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "admin"
}

// failJSON writes the structured failure outcome used across the API.
func failJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}

// internalError maps an unexpected persistence error to a generic failure
// outcome.  The raw error text is only exposed when debug mode is on.
func internalError(c echo.Context, cfg config.Config, fallback string, err error) error {
	msg := fallback
	if cfg.Debug && err != nil {
		msg = err.Error()
	}
	return failJSON(c, http.StatusInternalServerError, msg)
}

// auditAction publishes an audit event in the background.  Called only
// after a successful mutation, never inside a transaction; failures are
// deliberately dropped.
func auditAction(userID *uint64, action string, details interface{}) {
	body, err := json.Marshal(details)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishAuditAction(ctx, q.AuditActionEvent{
			UserID:     userID,
			Action:     action,
			Details:    string(body),
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}()
}
