package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/http/middleware"
	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/services"
	"github.com/genderhealth/care-portal/internal/session"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"validation_failed"`
	// Localized, safe to show to users
	Message string `json:"message" example:"phone is required"`
}

// MessageResponse is a bare user-facing notification.
type MessageResponse struct {
	Message string `json:"message" example:"logged out successfully"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// tr localizes key for the request.
func tr(c *gin.Context, key string, args ...any) string {
	return i18n.T(c.Request.Context(), key, args...)
}

// writeError maps a service, session or backend error to the envelope.
func writeError(c *gin.Context, err error) {
	var ve *session.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Message)
	case errors.Is(err, services.ErrNotAuthenticated), errors.Is(err, session.ErrNotAuthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, tr(c, i18n.NotLoggedIn))
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, tr(c, i18n.Forbidden))
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		fail(c, http.StatusConflict, ErrCodeConflict, tr(c, i18n.AlreadyLoggedIn))
	case errors.Is(err, services.ErrBookingInProgress):
		fail(c, http.StatusConflict, ErrCodeConflict, tr(c, i18n.BookingInProgress))
	case errors.Is(err, services.ErrStartDateRequired):
		fail(c, http.StatusBadRequest, ErrCodeValidation, tr(c, i18n.CycleStartRequired))
	case errors.Is(err, services.ErrInvalidBooking),
		errors.Is(err, services.ErrUnknownAction),
		errors.Is(err, services.ErrInvalidPost),
		errors.Is(err, services.ErrInvalidCycle):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrNoBookingID):
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, tr(c, i18n.ServerError))
	default:
		writeBackendError(c, err)
	}
}

// writeBackendError passes backend 4xx replies through with their message
// and turns everything else into 502 (upstream) or 500 (ours).
func writeBackendError(c *gin.Context, err error) {
	var ae *backend.APIError
	if !errors.As(err, &ae) {
		if isTransport(err) {
			fail(c, http.StatusBadGateway, ErrCodeBadGateway, tr(c, i18n.RequestFailed))
			return
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, tr(c, i18n.ServerError))
		return
	}
	msg := backend.MessageOf(err, tr(c, i18n.RequestFailed))
	switch {
	case ae.Status == http.StatusUnauthorized:
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, backend.MessageOf(err, tr(c, i18n.NotLoggedIn)))
	case ae.Status == http.StatusForbidden:
		fail(c, http.StatusForbidden, ErrCodeForbidden, backend.MessageOf(err, tr(c, i18n.Forbidden)))
	case ae.Status == http.StatusNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, msg)
	case ae.Status >= 400 && ae.Status < 500:
		fail(c, ae.Status, ErrCodeRejected, msg)
	default:
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, tr(c, i18n.ServerError))
	}
}

// isTransport reports whether err means the backend was never heard from.
func isTransport(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded)
}
