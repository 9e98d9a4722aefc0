// Menstrual cycle tracker endpoints.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/services"
)

// CalculateCycle godoc
// @ID          calculateCycle
// @Summary     Calculate a menstrual cycle
// @Description Validates the start date locally; the period end date sent to the backend is start + periodLength - 1. Lengths default to 28 and 5 days.
// @Tags        Health
// @Accept      json
// @Produce     json
// @Param       body body services.CycleInput true "Cycle"
// @Success     200 {object} object "Calendar built by the backend"
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     401 {object} handlers.ErrorResponse
// @Failure     502 {object} handlers.ErrorResponse
// @Router      /health/cycle [post]
func (h *Handlers) CalculateCycle(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var in services.CycleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	body, err := h.cycle.Calculate(c.Request.Context(), s, in)
	if err != nil {
		writeCycleError(c, err)
		return
	}
	ok(c, http.StatusOK, body)
}

// CycleCalendar godoc
// @ID          cycleCalendar
// @Summary     Calendar of the caller's latest cycle
// @Tags        Health
// @Produce     json
// @Success     200 {object} object "Backend reply"
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /health/cycle/calendar [get]
func (h *Handlers) CycleCalendar(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	body, err := h.cycle.Calendar(c.Request.Context(), s)
	if err != nil {
		writeCycleError(c, err)
		return
	}
	ok(c, http.StatusOK, body)
}

// writeCycleError uses the tracker's own wording for backend failures.
func writeCycleError(c *gin.Context, err error) {
	var ae *backend.APIError
	switch {
	case !errors.As(err, &ae):
		writeError(c, err)
	case ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden:
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, tr(c, i18n.CycleUnauthorized))
	case ae.Status >= 500:
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, tr(c, i18n.CycleFailed))
	default:
		fail(c, ae.Status, ErrCodeRejected, backend.MessageOf(err, tr(c, i18n.CycleFailed)))
	}
}
