// Staff dashboard endpoints. The router gates them with RequireRole; the
// service checks the role again.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/backend"
)

// ManageBookings godoc
// @ID          manageBookings
// @Summary     All STI bookings (staff)
// @Tags        Staff
// @Produce     json
// @Param       name      query string false "Customer name"
// @Param       status    query string false "Booking status"
// @Param       sort      query string false "Sort order"
// @Param       startDate query string false "From (YYYY-MM-DD)"
// @Param       endDate   query string false "To (YYYY-MM-DD)"
// @Param       page      query int    false "0-based page"
// @Param       size      query int    false "Page size (default 10)"
// @Success     200 {object} object "Backend page"
// @Failure     401 {object} handlers.ErrorResponse
// @Failure     403 {object} handlers.ErrorResponse
// @Router      /staff/bookings [get]
func (h *Handlers) ManageBookings(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	p, size := page(c)
	h.forward(c)(h.staff.List(c.Request.Context(), s, backend.ManageQuery{
		Name:      query(c, "name"),
		Status:    query(c, "status"),
		Sort:      query(c, "sort"),
		StartDate: query(c, "startDate"),
		EndDate:   query(c, "endDate"),
		Page:      p,
		Size:      size,
	}))
}

// TransitionBooking godoc
// @ID          transitionBooking
// @Summary     Move a booking to another state (staff)
// @Tags        Staff
// @Produce     json
// @Param       id     path int    true "Booking ID"
// @Param       action path string true "Transition" Enums(confirm, pending-result, complete, deny, no-show, resulted-at)
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse "Unknown action"
// @Failure     403 {object} handlers.ErrorResponse
// @Router      /staff/bookings/{id}/{action} [put]
func (h *Handlers) TransitionBooking(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	h.forward(c)(h.staff.Transition(c.Request.Context(), s, id, c.Param("action")))
}

// EnterResult godoc
// @ID          enterResult
// @Summary     Record a test result (staff)
// @Tags        Staff
// @Accept      json
// @Produce     json
// @Param       id   path int    true "Booking ID"
// @Param       body body object true "Result document"
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     403 {object} handlers.ErrorResponse
// @Router      /staff/bookings/{id}/result [post]
func (h *Handlers) EnterResult(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	var doc json.RawMessage
	if err := c.ShouldBindJSON(&doc); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.forward(c)(h.staff.EnterResult(c.Request.Context(), s, id, doc))
}

// UploadResultPDF godoc
// @ID          uploadResultPdf
// @Summary     Attach the result PDF (staff)
// @Tags        Staff
// @Accept      multipart/form-data
// @Produce     json
// @Param       id      path     int  true "Booking ID"
// @Param       pdfFile formData file true "Result PDF"
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     403 {object} handlers.ErrorResponse
// @Router      /staff/bookings/{id}/result-pdf [put]
func (h *Handlers) UploadResultPDF(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	f, closeFn, err := formFile(c, "pdfFile", true)
	if err != nil {
		return
	}
	defer closeFn()
	h.forward(c)(h.staff.UploadResultPDF(c.Request.Context(), s, id, f))
}
