// STI booking endpoints for customers. Submitting a booking with an online
// payment method stashes the pending payment in the session and returns the
// gateway URL to redirect to.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/http/middleware"
	"github.com/genderhealth/care-portal/internal/services"
)

// HeaderIdempotentReplay marks a response served from a recorded submission.
const HeaderIdempotentReplay = "Idempotent-Replay"

// ListPackages godoc
// @ID          listStiPackages
// @Summary     STI test packages
// @Tags        Bookings
// @Produce     json
// @Success     200 {object} object "Backend reply"
// @Failure     502 {object} handlers.ErrorResponse
// @Router      /sti/packages [get]
func (h *Handlers) ListPackages(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	h.forward(c)(h.bookings.Packages(c.Request.Context(), s))
}

// CheckLimit godoc
// @ID          checkStiLimit
// @Summary     Check slot capacity
// @Tags        Bookings
// @Produce     json
// @Param       serviceId       query int    true "STI package ID" example(3)
// @Param       bookingDateTime query string true "Slot start"     example(2026-11-02T09:30)
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Router      /sti/check-limit [get]
func (h *Handlers) CheckLimit(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	serviceID, _ := strconv.ParseInt(query(c, "serviceId"), 10, 64)
	h.forward(c)(h.bookings.CheckLimit(c.Request.Context(), s, serviceID, query(c, "bookingDateTime")))
}

// CreateSTIBooking godoc
// @ID          createStiBooking
// @Summary     Book an STI test
// @Description Creates the booking upstream. For VNPAY or PAYPAL the pending payment is kept in the session and redirectUrl points at the gateway; if the URL could not be obtained, paymentPending is true and POST /payment/retry finishes the job.
// @Description A repeated Idempotency-Key in the same session returns the recorded outcome with 200 and Idempotent-Replay: true.
// @Tags        Bookings
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key header string false "Client generated key" example(5f1c8d7e-booking-1)
// @Param       body body services.STIBookingInput true "Booking"
// @Success     201 {object} services.BookingOutcome
// @Success     200 {object} services.BookingOutcome "Replayed"
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     401 {object} handlers.ErrorResponse
// @Failure     502 {object} handlers.ErrorResponse
// @Router      /bookings/sti [post]
func (h *Handlers) CreateSTIBooking(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var in services.STIBookingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	out, replayed, err := h.bookings.CreateSTI(c.Request.Context(), s, in, key)
	if err != nil {
		writeError(c, err)
		return
	}
	if replayed {
		c.Header(HeaderIdempotentReplay, "true")
		ok(c, http.StatusOK, out)
		return
	}
	ok(c, http.StatusCreated, out)
}

// BookingHistory godoc
// @ID          stiBookingHistory
// @Summary     The caller's STI bookings
// @Tags        Bookings
// @Produce     json
// @Param       status query string false "Filter by status"
// @Param       sort   query string false "Sort order" example(desc)
// @Param       page   query int    false "0-based page"
// @Param       size   query int    false "Page size (default 5)"
// @Success     200 {object} object "Backend page"
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /bookings/sti/history [get]
func (h *Handlers) BookingHistory(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	p, size := page(c)
	h.forward(c)(h.bookings.History(c.Request.Context(), s, backend.HistoryQuery{
		Status: query(c, "status"),
		Sort:   query(c, "sort"),
		Page:   p,
		Size:   size,
	}))
}

// CancelBooking godoc
// @ID          cancelStiBooking
// @Summary     Cancel one of the caller's bookings
// @Tags        Bookings
// @Produce     json
// @Param       id path int true "Booking ID"
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /bookings/sti/{id}/cancel [put]
func (h *Handlers) CancelBooking(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	h.forward(c)(h.bookings.Cancel(c.Request.Context(), s, id))
}

// ViewResult godoc
// @ID          viewStiResult
// @Summary     Test result of a booking
// @Tags        Bookings
// @Produce     json
// @Param       id path int true "Booking ID"
// @Success     200 {object} object "Backend reply"
// @Failure     401 {object} handlers.ErrorResponse
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /bookings/sti/{id}/result [get]
func (h *Handlers) ViewResult(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	h.forward(c)(h.bookings.ViewResult(c.Request.Context(), s, id))
}
