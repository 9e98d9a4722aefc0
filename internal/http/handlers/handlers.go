package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/http/middleware"
	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/payment"
	"github.com/genderhealth/care-portal/internal/services"
	"github.com/genderhealth/care-portal/internal/session"
	"github.com/genderhealth/care-portal/internal/utils"
)

const maxPageSize = 100

// Handlers groups the portal endpoints. Every handler expects the Sessions
// middleware to have opened the caller's session.
type Handlers struct {
	bookings *services.BookingService
	payments *payment.Reconciler
	staff    services.StaffService
	blog     services.BlogService
	cycle    services.CycleService
}

// New binds the handlers to the booking service and the payment reconciler;
// the remaining services are stateless.
func New(bookings *services.BookingService, payments *payment.Reconciler) *Handlers {
	return &Handlers{bookings: bookings, payments: payments}
}

// holder returns the request's session, or nil after answering 503 when the
// Sessions middleware did not run.
func holder(c *gin.Context) *session.Holder {
	h := middleware.HolderFrom(c)
	if h == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeSessionMissing, tr(c, i18n.ServerError))
	}
	return h
}

// pathID parses the :id parameter as a positive integer; 0 means the 400
// has already been written.
func pathID(c *gin.Context) int64 {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid id")
		return 0
	}
	return id
}

// page reads ?page (0-based) and ?size; a size of 0 lets the backend client
// pick its per-endpoint default.
func page(c *gin.Context) (int, int) {
	return utils.Page(c.Query("page"), c.Query("size"), maxPageSize)
}

func query(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Query(key))
}
