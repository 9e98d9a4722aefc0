// Payment gateway landing, retry and abandon. The gateway redirects the
// browser to the front end, which forwards the landing query string here
// unchanged.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/payment"
)

// RetryRequest asks for a fresh checkout URL for the pending payment.
type RetryRequest struct {
	// Query is the failed landing's query string; it picks VNPay when no
	// gateway was recorded.
	Query string `json:"query" example:"vnp_ResponseCode=24&vnp_TxnRef=42"`
	// Gateway overrides the recorded gateway.
	Gateway string `json:"gateway" enums:"vnpay,paypal" example:"paypal"`
}

// PaymentResult godoc
// @ID          paymentResult
// @Summary     Payment gateway landing
// @Description Classifies the landing query (VNPay or PayPal) and, on success, finalizes the booking with the backend at most once per landing. Repeated landings report replayed=true and the recorded finalize outcome.
// @Description Failures never produce an error status; the view carries success=false and a message, and the pending payment stays available for POST /payment/retry.
// @Tags        Payment
// @Produce     json
// @Param       vnp_ResponseCode query string false "VNPay result code" example(00)
// @Param       paymentId        query string false "PayPal payment ID"
// @Param       PayerID          query string false "PayPal payer ID"
// @Success     200 {object} payment.Result
// @Router      /payment/result [get]
func (h *Handlers) PaymentResult(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	ok(c, http.StatusOK, h.payments.Reconcile(c.Request.Context(), s, c.Request.URL.RawQuery))
}

// PendingPayment godoc
// @ID          pendingPayment
// @Summary     The payment waiting in this session
// @Tags        Payment
// @Produce     json
// @Success     200 {object} payment.PendingPayment
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /payment/pending [get]
func (h *Handlers) PendingPayment(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	p, err := h.payments.Pending(c.Request.Context(), s)
	if err != nil {
		writeError(c, err)
		return
	}
	if p.BookingID == "" {
		fail(c, http.StatusNotFound, ErrCodeNoPendingPayment, tr(c, i18n.PaymentNothingToPay))
		return
	}
	ok(c, http.StatusOK, p)
}

// RetryPayment godoc
// @ID          retryPayment
// @Summary     Retry the pending payment
// @Description Requests a new checkout URL for the booking kept in the session. Session storage is read, never cleared.
// @Tags        Payment
// @Accept      json
// @Produce     json
// @Param       body body handlers.RetryRequest false "Failed landing and preferred gateway"
// @Success     200 {object} payment.RetryResult
// @Failure     404 {object} handlers.ErrorResponse "Nothing to pay"
// @Failure     502 {object} handlers.ErrorResponse "Gateway URL could not be obtained"
// @Router      /payment/retry [post]
func (h *Handlers) RetryPayment(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var req RetryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	res, err := h.payments.Retry(c.Request.Context(), s, req.Query, payment.ParseGateway(req.Gateway))
	switch {
	case errors.Is(err, payment.ErrNoPendingPayment):
		fail(c, http.StatusNotFound, ErrCodeNoPendingPayment, res.Message)
	case err != nil:
		fail(c, http.StatusBadGateway, ErrCodePaymentFailed, res.Message)
	default:
		ok(c, http.StatusOK, res)
	}
}

// AbandonPayment godoc
// @ID          abandonPayment
// @Summary     Drop the pending payment
// @Description Clears the pending payment fields of the session ("return home"). The login is kept.
// @Tags        Payment
// @Success     204 {string} string "No Content"
// @Router      /payment/abandon [post]
func (h *Handlers) AbandonPayment(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	if err := h.payments.Abandon(c.Request.Context(), s); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
