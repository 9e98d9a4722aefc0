// Package payment reconciles the browser's return from a payment gateway with
// the booking that started it. It decides the outcome from the landing query,
// finalizes the booking with the backend at most once per landing, and keeps
// the pending payment around for a retry when anything goes wrong.
package payment

import (
	"net/url"
	"strings"
)

// Gateway identifies the processor that redirected the browser back.
type Gateway string

const (
	GatewayUnknown Gateway = ""
	GatewayVNPay   Gateway = "vnpay"
	GatewayPayPal  Gateway = "paypal"
)

// ParseGateway accepts "vnpay"/"VNPAY"/"paypal"/"PAYPAL".
func ParseGateway(s string) Gateway {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vnpay":
		return GatewayVNPay
	case "paypal":
		return GatewayPayPal
	}
	return GatewayUnknown
}

// vnpaySuccessCode is the only vnp_ResponseCode that means paid.
const vnpaySuccessCode = "00"

// Outcome is the gateway verdict read from a landing query.
type Outcome struct {
	Gateway      Gateway
	Success      bool
	ResponseCode string // VNPay only
	PaymentID    string // PayPal only
	PayerID      string // PayPal only
	RawQuery     string
	Params       url.Values
}

// Detect classifies a landing query string (with or without the leading "?").
//
// A non-empty vnp_ResponseCode selects VNPay, paid iff it equals "00".
// Otherwise non-empty paymentId and PayerID select PayPal, paid iff PayerID is
// present. Anything else is an unknown gateway and counts as failure.
func Detect(rawQuery string) Outcome {
	raw := strings.TrimPrefix(rawQuery, "?")
	// ParseQuery keeps every pair it could decode even when it reports an error.
	params, _ := url.ParseQuery(raw)
	o := Outcome{RawQuery: raw, Params: params}

	if code := params.Get("vnp_ResponseCode"); code != "" {
		o.Gateway = GatewayVNPay
		o.ResponseCode = code
		o.Success = code == vnpaySuccessCode
		return o
	}

	paymentID, payerID := params.Get("paymentId"), params.Get("PayerID")
	if paymentID != "" && payerID != "" {
		o.Gateway = GatewayPayPal
		o.PaymentID = paymentID
		o.PayerID = payerID
		o.Success = true
		return o
	}
	return o
}

// Flat returns the first value of every parameter.
func (o Outcome) Flat() map[string]string {
	out := make(map[string]string, len(o.Params))
	for k, v := range o.Params {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// BookingType selects the finalize endpoints and navigation targets.
type BookingType string

const (
	BookingSTI        BookingType = "sti"
	BookingConsultant BookingType = "consultant"
)

// ParseBookingType maps anything but "consultant" to sti.
func ParseBookingType(s string) BookingType {
	if strings.EqualFold(strings.TrimSpace(s), string(BookingConsultant)) {
		return BookingConsultant
	}
	return BookingSTI
}

// HistoryRoute is where the success view's "booking history" button goes.
func (t BookingType) HistoryRoute() string {
	if t == BookingConsultant {
		return "/user/history-consultation"
	}
	return "/user/history-testing"
}

// ServiceRoute is where the success view's "back to service" button goes.
func (t BookingType) ServiceRoute() string {
	if t == BookingConsultant {
		return "/services/consultation"
	}
	return "/sti-testing"
}
