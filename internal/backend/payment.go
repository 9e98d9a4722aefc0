package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoRedirectURL means the backend answered 2xx without a usable URL.
var ErrNoRedirectURL = errors.New("backend: reply carries no redirect url")

// Payment method names used by the consultant redirect endpoint.
const (
	MethodVNPay  = "VNPAY"
	MethodPayPal = "PAYPAL"
)

// VNPayURL asks for a VNPay checkout URL for an STI booking. amount is VND.
func (s *Session) VNPayURL(ctx context.Context, amount, orderInfo, bookingID string) (string, error) {
	q := url.Values{}
	q.Set("amount", amount)
	q.Set("orderInfo", orderInfo)
	q.Set("bookingId", bookingID)
	return s.redirect(ctx, request{method: http.MethodGet, route: "/payment/vnpay", path: "/payment/vnpay", query: q})
}

// PayPalURL asks for a PayPal checkout URL for an STI booking. total is USD.
func (s *Session) PayPalURL(ctx context.Context, total, bookingID string) (string, error) {
	q := url.Values{}
	q.Set("total", total)
	q.Set("bookingId", bookingID)
	return s.redirect(ctx, request{method: http.MethodGet, route: "/payment/paypal", path: "/payment/paypal", query: q})
}

// ConsultantRedirectURL asks for a checkout URL for a consultation booking.
func (s *Session) ConsultantRedirectURL(ctx context.Context, bookingID, method string) (string, error) {
	q := url.Values{}
	q.Set("bookingId", bookingID)
	q.Set("method", method)
	return s.redirect(ctx, request{
		method: http.MethodGet,
		route:  "/payment/consultant/redirect-url",
		path:   "/payment/consultant/redirect-url",
		query:  q,
	})
}

// CreateInvoice finalizes a VNPay STI payment. The landing query string is
// forwarded byte-for-byte so the backend can verify the gateway signature.
func (s *Session) CreateInvoice(ctx context.Context, rawQuery string) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method:   http.MethodGet,
		route:    "/payment/create-invoice",
		path:     "/payment/create-invoice",
		rawQuery: strings.TrimPrefix(rawQuery, "?"),
	})
}

// PayPalSuccess finalizes a PayPal STI payment.
func (s *Session) PayPalSuccess(ctx context.Context, paymentID, payerID string) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/payment/paypal/success",
		path:   "/payment/paypal/success",
		query:  payPalQuery(paymentID, payerID),
	})
}

// ConsultantVNPaySuccess finalizes a VNPay consultation payment with every
// landing parameter as a JSON object.
func (s *Session) ConsultantVNPaySuccess(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/payment/consultant/vnpay-success",
		path:   "/payment/consultant/vnpay-success",
		json:   params,
	})
}

// ConsultantPayPalSuccess finalizes a PayPal consultation payment.
func (s *Session) ConsultantPayPalSuccess(ctx context.Context, paymentID, payerID string) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/payment/consultant/paypal-success",
		path:   "/payment/consultant/paypal-success",
		query:  payPalQuery(paymentID, payerID),
	})
}

func payPalQuery(paymentID, payerID string) url.Values {
	q := url.Values{}
	q.Set("paymentId", paymentID)
	q.Set("payerId", payerID)
	return q
}

func (s *Session) redirect(ctx context.Context, r request) (string, error) {
	res, err := s.do(ctx, r)
	if err != nil {
		return "", err
	}
	u := RedirectURLOf(res.Body)
	if u == "" {
		return "", ErrNoRedirectURL
	}
	return u, nil
}

// RedirectURLOf reads a checkout URL from a reply that may be plain text, a
// JSON string, or an object carrying it under url, paymentUrl, redirectUrl or
// data.
func RedirectURLOf(body []byte) string {
	t := strings.TrimSpace(string(body))
	if t == "" {
		return ""
	}
	var str string
	if err := json.Unmarshal([]byte(t), &str); err == nil {
		return strings.TrimSpace(str)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(t), &obj); err == nil {
		for _, k := range []string{"url", "paymentUrl", "redirectUrl", "data"} {
			v, ok := obj[k]
			if !ok {
				continue
			}
			if u := RedirectURLOf(v); u != "" {
				return u
			}
		}
		return ""
	}
	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
		return t
	}
	return ""
}
