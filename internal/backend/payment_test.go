package backend

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoice_ForwardsRawQueryVerbatim(t *testing.T) {
	f := newFake(t, okJSON(`{"message":"invoice created"}`))
	s := New(f.srv.URL, f.srv.Client()).For(Anonymous)

	raw := "vnp_Amount=10000000&vnp_ResponseCode=00&vnp_SecureHash=AbC%2B1"
	_, err := s.CreateInvoice(context.Background(), "?"+raw)
	require.NoError(t, err)

	got := f.last(t)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/payment/create-invoice", got.Path)
	assert.Equal(t, raw, got.Query)
}

func TestPayPalFinalizers(t *testing.T) {
	f := newFake(t, okJSON(`{}`))
	s := New(f.srv.URL, f.srv.Client()).For(Anonymous)
	ctx := context.Background()

	_, err := s.PayPalSuccess(ctx, "PAY-1", "ABC")
	require.NoError(t, err)
	got := f.last(t)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/payment/paypal/success", got.Path)
	q, _ := url.ParseQuery(got.Query)
	assert.Equal(t, "PAY-1", q.Get("paymentId"))
	assert.Equal(t, "ABC", q.Get("payerId"))

	_, err = s.ConsultantPayPalSuccess(ctx, "PAY-1", "ABC")
	require.NoError(t, err)
	got = f.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/payment/consultant/paypal-success", got.Path)
}

func TestConsultantVNPaySuccess_SendsParamsAsJSON(t *testing.T) {
	f := newFake(t, okJSON(`{}`))
	s := New(f.srv.URL, f.srv.Client()).For(Anonymous)

	_, err := s.ConsultantVNPaySuccess(context.Background(), map[string]string{
		"vnp_ResponseCode": "00",
		"vnp_TxnRef":       "12",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"vnp_ResponseCode":"00","vnp_TxnRef":"12"}`, string(f.last(t).Body))
}

func TestRedirectEndpoints(t *testing.T) {
	f := newFake(t, okJSON(`"https://sandbox.vnpayment.vn/pay?x=1"`))
	s := New(f.srv.URL, f.srv.Client()).For(Anonymous)
	ctx := context.Background()

	u, err := s.VNPayURL(ctx, "500000", "STI booking 12", "12")
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.vnpayment.vn/pay?x=1", u)
	q, _ := url.ParseQuery(f.last(t).Query)
	assert.Equal(t, "500000", q.Get("amount"))
	assert.Equal(t, "STI booking 12", q.Get("orderInfo"))
	assert.Equal(t, "12", q.Get("bookingId"))

	_, err = s.PayPalURL(ctx, "20.00", "12")
	require.NoError(t, err)
	q, _ = url.ParseQuery(f.last(t).Query)
	assert.Equal(t, "20.00", q.Get("total"))

	_, err = s.ConsultantRedirectURL(ctx, "33", MethodPayPal)
	require.NoError(t, err)
	q, _ = url.ParseQuery(f.last(t).Query)
	assert.Equal(t, "PAYPAL", q.Get("method"))
}

func TestRedirect_EmptyReplyIsError(t *testing.T) {
	f := newFake(t, okJSON(`{"message":"ok"}`))
	s := New(f.srv.URL, f.srv.Client()).For(Anonymous)

	_, err := s.VNPayURL(context.Background(), "1", "o", "1")
	assert.ErrorIs(t, err, ErrNoRedirectURL)
}

func TestRedirectURLOf_Shapes(t *testing.T) {
	cases := map[string]string{
		`https://pay.example/x`:                         "https://pay.example/x",
		`"https://pay.example/y"`:                       "https://pay.example/y",
		`{"url":"https://pay.example/z"}`:               "https://pay.example/z",
		`{"data":{"paymentUrl":"https://pay.example/w"}}`: "https://pay.example/w",
		`not a url`: "",
		``:          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, RedirectURLOf([]byte(in)), in)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFake(t, okJSON(`{"cycleId":1}`))
	s := New(f.srv.URL, f.srv.Client()).For(TokenFunc(func() string { return "t" }))

	_, err := s.CalculateCycle(context.Background(), CycleRequest{StartDate: "2025-03-01", EndDate: "2025-03-05", CycleLength: 28})
	require.NoError(t, err)
	assert.Equal(t, "/menstrual/calculate", f.last(t).Path)
	assert.JSONEq(t, `{"startDate":"2025-03-01","endDate":"2025-03-05","cycleLength":28,"note":""}`, string(f.last(t).Body))

	_, err = s.Calendar(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/menstrual/calendar/me", f.last(t).Path)
}
