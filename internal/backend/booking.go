package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// BookingAction is a staff (or customer, for cancel) status transition on an
// STI booking. The value is the backend path suffix.
type BookingAction string

const (
	ActionCancel        BookingAction = "mark-cancelled"
	ActionConfirm       BookingAction = "mark-confirmed"
	ActionPendingResult BookingAction = "mark-pending-test-result"
	ActionComplete      BookingAction = "mark-completed"
	ActionDeny          BookingAction = "mark-denied"
	ActionNoShow        BookingAction = "mark-no-show"
	ActionResultedAt    BookingAction = "resulted-at"
)

// Valid reports whether a is a known transition.
func (a BookingAction) Valid() bool {
	switch a {
	case ActionCancel, ActionConfirm, ActionPendingResult, ActionComplete,
		ActionDeny, ActionNoShow, ActionResultedAt:
		return true
	}
	return false
}

// STIBookingRequest is the payload of POST /stis-bookings.
type STIBookingRequest struct {
	ServiceID     int64  `json:"serviceId"`
	BookingDate   string `json:"bookingDate"`
	BookingTime   string `json:"bookingTime"`
	Note          string `json:"note"`
	PaymentMethod string `json:"paymentMethod"`
}

// HistoryQuery pages the customer's own bookings. Size defaults to 5.
type HistoryQuery struct {
	Status string
	Sort   string
	Page   int
	Size   int
}

// ManageQuery pages every booking for the staff dashboard. Size defaults to 10.
type ManageQuery struct {
	Name      string
	Status    string
	Sort      string
	StartDate string
	EndDate   string
	Page      int
	Size      int
}

func (s *Session) STIServices(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, request{method: http.MethodGet, route: "/stis-services", path: "/stis-services"})
}

func (s *Session) CheckLimit(ctx context.Context, serviceID int64, bookingDateTime string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("serviceId", strconv.FormatInt(serviceID, 10))
	q.Set("bookingDateTime", bookingDateTime)
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/stis-bookings/check-limit",
		path:   "/stis-bookings/check-limit",
		query:  q,
	})
}

func (s *Session) CreateSTIBooking(ctx context.Context, in STIBookingRequest) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/stis-bookings",
		path:   "/stis-bookings",
		json:   in,
	})
}

func (s *Session) BookingHistory(ctx context.Context, q HistoryQuery) (json.RawMessage, error) {
	if q.Size <= 0 {
		q.Size = 5
	}
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/stis-bookings/history",
		path:   "/stis-bookings/history",
		query:  pageQuery(q.Page, q.Size, "status", q.Status, "sort", q.Sort),
	})
}

func (s *Session) ManageBookings(ctx context.Context, q ManageQuery) (json.RawMessage, error) {
	if q.Size <= 0 {
		q.Size = 10
	}
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/stis-bookings",
		path:   "/stis-bookings",
		query: pageQuery(q.Page, q.Size,
			"name", q.Name, "status", q.Status, "sort", q.Sort,
			"startDate", q.StartDate, "endDate", q.EndDate),
	})
}

// Transition applies a status action to a booking.
func (s *Session) Transition(ctx context.Context, id int64, a BookingAction) (json.RawMessage, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("backend: unknown booking action %q", a)
	}
	return s.raw(ctx, request{
		method: http.MethodPut,
		route:  "/stis-bookings/{id}/" + string(a),
		path:   fmt.Sprintf("/stis-bookings/%d/%s", id, a),
	})
}

// EnterResult posts the lab result document for a booking.
func (s *Session) EnterResult(ctx context.Context, id int64, result json.RawMessage) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/stis-results/return/{id}",
		path:   idPath("/stis-results/return/%d", id),
		json:   result,
	})
}

func (s *Session) ViewResult(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/stis-results/by-booking/{id}",
		path:   idPath("/stis-results/by-booking/%d", id),
	})
}

// UploadResultPDF sends the report as the multipart part "pdfFile".
func (s *Session) UploadResultPDF(ctx context.Context, id int64, f *File) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPut,
		route:  "/stis-results/upload-pdf/{id}",
		path:   idPath("/stis-results/upload-pdf/%d", id),
		form:   (&multipartForm{}).addFile("pdfFile", f),
	})
}

// BookingIDOf extracts the booking id from a create-booking reply. It looks at
// data.bookingId, then bookingId, then id (object or envelope).
func BookingIDOf(body json.RawMessage) (string, bool) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if id, ok := bookingIDIn(env.Data); ok {
			return id, true
		}
	}
	return bookingIDIn(body)
}

func bookingIDIn(b json.RawMessage) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return "", false
	}
	for _, k := range []string{"bookingId", "id"} {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil && n.String() != "" {
			return n.String(), true
		}
		var str string
		if err := json.Unmarshal(v, &str); err == nil && str != "" {
			return str, true
		}
	}
	return "", false
}
