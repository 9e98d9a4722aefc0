package services

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/session"
)

// StaffRoles may use the booking management dashboard.
var StaffRoles = []string{"STAFF", "MANAGER", "ADMIN"}

// staffActions maps the portal's route segment to the backend transition.
var staffActions = map[string]backend.BookingAction{
	"confirm":        backend.ActionConfirm,
	"pending-result": backend.ActionPendingResult,
	"complete":       backend.ActionComplete,
	"deny":           backend.ActionDeny,
	"no-show":        backend.ActionNoShow,
	"resulted-at":    backend.ActionResultedAt,
}

// ParseStaffAction resolves a dashboard action name.
func ParseStaffAction(name string) (backend.BookingAction, error) {
	a, ok := staffActions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", ErrUnknownAction
	}
	return a, nil
}

// StaffService drives the booking dashboard used by staff, managers and
// admins.
type StaffService struct{}

func requireStaff(h *session.Holder) error {
	if !h.Authenticated() {
		return ErrNotAuthenticated
	}
	if !h.HasRole(StaffRoles...) {
		return ErrForbidden
	}
	return nil
}

// List pages every booking with the dashboard filters.
func (StaffService) List(ctx context.Context, h *session.Holder, q backend.ManageQuery) (json.RawMessage, error) {
	if err := requireStaff(h); err != nil {
		return nil, err
	}
	return h.Backend().ManageBookings(ctx, q)
}

// Transition moves a booking to the state named by action.
func (StaffService) Transition(ctx context.Context, h *session.Holder, id int64, action string) (json.RawMessage, error) {
	ctx, span := otel.Tracer("services/StaffService").Start(ctx, "Transition",
		trace.WithAttributes(
			attribute.Int64("booking.id", id),
			attribute.String("booking.action", action),
		),
	)
	defer span.End()

	if err := requireStaff(h); err != nil {
		return nil, err
	}
	a, err := ParseStaffAction(action)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidBooking
	}
	return h.Backend().Transition(ctx, id, a)
}

// EnterResult records the structured test result of a booking.
func (StaffService) EnterResult(ctx context.Context, h *session.Holder, id int64, result json.RawMessage) (json.RawMessage, error) {
	if err := requireStaff(h); err != nil {
		return nil, err
	}
	if id <= 0 || !isJSONObject(result) {
		return nil, ErrInvalidBooking
	}
	return h.Backend().EnterResult(ctx, id, result)
}

// UploadResultPDF attaches the signed result document to a booking.
func (StaffService) UploadResultPDF(ctx context.Context, h *session.Holder, id int64, f *backend.File) (json.RawMessage, error) {
	if err := requireStaff(h); err != nil {
		return nil, err
	}
	if id <= 0 || f == nil || f.Content == nil {
		return nil, ErrInvalidBooking
	}
	return h.Backend().UploadResultPDF(ctx, id, f)
}

func isJSONObject(b json.RawMessage) bool {
	var m map[string]json.RawMessage
	return json.Unmarshal(b, &m) == nil && len(m) > 0
}
