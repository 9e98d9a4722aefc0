// BookingService
//
// This file implements the customer side of STI test bookings: listing
// packages, checking slot limits, submitting a booking and, for online
// payment methods, stashing the pending payment and fetching the gateway
// redirect. Submissions carrying an Idempotency-Key claim the key per
// session before the booking is sent upstream, so a double-clicked submit
// creates one booking: the second click replays it or, while the first is
// still running, gets ErrBookingInProgress.

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/currency"
	"github.com/genderhealth/care-portal/internal/domain"
	"github.com/genderhealth/care-portal/internal/payment"
	"github.com/genderhealth/care-portal/internal/repo"
	"github.com/genderhealth/care-portal/internal/session"
)

// IdempotencyScopeSTIBooking namespaces booking submissions in the
// idempotency table.
const IdempotencyScopeSTIBooking = "sti-booking"

// Payment methods accepted on a booking.
const (
	PayCash   = "CASH"
	PayVNPay  = "VNPAY"
	PayPayPal = "PAYPAL"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// claimTTL bounds how long an unfinished submission holds its key.
const claimTTL = 2 * time.Minute

// STIBookingInput is the booking form.
type STIBookingInput struct {
	ServiceID     int64  `json:"serviceId" example:"3"`
	BookingDate   string `json:"bookingDate" example:"2026-11-02"`
	BookingTime   string `json:"bookingTime" example:"09:30"`
	Note          string `json:"note"`
	PaymentMethod string `json:"paymentMethod" example:"VNPAY"`
	// Amount is the package price in VND; required for online payment.
	Amount    string `json:"amount,omitempty" example:"500000"`
	OrderInfo string `json:"orderInfo,omitempty"`
}

// BookingOutcome is what a submission returns and what a replay serves.
type BookingOutcome struct {
	Booking     json.RawMessage `json:"booking" swaggertype:"object"`
	BookingID   string          `json:"bookingId,omitempty"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
	// PaymentPending is set when the booking exists but the gateway redirect
	// could not be obtained; POST /payment/retry picks it up.
	PaymentPending bool   `json:"paymentPending,omitempty"`
	Message        string `json:"message,omitempty"`
}

// BookingService coordinates booking submission, idempotency and payment
// start.
type BookingService struct {
	DB             *gorm.DB
	Payments       *payment.Reconciler
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

func (s *BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *BookingService) ttl() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// Packages lists the STI test packages. No login needed.
func (s *BookingService) Packages(ctx context.Context, h *session.Holder) (json.RawMessage, error) {
	return h.Backend().STIServices(ctx)
}

// CheckLimit asks whether a slot still has capacity.
func (s *BookingService) CheckLimit(ctx context.Context, h *session.Holder, serviceID int64, bookingDateTime string) (json.RawMessage, error) {
	if serviceID <= 0 || strings.TrimSpace(bookingDateTime) == "" {
		return nil, ErrInvalidBooking
	}
	return h.Backend().CheckLimit(ctx, serviceID, bookingDateTime)
}

// normalize validates in and upper-cases the payment method.
func (in *STIBookingInput) normalize() error {
	if in.ServiceID <= 0 {
		return fmt.Errorf("%w: serviceId", ErrInvalidBooking)
	}
	in.BookingDate = strings.TrimSpace(in.BookingDate)
	if _, err := time.Parse(dateLayout, in.BookingDate); err != nil {
		return fmt.Errorf("%w: bookingDate", ErrInvalidBooking)
	}
	in.BookingTime = strings.TrimSpace(in.BookingTime)
	if _, err := time.Parse(timeLayout, in.BookingTime); err != nil {
		return fmt.Errorf("%w: bookingTime", ErrInvalidBooking)
	}
	in.PaymentMethod = strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	switch in.PaymentMethod {
	case "":
		in.PaymentMethod = PayCash
	case PayCash:
	case PayVNPay, PayPayPal:
		if _, err := currency.ParseAmount(in.Amount); err != nil {
			return fmt.Errorf("%w: amount", ErrInvalidBooking)
		}
	default:
		return fmt.Errorf("%w: paymentMethod", ErrInvalidBooking)
	}
	return nil
}

// CreateSTI submits a booking. The boolean reports an idempotent replay.
//
// For VNPAY/PAYPAL the pending payment is stashed in session storage and the
// gateway URL requested. A failure to obtain the URL does not fail the
// submission: the booking exists upstream and the outcome is marked
// PaymentPending so the landing page's retry can finish the job.
func (s *BookingService) CreateSTI(ctx context.Context, h *session.Holder, in STIBookingInput, idemKey string) (BookingOutcome, bool, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "CreateSTI",
		trace.WithAttributes(
			attribute.String("session.id", h.ID()),
			attribute.Int64("service.id", in.ServiceID),
			attribute.String("payment.method", in.PaymentMethod),
		),
	)
	defer span.End()

	if !h.Authenticated() {
		return BookingOutcome{}, false, ErrNotAuthenticated
	}
	if err := in.normalize(); err != nil {
		return BookingOutcome{}, false, err
	}

	var claim *domain.Idempotency
	if idemKey != "" && s.DB != nil {
		prev, c, err := s.claim(ctx, h.ID(), idemKey)
		if err != nil {
			return BookingOutcome{}, false, err
		}
		if c == nil {
			span.SetAttributes(attribute.Bool("idempotency.replay", true))
			return prev, true, nil
		}
		claim = c
	}

	body, err := h.Backend().CreateSTIBooking(ctx, backend.STIBookingRequest{
		ServiceID:     in.ServiceID,
		BookingDate:   in.BookingDate,
		BookingTime:   in.BookingTime,
		Note:          in.Note,
		PaymentMethod: in.PaymentMethod,
	})
	if err != nil {
		s.release(ctx, claim)
		return BookingOutcome{}, false, err
	}

	out := BookingOutcome{Booking: body}
	out.BookingID, _ = backend.BookingIDOf(body)

	var payErr error
	if in.PaymentMethod != PayCash {
		payErr = s.startPayment(ctx, h, in, &out)
	}

	s.complete(ctx, claim, out)
	return out, false, payErr
}

// claim reserves key for this submission. It returns the claim, or a nil
// claim plus the recorded outcome when the key was already used.
func (s *BookingService) claim(ctx context.Context, sessionID, key string) (BookingOutcome, *domain.Idempotency, error) {
	rec, err := repo.ClaimIdempotency(ctx, s.DB, sessionID, IdempotencyScopeSTIBooking, key, claimTTL)
	if err == nil {
		return BookingOutcome{}, rec, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return BookingOutcome{}, nil, err
	}
	prev, err := repo.GetIdempotency(ctx, s.DB, sessionID, IdempotencyScopeSTIBooking, key, s.now().UTC())
	switch {
	case errors.Is(err, repo.ErrNotFound):
		// the other claim expired between our insert and this read
		return BookingOutcome{}, nil, ErrBookingInProgress
	case err != nil:
		return BookingOutcome{}, nil, err
	case prev.Status == repo.StatusPending:
		return BookingOutcome{}, nil, ErrBookingInProgress
	}
	var out BookingOutcome
	if err := json.Unmarshal([]byte(prev.Response), &out); err != nil {
		return BookingOutcome{}, nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return out, nil, nil
}

func (s *BookingService) startPayment(ctx context.Context, h *session.Holder, in STIBookingInput, out *BookingOutcome) error {
	if out.BookingID == "" {
		return ErrNoBookingID
	}
	if s.Payments == nil {
		return errors.New("services: payments are not configured")
	}
	gw := payment.GatewayVNPay
	if in.PaymentMethod == PayPayPal {
		gw = payment.GatewayPayPal
	}
	orderInfo := strings.TrimSpace(in.OrderInfo)
	if orderInfo == "" {
		orderInfo = "Thanh toan dat lich xet nghiem STI #" + out.BookingID
	}
	res, err := s.Payments.Begin(ctx, h, payment.PendingPayment{
		BookingID:   out.BookingID,
		Amount:      strings.TrimSpace(in.Amount),
		OrderInfo:   orderInfo,
		BookingType: payment.BookingSTI,
		Gateway:     gw,
	})
	out.Message = res.Message
	if err != nil {
		out.PaymentPending = true
		return nil
	}
	out.RedirectURL = res.RedirectURL
	return nil
}

// complete stores the outcome under the claim. It runs detached from the
// request: the booking exists upstream whether or not the client waits.
func (s *BookingService) complete(ctx context.Context, claim *domain.Idempotency, out BookingOutcome) {
	if claim == nil {
		return
	}
	b, err := json.Marshal(out)
	if err == nil {
		err = repo.CompleteIdempotency(context.WithoutCancel(ctx), s.DB, claim.ID, string(b), 201, s.ttl())
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("idempotency_key", claim.Key).Msg("record booking outcome")
	}
}

// release frees the key of a submission that created nothing upstream.
func (s *BookingService) release(ctx context.Context, claim *domain.Idempotency) {
	if claim == nil {
		return
	}
	if err := repo.ReleaseIdempotency(context.WithoutCancel(ctx), s.DB, claim.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("idempotency_key", claim.Key).Msg("release idempotency claim")
	}
}

// History pages the caller's bookings.
func (s *BookingService) History(ctx context.Context, h *session.Holder, q backend.HistoryQuery) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return h.Backend().BookingHistory(ctx, q)
}

// Cancel cancels one of the caller's bookings.
func (s *BookingService) Cancel(ctx context.Context, h *session.Holder, id int64) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if id <= 0 {
		return nil, ErrInvalidBooking
	}
	return h.Backend().Transition(ctx, id, backend.ActionCancel)
}

// ViewResult returns the test result of a booking. The backend decides
// whether the caller may see it.
func (s *BookingService) ViewResult(ctx context.Context, h *session.Holder, id int64) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if id <= 0 {
		return nil, ErrInvalidBooking
	}
	return h.Backend().ViewResult(ctx, id)
}
