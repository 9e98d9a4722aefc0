package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/currency"
	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/storage"
)

// ErrNoPendingPayment is returned by Retry when no booking is stashed.
var ErrNoPendingPayment = errors.New("payment: no pending payment")

// ErrInvalidPending is returned by Begin for an incomplete PendingPayment.
var ErrInvalidPending = errors.New("payment: invalid pending payment")

const latchPrefix = "latch:"

// FinalizeState is the finalize outcome recorded for one landing.
type FinalizeState string

const (
	FinalizePending FinalizeState = "pending"
	FinalizeOK      FinalizeState = "ok"
	FinalizeFailed  FinalizeState = "failed"
)

// latchRecord is the value stored under LatchKey.
type latchRecord struct {
	State   FinalizeState `json:"state"`
	Message string        `json:"message,omitempty"`
	At      time.Time     `json:"at"`
}

// Identity is the portal session on whose behalf the reconciler acts.
// *session.Holder satisfies it.
type Identity interface {
	ID() string
	Token() string
}

// PendingPayment is stashed in session storage before the gateway redirect.
type PendingPayment struct {
	BookingID   string      `json:"bookingId"`
	Amount      string      `json:"amount"` // VND
	OrderInfo   string      `json:"orderInfo"`
	BookingType BookingType `json:"bookingType"`
	Gateway     Gateway     `json:"gateway"`
}

// Result is the view model for the payment landing page.
type Result struct {
	Success      bool          `json:"success"`
	Gateway      Gateway       `json:"gateway"`
	BookingType  BookingType   `json:"bookingType"`
	Confirmed    bool          `json:"confirmed"` // finalize succeeded in this call
	Replayed     bool          `json:"replayed"`  // finalize already ran for this landing
	// Finalize is the recorded outcome of this landing's finalize call, empty
	// when none was attempted. A replay of a failed finalize carries
	// FinalizeFailed and the original message.
	Finalize     FinalizeState `json:"finalize,omitempty"`
	Message      string        `json:"message,omitempty"`
	HistoryRoute string        `json:"historyRoute"`
	ServiceRoute string        `json:"serviceRoute"`
}

// Reconciler owns the landing, retry and abandon flows.
type Reconciler struct {
	Store     storage.Store
	Backend   *backend.Client
	Converter *currency.Converter

	// FinalizeTimeout bounds the finalize call, which runs detached from the
	// inbound request so a closed browser tab cannot abort it.
	FinalizeTimeout time.Duration
	Now             func() time.Time
}

// NewReconciler returns a Reconciler with a 30s finalize budget.
func NewReconciler(store storage.Store, api *backend.Client, conv *currency.Converter) *Reconciler {
	return &Reconciler{
		Store:           store,
		Backend:         api,
		Converter:       conv,
		FinalizeTimeout: 30 * time.Second,
		Now:             time.Now,
	}
}

// LatchKey is the storage key that marks a landing query as finalized.
func LatchKey(rawQuery string) string {
	sum := sha256.Sum256([]byte(strings.TrimPrefix(rawQuery, "?")))
	return latchPrefix + hex.EncodeToString(sum[:])
}

// Reconcile decides the outcome of a landing and, on success, finalizes the
// booking exactly once. The latch is taken before any network call; a second
// call for the same query (re-render, reload, concurrent request) returns the
// recorded finalize outcome without finalizing again.
//
// Failures never escape as errors: they end up in Result.Message and leave
// the pending payment in storage so Retry stays possible.
func (r *Reconciler) Reconcile(ctx context.Context, id Identity, rawQuery string) Result {
	lg := zerolog.Ctx(ctx)
	sid := id.ID()
	o := Detect(rawQuery)

	bt := BookingSTI
	if v, err := storage.GetOr(ctx, r.Store, sid, storage.KeyBookingType, ""); err != nil {
		lg.Warn().Err(err).Msg("read booking type")
	} else {
		bt = ParseBookingType(v)
	}

	res := Result{
		Success:      o.Success,
		Gateway:      o.Gateway,
		BookingType:  bt,
		HistoryRoute: bt.HistoryRoute(),
		ServiceRoute: bt.ServiceRoute(),
	}
	outcome := "failure"
	if o.Success {
		outcome = "success"
	}
	reconciliations.WithLabelValues(gatewayLabel(o.Gateway), outcome).Inc()

	if !o.Success {
		res.Message = i18n.T(ctx, i18n.PaymentFailed)
		return res
	}

	latch := LatchKey(o.RawQuery)
	acquired, err := r.Store.SetNX(ctx, sid, latch, r.latchValue(FinalizePending, ""))
	if err != nil {
		// Without the latch there is no at-most-once guarantee; do not call.
		lg.Error().Err(err).Msg("acquire finalize latch")
		res.Message = i18n.T(ctx, i18n.PaymentConfirmError)
		return res
	}
	if !acquired {
		finalizations.WithLabelValues(string(bt), gatewayLabel(o.Gateway), "replay").Inc()
		res.Replayed = true
		r.replayed(ctx, sid, latch, &res)
		return res
	}

	snapshot, err := storage.GetOr(ctx, r.Store, sid, storage.KeyBookingID, "")
	if err != nil {
		lg.Warn().Err(err).Msg("read booking id")
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.finalizeTimeout())
	defer cancel()

	if err := r.finalize(fctx, id, bt, o); err != nil {
		finalizations.WithLabelValues(string(bt), gatewayLabel(o.Gateway), "error").Inc()
		lg.Warn().Err(err).
			Str("booking_type", string(bt)).
			Str("gateway", string(o.Gateway)).
			Msg("payment finalize failed")
		res.Finalize = FinalizeFailed
		res.Message = backend.MessageOf(err, i18n.T(ctx, i18n.PaymentConfirmError))
		r.recordLatch(fctx, sid, latch, FinalizeFailed, res.Message)
		return res
	}
	finalizations.WithLabelValues(string(bt), gatewayLabel(o.Gateway), "ok").Inc()
	res.Confirmed = true
	res.Finalize = FinalizeOK
	res.Message = i18n.T(ctx, i18n.PaymentSucceeded)
	r.recordLatch(fctx, sid, latch, FinalizeOK, "")

	// Only clear what this landing paid for. A newer booking started while the
	// finalize call was in flight keeps its pending payment.
	current, err := storage.GetOr(fctx, r.Store, sid, storage.KeyBookingID, "")
	switch {
	case err != nil:
		lg.Warn().Err(err).Msg("read booking id after finalize")
	case current != snapshot:
		lg.Info().Str("paid_booking", snapshot).Str("current_booking", current).
			Msg("pending payment replaced during finalize; keeping it")
	default:
		if err := r.Store.Remove(fctx, sid, storage.PendingPaymentKeys...); err != nil {
			lg.Warn().Err(err).Msg("clear pending payment")
		}
	}
	return res
}

func (r *Reconciler) latchValue(state FinalizeState, msg string) string {
	b, _ := json.Marshal(latchRecord{State: state, Message: msg, At: r.now().UTC()})
	return string(b)
}

// recordLatch overwrites the latch with the finalize outcome. The latch stays
// held either way; only its description changes.
func (r *Reconciler) recordLatch(ctx context.Context, sid, latch string, state FinalizeState, msg string) {
	if err := r.Store.Set(ctx, sid, latch, r.latchValue(state, msg)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("state", string(state)).Msg("record finalize outcome")
	}
}

// replayed fills res from the outcome recorded by the call that holds the
// latch.
func (r *Reconciler) replayed(ctx context.Context, sid, latch string, res *Result) {
	var rec latchRecord
	v, err := r.Store.Get(ctx, sid, latch)
	if err == nil {
		err = json.Unmarshal([]byte(v), &rec)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("read finalize outcome")
		rec.State = FinalizePending
	}
	res.Finalize = rec.State
	switch rec.State {
	case FinalizeOK:
		res.Message = i18n.T(ctx, i18n.PaymentSucceeded)
	case FinalizeFailed:
		res.Message = rec.Message
		if res.Message == "" {
			res.Message = i18n.T(ctx, i18n.PaymentConfirmError)
		}
	default:
		res.Finalize = FinalizePending
		res.Message = i18n.T(ctx, i18n.PaymentConfirming)
	}
}

func (r *Reconciler) finalize(ctx context.Context, id Identity, bt BookingType, o Outcome) error {
	api := r.Backend.For(id)
	var err error
	switch {
	case bt == BookingConsultant && o.Gateway == GatewayVNPay:
		_, err = api.ConsultantVNPaySuccess(ctx, o.Flat())
	case bt == BookingConsultant && o.Gateway == GatewayPayPal:
		_, err = api.ConsultantPayPalSuccess(ctx, o.PaymentID, o.PayerID)
	case o.Gateway == GatewayVNPay:
		_, err = api.CreateInvoice(ctx, o.RawQuery)
	case o.Gateway == GatewayPayPal:
		_, err = api.PayPalSuccess(ctx, o.PaymentID, o.PayerID)
	default:
		err = errors.New("payment: unknown gateway")
	}
	return err
}

// RetryResult carries the fresh checkout URL.
type RetryResult struct {
	RedirectURL string `json:"redirectUrl"`
	Message     string `json:"message"`
}

// Retry requests a fresh checkout URL for the stashed booking. Storage is
// read, never cleared. The gateway is, in order: preferred (if set), the
// stashed gateway, VNPay when the failed landing came from VNPay, else PayPal.
func (r *Reconciler) Retry(ctx context.Context, id Identity, rawQuery string, preferred Gateway) (RetryResult, error) {
	sid := id.ID()
	p, err := r.pending(ctx, sid)
	if err != nil {
		return RetryResult{Message: i18n.T(ctx, i18n.PaymentRetryFailed)}, err
	}
	if p.BookingID == "" {
		return RetryResult{Message: i18n.T(ctx, i18n.PaymentNothingToPay)}, ErrNoPendingPayment
	}

	switch {
	case preferred != GatewayUnknown:
		p.Gateway = preferred
	case p.Gateway != GatewayUnknown:
	case Detect(rawQuery).Gateway == GatewayVNPay:
		p.Gateway = GatewayVNPay
	default:
		p.Gateway = GatewayPayPal
	}

	if err := storage.SetMany(ctx, r.Store, sid, map[string]string{
		storage.KeyBookingType: string(p.BookingType),
		storage.KeyGateway:     string(p.Gateway),
	}); err != nil {
		return RetryResult{Message: i18n.T(ctx, i18n.PaymentRetryFailed)}, err
	}

	u, err := r.redirectFor(ctx, id, p)
	if err != nil {
		return RetryResult{Message: backend.MessageOf(err, i18n.T(ctx, i18n.PaymentRetryFailed))}, err
	}
	return RetryResult{RedirectURL: u, Message: i18n.T(ctx, i18n.PaymentRedirecting)}, nil
}

// Begin stashes p and returns the first checkout URL. The stash survives a
// failed URL request so the user can retry from the landing page.
func (r *Reconciler) Begin(ctx context.Context, id Identity, p PendingPayment) (RetryResult, error) {
	p.BookingType = ParseBookingType(string(p.BookingType))
	if strings.TrimSpace(p.BookingID) == "" || p.Gateway == GatewayUnknown {
		return RetryResult{Message: i18n.T(ctx, i18n.PaymentUnknown)}, ErrInvalidPending
	}
	if p.BookingType == BookingSTI {
		if _, err := currency.ParseAmount(p.Amount); err != nil {
			return RetryResult{Message: i18n.T(ctx, i18n.FieldRequired, "amount")}, ErrInvalidPending
		}
	}

	if err := storage.SetMany(ctx, r.Store, id.ID(), map[string]string{
		storage.KeyBookingID:   p.BookingID,
		storage.KeyAmount:      p.Amount,
		storage.KeyOrderInfo:   p.OrderInfo,
		storage.KeyBookingType: string(p.BookingType),
		storage.KeyGateway:     string(p.Gateway),
	}); err != nil {
		return RetryResult{}, err
	}

	u, err := r.redirectFor(ctx, id, p)
	if err != nil {
		return RetryResult{Message: backend.MessageOf(err, i18n.T(ctx, i18n.PaymentRetryFailed))}, err
	}
	return RetryResult{RedirectURL: u, Message: i18n.T(ctx, i18n.PaymentRedirecting)}, nil
}

// Abandon drops the pending payment unconditionally ("return home").
func (r *Reconciler) Abandon(ctx context.Context, id Identity) error {
	return r.Store.Remove(ctx, id.ID(), storage.PendingPaymentKeys...)
}

// Pending returns the stashed payment; BookingID is empty when none.
func (r *Reconciler) Pending(ctx context.Context, id Identity) (PendingPayment, error) {
	return r.pending(ctx, id.ID())
}

func (r *Reconciler) pending(ctx context.Context, sid string) (PendingPayment, error) {
	var p PendingPayment
	vals := map[string]*string{
		storage.KeyBookingID: &p.BookingID,
		storage.KeyAmount:    &p.Amount,
		storage.KeyOrderInfo: &p.OrderInfo,
	}
	for k, dst := range vals {
		v, err := storage.GetOr(ctx, r.Store, sid, k, "")
		if err != nil {
			return PendingPayment{}, err
		}
		*dst = v
	}
	bt, err := storage.GetOr(ctx, r.Store, sid, storage.KeyBookingType, "")
	if err != nil {
		return PendingPayment{}, err
	}
	gw, err := storage.GetOr(ctx, r.Store, sid, storage.KeyGateway, "")
	if err != nil {
		return PendingPayment{}, err
	}
	p.BookingType = ParseBookingType(bt)
	p.Gateway = ParseGateway(gw)
	return p, nil
}

func (r *Reconciler) redirectFor(ctx context.Context, id Identity, p PendingPayment) (string, error) {
	api := r.Backend.For(id)
	if p.BookingType == BookingConsultant {
		method := backend.MethodPayPal
		if p.Gateway == GatewayVNPay {
			method = backend.MethodVNPay
		}
		return api.ConsultantRedirectURL(ctx, p.BookingID, method)
	}
	if p.Gateway == GatewayVNPay {
		return api.VNPayURL(ctx, p.Amount, p.OrderInfo, p.BookingID)
	}
	if r.Converter == nil {
		return "", errors.New("payment: no currency converter configured")
	}
	usd, err := r.Converter.VNDToUSD(p.Amount)
	if err != nil {
		return "", err
	}
	return api.PayPalURL(ctx, usd, p.BookingID)
}

func (r *Reconciler) finalizeTimeout() time.Duration {
	if r.FinalizeTimeout <= 0 {
		return 30 * time.Second
	}
	return r.FinalizeTimeout
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
