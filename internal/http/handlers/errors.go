// Package handlers holds the portal's HTTP endpoints.
//
// The codes below are the stable, machine-readable half of every error
// envelope. Clients branch on them; the message is for display only and is
// localized.
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "message": "password confirmation does not match"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
	ErrCodeSessionMissing   = "session_unavailable"

	// The backend answered with a 4xx; its message is passed through.
	ErrCodeRejected = "request_rejected"
	// The backend failed or could not be reached.
	ErrCodeBadGateway = "bad_gateway"

	// Payment flows.
	ErrCodeNoPendingPayment = "no_pending_payment"
	ErrCodePaymentFailed    = "payment_failed"
)
