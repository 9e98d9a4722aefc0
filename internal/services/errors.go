// Package services holds the portal's use cases that sit above the backend
// client: bookings and their payments, the staff dashboard, the blog and the
// cycle tracker. Services take the caller's *session.Holder explicitly and
// never reach for ambient identity.
//
// Errors declared here are translated to HTTP status codes and stable error
// codes by the handlers package.
package services

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation needs a logged-in
	// session and the holder carries no token.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the session's role may not run the
	// operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidBooking is returned for an incomplete or malformed booking
	// request.
	ErrInvalidBooking = errors.New("invalid booking request")

	// ErrUnknownAction is returned for a staff transition the backend does
	// not know.
	ErrUnknownAction = errors.New("unknown booking action")

	// ErrBookingInProgress is returned when a submission with the same
	// Idempotency-Key is still running.
	ErrBookingInProgress = errors.New("booking submission in progress")

	// ErrNoBookingID means the backend accepted a booking with an online
	// payment method but its reply carries no booking id to pay for.
	ErrNoBookingID = errors.New("booking reply carries no booking id")

	// ErrInvalidPost is returned when a blog post lacks a title or content.
	ErrInvalidPost = errors.New("title and content are required")

	// ErrStartDateRequired is returned by the cycle tracker without a start
	// date.
	ErrStartDateRequired = errors.New("start date is required")

	// ErrInvalidCycle is returned for an unparsable start date or
	// out-of-range lengths.
	ErrInvalidCycle = errors.New("invalid cycle parameters")
)
