package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/session"
)

// Defaults and bounds of the cycle tracker form.
const (
	DefaultCycleLength  = 28
	DefaultPeriodLength = 5

	minCycleLength, maxCycleLength   = 20, 45
	minPeriodLength, maxPeriodLength = 1, 10
)

// CycleInput is the tracker form. Zero lengths take the defaults.
type CycleInput struct {
	StartDate    string `json:"startDate" example:"2026-10-01"`
	CycleLength  int    `json:"cycleLength" example:"28"`
	PeriodLength int    `json:"periodLength" example:"5"`
	Note         string `json:"note"`
}

// CycleService computes the period window and asks the backend for the
// calendar.
type CycleService struct{}

// Request turns the form into the backend payload. The period ends
// PeriodLength-1 days after it starts.
func (in CycleInput) Request() (backend.CycleRequest, error) {
	start := strings.TrimSpace(in.StartDate)
	if start == "" {
		return backend.CycleRequest{}, ErrStartDateRequired
	}
	d, err := time.Parse(dateLayout, start)
	if err != nil {
		return backend.CycleRequest{}, ErrInvalidCycle
	}
	cycle := in.CycleLength
	if cycle == 0 {
		cycle = DefaultCycleLength
	}
	period := in.PeriodLength
	if period == 0 {
		period = DefaultPeriodLength
	}
	if cycle < minCycleLength || cycle > maxCycleLength || period < minPeriodLength || period > maxPeriodLength {
		return backend.CycleRequest{}, ErrInvalidCycle
	}
	return backend.CycleRequest{
		StartDate:   d.Format(dateLayout),
		EndDate:     d.AddDate(0, 0, period-1).Format(dateLayout),
		CycleLength: cycle,
		Note:        in.Note,
	}, nil
}

// Calculate validates the form and returns the calendar the backend built.
func (CycleService) Calculate(ctx context.Context, h *session.Holder, in CycleInput) (json.RawMessage, error) {
	req, err := in.Request()
	if err != nil {
		return nil, err
	}
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return h.Backend().CalculateCycle(ctx, req)
}

// Calendar returns the calendar of the caller's latest cycle.
func (CycleService) Calendar(ctx context.Context, h *session.Holder) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return h.Backend().Calendar(ctx)
}
