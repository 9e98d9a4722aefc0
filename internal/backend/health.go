package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// CycleRequest is the payload of POST /menstrual/calculate. Dates are
// YYYY-MM-DD.
type CycleRequest struct {
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	CycleLength int    `json:"cycleLength"`
	Note        string `json:"note"`
}

func (s *Session) CalculateCycle(ctx context.Context, in CycleRequest) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/menstrual/calculate",
		path:   "/menstrual/calculate",
		json:   in,
	})
}

// Calendar returns the calendar built from the user's latest cycle.
func (s *Session) Calendar(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/menstrual/calendar/me",
		path:   "/menstrual/calendar/me",
	})
}
