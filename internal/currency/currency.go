// Package currency converts booking amounts between VND, the currency every
// price is quoted in, and USD, the only currency the PayPal checkout accepts.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for empty, malformed or negative amounts.
var ErrInvalidAmount = errors.New("currency: invalid amount")

// Converter converts with a fixed VND-per-USD rate.
type Converter struct {
	Rate decimal.Decimal // VND per 1 USD, > 0
}

// NewConverter parses rate (e.g. "25000").
func NewConverter(rate string) (*Converter, error) {
	r, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil {
		return nil, fmt.Errorf("currency: parse rate %q: %w", rate, err)
	}
	if !r.IsPositive() {
		return nil, fmt.Errorf("currency: rate must be positive, got %s", r)
	}
	return &Converter{Rate: r}, nil
}

// VNDToUSD returns the USD amount with two decimals, rounded half away from
// zero. The minimum non-zero result is 0.01.
func (c *Converter) VNDToUSD(vnd string) (string, error) {
	amt, err := ParseAmount(vnd)
	if err != nil {
		return "", err
	}
	usd := amt.Div(c.Rate).Round(2)
	if usd.IsZero() && amt.IsPositive() {
		usd = decimal.New(1, -2)
	}
	return usd.StringFixed(2), nil
}

// ParseAmount parses a non-negative decimal amount. Grouping separators
// ("500,000" or "500.000 ₫") are not accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
