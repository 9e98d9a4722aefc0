// Package storage provides the per-session key/value store that outlives a
// single HTTP request. A portal session stands in for a browser tab: the
// bearer token, the cached profile and the pending payment fields live here
// across the payment gateway redirect round-trip.
//
// Writes are last-writer-wins. SetNX is the only conditional operation and
// backs the one-shot finalize latch.
package storage

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Storage keys shared by the session holder and the payment reconciler.
const (
	KeyToken       = "token"
	KeyUser        = "user"
	KeyBookingID   = "bookingID"
	KeyAmount      = "amount"
	KeyOrderInfo   = "orderInfo"
	KeyBookingType = "bookingType"
	KeyGateway     = "gateway"
)

// PendingPaymentKeys lists every key written when a payment redirect starts.
var PendingPaymentKeys = []string{KeyBookingID, KeyAmount, KeyOrderInfo, KeyBookingType, KeyGateway}

// DefaultTTL is used when a store is constructed with a non-positive TTL.
const DefaultTTL = 12 * time.Hour

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("storage: key not found")

// Store is the session-scoped key/value contract.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, sessionID, key string) (string, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, sessionID, key, value string) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, sessionID, key, value string) (bool, error)
	// Remove deletes the given keys; missing keys are ignored.
	Remove(ctx context.Context, sessionID string, keys ...string) error
	// Touch extends the lifetime of the whole session.
	Touch(ctx context.Context, sessionID string) error
}

// GetOr returns the stored value, or def when the key is absent.
func GetOr(ctx context.Context, s Store, sessionID, key, def string) (string, error) {
	v, err := s.Get(ctx, sessionID, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetMany writes several keys in order, stopping at the first error.
func SetMany(ctx context.Context, s Store, sessionID string, kv map[string]string) error {
	for _, k := range sortedKeys(kv) {
		if err := s.Set(ctx, sessionID, k, kv[k]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
