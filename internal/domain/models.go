// Package domain defines the persistence models of the portal. These types are
// mapped with GORM and back the per-session storage that survives payment
// gateway redirects.
package domain

import "time"

// StorageEntry is one key/value pair in a portal session's durable storage.
// A portal session stands in for a browser tab, so the set of entries under a
// SessionID plays the role of that tab's storage (token, user, bookingID, ...).
//
// Fields:
//   - SessionID: opaque portal session identifier (cookie value).
//   - Key: storage key, unique per session.
//   - Value: raw string value; JSON documents are stored verbatim.
//   - ExpiresAt: entries past this instant are treated as absent.
type StorageEntry struct {
	SessionID string    `gorm:"type:varchar(64);primaryKey"`
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index:idx_storage_expiry"`
}

// TableName returns the database table name for StorageEntry.
func (StorageEntry) TableName() string { return "session_storage" }
