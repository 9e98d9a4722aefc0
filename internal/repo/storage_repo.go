// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for per-session
// storage entries.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition. Expired rows are filtered on read and removed lazily by
// PurgeExpired.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/genderhealth/care-portal/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// GetEntry returns the live value stored under (sessionID, key).
func GetEntry(ctx context.Context, db *gorm.DB, sessionID, key string, now time.Time) (*domain.StorageEntry, error) {
	var e domain.StorageEntry
	err := db.WithContext(ctx).
		Where("session_id = ? AND key = ? AND expires_at > ?", sessionID, key, now).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutEntry upserts (sessionID, key) with value. Last writer wins.
func PutEntry(ctx context.Context, db *gorm.DB, sessionID, key, value string, ttl time.Duration) error {
	now := time.Now().UTC()
	e := &domain.StorageEntry{
		SessionID: sessionID,
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "expires_at"}),
	}).Create(e).Error
}

// InsertEntry writes (sessionID, key) only when no live entry exists. It
// returns ErrDuplicate when the key is already held. An expired leftover row
// is cleared first so it cannot block the insert.
func InsertEntry(ctx context.Context, db *gorm.DB, sessionID, key, value string, ttl time.Duration) error {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("session_id = ? AND key = ? AND expires_at <= ?", sessionID, key, now).
		Delete(&domain.StorageEntry{}).Error; err != nil {
		return err
	}
	e := &domain.StorageEntry{
		SessionID: sessionID,
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteEntries removes the given keys of a session. Missing keys are ignored.
func DeleteEntries(ctx context.Context, db *gorm.DB, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("session_id = ? AND key IN ?", sessionID, keys).
		Delete(&domain.StorageEntry{}).Error
}

// TouchSession extends the expiry of every entry in the session.
func TouchSession(ctx context.Context, db *gorm.DB, sessionID string, ttl time.Duration) error {
	return db.WithContext(ctx).
		Model(&domain.StorageEntry{}).
		Where("session_id = ?", sessionID).
		Update("expires_at", time.Now().UTC().Add(ttl)).Error
}

// PurgeExpired deletes all entries whose expiry has passed and returns the
// number of rows removed.
func PurgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.StorageEntry{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation detects unique-constraint failures across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
