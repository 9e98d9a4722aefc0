package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/genderhealth/care-portal/internal/repo"
)

// GormStore keeps session entries in the session_storage table. It is the
// default driver and works with the embedded SQLite database.
type GormStore struct {
	DB  *gorm.DB
	TTL time.Duration
}

// NewGormStore returns a GormStore with the given entry lifetime.
func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{DB: db, TTL: ttlOrDefault(ttl)}
}

func (s *GormStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	e, err := repo.GetEntry(ctx, s.DB, sessionID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (s *GormStore) Set(ctx context.Context, sessionID, key, value string) error {
	return repo.PutEntry(ctx, s.DB, sessionID, key, value, ttlOrDefault(s.TTL))
}

func (s *GormStore) SetNX(ctx context.Context, sessionID, key, value string) (bool, error) {
	err := repo.InsertEntry(ctx, s.DB, sessionID, key, value, ttlOrDefault(s.TTL))
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GormStore) Remove(ctx context.Context, sessionID string, keys ...string) error {
	return repo.DeleteEntries(ctx, s.DB, sessionID, keys...)
}

func (s *GormStore) Touch(ctx context.Context, sessionID string) error {
	return repo.TouchSession(ctx, s.DB, sessionID, ttlOrDefault(s.TTL))
}

// Purge removes expired rows. Redis expires keys on its own; SQLite needs
// this to run periodically.
func (s *GormStore) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpired(ctx, s.DB, time.Now().UTC())
}
