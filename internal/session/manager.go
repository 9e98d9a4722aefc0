// Package session holds the authenticated identity of one portal session:
// the bearer token and the cached user profile. A Holder is built explicitly
// per request by Manager.Open and handed down to handlers; it is the only
// source of the token attached to backend calls.
//
// At most one identity is held per session. Logging in while authenticated
// fails with ErrAlreadyAuthenticated.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/storage"
)

// Manager opens holders on top of the session store.
type Manager struct {
	Store   storage.Store
	Backend *backend.Client

	// RefreshTimeout bounds the background profile refresh after login.
	RefreshTimeout time.Duration
	// Now is overridable in tests.
	Now func() time.Time

	wg sync.WaitGroup
	// locks serialize identity writes per session within this process.
	locks [64]sync.Mutex
}

// NewManager returns a Manager with a 10s refresh budget.
func NewManager(store storage.Store, api *backend.Client) *Manager {
	return &Manager{
		Store:          store,
		Backend:        api,
		RefreshTimeout: 10 * time.Second,
		Now:            time.Now,
	}
}

// Open loads the session state for sid. A stored, unexpired token marks the
// holder authenticated without contacting the backend. An expired token is
// wiped together with the cached profile.
func (m *Manager) Open(ctx context.Context, sid string) (*Holder, error) {
	h := &Holder{m: m, id: sid}

	tok, err := storage.GetOr(ctx, m.Store, sid, storage.KeyToken, "")
	if err != nil {
		return nil, err
	}
	if tok == "" {
		return h, nil
	}
	if tokenExpired(tok, m.now()) {
		if err := m.Store.Remove(ctx, sid, storage.KeyToken, storage.KeyUser); err != nil {
			return nil, err
		}
		return h, nil
	}

	user, err := storage.GetOr(ctx, m.Store, sid, storage.KeyUser, "")
	if err != nil {
		return nil, err
	}
	h.token = tok
	if user != "" && json.Valid([]byte(user)) {
		h.user = json.RawMessage(user)
	}
	if err := m.Store.Touch(ctx, sid); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return h, nil
}

// lock takes the identity lock of sid and returns its release.
func (m *Manager) lock(sid string) func() {
	f := fnv.New32a()
	_, _ = f.Write([]byte(sid))
	mu := &m.locks[f.Sum32()%uint32(len(m.locks))]
	mu.Lock()
	return mu.Unlock
}

// Wait blocks until background refreshes started by Login have finished.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
