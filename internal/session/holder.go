package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/storage"
)

// Holder is the identity state of one portal session. It implements
// backend.TokenSource. All fields are guarded by mu because the background
// profile refresh started by Login writes concurrently with the request.
//
// Holders are rebuilt on every request, so writes of the stored identity
// are serialized by the Manager's per-session lock and checked against the
// stored token, never against holder-local state.
type Holder struct {
	m  *Manager
	id string

	mu    sync.RWMutex
	token string
	user  json.RawMessage
}

// LoginResult is the user-facing outcome of Login.
type LoginResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
	// UpstreamStatus is the backend's status for a failed login, 0 when the
	// backend was never heard from.
	UpstreamStatus int `json:"-"`
}

// ProfileResult is the outcome of RefreshProfile. It never carries an error;
// failures are described by Message.
type ProfileResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Result is a plain success flag plus notification text.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ID returns the portal session ID.
func (h *Holder) ID() string { return h.id }

// Token implements backend.TokenSource.
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Authenticated reports whether a token is held.
func (h *Holder) Authenticated() bool { return h.Token() != "" }

// User returns a copy of the cached profile JSON (nil when unknown).
func (h *Holder) User() json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.user == nil {
		return nil
	}
	return append(json.RawMessage(nil), h.user...)
}

// Role returns the upper-cased role from the cached profile, without a
// "ROLE_" prefix. Empty when unknown.
func (h *Holder) Role() string { return roleOf(h.User()) }

// HasRole reports whether the held role is one of roles.
func (h *Holder) HasRole(roles ...string) bool {
	r := h.Role()
	if r == "" {
		return false
	}
	for _, want := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

// Backend returns a backend session that authenticates as this holder.
func (h *Holder) Backend() *backend.Session { return h.m.Backend.For(h) }

// Login exchanges credentials for a token. Backend failures are mapped to a
// user-facing message and reported with Success=false and a nil error; the
// error return is reserved for ErrAlreadyAuthenticated and storage failures.
func (h *Holder) Login(ctx context.Context, usernameOrEmail, password string) (LoginResult, error) {
	if h.Authenticated() {
		return LoginResult{Message: i18n.T(ctx, i18n.AlreadyLoggedIn)}, ErrAlreadyAuthenticated
	}

	res, err := h.m.Backend.For(backend.Anonymous).Login(ctx, usernameOrEmail, password)
	if err != nil {
		return LoginResult{Message: loginFailure(ctx, err), UpstreamStatus: backend.StatusOf(err)}, nil
	}
	if res.Token == "" {
		return LoginResult{Message: i18n.T(ctx, i18n.LoginFailed), UpstreamStatus: http.StatusOK}, nil
	}

	role := normalizeRole(res.Role)
	var user json.RawMessage
	if role != "" {
		user, _ = json.Marshal(map[string]string{"role": role})
	}

	unlock := h.m.lock(h.id)
	defer unlock()
	// another request of this session may have logged in meanwhile
	held, err := storage.GetOr(ctx, h.m.Store, h.id, storage.KeyToken, "")
	if err != nil {
		return LoginResult{}, err
	}
	if held != "" {
		return LoginResult{Message: i18n.T(ctx, i18n.AlreadyLoggedIn)}, ErrAlreadyAuthenticated
	}
	if err := h.m.Store.Set(ctx, h.id, storage.KeyToken, res.Token); err != nil {
		return LoginResult{}, err
	}
	if user != nil {
		if err := h.m.Store.Set(ctx, h.id, storage.KeyUser, string(user)); err != nil {
			return LoginResult{}, err
		}
	} else if err := h.m.Store.Remove(ctx, h.id, storage.KeyUser); err != nil {
		return LoginResult{}, err
	}

	h.mu.Lock()
	h.token = res.Token
	h.user = user
	h.mu.Unlock()

	h.refreshInBackground(ctx)

	return LoginResult{Success: true, Message: i18n.T(ctx, i18n.LoginSuccess), Role: role}, nil
}

func loginFailure(ctx context.Context, err error) string {
	switch backend.StatusOf(err) {
	case 401:
		return i18n.T(ctx, i18n.InvalidCredentials)
	case 500:
		return i18n.T(ctx, i18n.ServerError)
	default:
		return i18n.T(ctx, i18n.LoginFailed)
	}
}

// refreshInBackground fetches the profile on a context detached from the
// request. Its failure is only logged.
func (h *Holder) refreshInBackground(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	h.m.wg.Add(1)
	go func() {
		defer h.m.wg.Done()
		timeout := h.m.RefreshTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		rctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		if r := h.RefreshProfile(rctx); !r.Success {
			zerolog.Ctx(rctx).Warn().
				Str("session_id", h.id).
				Str("reason", r.Message).
				Msg("background profile refresh failed")
		}
	}()
}

// Logout forgets the identity and returns the notification text.
func (h *Holder) Logout(ctx context.Context) (string, error) {
	unlock := h.m.lock(h.id)
	defer unlock()
	if err := h.m.Store.Remove(ctx, h.id, storage.KeyToken, storage.KeyUser); err != nil {
		return "", err
	}
	h.mu.Lock()
	h.token = ""
	h.user = nil
	h.mu.Unlock()
	return i18n.T(ctx, i18n.LogoutSuccess), nil
}

// RefreshProfile fetches /users/me and merges it over the stored profile.
// The result is dropped when the session no longer holds the token the
// fetch was made with.
func (h *Holder) RefreshProfile(ctx context.Context) ProfileResult {
	tok := h.Token()
	if tok == "" {
		return ProfileResult{Message: i18n.T(ctx, i18n.NotLoggedIn)}
	}

	body, err := h.Backend().Me(ctx)
	if err != nil {
		return ProfileResult{Message: backend.MessageOf(err, i18n.T(ctx, i18n.ProfileFailed))}
	}
	if isEmptyJSON(body) {
		return ProfileResult{Message: i18n.T(ctx, i18n.ProfileEmpty)}
	}

	unlock := h.m.lock(h.id)
	defer unlock()
	held, err := storage.GetOr(ctx, h.m.Store, h.id, storage.KeyToken, "")
	if err != nil {
		return ProfileResult{Message: i18n.T(ctx, i18n.ProfileFailed)}
	}
	if held != tok {
		// logged out or switched identity meanwhile
		h.forget()
		return ProfileResult{Message: i18n.T(ctx, i18n.NotLoggedIn)}
	}
	stored, err := storage.GetOr(ctx, h.m.Store, h.id, storage.KeyUser, "")
	if err != nil {
		return ProfileResult{Message: i18n.T(ctx, i18n.ProfileFailed)}
	}
	merged := mergeJSON(json.RawMessage(stored), body)
	if err := h.m.Store.Set(ctx, h.id, storage.KeyUser, string(merged)); err != nil {
		return ProfileResult{Message: i18n.T(ctx, i18n.ProfileFailed)}
	}
	h.mu.Lock()
	h.user = merged
	h.mu.Unlock()
	return ProfileResult{Success: true, Data: append(json.RawMessage(nil), merged...)}
}

func (h *Holder) forget() {
	h.mu.Lock()
	h.token = ""
	h.user = nil
	h.mu.Unlock()
}

// UpdateUser shallow-merges patch into the cached profile and persists it.
func (h *Holder) UpdateUser(ctx context.Context, patch map[string]any) (json.RawMessage, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	unlock := h.m.lock(h.id)
	defer unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token == "" {
		return nil, ErrNotAuthenticated
	}
	merged := mergeJSON(h.user, b)
	if err := h.m.Store.Set(ctx, h.id, storage.KeyUser, string(merged)); err != nil {
		return nil, err
	}
	h.user = merged
	return append(json.RawMessage(nil), merged...), nil
}

func isEmptyJSON(b json.RawMessage) bool {
	s := strings.TrimSpace(string(b))
	return s == "" || s == "null" || s == "{}" || s == `""`
}

// mergeJSON overlays the top-level keys of patch onto base. When either side
// is not an object, patch wins as a whole.
func mergeJSON(base, patch json.RawMessage) json.RawMessage {
	var p map[string]json.RawMessage
	if err := json.Unmarshal(patch, &p); err != nil {
		return append(json.RawMessage(nil), patch...)
	}
	var b map[string]json.RawMessage
	if len(base) == 0 || json.Unmarshal(base, &b) != nil || b == nil {
		b = map[string]json.RawMessage{}
	}
	for k, v := range p {
		b[k] = v
	}
	out, err := json.Marshal(b)
	if err != nil {
		return append(json.RawMessage(nil), patch...)
	}
	return out
}

var upper = cases.Upper(language.Und)

func normalizeRole(r string) string {
	r = upper.String(strings.TrimSpace(r))
	return strings.TrimPrefix(r, "ROLE_")
}

// roleOf reads "role" (a string, or an object with roleName/name) or
// "roleName" from a profile document.
func roleOf(user json.RawMessage) string {
	if len(user) == 0 {
		return ""
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(user, &doc); err != nil {
		return ""
	}
	if raw, ok := doc["role"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return normalizeRole(s)
		}
		var obj struct {
			RoleName string `json:"roleName"`
			Name     string `json:"name"`
		}
		if json.Unmarshal(raw, &obj) == nil {
			if obj.RoleName != "" {
				return normalizeRole(obj.RoleName)
			}
			if obj.Name != "" {
				return normalizeRole(obj.Name)
			}
		}
	}
	if raw, ok := doc["roleName"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return normalizeRole(s)
		}
	}
	return ""
}
