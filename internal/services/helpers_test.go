package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/currency"
	"github.com/genderhealth/care-portal/internal/payment"
	"github.com/genderhealth/care-portal/internal/repo"
	"github.com/genderhealth/care-portal/internal/session"
	"github.com/genderhealth/care-portal/internal/storage"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type upstreamCall struct {
	Method, Path, Query, Auth, ContentType string
	Body                                   string
}

// upstream is a scripted platform backend keyed by "METHOD /path".
type upstream struct {
	mu     sync.Mutex
	calls  []upstreamCall
	routes map[string]http.HandlerFunc
	srv    *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{routes: map[string]http.HandlerFunc{}}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.calls = append(u.calls, upstreamCall{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization"), r.Header.Get("Content-Type"), string(b)})
		h := u.routes[r.Method+" "+r.URL.Path]
		u.mu.Unlock()
		if h == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"message":"ok"}`)
			return
		}
		h(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) on(route, body string, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[route] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (u *upstream) handle(route string, h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[route] = h
}

func (u *upstream) find(method, path string) []upstreamCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []upstreamCall
	for _, c := range u.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (u *upstream) total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

type fixture struct {
	db      *gorm.DB
	store   storage.Store
	api     *upstream
	client  *backend.Client
	manager *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newSvcDB(t)
	api := newUpstream(t)
	client := backend.New(api.srv.URL, api.srv.Client())
	store := storage.NewGormStore(db, time.Hour)
	return &fixture{db: db, store: store, api: api, client: client, manager: session.NewManager(store, client)}
}

// holder opens a session; a non-empty role logs it in with an opaque token.
func (f *fixture) holder(t *testing.T, sid, role string) *session.Holder {
	t.Helper()
	ctx := context.Background()
	if role != "" {
		if err := storage.SetMany(ctx, f.store, sid, map[string]string{
			storage.KeyToken: "tok-" + sid,
			storage.KeyUser:  fmt.Sprintf(`{"role":%q}`, role),
		}); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}
	h, err := f.manager.Open(ctx, sid)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return h
}

func (f *fixture) bookings() *BookingService {
	conv, _ := currency.NewConverter("25000")
	return &BookingService{
		DB:       f.db,
		Payments: payment.NewReconciler(f.store, f.client, conv),
	}
}

func backendHistory(status string) backend.HistoryQuery {
	return backend.HistoryQuery{Status: status}
}
