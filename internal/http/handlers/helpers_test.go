package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/currency"
	"github.com/genderhealth/care-portal/internal/http/middleware"
	"github.com/genderhealth/care-portal/internal/payment"
	"github.com/genderhealth/care-portal/internal/repo"
	"github.com/genderhealth/care-portal/internal/services"
	"github.com/genderhealth/care-portal/internal/session"
	"github.com/genderhealth/care-portal/internal/storage"
)

const cookieName = "portal_session"

type platformCall struct {
	Method, Path, Query, Auth, ContentType, Body string
}

// platform is a scripted backend keyed by "METHOD /path". Unscripted routes
// answer 200 {"message":"ok"}.
type platform struct {
	mu     sync.Mutex
	calls  []platformCall
	routes map[string]func(w http.ResponseWriter)
	srv    *httptest.Server
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	p := &platform{routes: map[string]func(http.ResponseWriter){}}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		p.calls = append(p.calls, platformCall{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization"), r.Header.Get("Content-Type"), string(b)})
		fn := p.routes[r.Method+" "+r.URL.Path]
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if fn == nil {
			_, _ = io.WriteString(w, `{"message":"ok"}`)
			return
		}
		fn(w)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *platform) on(route string, status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[route] = func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (p *platform) count(method, path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (p *platform) last(method, path string) (platformCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.calls) - 1; i >= 0; i-- {
		if c := p.calls[i]; c.Method == method && c.Path == path {
			return c, true
		}
	}
	return platformCall{}, false
}

func (p *platform) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type env struct {
	api     *platform
	store   storage.Store
	manager *session.Manager
	r       *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	api := newPlatform(t)
	client := backend.New(api.srv.URL, api.srv.Client())
	store := storage.NewGormStore(db, time.Hour)
	mgr := session.NewManager(store, client)
	t.Cleanup(mgr.Wait)
	conv, err := currency.NewConverter("25000")
	if err != nil {
		t.Fatalf("converter: %v", err)
	}
	rec := payment.NewReconciler(store, client, conv)
	h := New(&services.BookingService{DB: db, Payments: rec}, rec)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Sessions(middleware.SessionOptions{
		Manager:       mgr,
		CookieName:    cookieName,
		TTL:           time.Hour,
		DefaultLocale: language.English,
	}))
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.POST("/auth/register", h.Register)
	r.GET("/auth/me", h.Me)
	r.POST("/auth/reset-password", h.ResetPassword)
	r.PUT("/profile", h.UpdateProfile)
	r.PUT("/profile/avatar", h.UploadAvatar)
	r.GET("/sti/packages", h.ListPackages)
	r.GET("/sti/check-limit", h.CheckLimit)
	r.POST("/bookings/sti",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: services.IdempotencyScopeSTIBooking}, nil),
		h.CreateSTIBooking)
	r.GET("/bookings/sti/history", h.BookingHistory)
	r.PUT("/bookings/sti/:id/cancel", h.CancelBooking)
	r.GET("/bookings/sti/:id/result", h.ViewResult)
	r.GET("/staff/bookings", h.ManageBookings)
	r.PUT("/staff/bookings/:id/result-pdf", h.UploadResultPDF)
	r.PUT("/staff/bookings/:id/:action", h.TransitionBooking)
	r.POST("/staff/bookings/:id/result", h.EnterResult)
	r.GET("/blog/latest", h.LatestPosts)
	r.POST("/blog", h.CreatePost)
	r.DELETE("/blog/:id", h.DeletePost)
	r.POST("/health/cycle", h.CalculateCycle)
	r.GET("/health/cycle/calendar", h.CycleCalendar)
	r.GET("/payment/result", h.PaymentResult)
	r.GET("/payment/pending", h.PendingPayment)
	r.POST("/payment/retry", h.RetryPayment)
	r.POST("/payment/abandon", h.AbandonPayment)

	return &env{api: api, store: store, manager: mgr, r: r}
}

// login seeds an authenticated session with role and returns its ID.
func (e *env) login(t *testing.T, role string) string {
	t.Helper()
	sid := uuid.NewString()
	ctx := context.Background()
	if err := e.store.Set(ctx, sid, storage.KeyToken, "tok-"+sid); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	if err := e.store.Set(ctx, sid, storage.KeyUser, `{"role":"`+role+`","fullName":"Lan"}`); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return sid
}

func (e *env) stash(t *testing.T, sid string, kv map[string]string) {
	t.Helper()
	if err := storage.SetMany(context.Background(), e.store, sid, kv); err != nil {
		t.Fatalf("stash: %v", err)
	}
}

func (e *env) get(t *testing.T, sid, key string) string {
	t.Helper()
	v, err := storage.GetOr(context.Background(), e.store, sid, key, "")
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return v
}

// do sends a request in session sid ("" for a fresh session). A string or
// []byte body is sent as is; anything else is JSON encoded.
func (e *env) do(method, path, sid string, body any, header ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	ct := ""
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
		ct = "application/json"
	case *bytes.Buffer:
		rd = b
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
		ct = "application/json"
	}
	req := httptest.NewRequest(method, path, rd)
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: sid})
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error envelope %q: %v", w.Body.String(), err)
	}
	return er
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}
