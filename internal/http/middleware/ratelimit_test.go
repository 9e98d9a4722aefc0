package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyBySessionOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if got := KeyBySessionOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("ip key = %q", got)
	}
	c.Set(sessionIDKey, "s-42")
	if got := KeyBySessionOrIP()(c); got != "sess:s-42" {
		t.Fatalf("session key = %q", got)
	}
	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByIP = %q", got)
	}
}

func TestNewRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d", rl.burst)
	}
	a := rl.limiter("k1")
	if b := rl.limiter("k1"); a != b {
		t.Fatalf("limiter not reused for same key")
	}
	if c := rl.limiter("k2"); c == a {
		t.Fatalf("different keys share a limiter")
	}
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByIP())
	rl.limiter("idle")
	rl.visitors["idle"].lastSeen = time.Now().Add(-time.Hour)
	rl.lookups = sweepEvery - 1

	rl.limiter("active")
	if _, ok := rl.visitors["idle"]; ok {
		t.Fatalf("idle key survived the sweep")
	}
	if _, ok := rl.visitors["active"]; !ok {
		t.Fatalf("active key missing")
	}
}

func TestRateLimiter_Handler429AndBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 1, KeyBySessionOrIP())

	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) {
		if c.GetHeader("X-Replay") == "1" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(replay bool) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "198.51.100.7:1000"
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(false); w.Code != http.StatusNoContent {
		t.Fatalf("first request = %d", w.Code)
	}
	w := do(false)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request = %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
	if w := do(true); w.Code != http.StatusNoContent {
		t.Fatalf("bypassed request = %d", w.Code)
	}
}
