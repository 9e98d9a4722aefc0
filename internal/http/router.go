// Package httpapi wires the HTTP transport (Gin) to the portal services,
// middleware and route handlers. It owns the cross-cutting order: tracing,
// correlation IDs, redacted logging, panic recovery, metrics, compression,
// CORS, security headers, sessions, idempotency and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/genderhealth/care-portal/docs"
	"github.com/genderhealth/care-portal/internal/config"
	"github.com/genderhealth/care-portal/internal/http/handlers"
	"github.com/genderhealth/care-portal/internal/http/middleware"
	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/payment"
	"github.com/genderhealth/care-portal/internal/repo"
	"github.com/genderhealth/care-portal/internal/services"
	"github.com/genderhealth/care-portal/internal/session"
)

// maxBodyBytes leaves room for avatar, cover image and result PDF uploads.
const maxBodyBytes = 10 << 20

// Deps are the long-lived objects the routes need.
type Deps struct {
	DB       *gorm.DB // idempotency records
	Sessions *session.Manager
	Payments *payment.Reconciler
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the portal API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token and PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip, CORS and security headers
//
// and on the API group:
//  8. Sessions: cookie, holder and locale
//  9. Idempotency validator on POST /bookings/sti (before the limiter so a
//     replay bypasses it)
//  10. Rate limiter per session/IP
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Backend-Token"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	bookings := &services.BookingService{
		DB:             deps.DB,
		Payments:       deps.Payments,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	h := handlers.New(bookings, deps.Payments)

	api := groupWithPrefix(r, cfg.APIBasePath)
	bookingPath := joinPath(api.BasePath(), "/bookings/sti")
	api.Use(
		middleware.Sessions(middleware.SessionOptions{
			Manager:       deps.Sessions,
			CookieName:    cfg.Cookie.Name,
			Domain:        cfg.Cookie.Domain,
			Secure:        cfg.Cookie.Secure,
			TTL:           cfg.SessionTTL,
			DefaultLocale: i18n.ParseLocale(cfg.DefaultLocale),
		}),
		middleware.NoStore(),
		onlyFor(http.MethodPost, bookingPath, middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200, Scope: services.IdempotencyScopeSTIBooking},
			idempotencyLookup(deps.DB),
		)),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionOrIP()).Handler(),
	)

	{
		// Account
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
		api.POST("/auth/register", h.Register)
		api.POST("/auth/forgot-password", h.ForgotPassword)
		api.POST("/auth/verify-otp", h.VerifyOTP)
		api.POST("/auth/reset-password", h.ResetPassword)

		// Public reads
		api.GET("/blog/latest", h.LatestPosts)
		api.GET("/blog/search", h.SearchPosts)
		api.GET("/blog/:id", h.GetPost)
		api.GET("/sti/packages", h.ListPackages)

		// Payment landing: the session carries the pending payment; the
		// reconciler copes with a logged-out landing on its own.
		api.GET("/payment/result", h.PaymentResult)
		api.GET("/payment/pending", h.PendingPayment)
		api.POST("/payment/retry", h.RetryPayment)
		api.POST("/payment/abandon", h.AbandonPayment)
	}

	authed := api.Group("", middleware.RequireAuth())
	{
		authed.GET("/auth/me", h.Me)
		authed.PUT("/profile", h.UpdateProfile)
		authed.PUT("/profile/avatar", h.UploadAvatar)

		authed.GET("/blog/mine", h.MyPosts)
		authed.POST("/blog", h.CreatePost)
		authed.PUT("/blog/:id", h.UpdatePost)
		authed.DELETE("/blog/:id", h.DeletePost)

		authed.GET("/sti/check-limit", h.CheckLimit)
		authed.POST("/bookings/sti", h.CreateSTIBooking)
		authed.GET("/bookings/sti/history", h.BookingHistory)
		authed.PUT("/bookings/sti/:id/cancel", h.CancelBooking)
		authed.GET("/bookings/sti/:id/result", h.ViewResult)

		authed.POST("/health/cycle", h.CalculateCycle)
		authed.GET("/health/cycle/calendar", h.CycleCalendar)
	}

	staff := api.Group("/staff", middleware.RequireRole(services.StaffRoles...))
	{
		staff.GET("/bookings", h.ManageBookings)
		staff.POST("/bookings/:id/result", h.EnterResult)
		staff.PUT("/bookings/:id/result-pdf", h.UploadResultPDF)
		staff.PUT("/bookings/:id/:action", h.TransitionBooking)
	}
}

// corsMiddleware allows every origin without credentials when none are
// configured; otherwise it allows the listed origins with cookies.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Accept-Language", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", handlers.HeaderIdempotentReplay},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, for health checks and tests.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	base.AllowCredentials = true
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// idempotencyLookup reports whether a booking submission was already
// recorded for (session, scope, key).
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, sessionID, scope, key string, now time.Time) (bool, error) {
		if db == nil {
			return false, nil
		}
		if _, err := repo.GetIdempotency(ctx, db, sessionID, scope, key, now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
}

// onlyFor runs mw for one method and route pattern and skips it elsewhere.
func onlyFor(method, fullPath string, mw gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == method && c.FullPath() == fullPath {
			mw(c)
			return
		}
		c.Next()
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	return strings.TrimRight(base, "/") + p
}
