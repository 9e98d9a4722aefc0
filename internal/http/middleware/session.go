package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/session"
)

const (
	sessionIDKey = "sessionID"
	holderKey    = "session"
)

// SessionOptions configures Sessions.
type SessionOptions struct {
	Manager    *session.Manager
	CookieName string
	Domain     string
	Secure     bool
	// TTL is the cookie Max-Age; the store applies its own expiry.
	TTL time.Duration
	// DefaultLocale is used when Accept-Language matches nothing supported.
	DefaultLocale language.Tag
}

// Sessions resolves the portal session of every request.
//
// The session ID comes from the cookie; a missing or malformed cookie gets a
// fresh UUID. The opened *session.Holder is stored for HolderFrom, the
// session ID is added to the request logger, and an i18n printer matched
// from Accept-Language is put into the request context.
func Sessions(opts SessionOptions) gin.HandlerFunc {
	maxAge := int(opts.TTL.Seconds())
	return func(c *gin.Context) {
		p := i18n.Match(c.GetHeader("Accept-Language"), opts.DefaultLocale)
		ctx := i18n.WithPrinter(c.Request.Context(), p)

		sid, err := c.Cookie(opts.CookieName)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
		}

		l := LoggerFrom(c).With().Str("session_id", sid).Logger()
		ctx = l.WithContext(ctx)
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(ctx)
		c.Set(sessionIDKey, sid)

		h, err := opts.Manager.Open(ctx, sid)
		if err != nil {
			l.Error().Err(err).Msg("open session")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "session_unavailable",
				"message":    i18n.T(ctx, i18n.ServerError),
			})
			return
		}
		c.Set(holderKey, h)

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(opts.CookieName, sid, maxAge, "/", opts.Domain, opts.Secure, true)
		c.Next()
	}
}

// HolderFrom returns the session opened by Sessions, or nil outside it.
func HolderFrom(c *gin.Context) *session.Holder {
	if v, ok := c.Get(holderKey); ok {
		if h, ok := v.(*session.Holder); ok {
			return h
		}
	}
	return nil
}

// SessionID returns the current portal session ID, or "".
func SessionID(c *gin.Context) string {
	v, _ := c.Get(sessionIDKey)
	return asString(v)
}

// RequireAuth rejects requests whose session holds no token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if abortUnauthenticated(c) {
			return
		}
		c.Next()
	}
}

// RequireRole rejects authenticated sessions whose cached role is not one
// of roles. It implies RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if abortUnauthenticated(c) {
			return
		}
		if !HolderFrom(c).HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "forbidden",
				"message":    i18n.T(c.Request.Context(), i18n.Forbidden),
			})
			return
		}
		c.Next()
	}
}

// abortUnauthenticated answers 401 when the session holds no token. It
// never calls c.Next.
func abortUnauthenticated(c *gin.Context) bool {
	if h := HolderFrom(c); h != nil && h.Authenticated() {
		return false
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    i18n.T(c.Request.Context(), i18n.NotLoggedIn),
	})
	return true
}
