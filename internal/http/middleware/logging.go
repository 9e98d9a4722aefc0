// Package middleware contains the Gin middleware of the portal's HTTP layer.
//
// This file provides the correlation ID, the request-scoped logger and the
// panic recovery handler. The logger is stored twice: in the Gin context
// under "logger" for handlers, and in the request's context.Context so that
// packages below the transport (session, payment) can use zerolog.Ctx.
//
// Recommended order: RequestID, RedactingLogger (or Logger), Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxQueryLogLength caps the bytes of raw query logged per request.
	maxQueryLogLength = 2048
)

// RequestID reuses the caller's X-Request-ID or mints a UUIDv4, echoes it on
// the response and stores it under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger emits one structured access line per request without any
// redaction. Prefer RedactingLogger for anything facing the internet; this
// variant exists for local debugging.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		l := baseLogger(c).With().
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Logger()
		attachLogger(c, &l)

		c.Next()

		emitAccess(c, start, nil)
	}
}

// baseLogger derives the request-scoped logger fields shared by both access
// loggers.
func baseLogger(c *gin.Context) zerolog.Logger {
	rid, _ := c.Get(requestIDKey)
	return log.With().
		Str("request_id", asString(rid)).
		Str("method", c.Request.Method).
		Str("path", routeOf(c)).
		Str("remote_ip", c.ClientIP()).
		Logger()
}

// attachLogger makes l available through LoggerFrom and zerolog.Ctx.
func attachLogger(c *gin.Context, l *zerolog.Logger) {
	c.Set(loggerKey, l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// emitAccess writes the access line with the response fields, picking the
// level from the outcome.
func emitAccess(c *gin.Context, start time.Time, extra func(*zerolog.Event)) {
	l := LoggerFrom(c)
	var ev *zerolog.Event
	switch status := c.Writer.Status(); {
	case len(c.Errors) > 0:
		ev = l.Error().Str("errors", c.Errors.String())
	case status >= http.StatusInternalServerError:
		ev = l.Error()
	case status >= http.StatusBadRequest:
		ev = l.Warn()
	default:
		ev = l.Info()
	}
	if sid, ok := c.Get(sessionIDKey); ok {
		ev = ev.Str("session_id", asString(sid))
	}
	if extra != nil {
		extra(ev)
	}
	ev.Int("status", c.Writer.Status()).
		Dur("latency", time.Since(start)).
		Int("bytes_out", c.Writer.Size()).
		Msg("request")
}

// Recovery turns a panic into the standard JSON 500 envelope and logs the
// stack. When the handler already started writing, only the status is set.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.Logger
	return &l
}

func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
