package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/services"
	"github.com/genderhealth/care-portal/internal/session"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-500" || resp.Code != ErrCodeInternal || resp.Message != "kaboom" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_Fail_4xx_NotLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-404")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })
	r.DELETE("/gone", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json 404: %v", err)
	}
	if er.RequestID != "rid-404" || er.Code != ErrCodeNotFound || er.Message != "nope" {
		t.Fatalf("unexpected 404 body: %+v", er)
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx was logged: %s", buf.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/gone", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("204: status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestWriteError_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	transport := &url.Error{Op: "Get", URL: "http://backend/users/me", Err: errors.New("connection refused")}
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"validation", &session.ValidationError{Field: "password", Message: "password is required"}, 400, ErrCodeValidation, "password is required"},
		{"service not logged in", services.ErrNotAuthenticated, 401, ErrCodeUnauthorized, "you are not logged in or your session has expired"},
		{"session not logged in", fmt.Errorf("logout: %w", session.ErrNotAuthenticated), 401, ErrCodeUnauthorized, ""},
		{"forbidden", services.ErrForbidden, 403, ErrCodeForbidden, ""},
		{"already logged in", session.ErrAlreadyAuthenticated, 409, ErrCodeConflict, ""},
		{"booking in progress", services.ErrBookingInProgress, 409, ErrCodeConflict, "this booking is already being submitted, please wait"},
		{"start date", services.ErrStartDateRequired, 400, ErrCodeValidation, "please choose the first day of your period"},
		{"bad booking", fmt.Errorf("%w: bookingDate", services.ErrInvalidBooking), 400, ErrCodeValidation, "invalid booking request: bookingDate"},
		{"no booking id", services.ErrNoBookingID, 502, ErrCodeBadGateway, "server error, please try again later"},
		{"backend 401", &backend.APIError{Status: 401, Message: "Token expired"}, 401, ErrCodeUnauthorized, "Token expired"},
		{"backend 404", &backend.APIError{Status: 404}, 404, ErrCodeNotFound, ""},
		{"backend 409", &backend.APIError{Status: 409, Message: "Slot is full"}, 409, ErrCodeRejected, "Slot is full"},
		{"backend 503", &backend.APIError{Status: 503, Message: "db down"}, 502, ErrCodeBadGateway, "server error, please try again later"},
		{"unreachable", transport, 502, ErrCodeBadGateway, ""},
		{"deadline", context.DeadlineExceeded, 502, ErrCodeBadGateway, ""},
		{"ours", errors.New("disk full"), 500, ErrCodeInternal, "server error, please try again later"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { writeError(c, tc.err) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er.Code != tc.code {
				t.Fatalf("code = %q, want %q", er.Code, tc.code)
			}
			if tc.msg != "" && er.Message != tc.msg {
				t.Fatalf("message = %q, want %q", er.Message, tc.msg)
			}
			if er.Message == "" {
				t.Fatalf("empty message")
			}
		})
	}
}
