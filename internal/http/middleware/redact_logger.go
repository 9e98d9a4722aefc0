package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RedactOptions extends the built-in scrub lists.
type RedactOptions struct {
	// MaskHeaders are replaced with "[REDACTED]" (case-insensitive), on top of
	// Authorization, Cookie and Set-Cookie.
	MaskHeaders []string
	// MaskParams are query parameters replaced with "[REDACTED]"
	// (case-insensitive), on top of the gateway signature and payer fields.
	MaskParams []string
}

// Query parameters that must never reach the logs. Gateway landings carry a
// signature and payer identifiers; account flows carry OTPs.
var defaultMaskParams = []string{
	"vnp_SecureHash", "vnp_SecureHashType", "PayerID", "payerId", "paymentId",
	"token", "otp", "password", "newPassword",
}

var (
	// UUIDs first so the phone pattern cannot eat their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func lowerSet(base []string, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for _, v := range append(append([]string(nil), base...), extra...) {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

// redactQuery masks listed parameters by name and scrubs PII out of the
// remaining values. Unparsable queries are scrubbed as a whole.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(raw)
	}
	for k, vs := range vals {
		if _, ok := mask[strings.ToLower(k)]; ok {
			vals[k] = []string{"[REDACTED]"}
			continue
		}
		for i := range vs {
			vs[i] = scrub(vs[i])
		}
	}
	// Encode sorts by key, which keeps log lines stable.
	out, _ := url.QueryUnescape(vals.Encode())
	return out
}

// RedactingLogger is the production access logger. It attaches the same
// request-scoped logger as Logger and writes one line per request with the
// query and headers scrubbed. Bodies are never logged.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders)
	maskParams := lowerSet(defaultMaskParams, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}

		l := baseLogger(c).With().
			Str("query", truncate(redactQuery(c.Request.URL.RawQuery, maskParams), maxQueryLogLength)).
			Logger()
		attachLogger(c, &l)

		c.Next()

		emitAccess(c, start, func(ev *zerolog.Event) {
			ev.Interface("headers", headers)
		})
	}
}
