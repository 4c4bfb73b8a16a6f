package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	loggerpkg "github.com/frahmantamala/timetrack-payroll/pkg/logger"
	"github.com/go-chi/chi"
)

// credentialKeys never reach the log in any form.
var credentialKeys = []string{"password", "token", "authorization", "secret", "api_key", "cookie"}

// compensationKeys are pay figures; they are masked so request logs can be
// shipped to shared sinks without leaking salaries.
var compensationKeys = []string{
	"base_rate", "regular_rate", "overtime_rate",
	"gross_amount", "adjustments_amount", "net_amount", "total_amount", "amount",
}

const maxLoggedBody = 4096

// quietPaths log at debug so health checks don't flood the info stream.
var quietPaths = map[string]bool{
	"/api/v1/health": true,
	"/api/v1/ping":   true,
}

func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := loggerpkg.FromOr(r.Context(), logger)
			quiet := quietPaths[r.URL.Path]

			var reqBody []byte
			if r.Body != nil && isJSON(r.Header.Get("Content-Type")) {
				reqBody, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBody*4))
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), r.Body))
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			case quiet:
				level = slog.LevelDebug
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern(r),
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", rec.size,
				"remote_addr", r.RemoteAddr,
			}
			if level != slog.LevelDebug || log.Enabled(r.Context(), slog.LevelDebug) {
				attrs = append(attrs, "request_body", redactBody(reqBody))
				if isJSON(rec.Header().Get("Content-Type")) {
					attrs = append(attrs, "response_body", redactBody(rec.body.Bytes()))
				}
			}
			log.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

// recorder keeps the status and the head of the response body.
type recorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
}

func (rw *recorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody*2 - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	rw.size += len(b)
	return rw.ResponseWriter.Write(b)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.Contains(strings.ToLower(contentType), "json")
}

func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		if hasKey(strings.ToLower(string(body)), credentialKeys) {
			return "[FILTERED]"
		}
		return truncate(string(body))
	}
	out, err := json.Marshal(redact(data))
	if err != nil {
		return "[FILTERED]"
	}
	return truncate(string(out))
}

func redact(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			lower := strings.ToLower(key)
			switch {
			case hasKey(lower, credentialKeys):
				out[key] = "[FILTERED]"
			case isCompensationKey(lower):
				out[key] = "[REDACTED]"
			default:
				out[key] = redact(value)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redact(item)
		}
		return out
	default:
		return v
	}
}

func hasKey(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func isCompensationKey(key string) bool {
	for _, k := range compensationKeys {
		if key == k {
			return true
		}
	}
	return false
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "...[TRUNCATED]"
	}
	return s
}
