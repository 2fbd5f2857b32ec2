package middleware

import (
	"mime"
	"net/http"
	"strings"
	"unicode"
)

// responseHeaders go out on every response. The daemon only serves JSON
// and event streams, none of which may be framed, sniffed or cached.
var responseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
	{"Permissions-Policy", "camera=(), geolocation=()"},
}

// SecurityHeaders sets responseHeaders before the handler runs.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range responseHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize rejects declared bodies above maxBytes and caps the rest.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				jsonError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateRequest requires JSON bodies and rejects malformed paths and
// query values before routing.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 && hasBody(r.Method) && !isJSON(r.Header.Get("Content-Type")) {
			jsonError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
			return
		}
		if badPath(r.URL.Path) || badQuery(r) {
			jsonError(w, http.StatusBadRequest, "invalid request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

func badPath(p string) bool {
	return strings.Contains(p, "..") || strings.Contains(p, "//") || hasControl(p)
}

// badQuery rejects values no route accepts: ids, limits and tokens are
// plain ASCII without markup.
func badQuery(r *http.Request) bool {
	if r.URL.RawQuery == "" {
		return false
	}
	for _, values := range r.URL.Query() {
		for _, v := range values {
			if hasControl(v) || strings.ContainsAny(v, `<>"'`) {
				return true
			}
		}
	}
	return false
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
