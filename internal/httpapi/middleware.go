package httpapi

import (
	"net/http"
	"slices"
)

// contentSecurityPolicy restricts what the browser may load from responses
// served by this API. Kept permissive enough for the bundled web client.
const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' 'unsafe-eval'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"connect-src 'self' ws: wss:; " +
	"media-src 'self' blob:"

// corsMiddleware adds CORS and CSP headers for the configured browser
// origins and short-circuits OPTIONS preflight requests.
func corsMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && slices.Contains(allowedOrigins, origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Requested-With")
			h.Set("Access-Control-Allow-Methods", "GET,PUT,POST,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Vary", "Origin")
		}
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
