package middleware

import "net/http"

// NoStore forbids caching of responses. Token and credential endpoints must
// never be cached by browsers or intermediaries (RFC 6749 section 5.1).
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
