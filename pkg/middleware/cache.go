package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl sets Cache-Control on GET responses. Anonymous requests may be
// cached publicly for maxAge seconds; requests carrying credentials get a
// private, revalidated response because their content can differ per viewer.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	public := fmt.Sprintf("public, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				if hasCredentials(r) {
					w.Header().Set("Cache-Control", "private, no-cache")
				} else {
					w.Header().Set("Cache-Control", public)
				}
				w.Header().Add("Vary", "Authorization")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks every response as uncacheable.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func hasCredentials(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return true
	}
	_, err := r.Cookie(AccessTokenCookie)
	return err == nil
}
