// Package api implements the Lookback REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenParam carries the token for clients that cannot set headers:
// EventSource and <img>/<video> sources pointing at media URLs.
const tokenParam = "access_token"

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry "Authorization: Bearer <token>"
// or, for GET requests only, an access_token query parameter.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := requestToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.CutPrefix(auth, "Bearer ")
	}
	if r.Method == http.MethodGet {
		if q := r.URL.Query().Get(tokenParam); q != "" {
			return q, true
		}
	}
	return "", false
}
