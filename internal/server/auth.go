package server

import (
	"fmt"
	"net/http"
	"strings"

	"filechain/internal/auth"
)

const adminPathPrefix = "/v1/admin/"

// withAdminAuth guards admin routes with X-Admin-Token when a token is configured.
func (s *Server) withAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" || !strings.HasPrefix(r.URL.Path, adminPathPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		if !auth.TokenMatches(s.adminToken, strings.TrimSpace(r.Header.Get("X-Admin-Token"))) {
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("admin token required")))
			return
		}
		next.ServeHTTP(w, r)
	})
}
