package auth

import (
	"net/http"
	"strings"

	"github.com/example/anime-import/internal/platform/api"
)

const RoleAdmin = "admin"

// RequireRole allows the request only if RequireUser injected one of roles.
// Roles compare case-insensitively.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			allowed[r] = struct{}{}
		}
	}
	code, msg := "ROLE_REQUIRED", "Insufficient role"
	if len(allowed) == 1 {
		if _, ok := allowed[RoleAdmin]; ok {
			code, msg = "ADMIN_REQUIRED", "Admin role required"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := RoleFromContext(r.Context())
			if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; !ok {
				api.Forbidden(w, code, msg, requestID(r))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRole(RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin)(next)
}
