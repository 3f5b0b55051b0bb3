package middleware

import (
	"net/http"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

// RequireCapability ensures the authenticated user's role grants capability.
// Requests without an authenticated user get 401, users lacking the
// capability get 403.
func RequireCapability(capability domain.Capability, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !role.Can(capability) {
				userID, _ := GetUserID(r.Context())
				logger.Warn("User lacks capability",
					zap.String("user_id", userID.String()),
					zap.Stringer("role", role),
					zap.String("capability", string(capability)),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin ensures the user may manage the catalog
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireCapability(domain.CapManageCatalog, logger)
}
