package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"engagehub/internal/contextutils"
	"engagehub/internal/models"
	"engagehub/internal/response"
	"engagehub/internal/services"
)

// Identity headers set by the upstream gateway after authentication
const (
	HeaderXUserID   = "X-User-ID"
	HeaderXUserRole = "X-User-Role"
)

// Actor reads the gateway identity headers into the request context.
// Requests without them pass through anonymously; malformed headers are rejected.
func Actor(builder *response.Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := strings.TrimSpace(r.Header.Get(HeaderXUserID))
			if rawID == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil || userID <= 0 {
				builder.WriteError(w, r, services.NewValidationError("invalid "+HeaderXUserID+" header", err))
				return
			}

			role := models.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderXUserRole))))
			switch role {
			case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
			default:
				builder.WriteError(w, r, services.NewValidationError("invalid "+HeaderXUserRole+" header", nil))
				return
			}

			ctx := contextutils.WithActor(r.Context(), models.Actor{UserID: userID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects anonymous requests
func RequireActor(builder *response.Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := contextutils.GetActor(r.Context()); !ok {
				builder.WriteError(w, r, services.NewUnauthorizedError("caller identity required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
