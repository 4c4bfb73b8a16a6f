package middleware

import (
	"net/http"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/pkg/logger"
)

// UserContext tags the request logger with the authenticated user id. It must run after auth.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if user, ok := internal.UserFromContext(ctx); ok {
			ctx = logger.With(ctx, "user_id", user.ID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
