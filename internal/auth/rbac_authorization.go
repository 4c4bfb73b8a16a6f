package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/transport"
)

type PermissionAuthorizer interface {
	IsAuthorized(actor *internal.User, permission string) bool
	HasAnyPermission(actor *internal.User, permissions ...string) bool
}

// RBACAuthorization gates routes on the caller's permissions before the handler runs.
// Services repeat the check, so this only turns obvious denials away early.
type RBACAuthorization struct {
	*transport.BaseHandler
	authorizer PermissionAuthorizer
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger) *RBACAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		authorizer:  authorizer,
	}
}

// Require admits callers holding any of permissions.
func (ra *RBACAuthorization) Require(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := ra.Actor(w, r)
			if !ok {
				return
			}
			if !ra.authorizer.HasAnyPermission(user, permissions...) {
				ra.Logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					"user_id", user.ID,
					"required_permissions", permissions,
					"user_permissions", user.Permissions)
				ra.WriteAppError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.Require(internal.PermissionAdmin)
}
