package auth

import (
	"net/http"
	"strconv"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/go-chi/chi"
)

// OwnerPolicy admits users acting on their own resources, and anyone else
// holding one of the listed permissions.
type OwnerPolicy struct {
	authorizer PermissionAuthorizer
}

func NewOwnerPolicy(authorizer PermissionAuthorizer) *OwnerPolicy {
	return &OwnerPolicy{authorizer: authorizer}
}

func (p *OwnerPolicy) Allow(actor *internal.User, ownerID int64, permissions ...string) bool {
	if actor == nil {
		return false
	}
	return actor.ID == ownerID || p.authorizer.HasAnyPermission(actor, permissions...)
}

// RequireSelfOr builds a middleware that reads the owner id from the chi URL
// parameter param.
func (p *OwnerPolicy) RequireSelfOr(rbac *RBACAuthorization, param string, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := rbac.Actor(w, r)
			if !ok {
				return
			}
			ownerID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || ownerID <= 0 {
				rbac.WriteAppError(w, internal.NewValidationFieldError(param, "invalid "+param, internal.ErrCodeValidationFailed))
				return
			}
			if !p.Allow(user, ownerID, permissions...) {
				rbac.Logger.WarnContext(r.Context(), "access denied: not the owner", "user_id", user.ID, "owner_id", ownerID)
				rbac.WriteAppError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
