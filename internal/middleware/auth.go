package middleware

import (
	"context"
	"net/http"
	"strings"

	"teaching-workload/internal/model"
	"teaching-workload/pkg/apierror"
)

type authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Identity, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

// Policy is the access metadata attached to a route. An empty Roles list
// admits any authenticated identity.
type Policy struct {
	Roles                  []model.Role
	AllowTemporaryPassword bool
}

type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Protect builds the guard chain for a route: token, then role, then the
// temporary-password gate. The first failing stage answers the request.
func (m *AuthMiddleware) Protect(policy Policy) func(http.Handler) http.Handler {
	roles := m.RequireRoles(policy.Roles...)

	return func(next http.Handler) http.Handler {
		guarded := next
		if !policy.AllowTemporaryPassword {
			guarded = RequirePasswordChanged(guarded)
		}
		return m.RequireAuth(roles(guarded))
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			apierror.Write(w, r, apierror.New(apierror.CodeInvalidToken, "missing or invalid authorization header", "", http.StatusUnauthorized))
			return
		}

		identity, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			apierror.Write(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	roleSet := make(map[model.Role]struct{}, len(allowed))
	for _, role := range allowed {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(roleSet) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				apierror.Write(w, r, apierror.New(apierror.CodeInvalidToken, "authentication required", "", http.StatusUnauthorized))
				return
			}

			if _, permitted := roleSet[identity.Role]; !permitted {
				apierror.Write(w, r, apierror.New(apierror.CodeForbidden, "insufficient permissions", "", http.StatusForbidden))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePasswordChanged blocks identities that still carry an
// administrator-issued password.
func RequirePasswordChanged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			apierror.Write(w, r, apierror.New(apierror.CodeInvalidToken, "authentication required", "", http.StatusUnauthorized))
			return
		}

		if identity.IsPasswordTemporary {
			apierror.Write(w, r, apierror.New(apierror.CodePasswordChangeRequired, "password change required", "", http.StatusForbidden))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
