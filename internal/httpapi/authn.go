package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/guard"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth resolves the bearer token into a live actor stored in the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			a.respondErr(w, r, fmt.Errorf("%w: %v", access.ErrUnauthenticated, err))
			return
		}
		actor, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, access.ErrUnauthenticated) {
				a.log.Debug("authentication failed", zap.Error(err))
				writeError(w, r, http.StatusUnauthorized, access.Code(err), "invalid or expired token")
				return
			}
			a.respondErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.ContextWithActor(r.Context(), actor)))
	})
}

// requireOrgContext rejects org-scoped actors that are not bound to an organization.
func requireOrgContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := access.ActorFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, access.Code(access.ErrUnauthenticated), "authentication required")
			return
		}
		if actor.RoleScope == access.ScopeOrg && actor.OrgID == "" {
			writeError(w, r, http.StatusForbidden, access.Code(access.ErrMissingTenantContext), "organization context is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSuperadmin admits only the platform superadmin role.
func requireSuperadmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := access.ActorFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, access.Code(access.ErrUnauthenticated), "authentication required")
			return
		}
		if !actor.IsSuperadmin() {
			writeError(w, r, http.StatusForbidden, access.Code(access.ErrForbidden), "platform superadmin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type decisionKey struct{}

// requireAccess gates a route on the guard's decision for a fixed module and action.
// The decision and its effective permissions are attached to the request context.
func (a *API) requireAccess(moduleKey string, action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec, err := a.guard.Check(r.Context(), moduleKey, action)
			if err != nil {
				a.respondErr(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), decisionKey{}, dec)
			ctx = access.ContextWithPermissions(ctx, dec.Permissions)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func decisionFrom(ctx context.Context) (guard.Decision, bool) {
	dec, ok := ctx.Value(decisionKey{}).(guard.Decision)
	return dec, ok
}

// requireRole admits only actors holding roleKey.
func requireRole(roleKey, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := access.ActorFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, access.Code(access.ErrUnauthenticated), "authentication required")
				return
			}
			if actor.RoleKey != roleKey {
				writeError(w, r, http.StatusForbidden, access.Code(access.ErrForbidden), msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
