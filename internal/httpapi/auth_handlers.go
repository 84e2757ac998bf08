package httpapi

import (
	"net/http"
	"time"

	"orgguard.dev/internal/access"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profile struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	FullName     string       `json:"full_name"`
	RoleKey      string       `json:"role_key"`
	RoleScope    access.Scope `json:"role_scope"`
	OrgID        string       `json:"org_id,omitempty"`
	OrgName      string       `json:"org_name,omitempty"`
	PlatformID   string       `json:"platform_id"`
	PlatformName string       `json:"platform_name,omitempty"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      profile   `json:"user"`
}

type meResponse struct {
	User        profile                       `json:"user"`
	Permissions map[string]access.Permissions `json:"resolved_permissions"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !bind(w, r, &req) {
		return
	}
	sess, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	p, err := a.profile(r, sess.User, sess.Role)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: p})
}

// handleMe returns the caller's profile with effective permissions on every module.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := access.ActorFromContext(r.Context())
	user, err := a.store.GetUser(r.Context(), actor.ID)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	role, err := a.store.GetRole(r.Context(), user.RoleID)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	p, err := a.profile(r, user, role)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	perms, err := a.resolver.ResolveAll(r.Context(), user.ID, user.RoleID)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: p, Permissions: perms})
}

func (a *API) handleModules(w http.ResponseWriter, r *http.Request) {
	modules, err := a.store.ListModules(r.Context())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": modules})
}

func (a *API) profile(r *http.Request, u access.User, role access.Role) (profile, error) {
	p := profile{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		RoleKey:    role.Key,
		RoleScope:  role.Scope,
		OrgID:      u.OrgID,
		PlatformID: u.PlatformID,
	}
	if u.OrgID != "" {
		org, err := a.store.GetOrganization(r.Context(), u.OrgID)
		if err != nil {
			return profile{}, err
		}
		p.OrgName = org.Name
	}
	platform, err := a.store.GetPlatform(r.Context(), u.PlatformID)
	if err != nil {
		return profile{}, err
	}
	p.PlatformName = platform.Name
	return p, nil
}
