package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"orgguard.dev/internal/access"
)

type overrideEntry struct {
	ModuleKey string          `json:"moduleKey" validate:"required,min=2"`
	Read      access.Tristate `json:"read"`
	Write     access.Tristate `json:"write"`
	Update    access.Tristate `json:"update"`
	Delete    access.Tristate `json:"delete"`
}

type setOverridesRequest struct {
	Overrides []overrideEntry `json:"overrides" validate:"required,min=1,dive"`
}

type overridesResponse struct {
	UserID    string                      `json:"user_id"`
	Overrides []access.UserModuleOverride `json:"overrides"`
}

type roleAccessEntry struct {
	ModuleKey string `json:"moduleKey" validate:"required,min=2"`
	Read      *bool  `json:"read" validate:"required"`
	Write     *bool  `json:"write" validate:"required"`
	Update    *bool  `json:"update" validate:"required"`
	Delete    *bool  `json:"delete" validate:"required"`
}

type setRoleAccessRequest struct {
	Modules []roleAccessEntry `json:"modules" validate:"required,min=1,dive"`
}

type createOrganizationRequest struct {
	OrgName       string `json:"orgName" validate:"required,min=2"`
	AdminFullName string `json:"adminFullName" validate:"required,min=2"`
	AdminEmail    string `json:"adminEmail" validate:"required,email"`
	AdminPassword string `json:"adminPassword" validate:"required,min=8"`
}

func (a *API) handleSetOverrides(w http.ResponseWriter, r *http.Request) {
	actor, _ := access.ActorFromContext(r.Context())
	userID := chi.URLParam(r, "userId")

	var req setOverridesRequest
	if !bind(w, r, &req) {
		return
	}
	inputs := make([]access.OverrideInput, 0, len(req.Overrides))
	for _, o := range req.Overrides {
		inputs = append(inputs, access.OverrideInput{
			ModuleKey: strings.TrimSpace(o.ModuleKey),
			Flags:     access.OverrideFlags{Read: o.Read, Write: o.Write, Update: o.Update, Delete: o.Delete},
		})
	}
	stored, err := a.admin.SetOverrides(r.Context(), actor, userID, inputs)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overridesResponse{UserID: userID, Overrides: stored})
}

func (a *API) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	actor, _ := access.ActorFromContext(r.Context())
	userID := chi.URLParam(r, "userId")
	stored, err := a.admin.ListOverrides(r.Context(), actor, userID)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if stored == nil {
		stored = []access.UserModuleOverride{}
	}
	writeJSON(w, http.StatusOK, overridesResponse{UserID: userID, Overrides: stored})
}

func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	actor, _ := access.ActorFromContext(r.Context())
	orgs, err := a.admin.ListOrganizations(r.Context(), actor)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []access.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	actor, _ := access.ActorFromContext(r.Context())
	var req createOrganizationRequest
	if !bind(w, r, &req) {
		return
	}
	res, err := a.admin.OnboardOrganization(r.Context(), actor, access.OnboardInput{
		OrgName:       req.OrgName,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
		AdminFullName: req.AdminFullName,
	})
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/platform/organizations/%s", res.Organization.ID))
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleSetRoleAccess(w http.ResponseWriter, r *http.Request) {
	actor, _ := access.ActorFromContext(r.Context())
	var req setRoleAccessRequest
	if !bind(w, r, &req) {
		return
	}
	inputs := make([]access.RoleAccessInput, 0, len(req.Modules))
	for _, m := range req.Modules {
		inputs = append(inputs, access.RoleAccessInput{
			ModuleKey:   strings.TrimSpace(m.ModuleKey),
			Permissions: access.Permissions{Read: *m.Read, Write: *m.Write, Update: *m.Update, Delete: *m.Delete},
		})
	}
	stored, err := a.admin.SetRoleDefaults(r.Context(), actor, chi.URLParam(r, "roleKey"), inputs)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role_key": chi.URLParam(r, "roleKey"), "modules": stored})
}
