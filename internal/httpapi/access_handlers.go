package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
)

type accessResponse struct {
	Allowed     bool               `json:"allowed"`
	ModuleKey   string             `json:"module_key"`
	Action      access.Action      `json:"action"`
	Permissions access.Permissions `json:"permissions"`
}

// handleAccessProbe runs the guard for the module and action named in the path.
func (a *API) handleAccessProbe(w http.ResponseWriter, r *http.Request) {
	action := access.Action(strings.ToLower(chi.URLParam(r, "action")))
	dec, err := a.guard.Check(r.Context(), chi.URLParam(r, "moduleKey"), action)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{
		Allowed:     true,
		ModuleKey:   dec.ModuleKey,
		Action:      dec.Action,
		Permissions: dec.Permissions,
	})
}

// handleAuditList lists the caller's organization audit entries, newest first.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	dec, ok := decisionFrom(r.Context())
	if !ok {
		a.respondErr(w, r, access.ErrInternalMisuse)
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, access.Code(access.ErrInvalidInput), "limit must be an integer")
			return
		}
		limit = n
	}
	entries, err := a.auditLog.ListAudit(r.Context(), audit.Filter{
		PlatformID: dec.Actor.PlatformID,
		OrgID:      dec.Actor.OrgID,
		ModuleKey:  q.Get("moduleKey"),
		Action:     q.Get("action"),
		Limit:      limit,
	}.Normalize())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
