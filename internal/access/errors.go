package access

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrScopeViolation       = errors.New("organization scope required")
	ErrMissingTenantContext = errors.New("missing organization context")
	ErrUnknownModule        = errors.New("unknown module")
	ErrAccessDenied         = errors.New("access denied")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConflict             = errors.New("resource conflict")
	ErrInternalMisuse       = errors.New("authorization invoked without an authenticated actor")
)

type errorClass struct {
	err    error
	status int
	code   string
}

var classes = []errorClass{
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{ErrScopeViolation, http.StatusForbidden, "scope_violation"},
	{ErrMissingTenantContext, http.StatusForbidden, "missing_tenant_context"},
	{ErrAccessDenied, http.StatusForbidden, "access_denied"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrUnknownModule, http.StatusBadRequest, "unknown_module"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrConflict, http.StatusConflict, "conflict"},
	{ErrInternalMisuse, http.StatusInternalServerError, "internal_misuse"},
}

// StatusCode maps an error to its HTTP status class. Unclassified errors are 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns a stable machine-readable kind for err.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
