package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON sends a sized body so the response is complete once flushed.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body = []byte(`{"error":"internal error","code":"internal"}`)
	}
	body = append(body, '\n')
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, kind, msg string) {
	writeJSON(w, code, errorResponse{
		Error:     msg,
		Code:      kind,
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

// respondErr maps a domain error to its status. Server errors are logged and hidden.
func (a *API) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := access.StatusCode(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("request_id", audit.RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, status, "internal", "internal error")
		return
	}
	writeError(w, r, status, access.Code(err), err.Error())
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{
		Error:     "validation failed",
		Code:      access.Code(access.ErrInvalidInput),
		RequestID: audit.RequestIDFromContext(r.Context()),
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Details = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			// drop the request type name: "overrides[0].moduleKey"
			key := fe.Namespace()
			if i := strings.IndexByte(key, '.'); i >= 0 {
				key = key[i+1:]
			}
			resp.Details[key] = fe.Tag()
		}
	} else {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// bind decodes and validates a JSON body, writing the 400 response itself on failure.
func bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, access.Code(access.ErrInvalidInput), err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeValidationError(w, r, err)
		return false
	}
	return true
}
