package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/riddle015/riverhacks/internal/apperr"
)

type APIError struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

var debug atomic.Bool

// SetDebug controls whether wrapped causes are echoed to clients. Off in production.
func SetDebug(on bool) { debug.Store(on) }

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes err as the standard error envelope with the status for its kind.
func Error(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.New(apperr.KindInternal, "internal error", err)
	}

	body := APIError{Kind: ae.Kind, Message: ae.Message}
	if body.Message == "" {
		body.Message = string(ae.Kind)
	}
	if debug.Load() && ae.Err != nil {
		body.Detail = ae.Err.Error()
	}
	JSON(w, apperr.HTTPStatus(ae.Kind), ErrorEnvelope{Error: body})
}

// Decode reads a JSON request body into v, mapping malformed input to a validation error.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.KindValidation, "invalid JSON body", err)
	}
	return nil
}
