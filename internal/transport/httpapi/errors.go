package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const maxBodyBytes = 1 << 20

var errUnauthenticated = errors.New("missing X-User-ID header")

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrConversationNotFound),
		errors.Is(err, core.ErrMaterialNotFound),
		errors.Is(err, core.ErrMemoryNotFound),
		errors.Is(err, core.ErrKnowledgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrConversationArchived),
		errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrProviderRequestFailed):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrProviderUnavailable),
		errors.Is(err, core.ErrMemoryStoreDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromCtx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}
