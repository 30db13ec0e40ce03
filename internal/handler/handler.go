// Package handler exposes the services over HTTP. Handlers decode requests,
// call one service method and translate its error kind into a status code.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"av-rental/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON request and webhook bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindUpstreamProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. Provider and internal details
// stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	resp := model.ErrorResponse{CorrelationID: chimw.GetReqID(r.Context())}

	var de *model.DomainError
	switch {
	case kind == model.KindUpstreamProvider:
		resp.Error = model.ErrCodePaymentProvider
		resp.Message = "payment provider error"
	case errors.As(err, &de) && kind != model.KindInternal:
		resp.Error = de.Code
		resp.Message = de.Message
	default:
		resp.Error = model.ErrCodeInternalError
		resp.Message = "internal server error"
	}

	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).
		Int("status", status).
		Str("code", resp.Error).
		Str("path", r.URL.Path).
		Str("request_id", resp.CorrelationID).
		Msg("request failed")

	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.ErrInvalidJSON
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidJSON, err)
	}
	return nil
}

// uuidParam parses a chi URL parameter as a UUID.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, model.NewValidationError("invalid " + name + " format")
	}
	return id, nil
}
