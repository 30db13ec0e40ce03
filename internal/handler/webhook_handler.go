package handler

import (
	"errors"
	"io"
	"net/http"

	"av-rental/internal/model"
	"av-rental/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// WebhookHandler receives provider notifications. Providers only look at the
// status code, so responses are short plaintext bodies.
type WebhookHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.PaymentService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With().Str("handler", "webhook").Logger(),
	}
}

// Handle handles POST /payment/webhook and /payment/webhook/{provider}.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to read webhook body")
		writeText(w, http.StatusBadRequest, "bad json")
		return
	}

	err = h.service.HandleWebhook(r.Context(), chi.URLParam(r, "provider"), r.Header, body)
	switch {
	case err == nil:
		writeText(w, http.StatusOK, "ok")
	case errors.Is(err, model.ErrInvalidSignature):
		writeText(w, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, model.ErrInvalidPayload):
		writeText(w, http.StatusBadRequest, "bad json")
	case errors.Is(err, model.ErrUnknownProvider):
		writeText(w, http.StatusNotFound, "unknown provider")
	default:
		h.logger.Error().Err(err).Msg("webhook failed")
		writeText(w, http.StatusInternalServerError, "error")
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
