package handler

import (
	"net/http"

	"av-rental/internal/model"
	"av-rental/internal/service"

	"github.com/rs/zerolog"
)

// IdempotencyKeyHeader lets clients retry checkout creation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutHandler opens and confirms payment sessions.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// CreateSession handles POST /checkout/session.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	session, err := h.service.CreateSession(r.Context(), model.IdentityFrom(r.Context()), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Confirm handles POST /checkout/confirm.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Confirm(r.Context(), model.IdentityFrom(r.Context()), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
