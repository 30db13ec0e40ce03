package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"av-rental/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWebhookHandler_Handle(t *testing.T) {
	body := `{"type":"payment.paid","status":"paid"}`

	tests := []struct {
		name           string
		provider       string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{name: "Accepted", err: nil, expectedStatus: http.StatusOK, expectedBody: "ok"},
		{name: "Explicit provider", provider: "stripe", expectedStatus: http.StatusOK, expectedBody: "ok"},
		{name: "Bad signature", err: model.ErrInvalidSignature, expectedStatus: http.StatusUnauthorized, expectedBody: "invalid signature"},
		{name: "Bad payload", err: model.ErrInvalidPayload, expectedStatus: http.StatusBadRequest, expectedBody: "bad json"},
		{name: "Unknown provider", provider: "paypal", err: model.ErrUnknownProvider, expectedStatus: http.StatusNotFound, expectedBody: "unknown provider"},
		{name: "Unexpected", err: errors.New("boom"), expectedStatus: http.StatusInternalServerError, expectedBody: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			mockService.On("HandleWebhook", mock.Anything, tt.provider, mock.Anything, []byte(body)).Return(tt.err)

			req := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(body))
			if tt.provider != "" {
				req = withParams(req, "provider", tt.provider)
			}
			w := httptest.NewRecorder()

			NewWebhookHandler(mockService, zerolog.Nop()).Handle(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
			assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
			mockService.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_PassesHeaders(t *testing.T) {
	mockService := new(MockPaymentService)
	mockService.On("HandleWebhook", mock.Anything, "", mock.MatchedBy(func(h http.Header) bool {
		return h.Get("Stripe-Signature") == "t=1,v1=abc"
	}), mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()

	NewWebhookHandler(mockService, zerolog.Nop()).Handle(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}
