package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"av-rental/internal/model"

	"github.com/rs/zerolog"
)

const mockSignatureHeader = "X-Mock-Signature"

// MockConfig configures the in-process fake provider.
type MockConfig struct {
	WebhookSecret string
	Status        string // status reported by FetchStatus
}

// MockGateway is a provider that never leaves the process. Sessions redirect
// straight back to the return URL, and status polls report the configured status.
type MockGateway struct {
	cfg    MockConfig
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]SessionRequest
}

// NewMock creates the fake provider.
func NewMock(cfg MockConfig, logger zerolog.Logger) *MockGateway {
	if cfg.Status == "" {
		cfg.Status = string(model.OrderStatusPaid)
	}
	return &MockGateway{
		cfg:      cfg,
		logger:   logger.With().Str("component", "payment").Str("provider", ProviderMock).Logger(),
		sessions: make(map[string]SessionRequest),
	}
}

func (g *MockGateway) Name() string            { return ProviderMock }
func (g *MockGateway) SignatureHeader() string { return mockSignatureHeader }

// SetStatus changes the status reported by subsequent polls.
func (g *MockGateway) SetStatus(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Status = status
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (g *MockGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.AmountMinorUnits <= 0 {
		return nil, model.NewProviderError(ProviderMock, http.StatusBadRequest, "amount must be positive", "")
	}

	id := "mock_sess_" + randomHex(8)

	g.mu.Lock()
	g.sessions[id] = req
	g.mu.Unlock()

	redirect, err := url.Parse(req.ReturnURL)
	if err != nil {
		return nil, model.NewProviderError(ProviderMock, http.StatusBadRequest, "invalid return url", req.ReturnURL)
	}
	q := redirect.Query()
	q.Set("session_id", id)
	redirect.RawQuery = q.Encode()

	g.logger.Info().
		Str("session_id", id).
		Str("merchant_reference", req.MerchantReference).
		Int64("amount", req.AmountMinorUnits).
		Msg("mock session created")

	return &Session{ID: id, URL: redirect.String()}, nil
}

// FetchStatus reports the configured status. Unknown sessions still answer
// so a restarted process can confirm sessions it no longer remembers.
func (g *MockGateway) FetchStatus(ctx context.Context, sessionID string) (*Notification, error) {
	if !strings.HasPrefix(sessionID, "mock_sess_") {
		return nil, model.NewProviderError(ProviderMock, http.StatusNotFound, "no such session", sessionID)
	}

	g.mu.Lock()
	req := g.sessions[sessionID]
	status := g.cfg.Status
	g.mu.Unlock()

	ev := &MockEvent{
		Type:              "session.poll",
		SessionID:         sessionID,
		PaymentID:         "mock_pay_" + strings.TrimPrefix(sessionID, "mock_sess_"),
		MerchantReference: req.MerchantReference,
		Status:            status,
	}
	n := ev.Normalize()
	return &n, nil
}

// Sign returns the signature header value for body.
func (g *MockGateway) Sign(body []byte) string {
	return SignHex(g.cfg.WebhookSecret, body)
}

func (g *MockGateway) VerifySignature(header http.Header, body []byte) (string, error) {
	sig := header.Get(mockSignatureHeader)
	return sig, verifyHex(g.cfg.WebhookSecret, sig, body)
}

func (g *MockGateway) ParseEvent(body []byte) (Event, error) {
	var ev MockEvent
	if err := decodeEvent(body, &ev); err != nil {
		return nil, err
	}
	if ev.Status == "" {
		return nil, fmt.Errorf("%w: missing status", model.ErrInvalidPayload)
	}
	return &ev, nil
}
