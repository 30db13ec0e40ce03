// Package payment talks to the hosted checkout providers: it opens sessions,
// polls their status, verifies webhook signatures and normalizes provider
// payloads into a single Notification shape.
package payment

import (
	"context"
	"net/http"

	"av-rental/internal/model"
)

// Provider names as used in routes, config and the orders.provider column.
const (
	ProviderStripe    = "stripe"
	ProviderWorldline = "worldline"
	ProviderMock      = "mock"
)

// SessionRequest describes the hosted checkout to open.
type SessionRequest struct {
	AmountMinorUnits  int64
	Currency          string
	MerchantReference string
	Description       string
	CustomerEmail     string
	Locale            string
	ReturnURL         string
	CancelURL         string
}

// Session is an opened hosted checkout.
type Session struct {
	ID  string
	URL string
}

// Notification is a provider payment state normalized to our vocabulary.
// Status is empty when the provider state does not map to an order status.
type Notification struct {
	Provider          string
	EventType         string
	SessionID         string
	PaymentID         string
	MerchantReference string
	Status            model.OrderStatus
	RawStatus         string
	StatusCode        int
}

// Mapped reports whether the notification carries an actionable status.
func (n Notification) Mapped() bool {
	return n.Status != ""
}

// StatusUpdate converts the notification into an order compare-and-set.
func (n Notification) StatusUpdate() model.StatusUpdate {
	return model.StatusUpdate{
		PaymentID:         n.PaymentID,
		MerchantReference: n.MerchantReference,
		SessionID:         n.SessionID,
		Status:            n.Status,
	}
}

// Gateway is one payment provider.
type Gateway interface {
	// Name returns the provider name.
	Name() string

	// CreateSession opens a hosted checkout.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)

	// FetchStatus polls the provider for the state of a session.
	FetchStatus(ctx context.Context, sessionID string) (*Notification, error)

	// SignatureHeader is the header carrying the webhook signature.
	SignatureHeader() string

	// VerifySignature checks the webhook signature over the raw body and
	// returns the presented signature for auditing. Failures wrap
	// model.ErrInvalidSignature.
	VerifySignature(header http.Header, body []byte) (string, error)

	// ParseEvent decodes a verified webhook body. Failures wrap
	// model.ErrInvalidPayload.
	ParseEvent(body []byte) (Event, error)
}
