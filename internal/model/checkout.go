package model

import "github.com/google/uuid"

// CheckoutRequest is the payload for POST /checkout/session.
type CheckoutRequest struct {
	Provider string       `json:"provider,omitempty" validate:"omitempty,oneof=stripe worldline mock"`
	Delivery DeliveryMode `json:"delivery" validate:"required,oneof=pickup delivery"`
	Address  *Address     `json:"address,omitempty" validate:"required_if=Delivery delivery"`
	Customer *Customer    `json:"customer,omitempty"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// CheckoutSession is returned to the client after a provider session is opened.
type CheckoutSession struct {
	URL               string    `json:"url"`
	SessionID         string    `json:"sessionId"`
	OrderID           uuid.UUID `json:"orderId"`
	MerchantReference string    `json:"merchantReference"`
}

// ConfirmRequest is the payload for POST /checkout/confirm.
type ConfirmRequest struct {
	SessionID string `json:"sessionId"`
}

// ConfirmResult is returned by the pull confirmation path.
type ConfirmResult struct {
	OK      bool        `json:"ok"`
	OrderID uuid.UUID   `json:"orderId"`
	Status  OrderStatus `json:"status"`
}
