package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEvent is an append-only audit record of an inbound webhook,
// stored whether or not its signature verified.
type PaymentEvent struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Source            string    `json:"source" db:"source"`
	EventType         string    `json:"eventType" db:"event_type"`
	PaymentID         string    `json:"paymentId" db:"payment_id"`
	MerchantReference string    `json:"merchantReference" db:"merchant_reference"`
	Payload           string    `json:"payload" db:"payload"`
	Signature         string    `json:"signature" db:"signature"`
	Verified          bool      `json:"verified" db:"verified"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
}
