package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"av-rental/internal/model"
)

// Event is a decoded webhook payload: one of *StripeEvent, *WorldlineEvent
// or *MockEvent.
type Event interface {
	Provider() string
	Normalize() Notification
	isEvent()
}

// StripeEvent is a Stripe webhook envelope.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object StripeObject `json:"object"`
	} `json:"data"`
}

// StripeObject covers the fields we read from checkout sessions and payment intents.
type StripeObject struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     stripeRef         `json:"payment_intent"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// stripeRef is an id that Stripe sends either bare or as an expanded object.
type stripeRef string

func (r *stripeRef) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = stripeRef(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = stripeRef(obj.ID)
	return nil
}

func (e *StripeEvent) Provider() string { return ProviderStripe }
func (e *StripeEvent) isEvent()         {}

// Normalize maps the event. Checkout session objects carry the session id and
// the payment intent; payment intent objects only carry their own id.
func (e *StripeEvent) Normalize() Notification {
	obj := e.Data.Object
	n := Notification{
		Provider:          ProviderStripe,
		EventType:         e.Type,
		MerchantReference: stripeMerchantReference(obj),
		RawStatus:         obj.PaymentStatus,
	}

	if obj.Object == "payment_intent" {
		n.PaymentID = obj.ID
		n.RawStatus = obj.Status
	} else {
		n.SessionID = obj.ID
		n.PaymentID = string(obj.PaymentIntent)
	}

	n.Status, _ = MapStripeEvent(e.Type, obj.PaymentStatus)
	return n
}

func stripeMerchantReference(obj StripeObject) string {
	if ref := obj.Metadata[metadataMerchantReference]; ref != "" {
		return ref
	}
	return obj.ClientReferenceID
}

// WorldlineEvent is a Worldline webhook envelope.
type WorldlineEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	MerchantID string            `json:"merchantId"`
	Created    string            `json:"created"`
	Payment    *WorldlinePayment `json:"payment"`
}

// WorldlinePayment is the payment object shared by webhooks and status polls.
type WorldlinePayment struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentOutput struct {
		References struct {
			MerchantReference string `json:"merchantReference"`
		} `json:"references"`
		AmountOfMoney struct {
			Amount       int64  `json:"amount"`
			CurrencyCode string `json:"currencyCode"`
		} `json:"amountOfMoney"`
	} `json:"paymentOutput"`
	StatusOutput struct {
		StatusCode     int    `json:"statusCode"`
		StatusCategory string `json:"statusCategory"`
	} `json:"statusOutput"`
}

func (e *WorldlineEvent) Provider() string { return ProviderWorldline }
func (e *WorldlineEvent) isEvent()         {}

func (e *WorldlineEvent) Normalize() Notification {
	n := Notification{Provider: ProviderWorldline, EventType: e.Type}
	if e.Payment == nil {
		return n
	}
	n.applyWorldlinePayment(e.Payment)
	return n
}

func (n *Notification) applyWorldlinePayment(p *WorldlinePayment) {
	n.PaymentID = p.ID
	n.MerchantReference = p.PaymentOutput.References.MerchantReference
	n.RawStatus = p.Status
	n.StatusCode = p.StatusOutput.StatusCode
	n.Status, _ = MapWorldline(p.Status, p.StatusOutput.StatusCode)
}

// MockEvent is the payload of the in-process fake provider.
type MockEvent struct {
	Type              string `json:"type"`
	SessionID         string `json:"sessionId"`
	PaymentID         string `json:"paymentId"`
	MerchantReference string `json:"merchantReference"`
	Status            string `json:"status"`
}

func (e *MockEvent) Provider() string { return ProviderMock }
func (e *MockEvent) isEvent()         {}

func (e *MockEvent) Normalize() Notification {
	n := Notification{
		Provider:          ProviderMock,
		EventType:         e.Type,
		SessionID:         e.SessionID,
		PaymentID:         e.PaymentID,
		MerchantReference: e.MerchantReference,
		RawStatus:         e.Status,
	}
	n.Status, _ = MapMock(e.Status)
	return n
}

// decodeEvent unmarshals a JSON object body into ev.
func decodeEvent(body []byte, ev any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: body is not a JSON object", model.ErrInvalidPayload)
	}
	if err := json.Unmarshal(trimmed, ev); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidPayload, err)
	}
	return nil
}

// Describe renders a short label for logs.
func (n Notification) Describe() string {
	status := n.RawStatus
	if n.StatusCode != 0 {
		status += "/" + strconv.Itoa(n.StatusCode)
	}
	return n.Provider + ":" + n.EventType + ":" + status
}
