package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the payment lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusRefused  OrderStatus = "refused"
	OrderStatusCanceled OrderStatus = "canceled"
)

// IsTerminal reports whether the status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusRefused || s == OrderStatusCanceled
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s.IsTerminal()
}

func (s OrderStatus) String() string {
	return string(s)
}

// DeliveryMode describes how the equipment reaches the customer.
type DeliveryMode string

const (
	DeliveryPickup   DeliveryMode = "pickup"
	DeliveryDelivery DeliveryMode = "delivery"
)

// Address is the optional structured delivery address.
type Address struct {
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=200"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	City       string `json:"city" validate:"required,max=100"`
	Country    string `json:"country" validate:"required,len=2"`
}

// Customer holds the contact fields copied onto the order.
type Customer struct {
	Name  string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

// Order is a checkout attempt and, once paid, a confirmed rental.
type Order struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	UserID            string       `json:"userId" db:"user_id"`
	Provider          string       `json:"provider" db:"provider"`
	SessionID         string       `json:"sessionId" db:"session_id"`
	MerchantReference string       `json:"merchantReference" db:"merchant_reference"`
	PaymentID         *string      `json:"paymentId,omitempty" db:"payment_id"`
	StartDate         time.Time    `json:"startDate" db:"start_date"`
	EndDate           time.Time    `json:"endDate" db:"end_date"`
	DeliveryMode      DeliveryMode `json:"deliveryMode" db:"delivery_mode"`
	Address           *Address     `json:"address,omitempty" db:"address"`
	PaymentMethod     string       `json:"paymentMethod" db:"payment_method"`
	TotalAmount       int64        `json:"totalAmount" db:"total_amount"`
	Currency          string       `json:"currency" db:"currency"`
	Status            OrderStatus  `json:"status" db:"status"`
	CustomerName      string       `json:"customerName,omitempty" db:"customer_name"`
	CustomerEmail     string       `json:"customerEmail,omitempty" db:"customer_email"`
	CustomerPhone     string       `json:"customerPhone,omitempty" db:"customer_phone"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time    `json:"updatedAt" db:"updated_at"`
}

// OrderLine is an immutable line written when an order is paid.
// Quantity already includes the day count.
type OrderLine struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"-" db:"order_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	UnitPrice int64     `json:"unitPrice" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order
	Lines []OrderLine `json:"lines"`
}

// StatusUpdate is a compare-and-set request against an order row.
// The row is located by PaymentID, then MerchantReference, then SessionID.
type StatusUpdate struct {
	PaymentID         string
	MerchantReference string
	SessionID         string
	Status            OrderStatus
}

// StatusUpdateResult describes what a StatusUpdate did.
type StatusUpdateResult struct {
	Order   *Order
	Changed bool
}
