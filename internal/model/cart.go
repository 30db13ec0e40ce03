package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one pending rental line in a user's cart.
// ProductName and UnitPrice are filled from the products table on read.
type CartLine struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      string          `json:"-" db:"user_id"`
	ProductID   string          `json:"productId" db:"product_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	StartDate   time.Time       `json:"startDate" db:"start_date"`
	EndDate     time.Time       `json:"endDate" db:"end_date"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// SameRange reports whether the line covers exactly the given rental range.
func (l CartLine) SameRange(start, end time.Time) bool {
	return SameDay(l.StartDate, start) && SameDay(l.EndDate, end)
}

// SameDay compares two dates by calendar day in UTC.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// AddCartItemRequest is the payload for POST /cart/items.
type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	StartDate Date   `json:"startDate"`
	EndDate   Date   `json:"endDate"`
}

// UpdateCartItemRequest is the payload for PATCH /cart/items/{id}.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// CartResponse is the cart read with a pricing preview.
type CartResponse struct {
	Lines  []CartLine `json:"lines"`
	Totals *Totals    `json:"totals,omitempty"`
}

// Totals mirrors pricing output in JSON form.
type Totals struct {
	Days             int             `json:"days"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	AmountMinorUnits int64           `json:"amountMinorUnits"`
	Currency         string          `json:"currency"`
}
