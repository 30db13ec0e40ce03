package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a rentable item in the catalogue. Price is per rental day.
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Category  string          `json:"category" db:"category"`
	ImagePath string          `json:"imagePath,omitempty" db:"image_path"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
