// Package pricing computes rental totals. Every caller (session creation,
// confirmation, cart preview, reconciliation) goes through Calculate so that
// amounts agree to the cent.
package pricing

import (
	"math"
	"time"

	"av-rental/internal/model"

	"github.com/shopspring/decimal"
)

const millisPerDay = 24 * 60 * 60 * 1000

// TaxRate is the VAT rate applied on top of the subtotal.
var TaxRate = decimal.NewFromFloat(0.20)

var hundred = decimal.NewFromInt(100)

// Line is one priced cart line.
type Line struct {
	UnitPrice decimal.Decimal // per day
	Quantity  int
}

// Totals is the result of Calculate.
type Totals struct {
	Days             int
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	AmountMinorUnits int64
}

// Days returns the inclusive number of rental days between start and end.
// A same-day rental is one day; inverted ranges clamp to one.
func Days(start, end time.Time) int {
	ms := float64(end.Sub(start).Milliseconds())
	days := int(math.Round(ms/millisPerDay)) + 1
	if days < 1 {
		return 1
	}
	return days
}

// Calculate prices lines over the rental range. Money is never rounded
// before the final conversion to minor units. An empty cart prices as a
// zero total over one day.
func Calculate(lines []Line, start, end time.Time) Totals {
	if len(lines) == 0 {
		return Totals{Days: 1, Subtotal: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}
	}

	days := Days(start, end)
	d := decimal.NewFromInt(int64(days))

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(d).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	tax := subtotal.Mul(TaxRate)
	total := subtotal.Add(tax)

	return Totals{
		Days:             days,
		Subtotal:         subtotal,
		Tax:              tax,
		Total:            total,
		AmountMinorUnits: MinorUnits(total),
	}
}

// MinorUnits converts a major-unit amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCart adapts cart lines for Calculate.
func FromCart(lines []model.CartLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return out
}

// Model renders the totals for API responses.
func (t Totals) Model(currency string) *model.Totals {
	return &model.Totals{
		Days:             t.Days,
		Subtotal:         t.Subtotal.Round(2),
		Tax:              t.Tax.Round(2),
		Total:            t.Total.Round(2),
		AmountMinorUnits: t.AmountMinorUnits,
		Currency:         currency,
	}
}
