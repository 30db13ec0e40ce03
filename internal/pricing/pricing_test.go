package pricing

import (
	"testing"
	"time"

	"av-rental/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{name: "same day", start: date("2025-01-10"), end: date("2025-01-10"), want: 1},
		{name: "three days", start: date("2025-01-10"), end: date("2025-01-12"), want: 3},
		{name: "across month", start: date("2025-01-31"), end: date("2025-02-02"), want: 3},
		{name: "inverted clamps to one", start: date("2025-01-12"), end: date("2025-01-10"), want: 1},
		{name: "half day rounds up", start: date("2025-01-10"), end: date("2025-01-10").Add(12 * time.Hour), want: 2},
		{name: "under half day rounds down", start: date("2025-01-10"), end: date("2025-01-10").Add(11 * time.Hour), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Days(tt.start, tt.end))
			assert.Equal(t, Days(tt.start, tt.end), Days(tt.start, tt.end), "deterministic")
		})
	}
}

func TestCalculate_TwoLinesThreeDays(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("50.00"), Quantity: 1},
		{UnitPrice: dec("10.00"), Quantity: 1},
	}

	got := Calculate(lines, date("2025-03-01"), date("2025-03-03"))

	assert.Equal(t, 3, got.Days)
	assert.True(t, got.Subtotal.Equal(dec("180.00")), got.Subtotal.String())
	assert.True(t, got.Tax.Equal(dec("36.00")), got.Tax.String())
	assert.True(t, got.Total.Equal(dec("216.00")), got.Total.String())
	assert.EqualValues(t, 21600, got.AmountMinorUnits)
}

func TestCalculate_TotalIsSubtotalPlusTax(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("19.99"), Quantity: 3},
		{UnitPrice: dec("0.05"), Quantity: 7},
		{UnitPrice: dec("123.45"), Quantity: 1},
	}

	got := Calculate(lines, date("2025-07-01"), date("2025-07-05"))

	assert.True(t, got.Total.Equal(got.Subtotal.Mul(dec("1.2"))))
	assert.Equal(t, got.Total.Mul(dec("100")).Round(0).IntPart(), got.AmountMinorUnits)
}

func TestCalculate_RoundsOnlyOnce(t *testing.T) {
	// 0.0125 per day * 1 day = 0.0125; tax 0.0025; total 0.015 -> 1.5 cents -> 2
	got := Calculate([]Line{{UnitPrice: dec("0.0125"), Quantity: 1}}, date("2025-01-01"), date("2025-01-01"))

	assert.True(t, got.Total.Equal(dec("0.015")))
	assert.EqualValues(t, 2, got.AmountMinorUnits)
}

func TestCalculate_EmptyCartIsOneDay(t *testing.T) {
	got := Calculate(nil, date("2025-01-01"), date("2025-01-04"))

	assert.Equal(t, 1, got.Days)
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Total.IsZero())
	assert.Zero(t, got.AmountMinorUnits)
}

func TestMinorUnits(t *testing.T) {
	assert.EqualValues(t, 5000, MinorUnits(dec("50")))
	assert.EqualValues(t, 1999, MinorUnits(dec("19.99")))
	assert.EqualValues(t, 1, MinorUnits(dec("0.005")))
	assert.EqualValues(t, 0, MinorUnits(dec("0.004")))
}

func TestFromCartAndModel(t *testing.T) {
	cart := []model.CartLine{
		{ProductID: "a", UnitPrice: dec("50"), Quantity: 2},
		{ProductID: "b", UnitPrice: dec("10"), Quantity: 1},
	}

	lines := FromCart(cart)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)

	totals := Calculate(lines, date("2025-01-01"), date("2025-01-02")).Model("EUR")
	assert.Equal(t, 2, totals.Days)
	assert.Equal(t, "EUR", totals.Currency)
	assert.True(t, totals.Subtotal.Equal(dec("220")))
	assert.EqualValues(t, 26400, totals.AmountMinorUnits)
}
