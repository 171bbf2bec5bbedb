// Package types provides the numeric types shared by the valuation engine.
//
// Quantities are fixed-point integers (4 decimal places); unit costs and
// monetary totals are shopspring decimals. No float arithmetic touches the
// ledger: floats appear only at JSON boundaries.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits reports emit for monetary
// values. Part of the Kardex output contract.
const MoneyScale = 8

// NewMoney creates a Money value from a float.
// WARNING: prefer NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panicking on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ZeroMoney returns the zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}

// FormatMoney renders m with exactly MoneyScale fractional digits.
func FormatMoney(m Money) string {
	return m.StringFixed(MoneyScale)
}

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
//
// Matches Postgres NUMERIC(15,4) semantics without floating point error and
// stores as BIGINT (scaled integer). JSON stays a number with 4 decimals.
type Quantity int64

// QuantityScale is the fixed-point multiplier.
const QuantityScale int64 = 10_000

// NewQuantityFromFloat64 converts a float, rounding to 4 decimals.
func NewQuantityFromFloat64(v float64) Quantity {
	return Quantity(math.Round(v * float64(QuantityScale)))
}

// NewQuantityFromInt64Scaled wraps an already-scaled integer.
func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

// NewQuantityFromInt converts a whole-unit count.
func NewQuantityFromInt(v int64) Quantity { return Quantity(v * QuantityScale) }

// Int64Scaled returns the raw scaled integer.
func (q Quantity) Int64Scaled() int64 { return int64(q) }

// Float64 converts to float for JSON boundaries only.
func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

// Decimal converts to an exact decimal (exponent -4).
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -4)
}

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }
func (q Quantity) IsNegative() bool { return q < 0 }
func (q Quantity) Neg() Quantity    { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// Min returns the smaller of q and other.
func (q Quantity) Min(other Quantity) Quantity {
	if q < other {
		return q
	}
	return other
}

// FloorZero clamps negative values to zero. Every derived stock figure is
// clamped before it is persisted or reported.
func (q Quantity) FloorZero() Quantity {
	if q < 0 {
		return 0
	}
	return q
}

// Mul multiplies the quantity by a unit cost, yielding an exact Money value.
func (q Quantity) Mul(unitCost Money) Money {
	return q.Decimal().Mul(unitCost)
}

// String returns a decimal string with exactly 4 fractional digits.
// Part of the Kardex output contract.
func (q Quantity) String() string {
	neg := q < 0
	v := q
	if neg {
		v = -v
	}
	intPart := int64(v) / QuantityScale
	frac := int64(v) % QuantityScale
	if neg {
		return fmt.Sprintf("-%d.%04d", intPart, frac)
	}
	return fmt.Sprintf("%d.%04d", intPart, frac)
}

// MarshalJSON encodes Quantity as a JSON number preserving 4 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts a JSON number or string and parses to fixed point.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseQuantityString(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	parsed, err := parseQuantityString(string(data))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func parseQuantityString(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	// Exponent form is tolerated but goes through float parsing.
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse quantity: %w", err)
		}
		return NewQuantityFromFloat64(f), nil
	}

	sign := int64(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimPrefix(s, "+")
	}

	parts := strings.SplitN(s, ".", 2)
	intPartStr := parts[0]
	fracStr := ""
	if len(parts) == 2 {
		fracStr = parts[1]
	}

	if intPartStr == "" {
		intPartStr = "0"
	}
	intPart, err := strconv.ParseInt(intPartStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity integer part: %w", err)
	}

	// Normalize the fractional part to 4 digits (pad right, truncate extra).
	if len(fracStr) > 4 {
		fracStr = fracStr[:4]
	}
	for len(fracStr) < 4 {
		fracStr += "0"
	}
	frac, err := strconv.ParseInt(fracStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity fractional part: %w", err)
	}

	return Quantity(sign * (intPart*QuantityScale + frac)), nil
}

// WeightedUnitCost divides a total value by a total quantity, returning zero
// when the quantity is zero. The single place average costs are derived.
func WeightedUnitCost(totalValue Money, totalQty Quantity) Money {
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalValue.Div(totalQty.Decimal())
}

// FloorZeroMoney clamps negative monetary values to zero, absorbing
// subtraction noise before a value is persisted or reported.
func FloorZeroMoney(m Money) Money {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}
