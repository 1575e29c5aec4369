// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents (fen); decimal strings from forms and
// fixtures are converted once at the boundary.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(1<<63 - 1)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// Thousands separators (500,000.00), surrounding spaces and a leading ¥ are
// accepted. Negative, zero, exponent and otherwise malformed inputs are rejected.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("500,000") -> 50000000, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents == 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// parseCents is the single amount grammar shared by forms, fixtures and JSON.
// Zero is allowed here; callers decide whether it is acceptable.
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.IsNegative() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseMoney is ParseDecimalToCents wrapped in Money.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

// Yuan returns the amount as an exact decimal in yuan.
func (m Money) Yuan() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with two decimals, no grouping.
func (m Money) String() string {
	return m.Yuan().StringFixed(2)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// MarshalJSON writes the amount as a JSON number in yuan with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string in yuan, with the
// grammar of ParseDecimalToCents. Zero and an empty string decode to zero so
// blank budget lines survive decoding and are dropped later; null is rejected.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return ErrInvalidAmount
		}
		if strings.TrimSpace(s) == "" {
			*m = Money{}
			return nil
		}
	}
	cents, err := parseCents(s)
	if err != nil {
		return err
	}
	*m = Money{Cents: cents}
	return nil
}
