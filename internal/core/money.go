// Package core holds the coinwise domain model and the pure functions that
// derive views from it.
//
// This file contains the Money type and the parsing of monetary amounts from
// form strings and JSON numbers.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CurrencySymbol prefixes every formatted amount.
const CurrencySymbol = "₱"

// Money is an amount in cents. Transaction amounts are never negative;
// derived totals and balances may be.
type Money struct {
	Cents int64
}

// MoneyFromFloat converts a decimal amount (as sent by the backend) to cents,
// rounding half away from zero.
func MoneyFromFloat(f float64) Money {
	return Money{Cents: int64(math.Round(f * 100))}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Float returns the value in currency units for JSON and display.
// Use Cents for arithmetic.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as "₱1,512.00" (or "-₱1,012.00").
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, CurrencySymbol, b.String(), cents%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. null and "" leave
// m at zero.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
		if strings.TrimSpace(raw) == "" {
			*m = Money{}
			return nil
		}
	}
	v, err := ParseMoney(raw)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", raw, err)
	}
	*m = v
	return nil
}

// ParseMoney reads a decimal amount such as "12.34", "-3" or "12,345" (comma
// as the decimal mark) into cents. Digits past the second decimal round half
// away from zero. Exponent forms go through float64.
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.Abs(f) > maxWhole {
			return Money{}, ErrInvalidAmount
		}
		return MoneyFromFloat(f), nil
	}

	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" || !allDigits(whole) || !allDigits(frac) {
		return Money{}, ErrInvalidAmount
	}

	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > maxWhole {
			return Money{}, ErrInvalidAmount
		}
		units = n
	}
	frac += "00"
	cents := units*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if len(frac) > 4 && frac[2] >= '5' {
		cents++
	}
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}

// maxWhole keeps whole*100 inside int64.
const maxWhole = (math.MaxInt64 - 99) / 100

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
