package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount turns a loosely typed request value into a decimal.
// Accepts common user-formatted strings like:
// - "50,000"
// - "$50,000.00"
// - "USD -1,250.5"
// and JSON numbers.
func ParseAmount(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		return parseAmountString(v)
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("invalid amount %v", i)
	}
}

func parseAmountString(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "USD", "")
	s = strings.ReplaceAll(s, "usd", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	// only digits and one decimal point may remain
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return decimal.Zero, fmt.Errorf("invalid amount %q", v)
		}
	}
	if digits == 0 || dots > 1 {
		return decimal.Zero, fmt.Errorf("invalid amount %q", v)
	}
	if neg {
		s = "-" + s
	}
	return decimal.NewFromString(s)
}

// Amount is a request-body money field. It decodes through ParseAmount so
// nothing past the HTTP boundary sees strings or floats.
type Amount struct {
	decimal.Decimal
	Valid bool
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Amount{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	d, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = Amount{Decimal: d, Valid: true}
	return nil
}

// Ptr returns nil for an absent amount.
func (a Amount) Ptr() *decimal.Decimal {
	if !a.Valid {
		return nil
	}
	d := a.Decimal
	return &d
}
