package analytics

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseOrZero coerces a loosely typed upstream value into a float64.
// Numbers pass through, numeric strings are parsed and anything else is 0.
func ParseOrZero(v interface{}) float64 {
	value, _ := parseNumber(v)
	return value
}

func parseNumber(v interface{}) (float64, bool) {
	var out float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		out = val
	case float32:
		out = float64(val)
	case int:
		out = float64(val)
	case int32:
		out = float64(val)
	case int64:
		out = float64(val)
	case uint:
		out = float64(val)
	case uint32:
		out = float64(val)
	case uint64:
		out = float64(val)
	case json.Number:
		return parseNumericString(string(val))
	case string:
		return parseNumericString(val)
	case decimal.Decimal:
		out = val.InexactFloat64()
	case Number:
		return val.Value, val.Valid
	default:
		return 0, false
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, false
	}
	return out, true
}

func parseNumericString(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// Number is a numeric field as delivered by the upstream API, which sends
// numbers, numeric strings or nothing at all for the same field.
type Number struct {
	Value float64
	// Valid is false when the field was missing or could not be parsed.
	Valid bool
}

// Num builds a valid Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Float returns the coerced value, 0 when invalid.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// UnmarshalJSON never fails; bad input decodes to an invalid zero.
func (n *Number) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		*n = Number{}
		return nil
	}
	value, ok := parseNumber(raw)
	*n = Number{Value: value, Valid: ok}
	return nil
}

// MarshalJSON emits the coerced value as a plain JSON number.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Float())
}
