package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxWeight is reported for offers whose rates carry no usable weight.
const DefaultMaxWeight = 10.0

// Rate is one weight/price tier of an Offer. Clients send both as strings
// ("5kg", "300"); numbers are tolerated.
type Rate struct {
	Weight string `json:"weight"`
	Price  string `json:"price"`
}

// UnmarshalJSON accepts string or numeric weight/price values.
func (r *Rate) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Weight = scalarString(raw["weight"])
	r.Price = scalarString(raw["price"])
	return nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// ParseRates decodes serialized rates. Empty or malformed input yields nil.
func ParseRates(raw []byte) []Rate {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var out []Rate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// MaxWeight returns the largest numeric weight across rates ("kg" suffix
// ignored). It returns DefaultMaxWeight when no tier has a weight or any
// present weight fails to parse.
func MaxWeight(rates []Rate) float64 {
	best, seen := 0.0, false
	for _, r := range rates {
		w := strings.TrimSpace(r.Weight)
		if w == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(strings.ToLower(w), "kg", "")), 64)
		if err != nil {
			return DefaultMaxWeight
		}
		if !seen || f > best {
			best, seen = f, true
		}
	}
	if !seen {
		return DefaultMaxWeight
	}
	return best
}
