package booking

import (
	"encoding/json"
	"math"
	"strconv"
)

// PriceCents converts a request price (reais, as whatever JSON delivered)
// to integer cents. ok is false when the value is missing or not numeric.
func PriceCents(v interface{}) (int64, bool) {
	switch p := v.(type) {
	case float64:
		return int64(math.Round(p * 100)), true
	case json.Number:
		f, err := p.Float64()
		if err != nil {
			return 0, false
		}
		return int64(math.Round(f * 100)), true
	case string:
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		return int64(math.Round(f * 100)), true
	case int:
		return int64(p) * 100, true
	case int64:
		return p * 100, true
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

// Total sums item prices in cents. A malformed or missing price counts as
// zero; the total is authoritative over anything the caller supplied.
func Total(items []ItemRequest) int64 {
	var sum int64
	for _, item := range items {
		cents, ok := PriceCents(item.Price)
		if !ok {
			continue
		}
		sum += cents
	}
	return sum
}
