package utils

import (
	"encoding/json"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ToFloat converts the numeric shapes produced by JSON, TOML and flag
// decoding into a float64. Strings are not accepted.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// currencyPrinter groups thousands the way budgets are reported.
var currencyPrinter = message.NewPrinter(language.English)

// FormatCurrency renders v as "$1,234,567.89".
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$" + strconv.FormatFloat(v, 'f', -1, 64)
	}
	sign := ""
	if v < 0 {
		sign = "-"
	}
	return sign + currencyPrinter.Sprintf("$%.2f", math.Abs(v))
}
