package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

var ErrInvalidProduct = errors.New("invalid product record")

// Record is a catalog product after normalization.
type Record struct {
	Snapshot domain.ProductSnapshot
	IsActive bool
}

// Normalize turns a loosely typed catalog record into a snapshot the cart can trust.
// Unknown or missing numeric fields default to zero, a missing isActive means active
// and a missing currency takes defaultCurrency. Only a missing id is an error.
func Normalize(raw map[string]any, defaultCurrency string) (Record, error) {
	id := toString(raw["id"])
	if id == "" {
		return Record{}, fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}

	price := toDecimal(raw["price"])
	if price.IsNegative() {
		price = decimal.Zero
	}

	stock := toInt(raw["stock"])
	if stock < 0 {
		stock = 0
	}

	active := true
	if v, ok := raw["isActive"]; ok && v != nil {
		active = toBool(v, true)
	}

	currency := strings.ToUpper(strings.TrimSpace(toString(raw["currency"])))
	if currency == "" {
		currency = defaultCurrency
	}

	return Record{
		Snapshot: domain.ProductSnapshot{
			ID:       id,
			Name:     strings.TrimSpace(toString(raw["name"])),
			Price:    price,
			Stock:    stock,
			Currency: currency,
		},
		IsActive: active,
	}, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func toDecimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(t)
	case float32:
		return toDecimal(float64(t))
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		return parseDecimal(t.String())
	case string:
		return parseDecimal(t)
	case []byte:
		return parseDecimal(string(t))
	default:
		return decimal.Zero
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(t)
	case json.Number, string, []byte:
		return int(toDecimal(t).IntPart())
	default:
		return 0
	}
}

func toBool(v any, fallback bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	case string, []byte:
		b, err := strconv.ParseBool(toString(t))
		if err != nil {
			return fallback
		}
		return b
	default:
		return fallback
	}
}
