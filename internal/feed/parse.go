package feed

import (
	"strconv"
	"strings"

	"github.com/yanun0323/errors"

	"frontrun/internal/schema"
)

// ParseScaled parses a decimal string to an integer scaled by 10^scale
// without ever touching float64. Extra precision truncates toward zero.
func ParseScaled(s string, scale schema.Scale) (int64, error) {
	if s == "" {
		return 0, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, errors.Errorf("invalid decimal %q: multiple dots", s)
	}

	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}

	sign := int64(1)
	if strings.HasPrefix(integerPart, "-") {
		sign = -1
		integerPart = integerPart[1:]
	}

	var intVal int64
	if integerPart != "" {
		v, err := strconv.ParseInt(integerPart, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "parse integer part")
		}
		intVal = v
	}

	decimals := int(scale)
	if len(fractionalPart) > decimals {
		fractionalPart = fractionalPart[:decimals]
	} else if len(fractionalPart) < decimals {
		fractionalPart = fractionalPart + strings.Repeat("0", decimals-len(fractionalPart))
	}

	var fracVal int64
	if fractionalPart != "" {
		v, err := strconv.ParseInt(fractionalPart, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "parse fractional part")
		}
		fracVal = v
	}

	multiplier := int64(1)
	for i := 0; i < decimals; i++ {
		multiplier *= 10
	}
	return sign * (intVal*multiplier + fracVal), nil
}

// parseLevel converts one [price, qty] string pair into a book level.
func parseLevel(pair [2]string, scale schema.ScaleSpec) (schema.BookLevel, error) {
	price, err := ParseScaled(pair[0], scale.PriceScale)
	if err != nil {
		return schema.BookLevel{}, errors.Wrap(err, "parse level price")
	}
	qty, err := ParseScaled(pair[1], scale.QuantityScale)
	if err != nil {
		return schema.BookLevel{}, errors.Wrap(err, "parse level qty")
	}
	return schema.BookLevel{Price: schema.Price(price), Qty: schema.Quantity(qty)}, nil
}
