package schema

import "strconv"

// Price is a scaled integer. The scale is defined per symbol in the registry.
type Price int64

// Quantity is a scaled integer. The scale is defined per symbol in the registry.
type Quantity int64

// Notional is a scaled integer. The scale is defined per symbol in the registry.
type Notional int64

// Fee is a scaled integer. The scale is defined per symbol in the registry.
type Fee int64

func (p Price) AppendString(scale Scale, buf []byte) []byte {
	return appendScaledInt(buf, int64(p), int(scale))
}

func (q Quantity) AppendString(scale Scale, buf []byte) []byte {
	return appendScaledInt(buf, int64(q), int(scale))
}

func (n Notional) AppendString(scale Scale, buf []byte) []byte {
	return appendScaledInt(buf, int64(n), int(scale))
}

func (f Fee) AppendString(scale Scale, buf []byte) []byte {
	return appendScaledInt(buf, int64(f), int(scale))
}

// FormatScaled renders a scaled integer as a decimal string.
func FormatScaled(value int64, scale Scale) string {
	return string(appendScaledInt(nil, value, int(scale)))
}

func appendScaledInt(buf []byte, value int64, scale int) []byte {
	if scale <= 0 {
		return strconv.AppendInt(buf, value, 10)
	}

	neg := value < 0
	u := uint64(value)
	if neg {
		u = uint64(^value) + 1
	}

	var tmp [32]byte
	digits := strconv.AppendUint(tmp[:0], u, 10)

	if neg {
		buf = append(buf, '-')
	}

	if len(digits) <= scale {
		buf = append(buf, '0', '.')
		for i := 0; i < scale-len(digits); i++ {
			buf = append(buf, '0')
		}
		buf = append(buf, digits...)
		return buf
	}

	idx := len(digits) - scale
	buf = append(buf, digits[:idx]...)
	buf = append(buf, '.')
	buf = append(buf, digits[idx:]...)
	return buf
}
