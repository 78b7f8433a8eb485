package vmopts

import (
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// parseMagnitude parses an unsigned integer with an optional 0x prefix and
// an optional k/m/g/t multiplier suffix. No sign, no whitespace.
func parseMagnitude(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}

	base := 10
	digits := s
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		digits = s[2:]
	}

	end := 0
	for end < len(digits) && isDigit(digits[end], base) {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseUint(digits[:end], base, 64)
	if err != nil {
		return 0, false
	}

	rest := digits[end:]
	if rest == "" {
		return n, true
	}
	if len(rest) != 1 {
		return 0, false
	}

	var shift uint
	switch rest[0] {
	case 'k', 'K':
		shift = 10
	case 'm', 'M':
		shift = 20
	case 'g', 'G':
		shift = 30
	case 't', 'T':
		shift = 40
	default:
		return 0, false
	}
	if n != 0 && bits.LeadingZeros64(n) < int(shift) {
		return 0, false
	}
	return n << shift, true
}

func isDigit(c byte, base int) bool {
	if c >= '0' && c <= '9' {
		return true
	}
	if base == 16 {
		return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}
	return false
}

// parseSigned parses a signed integer that must fit in bitSize bits.
func parseSigned(s string, bitSize int) (int64, bool) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	mag, ok := parseMagnitude(s)
	if !ok {
		return 0, false
	}

	limit := uint64(1) << (bitSize - 1) // |min|
	if neg {
		if mag > limit {
			return 0, false
		}
		return int64(-mag), true
	}
	if mag > limit-1 {
		return 0, false
	}
	return int64(mag), true
}

// parseUnsigned parses an unsigned integer that must fit in bitSize bits.
func parseUnsigned(s string, bitSize int) (uint64, bool) {
	mag, ok := parseMagnitude(s)
	if !ok {
		return 0, false
	}
	if bitSize < 64 && mag > (uint64(1)<<bitSize)-1 {
		return 0, false
	}
	return mag, true
}

// parseDouble accepts what strtod accepts except leading whitespace,
// trailing garbage, NaN and infinities.
func parseDouble(s string) (float64, bool) {
	if s == "" || isSpaceByte(s[0]) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// ParseMemorySize parses a size such as "256m" and checks it against
// [min, max].
func ParseMemorySize(s string, min, max uint64) (uint64, error) {
	n, ok := parseMagnitude(s)
	if !ok {
		return 0, ErrWrongFormat
	}
	if n < min || n > max {
		return n, ErrOutOfBounds
	}
	return n, nil
}

// ParseValue converts text to a value of type t using the same grammar the
// option parser uses. Booleans accept "true" and "false".
func ParseValue(t FlagType, text string) (Value, error) {
	switch t {
	case TypeBool:
		switch text {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
	case TypeInt, TypeIntx:
		if n, ok := parseSigned(text, t.bitSize()); ok {
			return Value{typ: t, i: n}, nil
		}
	case TypeUint, TypeUintx, TypeUint64, TypeSizeT:
		if n, ok := parseUnsigned(text, t.bitSize()); ok {
			return Value{typ: t, u: n}, nil
		}
	case TypeDouble:
		if f, ok := parseDouble(text); ok {
			return DoubleValue(f), nil
		}
	case TypeString, TypeStringList:
		return Value{typ: t, s: text}, nil
	}
	return Value{}, ErrWrongFormat
}

func alignUp(n, alignment uint64) uint64 {
	if alignment == 0 {
		return n
	}
	return (n + alignment - 1) / alignment * alignment
}

func alignDown(n, alignment uint64) uint64 {
	if alignment == 0 {
		return n
	}
	return n / alignment * alignment
}
