package dap

import (
	"math"
	"strconv"
)

/*
Value conversion rules. Scalar values are held in a fixed Go representation per
type tag:

	Byte uint8, Int16 int16, UInt16 uint16, Int32 int32, UInt32 uint32,
	Float32 float32, Float64 float64, String and Url string.

Coerce accepts any Go integer or float and converts it when the target type can
hold it without loss. Integers must be in range; floats assigned to integer
types must be integral. Floats narrowed to Float32 must be exactly
representable as float32, or be NaN or an infinity. Text parsed by ParseValue
is rounded to the nearest value of the type instead.
*/

////////////////////////////////////////////////////////////////////////////////

// Zero returns the zero value of a scalar tag in its Go representation.
func Zero(tag TypeTag) any {
	switch tag {
	case Byte:
		return uint8(0)
	case Int16:
		return int16(0)
	case UInt16:
		return uint16(0)
	case Int32:
		return int32(0)
	case UInt32:
		return uint32(0)
	case Float32:
		return float32(0)
	case Float64:
		return float64(0)
	case String, URL:
		return ""
	default:
		return nil
	}
}

type numeric struct {
	signed   bool
	unsigned bool
	float    bool
	i        int64
	u        uint64
	f        float64
}

func classify(v any) (numeric, bool) {
	switch x := v.(type) {
	case int:
		return numeric{signed: true, i: int64(x)}, true
	case int8:
		return numeric{signed: true, i: int64(x)}, true
	case int16:
		return numeric{signed: true, i: int64(x)}, true
	case int32:
		return numeric{signed: true, i: int64(x)}, true
	case int64:
		return numeric{signed: true, i: x}, true
	case uint:
		return numeric{unsigned: true, u: uint64(x)}, true
	case uint8:
		return numeric{unsigned: true, u: uint64(x)}, true
	case uint16:
		return numeric{unsigned: true, u: uint64(x)}, true
	case uint32:
		return numeric{unsigned: true, u: uint64(x)}, true
	case uint64:
		return numeric{unsigned: true, u: x}, true
	case float32:
		return numeric{float: true, f: float64(x)}, true
	case float64:
		return numeric{float: true, f: x}, true
	default:
		return numeric{}, false
	}
}

// integer returns the value as a signed integer if it has one.
func (n numeric) integer() (int64, bool) {
	switch {
	case n.signed:
		return n.i, true
	case n.unsigned:
		if n.u > math.MaxInt64 {
			return 0, false
		}
		return int64(n.u), true
	default:
		if math.IsNaN(n.f) || math.IsInf(n.f, 0) || n.f != math.Trunc(n.f) {
			return 0, false
		}
		if n.f < math.MinInt64 || n.f >= math.MaxInt64 {
			return 0, false
		}
		return int64(n.f), true
	}
}

func (n numeric) toFloat() (float64, bool) {
	switch {
	case n.float:
		return n.f, true
	case n.signed:
		f := float64(n.i)
		if f >= math.MaxInt64 || int64(f) != n.i {
			return 0, false
		}
		return f, true
	default:
		f := float64(n.u)
		if f >= math.MaxUint64 || uint64(f) != n.u {
			return 0, false
		}
		return f, true
	}
}

func inRange(n numeric, lo, hi int64) (int64, bool) {
	i, ok := n.integer()
	if !ok || i < lo || i > hi {
		return 0, false
	}
	return i, true
}

// Coerce converts v to the Go representation of tag, failing with
// TypeMismatchError if it cannot be represented without loss.
func Coerce(tag TypeTag, v any) (any, error) {
	mismatch := TypeMismatchError{Tag: tag, Value: v}
	if tag == String || tag == URL {
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		default:
			return nil, mismatch
		}
	}
	n, ok := classify(v)
	if !ok {
		return nil, mismatch
	}
	switch tag {
	case Byte:
		if i, ok := inRange(n, 0, math.MaxUint8); ok {
			return uint8(i), nil
		}
	case Int16:
		if i, ok := inRange(n, math.MinInt16, math.MaxInt16); ok {
			return int16(i), nil
		}
	case UInt16:
		if i, ok := inRange(n, 0, math.MaxUint16); ok {
			return uint16(i), nil
		}
	case Int32:
		if i, ok := inRange(n, math.MinInt32, math.MaxInt32); ok {
			return int32(i), nil
		}
	case UInt32:
		if i, ok := inRange(n, 0, math.MaxUint32); ok {
			return uint32(i), nil
		}
	case Float32:
		f, ok := n.toFloat()
		if !ok {
			break
		}
		if !math.IsNaN(f) && !math.IsInf(f, 0) && float64(float32(f)) != f {
			break
		}
		return float32(f), nil
	case Float64:
		if f, ok := n.toFloat(); ok {
			return f, nil
		}
	}
	return nil, mismatch
}

// ParseValue parses the textual form of a scalar value, as found in DAS
// attribute declarations or query strings.
func ParseValue(tag TypeTag, s string) (any, error) {
	mismatch := TypeMismatchError{Tag: tag, Value: s}
	switch tag {
	case String, URL:
		return s, nil
	case Byte, UInt16, UInt32:
		u, err := strconv.ParseUint(s, 10, tag.Width()*8)
		if err != nil {
			return nil, mismatch
		}
		return Coerce(tag, u)
	case Int16, Int32:
		i, err := strconv.ParseInt(s, 10, tag.Width()*8)
		if err != nil {
			return nil, mismatch
		}
		return Coerce(tag, i)
	case Float32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, mismatch
		}
		return float32(f), nil
	case Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, mismatch
		}
		return f, nil
	default:
		return nil, mismatch
	}
}

// FormatValue returns the textual form of a scalar value. Strings are returned
// unquoted; numeric output parses back to the same value with ParseValue.
func FormatValue(v any) string {
	switch x := v.(type) {
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case string:
		return x
	default:
		return ""
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
