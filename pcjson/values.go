package pcjson

import (
	"math"
	"strconv"

	"github.com/gwos/pcjsongen/codec"
	"github.com/gwos/pcjsongen/model"
)

// NullSentinel stands for absent pointers, arrays and chain links
const NullSentinel = "NULL"

func isNull(v any) bool {
	s, ok := v.(string)
	return ok && s == NullSentinel
}

// signed converts Go and JSON integers, nil reads as zero
func signed(v Value) (int64, bool) {
	switch v := v.(type) {
	case nil:
		return 0, true
	case EnumValue:
		return int64(v), true
	case FlagsValue:
		return int64(v), v <= math.MaxInt64
	case Handle:
		return int64(v), v <= math.MaxInt64
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		return int64(v), uint64(v) <= math.MaxInt64
	case float32:
		return codec.ToInt64(float64(v))
	}
	return codec.ToInt64(v)
}

// unsigned converts Go and JSON integers, nil reads as zero
func unsigned(v Value) (uint64, bool) {
	switch v := v.(type) {
	case nil:
		return 0, true
	case EnumValue:
		return uint64(v), true
	case FlagsValue:
		return uint64(v), true
	case Handle:
		return uint64(v), true
	case int8, int16, int32:
		i, _ := signed(v)
		return uint64(i), i >= 0
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case float32:
		return codec.ToUint64(float64(v))
	}
	return codec.ToUint64(v)
}

func float(v Value) (float64, bool) {
	switch v := v.(type) {
	case nil:
		return 0, true
	case float32:
		return float64(v), true
	case int8, int16, int32, uint8, uint16, uint32, uint:
		i, _ := signed(v)
		return float64(i), true
	}
	return codec.ToFloat64(v)
}

// inRange reports whether i fits the primitive
func inRange(p model.Primitive, i int64) bool {
	if p.Bits >= 64 {
		return true
	}
	if p.Kind == model.Unsigned {
		return i >= 0 && i <= 1<<p.Bits-1
	}
	return i >= -1<<(p.Bits-1) && i <= 1<<(p.Bits-1)-1
}

func describe(p model.Primitive) string {
	switch {
	case p.Kind == model.Char:
		return "a character code"
	case p.Kind == model.Unsigned && p.Bits == 8:
		return "an 8-bit unsigned integer"
	case p.Kind == model.Signed && p.Bits == 8:
		return "an 8-bit signed integer"
	case p.Kind == model.Unsigned:
		return "a " + strconv.Itoa(p.Bits) + "-bit unsigned integer"
	}
	return "a " + strconv.Itoa(p.Bits) + "-bit signed integer"
}
