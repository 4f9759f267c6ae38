package attr

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies what a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindUint64
	KindDuration
	KindTime
	KindAny
)

var kindNames = [...]string{
	KindString:   "string",
	KindInt64:    "int64",
	KindFloat64:  "float64",
	KindBool:     "bool",
	KindUint64:   "uint64",
	KindDuration: "duration",
	KindTime:     "time",
	KindAny:      "any",
}

// String returns the kind name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value holds one attribute value. The exported telemetry model only knows
// bool, int64, float64 and string; the remaining kinds are conveniences that
// collapse onto those four through Core.
//
// Accessors never panic: reading a Value as the wrong kind yields the zero
// value for the requested type, so instrumentation can't fail a caller.
type Value struct {
	kind Kind
	num  uint64
	str  string
	any  any
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// StringValue returns a string value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int64Value returns an int64 value.
func Int64Value(n int64) Value {
	return Value{kind: KindInt64, num: uint64(n)}
}

// Uint64Value returns a uint64 value.
func Uint64Value(n uint64) Value {
	return Value{kind: KindUint64, num: n}
}

// Float64Value returns a float64 value.
func Float64Value(f float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(f)}
}

// BoolValue returns a bool value.
func BoolValue(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// DurationValue returns a duration value.
func DurationValue(d time.Duration) Value {
	return Value{kind: KindDuration, num: uint64(d)}
}

// TimeValue returns a time value.
func TimeValue(t time.Time) Value {
	return Value{kind: KindTime, any: t}
}

// AnyValue picks the narrowest kind for v. Unknown types are kept as KindAny
// and rendered with fmt when exported.
func AnyValue(v any) Value {
	switch val := v.(type) {
	case Value:
		return val
	case string:
		return StringValue(val)
	case bool:
		return BoolValue(val)
	case int:
		return Int64Value(int64(val))
	case int8:
		return Int64Value(int64(val))
	case int16:
		return Int64Value(int64(val))
	case int32:
		return Int64Value(int64(val))
	case int64:
		return Int64Value(val)
	case uint:
		return Uint64Value(uint64(val))
	case uint8:
		return Int64Value(int64(val))
	case uint16:
		return Int64Value(int64(val))
	case uint32:
		return Int64Value(int64(val))
	case uint64:
		return Uint64Value(val)
	case float32:
		return Float64Value(float64(val))
	case float64:
		return Float64Value(val)
	case time.Duration:
		return DurationValue(val)
	case time.Time:
		return TimeValue(val)
	case error:
		if val == nil {
			return StringValue("")
		}
		return StringValue(val.Error())
	case fmt.Stringer:
		return StringValue(val.String())
	default:
		return Value{kind: KindAny, any: v}
	}
}

// AsString returns the string, or "" for other kinds.
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// AsInt64 returns the int64, or 0 for other kinds.
func (v Value) AsInt64() int64 {
	if v.kind != KindInt64 {
		return 0
	}
	return int64(v.num)
}

// AsUint64 returns the uint64, or 0 for other kinds.
func (v Value) AsUint64() uint64 {
	if v.kind != KindUint64 {
		return 0
	}
	return v.num
}

// AsFloat64 returns the float64, or 0 for other kinds.
func (v Value) AsFloat64() float64 {
	if v.kind != KindFloat64 {
		return 0
	}
	return math.Float64frombits(v.num)
}

// AsBool returns the bool, or false for other kinds.
func (v Value) AsBool() bool {
	return v.kind == KindBool && v.num != 0
}

// AsDuration returns the duration, or 0 for other kinds.
func (v Value) AsDuration() time.Duration {
	if v.kind != KindDuration {
		return 0
	}
	return time.Duration(v.num)
}

// AsTime returns the time, or the zero time for other kinds.
func (v Value) AsTime() time.Time {
	t, _ := v.any.(time.Time)
	return t
}

// AsAny returns the Go value held by v.
func (v Value) AsAny() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return int64(v.num)
	case KindUint64:
		return v.num
	case KindFloat64:
		return math.Float64frombits(v.num)
	case KindBool:
		return v.num != 0
	case KindDuration:
		return time.Duration(v.num)
	default:
		return v.any
	}
}

// Core collapses v onto one of the four exported kinds.
//
//	uint64   -> int64 (saturating at MaxInt64)
//	duration -> int64 nanoseconds
//	time     -> RFC 3339 string
//	any      -> fmt string
func (v Value) Core() Value {
	switch v.kind {
	case KindString, KindInt64, KindFloat64, KindBool:
		return v
	case KindUint64:
		if v.num > math.MaxInt64 {
			return Int64Value(math.MaxInt64)
		}
		return Int64Value(int64(v.num))
	case KindDuration:
		return Int64Value(int64(v.num))
	default:
		return StringValue(v.String())
	}
}

// String formats the value for humans.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return strconv.FormatInt(int64(v.num), 10)
	case KindUint64:
		return strconv.FormatUint(v.num, 10)
	case KindFloat64:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindDuration:
		return time.Duration(v.num).String()
	case KindTime:
		return v.AsTime().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v.any)
	}
}

// Equal reports whether two values have the same kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindTime:
		return v.AsTime().Equal(o.AsTime())
	case KindAny:
		return fmt.Sprint(v.any) == fmt.Sprint(o.any)
	default:
		return v.num == o.num
	}
}
