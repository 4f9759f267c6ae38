// Package attr holds the key/value pairs attached to spans, events, log
// records and metric measurements.
package attr

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kzs0/otex/internal"
)

// Attr is one key/value pair. Keys may be dot-segmented ("http.method").
type Attr struct {
	Key   string
	Value Value
}

// String creates a string attribute.
func String(key, value string) Attr {
	return Attr{Key: key, Value: StringValue(value)}
}

// Int creates an int attribute, stored as int64.
func Int(key string, value int) Attr {
	return Attr{Key: key, Value: Int64Value(int64(value))}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attr {
	return Attr{Key: key, Value: Int64Value(value)}
}

// Uint64 creates a uint64 attribute.
func Uint64(key string, value uint64) Attr {
	return Attr{Key: key, Value: Uint64Value(value)}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attr {
	return Attr{Key: key, Value: Float64Value(value)}
}

// Bool creates a bool attribute.
func Bool(key string, value bool) Attr {
	return Attr{Key: key, Value: BoolValue(value)}
}

// Duration creates a duration attribute.
func Duration(key string, value time.Duration) Attr {
	return Attr{Key: key, Value: DurationValue(value)}
}

// Time creates a time attribute.
func Time(key string, value time.Time) Attr {
	return Attr{Key: key, Value: TimeValue(value)}
}

// Any picks the narrowest kind for value.
func Any(key string, value any) Attr {
	return Attr{Key: key, Value: AnyValue(value)}
}

// Error records err under the "error" key.
func Error(err error) Attr {
	if err == nil {
		return Attr{Key: "error", Value: StringValue("")}
	}
	return Attr{Key: "error", Value: StringValue(err.Error())}
}

// JSON stores value serialized as a JSON string. Serialization failures are
// recorded in place of the value rather than returned.
func JSON(key string, value any) Attr {
	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)
	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(value); err != nil {
		return String(key, fmt.Sprintf("!json(%T): %v", value, err))
	}
	return String(key, strings.TrimSuffix(buf.String(), "\n"))
}

// Debug stores the Go-syntax representation of value.
func Debug(key string, value any) Attr {
	return String(key, fmt.Sprintf("%#v", value))
}

// String formats a as key=value.
func (a Attr) String() string {
	return a.Key + "=" + a.Value.String()
}

// WithKey returns a copy of a under a different key.
func (a Attr) WithKey(key string) Attr {
	return Attr{Key: key, Value: a.Value}
}

// Valid reports whether the attribute has a non-empty key.
func (a Attr) Valid() bool {
	return strings.TrimSpace(a.Key) != ""
}

// Pairs builds an ordered attribute list from alternating keys and values:
//
//	attr.Pairs("http.method", "GET", "http.status_code", 200)
//
// Keys must be strings. A non-string key or a trailing key without a value is
// recorded under "!BADKEY", mirroring log/slog.
func Pairs(kv ...any) []Attr {
	if len(kv) == 0 {
		return nil
	}
	out := make([]Attr, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); {
		key, ok := kv[i].(string)
		if !ok || i+1 >= len(kv) {
			out = append(out, Any(badKey, kv[i]))
			i++
			continue
		}
		out = append(out, Any(key, kv[i+1]))
		i += 2
	}
	return out
}

const badKey = "!BADKEY"

// Builder accumulates attributes in insertion order. Duplicate keys are kept.
// The zero value is ready to use.
type Builder struct {
	attrs []Attr
}

// NewBuilder returns a Builder with room for n attributes.
func NewBuilder(n int) *Builder {
	return &Builder{attrs: make([]Attr, 0, n)}
}

// Str appends a string attribute.
func (b *Builder) Str(key, value string) *Builder {
	return b.Add(String(key, value))
}

// Int appends an int64 attribute.
func (b *Builder) Int(key string, value int64) *Builder {
	return b.Add(Int64(key, value))
}

// Float appends a float64 attribute.
func (b *Builder) Float(key string, value float64) *Builder {
	return b.Add(Float64(key, value))
}

// Bool appends a bool attribute.
func (b *Builder) Bool(key string, value bool) *Builder {
	return b.Add(Bool(key, value))
}

// JSON appends value serialized as JSON, see JSON.
func (b *Builder) JSON(key string, value any) *Builder {
	return b.Add(JSON(key, value))
}

// Debug appends the Go-syntax form of value.
func (b *Builder) Debug(key string, value any) *Builder {
	return b.Add(Debug(key, value))
}

// Add appends attributes verbatim.
func (b *Builder) Add(attrs ...Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// Len returns the number of attributes added so far.
func (b *Builder) Len() int {
	return len(b.attrs)
}

// Build returns a copy of the accumulated list. The builder can keep being used.
func (b *Builder) Build() []Attr {
	if len(b.attrs) == 0 {
		return nil
	}
	out := make([]Attr, len(b.attrs))
	copy(out, b.attrs)
	return out
}
