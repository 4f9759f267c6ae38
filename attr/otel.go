package attr

import (
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
)

// KeyValue converts a into the OpenTelemetry attribute model. Non-core kinds
// are collapsed first, see Value.Core.
func (a Attr) KeyValue() attribute.KeyValue {
	v := a.Value.Core()
	switch v.Kind() {
	case KindBool:
		return attribute.Bool(a.Key, v.AsBool())
	case KindInt64:
		return attribute.Int64(a.Key, v.AsInt64())
	case KindFloat64:
		return attribute.Float64(a.Key, v.AsFloat64())
	default:
		return attribute.String(a.Key, v.AsString())
	}
}

// KeyValues converts a list, keeping order and duplicates.
func KeyValues(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		out[i] = a.KeyValue()
	}
	return out
}

// LogKeyValue converts a into the OpenTelemetry log attribute model.
func (a Attr) LogKeyValue() otellog.KeyValue {
	v := a.Value.Core()
	switch v.Kind() {
	case KindBool:
		return otellog.Bool(a.Key, v.AsBool())
	case KindInt64:
		return otellog.Int64(a.Key, v.AsInt64())
	case KindFloat64:
		return otellog.Float64(a.Key, v.AsFloat64())
	default:
		return otellog.String(a.Key, v.AsString())
	}
}

// FromKeyValue converts an OpenTelemetry attribute back into an Attr. Slice
// kinds are carried as a JSON array string, e.g. ["a","b"] or [1,2].
func FromKeyValue(kv attribute.KeyValue) Attr {
	key := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.BOOL:
		return Bool(key, kv.Value.AsBool())
	case attribute.INT64:
		return Int64(key, kv.Value.AsInt64())
	case attribute.FLOAT64:
		return Float64(key, kv.Value.AsFloat64())
	case attribute.STRING:
		return String(key, kv.Value.AsString())
	case attribute.BOOLSLICE, attribute.INT64SLICE, attribute.FLOAT64SLICE, attribute.STRINGSLICE:
		return JSON(key, kv.Value.AsInterface())
	default:
		return String(key, kv.Value.Emit())
	}
}

// OTelSet returns the set as an attribute.Set, usable as a metric
// measurement option.
func (s Set) OTelSet() attribute.Set {
	return attribute.NewSet(KeyValues(s.attrs)...)
}
