package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSetSortsAndDeduplicates(t *testing.T) {
	s := NewSet(
		String("b", "2"),
		String("a", "1"),
		String("b", "3"),
	)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.Keys())

	v, ok := s.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "3", v.AsString())

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.False(t, s.Has("missing"))
}

func TestSetDoesNotAliasInput(t *testing.T) {
	in := []Attr{String("b", "1"), String("a", "2")}
	_ = NewSet(in...)
	assert.Equal(t, "b", in[0].Key)
}

func TestSetMerge(t *testing.T) {
	base := NewSet(String("service", "api"), String("env", "dev"))

	merged := base.Merge(String("env", "prod"), Int("shard", 3))
	assert.Equal(t, []string{"env", "service", "shard"}, merged.Keys())
	v, _ := merged.Get("env")
	assert.Equal(t, "prod", v.AsString())

	// base is untouched
	v, _ = base.Get("env")
	assert.Equal(t, "dev", v.AsString())

	assert.True(t, base.MergeSet(Set{}).Equal(base))
	assert.True(t, Set{}.MergeSet(base).Equal(base))
}

func TestSetRangeStops(t *testing.T) {
	s := NewSet(String("a", "1"), String("b", "2"), String("c", "3"))
	var seen []string
	s.Range(func(a Attr) bool {
		seen = append(seen, a.Key)
		return a.Key != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestSetOTelSet(t *testing.T) {
	s := NewSet(Int("code", 200), String("route", "/x"))
	os := s.OTelSet()
	assert.Equal(t, 2, os.Len())
	v, ok := os.Value(attribute.Key("code"))
	assert.True(t, ok)
	assert.Equal(t, int64(200), v.AsInt64())
}
