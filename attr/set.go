package attr

import (
	"slices"
	"strings"
)

// Set is an immutable, key-sorted, deduplicated group of attributes. It is
// used where identity matters (metric series, resources) rather than
// recording order; ordered lists stay plain []Attr.
type Set struct {
	attrs []Attr
}

// NewSet sorts attrs by key. On duplicate keys the last one wins.
func NewSet(attrs ...Attr) Set {
	if len(attrs) == 0 {
		return Set{}
	}

	sorted := slices.Clone(attrs)
	slices.SortStableFunc(sorted, func(a, b Attr) int {
		return strings.Compare(a.Key, b.Key)
	})

	out := sorted[:0]
	for _, a := range sorted {
		if n := len(out); n > 0 && out[n-1].Key == a.Key {
			out[n-1] = a
			continue
		}
		out = append(out, a)
	}
	return Set{attrs: out}
}

// Len returns the number of attributes in the set.
func (s Set) Len() int {
	return len(s.attrs)
}

// Attrs returns the backing slice; callers must not modify it.
func (s Set) Attrs() []Attr {
	return s.attrs
}

// Get returns the value stored under key.
func (s Set) Get(key string) (Value, bool) {
	i, ok := slices.BinarySearchFunc(s.attrs, key, func(a Attr, k string) int {
		return strings.Compare(a.Key, k)
	})
	if !ok {
		return Value{}, false
	}
	return s.attrs[i].Value, true
}

// Has reports whether key is in the set.
func (s Set) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Merge returns a new set with other layered over s.
func (s Set) Merge(other ...Attr) Set {
	if len(other) == 0 {
		return s
	}
	return NewSet(append(slices.Clip(s.attrs), other...)...)
}

// MergeSet is Merge for another Set.
func (s Set) MergeSet(other Set) Set {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	return s.Merge(other.attrs...)
}

// Range calls fn for each attribute in key order until fn returns false.
func (s Set) Range(fn func(Attr) bool) {
	for _, a := range s.attrs {
		if !fn(a) {
			return
		}
	}
}

// Keys returns the keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		keys[i] = a.Key
	}
	return keys
}

// Equal reports whether both sets hold the same keys and values.
func (s Set) Equal(o Set) bool {
	return slices.EqualFunc(s.attrs, o.attrs, func(a, b Attr) bool {
		return a.Key == b.Key && a.Value.Equal(b.Value)
	})
}
