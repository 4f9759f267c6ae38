package propagation

import (
	"net/http"
	"strings"

	"github.com/kzs0/otex/trace"
)

// HeaderCarrier adapts http.Header. Lookups are case-insensitive, including
// keys stored without canonicalization.
type HeaderCarrier http.Header

var _ trace.TextMapCarrier = HeaderCarrier{}

// Get returns the first value stored under key in any letter case.
func (hc HeaderCarrier) Get(key string) string {
	if v := http.Header(hc).Get(key); v != "" {
		return v
	}
	for k, vs := range hc {
		if len(vs) > 0 && strings.EqualFold(k, key) {
			return vs[0]
		}
	}
	return ""
}

// Set replaces the values under the canonical form of key.
func (hc HeaderCarrier) Set(key, value string) {
	http.Header(hc).Set(key, value)
}

// Keys returns the stored keys as they appear in the map.
func (hc HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(hc))
	for k := range hc {
		keys = append(keys, k)
	}
	return keys
}

// MapCarrier adapts a plain string map such as message headers. Set stores
// keys as given; Get falls back to a case-insensitive match.
type MapCarrier map[string]string

var _ trace.TextMapCarrier = MapCarrier{}

// Get returns the value for key, matched exactly first and then in any
// letter case.
func (mc MapCarrier) Get(key string) string {
	if v, ok := mc[key]; ok {
		return v
	}
	for k, v := range mc {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Set stores value under key as given.
func (mc MapCarrier) Set(key, value string) {
	mc[key] = value
}

// Keys returns the stored keys in no particular order.
func (mc MapCarrier) Keys() []string {
	keys := make([]string, 0, len(mc))
	for k := range mc {
		keys = append(keys, k)
	}
	return keys
}
