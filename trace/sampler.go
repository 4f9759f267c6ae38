package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/kzs0/otex/internal"
)

// SamplingParameters is what a Sampler sees when a span starts.
type SamplingParameters struct {
	TraceID internal.TraceID
	Name    string
	Kind    SpanKind
	// Parent is the parent identity, local or remote; zero for roots.
	Parent SpanContext
}

// Sampler decides whether a new span is recorded and exported. Spans that are
// not sampled still get a valid identity, so their trace keeps propagating.
type Sampler interface {
	ShouldSample(p SamplingParameters) bool
	Description() string
}

// AlwaysSample samples every span.
func AlwaysSample() Sampler { return alwaysSampler{} }

// NeverSample samples nothing.
func NeverSample() Sampler { return neverSampler{} }

type alwaysSampler struct{}

func (alwaysSampler) ShouldSample(SamplingParameters) bool { return true }
func (alwaysSampler) Description() string                  { return "AlwaysOn" }

type neverSampler struct{}

func (neverSampler) ShouldSample(SamplingParameters) bool { return false }
func (neverSampler) Description() string                  { return "AlwaysOff" }

// RatioSampler samples a fixed fraction of traces. The decision is derived
// from the trace ID, so every process sampling the same trace at the same
// ratio agrees.
type RatioSampler struct {
	ratio     float64
	threshold uint64
}

// NewRatioSampler clamps ratio to [0, 1].
func NewRatioSampler(ratio float64) *RatioSampler {
	switch {
	case ratio <= 0:
		ratio = 0
	case ratio >= 1:
		ratio = 1
	}
	return &RatioSampler{
		ratio:     ratio,
		threshold: uint64(ratio * (1 << 63)),
	}
}

// ShouldSample decides from the trace ID, so every span of a trace agrees.
func (s *RatioSampler) ShouldSample(p SamplingParameters) bool {
	if s.ratio >= 1 {
		return true
	}
	// Low 8 bytes of the trace ID, shifted to 63 bits.
	x := binary.BigEndian.Uint64(p.TraceID[8:16]) >> 1
	return x < s.threshold
}

// Description names the sampler and its ratio.
func (s *RatioSampler) Description() string {
	return fmt.Sprintf("TraceIDRatioBased{%g}", s.ratio)
}

// ParentBasedSampler follows the sampled flag of a valid parent and defers to
// root for new traces.
type ParentBasedSampler struct {
	root Sampler
}

// NewParentBasedSampler follows the parent's sampled flag and asks root
// for spans without a parent.
func NewParentBasedSampler(root Sampler) *ParentBasedSampler {
	if root == nil {
		root = AlwaysSample()
	}
	return &ParentBasedSampler{root: root}
}

// ShouldSample follows the parent when there is one.
func (s *ParentBasedSampler) ShouldSample(p SamplingParameters) bool {
	if p.Parent.IsValid() {
		return p.Parent.IsSampled()
	}
	return s.root.ShouldSample(p)
}

// Description names the sampler and its root.
func (s *ParentBasedSampler) Description() string {
	return "ParentBased{root:" + s.root.Description() + "}"
}
