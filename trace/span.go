package trace

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kzs0/otex/attr"
)

// SpanKind describes the role of a span in a trace.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// String returns the kind name.
func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	case SpanKindProducer:
		return "producer"
	case SpanKindConsumer:
		return "consumer"
	default:
		return "internal"
	}
}

// StatusCode is the outcome of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// String returns the code name.
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Status is a span's terminal status. Description is only kept for errors.
type Status struct {
	Code        StatusCode
	Description string
}

// Event is a timestamped, named occurrence within a span.
type Event struct {
	Name  string
	Time  time.Time
	Attrs []attr.Attr
}

// Span is a live unit of work. All methods are safe for concurrent use and
// become no-ops once the span has ended or when it is not recording.
type Span struct {
	mu sync.Mutex

	name      string
	sc        SpanContext
	parent    SpanContext
	kind      SpanKind
	startTime time.Time
	endTime   time.Time
	attrs     []attr.Attr
	events    []Event
	status    Status

	tracer    *Tracer
	recording bool
	ended     bool
}

// SpanContext returns the span's identity. It never changes.
func (s *Span) SpanContext() SpanContext {
	return s.sc
}

// Parent returns the identity of the parent span, local or remote. It is the
// zero SpanContext for root spans.
func (s *Span) Parent() SpanContext {
	return s.parent
}

// Kind returns the span kind.
func (s *Span) Kind() SpanKind {
	return s.kind
}

// StartTime returns when the span started.
func (s *Span) StartTime() time.Time {
	return s.startTime
}

// Scope returns the name of the tracer that created the span.
func (s *Span) Scope() string {
	if s.tracer == nil {
		return ""
	}
	return s.tracer.name
}

// Name returns the span name.
func (s *Span) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// EndTime returns when the span ended, or the zero time while it is open.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Attrs returns a copy of the attributes in the order they were set.
func (s *Span) Attrs() []attr.Attr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.attrs)
}

// Events returns a copy of the events in the order they were added.
func (s *Span) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Status returns the current status.
func (s *Span) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetName renames the span.
func (s *Span) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writable() {
		return
	}
	s.name = name
}

// SetAttr appends attributes. Repeated keys are kept in order; backends
// typically resolve them last-wins.
func (s *Span) SetAttr(attrs ...attr.Attr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writable() {
		return
	}
	s.attrs = append(s.attrs, attrs...)
}

// AddEvent appends a named event stamped with the current time.
func (s *Span) AddEvent(name string, attrs ...attr.Attr) {
	s.addEvent(time.Now(), name, attrs)
}

func (s *Span) addEvent(ts time.Time, name string, attrs []attr.Attr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writable() {
		return
	}
	s.events = append(s.events, Event{
		Name:  name,
		Time:  ts,
		Attrs: slices.Clone(attrs),
	})
}

// RecordError adds an "exception" event for err and marks the span failed.
func (s *Span) RecordError(err error, attrs ...attr.Attr) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writable() {
		return
	}

	evAttrs := make([]attr.Attr, 0, len(attrs)+2)
	evAttrs = append(evAttrs,
		attr.String("exception.type", errorType(err)),
		attr.String("exception.message", err.Error()),
	)
	evAttrs = append(evAttrs, attrs...)

	s.events = append(s.events, Event{Name: "exception", Time: time.Now(), Attrs: evAttrs})
	s.setStatus(StatusError, err.Error())
}

// SetStatus records the outcome of the span. The first error wins: once the
// status is StatusError further calls are ignored. Unset and OK may still be
// replaced.
func (s *Span) SetStatus(code StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writable() {
		return
	}
	s.setStatus(code, description)
}

func (s *Span) setStatus(code StatusCode, description string) {
	if s.status.Code == StatusError || code == StatusUnset {
		return
	}
	if code != StatusError {
		description = ""
	}
	s.status = Status{Code: code, Description: description}
}

// End stamps the end time and hands the span to the tracer's processor.
// Only the first call has any effect.
func (s *Span) End() {
	s.EndAt(time.Now())
}

// EndAt is End with an explicit timestamp.
func (s *Span) EndAt(ts time.Time) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.endTime = ts
	recording := s.recording
	s.mu.Unlock()

	if recording && s.tracer != nil {
		s.tracer.finish(s)
	}
}

// IsRecording reports whether the span still accepts attributes and events.
func (s *Span) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writable()
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Duration is the elapsed time so far, or the final duration once ended.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return time.Since(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}

func (s *Span) writable() bool {
	return s.recording && !s.ended
}

func errorType(err error) string {
	return fmt.Sprintf("%T", err)
}
