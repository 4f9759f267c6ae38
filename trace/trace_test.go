package trace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/internal"
)

type recordingProcessor struct {
	mu       sync.Mutex
	ended    []*Span
	flushes  int
	shutdown int
}

func (p *recordingProcessor) OnEnd(s *Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, s)
}

func (p *recordingProcessor) ForceFlush(context.Context) error {
	p.flushes++
	return nil
}

func (p *recordingProcessor) Shutdown(context.Context) error {
	p.shutdown++
	return nil
}

func (p *recordingProcessor) spans() []*Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Span(nil), p.ended...)
}

func newTestTracer() (*Tracer, *recordingProcessor) {
	p := &recordingProcessor{}
	return NewTracer(TracerConfig{Name: "test", Processor: p}), p
}

func TestStartRootSpan(t *testing.T) {
	tracer, _ := newTestTracer()

	ctx, span := tracer.Start(context.Background(), "root")
	defer span.End()

	sc := span.SpanContext()
	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsSampled())
	assert.False(t, sc.IsRemote)
	assert.False(t, span.Parent().IsValid())
	assert.Equal(t, "root", span.Name())
	assert.Equal(t, "test", span.Scope())

	assert.Same(t, span, SpanFromContext(ctx))
	assert.True(t, SpanContextFromContext(ctx).Equal(sc))
}

func TestStartDoesNotMutateParentContext(t *testing.T) {
	tracer, _ := newTestTracer()

	parentCtx, parent := tracer.Start(context.Background(), "parent")
	childCtx, child := tracer.Start(parentCtx, "child")

	assert.Same(t, parent, SpanFromContext(parentCtx))
	assert.Same(t, child, SpanFromContext(childCtx))
}

func TestChildInheritsTraceID(t *testing.T) {
	tracer, _ := newTestTracer()

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Start(ctx, "child")

	assert.Equal(t, parent.SpanContext().TraceID, child.SpanContext().TraceID)
	assert.NotEqual(t, parent.SpanContext().SpanID, child.SpanContext().SpanID)
	assert.Equal(t, parent.SpanContext().SpanID, child.Parent().SpanID)
}

func TestChildOfRemoteParent(t *testing.T) {
	tracer, _ := newTestTracer()

	tid, _ := internal.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	sid, _ := internal.SpanIDFromHex("b7ad6b7169203331")
	remote := SpanContext{TraceID: tid, SpanID: sid, Flags: FlagsSampled}

	ctx := ContextWithRemoteSpanContext(context.Background(), remote)
	assert.Nil(t, SpanFromContext(ctx))
	assert.True(t, SpanContextFromContext(ctx).IsRemote)

	_, child := tracer.Start(ctx, "server")
	assert.Equal(t, tid, child.SpanContext().TraceID)
	assert.Equal(t, sid, child.Parent().SpanID)
	assert.True(t, child.Parent().IsRemote)
	assert.False(t, child.SpanContext().IsRemote)
}

func TestStartIgnoresInvalidParent(t *testing.T) {
	tracer, _ := newTestTracer()

	zero := SpanContext{IsRemote: true}
	ctx := ContextWithRemoteSpanContext(context.Background(), zero)
	_, span := tracer.Start(ctx, "fresh")

	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.Parent().IsValid())
}

func TestContextWithoutSpanStartsNewTrace(t *testing.T) {
	tracer, _ := newTestTracer()

	ctx, parent := tracer.Start(context.Background(), "parent")
	cleared := ContextWithoutSpan(ctx)

	assert.Nil(t, SpanFromContext(cleared))
	assert.False(t, SpanContextFromContext(cleared).IsValid())

	_, span := tracer.Start(cleared, "other")
	assert.NotEqual(t, parent.SpanContext().TraceID, span.SpanContext().TraceID)
}

func TestStartOptions(t *testing.T) {
	tracer, _ := newTestTracer()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ctx, parent := tracer.Start(context.Background(), "parent")

	explicit := SpanContext{TraceID: internal.NewTraceID(), SpanID: internal.NewSpanID(), Flags: FlagsSampled}
	_, span := tracer.Start(ctx, "child",
		WithSpanKind(SpanKindClient),
		WithAttrs(attr.String("a", "1")),
		WithAttrs(attr.String("b", "2")),
		WithParent(explicit),
		WithTimestamp(ts),
	)

	assert.Equal(t, SpanKindClient, span.Kind())
	assert.Len(t, span.Attrs(), 2)
	assert.Equal(t, explicit.TraceID, span.SpanContext().TraceID)
	assert.Equal(t, ts, span.StartTime())

	_, root := tracer.Start(ctx, "root", WithNewRoot())
	assert.NotEqual(t, parent.SpanContext().TraceID, root.SpanContext().TraceID)
}

func TestSpanAttributesKeepOrderAndDuplicates(t *testing.T) {
	tracer, _ := newTestTracer()
	_, span := tracer.Start(context.Background(), "op")

	span.SetAttr(attr.String("k", "1"), attr.Int("n", 2))
	span.SetAttr(attr.String("k", "3"))

	attrs := span.Attrs()
	require.Len(t, attrs, 3)
	assert.Equal(t, "1", attrs[0].Value.AsString())
	assert.Equal(t, "3", attrs[2].Value.AsString())
}

func TestSpanEndIsFinal(t *testing.T) {
	tracer, proc := newTestTracer()
	_, span := tracer.Start(context.Background(), "op")

	span.End()
	end := span.EndTime()
	span.End()

	span.SetAttr(attr.String("late", "x"))
	span.AddEvent("late")
	span.SetStatus(StatusError, "late")
	span.SetName("renamed")

	assert.Equal(t, end, span.EndTime())
	assert.Empty(t, span.Attrs())
	assert.Empty(t, span.Events())
	assert.Equal(t, StatusUnset, span.Status().Code)
	assert.Equal(t, "op", span.Name())
	assert.False(t, span.IsRecording())
	assert.True(t, span.Ended())
	assert.Len(t, proc.spans(), 1)
}

func TestSpanRecordError(t *testing.T) {
	tracer, _ := newTestTracer()
	_, span := tracer.Start(context.Background(), "op")

	span.RecordError(nil)
	assert.Empty(t, span.Events())

	span.RecordError(errors.New("boom"), attr.String("extra", "x"))

	events := span.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "exception", events[0].Name)
	assert.Equal(t, "exception.message", events[0].Attrs[1].Key)
	assert.Equal(t, "boom", events[0].Attrs[1].Value.AsString())
	assert.Equal(t, "extra", events[0].Attrs[2].Key)
	assert.Equal(t, Status{Code: StatusError, Description: "boom"}, span.Status())
}

func TestStatusFirstErrorWins(t *testing.T) {
	tests := []struct {
		name  string
		steps []Status
		want  Status
	}{
		{"unset to ok", []Status{{Code: StatusOK}}, Status{Code: StatusOK}},
		{"ok drops description", []Status{{Code: StatusOK, Description: "fine"}}, Status{Code: StatusOK}},
		{"ok then error", []Status{{Code: StatusOK}, {Code: StatusError, Description: "e"}}, Status{Code: StatusError, Description: "e"}},
		{"error is terminal", []Status{{Code: StatusError, Description: "first"}, {Code: StatusOK}, {Code: StatusError, Description: "second"}}, Status{Code: StatusError, Description: "first"}},
		{"unset is ignored", []Status{{Code: StatusOK}, {Code: StatusUnset}}, Status{Code: StatusOK}},
	}

	tracer, _ := newTestTracer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, span := tracer.Start(context.Background(), "op")
			for _, s := range tt.steps {
				span.SetStatus(s.Code, s.Description)
			}
			assert.Equal(t, tt.want, span.Status())
		})
	}
}

func TestSpanDuration(t *testing.T) {
	tracer, _ := newTestTracer()
	start := time.Now().Add(-time.Second)
	_, span := tracer.Start(context.Background(), "op", WithTimestamp(start))

	assert.GreaterOrEqual(t, span.Duration(), time.Second)
	span.EndAt(start.Add(250 * time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, span.Duration())
}

func TestUnsampledSpanIsNotRecordedOrExported(t *testing.T) {
	proc := &recordingProcessor{}
	tracer := NewTracer(TracerConfig{Sampler: NeverSample(), Processor: proc})

	ctx, span := tracer.Start(context.Background(), "dropped")
	span.SetAttr(attr.String("k", "v"))
	span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.SpanContext().IsSampled())
	assert.Empty(t, span.Attrs())
	assert.Empty(t, proc.spans())

	// children keep the trace and the unsampled decision under parent-based sampling
	pb := NewTracer(TracerConfig{Sampler: NewParentBasedSampler(AlwaysSample()), Processor: proc})
	_, child := pb.Start(ctx, "child")
	assert.Equal(t, span.SpanContext().TraceID, child.SpanContext().TraceID)
	assert.False(t, child.SpanContext().IsSampled())
}

func TestNilTracer(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.Start(context.Background(), "op")

	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.IsRecording())
	assert.Same(t, span, SpanFromContext(ctx))
	assert.NoError(t, tracer.Shutdown(context.Background()))
	span.End()
}

func TestTracerShutdown(t *testing.T) {
	tracer, proc := newTestTracer()

	_, before := tracer.Start(context.Background(), "before")
	require.NoError(t, tracer.ForceFlush(context.Background()))
	require.NoError(t, tracer.Shutdown(context.Background()))
	require.NoError(t, tracer.Shutdown(context.Background()))
	before.End()

	_, after := tracer.Start(context.Background(), "after")
	after.End()

	assert.Equal(t, 1, proc.flushes)
	assert.Equal(t, 1, proc.shutdown)
	assert.Empty(t, proc.spans())
	assert.False(t, after.IsRecording())
}

func TestSamplers(t *testing.T) {
	p := SamplingParameters{TraceID: internal.NewTraceID()}

	assert.True(t, AlwaysSample().ShouldSample(p))
	assert.False(t, NeverSample().ShouldSample(p))
	assert.True(t, NewRatioSampler(1).ShouldSample(p))
	assert.False(t, NewRatioSampler(0).ShouldSample(p))
	assert.False(t, NewRatioSampler(-3).ShouldSample(p))

	// Same trace, same answer.
	half := NewRatioSampler(0.5)
	assert.Equal(t, half.ShouldSample(p), half.ShouldSample(p))

	sampled := 0
	for i := 0; i < 2000; i++ {
		if half.ShouldSample(SamplingParameters{TraceID: internal.NewTraceID()}) {
			sampled++
		}
	}
	assert.InDelta(t, 1000, sampled, 200)
}

func TestParentBasedSampler(t *testing.T) {
	s := NewParentBasedSampler(NeverSample())
	valid := SpanContext{TraceID: internal.NewTraceID(), SpanID: internal.NewSpanID()}

	assert.False(t, s.ShouldSample(SamplingParameters{}))
	assert.True(t, s.ShouldSample(SamplingParameters{Parent: SpanContext{TraceID: valid.TraceID, SpanID: valid.SpanID, Flags: FlagsSampled}}))
	assert.False(t, s.ShouldSample(SamplingParameters{Parent: valid}))
	assert.Equal(t, "ParentBased{root:AlwaysOff}", s.Description())
}

func TestTraceFlags(t *testing.T) {
	f := TraceFlags(0x82)
	assert.False(t, f.IsSampled())
	assert.Equal(t, TraceFlags(0x83), f.WithSampled(true))
	assert.Equal(t, TraceFlags(0x82), f.WithSampled(true).WithSampled(false))
}

func TestTraceStateInherited(t *testing.T) {
	tracer, _ := newTestTracer()
	parent := SpanContext{
		TraceID: internal.NewTraceID(),
		SpanID:  internal.NewSpanID(),
		Flags:   FlagsSampled,
		State:   TraceState{{Key: "vendor", Value: "x"}},
	}

	_, span := tracer.Start(context.Background(), "child", WithParent(parent))
	v, ok := span.SpanContext().State.Get("vendor")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestEventsOnContext(t *testing.T) {
	tracer, _ := newTestTracer()
	ctx, span := tracer.Start(context.Background(), "op")

	NewEvent(ctx, "cache.miss", attr.String("key", "user:1"))
	NewErrorEvent(ctx, "db.failed", "connection refused", attr.Int("attempt", 1))
	NewErrorEvent(ctx, "db.failed", "second failure")
	SetAttr(ctx, attr.Bool("retried", true))
	RecordError(ctx, errors.New("late"))

	events := span.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "cache.miss", events[0].Name)
	assert.Equal(t, "db.failed", events[1].Name)
	assert.Equal(t, "exception", events[3].Name)
	assert.Equal(t, Status{Code: StatusError, Description: "connection refused"}, span.Status())
	assert.Len(t, span.Attrs(), 1)
}

func TestEventsWithoutLocalSpanAreNoops(t *testing.T) {
	assert.NotPanics(t, func() {
		NewEvent(context.Background(), "nothing")
		NewErrorEvent(context.Background(), "nothing", "x")

		remote := ContextWithRemoteSpanContext(context.Background(), SpanContext{
			TraceID: internal.NewTraceID(),
			SpanID:  internal.NewSpanID(),
		})
		NewEvent(remote, "remote")
	})
}

func TestConcurrentSpanWrites(t *testing.T) {
	tracer, _ := newTestTracer()
	ctx, span := tracer.Start(context.Background(), "op")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			NewEvent(ctx, "tick")
			SetAttr(ctx, attr.Int("i", 1))
		})
	}
	wg.Wait()

	assert.Len(t, span.Events(), 50)
	assert.Len(t, span.Attrs(), 50)
}
