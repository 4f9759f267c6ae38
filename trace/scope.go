package trace

import (
	"context"
	"log/slog"
)

// Scope is an ambient "current context" cell for code that cannot have a
// context.Context passed to it, such as callbacks with fixed signatures.
//
// A Scope belongs to one goroutine and is not safe for concurrent use. Work
// handed to another goroutine should receive its context explicitly, see Bind
// and Go.
type Scope struct {
	// Logger receives out-of-order detach warnings. Defaults to slog.Default().
	Logger *slog.Logger

	frames []frame
	nextID uint64
}

type frame struct {
	id  uint64
	ctx context.Context
}

// Guard undoes one Attach. Detach it exactly once, typically with defer.
type Guard struct {
	scope *Scope
	id    uint64
	done  bool
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Attach makes ctx current until the returned guard is detached.
func (s *Scope) Attach(ctx context.Context) *Guard {
	if ctx == nil {
		ctx = context.Background()
	}
	s.nextID++
	s.frames = append(s.frames, frame{id: s.nextID, ctx: ctx})
	return &Guard{scope: s, id: s.nextID}
}

// Current returns the most recently attached context that is still attached,
// or context.Background() if there is none.
func (s *Scope) Current() context.Context {
	if n := len(s.frames); n > 0 {
		return s.frames[n-1].ctx
	}
	return context.Background()
}

// Depth returns the number of live attachments.
func (s *Scope) Depth() int {
	return len(s.frames)
}

// Run makes ctx current while fn runs. The previous context is restored when
// fn returns or panics.
func (s *Scope) Run(ctx context.Context, fn func()) {
	g := s.Attach(ctx)
	defer g.Detach()
	fn()
}

// Detach restores the context that was current before the matching Attach.
// Calling it again is a no-op.
//
// Guards should be detached in reverse order of attachment. Detaching an
// older guard first still restores the context current before it, discards
// every attachment made after it, and logs a warning.
func (g *Guard) Detach() {
	if g == nil || g.done {
		return
	}
	g.done = true

	s := g.scope
	i := len(s.frames) - 1
	for ; i >= 0; i-- {
		if s.frames[i].id == g.id {
			break
		}
	}
	if i < 0 {
		// Already discarded by an out-of-order detach of an older guard.
		return
	}

	if dropped := len(s.frames) - 1 - i; dropped > 0 {
		s.logger().Warn("trace: scope guard detached out of order",
			slog.Int("discarded", dropped),
			slog.Int("depth", len(s.frames)),
		)
	}

	clear(s.frames[i:])
	s.frames = s.frames[:i]
}

func (s *Scope) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Bind returns a unit of work that runs fn with ctx. The span active in ctx is
// visible to fn only while it runs, whichever goroutine runs it. The result
// fits errgroup.Group.Go.
func Bind(ctx context.Context, fn func(context.Context) error) func() error {
	return func() error {
		return fn(ctx)
	}
}

// Go runs fn in a new goroutine with ctx. A goroutine started with a bare go
// statement sees no span unless it is handed a context.
func Go(ctx context.Context, fn func(context.Context)) {
	go fn(ctx)
}
