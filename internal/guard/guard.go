// Package guard gates a protected view behind an authorization verdict.
//
// A Guard moves through Pending -> Allowed | Denied. Every mount, capability
// change and session change notification starts a new evaluation attempt and
// re-enters Pending; only the most recently started attempt may resolve the
// guard. Results arriving after Unmount are discarded without side effects.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/session"
)

var (
	ErrUnmounted      = errors.New("guard: unmounted")
	ErrAlreadyMounted = errors.New("guard: already mounted")
	ErrNotMounted     = errors.New("guard: not mounted")
)

type State int

const (
	StatePending State = iota
	StateAllowed
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateAllowed:
		return "allowed"
	case StateDenied:
		return "denied"
	default:
		return "pending"
	}
}

// Status is the observable guard state. Verdict is meaningful only once resolved.
type Status struct {
	State   State
	Verdict authz.Verdict
	Attempt uint64
}

// SessionSource is the read side of a session store.
type SessionSource interface {
	Current(ctx context.Context) session.Snapshot
	Subscribe(fn func(session.Event)) (unsubscribe func())
}

type Evaluator interface {
	Evaluate(ctx context.Context, snap session.Snapshot, c authz.Capability) authz.Verdict
}

// Recorder receives verdict metrics.
type Recorder interface {
	RecordVerdict(capability string, allowed bool, reason string)
	RecordStaleEvaluation()
}

type nopRecorder struct{}

func (nopRecorder) RecordVerdict(string, bool, string) {}
func (nopRecorder) RecordStaleEvaluation()             {}

type Options struct {
	Policy  Policy
	Logger  *slog.Logger
	Metrics Recorder
}

type Guard struct {
	source  SessionSource
	eval    Evaluator
	policy  Policy
	log     *slog.Logger
	metrics Recorder

	mu          sync.Mutex
	capability  authz.Capability
	status      Status
	attempt     uint64
	mounted     bool
	unmounted   bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	changed     chan struct{}
	watch       chan Status

	inflight sync.WaitGroup
}

func New(source SessionSource, eval Evaluator, c authz.Capability, opts Options) *Guard {
	g := &Guard{
		source:     source,
		eval:       eval,
		policy:     opts.Policy.withDefaults(),
		log:        opts.Logger,
		metrics:    opts.Metrics,
		capability: c,
		changed:    make(chan struct{}),
		watch:      make(chan Status, 1),
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.metrics == nil {
		g.metrics = nopRecorder{}
	}
	return g
}

// Mount subscribes to session changes for the guard's lifetime and starts the first evaluation.
func (g *Guard) Mount(ctx context.Context) error {
	g.mu.Lock()
	if g.unmounted {
		g.mu.Unlock()
		return ErrUnmounted
	}
	if g.mounted {
		g.mu.Unlock()
		return ErrAlreadyMounted
	}
	g.mounted = true
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.mu.Unlock()

	unsubscribe := g.source.Subscribe(g.onSessionChange)

	g.mu.Lock()
	if g.unmounted {
		// Unmount ran between the two critical sections.
		g.mu.Unlock()
		unsubscribe()
		return ErrUnmounted
	}
	g.unsubscribe = unsubscribe
	g.startLocked()
	g.mu.Unlock()
	return nil
}

// SetCapability changes the requirement and re-evaluates. A no-op for the current capability.
func (g *Guard) SetCapability(c authz.Capability) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unmounted {
		return ErrUnmounted
	}
	if c == g.capability {
		return nil
	}
	g.capability = c
	if g.mounted {
		g.startLocked()
	}
	return nil
}

// Unmount releases the subscription and makes every in-flight evaluation ignorable.
func (g *Guard) Unmount() {
	g.mu.Lock()
	if g.unmounted {
		g.mu.Unlock()
		return
	}
	g.unmounted = true
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	cancel := g.cancel
	close(g.changed)
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}

func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Guard) Capability() authz.Capability {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capability
}

// Watch returns a channel that always holds the latest status; intermediate
// statuses may be skipped by slow readers.
func (g *Guard) Watch() <-chan Status { return g.watch }

// Wait blocks until the most recently started attempt resolves.
func (g *Guard) Wait(ctx context.Context) (Status, error) {
	for {
		g.mu.Lock()
		if g.unmounted {
			g.mu.Unlock()
			return Status{}, ErrUnmounted
		}
		if !g.mounted {
			g.mu.Unlock()
			return Status{}, ErrNotMounted
		}
		st := g.status
		changed := g.changed
		g.mu.Unlock()

		if st.State != StatePending {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-changed:
		}
	}
}

// Redirect returns the redirect instruction for a denied guard.
func (g *Guard) Redirect(from string) (Redirect, bool) {
	st := g.Status()
	if st.State != StateDenied {
		return Redirect{}, false
	}
	return g.policy.Redirect(st.Verdict, from)
}

func (g *Guard) onSessionChange(e session.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unmounted || !g.mounted {
		return
	}
	g.log.Debug("session changed, re-evaluating",
		"event", string(e.Type),
		"capability", string(g.capability),
	)
	g.startLocked()
}

// startLocked begins a new attempt; g.mu must be held.
func (g *Guard) startLocked() {
	g.attempt++
	n := g.attempt
	c := g.capability
	g.setStatusLocked(Status{State: StatePending, Attempt: n})

	ctx := g.ctx
	g.inflight.Add(1)
	go g.run(ctx, n, c)
}

func (g *Guard) run(ctx context.Context, n uint64, c authz.Capability) {
	defer g.inflight.Done()

	snap := g.source.Current(ctx)
	v := g.eval.Evaluate(ctx, snap, c)
	g.resolve(n, v)
}

func (g *Guard) resolve(n uint64, v authz.Verdict) {
	g.mu.Lock()
	if g.unmounted {
		g.mu.Unlock()
		return
	}
	if n != g.attempt {
		g.mu.Unlock()
		g.metrics.RecordStaleEvaluation()
		g.log.Debug("discarding stale evaluation", "attempt", n)
		return
	}
	st := Status{State: StateAllowed, Verdict: v, Attempt: n}
	if !v.Allowed {
		st.State = StateDenied
	}
	g.setStatusLocked(st)
	g.mu.Unlock()

	g.metrics.RecordVerdict(string(v.Capability), v.Allowed, string(v.Reason))
	if !v.Allowed {
		g.log.Info("access denied",
			"capability", string(v.Capability),
			"reason", string(v.Reason),
			"attempt", n,
		)
	}
}

func (g *Guard) setStatusLocked(st Status) {
	g.status = st
	close(g.changed)
	g.changed = make(chan struct{})

	select {
	case <-g.watch:
	default:
	}
	g.watch <- st
}

// Check runs a one-shot guard: mount, wait for the first resolution, unmount.
func Check(ctx context.Context, source SessionSource, eval Evaluator, c authz.Capability, opts Options) (Status, error) {
	g := New(source, eval, c, opts)
	if err := g.Mount(ctx); err != nil {
		return Status{}, err
	}
	defer g.Unmount()
	return g.Wait(ctx)
}
