package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticSource struct {
	mu        sync.Mutex
	snap      session.Snapshot
	listeners []func(session.Event)
	unsubs    int
}

func (s *staticSource) Current(ctx context.Context) session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *staticSource) Subscribe(fn func(session.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubs++
		s.listeners = nil
	}
}

func (s *staticSource) emit(e session.Event) {
	s.mu.Lock()
	fns := append([]func(session.Event){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// gatedEvaluator blocks each evaluation until the test releases the verdict for its capability.
type gatedEvaluator struct {
	mu      sync.Mutex
	gates   map[authz.Capability]chan authz.Verdict
	started chan authz.Capability
}

func newGatedEvaluator() *gatedEvaluator {
	return &gatedEvaluator{
		gates:   map[authz.Capability]chan authz.Verdict{},
		started: make(chan authz.Capability, 16),
	}
}

func (e *gatedEvaluator) gate(c authz.Capability) chan authz.Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.gates[c]
	if !ok {
		ch = make(chan authz.Verdict, 1)
		e.gates[c] = ch
	}
	return ch
}

func (e *gatedEvaluator) Evaluate(ctx context.Context, snap session.Snapshot, c authz.Capability) authz.Verdict {
	gate := e.gate(c)
	e.started <- c
	select {
	case v := <-gate:
		return v
	case <-ctx.Done():
		return authz.Verdict{Capability: c, Reason: authz.ReasonRoleLookupFailed}
	}
}

func (e *gatedEvaluator) release(c authz.Capability, v authz.Verdict) { e.gate(c) <- v }

func (e *gatedEvaluator) waitStarted(t *testing.T, want ...authz.Capability) {
	t.Helper()
	got := map[authz.Capability]bool{}
	for range want {
		select {
		case c := <-e.started:
			got[c] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("evaluations did not start, got %v", got)
		}
	}
	for _, c := range want {
		require.True(t, got[c], "evaluation for %s not started", c)
	}
}

type verdictRecorder struct {
	mu       sync.Mutex
	verdicts []string
	stale    int
}

func (r *verdictRecorder) RecordVerdict(c string, allowed bool, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts = append(r.verdicts, c+":"+reason)
}

func (r *verdictRecorder) RecordStaleEvaluation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func (r *verdictRecorder) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.verdicts...), r.stale
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func allowed(c authz.Capability) authz.Verdict { return authz.Verdict{Capability: c, Allowed: true} }

func denied(c authz.Capability, r authz.Reason) authz.Verdict {
	return authz.Verdict{Capability: c, Reason: r}
}

func TestGuard_StartsPendingAndResolvesAllowed(t *testing.T) {
	src := &staticSource{snap: session.None()}
	ev := newGatedEvaluator()
	g := New(src, ev, authz.CapabilityAdmin, Options{})
	defer g.Unmount()

	assert.Equal(t, StatePending, g.Status().State)
	require.NoError(t, g.Mount(context.Background()))
	assert.Equal(t, StatePending, g.Status().State)

	ev.waitStarted(t, authz.CapabilityAdmin)
	ev.release(authz.CapabilityAdmin, allowed(authz.CapabilityAdmin))

	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StateAllowed, st.State)
	assert.Equal(t, uint64(1), st.Attempt)

	_, ok := g.Redirect("/admin")
	assert.False(t, ok)
}

func TestGuard_DeniedCarriesReasonAndRedirect(t *testing.T) {
	src := &staticSource{}
	ev := newGatedEvaluator()
	g := New(src, ev, authz.CapabilityAdmin, Options{Policy: Policy{LoginPath: "/login", LandingPath: "/home"}})
	defer g.Unmount()
	require.NoError(t, g.Mount(context.Background()))

	ev.waitStarted(t, authz.CapabilityAdmin)
	ev.release(authz.CapabilityAdmin, denied(authz.CapabilityAdmin, authz.ReasonInsufficientRole))

	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StateDenied, st.State)
	assert.Equal(t, authz.ReasonInsufficientRole, st.Verdict.Reason)

	rd, ok := g.Redirect("/admin")
	require.True(t, ok)
	assert.Equal(t, "/home", rd.Target)
	assert.Equal(t, MessageNoAccess, rd.Message)
}

func TestGuard_LastEvaluationWinsWhenNewerResolvesFirst(t *testing.T) {
	rec := &verdictRecorder{}
	src := &staticSource{}
	ev := newGatedEvaluator()
	g := New(src, ev, authz.CapabilityAuthenticated, Options{Metrics: rec})
	defer g.Unmount()

	require.NoError(t, g.Mount(context.Background()))
	ev.waitStarted(t, authz.CapabilityAuthenticated)

	require.NoError(t, g.SetCapability(authz.CapabilityAdmin))
	ev.waitStarted(t, authz.CapabilityAdmin)

	// B (attempt 2) resolves first with Denied.
	ev.release(authz.CapabilityAdmin, denied(authz.CapabilityAdmin, authz.ReasonInsufficientRole))
	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, StateDenied, st.State)

	// A (attempt 1) lands late with Allowed and must be discarded.
	ev.release(authz.CapabilityAuthenticated, allowed(authz.CapabilityAuthenticated))
	g.inflight.Wait()

	final := g.Status()
	assert.Equal(t, StateDenied, final.State)
	assert.Equal(t, uint64(2), final.Attempt)
	assert.Equal(t, authz.CapabilityAdmin, final.Verdict.Capability)

	verdicts, stale := rec.snapshot()
	assert.Equal(t, []string{"admin:insufficient_role"}, verdicts)
	assert.Equal(t, 1, stale)
}

func TestGuard_LastEvaluationWinsWhenOlderResolvesFirst(t *testing.T) {
	src := &staticSource{}
	ev := newGatedEvaluator()
	g := New(src, ev, authz.CapabilityAuthenticated, Options{})
	defer g.Unmount()

	require.NoError(t, g.Mount(context.Background()))
	ev.waitStarted(t, authz.CapabilityAuthenticated)
	require.NoError(t, g.SetCapability(authz.CapabilityAdmin))
	ev.waitStarted(t, authz.CapabilityAdmin)

	ev.release(authz.CapabilityAuthenticated, allowed(authz.CapabilityAuthenticated))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePending, g.Status().State, "stale Allowed must not resolve the guard")

	ev.release(authz.CapabilityAdmin, denied(authz.CapabilityAdmin, authz.ReasonNoSession))
	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StateDenied, st.State)
	assert.Equal(t, authz.ReasonNoSession, st.Verdict.Reason)
	g.inflight.Wait()
}

func TestGuard_SessionChangeReentersPending(t *testing.T) {
	src := &staticSource{}
	ev := newGatedEvaluator()
	g := New(src, ev, authz.CapabilityAuthenticated, Options{})
	defer g.Unmount()

	require.NoError(t, g.Mount(context.Background()))
	ev.waitStarted(t, authz.CapabilityAuthenticated)
	ev.release(authz.CapabilityAuthenticated, allowed(authz.CapabilityAuthenticated))
	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, StateAllowed, st.State)

	src.emit(session.Event{Type: session.EventDestroyed, SessionID: "s"})
	assert.Equal(t, StatePending, g.Status().State)

	ev.waitStarted(t, authz.CapabilityAuthenticated)
	ev.release(authz.CapabilityAuthenticated, denied(authz.CapabilityAuthenticated, authz.ReasonNoSession))
	st, err = g.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StateDenied, st.State)
	assert.Equal(t, uint64(2), st.Attempt)
}

func TestGuard_InvalidationWithRealStore(t *testing.T) {
	p := newListenerProvider(&session.Session{
		ID: "sess-1", SubjectID: "user-1",
		Claims:    map[string]any{"role": "admin"},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	store := session.NewStore(p, "tok")
	defer store.Close()

	g := New(store, authz.NewEvaluator(nil), authz.CapabilityAdmin, Options{})
	defer g.Unmount()
	require.NoError(t, g.Mount(context.Background()))

	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, StateAllowed, st.State)

	p.signOutElsewhere("sess-1")

	st, err = g.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StateDenied, st.State)
	assert.Equal(t, authz.ReasonNoSession, st.Verdict.Reason)

	rd, ok := g.Redirect("/admin")
	require.True(t, ok)
	assert.Equal(t, "/login?from=%2Fadmin", rd.Target)
	assert.Equal(t, MessageSignIn, rd.Message)
	g.inflight.Wait()
}

func TestGuard_SessionExpiryDeniesMountedGuard(t *testing.T) {
	p := newListenerProvider(&session.Session{
		ID: "sess-1", SubjectID: "user-1",
		Claims:    map[string]any{"role": "admin"},
		ExpiresAt: time.Now().Add(150 * time.Millisecond),
	})
	store := session.NewStore(p, "tok")
	defer store.Close()

	g := New(store, authz.NewEvaluator(nil), authz.CapabilityAdmin, Options{})
	defer g.Unmount()
	require.NoError(t, g.Mount(context.Background()))

	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, StateAllowed, st.State)

	require.Eventually(t, func() bool {
		return g.Status().State == StateDenied
	}, 2*time.Second, 10*time.Millisecond)

	st = g.Status()
	assert.Equal(t, authz.ReasonNoSession, st.Verdict.Reason)
	assert.Greater(t, st.Attempt, uint64(1))
	g.inflight.Wait()
}

func TestGuard_UnmountDiscardsPendingResult(t *testing.T) {
	rec := &verdictRecorder{}
	src := &staticSource{}
	ev := newGatedEvaluator()
	g := New(src, ev, authz.CapabilityAdmin, Options{Metrics: rec})

	require.NoError(t, g.Mount(context.Background()))
	ev.waitStarted(t, authz.CapabilityAdmin)

	g.Unmount()
	g.Unmount()
	g.inflight.Wait()

	assert.Equal(t, StatePending, g.Status().State)
	verdicts, _ := rec.snapshot()
	assert.Empty(t, verdicts)
	assert.Equal(t, 1, src.unsubs)

	_, err := g.Wait(context.Background())
	assert.ErrorIs(t, err, ErrUnmounted)
	assert.ErrorIs(t, g.Mount(context.Background()), ErrUnmounted)
	assert.ErrorIs(t, g.SetCapability(authz.CapabilityAuthenticated), ErrUnmounted)

	// Late events after unmount are ignored.
	src.emit(session.Event{Type: session.EventRefreshed})
	assert.Equal(t, StatePending, g.Status().State)
}

func TestGuard_MountTwice(t *testing.T) {
	src := &staticSource{snap: session.None()}
	g := New(src, authz.NewEvaluator(nil), authz.CapabilityAuthenticated, Options{})
	defer g.Unmount()

	require.NoError(t, g.Mount(context.Background()))
	assert.ErrorIs(t, g.Mount(context.Background()), ErrAlreadyMounted)
	_, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	g.inflight.Wait()
}

func TestGuard_WaitBeforeMount(t *testing.T) {
	g := New(&staticSource{}, authz.NewEvaluator(nil), authz.CapabilityAuthenticated, Options{})
	defer g.Unmount()

	_, err := g.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestGuard_SameCapabilityIsNoop(t *testing.T) {
	src := &staticSource{snap: session.None()}
	g := New(src, authz.NewEvaluator(nil), authz.CapabilityAuthenticated, Options{})
	defer g.Unmount()
	require.NoError(t, g.Mount(context.Background()))
	st, err := g.Wait(waitCtx(t))
	require.NoError(t, err)

	require.NoError(t, g.SetCapability(authz.CapabilityAuthenticated))
	assert.Equal(t, st, g.Status())
	g.inflight.Wait()
}

func TestGuard_WatchHoldsLatestStatus(t *testing.T) {
	src := &staticSource{snap: session.None()}
	g := New(src, authz.NewEvaluator(nil), authz.CapabilityAuthenticated, Options{})
	defer g.Unmount()
	require.NoError(t, g.Mount(context.Background()))

	_, err := g.Wait(waitCtx(t))
	require.NoError(t, err)
	g.inflight.Wait()

	select {
	case st := <-g.Watch():
		assert.Equal(t, StateDenied, st.State)
	default:
		t.Fatal("expected a status on the watch channel")
	}
}

func TestCheck_UnknownSessionDenied(t *testing.T) {
	src := &staticSource{snap: session.Unknown(errors.New("provider down"))}

	st, err := Check(waitCtx(t), src, authz.NewEvaluator(nil), authz.CapabilityAuthenticated, Options{})
	require.NoError(t, err)
	assert.Equal(t, StateDenied, st.State)
	assert.Equal(t, authz.ReasonRoleLookupFailed, st.Verdict.Reason)
	assert.Equal(t, 1, src.unsubs)
}

func TestCheck_ContextCanceled(t *testing.T) {
	ev := newGatedEvaluator()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Check(ctx, &staticSource{}, ev, authz.CapabilityAdmin, Options{})
		done <- err
	}()
	ev.waitStarted(t, authz.CapabilityAdmin)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Check did not return after cancel")
	}
}

// listenerProvider is a session.Provider whose sessions can be destroyed from "elsewhere".
type listenerProvider struct {
	mu        sync.Mutex
	sess      *session.Session
	listeners []func(session.Event)
}

func newListenerProvider(s *session.Session) *listenerProvider {
	return &listenerProvider{sess: s}
}

func (p *listenerProvider) GetSession(ctx context.Context, token string) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess, nil
}

func (p *listenerProvider) SignOut(ctx context.Context, token string) error {
	p.signOutElsewhere("")
	return nil
}

func (p *listenerProvider) OnSessionChange(fn func(session.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
	return func() {}
}

func (p *listenerProvider) signOutElsewhere(id string) {
	p.mu.Lock()
	p.sess = nil
	fns := append([]func(session.Event){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(session.Event{Type: session.EventDestroyed, SessionID: id})
	}
}
