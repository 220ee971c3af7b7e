package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNoProvider = errors.New("session: provider not configured")

// Store is the single owner of the current session for one browser context (one token).
//
// Invariants:
//   - Only the store writes the cached snapshot; consumers read through Current.
//   - Unknown snapshots are never cached, so the next lookup retries the provider.
//   - A relevant provider event drops the cache before listeners run.
//   - A cached session is dropped at its ExpiresAt and listeners get EventExpired.
type Store struct {
	provider Provider
	token    string
	clock    func() time.Time

	mu         sync.Mutex
	cached     *Snapshot
	generation uint64
	sessionID  string
	subjectID  string
	listeners  map[uint64]func(Event)
	nextID     uint64
	closed     bool
	detach     func()
	expiry     *time.Timer
}

type StoreOption func(*Store)

// WithClock sets the clock used to schedule expiry. The timer itself runs on
// wall time for the computed remaining lifetime.
func WithClock(fn func() time.Time) StoreOption {
	return func(s *Store) { s.clock = fn }
}

// NewStore binds a store to token and subscribes to provider changes until Close.
func NewStore(p Provider, token string, opts ...StoreOption) *Store {
	s := &Store{
		provider:  p,
		token:     token,
		clock:     time.Now,
		listeners: make(map[uint64]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if p != nil {
		detach := p.OnSessionChange(s.handle)
		s.mu.Lock()
		s.detach = detach
		s.mu.Unlock()
	}
	return s
}

// Current returns the cached snapshot or performs one provider round trip.
// Absence of a session is KindNone, never an error; provider failure is KindUnknown.
func (s *Store) Current(ctx context.Context) Snapshot {
	s.mu.Lock()
	if s.cached != nil {
		snap := *s.cached
		s.mu.Unlock()
		return snap
	}
	gen := s.generation
	s.mu.Unlock()

	if s.provider == nil {
		return Unknown(ErrNoProvider)
	}
	sess, err := s.provider.GetSession(ctx, s.token)
	if err != nil {
		return Unknown(err)
	}
	snap := Present(sess)

	s.mu.Lock()
	// An event raced with the lookup; hand out the answer but do not cache it.
	if gen == s.generation && !s.closed {
		s.cached = &snap
		if sess != nil {
			s.sessionID = sess.ID
			s.subjectID = sess.SubjectID
		}
		s.armExpiryLocked(sess)
	}
	s.mu.Unlock()
	return snap
}

// Subscribe registers fn for every relevant provider event, including redundant ones.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if !s.closed {
		s.listeners[id] = fn
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SignOut ends the session at the provider and clears the local cache.
// The cache is cleared even when the provider call fails.
func (s *Store) SignOut(ctx context.Context) error {
	var err error
	if s.provider == nil {
		err = ErrNoProvider
	} else {
		err = s.provider.SignOut(ctx, s.token)
	}

	s.mu.Lock()
	none := None()
	s.cached = &none
	s.generation++
	s.stopExpiryLocked()
	s.mu.Unlock()
	return err
}

// Close detaches from the provider and drops all listeners. Safe to call twice.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopExpiryLocked()
	detach := s.detach
	s.detach = nil
	s.listeners = map[uint64]func(Event){}
	s.mu.Unlock()

	if detach != nil {
		detach()
	}
}

func (s *Store) handle(e Event) {
	s.mu.Lock()
	if s.closed || !s.relevantLocked(e) {
		s.mu.Unlock()
		return
	}
	s.invalidateLocked()
	fns := s.listenersLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// armExpiryLocked schedules the expiry of the session just cached. A session
// already past ExpiresAt gets no timer; evaluation treats it as absent.
func (s *Store) armExpiryLocked(sess *Session) {
	s.stopExpiryLocked()
	if sess == nil || sess.ExpiresAt.IsZero() {
		return
	}
	d := sess.ExpiresAt.Sub(s.clock())
	if d <= 0 {
		return
	}
	gen := s.generation
	s.expiry = time.AfterFunc(d, func() { s.expire(gen) })
}

func (s *Store) stopExpiryLocked() {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

// expire fires for the snapshot cached at generation gen; anything newer wins.
func (s *Store) expire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	e := Event{Type: EventExpired, SessionID: s.sessionID, SubjectID: s.subjectID, At: s.clock()}
	s.expiry = nil
	s.invalidateLocked()
	fns := s.listenersLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (s *Store) invalidateLocked() {
	s.cached = nil
	s.generation++
	s.stopExpiryLocked()
}

// listenersLocked returns listeners in subscription order.
func (s *Store) listenersLocked() []func(Event) {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	return fns
}

// relevantLocked: with no token nothing can change; with no resolved identity
// every event might concern us.
func (s *Store) relevantLocked(e Event) bool {
	if s.token == "" {
		return false
	}
	if s.sessionID == "" && s.subjectID == "" {
		return true
	}
	if e.SessionID != "" && e.SessionID == s.sessionID {
		return true
	}
	return e.SubjectID != "" && e.SubjectID == s.subjectID
}
