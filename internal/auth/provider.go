package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"affiliate-blog/internal/realtime"
	"affiliate-blog/internal/session"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Provider is the authentication provider: it owns credentials, signed tokens
// and server-side session records, and announces session changes on the
// realtime sessions topic.
type Provider struct {
	tokens   *Manager
	users    UserRepository
	sessions SessionRepository
	broker   realtime.Broker
	log      *slog.Logger
	clock    func() time.Time
	cost     int
}

type ProviderOption func(*Provider)

func WithProviderClock(fn func() time.Time) ProviderOption {
	return func(p *Provider) {
		if fn != nil {
			p.clock = fn
		}
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ProviderOption {
	return func(p *Provider) { p.cost = cost }
}

func NewProvider(tokens *Manager, users UserRepository, sessions SessionRepository, broker realtime.Broker, log *slog.Logger, opts ...ProviderOption) *Provider {
	p := &Provider{
		tokens:   tokens,
		users:    users,
		sessions: sessions,
		broker:   broker,
		log:      log,
		clock:    time.Now,
		cost:     bcrypt.DefaultCost,
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	}
	return email, nil
}

// SignUp creates an account. appMetadata is trusted input and must only come
// from operators (CLI, seed), never from the public API.
func (p *Provider) SignUp(ctx context.Context, email, password string, appMetadata map[string]any) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return User{}, fmt.Errorf("auth: hash password: %w", err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		AppMetadata:  appMetadata,
		CreatedAt:    p.clock().UTC(),
	}
	if err := p.users.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// SignIn checks credentials and opens a new session.
// Unknown email and wrong password are indistinguishable to the caller.
func (p *Provider) SignIn(ctx context.Context, email, password string) (TokenPair, *session.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	u, err := p.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	now := p.clock().UTC()
	rec := SessionRecord{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		CreatedAt:   now,
		RefreshedAt: now,
		ExpiresAt:   now.Add(p.tokens.RefreshTTL()),
	}
	if err := p.sessions.Put(ctx, rec, p.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, nil, fmt.Errorf("auth: store session: %w", err)
	}
	pair, err := p.tokens.IssuePair(now, u, rec.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}

	p.publish(ctx, session.Event{Type: session.EventCreated, SessionID: rec.ID, SubjectID: u.ID, At: now})
	return pair, p.sessionFor(u, rec.ID, pair), nil
}

// Refresh rotates the token pair of a live session and re-reads app_metadata.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	now := p.clock().UTC()
	claims, err := p.tokens.Verify(refreshToken, TokenTypeRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}
	rec, err := p.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return TokenPair{}, fmt.Errorf("%w: session ended", ErrInvalidToken)
	}
	if err != nil {
		return TokenPair{}, err
	}
	if rec.UserID != claims.Subject {
		return TokenPair{}, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	u, err := p.users.GetByID(ctx, rec.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return TokenPair{}, fmt.Errorf("%w: user removed", ErrInvalidToken)
	}
	if err != nil {
		return TokenPair{}, err
	}

	rec.RefreshedAt = now
	rec.ExpiresAt = now.Add(p.tokens.RefreshTTL())
	if err := p.sessions.Put(ctx, rec, p.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, fmt.Errorf("auth: store session: %w", err)
	}
	pair, err := p.tokens.IssuePair(now, u, rec.ID)
	if err != nil {
		return TokenPair{}, err
	}

	p.publish(ctx, session.Event{Type: session.EventRefreshed, SessionID: rec.ID, SubjectID: u.ID, At: now})
	return pair, nil
}

// GetSession resolves an access token. Invalid, expired or ended sessions are
// (nil, nil); only repository failures are errors.
func (p *Provider) GetSession(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := p.tokens.Verify(token, TokenTypeAccess, p.clock())
	if err != nil {
		return nil, nil
	}
	rec, err := p.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	if rec.UserID != claims.Subject {
		return nil, nil
	}
	return &session.Session{
		ID:        claims.SessionID,
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Claims:    claims.Map(),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignOut ends the session named by token. A token that never identified a
// session is not an error.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := p.tokens.Identify(token)
	if err != nil {
		return nil
	}
	if err := p.sessions.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	p.publish(ctx, session.Event{
		Type:      session.EventDestroyed,
		SessionID: claims.SessionID,
		SubjectID: claims.Subject,
		At:        p.clock().UTC(),
	})
	return nil
}

// OnSessionChange delivers session events from every API instance.
func (p *Provider) OnSessionChange(fn func(session.Event)) func() {
	if p.broker == nil {
		return func() {}
	}
	return p.broker.Subscribe(realtime.TopicSessions, func(m realtime.Message) {
		e, err := realtime.Decode[session.Event](m)
		if err != nil {
			p.log.Warn("dropping malformed session event", "err", err)
			return
		}
		fn(e)
	})
}

// CountUsers backs the dashboard statistics.
func (p *Provider) CountUsers(ctx context.Context) (int, error) {
	return p.users.Count(ctx)
}

func (p *Provider) sessionFor(u User, sessionID string, pair TokenPair) *session.Session {
	claims := Claims{SessionID: sessionID, Email: u.Email, AppMetadata: u.AppMetadata, TokenType: TokenTypeAccess}
	claims.Subject = u.ID
	return &session.Session{
		ID:        sessionID,
		SubjectID: u.ID,
		Email:     u.Email,
		Claims:    claims.Map(),
		ExpiresAt: pair.AccessExpiresAt,
	}
}

func (p *Provider) publish(ctx context.Context, e session.Event) {
	if p.broker == nil {
		return
	}
	if err := p.broker.Publish(ctx, realtime.TopicSessions, e); err != nil {
		p.log.Warn("session event publish failed", "type", string(e.Type), "session_id", e.SessionID, "err", err)
	}
}

var _ session.Provider = (*Provider)(nil)
