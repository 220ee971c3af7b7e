package auth

import (
	"context"
	"errors"

	"affiliate-blog/internal/session"
)

type ctxKey int

const ctxSession ctxKey = iota

var errNoSession = errors.New("session not in context")

// WithSession stores the session that passed the request guard.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxSession, s)
}

func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(ctxSession).(*session.Session)
	return s, ok && s != nil
}

func SubjectID(ctx context.Context) (string, error) {
	if s, ok := SessionFrom(ctx); ok && s.SubjectID != "" {
		return s.SubjectID, nil
	}
	return "", errNoSession
}
