package auth

import (
	"errors"
	"fmt"
	"time"

	"affiliate-blog/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const clockLeeway = 30 * time.Second

type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token TTLs must be > 0")
	}

	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

/* ===================== ISSUE TOKENS ===================== */

func (m *Manager) IssuePair(now time.Time, u User, sessionID string) (TokenPair, error) {
	if u.ID == "" || sessionID == "" {
		return TokenPair{}, errors.New("user id and session id are required")
	}
	access, accessExp, err := m.issue(now, Claims{
		SessionID:   sessionID,
		Email:       u.Email,
		AppMetadata: u.AppMetadata,
		TokenType:   TokenTypeAccess,
	}, u.ID, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, refreshExp, err := m.issue(now, Claims{
		SessionID: sessionID,
		TokenType: TokenTypeRefresh,
	}, u.ID, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

/* ===================== VERIFY TOKEN ===================== */

// Verify checks signature, time claims, issuer/audience and token type.
// Every failure wraps ErrInvalidToken.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockLeeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	if err := jwt.NewValidator(opts...).Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TokenType != expected {
		return Claims{}, fmt.Errorf("%w: token_type mismatch", ErrInvalidToken)
	}
	return claims, nil
}

// Identify verifies the signature only, so an expired access token can still
// be used to end its session.
func (m *Manager) Identify(tokenString string) (Claims, error) {
	return m.parse(tokenString)
}

func (m *Manager) parse(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: sub missing", ErrInvalidToken)
	}
	if claims.SessionID == "" {
		return Claims{}, fmt.Errorf("%w: sid missing", ErrInvalidToken)
	}
	return claims, nil
}

/* ===================== INTERNAL ISSUE ===================== */

func (m *Manager) issue(now time.Time, claims Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		Audience:  audienceOrNil(m.audience),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
