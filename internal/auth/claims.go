package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Subject is the user id and SessionID ties the token to a stored session record.
// Refresh tokens carry neither Email nor AppMetadata.
type Claims struct {
	jwt.RegisteredClaims

	SessionID   string         `json:"sid"`
	Email       string         `json:"email,omitempty"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
	TokenType   TokenType      `json:"token_type"`
}

// Map flattens the claims into the generic shape consumed by authz.
func (c Claims) Map() map[string]any {
	m := map[string]any{
		"sub":        c.Subject,
		"sid":        c.SessionID,
		"token_type": string(c.TokenType),
	}
	if c.Email != "" {
		m["email"] = c.Email
	}
	if c.AppMetadata != nil {
		meta := make(map[string]any, len(c.AppMetadata))
		for k, v := range c.AppMetadata {
			meta[k] = v
		}
		m["app_metadata"] = meta
	}
	return m
}
