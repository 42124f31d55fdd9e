package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lockboxhq/grantstore/internal/auth/domain"
	"github.com/lockboxhq/grantstore/internal/auth/store"
)

// Introspection is the engine's verdict on one token (RFC 7662). When
// Active is false only the fields resolved before the failing check are
// populated; a token unknown to the store yields the zero value with
// Active false.
type Introspection struct {
	Active bool

	ClientID  string
	TokenType string
	Scopes    []string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
	NotBefore *time.Time
	Subject   string
	Audience  []string
	Issuer    string
	JTI       string
}

// Introspector evaluates whether a stored token is currently valid and
// projects its claim set. It decides validity only; which slot kinds a
// caller is willing to introspect, and whether the introspecting client
// may see this token at all, are caller-level policy.
type Introspector struct {
	// Clients resolves the authorization's registered client so the
	// result can carry the public client_id.
	Clients store.ClientDirectory

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Introspect evaluates tokenValue against the record the store resolved
// for it. A nil record means the token is unknown: inactive, no claims.
// The introspecting client id is accepted for caller-level ownership
// policy and is not enforced here.
func (s *Introspector) Introspect(ctx context.Context, tokenValue, introspectingClientID string, auth *domain.Authorization) (Introspection, error) {
	if auth == nil {
		return Introspection{}, nil
	}

	_, token, ok := auth.Find(tokenValue)
	if !ok {
		return Introspection{}, nil
	}

	result := Introspection{
		IssuedAt:  issuedAt(token),
		ExpiresAt: token.ExpiresAt,
	}
	if auth.AccessToken != nil && &auth.AccessToken.Token == token {
		result.TokenType = auth.AccessToken.TokenType
		result.Scopes = auth.AccessToken.Scopes
	}

	client, err := s.Clients.FindClientByID(ctx, auth.RegisteredClientID)
	if err != nil {
		return Introspection{}, err
	}
	if client != nil {
		result.ClientID = client.ClientID
	}

	now := s.now()

	if token.Invalidated {
		return result, nil
	}
	if token.ExpiredAt(now) {
		return result, nil
	}

	// Claims come from the slot itself when it carries a bundle, or
	// from the co-resident ID token's richer claim set for the same
	// grant.
	claims := token.Claims()
	if claims == nil && auth.IDToken != nil {
		claims = auth.IDToken.Claims()
	}

	if claims != nil {
		mergeClaims(&result, jwt.MapClaims(claims))
	}
	if result.NotBefore != nil && result.NotBefore.After(now) {
		return result, nil
	}

	result.Active = true
	return result, nil
}

func (s *Introspector) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func issuedAt(t *domain.Token) *time.Time {
	if t.IssuedAt.IsZero() {
		return nil
	}
	iat := t.IssuedAt
	return &iat
}

// mergeClaims copies the standard claims out of the bundle. Individual
// malformed claims are skipped rather than failing the whole result,
// consistent with the lenient metadata policy on store reads.
func mergeClaims(result *Introspection, claims jwt.MapClaims) {
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil {
		t := nbf.Time
		result.NotBefore = &t
	}
	if sub, err := claims.GetSubject(); err == nil {
		result.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		result.Issuer = iss
	}
	if aud, err := claims.GetAudience(); err == nil && len(aud) > 0 {
		result.Audience = []string(aud)
	}
	if jti, ok := claims["jti"].(string); ok {
		result.JTI = jti
	}
}
