package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/lockboxhq/grantstore/pkg/claimx"
	"github.com/lockboxhq/grantstore/pkg/idx"
)

// TokenKind tags the slot a token occupies within an authorization. The
// zero value means "no hint" in lookups; TokenKindState is a pseudo-kind
// that only ever appears as a lookup hint, never as a stored slot.
type TokenKind string

const (
	TokenKindState             TokenKind = "state"
	TokenKindAuthorizationCode TokenKind = "authorization_code"
	TokenKindAccessToken       TokenKind = "access_token"
	TokenKindIDToken           TokenKind = "id_token"
	TokenKindRefreshToken      TokenKind = "refresh_token"
)

// AttrState is the attribute mirrored into a dedicated column so clients
// can probe by state value alone.
const AttrState = "state"

// TokenTypeBearer is the only access token type issued today.
const TokenTypeBearer = "Bearer"

// Common grant types. GrantType is an open-ended string, not a closed
// enum, so extension grant types pass through untouched.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// Token is one issued credential within an authorization. Value is
// binary-safe and persisted as a byte sequence. A nil ExpiresAt means
// the token never expires (refresh tokens only; codes and access tokens
// always carry one).
//
// Invalidated marks the token logically dead without deleting it: an
// invalidated token stays queryable so introspection can report it as
// inactive rather than unknown.
//
// Metadata is normalized through persistence: the stored form does not
// distinguish an empty map from nil, and loads return nil for both.
type Token struct {
	Value       string
	IssuedAt    time.Time
	ExpiresAt   *time.Time
	Metadata    map[string]any
	Invalidated bool
}

// ExpiredAt reports whether the token's expiry has passed at now. Tokens
// without an expiry never expire.
func (t *Token) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Claims returns the claim set carried under the reserved metadata key,
// or nil when the token has none.
func (t *Token) Claims() map[string]any {
	if t.Metadata == nil {
		return nil
	}
	claims, ok := t.Metadata[claimx.MetadataClaims].(map[string]any)
	if !ok {
		return nil
	}
	return claims
}

// AccessToken carries the bearer type and granted scopes alongside the
// core token fields.
type AccessToken struct {
	Token

	TokenType string
	Scopes    []string
}

// Authorization is the aggregate for one OAuth2 grant: who it was issued
// to, request-scoped attributes, and up to four named token slots. The
// registered client is referenced by id, not embedded; stores resolve it
// through a ClientDirectory on load.
//
// Attributes follows the same persistence normalization as
// Token.Metadata: an empty map loads back as nil.
type Authorization struct {
	ID                 string
	RegisteredClientID string
	PrincipalName      string
	GrantType          string
	Attributes         map[string]any

	AuthorizationCode *Token
	AccessToken       *AccessToken
	IDToken           *Token
	RefreshToken      *Token
}

// NewAuthorization starts an authorization with a fresh ULID id and an
// empty attribute map. Token slots are filled in by the issuing flow as
// the grant progresses.
func NewAuthorization(registeredClientID, principalName, grantType string) Authorization {
	return Authorization{
		ID:                 idx.New().String(),
		RegisteredClientID: registeredClientID,
		PrincipalName:      principalName,
		GrantType:          grantType,
		Attributes:         map[string]any{},
	}
}

// State returns the mirrored state attribute, or "" when unset.
func (a *Authorization) State() string {
	if a.Attributes == nil {
		return ""
	}
	s, _ := a.Attributes[AttrState].(string)
	return s
}

// Find resolves a bare token value to the slot holding it. This is the
// single code path for ambiguous token lookup over the in-memory model;
// keeping it in one dispatch guarantees exact-match semantics stay
// centralized. For the access token slot the embedded core Token is
// returned, so mutations through the pointer land on the aggregate.
func (a *Authorization) Find(value string) (TokenKind, *Token, bool) {
	if a.AuthorizationCode != nil && a.AuthorizationCode.Value == value {
		return TokenKindAuthorizationCode, a.AuthorizationCode, true
	}
	if a.AccessToken != nil && a.AccessToken.Value == value {
		return TokenKindAccessToken, &a.AccessToken.Token, true
	}
	if a.IDToken != nil && a.IDToken.Value == value {
		return TokenKindIDToken, a.IDToken, true
	}
	if a.RefreshToken != nil && a.RefreshToken.Value == value {
		return TokenKindRefreshToken, a.RefreshToken, true
	}
	return "", nil, false
}

// Validate checks the structural invariants before any store I/O.
func (a *Authorization) Validate() error {
	if a.ID == "" {
		return errors.New("authorization id cannot be empty")
	}
	if a.RegisteredClientID == "" {
		return errors.New("registered client id cannot be empty")
	}
	if err := validateToken("authorization code", a.AuthorizationCode, true); err != nil {
		return err
	}
	if a.AccessToken != nil {
		if err := validateToken("access token", &a.AccessToken.Token, true); err != nil {
			return err
		}
	}
	if err := validateToken("id token", a.IDToken, false); err != nil {
		return err
	}
	if err := validateToken("refresh token", a.RefreshToken, false); err != nil {
		return err
	}
	return nil
}

func validateToken(slot string, t *Token, expiryRequired bool) error {
	if t == nil {
		return nil
	}
	if t.Value == "" {
		return fmt.Errorf("%s value cannot be empty", slot)
	}
	if t.IssuedAt.IsZero() {
		return fmt.Errorf("%s requires an issuance time", slot)
	}
	if expiryRequired && t.ExpiresAt == nil {
		return fmt.Errorf("%s requires an expiry", slot)
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(t.IssuedAt) {
		return fmt.Errorf("%s expires before it was issued", slot)
	}
	return nil
}

// Clone deep-copies the authorization so callers can hand records across
// goroutine or store boundaries without aliasing the attribute and
// metadata maps.
func (a Authorization) Clone() Authorization {
	out := a
	out.Attributes = cloneMap(a.Attributes)
	out.AuthorizationCode = cloneToken(a.AuthorizationCode)
	out.IDToken = cloneToken(a.IDToken)
	out.RefreshToken = cloneToken(a.RefreshToken)
	if a.AccessToken != nil {
		at := AccessToken{
			Token:     *cloneToken(&a.AccessToken.Token),
			TokenType: a.AccessToken.TokenType,
		}
		if a.AccessToken.Scopes != nil {
			at.Scopes = append([]string(nil), a.AccessToken.Scopes...)
		}
		out.AccessToken = &at
	}
	return out
}

func cloneToken(t *Token) *Token {
	if t == nil {
		return nil
	}
	out := *t
	out.Metadata = cloneMap(t.Metadata)
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		out.ExpiresAt = &exp
	}
	return &out
}

// cloneMap copies one level deep plus nested maps and slices, which is
// as deep as JSON-shaped claim data nests after a decode.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
