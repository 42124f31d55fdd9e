package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lockboxhq/grantstore/internal/auth/domain"
	"github.com/lockboxhq/grantstore/internal/auth/store"
	"github.com/lockboxhq/grantstore/pkg/claimx"
)

// The aggregate is flattened into one wide row: four physical columns
// per token slot (value, issued_at, expires_at, metadata) plus the type
// and scopes columns that only access tokens carry. Flattening and
// unflattening happen here and nowhere else; the in-memory model stays
// variant-shaped.
const authorizationColumns = `id, registered_client_id, principal_name, authorization_grant_type, attributes, state,
	authorization_code_value, authorization_code_issued_at, authorization_code_expires_at, authorization_code_metadata,
	access_token_value, access_token_issued_at, access_token_expires_at, access_token_metadata, access_token_type, access_token_scopes,
	oidc_id_token_value, oidc_id_token_issued_at, oidc_id_token_expires_at, oidc_id_token_metadata,
	refresh_token_value, refresh_token_issued_at, refresh_token_expires_at, refresh_token_metadata`

const (
	selectAuthorizationSQL = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations WHERE `

	insertAuthorizationSQL = `INSERT INTO oauth2_authorizations (` + authorizationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateAuthorizationSQL = `UPDATE oauth2_authorizations SET
	registered_client_id = ?, principal_name = ?, authorization_grant_type = ?, attributes = ?, state = ?,
	authorization_code_value = ?, authorization_code_issued_at = ?, authorization_code_expires_at = ?, authorization_code_metadata = ?,
	access_token_value = ?, access_token_issued_at = ?, access_token_expires_at = ?, access_token_metadata = ?, access_token_type = ?, access_token_scopes = ?,
	oidc_id_token_value = ?, oidc_id_token_issued_at = ?, oidc_id_token_expires_at = ?, oidc_id_token_metadata = ?,
	refresh_token_value = ?, refresh_token_issued_at = ?, refresh_token_expires_at = ?, refresh_token_metadata = ?
	WHERE id = ?`

	removeAuthorizationSQL = `DELETE FROM oauth2_authorizations WHERE id = ?`

	existsAuthorizationSQL = `SELECT EXISTS (SELECT 1 FROM oauth2_authorizations WHERE id = ?)`

	// A bare token value can live in any of four independent fields; the
	// ambiguous lookup is a logical OR across them in a single query so
	// the exact-match semantics stay in one place.
	unknownTokenFilter = `state = ? OR authorization_code_value = ? OR access_token_value = ? OR refresh_token_value = ?`

	// Purge keeps rows alive while any slot can still become relevant:
	// a refresh token without an expiry pins its row forever, and rows
	// with no tokens at all are the issuing flow's to clean up.
	deleteExpiredSQL = `DELETE FROM oauth2_authorizations WHERE
	(authorization_code_value IS NOT NULL OR access_token_value IS NOT NULL OR oidc_id_token_value IS NOT NULL OR refresh_token_value IS NOT NULL)
	AND (authorization_code_value IS NULL OR authorization_code_expires_at <= ?)
	AND (access_token_value IS NULL OR access_token_expires_at <= ?)
	AND (oidc_id_token_value IS NULL OR oidc_id_token_expires_at <= ?)
	AND (refresh_token_value IS NULL OR (refresh_token_expires_at IS NOT NULL AND refresh_token_expires_at <= ?))`
)

type authorizationsRepo struct {
	db      *sql.DB
	clients store.ClientDirectory
}

func (r *authorizationsRepo) Save(ctx context.Context, a domain.Authorization) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrPrecondition, err)
	}

	args, err := flattenAuthorization(a)
	if err != nil {
		return err
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, existsAuthorizationSQL, a.ID).Scan(&exists); err != nil {
		return err
	}

	if !exists {
		_, err = r.db.ExecContext(ctx, insertAuthorizationSQL, args...)
		return err
	}

	// Full overwrite: rotate the id from the front of the parameter
	// list to the back for the WHERE clause.
	updateArgs := append(args[1:], args[0])
	_, err = r.db.ExecContext(ctx, updateAuthorizationSQL, updateArgs...)
	return err
}

func (r *authorizationsRepo) Remove(ctx context.Context, a domain.Authorization) error {
	if a.ID == "" {
		return fmt.Errorf("%w: authorization id cannot be empty", store.ErrPrecondition)
	}
	_, err := r.db.ExecContext(ctx, removeAuthorizationSQL, a.ID)
	return err
}

func (r *authorizationsRepo) FindByID(ctx context.Context, id string) (*domain.Authorization, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: authorization id cannot be empty", store.ErrPrecondition)
	}
	return r.findBy(ctx, `id = ?`, id)
}

func (r *authorizationsRepo) FindByToken(ctx context.Context, token string, hint domain.TokenKind) (*domain.Authorization, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", store.ErrPrecondition)
	}

	switch hint {
	case "":
		blob := []byte(token)
		return r.findBy(ctx, unknownTokenFilter, token, blob, blob, blob)
	case domain.TokenKindState:
		return r.findBy(ctx, `state = ?`, token)
	case domain.TokenKindAuthorizationCode:
		return r.findBy(ctx, `authorization_code_value = ?`, []byte(token))
	case domain.TokenKindAccessToken:
		return r.findBy(ctx, `access_token_value = ?`, []byte(token))
	case domain.TokenKindRefreshToken:
		return r.findBy(ctx, `refresh_token_value = ?`, []byte(token))
	default:
		// ID tokens are only reachable via their owning record, and
		// unknown hints match nothing.
		return nil, nil
	}
}

func (r *authorizationsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UTC()
	res, err := r.db.ExecContext(ctx, deleteExpiredSQL, cutoff, cutoff, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *authorizationsRepo) findBy(ctx context.Context, filter string, args ...any) (*domain.Authorization, error) {
	row := r.db.QueryRowContext(ctx, selectAuthorizationSQL+filter, args...)
	a, err := r.scanAuthorization(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *authorizationsRepo) scanAuthorization(ctx context.Context, row *sql.Row) (*domain.Authorization, error) {
	var (
		id, registeredClientID, principalName, grantType string
		attributes, state                                sql.NullString

		codeValue               []byte
		codeIssued, codeExpires sql.NullTime
		codeMetadata            sql.NullString

		accessValue                 []byte
		accessIssued, accessExpires sql.NullTime
		accessMetadata              sql.NullString
		accessType, accessScopes    sql.NullString

		idTokenValue                  []byte
		idTokenIssued, idTokenExpires sql.NullTime
		idTokenMetadata               sql.NullString

		refreshValue                  []byte
		refreshIssued, refreshExpires sql.NullTime
		refreshMetadata               sql.NullString
	)

	err := row.Scan(
		&id, &registeredClientID, &principalName, &grantType, &attributes, &state,
		&codeValue, &codeIssued, &codeExpires, &codeMetadata,
		&accessValue, &accessIssued, &accessExpires, &accessMetadata, &accessType, &accessScopes,
		&idTokenValue, &idTokenIssued, &idTokenExpires, &idTokenMetadata,
		&refreshValue, &refreshIssued, &refreshExpires, &refreshMetadata,
	)
	if err != nil {
		return nil, err
	}

	// Fail-fast on a dangling client reference. This is the one strict
	// check during a load; attribute and metadata decoding stay lenient.
	client, err := r.clients.FindClientByID(ctx, registeredClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: registered client %q referenced by authorization %q was not found",
			store.ErrDataIntegrity, registeredClientID, id)
	}

	attrs := claimx.DecodeLenient(mapNullString(attributes))
	if state.Valid && state.String != "" {
		attrs[domain.AttrState] = state.String
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	a := &domain.Authorization{
		ID:                 id,
		RegisteredClientID: registeredClientID,
		PrincipalName:      principalName,
		GrantType:          grantType,
		Attributes:         attrs,
		AuthorizationCode:  unflattenToken(codeValue, codeIssued, codeExpires, codeMetadata),
		IDToken:            unflattenToken(idTokenValue, idTokenIssued, idTokenExpires, idTokenMetadata),
		RefreshToken:       unflattenToken(refreshValue, refreshIssued, refreshExpires, refreshMetadata),
	}

	if core := unflattenToken(accessValue, accessIssued, accessExpires, accessMetadata); core != nil {
		at := &domain.AccessToken{Token: *core}
		if accessType.Valid && strings.EqualFold(accessType.String, domain.TokenTypeBearer) {
			at.TokenType = domain.TokenTypeBearer
		} else {
			at.TokenType = mapNullString(accessType)
		}
		if accessScopes.Valid && accessScopes.String != "" {
			at.Scopes = strings.Split(accessScopes.String, ",")
		}
		a.AccessToken = at
	}

	return a, nil
}

// flattenAuthorization produces the insert parameter list in column
// order, id first.
func flattenAuthorization(a domain.Authorization) ([]any, error) {
	attrs, err := claimx.Encode(a.Attributes)
	if err != nil {
		return nil, &claimx.SerializationError{Field: "attributes", Err: err}
	}

	args := []any{
		a.ID,
		a.RegisteredClientID,
		a.PrincipalName,
		a.GrantType,
		attrs,
		mapStringNull(a.State()),
	}

	code, err := flattenToken("authorization_code_metadata", a.AuthorizationCode)
	if err != nil {
		return nil, err
	}
	args = append(args, code...)

	var accessCore *domain.Token
	var accessType, accessScopes sql.NullString
	if a.AccessToken != nil {
		accessCore = &a.AccessToken.Token
		accessType = mapStringNull(a.AccessToken.TokenType)
		accessScopes = mapStringNull(strings.Join(a.AccessToken.Scopes, ","))
	}
	access, err := flattenToken("access_token_metadata", accessCore)
	if err != nil {
		return nil, err
	}
	args = append(args, access...)
	args = append(args, accessType, accessScopes)

	idToken, err := flattenToken("oidc_id_token_metadata", a.IDToken)
	if err != nil {
		return nil, err
	}
	args = append(args, idToken...)

	refresh, err := flattenToken("refresh_token_metadata", a.RefreshToken)
	if err != nil {
		return nil, err
	}
	args = append(args, refresh...)

	return args, nil
}

// flattenToken maps one slot to its four physical fields. An absent slot
// is all nulls. The in-memory Invalidated flag travels as the reserved
// metadata entry so the stored layout keeps a single metadata column per
// slot.
func flattenToken(metadataField string, t *domain.Token) ([]any, error) {
	if t == nil {
		return []any{[]byte(nil), sql.NullTime{}, sql.NullTime{}, sql.NullString{}}, nil
	}

	meta := make(map[string]any, len(t.Metadata)+1)
	for k, v := range t.Metadata {
		meta[k] = v
	}
	meta[claimx.MetadataInvalidated] = t.Invalidated

	raw, err := claimx.Encode(meta)
	if err != nil {
		return nil, &claimx.SerializationError{Field: metadataField, Err: err}
	}

	return []any{
		[]byte(t.Value),
		mapTimeNull(t.IssuedAt),
		mapOptionalTime(t.ExpiresAt),
		sql.NullString{String: raw, Valid: true},
	}, nil
}

// unflattenToken rebuilds a slot from its four fields; a null value
// column means the slot is absent. The reserved invalidation entry is
// popped back out of the metadata bag into the first-class flag.
func unflattenToken(value []byte, issuedAt, expiresAt sql.NullTime, metadata sql.NullString) *domain.Token {
	if value == nil {
		return nil
	}

	meta := claimx.DecodeLenient(mapNullString(metadata))
	invalidated, _ := meta[claimx.MetadataInvalidated].(bool)
	delete(meta, claimx.MetadataInvalidated)
	if len(meta) == 0 {
		meta = nil
	}

	t := &domain.Token{
		Value:       string(value),
		ExpiresAt:   mapNullTimePtr(expiresAt),
		Metadata:    meta,
		Invalidated: invalidated,
	}
	if issuedAt.Valid {
		t.IssuedAt = issuedAt.Time.UTC()
	}
	if t.ExpiresAt != nil {
		utc := t.ExpiresAt.UTC()
		t.ExpiresAt = &utc
	}
	return t
}
