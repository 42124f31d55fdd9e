package store

import (
	"context"
	"errors"
	"time"

	"github.com/lockboxhq/grantstore/internal/auth/domain"
)

var (
	// ErrPrecondition reports invalid arguments (empty id, empty token
	// string) detected before any I/O is issued.
	ErrPrecondition = errors.New("store: invalid argument")

	// ErrDataIntegrity reports a stored record referencing a registered
	// client that can no longer be resolved. Fatal for that load; it
	// always propagates to the caller.
	ErrDataIntegrity = errors.New("store: data integrity violation")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// memory) implement this. Lookups signal "no such record" with a nil
// result, never an error: absence is an answer, not a failure.
type Store interface {
	Authorizations() Authorizations

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Authorizations persists the authorization aggregate. Each call is
// individually atomic at the row level; there is no transaction scope
// spanning records, and Save's insert-or-update existence check is not
// guarded against concurrent writers of the same id. Each authorization
// id is owned by one logical flow at a time, so callers racing on the
// same id is a contract violation upstream, not something detected here.
type Authorizations interface {
	// Save upserts the full record keyed by id: the complete desired
	// state is written, not a partial patch.
	Save(ctx context.Context, a domain.Authorization) error

	// Remove deletes by id. Removing an absent record is a no-op.
	Remove(ctx context.Context, a domain.Authorization) error

	// FindByID returns the record, or nil when absent.
	FindByID(ctx context.Context, id string) (*domain.Authorization, error)

	// FindByToken resolves a bare token value to its owning record.
	// With a concrete kind hint only that slot's value is matched;
	// domain.TokenKindState matches the mirrored state attribute; an
	// empty hint ORs across state, code, access and refresh values in a
	// single query. ID tokens are not reachable by value: they are only
	// ever read via their owning record, never presented as a bearer
	// credential.
	FindByToken(ctx context.Context, token string, hint domain.TokenKind) (*domain.Authorization, error)

	// DeleteExpired removes records whose every non-empty slot expired
	// before now. Records with no tokens, or with a refresh token that
	// has no expiry, are never purged. Returns the number of records
	// deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClientDirectory resolves a registered client id to its metadata. It is
// an external collaborator: registration and authentication live
// elsewhere. Absence is a nil result, mirroring the lookup contract
// above.
type ClientDirectory interface {
	FindClientByID(ctx context.Context, id string) (*domain.Client, error)
}
