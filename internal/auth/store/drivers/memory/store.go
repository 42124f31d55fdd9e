// Package memory is an in-process driver with the same contract as the
// sqlite driver. It backs service tests and suits deployments that can
// afford to lose grant state on restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lockboxhq/grantstore/internal/auth/domain"
	"github.com/lockboxhq/grantstore/internal/auth/store"
)

type Store struct {
	clients store.ClientDirectory
	repo    *authorizationsRepo
}

func NewStore(clients store.ClientDirectory) *Store {
	return &Store{
		clients: clients,
		repo: &authorizationsRepo{
			clients: clients,
			records: make(map[string]domain.Authorization),
		},
	}
}

func (s *Store) Authorizations() store.Authorizations { return s.repo }

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return nil }

type authorizationsRepo struct {
	clients store.ClientDirectory

	mu      sync.RWMutex
	records map[string]domain.Authorization
}

func (r *authorizationsRepo) Save(ctx context.Context, a domain.Authorization) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrPrecondition, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Deep copy on the way in so later caller mutations can't reach the
	// stored record through shared maps.
	r.records[a.ID] = a.Clone()
	return nil
}

func (r *authorizationsRepo) Remove(ctx context.Context, a domain.Authorization) error {
	if a.ID == "" {
		return fmt.Errorf("%w: authorization id cannot be empty", store.ErrPrecondition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, a.ID)
	return nil
}

func (r *authorizationsRepo) FindByID(ctx context.Context, id string) (*domain.Authorization, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: authorization id cannot be empty", store.ErrPrecondition)
	}

	r.mu.RLock()
	a, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.loaded(ctx, a)
}

func (r *authorizationsRepo) FindByToken(ctx context.Context, token string, hint domain.TokenKind) (*domain.Authorization, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", store.ErrPrecondition)
	}

	r.mu.RLock()
	var found *domain.Authorization
	for _, a := range r.records {
		if matchesToken(&a, token, hint) {
			clone := a.Clone()
			found = &clone
			break
		}
	}
	r.mu.RUnlock()

	if found == nil {
		return nil, nil
	}
	return r.loaded(ctx, *found)
}

func (r *authorizationsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, a := range r.records {
		if purgeable(a, now) {
			delete(r.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// loaded applies the same fail-fast client resolution as a driver-level
// row load before handing out a copy.
func (r *authorizationsRepo) loaded(ctx context.Context, a domain.Authorization) (*domain.Authorization, error) {
	client, err := r.clients.FindClientByID(ctx, a.RegisteredClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: registered client %q referenced by authorization %q was not found",
			store.ErrDataIntegrity, a.RegisteredClientID, a.ID)
	}

	out := a.Clone()
	normalizeLoaded(&out)
	return &out, nil
}

// normalizeLoaded applies the same map normalization as a driver row
// load: empty attribute and metadata maps come back as nil.
func normalizeLoaded(a *domain.Authorization) {
	if len(a.Attributes) == 0 {
		a.Attributes = nil
	}
	tokens := []*domain.Token{a.AuthorizationCode, a.IDToken, a.RefreshToken}
	if a.AccessToken != nil {
		tokens = append(tokens, &a.AccessToken.Token)
	}
	for _, t := range tokens {
		if t != nil && len(t.Metadata) == 0 {
			t.Metadata = nil
		}
	}
}

// matchesToken mirrors the sqlite driver's filter dispatch: concrete
// hints match one slot, the state pseudo-kind matches the mirrored
// attribute, and no hint ORs across the four searchable fields. ID
// tokens are not reachable by value.
func matchesToken(a *domain.Authorization, token string, hint domain.TokenKind) bool {
	switch hint {
	case "":
		return a.State() == token ||
			slotHolds(a.AuthorizationCode, token) ||
			(a.AccessToken != nil && a.AccessToken.Value == token) ||
			slotHolds(a.RefreshToken, token)
	case domain.TokenKindState:
		return a.State() == token
	case domain.TokenKindAuthorizationCode:
		return slotHolds(a.AuthorizationCode, token)
	case domain.TokenKindAccessToken:
		return a.AccessToken != nil && a.AccessToken.Value == token
	case domain.TokenKindRefreshToken:
		return slotHolds(a.RefreshToken, token)
	default:
		return false
	}
}

func slotHolds(t *domain.Token, token string) bool {
	return t != nil && t.Value == token
}

// purgeable reports whether every non-empty slot expired before now. A
// slot without an expiry (refresh tokens, occasionally ID tokens) keeps
// the record alive, and token-less records are never purged here.
func purgeable(a domain.Authorization, now time.Time) bool {
	if a.AuthorizationCode == nil && a.AccessToken == nil && a.IDToken == nil && a.RefreshToken == nil {
		return false
	}

	var access *domain.Token
	if a.AccessToken != nil {
		access = &a.AccessToken.Token
	}
	for _, t := range []*domain.Token{a.AuthorizationCode, access, a.IDToken, a.RefreshToken} {
		if t == nil {
			continue
		}
		if t.ExpiresAt == nil || now.Before(*t.ExpiresAt) {
			return false
		}
	}
	return true
}
