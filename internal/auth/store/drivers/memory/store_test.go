package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockboxhq/grantstore/internal/auth/directory"
	"github.com/lockboxhq/grantstore/internal/auth/domain"
	"github.com/lockboxhq/grantstore/internal/auth/store"
)

func newTestRepo(t *testing.T) store.Authorizations {
	t.Helper()
	clients := directory.NewStatic(domain.Client{ID: "reg-1", ClientID: "client-abc", Name: "Demo"})
	return NewStore(clients).Authorizations()
}

func ptrTime(t time.Time) *time.Time { return &t }

func testAuthorization(principal string) domain.Authorization {
	issued := time.Unix(1_700_000_000, 0).UTC()

	a := domain.NewAuthorization("reg-1", principal, domain.GrantAuthorizationCode)
	a.Attributes[domain.AttrState] = "state-" + principal
	a.AuthorizationCode = &domain.Token{
		Value:     "code-" + principal,
		IssuedAt:  issued,
		ExpiresAt: ptrTime(issued.Add(5 * time.Minute)),
	}
	a.AccessToken = &domain.AccessToken{
		Token: domain.Token{
			Value:     "access-" + principal,
			IssuedAt:  issued,
			ExpiresAt: ptrTime(issued.Add(time.Hour)),
		},
		TokenType: domain.TokenTypeBearer,
		Scopes:    []string{"read"},
	}
	a.IDToken = &domain.Token{
		Value:     "idtoken-" + principal,
		IssuedAt:  issued,
		ExpiresAt: ptrTime(issued.Add(30 * time.Minute)),
	}
	a.RefreshToken = &domain.Token{Value: "refresh-" + principal, IssuedAt: issued}
	return a
}

func TestSaveAndFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	a := testAuthorization("alice")
	require.NoError(t, repo.Save(ctx, a))

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, a, *got)

	got, err = repo.FindByID(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoredRecordsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	a := testAuthorization("alice")
	require.NoError(t, repo.Save(ctx, a))

	// Mutating the caller's copy after save must not leak in.
	a.AccessToken.Invalidated = true
	a.Attributes[domain.AttrState] = "tampered"

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, got.AccessToken.Invalidated)
	require.Equal(t, "state-alice", got.State())

	// Mutating a loaded copy must not leak back.
	got.RefreshToken.Invalidated = true

	again, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, again.RefreshToken.Invalidated)
}

func TestEmptyMapsNormalizeOnLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	a := testAuthorization("alice")
	a.Attributes = map[string]any{}
	a.RefreshToken.Metadata = map[string]any{}
	require.NoError(t, repo.Save(ctx, a))

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, got.Attributes)
	require.Nil(t, got.RefreshToken.Metadata)
}

func TestFindByTokenDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	a := testAuthorization("alice")
	require.NoError(t, repo.Save(ctx, a))

	t.Run("hinted and hintless lookups resolve", func(t *testing.T) {
		cases := []struct {
			token string
			hint  domain.TokenKind
		}{
			{"code-alice", domain.TokenKindAuthorizationCode},
			{"access-alice", domain.TokenKindAccessToken},
			{"refresh-alice", domain.TokenKindRefreshToken},
			{"state-alice", domain.TokenKindState},
			{"code-alice", ""},
			{"access-alice", ""},
			{"refresh-alice", ""},
			{"state-alice", ""},
		}
		for _, tc := range cases {
			got, err := repo.FindByToken(ctx, tc.token, tc.hint)
			require.NoError(t, err)
			require.NotNil(t, got, "%s/%s", tc.token, tc.hint)
			require.Equal(t, a.ID, got.ID)
		}
	})

	t.Run("id tokens are not searchable", func(t *testing.T) {
		got, err := repo.FindByToken(ctx, "idtoken-alice", domain.TokenKindIDToken)
		require.NoError(t, err)
		require.Nil(t, got)

		got, err = repo.FindByToken(ctx, "idtoken-alice", "")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("mismatched hint misses", func(t *testing.T) {
		got, err := repo.FindByToken(ctx, "access-alice", domain.TokenKindRefreshToken)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestPreconditions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.FindByID(ctx, "")
	require.ErrorIs(t, err, store.ErrPrecondition)

	_, err = repo.FindByToken(ctx, "", "")
	require.ErrorIs(t, err, store.ErrPrecondition)

	require.ErrorIs(t, repo.Remove(ctx, domain.Authorization{}), store.ErrPrecondition)

	invalid := testAuthorization("alice")
	invalid.RegisteredClientID = ""
	require.ErrorIs(t, repo.Save(ctx, invalid), store.ErrPrecondition)
}

func TestRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	a := testAuthorization("alice")
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Remove(ctx, a))
	require.NoError(t, repo.Remove(ctx, a))

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDanglingClientReference(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	a := testAuthorization("alice")
	a.RegisteredClientID = "ghost"
	require.NoError(t, repo.Save(ctx, a))

	_, err := repo.FindByID(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrDataIntegrity)
}

func TestDeleteExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Unix(1_700_000_000, 0).UTC()
	now := base.Add(2 * time.Hour)

	expired := domain.NewAuthorization("reg-1", "expired", domain.GrantClientCredentials)
	expired.AccessToken = &domain.AccessToken{
		Token: domain.Token{
			Value:     "dead",
			IssuedAt:  base,
			ExpiresAt: ptrTime(base.Add(time.Hour)),
		},
		TokenType: domain.TokenTypeBearer,
	}

	pinned := domain.NewAuthorization("reg-1", "pinned", domain.GrantAuthorizationCode)
	pinned.AccessToken = &domain.AccessToken{
		Token: domain.Token{
			Value:     "dead-2",
			IssuedAt:  base,
			ExpiresAt: ptrTime(base.Add(time.Hour)),
		},
		TokenType: domain.TokenTypeBearer,
	}
	pinned.RefreshToken = &domain.Token{Value: "anchor", IssuedAt: base} // no expiry

	empty := domain.NewAuthorization("reg-1", "empty", domain.GrantAuthorizationCode)

	for _, a := range []domain.Authorization{expired, pinned, empty} {
		require.NoError(t, repo.Save(ctx, a))
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	got, err := repo.FindByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	for _, id := range []string{pinned.ID, empty.ID} {
		got, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
}
