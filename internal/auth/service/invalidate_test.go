package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockboxhq/grantstore/internal/auth/directory"
	"github.com/lockboxhq/grantstore/internal/auth/domain"
	"github.com/lockboxhq/grantstore/internal/auth/store/drivers/memory"
)

func TestInvalidateMarksMatchingSlot(t *testing.T) {
	t.Parallel()

	a := grantedAuthorization()
	out := Invalidate(a, "refresh-1")

	require.True(t, out.RefreshToken.Invalidated)
	require.False(t, out.AccessToken.Invalidated, "sibling slots untouched")
	require.Equal(t, "refresh-1", out.RefreshToken.Value, "token value survives")
	require.NotNil(t, a.AccessToken.ExpiresAt)

	// The input record is never mutated.
	require.False(t, a.RefreshToken.Invalidated)
}

func TestInvalidateUnknownTokenIsNoOp(t *testing.T) {
	t.Parallel()

	a := grantedAuthorization()
	out := Invalidate(a, "never-issued")

	require.Equal(t, a, out)
}

func TestInvalidateThenPersist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clients := directory.NewStatic(domain.Client{ID: "reg-1", ClientID: "client-abc", Name: "Demo"})
	repo := memory.NewStore(clients).Authorizations()

	a := grantedAuthorization()
	require.NoError(t, repo.Save(ctx, a))

	require.NoError(t, repo.Save(ctx, Invalidate(a, "access-1")))

	// The token is still resolvable by value after invalidation.
	loaded, err := repo.FindByToken(ctx, "access-1", domain.TokenKindAccessToken)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.True(t, loaded.AccessToken.Invalidated)

	// But introspection now reports it inactive.
	engine := &Introspector{
		Clients: clients,
		Now:     func() time.Time { return issuedBase.Add(10 * time.Second) },
	}
	result, err := engine.Introspect(ctx, "access-1", "client-abc", loaded)
	require.NoError(t, err)
	require.False(t, result.Active)

	// Sibling tokens on the same grant stay live.
	result, err = engine.Introspect(ctx, "refresh-1", "client-abc", loaded)
	require.NoError(t, err)
	require.True(t, result.Active)
}
