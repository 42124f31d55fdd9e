package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lockboxhq/grantstore/internal/auth/domain"
)

func TestStaticDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := NewStatic(domain.Client{ID: "reg-1", ClientID: "client-abc", Name: "Demo"})

	client, err := dir.FindClientByID(ctx, "reg-1")
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, "client-abc", client.ClientID)

	client, err = dir.FindClientByID(ctx, "unknown")
	require.NoError(t, err)
	require.Nil(t, client)

	dir.Register(domain.Client{ID: "reg-2", ClientID: "client-def", Name: "Later"})
	client, err = dir.FindClientByID(ctx, "reg-2")
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, "client-def", client.ClientID)
}
