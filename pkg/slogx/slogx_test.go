package slogx

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithContext(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))
}

func TestFromContextDefaults(t *testing.T) {
	t.Parallel()

	require.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestNewHonorsLevel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	l := New(Config{Level: "warn", Format: "text"})
	require.False(t, l.Enabled(ctx, slog.LevelInfo))
	require.True(t, l.Enabled(ctx, slog.LevelWarn))

	l = New(Config{Level: "nonsense"})
	require.True(t, l.Enabled(ctx, slog.LevelInfo))
	require.False(t, l.Enabled(ctx, slog.LevelDebug))
}
