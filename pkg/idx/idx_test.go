package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewProducesOrderedUniqueIDs(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		id := New()
		require.Len(t, id.String(), 26)
		require.Greater(t, id.String(), prev.String())
		prev = id
	}
}

func TestNewAtEmbedsTimestamp(t *testing.T) {
	at := time.Unix(1_700_000_000, 0).UTC()

	a := NewAt(at)
	b := NewAt(at.Add(time.Second))
	require.Less(t, a.String(), b.String())

	// IDs minted in the same millisecond share the time prefix.
	require.Equal(t, a.String()[:10], NewAt(at).String()[:10])
}

func TestParse(t *testing.T) {
	id := New()
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = Parse("not-a-ulid")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalid)
}
