package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestStore creates a store backed by a temp directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "reader@example.com", normalizeEmail("Reader@Example.COM"))
	require.Equal(t, "reader@example.com", normalizeEmail("  reader@example.com  "))
}
