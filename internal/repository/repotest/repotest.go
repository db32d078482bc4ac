// Package repotest opens throwaway in-memory stores for tests.
package repotest

import (
	"testing"

	"github.com/Howters/ArisanOnChain-sub000/internal/config"
	"github.com/Howters/ArisanOnChain-sub000/internal/repository"
	"github.com/stretchr/testify/require"
)

// New returns a migrated sqlite :memory: store closed at test cleanup.
func New(t testing.TB) *repository.Store {
	t.Helper()
	store, err := repository.Open(config.DatabaseConfig{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
