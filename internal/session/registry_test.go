package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visatk/pdf-core/internal/domain"
	"github.com/visatk/pdf-core/internal/storage/memoryblob"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry := NewRegistry(memoryblob.NewStore(), &fakeSummarizer{}, clockwork.NewRealClock())
	t.Cleanup(registry.Shutdown)
	return registry
}

func TestRegistry_MintsFreshSession(t *testing.T) {
	registry := testRegistry(t)

	first, err := registry.Resolve("")
	require.NoError(t, err)
	second, err := registry.Resolve("")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID())
}

func TestRegistry_SameIDResolvesToSameInstance(t *testing.T) {
	registry := testRegistry(t)
	id := uuid.New().String()

	first, err := registry.Resolve(id)
	require.NoError(t, err)
	second, err := registry.Resolve(id)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestRegistry_MintedIDResolvesBack(t *testing.T) {
	registry := testRegistry(t)

	minted, err := registry.Resolve("")
	require.NoError(t, err)

	resolved, err := registry.Resolve(minted.ID().String())
	require.NoError(t, err)
	assert.Same(t, minted, resolved)
}

func TestRegistry_InvalidIDFails(t *testing.T) {
	registry := testRegistry(t)

	_, err := registry.Resolve("not-a-uuid")
	require.ErrorIs(t, err, domain.ErrInvalidSessionID)
}

func TestRegistry_UnknownIDCreatesEmptyState(t *testing.T) {
	registry := testRegistry(t)

	// Referencing an id from a previous deployment silently yields a fresh
	// coordinator with empty state.
	co, err := registry.Resolve(uuid.New().String())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionMeta{}, co.Metadata())
	assert.Equal(t, 0, co.ClientCount())
}
