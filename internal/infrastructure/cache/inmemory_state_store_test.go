package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerhub/backend/internal/domain/connection"
)

func TestInMemoryStateStore_PutAndTake(t *testing.T) {
	store := NewInMemoryStateStore()
	defer store.Close()
	ctx := context.Background()

	hs := &connection.HandshakeState{
		TenantID:     uuid.New(),
		Provider:     connection.ProviderCodeEtsy,
		PKCEVerifier: "verifier-123",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.Put(ctx, "state-abc", hs, time.Minute))

	got, err := store.Take(ctx, "state-abc")
	require.NoError(t, err)
	assert.Equal(t, hs.TenantID, got.TenantID)
	assert.Equal(t, hs.Provider, got.Provider)
	assert.Equal(t, "verifier-123", got.PKCEVerifier)
}

func TestInMemoryStateStore_TakeIsSingleUse(t *testing.T) {
	store := NewInMemoryStateStore()
	defer store.Close()
	ctx := context.Background()

	hs := &connection.HandshakeState{TenantID: uuid.New(), Provider: connection.ProviderCodeEbay}
	require.NoError(t, store.Put(ctx, "state-abc", hs, time.Minute))

	_, err := store.Take(ctx, "state-abc")
	require.NoError(t, err)

	_, err = store.Take(ctx, "state-abc")
	assert.ErrorIs(t, err, connection.ErrStateNotFound, "a replayed callback must not find the state")
}

func TestInMemoryStateStore_UnknownState(t *testing.T) {
	store := NewInMemoryStateStore()
	defer store.Close()

	_, err := store.Take(context.Background(), "never-stored")
	assert.ErrorIs(t, err, connection.ErrStateNotFound)
}

func TestInMemoryStateStore_ExpiredState(t *testing.T) {
	store := NewInMemoryStateStore()
	defer store.Close()
	ctx := context.Background()

	hs := &connection.HandshakeState{TenantID: uuid.New(), Provider: connection.ProviderCodeEtsy}
	require.NoError(t, store.Put(ctx, "state-abc", hs, -time.Second))

	_, err := store.Take(ctx, "state-abc")
	assert.ErrorIs(t, err, connection.ErrStateNotFound)
	assert.Zero(t, store.Size(), "an expired entry is removed on access")
}

func TestInMemoryStateStore_Cleanup(t *testing.T) {
	store := NewInMemoryStateStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "fresh", &connection.HandshakeState{}, time.Minute))
	require.NoError(t, store.Put(ctx, "stale", &connection.HandshakeState{}, -time.Second))

	store.cleanup()
	assert.Equal(t, 1, store.Size())
}
