package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerhub/backend/internal/domain/connection"
)

func newTestSyncEvent(connectionID uuid.UUID, finishedAt time.Time) *connection.SyncEvent {
	return &connection.SyncEvent{
		TenantID:         uuid.New(),
		ConnectionID:     connectionID,
		Provider:         connection.ProviderCodeEtsy,
		Trigger:          connection.SyncTriggerScheduled,
		Outcome:          connection.SyncOutcomeSucceeded,
		OrdersUpserted:   3,
		ProductsUpserted: 2,
		StartedAt:        finishedAt.Add(-time.Second),
		FinishedAt:       finishedAt,
	}
}

func TestGormSyncEventRepository_Append(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewGormSyncEventRepository(db)
	ctx := context.Background()

	connectionID := uuid.New()
	e := newTestSyncEvent(connectionID, time.Now())
	require.NoError(t, repo.Append(ctx, e))

	// Append fills identity and creation time in place.
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	events, err := repo.ListByConnection(ctx, connectionID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ID)
	assert.Equal(t, connection.SyncTriggerScheduled, events[0].Trigger)
	assert.Equal(t, connection.SyncOutcomeSucceeded, events[0].Outcome)
	assert.Equal(t, 3, events[0].OrdersUpserted)
	assert.Equal(t, 2, events[0].ProductsUpserted)

	t.Run("preserves caller-assigned identity", func(t *testing.T) {
		id := uuid.New()
		created := time.Now().Add(-time.Minute)
		e := newTestSyncEvent(uuid.New(), time.Now())
		e.ID = id
		e.CreatedAt = created
		require.NoError(t, repo.Append(ctx, e))
		assert.Equal(t, id, e.ID)
		assert.Equal(t, created, e.CreatedAt)
	})

	t.Run("records failure details", func(t *testing.T) {
		failedConnID := uuid.New()
		e := newTestSyncEvent(failedConnID, time.Now())
		e.Outcome = connection.SyncOutcomeFailed
		e.Error = "provider returned 503"
		e.OrdersUpserted = 0
		e.ProductsUpserted = 0
		require.NoError(t, repo.Append(ctx, e))

		events, err := repo.ListByConnection(ctx, failedConnID, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, connection.SyncOutcomeFailed, events[0].Outcome)
		assert.Equal(t, "provider returned 503", events[0].Error)
	})
}

func TestGormSyncEventRepository_ListByConnection(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewGormSyncEventRepository(db)
	ctx := context.Background()

	connectionID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		e := newTestSyncEvent(connectionID, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Append(ctx, e))
	}

	// Events of another connection must not leak into the listing.
	other := newTestSyncEvent(uuid.New(), time.Now())
	require.NoError(t, repo.Append(ctx, other))

	events, err := repo.ListByConnection(ctx, connectionID, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first.
	for i := 1; i < len(events); i++ {
		assert.True(t, !events[i-1].FinishedAt.Before(events[i].FinishedAt),
			"events must be ordered by finished_at descending")
	}
	assert.WithinDuration(t, base.Add(4*time.Minute), events[0].FinishedAt, time.Second)
}

func TestGormSyncEventRepository_PurgeOlderThan(t *testing.T) {
	db := newRepoTestDB(t)
	repo := NewGormSyncEventRepository(db)
	ctx := context.Background()

	connectionID := uuid.New()
	old := newTestSyncEvent(connectionID, time.Now().Add(-48*time.Hour))
	recent := newTestSyncEvent(connectionID, time.Now())
	require.NoError(t, repo.Append(ctx, old))
	require.NoError(t, repo.Append(ctx, recent))

	purged, err := repo.PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	events, err := repo.ListByConnection(ctx, connectionID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, recent.ID, events[0].ID)
}
