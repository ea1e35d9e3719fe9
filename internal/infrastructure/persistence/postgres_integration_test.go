package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/infrastructure/persistence/models"
)

// TestRepositories_Postgres runs the store-level invariants against a real
// PostgreSQL instance. SQLite covers the fast path; this test exists because
// the production dialect differs in error translation, ON CONFLICT handling
// and NULLS FIRST ordering.
func TestRepositories_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sellerhub_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.ConnectionModel{},
		&models.DedupRecordModel{},
		&models.SyncEventModel{},
		&models.UnifiedOrderModel{},
		&models.UnifiedProductModel{},
	))

	t.Run("duplicate tenant provider pair is translated", func(t *testing.T) {
		repo := NewGormConnectionRepository(db)

		first, err := connection.NewConnection(uuid.New(), connection.ProviderCodeEtsy)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, first))

		second, err := connection.NewConnection(first.TenantID, connection.ProviderCodeEtsy)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, second), connection.ErrAlreadyConnected)
	})

	t.Run("version conflict under real dialect", func(t *testing.T) {
		repo := NewGormConnectionRepository(db)

		conn, err := connection.NewConnection(uuid.New(), connection.ProviderCodeShopify)
		require.NoError(t, err)
		conn.MarkConnected("shop.myshopify.com", "")
		require.NoError(t, repo.Save(ctx, conn))

		winner := *conn
		winner.AccessCredential = "enc-winner"
		require.NoError(t, repo.UpdateWithVersion(ctx, &winner, 1))

		loser := *conn
		loser.AccessCredential = "enc-loser"
		assert.ErrorIs(t, repo.UpdateWithVersion(ctx, &loser, 1), connection.ErrVersionConflict)
	})

	t.Run("never attempted connections lead candidate selection", func(t *testing.T) {
		repo := NewGormConnectionRepository(db)

		attempted, err := connection.NewConnection(uuid.New(), connection.ProviderCodeEbay)
		require.NoError(t, err)
		attempted.MarkConnected("ebay-old", "")
		hourAgo := time.Now().Add(-time.Hour)
		attempted.LastAttemptedAt = &hourAgo
		require.NoError(t, repo.Save(ctx, attempted))

		fresh, err := connection.NewConnection(uuid.New(), connection.ProviderCodeEbay)
		require.NoError(t, err)
		fresh.MarkConnected("ebay-new", "")
		require.NoError(t, repo.Save(ctx, fresh))

		candidates, err := repo.ListSyncCandidates(ctx, []connection.ProviderCode{connection.ProviderCodeEbay}, 10)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, fresh.ID, candidates[0].ID)
		assert.Equal(t, attempted.ID, candidates[1].ID)
	})

	t.Run("dedup claim races on the unique index", func(t *testing.T) {
		ledger := NewGormDedupLedger(db)

		claimed, err := ledger.Claim(ctx, connection.ProviderCodeShopify, "orders/create:pg-1")
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = ledger.Claim(ctx, connection.ProviderCodeShopify, "orders/create:pg-1")
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("order upsert converges via ON CONFLICT", func(t *testing.T) {
		repo := NewGormUnifiedOrderRepository(db)
		connectionID := uuid.New()

		order := newTestOrder(uuid.New(), connectionID, "pg-order-1")
		require.NoError(t, repo.Upsert(ctx, &order))

		redelivered := newTestOrder(order.TenantID, connectionID, "pg-order-1")
		redelivered.Status = "COMPLETED"
		require.NoError(t, repo.Upsert(ctx, &redelivered))

		count, err := repo.CountByConnection(ctx, connectionID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
