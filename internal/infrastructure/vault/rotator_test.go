package vault

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// pagingRepo implements just enough of connection.Repository for rotation:
// ID-ordered paging and the conditional update.
type pagingRepo struct {
	conns map[uuid.UUID]*connection.Connection
	// conflictIDs forces a version conflict for the listed connections
	conflictIDs map[uuid.UUID]bool
	updates     int
}

func newPagingRepo() *pagingRepo {
	return &pagingRepo{
		conns:       map[uuid.UUID]*connection.Connection{},
		conflictIDs: map[uuid.UUID]bool{},
	}
}

func (r *pagingRepo) put(c *connection.Connection) {
	cp := *c
	r.conns[c.ID] = &cp
}

func (r *pagingRepo) FindByID(_ context.Context, id uuid.UUID) (*connection.Connection, error) {
	c, ok := r.conns[id]
	if !ok {
		return nil, connection.ErrConnectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *pagingRepo) FindByTenantAndProvider(_ context.Context, _ uuid.UUID, _ connection.ProviderCode) (*connection.Connection, error) {
	return nil, connection.ErrConnectionNotFound
}

func (r *pagingRepo) FindByProviderAccount(_ context.Context, _ connection.ProviderCode, _ string) (*connection.Connection, error) {
	return nil, connection.ErrConnectionNotFound
}

func (r *pagingRepo) ListByTenant(_ context.Context, _ uuid.UUID) ([]connection.Connection, error) {
	return nil, nil
}

func (r *pagingRepo) ListSyncCandidates(_ context.Context, _ []connection.ProviderCode, _ int) ([]connection.Connection, error) {
	return nil, nil
}

func (r *pagingRepo) ListBatch(_ context.Context, afterID uuid.UUID, limit int) ([]connection.Connection, error) {
	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var out []connection.Connection
	for _, id := range ids {
		if afterID != uuid.Nil && id.String() <= afterID.String() {
			continue
		}
		out = append(out, *r.conns[id])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *pagingRepo) Save(_ context.Context, conn *connection.Connection) error {
	r.put(conn)
	return nil
}

func (r *pagingRepo) Update(_ context.Context, conn *connection.Connection) error {
	conn.Version++
	r.put(conn)
	return nil
}

func (r *pagingRepo) UpdateWithVersion(_ context.Context, conn *connection.Connection, expectedVersion int) error {
	if r.conflictIDs[conn.ID] {
		return connection.ErrVersionConflict
	}
	stored, ok := r.conns[conn.ID]
	if !ok {
		return connection.ErrConnectionNotFound
	}
	if stored.Version != expectedVersion {
		return connection.ErrVersionConflict
	}
	r.updates++
	conn.Version = expectedVersion + 1
	r.put(conn)
	return nil
}

func (r *pagingRepo) TouchAttempt(_ context.Context, _ uuid.UUID, _ time.Time) error { return nil }

func seedSealed(t *testing.T, repo *pagingRepo, v *Vault, access, refresh string) *connection.Connection {
	t.Helper()
	conn, err := connection.NewConnection(uuid.New(), connection.ProviderCodeEtsy)
	require.NoError(t, err)

	if access != "" {
		blob, err := v.Encrypt(access)
		require.NoError(t, err)
		conn.AccessCredential = blob
	}
	if refresh != "" {
		blob, err := v.Encrypt(refresh)
		require.NoError(t, err)
		conn.RefreshCredential = blob
	}
	repo.put(conn)
	return conn
}

func TestRotator_MigratesToNewKey(t *testing.T) {
	oldVault, err := New("old-secret")
	require.NoError(t, err)
	repo := newPagingRepo()
	conn := seedSealed(t, repo, oldVault, "access-1", "refresh-1")

	rotator, err := NewRotator("old-secret", "new-secret", repo, zap.NewNop())
	require.NoError(t, err)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RotationSummary{Scanned: 1, Migrated: 1}, summary)

	// The stored blobs must now open with the new key only.
	newVault, err := New("new-secret")
	require.NoError(t, err)
	stored, err := repo.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)

	access, err := newVault.Decrypt(stored.AccessCredential)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)

	refresh, err := newVault.Decrypt(stored.RefreshCredential)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)

	_, err = oldVault.Decrypt(stored.AccessCredential)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestRotator_Idempotent(t *testing.T) {
	oldVault, err := New("old-secret")
	require.NoError(t, err)
	repo := newPagingRepo()
	seedSealed(t, repo, oldVault, "access-1", "refresh-1")

	rotator, err := NewRotator("old-secret", "new-secret", repo, zap.NewNop())
	require.NoError(t, err)

	_, err = rotator.Run(context.Background())
	require.NoError(t, err)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RotationSummary{Scanned: 1, AlreadyCurrent: 1}, summary)
	assert.Equal(t, 1, repo.updates, "a second run must not rewrite migrated rows")
}

func TestRotator_SkipsEmptyCredentials(t *testing.T) {
	repo := newPagingRepo()
	conn, err := connection.NewConnection(uuid.New(), connection.ProviderCodeShopify)
	require.NoError(t, err)
	repo.put(conn)

	rotator, err := NewRotator("old-secret", "new-secret", repo, zap.NewNop())
	require.NoError(t, err)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RotationSummary{Scanned: 1, AlreadyCurrent: 1}, summary)
}

func TestRotator_DryRunWritesNothing(t *testing.T) {
	oldVault, err := New("old-secret")
	require.NoError(t, err)
	repo := newPagingRepo()
	conn := seedSealed(t, repo, oldVault, "access-1", "")
	before := repo.conns[conn.ID].AccessCredential

	rotator, err := NewRotator("old-secret", "new-secret", repo, zap.NewNop(), WithDryRun(true))
	require.NoError(t, err)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RotationSummary{Scanned: 1, Migrated: 1}, summary)
	assert.Equal(t, before, repo.conns[conn.ID].AccessCredential)
	assert.Zero(t, repo.updates)
}

func TestRotator_ConflictDeferred(t *testing.T) {
	oldVault, err := New("old-secret")
	require.NoError(t, err)
	repo := newPagingRepo()
	conn := seedSealed(t, repo, oldVault, "access-1", "")
	repo.conflictIDs[conn.ID] = true

	rotator, err := NewRotator("old-secret", "new-secret", repo, zap.NewNop())
	require.NoError(t, err)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RotationSummary{Scanned: 1, Conflicted: 1}, summary)
}

func TestRotator_UndecryptableBlobCountedFailed(t *testing.T) {
	repo := newPagingRepo()
	conn, err := connection.NewConnection(uuid.New(), connection.ProviderCodeEtsy)
	require.NoError(t, err)
	conn.AccessCredential = "garbage"
	repo.put(conn)

	rotator, err := NewRotator("old-secret", "new-secret", repo, zap.NewNop())
	require.NoError(t, err)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RotationSummary{Scanned: 1, Failed: 1}, summary)
}

func TestRotator_PagesThroughAllConnections(t *testing.T) {
	oldVault, err := New("old-secret")
	require.NoError(t, err)
	repo := newPagingRepo()
	for i := 0; i < 5; i++ {
		seedSealed(t, repo, oldVault, "access", "refresh")
	}

	rotator, err := NewRotator("old-secret", "new-secret", repo, zap.NewNop(), WithBatchSize(2))
	require.NoError(t, err)

	summary, err := rotator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Scanned)
	assert.Equal(t, 5, summary.Migrated)
}
