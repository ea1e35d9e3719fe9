package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// defaultRotationBatchSize bounds how many connections are read per page
const defaultRotationBatchSize = 100

// Rotator re-encrypts stored connection credentials from an old key to a new
// key. The operation is idempotent: a blob that already decrypts with the new
// key is treated as migrated, so repeated or partially completed runs are safe.
type Rotator struct {
	oldVault    *Vault
	newVault    *Vault
	connections connection.Repository
	log         *zap.Logger
	batchSize   int
	dryRun      bool
}

// RotatorOption customizes a Rotator
type RotatorOption func(*Rotator)

// WithBatchSize sets the page size used when scanning connections
func WithBatchSize(n int) RotatorOption {
	return func(r *Rotator) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithDryRun makes the rotator report what it would change without writing
func WithDryRun(dryRun bool) RotatorOption {
	return func(r *Rotator) { r.dryRun = dryRun }
}

// NewRotator builds a rotator for the given old and new operator secrets
func NewRotator(oldSecret, newSecret string, connections connection.Repository, log *zap.Logger, opts ...RotatorOption) (*Rotator, error) {
	oldVault, err := New(oldSecret)
	if err != nil {
		return nil, fmt.Errorf("vault: old secret: %w", err)
	}
	newVault, err := New(newSecret)
	if err != nil {
		return nil, fmt.Errorf("vault: new secret: %w", err)
	}

	r := &Rotator{
		oldVault:    oldVault,
		newVault:    newVault,
		connections: connections,
		log:         log,
		batchSize:   defaultRotationBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RotationSummary reports per-connection outcomes of one rotation run
type RotationSummary struct {
	Scanned        int
	Migrated       int
	AlreadyCurrent int
	Conflicted     int
	Failed         int
}

// Run scans every connection in ID order and migrates its credentials.
// One connection is written per conditional update; a concurrent refresh
// losing or winning the race is benign either way because the loser retries
// on the next run.
func (r *Rotator) Run(ctx context.Context) (RotationSummary, error) {
	var summary RotationSummary
	afterID := uuid.Nil

	for {
		batch, err := r.connections.ListBatch(ctx, afterID, r.batchSize)
		if err != nil {
			return summary, fmt.Errorf("vault: list connections: %w", err)
		}
		if len(batch) == 0 {
			return summary, nil
		}

		for i := range batch {
			conn := batch[i]
			summary.Scanned++
			r.rotateOne(ctx, &conn, &summary)
		}
		afterID = batch[len(batch)-1].ID
	}
}

func (r *Rotator) rotateOne(ctx context.Context, conn *connection.Connection, summary *RotationSummary) {
	log := r.log.With(
		zap.String("connection_id", conn.ID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
		zap.String("provider", conn.Provider.String()),
	)

	access, accessChanged, err := r.reencrypt(conn.AccessCredential)
	if err != nil {
		summary.Failed++
		log.Error("key rotation failed: access credential undecryptable with either key")
		return
	}
	refresh, refreshChanged, err := r.reencrypt(conn.RefreshCredential)
	if err != nil {
		summary.Failed++
		log.Error("key rotation failed: refresh credential undecryptable with either key")
		return
	}

	if !accessChanged && !refreshChanged {
		summary.AlreadyCurrent++
		log.Debug("key rotation: already on new key")
		return
	}
	if r.dryRun {
		summary.Migrated++
		log.Info("key rotation (dry run): would migrate credentials")
		return
	}

	conn.AccessCredential = access
	conn.RefreshCredential = refresh
	if err := r.connections.UpdateWithVersion(ctx, conn, conn.Version); err != nil {
		if errors.Is(err, connection.ErrVersionConflict) {
			// A concurrent refresh rewrote the row; the next run migrates it.
			summary.Conflicted++
			log.Warn("key rotation: concurrent update, deferring to next run")
			return
		}
		summary.Failed++
		log.Error("key rotation: persist failed", zap.Error(err))
		return
	}

	summary.Migrated++
	log.Info("key rotation: credentials migrated")
}

// reencrypt moves one blob onto the new key. Returns changed=false when the
// blob is empty or already decrypts with the new key.
func (r *Rotator) reencrypt(blob string) (out string, changed bool, err error) {
	if blob == "" {
		return "", false, nil
	}
	if _, err := r.newVault.Decrypt(blob); err == nil {
		return blob, false, nil
	}

	plaintext, err := r.oldVault.Decrypt(blob)
	if err != nil {
		return "", false, err
	}
	sealed, err := r.newVault.Encrypt(plaintext)
	if err != nil {
		return "", false, err
	}
	return sealed, true, nil
}
