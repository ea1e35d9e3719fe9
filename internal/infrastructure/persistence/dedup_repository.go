package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/domain/event"
	"github.com/sellerhub/backend/internal/infrastructure/persistence/models"
)

// GormDedupLedger implements event.Ledger on the relational store. Dedup
// correctness comes entirely from the unique (provider, event_id) index:
// no locking step is needed, concurrent claimants race on the insert and
// the store picks exactly one winner.
type GormDedupLedger struct {
	db *gorm.DB
}

// NewGormDedupLedger creates a new GormDedupLedger
func NewGormDedupLedger(db *gorm.DB) *GormDedupLedger {
	return &GormDedupLedger{db: db}
}

// Claim attempts to record (provider, eventID) as processed
func (l *GormDedupLedger) Claim(ctx context.Context, provider connection.ProviderCode, eventID string) (bool, error) {
	record := models.DedupRecordModel{
		ID:        uuid.New(),
		Provider:  provider,
		EventID:   eventID,
		ClaimedAt: time.Now(),
	}

	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", event.ErrLedgerUnavailable, err)
	}
	return true, nil
}

// Release drops a claim so a later redelivery can succeed
func (l *GormDedupLedger) Release(ctx context.Context, provider connection.ProviderCode, eventID string) error {
	if err := l.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Delete(&models.DedupRecordModel{}).Error; err != nil {
		return fmt.Errorf("%w: %v", event.ErrLedgerUnavailable, err)
	}
	return nil
}

// PurgeOlderThan removes entries claimed before the cutoff
func (l *GormDedupLedger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("claimed_at < ?", cutoff).
		Delete(&models.DedupRecordModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormDedupLedger implements event.Ledger
var _ event.Ledger = (*GormDedupLedger)(nil)
