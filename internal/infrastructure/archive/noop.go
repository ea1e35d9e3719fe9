package archive

import (
	"context"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// NoopArchiver discards payloads. Used when archiving is disabled so the
// orchestrator never needs a nil check at the call site.
type NoopArchiver struct{}

// NewNoopArchiver creates a NoopArchiver
func NewNoopArchiver() *NoopArchiver {
	return &NoopArchiver{}
}

// Archive drops the payload
func (NoopArchiver) Archive(_ context.Context, _ connection.ProviderCode, _ string, _ []byte) {}
