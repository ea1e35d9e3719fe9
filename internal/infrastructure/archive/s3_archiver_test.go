package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
	infraconfig "github.com/sellerhub/backend/internal/infrastructure/config"
)

func TestNewS3Archiver_RequiresBucket(t *testing.T) {
	_, err := NewS3Archiver(&infraconfig.ArchiveConfig{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewS3Archiver(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestS3Archiver_ObjectKeyLayout(t *testing.T) {
	a, err := NewS3Archiver(&infraconfig.ArchiveConfig{
		Bucket:    "payloads",
		Prefix:    "/raw/",
		AccessKey: "test",
		SecretKey: "test",
	}, zap.NewNop())
	require.NoError(t, err)

	at := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	key := a.objectKey(connection.ProviderCodeShopify, "evt-42", at)
	assert.Equal(t, "raw/SHOPIFY/2026/08/23/evt-42.json", key)
}

func TestS3Archiver_ObjectKeyWithoutPrefix(t *testing.T) {
	a, err := NewS3Archiver(&infraconfig.ArchiveConfig{
		Bucket:    "payloads",
		AccessKey: "test",
		SecretKey: "test",
	}, zap.NewNop())
	require.NoError(t, err)

	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	key := a.objectKey(connection.ProviderCodeEtsy, "evt-1", at)
	assert.Equal(t, "ETSY/2026/01/02/evt-1.json", key)
}
