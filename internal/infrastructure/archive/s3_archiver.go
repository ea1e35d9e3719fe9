// Package archive stores raw inbound provider payloads for replay and audit.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
	infraconfig "github.com/sellerhub/backend/internal/infrastructure/config"
)

// uploadTimeout bounds one background payload upload
const uploadTimeout = 30 * time.Second

// S3Archiver writes each webhook payload to object storage, one object per
// event. Uploads run in the background: archiving must never delay or fail
// the webhook acknowledgement, so errors are logged and dropped.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Archiver creates an archiver from configuration. It is compatible
// with any S3-compatible storage backend (AWS S3, MinIO, RustFS, etc.)
func NewS3Archiver(cfg *infraconfig.ArchiveConfig, logger *zap.Logger) (*S3Archiver, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	// Explicit keys override the ambient credential chain; useful for
	// MinIO-style deployments without instance roles.
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// Archive uploads the raw payload in the background. The caller's context is
// deliberately not reused: the webhook response returns long before the
// upload finishes.
func (a *S3Archiver) Archive(_ context.Context, provider connection.ProviderCode, eventID string, payload []byte) {
	body := make([]byte, len(payload))
	copy(body, payload)
	key := a.objectKey(provider, eventID, time.Now().UTC())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()

		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			a.logger.Warn("payload archive upload failed",
				zap.String("provider", string(provider)),
				zap.String("event_id", eventID),
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// objectKey lays payloads out by provider and day so replays can scan a
// bounded range: prefix/PROVIDER/2026/08/23/event-id.json
func (a *S3Archiver) objectKey(provider connection.ProviderCode, eventID string, at time.Time) string {
	key := fmt.Sprintf("%s/%s/%s.json", provider, at.Format("2006/01/02"), eventID)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}
