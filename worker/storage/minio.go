package storage

import (
	"context"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"videoConverter/worker/metrics"
)

// Store moves blobs between local scratch storage and the object
// backend. Transfer failures are logged and counted, never raised:
// callers branch on the boolean result.
type Store struct {
	client  *minio.Client
	bucket  string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewStore(endpoint, accessKey, secretKey, bucket string, secure bool, logger *zap.Logger, m *metrics.Metrics) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	return &Store{
		client:  client,
		bucket:  bucket,
		logger:  logger,
		metrics: m,
	}, nil
}

func (s *Store) Download(ctx context.Context, objectPath, localPath string) bool {
	start := time.Now()

	if err := s.client.FGetObject(ctx, s.bucket, objectPath, localPath, minio.GetObjectOptions{}); err != nil {
		s.logger.Error("Failed to download object",
			zap.String("object", objectPath),
			zap.Error(err),
		)
		s.metrics.RecordFailure("download_failed")
		return false
	}

	elapsed := time.Since(start)
	s.metrics.DownloadTime.Observe(elapsed.Seconds())
	s.logger.Info("Downloaded object",
		zap.String("object", objectPath),
		zap.Duration("elapsed", elapsed),
	)
	return true
}

func (s *Store) Upload(ctx context.Context, localPath, objectPath string) bool {
	start := time.Now()

	opts := minio.PutObjectOptions{ContentType: ContentTypeFor(objectPath)}
	if _, err := s.client.FPutObject(ctx, s.bucket, objectPath, localPath, opts); err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("object", objectPath),
			zap.Error(err),
		)
		s.metrics.RecordFailure("upload_failed")
		return false
	}

	elapsed := time.Since(start)
	s.metrics.UploadTime.Observe(elapsed.Seconds())
	s.logger.Info("Uploaded object",
		zap.String("object", objectPath),
		zap.Duration("elapsed", elapsed),
	)
	return true
}

// ContentTypeFor maps an output object's extension to its MIME type.
func ContentTypeFor(objectPath string) string {
	switch {
	case strings.HasSuffix(objectPath, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(objectPath, ".webm"):
		return "video/webm"
	case strings.HasSuffix(objectPath, ".mkv"):
		return "video/x-matroska"
	case strings.HasSuffix(objectPath, ".avi"):
		return "video/x-msvideo"
	case strings.HasSuffix(objectPath, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(objectPath, ".gif"):
		return "image/gif"
	case strings.HasSuffix(objectPath, ".mp3"):
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
