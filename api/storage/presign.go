package storage

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const urlExpiry = time.Hour

// Presigner issues time-limited upload/download URLs so video bytes
// never route through the API process.
type Presigner struct {
	client           *minio.Client
	bucket           string
	externalEndpoint string
}

func NewPresigner(endpoint, externalEndpoint, accessKey, secretKey, bucket string, secure bool) (*Presigner, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	return &Presigner{
		client:           client,
		bucket:           bucket,
		externalEndpoint: externalEndpoint,
	}, nil
}

func (p *Presigner) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{})
}

func (p *Presigner) BucketExists(ctx context.Context) bool {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	return err == nil && exists
}

// PresignUpload returns a PUT URL reachable from outside the cluster.
func (p *Presigner) PresignUpload(ctx context.Context, objectPath string) (string, error) {
	u, err := p.client.PresignedPutObject(ctx, p.bucket, objectPath, urlExpiry)
	if err != nil {
		return "", err
	}

	// The signing client talks to the in-cluster endpoint; browsers need
	// the external one.
	if p.externalEndpoint != "" {
		u.Host = p.externalEndpoint
	}
	return u.String(), nil
}

func (p *Presigner) PresignDownload(ctx context.Context, objectPath string) (string, error) {
	u, err := p.client.PresignedGetObject(ctx, p.bucket, objectPath, urlExpiry, nil)
	if err != nil {
		return "", err
	}

	if p.externalEndpoint != "" {
		u.Host = p.externalEndpoint
	}
	return u.String(), nil
}

func (p *Presigner) ExpirySeconds() int {
	return int(urlExpiry.Seconds())
}
