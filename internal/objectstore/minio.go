package objectstore

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"storeops/internal/config"
)

type minioAPI interface {
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinIO removes objects from a MinIO deployment.
type MinIO struct {
	client minioAPI
}

// NewMinIO creates a MinIO store. cfg.Endpoint is host:port without a scheme.
func NewMinIO(cfg config.StorageConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIO{client: client}, nil
}

// Remove deletes bucket/path.
func (m *MinIO) Remove(ctx context.Context, bucket, path string) error {
	err := m.client.RemoveObject(ctx, bucket, path, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return notFound(bucket, path, err)
	}
	return err
}
