// Package objectstore implements cascade.ObjectStore over S3, MinIO and memory.
package objectstore

import (
	"context"
	"fmt"

	"storeops/internal/cascade"
	"storeops/internal/config"
)

// New returns the object store selected by cfg.Provider. It returns nil
// for provider "none", which leaves the engine able to dry-run only.
func New(ctx context.Context, cfg config.StorageConfig) (cascade.ObjectStore, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinIO(cfg)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("objectstore: unknown provider %q", cfg.Provider)
	}
}

func notFound(bucket, path string, err error) error {
	return fmt.Errorf("%s/%s: %w: %v", bucket, path, cascade.ErrObjectNotFound, err)
}
