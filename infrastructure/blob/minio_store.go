// Package blob provides adapters for archiving raw memory text. The
// MinIO store targets any S3-compatible endpoint; the in-memory store
// backs tests and single-process deployments.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	pkgerrors "engram-backend/pkg/errors"
)

// MinioStore archives blobs in an S3-compatible object store
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinioStore connects to the endpoint and ensures the bucket exists
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "connecting to blob store")
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "checking blob bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, pkgerrors.Wrap(err, "creating blob bucket")
		}
		logger.Info("created blob bucket", zap.String("bucket", bucket))
	}

	return &MinioStore{client: client, bucket: bucket, logger: logger}, nil
}

// Put stores a blob under the key, replacing any prior content
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return pkgerrors.NewInternal(fmt.Sprintf("storing blob %s", key), err)
	}
	return nil
}

// Get retrieves a blob. Unknown keys yield a NOT_FOUND error.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, pkgerrors.NewInternal(fmt.Sprintf("opening blob %s", key), err)
	}
	defer obj.Close()

	// GetObject is lazy; missing keys only surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, pkgerrors.NewNotFound(fmt.Sprintf("blob %s not found", key))
		}
		return nil, pkgerrors.NewInternal(fmt.Sprintf("reading blob %s", key), err)
	}
	return data, nil
}

// Delete removes a blob. Deleting an absent key is not an error.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return pkgerrors.NewInternal(fmt.Sprintf("deleting blob %s", key), err)
	}
	return nil
}
