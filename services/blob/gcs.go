package blobsvc

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core/knowledge"
)

// GCSStore keeps blobs as objects of a Google Cloud Storage bucket.
type GCSStore struct {
	bucket *storage.BucketHandle
}

var _ knowledge.BlobStore = (*GCSStore)(nil)

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucket)}
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if key == "" {
		return errInvalidKey
	}
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "uploading blob %s", key)
	}
	return errors.Wrapf(w.Close(), "closing GCS writer for %s", key)
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, knowledge.ErrBlobNotFound
		}
		return nil, errors.Wrapf(err, "reading blob %s", key)
	}
	return rc, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrapf(err, "deleting blob %s", key)
	}
	return nil
}
