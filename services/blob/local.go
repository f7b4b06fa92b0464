// Package blobsvc stores the uploaded knowledge-base files.
package blobsvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
)

var errInvalidKey = errors.New("invalid blob key")

// NewStore returns the BlobStore selected by conf.Knowledge.BlobBackend.
func NewStore(ctx context.Context, conf *core.Config) (knowledge.BlobStore, error) {
	switch conf.Knowledge.BlobBackend {
	case "", "local":
		return NewLocalStore(conf.Knowledge.BlobDir)
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "creating GCS client")
		}
		return NewGCSStore(client, conf.Knowledge.GCSBucket), nil
	default:
		return nil, errors.Errorf("unknown blob backend %q", conf.Knowledge.BlobBackend)
	}
}

// LocalStore keeps blobs as files under a directory.
type LocalStore struct {
	dir string
}

var _ knowledge.BlobStore = (*LocalStore)(nil)

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating blob dir")
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errInvalidKey
	}
	return filepath.Join(s.dir, clean), nil
}

// Put writes to a temporary file first so readers never see a partial blob.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o750); err != nil {
		return errors.Wrap(err, "creating blob dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating blob file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing blob")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing blob file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), fp), "moving blob file")
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, knowledge.ErrBlobNotFound
		}
		return nil, errors.Wrap(err, "opening blob")
	}
	return f, nil
}

// Delete is a no-op for missing blobs.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing blob")
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
