package filestore

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/upload"
)

// B2Store keeps the uploads in a Backblaze B2 bucket.
type B2Store struct {
	bucket *b2.Bucket
}

var _ upload.FileStore = (*B2Store)(nil)

func NewB2Store(ctx context.Context, accountID, appKey, bucketName string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrapf(err, "getting b2 bucket %s", bucketName)
	}
	return &B2Store{bucket: bucket}, nil
}

func (s *B2Store) Save(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "writing b2 object")
	}
	return errors.Wrap(w.Close(), "closing b2 object")
}

func storedFile(attrs *b2.Attrs) upload.StoredFile {
	return upload.StoredFile{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ModTime:     attrs.UploadTimestamp.UTC(),
	}
}

func (s *B2Store) Open(ctx context.Context, key string) (io.ReadCloser, upload.StoredFile, error) {
	obj := s.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if b2.IsNotExist(err) {
			return nil, upload.StoredFile{}, upload.ErrNotFound
		}
		return nil, upload.StoredFile{}, errors.Wrap(err, "getting b2 object attrs")
	}
	return obj.NewReader(ctx), storedFile(attrs), nil
}

func (s *B2Store) List(ctx context.Context) ([]upload.StoredFile, error) {
	files := make([]upload.StoredFile, 0)
	iter := s.bucket.List(ctx)
	for iter.Next() {
		attrs, err := iter.Object().Attrs(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "getting b2 object attrs")
		}
		files = append(files, storedFile(attrs))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "listing b2 objects")
	}
	return files, nil
}

func (s *B2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return upload.ErrNotFound
		}
		return errors.Wrap(err, "deleting b2 object")
	}
	return nil
}
