package filestore

import (
	"context"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/upload"
)

const (
	thumbSuffix = "_thumb.jpg"
	thumbSize   = 300
)

// DiskStore keeps the uploads under a local directory, along thumbnails of the images.
type DiskStore struct {
	dir    string
	logger core.Logger
}

var _ upload.FileStore = (*DiskStore)(nil)

func NewDiskStore(dir string, logger core.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	return &DiskStore{dir: dir, logger: logger}, nil
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

// ThumbKey returns the key of the thumbnail of the image stored under key.
func ThumbKey(key string) string {
	return strings.TrimSuffix(key, path.Ext(key)) + thumbSuffix
}

func isThumb(key string) bool {
	return strings.HasSuffix(key, thumbSuffix)
}

func (s *DiskStore) Save(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp := s.path(key)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating upload dir")
	}

	// write aside then rename: a half-written file is never listed
	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating upload file")
	}
	defer os.Remove(tmp.Name())
	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing upload file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing upload file")
	}
	if err = os.Rename(tmp.Name(), fp); err != nil {
		return errors.Wrap(err, "moving upload file")
	}

	if strings.HasPrefix(contentType, "image/") {
		if err = s.makeThumb(key); err != nil && s.logger != nil {
			s.logger.Warn("creating thumbnail of "+key, err)
		}
	}
	return nil
}

func (s *DiskStore) makeThumb(key string) error {
	img, err := imaging.Open(s.path(key))
	if err != nil {
		return err
	}
	thumb := imaging.Fit(img, thumbSize, thumbSize, imaging.Lanczos)
	return imaging.Save(thumb, s.path(ThumbKey(key)), imaging.JPEGQuality(85))
}

func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, upload.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, upload.StoredFile{}, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, upload.StoredFile{}, upload.ErrNotFound
		}
		return nil, upload.StoredFile{}, errors.Wrap(err, "opening upload file")
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, upload.StoredFile{}, errors.Wrap(err, "reading upload file")
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, upload.StoredFile{}, upload.ErrNotFound
	}
	return f, s.storedFile(key, fi), nil
}

func (s *DiskStore) storedFile(key string, fi fs.FileInfo) upload.StoredFile {
	ct := mime.TypeByExtension(strings.ToLower(path.Ext(key)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return upload.StoredFile{Key: key, Size: fi.Size(), ContentType: ct, ModTime: fi.ModTime().UTC()}
}

// List returns the stored uploads; thumbnails are not listed.
func (s *DiskStore) List(ctx context.Context) ([]upload.StoredFile, error) {
	files := make([]upload.StoredFile, 0)
	err := filepath.WalkDir(s.dir, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, fp)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if isThumb(key) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, s.storedFile(key, fi))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing upload files")
	}
	return files, nil
}

// Delete removes the file under key & its thumbnail.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return upload.ErrNotFound
		}
		return errors.Wrap(err, "deleting upload file")
	}
	if err := os.Remove(s.path(ThumbKey(key))); err != nil && !os.IsNotExist(err) && s.logger != nil {
		s.logger.Warn("deleting thumbnail of "+key, err)
	}
	return nil
}
