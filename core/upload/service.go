package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("file")
	ErrEmptyFile = core.NewFieldError("file", errors.New("the file is empty"))

	NowFunc   = time.Now     // mockable
	randFloat = rand.Float64 // mockable
)

type (
	// FileStore keeps the uploaded files.
	FileStore interface {
		Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
		Open(ctx context.Context, key string) (io.ReadCloser, StoredFile, error)
		List(ctx context.Context) ([]StoredFile, error)
		Delete(ctx context.Context, key string) error
	}

	Repository interface {
		// ReferencedKeys returns those of keys that a submission file URL or a material content URL ends with,
		// whatever the host or prefix the URL was saved with.
		ReferencedKeys(ctx context.Context, keys []string) ([]string, error)
	}

	Service interface {
		Upload(ctx context.Context, owner user.User, nu NewUpload) (Upload, error)
		Open(ctx context.Context, key string) (io.ReadCloser, StoredFile, error)
		// Sweep removes the stale files no submission or material refers to.
		Sweep(ctx context.Context) (SweepResult, error)
		URL(key string) string
		// Wait blocks until the background sweeps are done.
		Wait()
	}

	service struct {
		store            FileStore
		repo             Repository
		logger           core.Logger
		urlPrefix        string
		maxSize          int64
		maxAge           time.Duration
		sweepProbability float64

		sweeping int32 // atomic
		wg       sync.WaitGroup
	}
)

var _ Service = (*service)(nil)

func NewService(store FileStore, repo Repository, logger core.Logger, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		store:            store,
		repo:             repo,
		logger:           logger,
		urlPrefix:        conf.Uploads.URLPrefix,
		maxSize:          conf.Uploads.MaxSize,
		maxAge:           conf.Uploads.MaxAge,
		sweepProbability: conf.Uploads.SweepProbability,
	}
}

func (svc *service) URL(key string) string {
	return svc.urlPrefix + key
}

func (svc *service) newKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return NowFunc().UTC().Format("2006/01") + "/" + uuid.New().String() + ext
}

func detectContentType(filename, declared string, body io.Reader) (string, io.Reader, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, body, nil
	}
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct, body, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), body), nil
}

func (svc *service) Upload(ctx context.Context, owner user.User, nu NewUpload) (Upload, error) {
	if nu.Size <= 0 || nu.Body == nil {
		return Upload{}, ErrEmptyFile
	}
	if svc.maxSize > 0 && nu.Size > svc.maxSize {
		return Upload{}, core.NewFieldError("file", fmt.Errorf(
			"the file is too large (%s), the maximum size is %s",
			humanize.IBytes(uint64(nu.Size)), humanize.IBytes(uint64(svc.maxSize)),
		))
	}

	filename := path.Base(strings.ReplaceAll(core.CleanString(nu.Filename), `\`, "/"))
	if filename == "." || filename == "/" {
		filename = "file"
	}
	contentType, body, err := detectContentType(filename, nu.ContentType, nu.Body)
	if err != nil {
		return Upload{}, errors.Wrap(err, "reading upload")
	}

	key := svc.newKey(filename)
	if err = svc.store.Save(ctx, key, io.LimitReader(body, nu.Size), nu.Size, contentType); err != nil {
		return Upload{}, errors.Wrap(err, "storing upload")
	}
	svc.logger.Info(fmt.Sprintf("stored upload %s (%s)", key, humanize.IBytes(uint64(nu.Size))), owner)

	svc.maybeSweep()

	return Upload{
		Key:         key,
		URL:         svc.URL(key),
		Filename:    filename,
		ContentType: contentType,
		Size:        nu.Size,
	}, nil
}

// maybeSweep starts a background sweep with probability sweepProbability, unless one is already running.
func (svc *service) maybeSweep() {
	if svc.sweepProbability <= 0 || randFloat() >= svc.sweepProbability {
		return
	}
	if !atomic.CompareAndSwapInt32(&svc.sweeping, 0, 1) {
		return
	}

	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		defer atomic.StoreInt32(&svc.sweeping, 0)

		// detached from the request: it must outlive it
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		res, err := svc.sweep(ctx)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("sweeping uploads: %v", err), err)
			return
		}
		if res.Removed > 0 {
			svc.logger.Info(fmt.Sprintf("swept %d stale uploads out of %d", res.Removed, res.Scanned))
		}
	}()
}

func (svc *service) Open(ctx context.Context, key string) (io.ReadCloser, StoredFile, error) {
	key, ok := CleanKey(key)
	if !ok {
		return nil, StoredFile{}, ErrNotFound
	}
	return svc.store.Open(ctx, key)
}

func (svc *service) Sweep(ctx context.Context) (SweepResult, error) {
	if !atomic.CompareAndSwapInt32(&svc.sweeping, 0, 1) {
		return SweepResult{}, core.NewConflictError("a sweep is already running")
	}
	defer atomic.StoreInt32(&svc.sweeping, 0)
	return svc.sweep(ctx)
}

func (svc *service) Wait() {
	svc.wg.Wait()
}

func (svc *service) sweep(ctx context.Context) (SweepResult, error) {
	files, err := svc.store.List(ctx)
	if err != nil {
		return SweepResult{}, errors.Wrap(err, "listing uploads")
	}
	res := SweepResult{Scanned: len(files)}

	cutoff := NowFunc().Add(-svc.maxAge)
	stale := make(map[string]bool)
	keys := make([]string, 0)
	for _, f := range files {
		if f.ModTime.Before(cutoff) {
			stale[f.Key] = true
			keys = append(keys, f.Key)
		}
	}
	if len(keys) == 0 {
		return res, nil
	}

	referenced, err := svc.repo.ReferencedKeys(ctx, keys)
	if err != nil {
		return res, errors.Wrap(err, "finding referenced uploads")
	}
	for _, key := range referenced {
		delete(stale, key)
	}

	for key := range stale {
		if err = svc.store.Delete(ctx, key); err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return res, errors.Wrap(err, fmt.Sprintf("deleting upload %s", key))
		}
		res.Removed++
	}
	return res, nil
}
