package upload

import (
	"io"
	"path"
	"strings"
	"time"
)

// Upload is a file stored for later reference by submissions & materials.
type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type NewUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StoredFile describes a file kept by a FileStore.
type StoredFile struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

type SweepResult struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
}

// CleanKey normalizes a store key and reports whether it is safe to use.
func CleanKey(key string) (string, bool) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// RefersTo reports whether url points at the upload stored under key, whatever its host or prefix.
func RefersTo(url, key string) bool {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return key != "" && strings.HasSuffix(url, key)
}
