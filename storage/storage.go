package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"learningcenter_go/config"
)

// maxSuffix bounds the _N search for a free name.
const maxSuffix = 10000

var ErrNoFreeName = errors.New("no free file name")

// UploadStore keeps uploaded import files. Save never overwrites: when the
// name is taken it appends _1, _2, ... before the extension.
type UploadStore interface {
	Save(ctx context.Context, dir, name string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
	Backend() string
}

// New picks the backend named by UPLOAD_BACKEND.
func New(cfg *config.Config) (UploadStore, error) {
	switch cfg.UploadBackend {
	case "s3":
		return NewS3Store(cfg)
	default:
		return NewLocalStore(cfg.UploadDir), nil
	}
}

// StudentFolder is where import files for one class are kept.
func StudentFolder(schoolID, classID uint) string {
	return fmt.Sprintf("students/%d/%d", schoolID, classID)
}

// candidateName returns name for n == 0 and base_n.ext afterwards.
func candidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%d%s", base, n, ext)
}

func getContentType(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
