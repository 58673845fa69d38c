// Package storage archives uploaded evidence so a reviewer can retrieve the
// exact bytes an extraction run was computed from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/merchant-intake/internal/common"
)

const (
	TypeNone  = "none"
	TypeLocal = "local"
	TypeGCS   = "gcs"
)

// ErrObjectNotFound wraps common.ErrNotFound for missing keys.
var ErrObjectNotFound = fmt.Errorf("object: %w", common.ErrNotFound)

// DocumentStore is implemented by LocalStore and GCSStore.
type DocumentStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds sessions/<session>/<target>/<unix>_<file>.
func ObjectKey(sessionID, target, fileName string, at time.Time) string {
	name := unsafeChars.ReplaceAllString(path.Base(fileName), "_")
	if name == "" || name == "." || name == "_" {
		name = "document"
	}
	target = unsafeChars.ReplaceAllString(target, "_")
	return fmt.Sprintf("sessions/%s/%s/%d_%s", sessionID, target, at.Unix(), name)
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("object key %q: %w", key, common.ErrInvalidInput)
	}
	return nil
}

// Config selects a backend.
type Config struct {
	Type           string
	LocalPath      string
	GCSBucket      string
	GCSProjectID   string
	GCSCredentials string
}

// New returns nil and no error for TypeNone.
func New(ctx context.Context, cfg Config) (DocumentStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeNone:
		return nil, nil
	case TypeLocal:
		st, err := NewLocalStore(cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case TypeGCS:
		st, err := NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSProjectID, cfg.GCSCredentials)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, errors.New("unknown storage type: " + cfg.Type)
	}
}
