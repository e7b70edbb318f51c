// Package storage keeps photo bytes in an object store.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectStore is the contract the services depend on.
type ObjectStore interface {
	// Put stores r and returns the generated key. keyHint carries the
	// folder and file extension, e.g. "users/12/selfie.jpg".
	Put(ctx context.Context, r io.Reader, size int64, contentType, keyHint string) (string, error)
	Delete(ctx context.Context, key string) error
	// URL is the public address of key.
	URL(key string) string
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewKey turns a hint into a unique object key that keeps the hint's
// folder and extension.
func NewKey(keyHint string) string {
	dir, file := path.Split(strings.TrimLeft(keyHint, "/"))
	ext := strings.ToLower(path.Ext(file))
	if dir == "" {
		dir = "photos/"
	}
	return dir + uuid.NewString() + ext
}

// JoinURL joins base and key with exactly one slash.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
