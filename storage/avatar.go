// Package storage holds the avatar storage collaborator. The service only
// knows an object key and gets back a public URL; contents are never inspected.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidKey is returned for keys that are empty, absolute or escape the store root.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrTooLarge is returned when an upload exceeds the store's size limit.
	ErrTooLarge = errors.New("object exceeds size limit")
)

// AvatarStore accepts binary uploads keyed by "{user_id}/avatar.{ext}".
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader) (publicURL string, err error)
}

// AvatarKey builds the object key for a user's avatar.
func AvatarKey(userID, ext string) string {
	return fmt.Sprintf("%s/avatar.%s", userID, strings.ToLower(ext))
}

// LocalStore writes objects below Dir and serves them under BaseURL.
type LocalStore struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

// NewLocalStore creates a LocalStore.
func NewLocalStore(dir, baseURL string, maxBytes int64) *LocalStore {
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes}
}

// Put replaces the object at key. The write goes to a temp file first so a
// failed upload never leaves a truncated avatar behind.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create avatar directory: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(dst), ".upload-"+uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	src := io.Reader(r)
	if s.MaxBytes > 0 {
		src = &io.LimitedReader{R: r, N: s.MaxBytes + 1}
	}
	written, copyErr := io.Copy(out, &ctxReader{ctx: ctx, r: src})
	closeErr := out.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr == nil && s.MaxBytes > 0 && written > s.MaxBytes {
		copyErr = ErrTooLarge
	}
	if copyErr != nil {
		_ = os.Remove(tmp)
		return "", copyErr
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return s.BaseURL + "/" + clean, nil
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || clean != key {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// ctxReader stops a copy once the request context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
