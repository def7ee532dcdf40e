package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const uploadPrefix = "form_uploads"

// LocalStore writes files under a media root on local disk.
type LocalStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewLocalStore creates the media root if needed.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: media root must be provided")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create media root: %w", err)
	}
	return &LocalStore{root: root, baseURL: baseURL, now: time.Now}, nil
}

// Save copies r into a new file and returns its key relative to the media root.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := ObjectKey(uploadPrefix, name, s.now())
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("storage: create dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	return key, nil
}

// Delete removes a stored file; missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL joins the reference onto the public media URL.
func (s *LocalStore) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return strings.TrimRight(s.baseURL, "/") + "/" + ref
}
