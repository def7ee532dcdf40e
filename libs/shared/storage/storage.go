package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists uploaded file bytes and hands back a durable reference.
type Store interface {
	Save(ctx context.Context, r io.Reader, name string) (string, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

// ObjectKey builds a collision-free key for a suggested file name, keeping the
// original extension: form_uploads/20260102/<uuid>-<slug>.pdf
func ObjectKey(prefix, name string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := slugify(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))

	key := fmt.Sprintf("%s/%s-%s%s", now.UTC().Format("20060102"), uuid.NewString(), base, ext)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return "file"
	}
	return s
}
