package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyKeepsExtension(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	key := ObjectKey("form_uploads", "Proof Of_Income.PDF", now)

	assert.True(t, strings.HasPrefix(key, "form_uploads/20260102/"), key)
	assert.True(t, strings.HasSuffix(key, "-proof-of-income.pdf"), key)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "/media/")
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), strings.NewReader("payslip"), "payslip.txt")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ref)))
	require.NoError(t, err)
	assert.Equal(t, "payslip", string(data))
	assert.Equal(t, "/media/"+ref, store.URL(ref))

	require.NoError(t, store.Delete(context.Background(), ref))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(ref)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(context.Background(), ref))
}

func TestNewLocalStoreRequiresRoot(t *testing.T) {
	_, err := NewLocalStore(" ", "/media/")
	assert.Error(t, err)
}

func TestNewOSSStoreRequiresCredentials(t *testing.T) {
	_, err := NewOSSStore(OSSConfig{Endpoint: "oss-cn-hangzhou.aliyuncs.com"})
	assert.Error(t, err)
}
