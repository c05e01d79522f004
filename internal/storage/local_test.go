package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(config.Config{UploadDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestSaveAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	public, err := store.Save(ctx, "Bank Transfer Receipt.PNG", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(public, "/uploads/vouchers/"))
	assert.True(t, strings.HasSuffix(public, "-bank-transfer-receipt.png"))

	onDisk := filepath.Join(store.Root(), "vouchers", filepath.Base(public))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	require.NoError(t, store.Remove(ctx, public))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// second removal is a no-op
	assert.NoError(t, store.Remove(ctx, public))
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	a, err := store.Save(ctx, "voucher.jpg", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Save(ctx, "voucher.jpg", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRemoveRejectsPathsOutsideUploads(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, p := range []string{"/etc/passwd", "/uploads/../secret", "relative.png", "/uploads"} {
		assert.ErrorIs(t, store.Remove(ctx, p), ErrInvalidPath, p)
	}
}

func TestStoredNameWithoutStem(t *testing.T) {
	name := storedName(".png")
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotContains(t, name, "-")
}
