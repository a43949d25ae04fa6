package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/clickfit/clickfit/internal/validation"
)

var identifierPattern = regexp.MustCompile(`^fitness-\d+-\d{1,9}\.(jpg|jpeg|png|gif|webp)$`)

func setupLocalStorage(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "upload_images")
	store, err := NewLocalStorage(LocalConfig{
		Dir:         dir,
		Route:       "upload_images",
		Prefix:      "fitness",
		Constraints: validation.ImageConstraints,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestNewLocalStorageCreatesDirIdempotently(t *testing.T) {
	store, dir := setupLocalStorage(t)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, store.Dir())

	again, err := NewLocalStorage(LocalConfig{Dir: dir, Prefix: "fitness", Constraints: validation.ImageConstraints})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestLocalPutRoundTrip(t *testing.T) {
	store, dir := setupLocalStorage(t)
	data := []byte("\x89PNG\r\n\x1a\nfake image bytes")

	asset, err := store.Put(context.Background(), bytes.NewReader(data), "photo.png", "image/png")
	require.NoError(t, err)

	assert.Regexp(t, identifierPattern, asset.Identifier)
	assert.True(t, strings.HasSuffix(asset.Identifier, ".png"))
	assert.Equal(t, "/upload_images/"+asset.Identifier, asset.URL)
	assert.Equal(t, int64(len(data)), asset.Size)
	assert.Equal(t, "photo.png", asset.OriginalName)
	assert.Equal(t, "image/png", asset.MimeType)
	assert.False(t, asset.CreatedAt.IsZero())

	stored, err := os.ReadFile(filepath.Join(dir, asset.Identifier))
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	// Only the final file remains, no temp leftovers
	assert.Equal(t, []string{asset.Identifier}, dirNames(t, dir))
}

func TestLocalPutIgnoresClientPath(t *testing.T) {
	store, dir := setupLocalStorage(t)

	asset, err := store.Put(context.Background(), strings.NewReader("gif"), "../../../etc/evil.gif", "image/gif")
	require.NoError(t, err)

	assert.Regexp(t, identifierPattern, asset.Identifier)
	_, err = os.Stat(filepath.Join(dir, asset.Identifier))
	assert.NoError(t, err)
}

func TestLocalPutUsesMimeExtensionForForeignNames(t *testing.T) {
	store, _ := setupLocalStorage(t)

	asset, err := store.Put(context.Background(), strings.NewReader("x"), "payload.php", "image/webp")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(asset.Identifier, ".webp"))
}

func TestLocalPutRejectsUnknownType(t *testing.T) {
	store, dir := setupLocalStorage(t)

	_, err := store.Put(context.Background(), strings.NewReader("hello"), "notes.txt", "text/plain")
	require.ErrorIs(t, err, validation.ErrInvalidMediaType)
	assert.Empty(t, dirNames(t, dir))
}

func TestLocalPutRejectsDisguisedType(t *testing.T) {
	store, dir := setupLocalStorage(t)

	_, err := store.Put(context.Background(), strings.NewReader("hello"), "notes.png", "text/plain")
	require.ErrorIs(t, err, validation.ErrInvalidMediaType)
	assert.Empty(t, dirNames(t, dir))
}

func TestLocalPutRechecksSize(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(LocalConfig{
		Dir:         dir,
		Route:       "upload_images",
		Prefix:      "fitness",
		Constraints: validation.ImageConstraints.WithMaxSize(16),
	})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Put(context.Background(), bytes.NewReader(make([]byte, 17)), "big.jpg", "image/jpeg")
	require.ErrorIs(t, err, validation.ErrPayloadTooLarge)
	assert.Empty(t, dirNames(t, dir))

	asset, err := store.Put(context.Background(), bytes.NewReader(make([]byte, 16)), "ok.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(16), asset.Size)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLocalPutFailureLeavesNothingBehind(t *testing.T) {
	store, dir := setupLocalStorage(t)

	asset, err := store.Put(context.Background(), failingReader{}, "photo.png", "image/png")
	require.ErrorIs(t, err, ErrIO)
	assert.Nil(t, asset)
	assert.Empty(t, dirNames(t, dir))
}

func TestLocalPutCanceledContext(t *testing.T) {
	store, dir := setupLocalStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, strings.NewReader("data"), "photo.png", "image/png")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirNames(t, dir))
}

func TestLocalDeleteTwice(t *testing.T) {
	store, dir := setupLocalStorage(t)
	ctx := context.Background()

	asset, err := store.Put(ctx, strings.NewReader("jpeg"), "photo.jpg", "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, asset.Identifier))
	assert.ErrorIs(t, store.Delete(ctx, asset.Identifier), ErrNotFound)
	assert.Empty(t, dirNames(t, dir))
}

func TestLocalDeleteMissing(t *testing.T) {
	store, _ := setupLocalStorage(t)
	assert.ErrorIs(t, store.Delete(context.Background(), "does-not-exist.png"), ErrNotFound)
}

func TestLocalDeleteRejectsTraversal(t *testing.T) {
	store, dir := setupLocalStorage(t)
	outside := filepath.Join(filepath.Dir(dir), "secret.png")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0755))

	for _, identifier := range []string{"../secret.png", "..", ".", "", "a/b.png", `..\secret.png`, "/etc/passwd", ".upload-x.tmp", "nested.png"} {
		t.Run(identifier, func(t *testing.T) {
			assert.ErrorIs(t, store.Delete(context.Background(), identifier), ErrNotFound)
		})
	}

	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

func TestLocalConcurrentPutsAreUnique(t *testing.T) {
	store, dir := setupLocalStorage(t)
	const n = 1000

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{}, n)
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(100) // Stay well under the open file limit
	for i := 0; i < n; i++ {
		g.Go(func() error {
			asset, err := store.Put(ctx, strings.NewReader("same bytes"), "photo.png", "image/png")
			if err != nil {
				return err
			}
			mu.Lock()
			ids[asset.Identifier] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, ids, n)
	assert.Len(t, dirNames(t, dir), n)
}

func TestLocalListAfterPutsAndDeletes(t *testing.T) {
	store, dir := setupLocalStorage(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		asset, err := store.Put(ctx, strings.NewReader("img"), "photo.png", "image/png")
		require.NoError(t, err)
		ids = append(ids, asset.Identifier)
	}
	require.NoError(t, store.Delete(ctx, ids[1]))
	require.NoError(t, store.Delete(ctx, ids[3]))

	// Foreign files are not assets
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".upload-stale.tmp"), []byte("x"), 0644))

	assets, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	var listed []string
	for _, asset := range assets {
		listed = append(listed, asset.Identifier)
		assert.Equal(t, int64(3), asset.Size)
		assert.Equal(t, "/upload_images/"+asset.Identifier, asset.URL)
	}
	assert.ElementsMatch(t, []string{ids[0], ids[2], ids[4]}, listed)
}

func TestLocalListEmpty(t *testing.T) {
	store, _ := setupLocalStorage(t)
	assets, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, validIdentifier("fitness-1700000000000-123.png"))
	assert.False(t, validIdentifier("../x.png"))
	assert.False(t, validIdentifier("dir/x.png"))
	assert.False(t, validIdentifier(".hidden.png"))
	assert.False(t, validIdentifier(""))
}
