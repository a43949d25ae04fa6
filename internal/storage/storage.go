// Package storage persists uploaded assets behind one interface with two
// strategies: the local filesystem and an S3-compatible object store.
// The strategy is chosen once at startup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/clickfit/clickfit/internal/config"
	"github.com/clickfit/clickfit/internal/model"
	"github.com/clickfit/clickfit/internal/validation"
)

var (
	ErrNotFound = errors.New("file not found")
	ErrIO       = errors.New("storage i/o error")
	ErrRemote   = errors.New("remote storage error")
)

// maxMintAttempts bounds identifier re-minting when a name is already taken
const maxMintAttempts = 5

// Storage defines the asset persistence operations
type Storage interface {
	// Put streams body into the store under a freshly minted identifier.
	// No identifier is returned unless every byte was persisted.
	Put(ctx context.Context, body io.Reader, originalName, mimeType string) (*model.Asset, error)

	// Delete removes the asset; a missing identifier yields ErrNotFound
	Delete(ctx context.Context, identifier string) error

	// List enumerates stored assets, reading the backing store on every call
	List(ctx context.Context) ([]*model.Asset, error)

	// Driver names the strategy ("local" or "s3")
	Driver() string

	Close() error
}

// New creates the storage strategy selected by STORAGE_DRIVER
func New(c *config.Config, observer Observer) (Storage, error) {
	constraints := validation.ImageConstraints.WithMaxSize(c.Upload.MaxSize)

	var (
		store Storage
		err   error
	)
	switch c.Storage.Driver {
	case config.StorageDriverLocal:
		slog.Info("initializing local storage", "dir", c.Upload.Dir, "route", c.Upload.PublicRoute())
		store, err = NewLocalStorage(LocalConfig{
			Dir:         c.Upload.Dir,
			Route:       c.Upload.PublicRoute(),
			Prefix:      c.Upload.Prefix,
			Constraints: constraints,
		})
	case config.StorageDriverS3:
		slog.Info("initializing S3 storage",
			"bucket", c.S3.Bucket,
			"region", c.S3.Region,
			"endpoint", c.S3.Endpoint,
			"folder", c.S3.Folder,
		)
		store, err = NewS3Storage(context.Background(), S3Config{
			Region:      c.S3.Region,
			Bucket:      c.S3.Bucket,
			AccessKey:   c.S3.AccessKey,
			SecretKey:   c.S3.SecretKey,
			Endpoint:    c.S3.Endpoint,
			Folder:      c.S3.Folder,
			PublicURL:   c.S3.PublicURL,
			Prefix:      c.Upload.Prefix,
			Timeout:     c.Storage.Timeout,
			Constraints: constraints,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	return Instrument(store, observer), nil
}

// Files returns a read-only view of stored assets confined to the upload
// root. It reports false for strategies without local files.
func Files(s Storage) (fs.FS, bool) {
	if i, ok := s.(*instrumented); ok {
		s = i.Storage
	}
	local, ok := s.(*LocalStorage)
	if !ok {
		return nil, false
	}
	return local.root.FS(), true
}

// newIdentifier mints "<prefix>-<epochMillis>-<rand 0..1e9><ext>"
func newIdentifier(prefix, ext string) string {
	return fmt.Sprintf("%s-%d-%d%s", prefix, time.Now().UnixMilli(), rand.IntN(1e9), ext)
}

// validIdentifier accepts a single visible path element only
func validIdentifier(identifier string) bool {
	if identifier == "" || strings.HasPrefix(identifier, ".") {
		return false
	}
	if strings.ContainsAny(identifier, `/\`) {
		return false
	}
	return filepath.IsLocal(identifier)
}

// ctxReader stops a copy once the request context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// extension re-checks the declared type and picks the stored extension
func extension(originalName, mimeType string, c validation.UploadConstraints) (string, error) {
	if _, ok := c.AllowedMimeTypes[validation.NormalizeMimeType(mimeType)]; !ok {
		return "", invalidType(mimeType)
	}
	return validation.ExtensionFor(originalName, mimeType, c), nil
}

func tooLarge(size, limit int64) error {
	return &validation.UploadError{Kind: validation.ErrPayloadTooLarge, Size: size, Limit: limit}
}

func invalidType(mimeType string) error {
	return &validation.UploadError{Kind: validation.ErrInvalidMediaType, MimeType: mimeType}
}
