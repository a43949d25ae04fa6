package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/clickfit/clickfit/internal/model"
	"github.com/clickfit/clickfit/internal/validation"
)

const tempPrefix = ".upload-"

type LocalConfig struct {
	Dir         string
	Route       string // Public path segment, locators are "/<Route>/<identifier>"
	Prefix      string
	Constraints validation.UploadConstraints
}

// LocalStorage keeps assets as flat files in one directory. All access goes
// through an os.Root, so no name can resolve outside the upload root.
type LocalStorage struct {
	root        *os.Root
	dir         string
	route       string
	prefix      string
	constraints validation.UploadConstraints
}

// NewLocalStorage creates the upload directory if absent and opens it
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	err := os.MkdirAll(cfg.Dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload directory: %w", err)
	}

	return &LocalStorage{
		root:        root,
		dir:         cfg.Dir,
		route:       strings.Trim(cfg.Route, "/"),
		prefix:      cfg.Prefix,
		constraints: cfg.Constraints,
	}, nil
}

func (s *LocalStorage) Driver() string {
	return "local"
}

// Dir returns the upload root on disk
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Put(ctx context.Context, body io.Reader, originalName, mimeType string) (*model.Asset, error) {
	ext, err := extension(originalName, mimeType, s.constraints)
	if err != nil {
		return nil, err
	}

	// Bytes land in a hidden temp file first; listing skips it and it is
	// removed on every exit path, so a failed write never becomes resolvable.
	tmpName := tempPrefix + uuid.NewString() + ".tmp"
	f, err := s.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create file: %v", ErrIO, err)
	}
	defer func() {
		rmErr := s.root.Remove(tmpName)
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("failed to remove temp upload", "file", tmpName, "error", rmErr)
		}
	}()

	limit := s.constraints.MaxSize
	size, err := io.Copy(f, io.LimitReader(ctxReader{ctx: ctx, r: body}, limit+1))
	closeErr := f.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to write file: %v", ErrIO, err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: failed to write file: %v", ErrIO, closeErr)
	}
	if size > limit {
		return nil, tooLarge(size, limit)
	}

	// Link fails if the name exists, so a collision is re-minted, never overwritten
	var identifier string
	for attempt := 0; ; attempt++ {
		identifier = newIdentifier(s.prefix, ext)
		err = s.root.Link(tmpName, identifier)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || attempt+1 >= maxMintAttempts {
			return nil, fmt.Errorf("%w: failed to store file: %v", ErrIO, err)
		}
	}

	info, err := s.root.Stat(identifier)
	if err != nil {
		_ = s.root.Remove(identifier)
		return nil, fmt.Errorf("%w: failed to stat file: %v", ErrIO, err)
	}

	return &model.Asset{
		Identifier:   identifier,
		OriginalName: originalName,
		MimeType:     validation.NormalizeMimeType(mimeType),
		Size:         info.Size(),
		URL:          s.locator(identifier),
		CreatedAt:    info.ModTime(),
	}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, identifier string) error {
	if !validIdentifier(identifier) {
		return ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := s.root.Lstat(identifier)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !info.Mode().IsRegular() {
		return ErrNotFound
	}

	err = s.root.Remove(identifier)
	if errors.Is(err, fs.ErrNotExist) {
		// Lost a race with a concurrent delete
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: failed to delete file: %v", ErrIO, err)
	}

	return nil
}

func (s *LocalStorage) List(ctx context.Context) ([]*model.Asset, error) {
	entries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload directory: %v", ErrIO, err)
	}

	assets := make([]*model.Asset, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if !validation.HasAllowedExtension(name, s.constraints) {
			continue
		}

		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // deleted since ReadDir
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to stat %s: %v", ErrIO, name, err)
		}

		assets = append(assets, &model.Asset{
			Identifier: name,
			Size:       info.Size(),
			URL:        s.locator(name),
			CreatedAt:  info.ModTime(),
		})
	}

	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].Identifier < assets[j].Identifier
		}
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})

	return assets, nil
}

func (s *LocalStorage) Close() error {
	return s.root.Close()
}

func (s *LocalStorage) locator(identifier string) string {
	return path.Join("/", s.route, identifier)
}
