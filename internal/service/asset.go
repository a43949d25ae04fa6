package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/clickfit/clickfit/internal/model"
	"github.com/clickfit/clickfit/internal/storage"
	"github.com/clickfit/clickfit/internal/validation"
)

var (
	ErrNoFileProvided = errors.New("no file uploaded")
	ErrTooManyFiles   = errors.New("too many files")
)

// batchConcurrency caps parallel adapter writes within one batch request
const batchConcurrency = 4

// UploadInput is one received file. Size is the byte length reported by the
// transport; the adapter re-checks it while streaming Body.
type UploadInput struct {
	Body         io.Reader
	OriginalName string
	MimeType     string
	Size         int64
}

// UploadResult is the outcome for one file of a batch. Exactly one of Asset
// and Err is set.
type UploadResult struct {
	OriginalName string
	Asset        *model.Asset
	Err          error
}

type AssetService struct {
	storage     storage.Storage
	constraints validation.UploadConstraints
	maxFiles    int
}

func NewAssetService(storage storage.Storage, constraints validation.UploadConstraints, maxFiles int) *AssetService {
	return &AssetService{
		storage:     storage,
		constraints: constraints,
		maxFiles:    maxFiles,
	}
}

// Upload validates the declared type and size, then persists the bytes.
// Nothing reaches the adapter unless validation passes.
func (s *AssetService) Upload(ctx context.Context, in UploadInput) (*model.Asset, error) {
	if in.Body == nil {
		return nil, ErrNoFileProvided
	}

	err := validation.ValidateUpload(in.MimeType, in.Size, s.constraints)
	if err != nil {
		slog.Debug("upload rejected", "originalname", in.OriginalName, "mimetype", in.MimeType, "size", in.Size, "error", err)
		return nil, err
	}

	asset, err := s.storage.Put(ctx, in.Body, in.OriginalName, in.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store %q: %w", in.OriginalName, err)
	}

	slog.Info("file uploaded", "filename", asset.Identifier, "originalname", in.OriginalName, "size", asset.Size, "driver", s.storage.Driver())
	return asset, nil
}

// UploadBatch handles each file independently; one failure does not abort
// the others and successes are never rolled back. Results keep request order.
func (s *AssetService) UploadBatch(ctx context.Context, inputs []UploadInput) ([]UploadResult, error) {
	if len(inputs) == 0 {
		return nil, ErrNoFileProvided
	}
	if len(inputs) > s.maxFiles {
		return nil, fmt.Errorf("%w: got %d, maximum is %d", ErrTooManyFiles, len(inputs), s.maxFiles)
	}

	results := make([]UploadResult, len(inputs))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			asset, err := s.Upload(ctx, in)
			results[i] = UploadResult{OriginalName: in.OriginalName, Asset: asset, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *AssetService) Delete(ctx context.Context, identifier string) error {
	err := s.storage.Delete(ctx, identifier)
	if err != nil {
		return err
	}
	slog.Info("file deleted", "filename", identifier, "driver", s.storage.Driver())
	return nil
}

func (s *AssetService) List(ctx context.Context) ([]*model.Asset, error) {
	return s.storage.List(ctx)
}

// Driver names the active storage strategy
func (s *AssetService) Driver() string {
	return s.storage.Driver()
}

// MaxFiles is the batch size limit
func (s *AssetService) MaxFiles() int {
	return s.maxFiles
}

// MaxSize is the per-file size limit in bytes
func (s *AssetService) MaxSize() int64 {
	return s.constraints.MaxSize
}
