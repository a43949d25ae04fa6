package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/clickfit/clickfit/internal/model"
	"github.com/clickfit/clickfit/internal/validation"
)

// s3API is the subset of *s3.Client used here
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage implements Storage for S3-compatible object stores
// Works with AWS S3, MinIO, DigitalOcean Spaces, Cloudflare R2, etc.
type S3Storage struct {
	client      s3API
	bucket      string
	folder      string
	publicURL   string // Base URL for locators
	prefix      string
	timeout     time.Duration
	constraints validation.UploadConstraints
}

// S3Config holds configuration for S3 storage
type S3Config struct {
	Region      string
	Bucket      string
	AccessKey   string
	SecretKey   string
	Endpoint    string // Optional: for S3-compatible services
	Folder      string // Namespace for all objects
	PublicURL   string // Optional: overrides the derived public base URL
	Prefix      string
	Timeout     time.Duration // Per-call deadline
	Constraints validation.UploadConstraints
}

// NewS3Storage creates a new S3 storage instance and makes sure the bucket exists
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		// Failures surface to the caller as-is
		config.WithRetryMaxAttempts(1),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and some S3-compatible services
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return newS3Storage(ctx, client, cfg)
}

func newS3Storage(ctx context.Context, client s3API, cfg S3Config) (*S3Storage, error) {
	publicURL := cfg.PublicURL
	switch {
	case publicURL != "":
	case cfg.Endpoint == "":
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	default:
		publicURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	storage := &S3Storage{
		client:      client,
		bucket:      cfg.Bucket,
		folder:      strings.Trim(cfg.Folder, "/"),
		publicURL:   strings.TrimSuffix(publicURL, "/"),
		prefix:      cfg.Prefix,
		timeout:     cfg.Timeout,
		constraints: cfg.Constraints,
	}

	err := storage.ensureBucket(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return storage, nil
}

// ensureBucket checks if bucket exists, creates it if not
func (s *S3Storage) ensureBucket(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("%w: bucket %q does not exist and could not be created: %v", ErrRemote, s.bucket, err)
	}

	slog.Info("created S3 bucket", "bucket", s.bucket)
	return nil
}

func (s *S3Storage) Driver() string {
	return "s3"
}

// Put uploads the object. The body is buffered (bounded by the size limit) so the
// length is known up front and the limit is re-checked before any remote call.
func (s *S3Storage) Put(ctx context.Context, body io.Reader, originalName, mimeType string) (*model.Asset, error) {
	ext, err := extension(originalName, mimeType, s.constraints)
	if err != nil {
		return nil, err
	}

	limit := s.constraints.MaxSize
	data, err := io.ReadAll(io.LimitReader(ctxReader{ctx: ctx, r: body}, limit+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to read upload: %v", ErrIO, err)
	}
	if int64(len(data)) > limit {
		return nil, tooLarge(int64(len(data)), limit)
	}

	normalized := validation.NormalizeMimeType(mimeType)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for attempt := 0; ; attempt++ {
		identifier := newIdentifier(s.prefix, ext)
		key := s.key(identifier)

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(normalized),
			IfNoneMatch:   aws.String("*"), // Never overwrite an existing asset
		})
		if err == nil {
			return &model.Asset{
				Identifier:   identifier,
				OriginalName: originalName,
				MimeType:     normalized,
				Size:         int64(len(data)),
				URL:          s.locator(key),
				CreatedAt:    time.Now().UTC(),
			}, nil
		}
		if !isAPIError(err, "PreconditionFailed") || attempt+1 >= maxMintAttempts {
			return nil, fmt.Errorf("%w: failed to upload to S3: %v", ErrRemote, err)
		}
	}
}

// Delete removes the object. S3 deletes are silent for missing keys, so
// existence is checked first to report ErrNotFound. The delete is made
// conditional on the observed ETag; of two concurrent deletes only one
// matches, the other sees the key gone and reports ErrNotFound.
func (s *S3Storage) Delete(ctx context.Context, identifier string) error {
	if !validIdentifier(identifier) {
		return ErrNotFound
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.key(identifier)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: failed to stat object: %v", ErrRemote, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(key),
		IfMatch: head.ETag,
	})
	if isNotFound(err) || isAPIError(err, "PreconditionFailed") {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: failed to delete from S3: %v", ErrRemote, err)
	}

	return nil
}

func (s *S3Storage) List(ctx context.Context) ([]*model.Asset, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	prefix := ""
	if s.folder != "" {
		prefix = s.folder + "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	assets := []*model.Asset{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list objects: %v", ErrRemote, err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			name := strings.TrimPrefix(key, prefix)
			// Flat namespace: skip nested keys and foreign files
			if !validIdentifier(name) || !validation.HasAllowedExtension(name, s.constraints) {
				continue
			}

			assets = append(assets, &model.Asset{
				Identifier: name,
				Size:       aws.ToInt64(object.Size),
				URL:        s.locator(key),
				CreatedAt:  aws.ToTime(object.LastModified),
			})
		}
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})

	return assets, nil
}

func (s *S3Storage) Close() error {
	return nil
}

func (s *S3Storage) key(identifier string) string {
	if s.folder == "" {
		return identifier
	}
	return path.Join(s.folder, identifier)
}

func (s *S3Storage) locator(key string) string {
	return s.publicURL + "/" + key
}

func (s *S3Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	return isAPIError(err, "NotFound") || isAPIError(err, "NoSuchKey")
}

func isAPIError(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
