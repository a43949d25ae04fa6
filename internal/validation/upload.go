package validation

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidMediaType = errors.New("invalid media type")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

// UploadConstraints defines validation rules for uploads
type UploadConstraints struct {
	AllowedMimeTypes  map[string]string // MIME type -> canonical extension
	AllowedExtensions map[string]bool
	MaxSize           int64
}

// ImageConstraints defines validation rules for image uploads
var ImageConstraints = UploadConstraints{
	AllowedMimeTypes: map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg", // Non-standard alias sent by some browsers
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	},
	AllowedExtensions: map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".gif":  true,
		".webp": true,
	},
	MaxSize: 5 << 20, // 5MB
}

// WithMaxSize returns a copy of the constraints with a different size limit
func (c UploadConstraints) WithMaxSize(size int64) UploadConstraints {
	c.MaxSize = size
	return c
}

// UploadError is a structured rejection. Kind is ErrInvalidMediaType or ErrPayloadTooLarge.
type UploadError struct {
	Kind     error
	MimeType string // Offending type, for media type rejections
	Size     int64
	Limit    int64 // Configured limit, for size rejections
}

func (e *UploadError) Error() string {
	if errors.Is(e.Kind, ErrPayloadTooLarge) {
		return fmt.Sprintf("File is too large. Maximum size is %s.", HumanSize(e.Limit))
	}
	return fmt.Sprintf("Invalid file type %q. Only JPEG, PNG, GIF, and WebP images are allowed.", e.MimeType)
}

func (e *UploadError) Unwrap() error {
	return e.Kind
}

// ValidateUpload accepts iff the declared MIME type is allow-listed and size is within the limit.
// Size is checked first, so an oversized payload is rejected whatever its type.
func ValidateUpload(mimeType string, size int64, constraints UploadConstraints) error {
	if size < 0 || size > constraints.MaxSize {
		return &UploadError{Kind: ErrPayloadTooLarge, Size: size, Limit: constraints.MaxSize}
	}

	normalized := NormalizeMimeType(mimeType)
	if _, ok := constraints.AllowedMimeTypes[normalized]; !ok {
		return &UploadError{Kind: ErrInvalidMediaType, MimeType: mimeType}
	}

	return nil
}

// NormalizeMimeType lower-cases the type and drops parameters ("image/PNG; q=1" -> "image/png")
func NormalizeMimeType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

// ExtensionFor picks the stored file extension. The client name only contributes its
// extension, and only if allow-listed; otherwise the MIME type's canonical extension is used.
func ExtensionFor(originalName, mimeType string, constraints UploadConstraints) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if constraints.AllowedExtensions[ext] {
		return ext
	}
	return constraints.AllowedMimeTypes[NormalizeMimeType(mimeType)]
}

// HasAllowedExtension reports whether a stored name carries an allow-listed extension
func HasAllowedExtension(name string, constraints UploadConstraints) bool {
	return constraints.AllowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// HumanSize formats a byte count as "5MB", "512KB" or "100 bytes"
func HumanSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
