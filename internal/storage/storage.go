// Package storage keeps rendered invoice files in object storage.
package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no object storage backend is set up.
var ErrNotConfigured = errors.New("object storage is not configured")

// UploadOptions name the stored object.
type UploadOptions struct {
	PublicID     string // object name without folder or extension
	ResourceType string // raw, image
	Format       string // file extension, e.g. pdf
	ContentType  string
}

// UploadResult points at a stored object.
type UploadResult struct {
	PublicID     string
	URL          string
	SecureURL    string
	Bytes        int64
	ResourceType string
	Format       string
}

// ObjectStorage uploads and destroys files.
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error)
	Destroy(ctx context.Context, publicID, resourceType string) error
}

// Unconfigured fails every call. It stands in when no bucket is set.
type Unconfigured struct{}

func (Unconfigured) Upload(context.Context, []byte, UploadOptions) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Destroy(context.Context, string, string) error {
	return ErrNotConfigured
}
