package storage

import (
	"context"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

type disabledUploader struct{}

// NewDisabledUploader is used when object storage credentials are absent:
// uploads fail with a clear error instead of a nil dereference, reads
// degrade to empty URLs.
func NewDisabledUploader() FileUploader { return disabledUploader{} }

func (disabledUploader) Upload(context.Context, string, string, io.Reader) (*UploadResult, error) {
	return nil, ErrStorageDisabled
}

func (disabledUploader) Delete(context.Context, string) error { return ErrStorageDisabled }

func (disabledUploader) GetPublicURL(string) string { return "" }
