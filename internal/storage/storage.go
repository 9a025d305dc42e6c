package storage

import (
	"context"
	"io"
	"time"
)

// Uploader stores a finished recording and returns where it lives.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// Signer mints a time-limited download URL for a stored recording.
type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
