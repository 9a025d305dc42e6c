package storage

import (
	"context"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSArchive keeps exam recordings in a private bucket. Candidates reach
// clips through signed URLs, never public ACLs.
type GCSArchive struct {
	client *gcs.Client
	bucket string
}

func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSArchive{client: c, bucket: bucket}, nil
}

func (a *GCSArchive) Close() error { return a.client.Close() }

func (a *GCSArchive) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	obj := a.client.Bucket(a.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	return "gs://" + a.bucket + "/" + objectName, nil
}

func (a *GCSArchive) SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	return a.client.Bucket(a.bucket).SignedURL(objectName, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  gcs.SigningSchemeV4,
	})
}
