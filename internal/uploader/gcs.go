package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// GCSUploader writes files into a Google Cloud Storage bucket. Credentials
// come from the ambient application-default chain.
type GCSUploader struct {
	dest   Destination
	client *storage.Client
}

// NewGCS builds a GCS uploader for dest.
func NewGCS(ctx context.Context, dest Destination) (*GCSUploader, error) {
	if dest.Bucket == "" {
		return nil, errors.New("gcs uploads require a bucket")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &GCSUploader{dest: dest, client: client}, nil
}

// Upload sends one file to the bucket under the destination's key layout.
func (u *GCSUploader) Upload(ctx context.Context, localPath string, kind Kind) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	key := u.dest.ObjectKey(kind, localPath)
	w := u.client.Bucket(u.dest.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeFor(localPath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("uploading %s to gs://%s/%s: %w", localPath, u.dest.Bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s: %w", u.dest.Bucket, key, err)
	}
	log.Debug("uploaded segment", "provider", "gcs", "key", key)
	return nil
}

// Close releases the underlying client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
