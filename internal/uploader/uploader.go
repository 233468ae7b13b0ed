// Package uploader moves finalized recording artifacts to their storage
// destination. Implementations are fire-once per file: retry policy belongs
// to the storage SDK, not here.
package uploader

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/streamcap/agent/internal/logging"
)

var log = logging.L("uploader")

// Kind classifies an uploaded artifact.
type Kind string

const (
	KindAudio      Kind = "audio"
	KindVideo      Kind = "video"
	KindScreenshot Kind = "screenshot"
)

// Uploader sends one local file to remote storage.
type Uploader interface {
	Upload(ctx context.Context, localPath string, kind Kind) error
}

// Destination identifies where a session's artifacts are stored and the
// namespace they are filed under.
type Destination struct {
	Provider        string // "s3", "gcs" or "local"
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BasePath        string // local provider root

	UserID  string
	VideoID string
}

// ObjectKey files an artifact under <user>/<video>/<kind>/<filename>.
func (d Destination) ObjectKey(kind Kind, localPath string) string {
	return path.Join(d.UserID, d.VideoID, string(kind), filepath.Base(localPath))
}

// New constructs the uploader for the destination's provider.
func New(ctx context.Context, dest Destination) (Uploader, error) {
	switch strings.ToLower(dest.Provider) {
	case "", "s3":
		return NewS3(ctx, dest)
	case "gcs":
		return NewGCS(ctx, dest)
	case "local":
		return NewLocal(dest)
	default:
		return nil, fmt.Errorf("unknown upload provider %q", dest.Provider)
	}
}

// contentTypeFor maps artifact extensions to MIME types; the default keeps
// unknown artifacts downloadable.
func contentTypeFor(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".ts":
		return "video/mp2t"
	case ".aac":
		return "audio/aac"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
