// Package segment discovers finalized encoder output and feeds it to the
// uploader while a recording is still in progress.
package segment

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/streamcap/agent/internal/encoder"
	"github.com/streamcap/agent/internal/logging"
)

var log = logging.L("segment")

// ReadManifest returns the segment filenames listed in the manifest, in
// append order, skipping blank lines. The manifest is append-only while the
// encoder lives, so a re-read only ever grows.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			names = append(names, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return names, nil
}

// PrepareChunkDir clears and recreates a per-stream chunk directory and
// guarantees an (empty) manifest exists before the encoder starts, so the
// first watcher pass never races directory creation.
func PrepareChunkDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing chunk dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating chunk dir %s: %w", dir, err)
	}
	return EnsureManifest(dir)
}

// EnsureManifest creates an empty manifest in dir if one is not present.
func EnsureManifest(dir string) error {
	path := filepath.Join(dir, encoder.ManifestName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ensuring manifest %s: %w", path, err)
	}
	return f.Close()
}
