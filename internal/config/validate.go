package config

import (
	"fmt"
)

var validProviders = map[string]bool{
	"s3":    true,
	"gcs":   true,
	"local": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors
// found. Zero-values that would break a recording session are clamped to
// safe defaults instead of erroring.
func (c *Config) Validate() []error {
	var errs []error

	if c.Upload.Provider != "" && !validProviders[c.Upload.Provider] {
		errs = append(errs, fmt.Errorf("upload.provider %q is not one of s3, gcs, local", c.Upload.Provider))
	}
	switch c.Upload.Provider {
	case "s3":
		if c.Upload.Bucket == "" || c.Upload.Region == "" {
			errs = append(errs, fmt.Errorf("upload.provider s3 requires upload.bucket and upload.region"))
		}
	case "gcs":
		if c.Upload.Bucket == "" {
			errs = append(errs, fmt.Errorf("upload.provider gcs requires upload.bucket"))
		}
	case "local":
		if c.Upload.BasePath == "" {
			errs = append(errs, fmt.Errorf("upload.provider local requires upload.base_path"))
		}
	}

	if c.Log.Level != "" && !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("log.level %q is not a known level", c.Log.Level))
	}

	if c.Recording.Framerate < 1 || c.Recording.Framerate > 120 {
		c.Recording.Framerate = 30
	}
	if c.Recording.SegmentSeconds < 1 || c.Recording.SegmentSeconds > 60 {
		c.Recording.SegmentSeconds = 3
	}
	if c.Recording.SyncTimeoutSeconds < 1 {
		c.Recording.SyncTimeoutSeconds = 10
	}
	if c.Recording.DisplayIndex < 0 {
		c.Recording.DisplayIndex = 0
	}

	return errs
}
