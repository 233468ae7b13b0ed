package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Upload    UploadConfig    `mapstructure:"upload"`
	Recording RecordingConfig `mapstructure:"recording"`
	Log       LogConfig       `mapstructure:"log"`
}

// UploadConfig selects and parameterizes the storage provider for segment
// uploads.
type UploadConfig struct {
	Provider        string `mapstructure:"provider"` // s3, gcs or local
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BasePath        string `mapstructure:"base_path"` // local provider only
}

// RecordingConfig carries the capture and encoder defaults for a session.
type RecordingConfig struct {
	Framerate          int    `mapstructure:"framerate"`
	DisplayIndex       int    `mapstructure:"display_index"`
	SegmentSeconds     int    `mapstructure:"segment_seconds"`
	AudioDevice        string `mapstructure:"audio_device"`
	SyncTimeoutSeconds int    `mapstructure:"sync_timeout_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Default() *Config {
	return &Config{
		Upload: UploadConfig{
			Provider: "s3",
		},
		Recording: RecordingConfig{
			Framerate:          30,
			SegmentSeconds:     3,
			SyncTimeoutSeconds: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("streamcap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("STREAMCAP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	return cfg, nil
}

func Save(cfg *Config, cfgFile string) error {
	viper.Set("data_dir", cfg.DataDir)
	viper.Set("upload.provider", cfg.Upload.Provider)
	viper.Set("upload.bucket", cfg.Upload.Bucket)
	viper.Set("upload.region", cfg.Upload.Region)
	viper.Set("upload.access_key_id", cfg.Upload.AccessKeyID)
	viper.Set("upload.secret_access_key", cfg.Upload.SecretAccessKey)
	viper.Set("upload.base_path", cfg.Upload.BasePath)
	viper.Set("recording.framerate", cfg.Recording.Framerate)
	viper.Set("recording.display_index", cfg.Recording.DisplayIndex)
	viper.Set("recording.segment_seconds", cfg.Recording.SegmentSeconds)
	viper.Set("recording.audio_device", cfg.Recording.AudioDevice)
	viper.Set("recording.sync_timeout_seconds", cfg.Recording.SyncTimeoutSeconds)
	viper.Set("log.level", cfg.Log.Level)
	viper.Set("log.format", cfg.Log.Format)

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir(), "streamcap.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return err
	}
	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains storage credentials)
	return os.Chmod(cfgPath, 0o600)
}

func configDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("AppData"), "Streamcap")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Streamcap")
	default:
		return filepath.Join(home, ".config", "streamcap")
	}
}

func defaultDataDir() string {
	cache, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "streamcap")
	}
	return filepath.Join(cache, "streamcap")
}
