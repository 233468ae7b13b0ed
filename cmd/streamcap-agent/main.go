package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/streamcap/agent/internal/capture"
	"github.com/streamcap/agent/internal/config"
	"github.com/streamcap/agent/internal/encoder"
	"github.com/streamcap/agent/internal/logging"
	"github.com/streamcap/agent/internal/session"
)

var (
	version = "0.1.0"
	cfgFile string
	dataDir string

	recordUser    string
	recordVideoID string
	recordBucket  string
	recordRegion  string
	recordAudio   string
	recordScreen  string
)

var rootCmd = &cobra.Command{
	Use:   "streamcap-agent",
	Short: "Streamcap recording agent",
	Long:  `Streamcap Agent - records the screen and microphone into uploaded media segments`,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Start a recording session (Ctrl-C to stop)",
	Run: func(cmd *cobra.Command, args []string) {
		runRecord()
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Run: func(cmd *cobra.Command, args []string) {
		listDevices()
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that recording prerequisites are available",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the current settings to the config file",
	Run: func(cmd *cobra.Command, args []string) {
		configure()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Streamcap Agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is streamcap.yaml in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for segment staging and scratch files")

	recordCmd.Flags().StringVar(&recordUser, "user", "", "user id for the upload path")
	recordCmd.Flags().StringVar(&recordVideoID, "video-id", "", "recording id (generated when empty)")
	recordCmd.Flags().StringVar(&recordBucket, "bucket", "", "override the configured upload bucket")
	recordCmd.Flags().StringVar(&recordRegion, "region", "", "override the configured upload region")
	recordCmd.Flags().StringVar(&recordAudio, "audio-device", "", "audio input device name")
	recordCmd.Flags().StringVar(&recordScreen, "screen-index", "", "native capture input for the screenshot grab")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	for _, err := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, os.Stderr)
	return cfg
}

func runRecord() {
	cfg := loadConfig()

	videoID := recordVideoID
	if videoID == "" {
		videoID = uuid.NewString()
	}

	rec := session.New(cfg)
	err := rec.Start(context.Background(), session.Options{
		UserID:      recordUser,
		VideoID:     videoID,
		ScreenIndex: recordScreen,
		AudioDevice: recordAudio,
		Bucket:      recordBucket,
		Region:      recordRegion,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start recording: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Recording %s (Ctrl-C to stop)\n", videoID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nStopping recording, waiting for uploads...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := rec.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Recording stopped with errors: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Recording stopped.")
}

func listDevices() {
	devices, err := capture.InputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enumerate audio devices: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("No audio input devices found.")
		return
	}
	for i, name := range devices {
		if i == 0 {
			fmt.Printf("  %s (default)\n", name)
			continue
		}
		fmt.Printf("  %s\n", name)
	}
}

func runDoctor() {
	ok := true

	if binary, err := encoder.FindBinary(); err != nil {
		fmt.Println("ffmpeg: NOT FOUND (install ffmpeg and make sure it is on PATH)")
		ok = false
	} else if ver, err := encoder.Version(binary); err != nil {
		fmt.Printf("ffmpeg: found at %s but not runnable: %v\n", binary, err)
		ok = false
	} else {
		fmt.Printf("ffmpeg: %s (%s)\n", ver, binary)
	}

	if sc, err := capture.NewScreenCapturer(0); err != nil {
		fmt.Printf("screen capture: %v\n", err)
		ok = false
	} else {
		w, h := sc.Bounds()
		sc.Close()
		fmt.Printf("screen capture: display 0 at %dx%d\n", w, h)
	}

	if devices, err := capture.InputDevices(); err != nil {
		fmt.Printf("audio capture: %v\n", err)
		ok = false
	} else if len(devices) == 0 {
		fmt.Println("audio capture: no input devices")
		ok = false
	} else {
		fmt.Printf("audio capture: %d device(s), default %q\n", len(devices), devices[0])
	}

	if !ok {
		os.Exit(1)
	}
}

func configure() {
	cfg := loadConfig()
	if err := config.Save(cfg, cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Config written.")
}
