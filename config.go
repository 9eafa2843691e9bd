package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaybackConfig holds the settings of the controller and the audio backend
type PlaybackConfig struct {
	Backend         string  `mapstructure:"backend"`
	Volume          int     `mapstructure:"volume"`
	AutoAdvance     bool    `mapstructure:"auto_advance"`
	SeekStepS       float64 `mapstructure:"seek_step_s"`
	VolumeStep      int     `mapstructure:"volume_step"`
	SampleRate      int     `mapstructure:"sample_rate"`
	BufferMs        int     `mapstructure:"buffer_ms"`
	LoadTimeoutS    int     `mapstructure:"load_timeout_s"`
	PlayerctlPlayer string  `mapstructure:"playerctl_player"`
}

// LogConfig controls the file logger
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Config holds all application configuration
type Config struct {
	UI struct {
		Color     string `mapstructure:"color"`
		ColorMode string `mapstructure:"color_mode"`
		MaxWidth  int    `mapstructure:"max_width"`
	} `mapstructure:"ui"`
	Artwork struct {
		Enabled      bool `mapstructure:"enabled"`
		Padding      int  `mapstructure:"padding"`
		WidthPixels  int  `mapstructure:"width_pixels"`
		WidthColumns int  `mapstructure:"width_columns"`
	} `mapstructure:"artwork"`
	Text struct {
		MaxLengthWithArt int `mapstructure:"max_length_with_art"`
		MaxLengthNoArt   int `mapstructure:"max_length_no_art"`
	} `mapstructure:"text"`
	Timing struct {
		UIRefreshMs int `mapstructure:"ui_refresh_ms"`
		ProgressMs  int `mapstructure:"progress_ms"`
	} `mapstructure:"timing"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Log      LogConfig      `mapstructure:"log"`
	Playlist []Track        `mapstructure:"playlist"`
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

var config = &SafeConfig{}

// Config file changed notification
type configReloadMsg struct{}

var configChangeChan = make(chan struct{}, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		<-configChangeChan
		return configReloadMsg{}
	}
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("ui.color", "5")
	v.SetDefault("ui.color_mode", "manual")
	v.SetDefault("ui.max_width", 56)
	v.SetDefault("artwork.enabled", true)
	v.SetDefault("artwork.padding", 16)
	v.SetDefault("artwork.width_pixels", 300)
	v.SetDefault("artwork.width_columns", 13)
	v.SetDefault("text.max_length_with_art", 26)
	v.SetDefault("text.max_length_no_art", 42)
	v.SetDefault("timing.ui_refresh_ms", 100)
	v.SetDefault("timing.progress_ms", 250)
	v.SetDefault("playback.backend", "beep")
	v.SetDefault("playback.volume", 70)
	v.SetDefault("playback.auto_advance", true)
	v.SetDefault("playback.seek_step_s", 5.0)
	v.SetDefault("playback.volume_step", 5)
	v.SetDefault("playback.sample_rate", 44100)
	v.SetDefault("playback.buffer_ms", 100)
	v.SetDefault("playback.load_timeout_s", 30)
	v.SetDefault("playback.playerctl_player", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", defaultLogFile())
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)
}

// configDir follows XDG: $XDG_CONFIG_HOME/sonic, falling back to ~/.config/sonic
func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "sonic")
}

// loadConfig reads defaults, .env, the config file and SONIC_* variables
// into v and returns the decoded config. Invalid fields are replaced with
// defaults; the problems found are returned as warnings.
func loadConfig(v *viper.Viper, configFile string) (Config, []error) {
	setConfigDefaults(v)

	// .env never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error reading .env: %v\n", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("SONIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			warnings = append(warnings, configError{field: "config", message: err.Error()})
		}
	}

	cfg, errs := decodeConfig(v)
	return cfg, append(warnings, errs...)
}

// decodeConfig unmarshals v, validates the result and repairs invalid fields
func decodeConfig(v *viper.Viper) (Config, []error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, []error{configError{field: "config", message: err.Error()}}
	}
	if len(cfg.Playlist) == 0 {
		cfg.Playlist = append([]Track(nil), defaultTracks...)
	}

	errs := validateConfig(&cfg)
	applyDefaultsForInvalidFields(&cfg, errs)
	return cfg, errs
}

// watchConfig reloads the config on file changes and notifies the app.
// The playlist is fixed for the lifetime of the process, so reloads keep
// the one loaded at startup.
func watchConfig(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg, errs := decodeConfig(v)
		if len(errs) > 0 {
			return
		}
		newCfg.Playlist = config.Get().Playlist
		config.Set(newCfg)
		select {
		case configChangeChan <- struct{}{}:
		default:
			// Channel full, skip notification
		}
	})
	v.WatchConfig()
}

// configError describes one invalid configuration field
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return e.field + ": " + e.message
}

// isValidColor accepts ANSI codes 0-255 and #RGB / #RRGGBB hex colors
func isValidColor(color string) bool {
	if color == "" {
		return false
	}
	if color[0] == '#' {
		hex := color[1:]
		if len(hex) != 3 && len(hex) != 6 {
			return false
		}
		for _, c := range hex {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
				return false
			}
		}
		return true
	}
	if len(color) > 3 {
		return false
	}
	n, err := strconv.Atoi(color)
	return err == nil && n >= 0 && n <= 255 && strconv.Itoa(n) == color
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// validateConfig checks every field and collects one error per bad field
func validateConfig(cfg *Config) []error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if !isValidColor(cfg.UI.Color) {
		bad("ui.color", "invalid color format '%s'", cfg.UI.Color)
	}
	if cfg.UI.ColorMode != "manual" && cfg.UI.ColorMode != "auto" {
		bad("ui.color_mode", "must be 'manual' or 'auto' (got '%s')", cfg.UI.ColorMode)
	}
	if cfg.UI.MaxWidth < 30 || cfg.UI.MaxWidth > 200 {
		bad("ui.max_width", "must be between 30 and 200 (got %d)", cfg.UI.MaxWidth)
	}
	if cfg.Artwork.Padding < 0 || cfg.Artwork.Padding >= cfg.UI.MaxWidth {
		bad("artwork.padding", "must be between 0 and max_width (got %d)", cfg.Artwork.Padding)
	}
	if cfg.Artwork.WidthPixels < 16 || cfg.Artwork.WidthPixels > 2000 {
		bad("artwork.width_pixels", "must be between 16 and 2000 (got %d)", cfg.Artwork.WidthPixels)
	}
	if cfg.Artwork.WidthColumns < 1 || cfg.Artwork.WidthColumns > 100 {
		bad("artwork.width_columns", "must be between 1 and 100 (got %d)", cfg.Artwork.WidthColumns)
	}
	if cfg.Text.MaxLengthWithArt < 5 || cfg.Text.MaxLengthWithArt > 200 {
		bad("text.max_length_with_art", "must be between 5 and 200 (got %d)", cfg.Text.MaxLengthWithArt)
	}
	if cfg.Text.MaxLengthNoArt < 5 || cfg.Text.MaxLengthNoArt > 200 {
		bad("text.max_length_no_art", "must be between 5 and 200 (got %d)", cfg.Text.MaxLengthNoArt)
	}
	if cfg.Timing.UIRefreshMs < 10 || cfg.Timing.UIRefreshMs > 5000 {
		bad("timing.ui_refresh_ms", "must be between 10 and 5000 (got %d)", cfg.Timing.UIRefreshMs)
	}
	if cfg.Timing.ProgressMs < 50 || cfg.Timing.ProgressMs > 10000 {
		bad("timing.progress_ms", "must be between 50 and 10000 (got %d)", cfg.Timing.ProgressMs)
	}
	if cfg.Playback.Backend != "beep" && cfg.Playback.Backend != "playerctl" {
		bad("playback.backend", "must be 'beep' or 'playerctl' (got '%s')", cfg.Playback.Backend)
	}
	if cfg.Playback.Volume < 0 || cfg.Playback.Volume > 100 {
		bad("playback.volume", "must be between 0 and 100 (got %d)", cfg.Playback.Volume)
	}
	if cfg.Playback.SeekStepS <= 0 || cfg.Playback.SeekStepS > 600 {
		bad("playback.seek_step_s", "must be between 0 and 600 (got %g)", cfg.Playback.SeekStepS)
	}
	if cfg.Playback.VolumeStep < 1 || cfg.Playback.VolumeStep > 100 {
		bad("playback.volume_step", "must be between 1 and 100 (got %d)", cfg.Playback.VolumeStep)
	}
	if cfg.Playback.SampleRate < 8000 || cfg.Playback.SampleRate > 192000 {
		bad("playback.sample_rate", "must be between 8000 and 192000 (got %d)", cfg.Playback.SampleRate)
	}
	if cfg.Playback.BufferMs < 10 || cfg.Playback.BufferMs > 2000 {
		bad("playback.buffer_ms", "must be between 10 and 2000 (got %d)", cfg.Playback.BufferMs)
	}
	if cfg.Playback.LoadTimeoutS < 1 || cfg.Playback.LoadTimeoutS > 600 {
		bad("playback.load_timeout_s", "must be between 1 and 600 (got %d)", cfg.Playback.LoadTimeoutS)
	}
	if !validLogLevels[cfg.Log.Level] {
		bad("log.level", "must be one of debug, info, warn, error (got '%s')", cfg.Log.Level)
	}

	return errs
}

// applyDefaultsForInvalidFields resets every field named in errs to its default
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	for _, err := range errs {
		var ce configError
		if !errors.As(err, &ce) {
			continue
		}
		switch ce.field {
		case "ui.color":
			cfg.UI.Color = "5"
		case "ui.color_mode":
			cfg.UI.ColorMode = "manual"
		case "ui.max_width":
			cfg.UI.MaxWidth = 56
		case "artwork.width_pixels":
			cfg.Artwork.WidthPixels = 300
		case "artwork.width_columns":
			cfg.Artwork.WidthColumns = 13
		case "text.max_length_with_art":
			cfg.Text.MaxLengthWithArt = 26
		case "text.max_length_no_art":
			cfg.Text.MaxLengthNoArt = 42
		case "timing.ui_refresh_ms":
			cfg.Timing.UIRefreshMs = 100
		case "timing.progress_ms":
			cfg.Timing.ProgressMs = 250
		case "playback.backend":
			cfg.Playback.Backend = "beep"
		case "playback.volume":
			cfg.Playback.Volume = 70
		case "playback.seek_step_s":
			cfg.Playback.SeekStepS = 5
		case "playback.volume_step":
			cfg.Playback.VolumeStep = 5
		case "playback.sample_rate":
			cfg.Playback.SampleRate = 44100
		case "playback.buffer_ms":
			cfg.Playback.BufferMs = 100
		case "playback.load_timeout_s":
			cfg.Playback.LoadTimeoutS = 30
		case "log.level":
			cfg.Log.Level = "info"
		}
	}

	// padding depends on the (possibly repaired) max_width
	if cfg.Artwork.Padding < 0 || cfg.Artwork.Padding >= cfg.UI.MaxWidth {
		cfg.Artwork.Padding = 16
	}
}

// printConfigWarnings reports config problems on stderr before the UI starts
func printConfigWarnings(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "Warning: invalid configuration, using defaults for:")
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %v\n", err)
	}
}

func progressInterval(cfg Config) time.Duration {
	return time.Duration(cfg.Timing.ProgressMs) * time.Millisecond
}
