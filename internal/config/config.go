package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	BackendNative = "native"
	BackendRemote = "remote"
)

// Config stores runtime configuration. Values resolve in order: defaults, config.toml, .env, environment.
type Config struct {
	Backend     BackendConfig
	Audio       AudioConfig
	Transcripts TranscriptsConfig
	Rules       RulesConfig
	Log         LogConfig
	Metrics     MetricsConfig

	// File is the config.toml that was applied, empty when none was found.
	File string
}

type BackendConfig struct {
	Kind           string        `toml:"kind"`
	BaseURL        string        `toml:"base_url"`
	PortFile       string        `toml:"port_file"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	ReconnectDelay time.Duration `toml:"reconnect_delay"`
}

type AudioConfig struct {
	RecorderCommand   string        `toml:"recorder_command"`
	DeviceListCommand string        `toml:"device_list_command"`
	InputFormat       string        `toml:"input_format"`
	SampleRate        int           `toml:"sample_rate"`
	Channels          int           `toml:"channels"`
	ClipDuration      time.Duration `toml:"clip_duration"`
	OutputDir         string        `toml:"output_dir"`
}

type TranscriptsConfig struct {
	Dir             string        `toml:"dir"`
	SentinelName    string        `toml:"sentinel_name"`
	SourceSuffix    string        `toml:"source_suffix"`
	LabelFormat     string        `toml:"label_format"`
	PollInterval    time.Duration `toml:"poll_interval"`
	ReadConcurrency int           `toml:"read_concurrency"`
}

type RulesConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

type fileConfig struct {
	Backend     BackendConfig     `toml:"backend"`
	Audio       AudioConfig       `toml:"audio"`
	Transcripts TranscriptsConfig `toml:"transcripts"`
	Rules       RulesConfig       `toml:"rules"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// Load resolves configuration for the desktop app and the CLI.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	workDir, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("could not determine working directory: %w", err)
	}

	cfg := defaults(home, workDir)

	if path := configFilePath(home); path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
		mergeFile(&cfg, fc, home)
		cfg.File = path
	}

	envFile := envOrDefault("WORKX_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %q: %w", envFile, err)
	}

	applyEnv(&cfg, home)
	clamp(&cfg)
	return cfg, nil
}

func defaults(home string, workDir string) Config {
	return Config{
		Backend: BackendConfig{
			Kind:           BackendNative,
			PortFile:       filepath.Join(workDir, "server-port.json"),
			RequestTimeout: 10 * time.Second,
			ReconnectDelay: 2 * time.Second,
		},
		Audio: AudioConfig{
			RecorderCommand:   "ffmpeg",
			DeviceListCommand: "pactl",
			InputFormat:       "pulse",
			SampleRate:        16000,
			Channels:          1,
			ClipDuration:      10 * time.Second,
			OutputDir:         workDir,
		},
		Transcripts: TranscriptsConfig{
			Dir:             workDir,
			SentinelName:    "contexto.txt",
			SourceSuffix:    "_EN",
			LabelFormat:     "time",
			PollInterval:    2 * time.Second,
			ReadConcurrency: 4,
		},
		Rules: RulesConfig{
			Path: firstExisting(
				filepath.Join(home, ".config", "workx", "transcript.rules"),
				filepath.Join(home, ".config", "workx", "substitutions.rules"),
			),
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "text",
			MaxSizeMB: 10,
		},
	}
}

func mergeFile(cfg *Config, fc fileConfig, home string) {
	setString(&cfg.Backend.Kind, fc.Backend.Kind)
	setString(&cfg.Backend.BaseURL, fc.Backend.BaseURL)
	setString(&cfg.Backend.PortFile, expandTilde(fc.Backend.PortFile, home))
	setDuration(&cfg.Backend.RequestTimeout, fc.Backend.RequestTimeout)
	setDuration(&cfg.Backend.ReconnectDelay, fc.Backend.ReconnectDelay)

	setString(&cfg.Audio.RecorderCommand, fc.Audio.RecorderCommand)
	setString(&cfg.Audio.DeviceListCommand, fc.Audio.DeviceListCommand)
	setString(&cfg.Audio.InputFormat, fc.Audio.InputFormat)
	setInt(&cfg.Audio.SampleRate, fc.Audio.SampleRate)
	setInt(&cfg.Audio.Channels, fc.Audio.Channels)
	setDuration(&cfg.Audio.ClipDuration, fc.Audio.ClipDuration)
	setString(&cfg.Audio.OutputDir, expandTilde(fc.Audio.OutputDir, home))

	setString(&cfg.Transcripts.Dir, expandTilde(fc.Transcripts.Dir, home))
	setString(&cfg.Transcripts.SentinelName, fc.Transcripts.SentinelName)
	setString(&cfg.Transcripts.SourceSuffix, fc.Transcripts.SourceSuffix)
	setString(&cfg.Transcripts.LabelFormat, fc.Transcripts.LabelFormat)
	setDuration(&cfg.Transcripts.PollInterval, fc.Transcripts.PollInterval)
	setInt(&cfg.Transcripts.ReadConcurrency, fc.Transcripts.ReadConcurrency)

	setString(&cfg.Rules.Path, expandTilde(fc.Rules.Path, home))

	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.Format, fc.Log.Format)
	setString(&cfg.Log.File, expandTilde(fc.Log.File, home))
	setInt(&cfg.Log.MaxSizeMB, fc.Log.MaxSizeMB)

	setString(&cfg.Metrics.Addr, fc.Metrics.Addr)
}

func applyEnv(cfg *Config, home string) {
	cfg.Backend.Kind = envOrDefault("WORKX_BACKEND", cfg.Backend.Kind)
	cfg.Backend.BaseURL = envOrDefault("WORKX_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.PortFile = expandTilde(envOrDefault("WORKX_PORT_FILE", cfg.Backend.PortFile), home)
	cfg.Backend.RequestTimeout = envOrDefaultDuration("WORKX_REQUEST_TIMEOUT", cfg.Backend.RequestTimeout)
	cfg.Backend.ReconnectDelay = envOrDefaultDuration("WORKX_RECONNECT_DELAY", cfg.Backend.ReconnectDelay)

	cfg.Audio.RecorderCommand = envOrDefault("WORKX_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.DeviceListCommand = envOrDefault("WORKX_PACTL_COMMAND", cfg.Audio.DeviceListCommand)
	cfg.Audio.InputFormat = envOrDefault("WORKX_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.SampleRate = envOrDefaultInt("WORKX_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("WORKX_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.ClipDuration = envOrDefaultDuration("WORKX_CLIP_DURATION", cfg.Audio.ClipDuration)
	cfg.Audio.OutputDir = expandTilde(envOrDefault("WORKX_RECORDINGS_DIR", cfg.Audio.OutputDir), home)

	cfg.Transcripts.Dir = expandTilde(envOrDefault("WORKX_TRANSCRIPTS_DIR", cfg.Transcripts.Dir), home)
	cfg.Transcripts.SentinelName = envOrDefault("WORKX_SENTINEL_FILE", cfg.Transcripts.SentinelName)
	cfg.Transcripts.SourceSuffix = envOrDefault("WORKX_SOURCE_SUFFIX", cfg.Transcripts.SourceSuffix)
	cfg.Transcripts.LabelFormat = envOrDefault("WORKX_LABEL_FORMAT", cfg.Transcripts.LabelFormat)
	cfg.Transcripts.PollInterval = envOrDefaultDuration("WORKX_POLL_INTERVAL", cfg.Transcripts.PollInterval)
	cfg.Transcripts.ReadConcurrency = envOrDefaultInt("WORKX_READ_CONCURRENCY", cfg.Transcripts.ReadConcurrency)

	cfg.Rules.Path = expandTilde(envOrDefault("WORKX_RULES_FILE", cfg.Rules.Path), home)

	cfg.Log.Level = envOrDefault("WORKX_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("WORKX_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = expandTilde(envOrDefault("WORKX_LOG_FILE", cfg.Log.File), home)
	cfg.Log.MaxSizeMB = envOrDefaultInt("WORKX_LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)

	cfg.Metrics.Addr = envOrDefault("WORKX_METRICS_ADDR", cfg.Metrics.Addr)
}

func clamp(cfg *Config) {
	cfg.Backend.Kind = strings.ToLower(cfg.Backend.Kind)
	if cfg.Backend.Kind != BackendRemote {
		cfg.Backend.Kind = BackendNative
	}
	if cfg.Backend.RequestTimeout <= 0 {
		cfg.Backend.RequestTimeout = 10 * time.Second
	}
	if cfg.Backend.ReconnectDelay <= 0 {
		cfg.Backend.ReconnectDelay = 2 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ClipDuration <= 0 {
		cfg.Audio.ClipDuration = 10 * time.Second
	}
	// clip names carry one-second timestamps
	if cfg.Audio.ClipDuration < time.Second {
		cfg.Audio.ClipDuration = time.Second
	}
	if cfg.Transcripts.PollInterval < 100*time.Millisecond {
		cfg.Transcripts.PollInterval = 2 * time.Second
	}
	if cfg.Transcripts.ReadConcurrency <= 0 {
		cfg.Transcripts.ReadConcurrency = 4
	}
	if cfg.Transcripts.LabelFormat != "datetime" {
		cfg.Transcripts.LabelFormat = "time"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
}

func configFilePath(home string) string {
	if explicit := strings.TrimSpace(os.Getenv("WORKX_CONFIG")); explicit != "" {
		return expandTilde(explicit, home)
	}

	configDir := filepath.Join(home, ".config", "workx")
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		configDir = filepath.Join(xdg, "workx")
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func expandTilde(path string, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value time.Duration) {
	if value != 0 {
		*dst = value
	}
}

// firstExisting returns the first path that exists, or the first candidate when none do.
func firstExisting(paths ...string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envOrDefaultDuration accepts Go durations ("1500ms") or plain milliseconds ("1500").
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
