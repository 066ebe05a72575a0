package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up in the working directory when no --config flag is given.
const DefaultPath = "recapcut.yaml"

type Config struct {
	Render   RenderConfig   `yaml:"render"`
	Producer ProducerConfig `yaml:"producer"`
	Tools    ToolsConfig    `yaml:"tools"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	CacheDir string         `yaml:"cache_dir"`
	OutDir   string         `yaml:"out_dir"`
}

type RenderConfig struct {
	Mode          string          `yaml:"mode"`
	NarrationGain float64         `yaml:"narration_gain"`
	Music         MusicConfig     `yaml:"music"`
	Watermark     WatermarkConfig `yaml:"watermark"`
	LetterboxPx   int             `yaml:"letterbox_px"`
	// Effects lists per-clip treatments: color, motion, hflip. Empty applies none.
	Effects     []string  `yaml:"effects"`
	Concurrency int       `yaml:"concurrency"`
	CallTimeout Duration  `yaml:"call_timeout"`
	Seed        uint64    `yaml:"seed"`
	Tolerance   Duration  `yaml:"tolerance"`
	Gap         GapConfig `yaml:"gap"`
}

type MusicConfig struct {
	Path    string  `yaml:"path"`
	Gain    float64 `yaml:"gain"`
	Segment string  `yaml:"segment"`
}

// WatermarkConfig places an image in one corner of every output. Pos is one of top_left,
// top_right, bottom_left, bottom_right.
type WatermarkConfig struct {
	Path string `yaml:"path"`
	Pos  string `yaml:"pos"`
}

// GapConfig bounds the source spacing between consecutive cuts for the gap audit.
type GapConfig struct {
	Min Duration `yaml:"min"`
	Max Duration `yaml:"max"`
}

type ProducerConfig struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	Key          string   `yaml:"key"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	Language     string   `yaml:"language"`
}

type ToolsConfig struct {
	FFmpeg       string `yaml:"ffmpeg"`
	FFprobe      string `yaml:"ffprobe"`
	WhisperBin   string `yaml:"whisper_bin"`
	WhisperModel string `yaml:"whisper_model"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{
			Mode:          "concat",
			NarrationGain: 1.0,
			Music:         MusicConfig{Gain: 0.1},
			Watermark:     WatermarkConfig{Pos: "top_left"},
			LetterboxPx:   60,
			Effects:       []string{"color", "motion"},
			Concurrency:   1,
			CallTimeout:   Duration(10 * time.Minute),
			Seed:          1,
			Tolerance:     Duration(100 * time.Millisecond),
			Gap:           GapConfig{Min: 0, Max: Duration(10 * time.Minute)},
		},
		Producer: ProducerConfig{
			Provider: "gemini",
			Language: "en",
		},
		Tools: ToolsConfig{
			FFmpeg:       "ffmpeg",
			FFprobe:      "ffprobe",
			WhisperBin:   ".cache/bin/whisper.cpp",
			WhisperModel: ".cache/models/ggml-base.bin",
		},
		Log: LogConfig{
			Level: "INFO",
			Path:  ".cache/logs/recapcut.log",
		},
		DB:       DBConfig{Path: ".cache/recapcut.db"},
		CacheDir: ".cache",
		OutDir:   "out",
	}
}

// Load reads path over the defaults. A missing file yields the defaults. Empty producer keys
// fall back to GEMINI_API_KEY or OPENROUTER_API_KEY depending on the provider; the OpenRouter
// endpoint falls back to OPENROUTER_BASE_URL and OPENROUTER_ALLOWED_HOSTS.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cfg.Producer.Key == "" {
		cfg.Producer.Key = os.Getenv(KeyEnv(cfg.Producer.Provider))
	}
	if cfg.Producer.BaseURL == "" {
		cfg.Producer.BaseURL = os.Getenv("OPENROUTER_BASE_URL")
	}
	if len(cfg.Producer.AllowedHosts) == 0 {
		if v := os.Getenv("OPENROUTER_ALLOWED_HOSTS"); v != "" {
			cfg.Producer.AllowedHosts = strings.Split(v, ",")
		}
	}
	return cfg, nil
}

// KeyEnv names the environment variable holding the API key for provider.
func KeyEnv(provider string) string {
	if strings.EqualFold(provider, "openrouter") {
		return "OPENROUTER_API_KEY"
	}
	return "GEMINI_API_KEY"
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
