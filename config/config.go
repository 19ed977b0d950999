// Package config loads the YAML configuration file. Values the flags
// do not override flow into the pipeline's runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Device    string          `yaml:"device"`
	Audio     AudioConfig     `yaml:"audio"`
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	STT       STTConfig       `yaml:"stt"`
	Translate TranslateConfig `yaml:"translate"`
	LogLevel  string          `yaml:"log_level"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	FrameMs    int `yaml:"frame_ms"`
}

// EndpointConfig holds utterance segmentation settings.
type EndpointConfig struct {
	VoiceThreshold float64 `yaml:"voice_threshold"`
	SilenceMs      int     `yaml:"silence_ms"`
	MinSpeechMs    int     `yaml:"min_speech_ms"`
	MaxSpeechMs    int     `yaml:"max_speech_ms"`
}

// STTConfig holds speech-to-text collaborator settings.
type STTConfig struct {
	URL      string `yaml:"url"`
	Model    string `yaml:"model"`
	Format   string `yaml:"format"` // "wav" or "flac"
	TimeoutS int    `yaml:"timeout_s"`
}

// TranslateConfig holds translation collaborator settings.
type TranslateConfig struct {
	URL      string `yaml:"url"`
	Model    string `yaml:"model"`
	Enabled  *bool  `yaml:"enabled"`
	TimeoutS int    `yaml:"timeout_s"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "duosub")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	enabled := true
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			FrameMs:    64,
		},
		Endpoint: EndpointConfig{
			VoiceThreshold: 100,
			SilenceMs:      1200,
			MinSpeechMs:    500,
			MaxSpeechMs:    8000,
		},
		STT: STTConfig{
			URL:      "http://localhost:8080/inference",
			Model:    "base",
			Format:   "wav",
			TimeoutS: 30,
		},
		Translate: TranslateConfig{
			URL:      "http://localhost:11434",
			Model:    "qwen2.5:3b",
			Enabled:  &enabled,
			TimeoutS: 30,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the file at path if it exists, otherwise
// returns defaults. A malformed file is still an error.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.FrameMs < 10 || c.Audio.FrameMs > 200 {
		return fmt.Errorf("audio.frame_ms must be in [10, 200], got %d", c.Audio.FrameMs)
	}

	if c.Endpoint.VoiceThreshold < 0 || c.Endpoint.VoiceThreshold > 32767 {
		return fmt.Errorf("endpoint.voice_threshold must be in [0, 32767], got %g", c.Endpoint.VoiceThreshold)
	}

	if c.Endpoint.SilenceMs <= 0 || c.Endpoint.MinSpeechMs <= 0 {
		return fmt.Errorf("endpoint.silence_ms and endpoint.min_speech_ms must be > 0")
	}

	if c.Endpoint.MaxSpeechMs < c.Endpoint.MinSpeechMs {
		return fmt.Errorf("endpoint.max_speech_ms must be >= endpoint.min_speech_ms")
	}

	switch c.STT.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("stt.format must be \"wav\" or \"flac\", got %q", c.STT.Format)
	}

	if c.STT.Model == "" {
		return fmt.Errorf("stt.model must not be empty")
	}

	if c.Translate.Model == "" {
		return fmt.Errorf("translate.model must not be empty")
	}

	return nil
}

// TranslateEnabled resolves the optional enabled flag (default true).
func (c *Config) TranslateEnabled() bool {
	return c.Translate.Enabled == nil || *c.Translate.Enabled
}
