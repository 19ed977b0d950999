package pipeline

import (
	"errors"
	"fmt"
	"time"

	"duosub/endpoint"
)

// ErrInvalidConfig marks a rejected configuration. The coordinator
// keeps running on its previous configuration when an update carries
// this error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full runtime configuration of a pipeline. All of it
// can be replaced mid-session through UpdateConfig.
type Config struct {
	DeviceName string // empty means system default
	SampleRate int
	FrameMs    int

	VoiceThreshold  float64
	SilenceDuration time.Duration
	MinUtterance    time.Duration
	MaxUtterance    time.Duration

	STTModel         string
	TranslateModel   string
	TranslateEnabled bool
}

func DefaultConfig() Config {
	p := endpoint.DefaultParams()
	return Config{
		SampleRate:       16000,
		FrameMs:          64,
		VoiceThreshold:   p.VoiceThreshold,
		SilenceDuration:  p.SilenceDuration,
		MinUtterance:     p.MinUtterance,
		MaxUtterance:     p.MaxUtterance,
		STTModel:         "base",
		TranslateModel:   "qwen2.5:3b",
		TranslateEnabled: true,
	}
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.FrameMs < 10 || c.FrameMs > 200 {
		return fmt.Errorf("%w: frame duration %dms out of range [10, 200]", ErrInvalidConfig, c.FrameMs)
	}
	if err := c.endpointParams().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.STTModel == "" {
		return fmt.Errorf("%w: empty speech-to-text model", ErrInvalidConfig)
	}
	if c.TranslateEnabled && c.TranslateModel == "" {
		return fmt.Errorf("%w: empty translation model", ErrInvalidConfig)
	}
	return nil
}

// frameBytes is the size of one FrameMs frame of 16-bit mono PCM.
func (c Config) frameBytes() int {
	return c.SampleRate * c.FrameMs / 1000 * 2
}

func (c Config) endpointParams() endpoint.Params {
	return endpoint.Params{
		VoiceThreshold:  c.VoiceThreshold,
		SilenceDuration: c.SilenceDuration,
		MinUtterance:    c.MinUtterance,
		MaxUtterance:    c.MaxUtterance,
	}
}
