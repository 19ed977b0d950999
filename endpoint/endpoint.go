// Package endpoint segments a continuous PCM stream into utterances
// using per-frame energy and a silence-duration cutoff.
package endpoint

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
)

// Frame is one fixed-duration chunk of captured audio. PCM is 16-bit
// little-endian mono. Energy is the mean absolute sample amplitude on
// the raw int16 scale (0..32767), matching the scale the default
// voice threshold is tuned against.
type Frame struct {
	PCM    []byte
	Time   time.Time
	Energy float64
}

// Utterance is one contiguous speech segment bounded by silence.
// PCM is owned by the utterance; the detector never reuses it.
type Utterance struct {
	PCM      []byte
	Start    time.Time
	Duration time.Duration
	Seq      uint64
}

// Energy computes the mean absolute amplitude of 16-bit LE mono PCM.
func Energy(pcm []byte) (float64, error) {
	if len(pcm) < 2 || len(pcm)%2 != 0 {
		return 0, fmt.Errorf("malformed frame: %d bytes", len(pcm))
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		sum += math.Abs(float64(s))
	}
	return sum / float64(n), nil
}

type Params struct {
	VoiceThreshold  float64       // frame energy at or above this counts as voice
	SilenceDuration time.Duration // trailing silence that ends an utterance
	MinUtterance    time.Duration // shorter segments are discarded as noise
	MaxUtterance    time.Duration // force-cut so long speech still yields subtitles
}

func DefaultParams() Params {
	return Params{
		VoiceThreshold:  100,
		SilenceDuration: 1200 * time.Millisecond,
		MinUtterance:    500 * time.Millisecond,
		MaxUtterance:    8 * time.Second,
	}
}

func (p Params) Validate() error {
	if p.VoiceThreshold < 0 || p.VoiceThreshold > 32767 {
		return fmt.Errorf("voice threshold %.1f out of range [0, 32767]", p.VoiceThreshold)
	}
	if p.SilenceDuration <= 0 {
		return fmt.Errorf("silence duration must be positive, got %s", p.SilenceDuration)
	}
	if p.MinUtterance <= 0 {
		return fmt.Errorf("min utterance must be positive, got %s", p.MinUtterance)
	}
	if p.MaxUtterance < p.MinUtterance {
		return fmt.Errorf("max utterance %s below min utterance %s", p.MaxUtterance, p.MinUtterance)
	}
	return nil
}

type state int

const (
	stateListening state = iota
	stateCapturing
)

// Detector is the two-state endpoint machine. It is fed frames by the
// capture callback and returns completed utterances. The voice
// threshold may be adjusted from another goroutine while capture runs;
// the remaining parameters are fixed per detector.
type Detector struct {
	params     Params
	sampleRate int

	mu        sync.Mutex
	threshold float64

	st           state
	buf          []byte
	start        time.Time
	silenceBytes int
	seq          uint64
}

func NewDetector(sampleRate int, p Params) (*Detector, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		params:     p,
		sampleRate: sampleRate,
		threshold:  p.VoiceThreshold,
	}, nil
}

func (d *Detector) SetVoiceThreshold(v float64) error {
	if v < 0 || v > 32767 {
		return fmt.Errorf("voice threshold %.1f out of range [0, 32767]", v)
	}
	d.mu.Lock()
	d.threshold = v
	d.mu.Unlock()
	return nil
}

func (d *Detector) VoiceThreshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

func (d *Detector) bytesToDuration(n int) time.Duration {
	return time.Duration(n/2) * time.Second / time.Duration(d.sampleRate)
}

// Feed processes one captured frame and returns any utterances completed
// by it. A frame whose energy cannot be computed is dropped; detection
// continues with the next frame.
func (d *Detector) Feed(pcm []byte, now time.Time) []Utterance {
	energy, err := Energy(pcm)
	if err != nil {
		return nil
	}

	d.mu.Lock()
	threshold := d.threshold
	d.mu.Unlock()

	voiced := energy >= threshold

	switch d.st {
	case stateListening:
		if !voiced {
			return nil
		}
		d.st = stateCapturing
		d.start = now
		d.buf = append([]byte(nil), pcm...)
		d.silenceBytes = 0
		return nil

	case stateCapturing:
		// Frames keep accumulating regardless of energy so brief
		// dips mid-speech do not split the utterance.
		d.buf = append(d.buf, pcm...)
		if voiced {
			d.silenceBytes = 0
		} else {
			d.silenceBytes += len(pcm)
		}

		if d.bytesToDuration(d.silenceBytes) >= d.params.SilenceDuration {
			return d.cut(true)
		}
		if d.bytesToDuration(len(d.buf)) >= d.params.MaxUtterance {
			return d.cut(false)
		}
	}
	return nil
}

// Flush ends a capture in progress, as if silence had followed. The
// pipeline deliberately does not call this on stop or reconfigure; a
// partial utterance at that moment is discarded, not delivered late.
func (d *Detector) Flush() []Utterance {
	if d.st != stateCapturing {
		return nil
	}
	return d.cut(true)
}

func (d *Detector) cut(trimSilence bool) []Utterance {
	speech := d.buf
	if trimSilence && d.silenceBytes > 0 && d.silenceBytes < len(speech) {
		speech = speech[:len(speech)-d.silenceBytes]
	}

	start := d.start
	d.st = stateListening
	d.buf = nil
	d.silenceBytes = 0

	dur := d.bytesToDuration(len(speech))
	if dur < d.params.MinUtterance {
		return nil
	}

	d.seq++
	return []Utterance{{
		PCM:      speech,
		Start:    start,
		Duration: dur,
		Seq:      d.seq,
	}}
}
