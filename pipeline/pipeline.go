// Package pipeline wires capture, endpoint detection, transcription
// and translation into one coordinated flow that emits subtitle
// updates in utterance order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"duosub/audio"
	"duosub/endpoint"
	"duosub/log"
	"duosub/transcriber"
	"duosub/translator"
)

// queueDepth bounds utterances waiting for the worker. When the worker
// falls behind, the oldest waiting utterance is dropped so subtitles
// stay close to live audio instead of lagging further and further.
const queueDepth = 2

// Update is one subtitle delivered to the sink. Translated is empty
// when no translation was attempted (unsupported language, translation
// disabled); TranslateFailed distinguishes a translation that was
// attempted and lost.
type Update struct {
	Seq             uint64
	Original        string
	Translated      string
	SourceLang      string
	TranslateFailed bool
}

// Sink receives pipeline output. Subtitle calls arrive from a single
// goroutine in strictly increasing Seq order; AudioLevel calls arrive
// from the capture callback and must return quickly.
type Sink interface {
	Subtitle(u Update)
	AudioLevel(level float64)
}

type item struct {
	pcm  []byte
	seq  uint64
	dur  time.Duration
	rate int
}

// Pipeline owns the capture device and the single processing worker.
// All exported methods are safe for concurrent use.
type Pipeline struct {
	actx audio.Context
	stt  transcriber.Transcriber
	tr   translator.Translator
	sink Sink

	mu      sync.Mutex
	cfg     Config
	running bool
	dev     audio.CaptureDevice
	det     *endpoint.Detector

	queue  chan item
	cancel context.CancelFunc
	wg     sync.WaitGroup

	seq       atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
}

func New(actx audio.Context, stt transcriber.Transcriber, tr translator.Translator, sink Sink, cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		actx: actx,
		stt:  stt,
		tr:   tr,
		sink: sink,
		cfg:  cfg,
	}, nil
}

// Start opens the configured capture device and begins processing.
// A device that cannot be opened is fatal; the error wraps
// audio.ErrDeviceUnavailable.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pipeline already running")
	}

	det, err := endpoint.NewDetector(p.cfg.SampleRate, p.cfg.endpointParams())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	dev, err := p.openCapture(p.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.queue = make(chan item, queueDepth)
	p.det = det
	p.dev = dev

	p.wg.Add(1)
	go p.worker(ctx)

	p.attach(dev, det, p.cfg)
	if err := dev.Start(); err != nil {
		dev.Close()
		cancel()
		p.wg.Wait()
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	p.running = true
	log.SessionStart(p.cfg.STTModel, p.cfg.TranslateModel, dev.DeviceName())
	return nil
}

// Stop halts capture and discards any utterance still in flight. No
// sink calls happen after Stop returns.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	dev := p.dev
	cancel := p.cancel
	p.mu.Unlock()

	dev.ClearCallback()
	dev.Stop()
	dev.Close()
	cancel()
	p.wg.Wait()

	log.SessionEnd(int(p.processed.Load()), int(p.dropped.Load()))
}

func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats reports utterances delivered and utterances dropped (queue
// overflow, failed or empty transcription) since the pipeline was
// created.
func (p *Pipeline) Stats() (processed, dropped uint64) {
	return p.processed.Load(), p.dropped.Load()
}

// Config returns a copy of the active configuration.
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// SetVoiceThreshold adjusts the endpoint threshold without pausing
// capture. Takes effect from the next frame.
func (p *Pipeline) SetVoiceThreshold(v float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.det != nil {
		if err := p.det.SetVoiceThreshold(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	} else if v < 0 || v > 32767 {
		return fmt.Errorf("%w: voice threshold %.1f out of range [0, 32767]", ErrInvalidConfig, v)
	}
	p.cfg.VoiceThreshold = v
	return nil
}

func (p *Pipeline) VoiceThreshold() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.VoiceThreshold
}

// UpdateConfig replaces the running configuration: capture is paused,
// the new settings applied, capture resumed. A partially buffered
// utterance at the moment of the switch is discarded. An invalid
// config is rejected and the previous one stays in force.
func (p *Pipeline) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.cfg = cfg
		return nil
	}

	p.dev.ClearCallback()

	det, err := endpoint.NewDetector(cfg.SampleRate, cfg.endpointParams())
	if err != nil {
		p.attach(p.dev, p.det, p.cfg)
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.DeviceName != p.cfg.DeviceName || cfg.SampleRate != p.cfg.SampleRate {
		prev := p.cfg
		p.dev.Stop()
		p.dev.Close()

		dev, err := p.openAndStart(cfg, det)
		if err != nil {
			// Fall back to the device that was working.
			if old, rerr := p.openAndStart(prev, p.det); rerr == nil {
				p.dev = old
			} else {
				p.running = false
				p.cancel()
			}
			return err
		}
		p.dev = dev
	} else {
		p.attach(p.dev, det, cfg)
	}

	p.stt.SetModel(cfg.STTModel)
	p.tr.SetModel(cfg.TranslateModel)
	p.det = det
	p.cfg = cfg
	log.Info(fmt.Sprintf("configuration updated: device=%q stt=%s translate=%s",
		p.dev.DeviceName(), cfg.STTModel, cfg.TranslateModel))
	return nil
}

func (p *Pipeline) openAndStart(cfg Config, det *endpoint.Detector) (audio.CaptureDevice, error) {
	dev, err := p.openCapture(cfg)
	if err != nil {
		return nil, err
	}
	p.attach(dev, det, cfg)
	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	return dev, nil
}

func (p *Pipeline) openCapture(cfg Config) (audio.CaptureDevice, error) {
	var info *audio.DeviceInfo
	if cfg.DeviceName != "" {
		devices, err := p.actx.Devices()
		if err != nil {
			return nil, fmt.Errorf("%w: listing devices: %v", audio.ErrDeviceUnavailable, err)
		}
		for i := range devices {
			if devices[i].Name == cfg.DeviceName || devices[i].ID == cfg.DeviceName {
				info = &devices[i]
				break
			}
		}
		if info == nil {
			for i := range devices {
				if strings.Contains(strings.ToLower(devices[i].Name), strings.ToLower(cfg.DeviceName)) {
					info = &devices[i]
					break
				}
			}
		}
		if info == nil {
			return nil, fmt.Errorf("%w: no device matching %q", audio.ErrDeviceUnavailable, cfg.DeviceName)
		}
	}

	dev, err := p.actx.NewCapture(info, audio.CaptureConfig{
		SampleRate: uint32(cfg.SampleRate),
		Channels:   1,
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// attach installs the capture callback. The detector is captured by
// the closure so a reconfigure swaps callback and detector together
// with respect to arriving frames. Backends deliver whatever chunk
// size suits them; the callback re-frames into fixed FrameMs frames so
// energy thresholding runs at a configured granularity. A partial
// frame left when the callback is replaced is discarded.
func (p *Pipeline) attach(dev audio.CaptureDevice, det *endpoint.Detector, cfg Config) {
	frameBytes := cfg.frameBytes()
	rate := cfg.SampleRate
	var pending []byte
	dev.SetCallback(func(data []byte, _ uint32) {
		pending = append(pending, data...)
		for len(pending) >= frameBytes {
			frame := pending[:frameBytes]
			pending = pending[frameBytes:]
			if energy, err := endpoint.Energy(frame); err == nil {
				p.sink.AudioLevel(energy)
			}
			for _, u := range det.Feed(frame, time.Now()) {
				p.enqueue(item{pcm: u.PCM, seq: p.seq.Add(1), dur: u.Duration, rate: rate})
			}
		}
	})
}

// enqueue never blocks the capture callback. On a full queue the
// oldest waiting utterance gives way to the newest.
func (p *Pipeline) enqueue(it item) {
	for {
		select {
		case p.queue <- it:
			return
		default:
		}
		select {
		case old := <-p.queue:
			p.dropped.Add(1)
			log.UtteranceDropped(old.seq, "queue full")
		default:
		}
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-p.queue:
			p.process(ctx, it)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, it item) {
	sttStart := time.Now()
	res, err := p.stt.Transcribe(ctx, it.pcm, it.rate)
	sttMs := float64(time.Since(sttStart).Milliseconds())
	if ctx.Err() != nil {
		return
	}
	if err != nil || res.Failed {
		p.dropped.Add(1)
		log.UtteranceDropped(it.seq, "transcription failed")
		return
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		p.dropped.Add(1)
		log.UtteranceDropped(it.seq, "empty transcription")
		return
	}

	upd := Update{
		Seq:        it.seq,
		Original:   res.Text,
		SourceLang: res.Language,
	}

	var translateMs float64
	direction := "none"
	if job, ok := translator.Route(res); ok && p.translateEnabled() {
		direction = job.Direction.Source + "->" + job.Direction.Target
		trStart := time.Now()
		out, terr := p.tr.Translate(ctx, job)
		translateMs = float64(time.Since(trStart).Milliseconds())
		if ctx.Err() != nil {
			return
		}
		if terr != nil {
			upd.TranslateFailed = true
			log.Errorf("utterance %d: %v", it.seq, terr)
		} else {
			upd.Translated = out
		}
	}

	p.processed.Add(1)
	log.UtteranceMetrics(it.seq, it.dur.Seconds(), sttMs, translateMs, res.Language, direction)
	log.SubtitleText(upd.Original, upd.Translated, res.Language)

	if ctx.Err() != nil {
		return
	}
	p.sink.Subtitle(upd)
}

func (p *Pipeline) translateEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.TranslateEnabled
}
