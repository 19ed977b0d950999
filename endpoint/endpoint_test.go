package endpoint

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

const testRate = 16000

func genTone(freq float64, durationMs int, amp float64) []byte {
	n := testRate * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(amp * math.Sin(2*math.Pi*freq*float64(i)/testRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func genSilence(durationMs int) []byte {
	return make([]byte, testRate*durationMs/1000*2)
}

func testParams() Params {
	return Params{
		VoiceThreshold:  40,
		SilenceDuration: 800 * time.Millisecond,
		MinUtterance:    300 * time.Millisecond,
		MaxUtterance:    8 * time.Second,
	}
}

// feed splits pcm into frameMs frames and routes them through the detector.
func feed(t *testing.T, d *Detector, pcm []byte, frameMs int) []Utterance {
	t.Helper()
	frameBytes := testRate * frameMs / 1000 * 2
	now := time.Now()
	var out []Utterance
	for i := 0; i < len(pcm); i += frameBytes {
		end := i + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frameTime := now.Add(time.Duration(i/2) * time.Second / testRate)
		out = append(out, d.Feed(pcm[i:end], frameTime)...)
	}
	return out
}

func TestEnergySilenceIsZero(t *testing.T) {
	e, err := Energy(genSilence(100))
	if err != nil {
		t.Fatal(err)
	}
	if e != 0 {
		t.Errorf("expected zero energy for silence, got %f", e)
	}
}

func TestEnergyMalformedFrame(t *testing.T) {
	if _, err := Energy(nil); err == nil {
		t.Error("expected error for empty frame")
	}
	if _, err := Energy([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd-length frame")
	}
}

func TestSilenceOnlyEmitsNothing(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}
	if got := feed(t, d, genSilence(5000), 64); len(got) != 0 {
		t.Fatalf("expected no utterances from silence, got %d", len(got))
	}
}

func TestBurstThenSilenceEmitsOne(t *testing.T) {
	// 500ms of loud tone + 1000ms silence at silenceDuration=800ms,
	// minUtterance=300ms, threshold=40 yields exactly one utterance
	// of roughly 500ms.
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	pcm := append(genTone(440, 500, 8000), genSilence(1000)...)
	got := feed(t, d, pcm, 64)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 utterance, got %d", len(got))
	}

	u := got[0]
	if u.Duration < 400*time.Millisecond || u.Duration > 640*time.Millisecond {
		t.Errorf("utterance duration %s, expected ~500ms", u.Duration)
	}
	if u.Seq != 1 {
		t.Errorf("expected seq 1, got %d", u.Seq)
	}
}

func TestTrailingSilenceExcluded(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	pcm := append(genTone(440, 600, 8000), genSilence(1200)...)
	got := feed(t, d, pcm, 64)
	if len(got) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(got))
	}
	// The emitted PCM must not include the full trailing silence.
	if got[0].Duration > 900*time.Millisecond {
		t.Errorf("trailing silence not trimmed: duration %s", got[0].Duration)
	}
}

func TestShortBurstDiscardedAsNoise(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	pcm := append(genTone(440, 150, 8000), genSilence(1000)...)
	if got := feed(t, d, pcm, 64); len(got) != 0 {
		t.Fatalf("expected 150ms burst to be discarded, got %d utterances", len(got))
	}
}

func TestBriefDipDoesNotSplit(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	// 400ms speech, 300ms dip (below silenceDuration), 400ms speech.
	pcm := genTone(440, 400, 8000)
	pcm = append(pcm, genSilence(300)...)
	pcm = append(pcm, genTone(440, 400, 8000)...)
	pcm = append(pcm, genSilence(1000)...)

	got := feed(t, d, pcm, 64)
	if len(got) != 1 {
		t.Fatalf("expected dip to be absorbed into one utterance, got %d", len(got))
	}
	if got[0].Duration < time.Second {
		t.Errorf("expected utterance spanning the dip, got %s", got[0].Duration)
	}
}

func TestMaxUtteranceForceCut(t *testing.T) {
	p := testParams()
	p.MaxUtterance = 2 * time.Second
	d, err := NewDetector(testRate, p)
	if err != nil {
		t.Fatal(err)
	}

	got := feed(t, d, genTone(440, 5000, 8000), 64)
	if len(got) < 2 {
		t.Fatalf("expected continuous speech to be force-cut, got %d utterances", len(got))
	}
	for i, u := range got {
		if u.Duration > 2200*time.Millisecond {
			t.Errorf("utterance %d exceeds max duration: %s", i, u.Duration)
		}
	}
}

func TestSequencesAreMonotonic(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	var pcm []byte
	for i := 0; i < 3; i++ {
		pcm = append(pcm, genTone(440, 500, 8000)...)
		pcm = append(pcm, genSilence(1000)...)
	}
	got := feed(t, d, pcm, 64)
	if len(got) != 3 {
		t.Fatalf("expected 3 utterances, got %d", len(got))
	}
	for i, u := range got {
		if u.Seq != uint64(i+1) {
			t.Errorf("utterance %d has seq %d", i, u.Seq)
		}
	}
}

func TestThresholdAdjustableWhileRunning(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	// Quiet tone below the initial threshold: nothing captured.
	quiet := append(genTone(440, 500, 30), genSilence(1000)...)
	if got := feed(t, d, quiet, 64); len(got) != 0 {
		t.Fatalf("quiet tone should not trigger at threshold 40, got %d", len(got))
	}

	if err := d.SetVoiceThreshold(10); err != nil {
		t.Fatal(err)
	}
	if got := feed(t, d, quiet, 64); len(got) != 1 {
		t.Fatalf("expected quiet tone to trigger after lowering threshold, got %d", len(got))
	}
}

func TestSetVoiceThresholdRejectsOutOfRange(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetVoiceThreshold(-1); err == nil {
		t.Error("expected error for negative threshold")
	}
	if err := d.SetVoiceThreshold(40000); err == nil {
		t.Error("expected error for threshold above int16 range")
	}
	if got := d.VoiceThreshold(); got != 40 {
		t.Errorf("threshold changed after rejected update: %f", got)
	}
}

func TestMalformedFrameDroppedMidCapture(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	frame := genTone(440, 64, 8000)
	d.Feed(frame, now)
	d.Feed([]byte{0x01}, now) // dropped, capture continues

	pcm := append(genTone(440, 500, 8000), genSilence(1000)...)
	if got := feed(t, d, pcm, 64); len(got) != 1 {
		t.Fatalf("expected capture to survive malformed frame, got %d utterances", len(got))
	}
}

func TestFlushEmitsPartialCapture(t *testing.T) {
	d, err := NewDetector(testRate, testParams())
	if err != nil {
		t.Fatal(err)
	}

	feed(t, d, genTone(440, 600, 8000), 64)
	got := d.Flush()
	if len(got) != 1 {
		t.Fatalf("expected flush to emit in-progress utterance, got %d", len(got))
	}
	if d.Flush() != nil {
		t.Error("second flush should emit nothing")
	}
}

func TestParamsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative threshold", func(p *Params) { p.VoiceThreshold = -5 }},
		{"zero silence", func(p *Params) { p.SilenceDuration = 0 }},
		{"zero min", func(p *Params) { p.MinUtterance = 0 }},
		{"max below min", func(p *Params) { p.MaxUtterance = 100 * time.Millisecond }},
	}
	for _, tc := range cases {
		p := DefaultParams()
		tc.mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("default params should validate: %v", err)
	}
}
