package encoder

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

func genTone(rate, durationMs int) []byte {
	n := rate * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("mp3", 16000); err == nil {
		t.Error("expected error for unsupported format")
	}
	for _, f := range []string{"wav", "flac"} {
		if _, err := New(f, 16000); err != nil {
			t.Errorf("New(%q): %v", f, err)
		}
	}
}

func TestNewRejectsBadSampleRate(t *testing.T) {
	for _, rate := range []int{0, -16000} {
		if _, err := New("wav", rate); err == nil {
			t.Errorf("New(wav, %d): expected error", rate)
		}
	}
}

func TestWavHeaderAndSize(t *testing.T) {
	pcm := genTone(16000, 500)
	out, err := NewWav(16000).Encode(pcm)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(out, []byte("RIFF")) {
		t.Fatal("missing RIFF header")
	}
	if !bytes.Contains(out[:44], []byte("WAVE")) {
		t.Fatal("missing WAVE marker")
	}
	// 44-byte canonical header + raw samples
	if len(out) != 44+len(pcm) {
		t.Errorf("wav size %d, want %d", len(out), 44+len(pcm))
	}
	// Header sizes must be patched after seeking back.
	riffSize := binary.LittleEndian.Uint32(out[4:8])
	if int(riffSize) != len(out)-8 {
		t.Errorf("riff size %d, want %d", riffSize, len(out)-8)
	}
}

// The header must carry the capture rate, not assume 16kHz. A mismatch
// makes the server play the utterance time-stretched.
func TestWavHeaderCarriesSampleRate(t *testing.T) {
	for _, rate := range []int{16000, 44100, 48000} {
		out, err := NewWav(rate).Encode(genTone(rate, 200))
		if err != nil {
			t.Fatal(err)
		}
		dec := wav.NewDecoder(bytes.NewReader(out))
		dec.ReadInfo()
		if err := dec.Err(); err != nil {
			t.Fatalf("decoding wav at %d Hz: %v", rate, err)
		}
		if int(dec.SampleRate) != rate {
			t.Errorf("wav header rate %d, want %d", dec.SampleRate, rate)
		}
	}
}

func TestWavRejectsUnalignedPCM(t *testing.T) {
	if _, err := NewWav(16000).Encode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd byte count")
	}
}

func TestFlacMagicAndNonEmpty(t *testing.T) {
	out, err := NewFlac(16000).Encode(genTone(16000, 500))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(out, []byte("fLaC")) {
		t.Fatal("missing fLaC magic")
	}
	if len(out) < 1024 {
		t.Errorf("flac output suspiciously small: %d bytes", len(out))
	}
}

func TestFlacHeaderCarriesSampleRate(t *testing.T) {
	for _, rate := range []int{16000, 48000} {
		out, err := NewFlac(rate).Encode(genTone(rate, 200))
		if err != nil {
			t.Fatal(err)
		}
		stream, err := flac.Parse(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("parsing flac at %d Hz: %v", rate, err)
		}
		if int(stream.Info.SampleRate) != rate {
			t.Errorf("flac stream rate %d, want %d", stream.Info.SampleRate, rate)
		}
	}
}

func TestFlacPartialFinalBlock(t *testing.T) {
	// 100ms at 16kHz = 1600 samples, not a multiple of the block size.
	out, err := NewFlac(16000).Encode(genTone(16000, 100))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 {
		t.Fatal("empty flac output")
	}
}
