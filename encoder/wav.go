package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type WavEncoder struct {
	sampleRate int
}

func NewWav(sampleRate int) *WavEncoder { return &WavEncoder{sampleRate: sampleRate} }

func (e *WavEncoder) Ext() string { return "wav" }

func (e *WavEncoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm length %d not sample-aligned", len(pcm))
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	var ws memWriteSeeker
	enc := wav.NewEncoder(&ws, e.sampleRate, BitsPerSample, Channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: e.sampleRate},
		SourceBitDepth: BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("writing wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing wav: %w", err)
	}
	return ws.buf.Bytes(), nil
}

// memWriteSeeker satisfies io.WriteSeeker in memory; the wav encoder
// seeks back to patch the RIFF header sizes on Close.
type memWriteSeeker struct {
	buf bytes.Buffer
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if m.pos < m.buf.Len() {
		n := copy(m.buf.Bytes()[m.pos:], p)
		if n < len(p) {
			m.buf.Write(p[n:])
		}
	} else {
		m.buf.Write(p)
	}
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int
	switch whence {
	case io.SeekStart:
		abs = int(offset)
	case io.SeekCurrent:
		abs = m.pos + int(offset)
	case io.SeekEnd:
		abs = m.buf.Len() + int(offset)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position")
	}
	m.pos = abs
	return int64(abs), nil
}
