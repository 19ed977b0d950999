// Package encoder turns a completed utterance's raw PCM into a
// container format the speech-to-text server accepts.
package encoder

import "fmt"

const (
	Channels      = 1
	BitsPerSample = 16
)

type Encoder interface {
	// Encode wraps 16-bit LE mono PCM into the target format.
	Encode(pcm []byte) ([]byte, error)
	// Ext is the file extension used for the upload filename.
	Ext() string
}

// New builds an encoder that stamps sampleRate into the container
// header, so the server plays the audio back at capture speed.
func New(format string, sampleRate int) (Encoder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	switch format {
	case "wav":
		return NewWav(sampleRate), nil
	case "flac":
		return NewFlac(sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown format %q (use wav or flac)", format)
	}
}
