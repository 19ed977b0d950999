// Package transcriber wraps the local speech-to-text engine. Calls are
// blocking and slow (hundreds of ms to seconds); the pipeline invokes
// them off the capture path, one at a time.
package transcriber

import "context"

// Langs in the closed set the router understands.
const (
	LangChinese = "zh"
	LangEnglish = "en"
	LangOther   = "other"
)

// Result is produced once per utterance. Language is always one of
// LangChinese, LangEnglish, LangOther. A Failed result carries empty
// text and is dropped by the coordinator; engine errors never
// propagate past the pipeline boundary.
type Result struct {
	Text       string
	Language   string
	Confidence float64
	Failed     bool
}

type Transcriber interface {
	Name() string
	Model() string
	SetModel(model string)
	// Transcribe recognizes one utterance's PCM and identifies its
	// language in the same call. sampleRate is the rate the PCM was
	// captured at.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error)
}
