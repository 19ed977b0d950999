package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"duosub/encoder"
	"duosub/log"
)

const DefaultWhisperURL = "http://localhost:8080/inference"

// Whisper talks to a local whisper server (whisper.cpp server or any
// OpenAI-compatible /audio/transcriptions endpoint). One request per
// utterance; language identification happens in the same call.
type Whisper struct {
	client *TracedClient
	apiURL string
	format string

	mu    sync.Mutex
	model string
}

func NewWhisper(apiURL, model, format string, timeout time.Duration) (*Whisper, error) {
	if apiURL == "" {
		apiURL = DefaultWhisperURL
	}
	// Rate only matters per utterance; any valid one checks the format.
	if _, err := encoder.New(format, 16000); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Whisper{
		client: NewTracedClient(timeout),
		apiURL: apiURL,
		format: format,
		model:  model,
	}, nil
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Model() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.model
}

func (w *Whisper) SetModel(model string) {
	w.mu.Lock()
	w.model = model
	w.mu.Unlock()
}

type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads the utterance and returns recognized text plus
// the detected language. Engine errors and timeouts come back as a
// Failed result with the cause in the returned error; callers log it
// and drop the utterance.
func (w *Whisper) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error) {
	enc, err := encoder.New(w.format, sampleRate)
	if err != nil {
		return Result{Failed: true, Language: LangOther}, err
	}
	audioData, err := enc.Encode(pcm)
	if err != nil {
		return Result{Failed: true, Language: LangOther}, fmt.Errorf("encoding utterance: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance."+enc.Ext())
	if err != nil {
		return Result{Failed: true, Language: LangOther}, err
	}
	if _, err := part.Write(audioData); err != nil {
		return Result{Failed: true, Language: LangOther}, err
	}

	writer.WriteField("model", w.Model())
	writer.WriteField("response_format", "verbose_json")
	// Language deliberately omitted: the engine auto-detects, which is
	// what drives the translation direction.
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL, &body)
	if err != nil {
		return Result{Failed: true, Language: LangOther}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{Failed: true, Language: LangOther}, fmt.Errorf("whisper request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Failed: true, Language: LangOther},
			fmt.Errorf("whisper server error %d: %s", resp.StatusCode, truncate(string(resp.Body), 200))
	}

	var wResp whisperResponse
	if err := json.Unmarshal(resp.Body, &wResp); err != nil {
		return Result{Failed: true, Language: LangOther}, fmt.Errorf("whisper response parse: %w", err)
	}

	confidence := 1.0
	for _, seg := range wResp.Segments {
		if c := 1.0 - seg.NoSpeechProb; c < confidence {
			confidence = c
		}
	}

	m := resp.Metrics
	log.TranscribeMetrics(float64(len(pcm)/2)/float64(sampleRate),
		float64(len(audioData))/1024,
		float64(m.TTFB.Milliseconds()), float64(m.Total.Milliseconds()), m.ConnReused)

	return Result{
		Text:       strings.TrimSpace(wResp.Text),
		Language:   NormalizeLanguage(wResp.Language),
		Confidence: confidence,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
