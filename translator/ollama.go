package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const DefaultOllamaURL = "http://localhost:11434"

// Ollama translates via a local ollama server's generate endpoint.
// The model id travels with every request so it can be swapped at
// runtime through the coordinator's configuration surface.
type Ollama struct {
	client  *http.Client
	baseURL string

	mu    sync.Mutex
	model string
}

func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ollama{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

func (o *Ollama) SetModel(model string) {
	o.mu.Lock()
	o.model = model
	o.mu.Unlock()
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func prompt(job Job) string {
	if job.Direction.Source == "zh" {
		return "Translate this Chinese to English: " + job.Text
	}
	return "Translate this to Chinese: " + job.Text
}

func (o *Ollama) Translate(ctx context.Context, job Job) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  o.Model(),
		Prompt: prompt(job),
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: server returned %d", ErrTranslationFailed, resp.StatusCode)
	}

	var gResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrTranslationFailed, err)
	}

	out := CleanResponse(gResp.Response)
	if out == "" {
		return "", fmt.Errorf("%w: empty translation", ErrTranslationFailed)
	}
	return out, nil
}

// Ping checks the server is reachable and reports whether the
// configured model is installed.
func (o *Ollama) Ping(ctx context.Context) (modelInstalled bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: server returned %d", ErrTranslationFailed, resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, nil
	}
	model := o.Model()
	for _, m := range tags.Models {
		if m.Name == model || strings.HasPrefix(m.Name, model+":") {
			return true, nil
		}
	}
	return false, nil
}

// Small local models tend to preface translations with boilerplate.
// Strip the known offenders.
var boilerplatePrefixes = []string{
	"以下英文翻译成中文：", "以下中文翻译成英文：",
	"翻译：", "Translation:", ":", "：",
	"Translate this English to Chinese:", "Translate this Chinese to English:",
	"Translate to Chinese:", "Translate to English:",
	"中文翻译：", "英文翻译：",
	"Here is the translation:", "The translation is:",
	"好的，", "Okay,", "嗯，", "Certainly,",
}

func CleanResponse(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range boilerplatePrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
		}
	}
	return strings.TrimSpace(s)
}
