package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"zh":       LangChinese,
		"zh-CN":    LangChinese,
		"zh_TW":    LangChinese,
		"chinese":  LangChinese,
		"cmn":      LangChinese,
		"yue":      LangChinese,
		"en":       LangEnglish,
		"EN-us":    LangEnglish,
		"english":  LangEnglish,
		"ja":       LangOther,
		"de":       LangOther,
		"unknown":  LangOther,
		"":         LangOther,
		"  zh  ":   LangChinese,
	}
	for in, want := range cases {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func whisperTestServer(t *testing.T, text, lang string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			file.Close()
			if len(data) == 0 {
				t.Error("empty upload")
			}
			if hdr.Filename != "utterance.wav" {
				t.Errorf("unexpected upload filename %q", hdr.Filename)
			}
		}
		if got := r.FormValue("model"); got != "base" {
			t.Errorf("model field %q, want base", got)
		}
		if r.FormValue("language") != "" {
			t.Error("language must be left to auto-detection")
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"text":     text,
			"language": lang,
		})
	}))
}

func TestWhisperTranscribe(t *testing.T) {
	srv := whisperTestServer(t, " 你好世界 ", "zh", http.StatusOK)
	defer srv.Close()

	w, err := NewWhisper(srv.URL, "base", "wav", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]byte, 16000) // 500ms of silence is a fine payload here
	res, err := w.Transcribe(context.Background(), pcm, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed {
		t.Fatal("unexpected failed result")
	}
	if res.Text != "你好世界" {
		t.Errorf("text %q, want trimmed 你好世界", res.Text)
	}
	if res.Language != LangChinese {
		t.Errorf("language %q, want zh", res.Language)
	}
}

// The uploaded container header must carry the capture rate. A 48kHz
// utterance stamped as 16kHz arrives three times slower than real time
// and transcribes as garbage.
func TestWhisperUploadCarriesCaptureRate(t *testing.T) {
	const rate = 48000
	headerRate := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		file.Close()
		dec := wav.NewDecoder(bytes.NewReader(data))
		dec.ReadInfo()
		if err := dec.Err(); err != nil {
			t.Errorf("decoding upload: %v", err)
			return
		}
		headerRate <- int(dec.SampleRate)
		json.NewEncoder(w).Encode(map[string]any{"text": "ok", "language": "en"})
	}))
	defer srv.Close()

	w, err := NewWhisper(srv.URL, "base", "wav", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]byte, rate) // 500ms of silence at 48kHz
	if _, err := w.Transcribe(context.Background(), pcm, rate); err != nil {
		t.Fatal(err)
	}
	if got := <-headerRate; got != rate {
		t.Errorf("uploaded wav header says %d Hz for audio captured at %d Hz", got, rate)
	}
}

func TestWhisperServerErrorYieldsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w, err := NewWhisper(srv.URL, "base", "wav", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	res, err := w.Transcribe(context.Background(), make([]byte, 3200), 16000)
	if err == nil {
		t.Fatal("expected error from server failure")
	}
	if !res.Failed {
		t.Error("expected Failed flag on error")
	}
	if res.Text != "" {
		t.Errorf("failed result must carry empty text, got %q", res.Text)
	}
}

func TestWhisperTimeoutYieldsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context; otherwise srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	w, err := NewWhisper(srv.URL, "base", "wav", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	res, err := w.Transcribe(context.Background(), make([]byte, 3200), 16000)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !res.Failed {
		t.Error("expected Failed flag on timeout")
	}
}

func TestWhisperRejectsUnknownFormat(t *testing.T) {
	if _, err := NewWhisper("", "base", "ogg", 0); err == nil {
		t.Error("expected error for unsupported upload format")
	}
}

func TestFakeScriptAndCancellation(t *testing.T) {
	f := NewFake(
		Result{Text: "one", Language: LangEnglish},
		Result{Text: "two", Language: LangChinese},
	)

	r1, err := f.Transcribe(context.Background(), nil, 16000)
	if err != nil || r1.Text != "one" {
		t.Fatalf("first call: %v %v", r1, err)
	}
	r2, _ := f.Transcribe(context.Background(), nil, 16000)
	r3, _ := f.Transcribe(context.Background(), nil, 16000)
	if r2.Text != "two" || r3.Text != "two" {
		t.Errorf("script repeat: got %q then %q", r2.Text, r3.Text)
	}

	slow := NewFake(Result{Text: "late"}).WithDelay(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := slow.Transcribe(ctx, nil, 16000); err == nil {
		t.Error("expected context cancellation error")
	}
}
