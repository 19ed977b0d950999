// Package log writes file-backed diagnostics plus a plain subtitle
// transcript. Nothing here blocks the pipeline: when logging is not
// initialized every call is a no-op.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog      zerolog.Logger
	diagFile     *os.File
	subtitleFile *os.File
	logMu        sync.Mutex
	logReady     bool
	pid          int
	dir          string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: DUOSUB_LOG_PATH environment variable
	envPath := os.Getenv("DUOSUB_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	subtitlePath := filepath.Join(dir, "subtitle_log.txt")
	subtitleFile, err = os.OpenFile(subtitlePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if subtitleFile != nil {
		subtitleFile.Close()
		subtitleFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// SessionStart records the active models and device once per pipeline start.
func SessionStart(sttModel, translateModel, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("stt_model", sttModel).
		Str("translate_model", translateModel).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(utterances, dropped int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("utterances", utterances).
		Int("dropped", dropped).
		Msg("session_end")
}

// TranscribeMetrics records per-request speech-to-text timing.
func TranscribeMetrics(audioS, uploadKB, ttfbMs, totalMs float64, connReused bool) {
	if !logReady {
		return
	}
	connStatus := "new"
	if connReused {
		connStatus = "reused"
	}
	diagLog.Info().
		Str("conn", connStatus).
		Float64("audio_s", audioS).
		Float64("upload_kb", uploadKB).
		Float64("ttfb_ms", ttfbMs).
		Float64("total_ms", totalMs).
		Msg("transcription")
}

// UtteranceMetrics records one utterance's trip through the worker.
func UtteranceMetrics(seq uint64, audioS, sttMs, translateMs float64, lang, direction string) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Uint64("seq", seq).
		Float64("audio_s", audioS).
		Float64("stt_ms", sttMs).
		Str("lang", lang)
	if direction != "" {
		ev = ev.Str("direction", direction).Float64("translate_ms", translateMs)
	}
	ev.Msg("utterance")
}

// UtteranceDropped records why an utterance produced no subtitle.
func UtteranceDropped(seq uint64, reason string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("seq", seq).
		Str("reason", reason).
		Msg("utterance_dropped")
}

// SubtitleText appends the delivered pair to the plain transcript.
func SubtitleText(original, translated, lang string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if subtitleFile == nil {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("%s\t[%d]\t[%s]\t%s\t%s\n", ts, pid, lang, original, translated)
	subtitleFile.WriteString(line)
}
