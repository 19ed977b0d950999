// Package doctor runs interactive diagnostics for the local
// subtitle stack: capture devices, the whisper server and the ollama
// server.
package doctor

import (
	"context"
	"fmt"
	"time"

	"duosub/audio"
	"duosub/config"
	"duosub/transcriber"
	"duosub/translator"
)

// Run executes the diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(configPath string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("duosub doctor - system diagnostics")
	fmt.Println("==================================")

	cfg, ok := checkConfig(configPath)
	allPass := ok

	if !checkDevices() {
		allPass = false
	}
	if !checkWhisper(cfg) {
		allPass = false
	}
	if !checkOllama(cfg) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(path string) (*config.Config, bool) {
	fmt.Println()
	fmt.Println("[1/4] Configuration")

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return config.Default(), false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return config.Default(), false
	}
	fmt.Println("  PASS: configuration valid")
	return cfg, true
}

func checkDevices() bool {
	fmt.Println()
	fmt.Println("[2/4] Capture devices")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	loopbacks := 0
	for _, d := range devices {
		tag := ""
		if audio.IsLoopback(d.Name) {
			tag = "  [system audio]"
			loopbacks++
		}
		fmt.Printf("    %s%s\n", d.Name, tag)
	}
	if loopbacks == 0 {
		fmt.Println("  Warning: no system-audio (loopback) source found;")
		fmt.Println("  subtitles for media playback need one")
	}
	fmt.Printf("  PASS: %d capture device(s)\n", len(devices))
	return true
}

func checkWhisper(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[3/4] Whisper server")

	stt, err := transcriber.NewWhisper(cfg.STT.URL, cfg.STT.Model, cfg.STT.Format,
		time.Duration(cfg.STT.TimeoutS)*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	// Half a second of silence makes a valid request without needing
	// a microphone.
	pcm := make([]byte, cfg.Audio.SampleRate)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := stt.Transcribe(ctx, pcm, cfg.Audio.SampleRate); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Printf("  Is whisper-server running at %s?\n", cfg.STT.URL)
		return false
	}
	fmt.Printf("  PASS: whisper server reachable (model %s)\n", cfg.STT.Model)
	return true
}

func checkOllama(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[4/4] Ollama server")

	if !cfg.TranslateEnabled() {
		fmt.Println("  SKIP: translation disabled")
		return true
	}

	tr := translator.NewOllama(cfg.Translate.URL, cfg.Translate.Model,
		time.Duration(cfg.Translate.TimeoutS)*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	installed, err := tr.Ping(ctx)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Printf("  Is ollama running at %s?\n", cfg.Translate.URL)
		return false
	}
	if !installed {
		fmt.Printf("  FAIL: model %q not installed (try: ollama pull %s)\n",
			cfg.Translate.Model, cfg.Translate.Model)
		return false
	}
	fmt.Printf("  PASS: ollama reachable, model %s installed\n", cfg.Translate.Model)
	return true
}
