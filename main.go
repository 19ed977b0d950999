package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"duosub/audio"
	"duosub/beep"
	"duosub/config"
	"duosub/doctor"
	"duosub/hotkey"
	"duosub/log"
	"duosub/pipeline"
	"duosub/shutdown"
	"duosub/transcriber"
	"duosub/translator"
)

var version = "dev"

var (
	sink    EventSink
	guiMode bool

	lastMu         sync.Mutex
	lastOriginal   string
	lastTranslated string
)

var (
	deviceSelectChan = make(chan struct{}, 1)
	toggleChan       = make(chan struct{}, 1)
)

var shutdownOnce sync.Once

func gracefulShutdown(p *pipeline.Pipeline) {
	shutdownOnce.Do(func() {
		if p != nil {
			p.Stop()
		}
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

// displaySink fans pipeline output out to the active presenter and,
// in console mode, to stdout.
type displaySink struct {
	console bool
}

func (s *displaySink) Subtitle(u pipeline.Update) {
	lastMu.Lock()
	lastOriginal = u.Original
	lastTranslated = u.Translated
	lastMu.Unlock()

	if sink != nil {
		sink.Subtitle(u.Original, u.Translated, u.SourceLang, u.TranslateFailed)
	}
	if s.console {
		fmt.Printf("[%s] %s\n", u.SourceLang, u.Original)
		switch {
		case u.TranslateFailed:
			fmt.Println("     (translation unavailable)")
		case u.Translated != "":
			fmt.Printf("     %s\n", u.Translated)
		}
	}
}

func (s *displaySink) AudioLevel(level float64) {
	if sink != nil {
		sink.AudioLevel(level)
	}
}

func copyLast() {
	lastMu.Lock()
	text := lastTranslated
	if text == "" {
		text = lastOriginal
	}
	lastMu.Unlock()
	if text != "" {
		if err := clipboard.WriteAll(text); err != nil {
			log.Warnf("clipboard copy failed: %v", err)
		}
	}
}

func deviceLineText(name string) string {
	if name == "" {
		return "source: system default (ctrl+g)"
	}
	suffix := ""
	if audio.IsLoopback(name) {
		suffix = " [system audio]"
	}
	return "source: " + name + suffix + " (ctrl+g)"
}

func pipelineConfig(c *config.Config) pipeline.Config {
	return pipeline.Config{
		DeviceName:       c.Device,
		SampleRate:       c.Audio.SampleRate,
		FrameMs:          c.Audio.FrameMs,
		VoiceThreshold:   c.Endpoint.VoiceThreshold,
		SilenceDuration:  time.Duration(c.Endpoint.SilenceMs) * time.Millisecond,
		MinUtterance:     time.Duration(c.Endpoint.MinSpeechMs) * time.Millisecond,
		MaxUtterance:     time.Duration(c.Endpoint.MaxSpeechMs) * time.Millisecond,
		STTModel:         c.STT.Model,
		TranslateModel:   c.Translate.Model,
		TranslateEnabled: c.TranslateEnabled(),
	}
}

func run() {
	configFlag := flag.String("config", "", "Config file path (default: ~/.config/duosub/config.yaml)")
	setupFlag := flag.Bool("setup", false, "Select capture device interactively")
	deviceFlag := flag.String("device", "", "Capture from the named device (e.g. a monitor source)")
	formatFlag := flag.String("format", "", "Upload format: wav or flac")
	sttURLFlag := flag.String("stt-url", "", "Whisper server inference URL")
	sttModelFlag := flag.String("stt-model", "", "Whisper model name")
	trURLFlag := flag.String("translate-url", "", "Ollama server URL")
	trModelFlag := flag.String("translate-model", "", "Ollama model name")
	translateFlag := flag.Bool("translate", true, "Translate recognized speech")
	thresholdFlag := flag.Float64("threshold", 0, "Voice energy threshold (overrides config)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Bool("gui", false, "Run with graphical subtitle overlay (requires gui build tag)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven WAV input)")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("duosub %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*configFlag))
	}

	fileCfg, err := config.LoadOrDefault(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the file.
	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if *deviceFlag != "" {
		fileCfg.Device = *deviceFlag
	}
	if *formatFlag != "" {
		fileCfg.STT.Format = *formatFlag
	}
	if *sttURLFlag != "" {
		fileCfg.STT.URL = *sttURLFlag
	}
	if *sttModelFlag != "" {
		fileCfg.STT.Model = *sttModelFlag
	}
	if *trURLFlag != "" {
		fileCfg.Translate.URL = *trURLFlag
	}
	if *trModelFlag != "" {
		fileCfg.Translate.Model = *trModelFlag
	}
	if setFlags["translate"] {
		enabled := *translateFlag
		fileCfg.Translate.Enabled = &enabled
	}
	if setFlags["threshold"] {
		fileCfg.Endpoint.VoiceThreshold = *thresholdFlag
	}
	if err := fileCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve -setup into a device name before anything else grabs
	// the terminal.
	if *setupFlag && *deviceFlag == "" {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		if dev, _ := audio.SelectDevice(actx); dev != nil {
			fileCfg.Device = dev.Name
		}
		actx.Close()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	pcfg := pipelineConfig(fileCfg)

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: duosub -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], fileCfg, pcfg)
		return
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	stt, err := transcriber.NewWhisper(fileCfg.STT.URL, fileCfg.STT.Model, fileCfg.STT.Format,
		time.Duration(fileCfg.STT.TimeoutS)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tr := translator.NewOllama(fileCfg.Translate.URL, fileCfg.Translate.Model,
		time.Duration(fileCfg.Translate.TimeoutS)*time.Second)

	// Probe ollama up front. Without it subtitles still work, just
	// untranslated.
	if pcfg.TranslateEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		installed, err := tr.Ping(ctx)
		cancel()
		switch {
		case err != nil:
			log.Warnf("ollama unreachable, translation disabled: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: ollama unreachable at %s, showing originals only\n", fileCfg.Translate.URL)
			pcfg.TranslateEnabled = false
		case !installed:
			log.Warnf("ollama model %s not installed, translation disabled", fileCfg.Translate.Model)
			fmt.Fprintf(os.Stderr, "Warning: model %q not installed (try: ollama pull %s), showing originals only\n",
				fileCfg.Translate.Model, fileCfg.Translate.Model)
			pcfg.TranslateEnabled = false
		}
	}

	p, err := pipeline.New(actx, stt, tr, &displaySink{console: !*tuiFlag && !guiMode}, pcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *tuiFlag && !guiMode {
		actions := tuiActions{
			ThresholdDelta: func(delta float64) {
				v := p.VoiceThreshold() + delta
				if v < 0 {
					v = 0
				}
				if err := p.SetVoiceThreshold(v); err == nil {
					tuiSend(ThresholdMsg{Value: v})
				}
			},
			Toggle: func() {
				select {
				case toggleChan <- struct{}{}:
				default:
				}
			},
			CopyLast: copyLast,
			SelectDevice: func() {
				select {
				case deviceSelectChan <- struct{}{}:
				default:
				}
			},
		}
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(actions, pcfg.VoiceThreshold)
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown(p)
		}()
		<-tuiReady
		sink = tuiSink{}
	}

	if err := p.Start(); err != nil {
		log.Errorf("pipeline start error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if sink != nil {
		sink.StatusLine(fmt.Sprintf("[whisper %s | ollama %s]", fileCfg.STT.Model, fileCfg.Translate.Model))
		sink.Paused(false)
	}
	tuiSend(DeviceLineMsg{Text: deviceLineText(fileCfg.Device)})

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		// The TUI toggle still works without the global key.
		log.Warnf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: global hotkey unavailable: %v\n", err)
	} else {
		defer hk.Unregister()
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	paused := false
	toggle := func() {
		if paused {
			if err := p.Start(); err != nil {
				log.Errorf("resume error: %v", err)
				beep.PlayError()
				return
			}
			paused = false
			log.Info("subtitles_resumed")
			go beep.PlayStart()
		} else {
			p.Stop()
			paused = true
			log.Info("subtitles_paused")
			go beep.PlayEnd()
		}
		if sink != nil {
			sink.Paused(paused)
		}
	}

	for {
		select {
		case <-sigChan:
			gracefulShutdown(p)
		case <-hk.Toggled():
			toggle()
		case <-toggleChan:
			toggle()
		case <-deviceSelectChan:
			handleDeviceSelect(actx, p)
		}
	}
}

func handleDeviceSelect(actx audio.Context, p *pipeline.Pipeline) {
	if tuiProgram != nil {
		tuiProgram.ReleaseTerminal()
	}
	dev, err := audio.SelectDevice(actx)
	if tuiProgram != nil {
		tuiProgram.RestoreTerminal()
	}

	if err != nil {
		log.Warnf("device selection failed: %v", err)
		return
	}
	if dev == nil {
		return
	}

	cfg := p.Config()
	cfg.DeviceName = dev.Name
	if err := p.UpdateConfig(cfg); err != nil {
		log.Errorf("device switch error: %v", err)
		beep.PlayError()
		return
	}
	tuiSend(DeviceLineMsg{Text: deviceLineText(dev.Name)})
}
