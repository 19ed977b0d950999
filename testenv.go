package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"duosub/audio"
	"duosub/beep"
	"duosub/config"
	"duosub/log"
	"duosub/pipeline"
	"duosub/transcriber"
	"duosub/translator"
)

// loadWAV reads a 16 kHz mono 16-bit WAV into raw PCM.
func loadWAV(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: want 16kHz mono 16-bit, got %dHz %dch %d-bit",
			path, dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(s)))
	}
	return pcm, nil
}

// testSink prints updates in a stable machine-readable form.
type testSink struct{}

func (testSink) Subtitle(u pipeline.Update) {
	line := fmt.Sprintf("SUB\t%d\t%s\t%s\t%s", u.Seq, u.SourceLang, u.Original, u.Translated)
	if u.TranslateFailed {
		line += "\tTRANSLATE_FAILED"
	}
	fmt.Println(line)
}

func (testSink) AudioLevel(float64) {}

// runTestMode drives the pipeline from a WAV file and stdin commands
// instead of live capture and hotkeys.
func runTestMode(wavPath string, fileCfg *config.Config, pcfg pipeline.Config) {
	beep.Disable()

	pcm, err := loadWAV(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	fakeCtx := audio.NewFakeContext(pcm, fileCfg.Audio.SampleRate, false)

	stt, err := transcriber.NewWhisper(fileCfg.STT.URL, fileCfg.STT.Model, fileCfg.STT.Format,
		time.Duration(fileCfg.STT.TimeoutS)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tr := translator.NewOllama(fileCfg.Translate.URL, fileCfg.Translate.Model,
		time.Duration(fileCfg.Translate.TimeoutS)*time.Second)

	p, err := pipeline.New(fakeCtx, stt, tr, testSink{}, pcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := p.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	capture := fakeCtx.LastCapture()

	quit := func() {
		p.Stop()
		processed, dropped := p.Stats()
		fmt.Printf("DONE\t%d\t%d\n", processed, dropped)
		os.Exit(0)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "WAIT_AUDIO_DONE":
			<-capture.AudioDone()
		case cmd == "TOGGLE":
			if p.Running() {
				p.Stop()
			} else if err := p.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			} else {
				capture = fakeCtx.LastCapture()
			}
		case cmd == "QUIT":
			quit()
		case strings.HasPrefix(cmd, "THRESHOLD "):
			if v, err := strconv.ParseFloat(cmd[len("THRESHOLD "):], 64); err == nil {
				if err := p.SetVoiceThreshold(v); err != nil {
					log.Warnf("threshold rejected: %v", err)
				}
			}
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(cmd[len("SLEEP "):]); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		}
	}
	quit()
}
