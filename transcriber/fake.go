package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake is a scriptable transcriber for tests. Results are returned in
// order; when the script is exhausted the last entry repeats.
type Fake struct {
	mu       sync.Mutex
	script   []Result
	err      error
	delay    time.Duration
	model    string
	calls    int
	lastRate int
	OnCall   func(n int)
}

func NewFake(script ...Result) *Fake {
	return &Fake{script: script, model: "fake-model"}
}

func (f *Fake) WithDelay(d time.Duration) *Fake {
	f.delay = d
	return f
}

func (f *Fake) WithError(err error) *Fake {
	f.err = err
	return f
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Model() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *Fake) SetModel(model string) {
	f.mu.Lock()
	f.model = model
	f.mu.Unlock()
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastSampleRate reports the rate passed to the most recent call.
func (f *Fake) LastSampleRate() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRate
}

func (f *Fake) Transcribe(ctx context.Context, _ []byte, sampleRate int) (Result, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	f.lastRate = sampleRate
	var res Result
	if len(f.script) > 0 {
		i := n
		if i >= len(f.script) {
			i = len(f.script) - 1
		}
		res = f.script[i]
	}
	err := f.err
	delay := f.delay
	hook := f.OnCall
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{Failed: true, Language: LangOther}, ctx.Err()
		}
	}
	if err != nil {
		return Result{Failed: true, Language: LangOther}, err
	}
	return res, nil
}
