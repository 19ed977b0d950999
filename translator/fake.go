package translator

import (
	"context"
	"sync"
	"time"
)

// Fake translates by surrounding the input with direction markers,
// which makes assertions on routing trivial.
type Fake struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	model string
	jobs  []Job
}

func NewFake() *Fake { return &Fake{model: "fake-model"} }

func (f *Fake) WithError(err error) *Fake {
	f.err = err
	return f
}

func (f *Fake) WithDelay(d time.Duration) *Fake {
	f.delay = d
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

// Jobs returns every job seen so far, in order.
func (f *Fake) Jobs() []Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Job, len(f.jobs))
	copy(out, f.jobs)
	return out
}

func (f *Fake) Translate(ctx context.Context, job Job) (string, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	err := f.err
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "[" + job.Direction.Source + "->" + job.Direction.Target + "] " + job.Text, nil
}
