// Package translator routes recognized text to the counterpart
// language and talks to the local translation model server.
package translator

import (
	"context"
	"errors"
)

// ErrTranslationFailed marks service errors (timeout, unreachable,
// bad response). The coordinator degrades to showing the original
// text only; the pipeline never stops over it.
var ErrTranslationFailed = errors.New("translation failed")

type Direction struct {
	Source string
	Target string
}

// Job pairs recognized text with its resolved direction. A job is
// consumed exactly once by the translation collaborator.
type Job struct {
	Text      string
	Direction Direction
}

type Translator interface {
	Name() string
	Model() string
	SetModel(model string)
	Translate(ctx context.Context, job Job) (string, error)
}
