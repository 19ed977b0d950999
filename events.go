package main

// EventSink abstracts the display layer so the Bubble Tea TUI, the
// Fyne overlay and the headless console all receive the same
// pipeline events.
type EventSink interface {
	Subtitle(original, translated, sourceLang string, translateFailed bool)
	AudioLevel(level float64)
	Paused(paused bool)
	StatusLine(text string)
}
