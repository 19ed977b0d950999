// Package hotkey exposes the global pause/resume key.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	// Toggled delivers one event per press of the bound combination.
	Toggled() <-chan struct{}
}
