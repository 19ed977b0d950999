package hotkey

import (
	"golang.design/x/hotkey"
)

// xHotkey binds Ctrl+Shift+S globally for toggling subtitles while
// another window has focus.
type xHotkey struct {
	hk      *hotkey.Hotkey
	toggled chan struct{}
	done    chan struct{}
}

func New() Hotkey {
	return &xHotkey{
		hk:      hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyS),
		toggled: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.done:
				return
			case <-h.hk.Keydown():
			}
			select {
			case h.toggled <- struct{}{}:
			default:
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	h.hk.Unregister()
}

func (h *xHotkey) Toggled() <-chan struct{} {
	return h.toggled
}

func Diagnose() (string, error) {
	return "hotkey support available (Ctrl+Shift+S)", nil
}
