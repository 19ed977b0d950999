//go:build gui

package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	overlayMargin = 40
	overlayWidth  = 0.6 // fraction of the screen work area
)

// App is the frameless subtitle overlay. It sits bottom-center above
// other windows and never takes focus, so subtitles read like they
// belong to the video underneath.
type App struct {
	fyneApp    fyne.App
	window     fyne.Window
	original   *widget.Label
	translated *widget.Label
	onReady    func()
	posX       int
	posY       int
}

func NewApp(onReady func()) *App {
	return &App{onReady: onReady}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.duosub.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("duosub",
			fyne.NewMenuItem("Quit", func() {
				a.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(menu)
	}

	var screenW, screenH int
	monitor := glfw.GetPrimaryMonitor()
	if monitor != nil {
		_, _, screenW, screenH = monitor.GetWorkarea()
	} else {
		screenW, screenH = 1920, 1080 // fallback
	}

	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		a.window = drv.CreateSplashWindow()
	} else {
		a.window = a.fyneApp.NewWindow("duosub")
	}

	a.original = widget.NewLabel("")
	a.original.Wrapping = fyne.TextWrapWord
	a.original.Alignment = fyne.TextAlignCenter

	a.translated = widget.NewLabel("")
	a.translated.Wrapping = fyne.TextWrapWord
	a.translated.Alignment = fyne.TextAlignCenter
	a.translated.TextStyle = fyne.TextStyle{Bold: true}

	a.window.SetContent(container.NewVBox(a.original, a.translated))
	a.window.SetPadded(false)

	width := float32(float64(screenW) * overlayWidth)
	a.window.Resize(fyne.NewSize(width, 0))
	size := a.window.Canvas().Size()

	a.posX = (screenW - int(width)) / 2
	a.posY = screenH - int(size.Height) - overlayMargin

	go a.onReady()

	// The window stays hidden until the first subtitle arrives.
	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

func (a *App) show() {
	fyne.Do(func() {
		if a.window == nil {
			return
		}
		if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
			glfwWin.SetPos(a.posX, a.posY)
			glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
			glfwWin.SetAttrib(glfw.Floating, glfw.True)
			glfwWin.Show()
		} else {
			a.window.Show()
		}
	})
}

func (a *App) hide() {
	fyne.Do(func() {
		if a.window != nil {
			a.window.Hide()
		}
	})
}

// Subtitle replaces the displayed pair. An empty translation with
// translateFailed set marks the line so the viewer knows the
// translation was lost, not absent.
func (a *App) Subtitle(original, translated, sourceLang string, translateFailed bool) {
	fyne.Do(func() {
		a.original.SetText(original)
		switch {
		case translateFailed:
			a.translated.SetText("(translation unavailable)")
		case translated == "":
			a.translated.SetText("")
		default:
			a.translated.SetText(translated)
		}
	})
	a.show()
}

func (a *App) AudioLevel(level float64) {}

func (a *App) Paused(paused bool) {
	if paused {
		a.hide()
	}
}

func (a *App) StatusLine(text string) {}
