// Package beep plays short audio cues when subtitle capture is
// toggled, so the state change is audible even with the overlay
// hidden.
package beep

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Resume cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Pause cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)
