//go:build !linux

package beep

// No cue playback off Linux yet.

func Init()      {}
func PlayStart() {}
func PlayEnd()   {}
func PlayError() {}
