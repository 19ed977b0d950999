package audio

import (
	"errors"
	"strings"
)

// ErrDeviceUnavailable wraps any failure to open the selected capture
// device. It is fatal to pipeline start and surfaced to the user.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

var loopbackKeywords = []string{
	"monitor", "loopback", "stereo mix", "stereomix",
	"what u hear", "wave out", "blackhole", "soundflower",
	"virtual", "vb-audio", "vb-cable",
}

// IsLoopback reports whether a device name looks like a system-audio
// (loopback) source rather than a physical microphone.
func IsLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice delivers raw 16-bit LE mono PCM to the registered
// callback. The capture stage owns the device exclusively; no other
// component reads frames from it.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
