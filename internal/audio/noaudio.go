//go:build !cgo || noaudio

// This audio context is only used in cgo-less and noaudio builds.

package audio

import (
	"errors"

	"github.com/decred/slog"
)

func init() {
	newAudioContext = newNullAudioContext
}

type nullAudioContext struct{}

func newNullAudioContext() (audioContext, error) {
	return nullAudioContext{}, nil
}

func (_ nullAudioContext) name() string { return "nullaudio" }

var errAudioDisabledCompilation = errors.New("audio was disabled during compilation")

func (_ nullAudioContext) listDevices(log slog.Logger) ([]Device, error) {
	return nil, errAudioDisabledCompilation
}

// initOutput returns a device that discards slots at the rate they would be
// played.
func (_ nullAudioContext) initOutput(deviceID DeviceID, format OutputFormat,
	released ReleasedFunc) (OutputDevice, error) {
	return newClockDevice(format.SlotDuration(), released, nil), nil
}

func (_ nullAudioContext) free() error {
	return nil
}

type nullAudioDecoder struct{}

// Decode returns silence.
func (_ nullAudioDecoder) Decode(data []byte, frameSize int, fec bool, out []int16) ([]int16, error) {
	clear(out)
	return out, nil
}

func (_ nullAudioContext) newDecoder(sampleRate, channels int) (streamDecoder, error) {
	return nullAudioDecoder{}, nil
}
