package audio

import (
	"fmt"
	"time"

	"github.com/decred/slog"
)

// SlotID identifies one of the two output slots handed to an output device.
type SlotID uint8

const (
	SlotA SlotID = iota
	SlotB
)

func (id SlotID) String() string {
	switch id {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	default:
		return fmt.Sprintf("slot(%d)", uint8(id))
	}
}

func (id SlotID) valid() bool {
	return id == SlotA || id == SlotB
}

func (id SlotID) other() SlotID {
	if id == SlotA {
		return SlotB
	}
	return SlotA
}

// ReleasedFunc is called by an output device, from its completion context,
// once it has finished playing a slot and started playing the next one. It
// must not block.
type ReleasedFunc func(id SlotID)

// OutputFormat is the format of the samples written to an output device.
// Samples are always signed 16 bit little endian, interleaved.
type OutputFormat struct {
	SampleRate int
	Channels   int

	// SlotSize is the size in bytes of each slot.
	SlotSize int
}

// SlotDuration is the playback duration of one slot.
func (f OutputFormat) SlotDuration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := f.SlotSize / (rawFormatSampleSize * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// OutputDevice is a double buffered audio output. The device plays one slot
// while the next one is queued; once a slot is played, the device switches to
// the queued slot and reports the finished one through its ReleasedFunc.
type OutputDevice interface {
	// Start starts playback with the given slot.
	Start(id SlotID, buf []byte) error

	// SetNext queues the slot to play after the current one.
	SetNext(id SlotID, buf []byte) error

	// Mute silences the output without stopping the device.
	Mute() error

	// Stop stops the device and releases its resources. No more
	// ReleasedFunc calls happen after Stop returns.
	Stop() error
}

// DeviceID is the backend specific id of an output device. An empty id
// selects the default device.
type DeviceID string

// Device describes an available output device.
type Device struct {
	ID        DeviceID `json:"id"`
	Name      string   `json:"name"`
	IsDefault bool     `json:"is_default"`
}

// streamDecoder is the decoder interface of backend provided codecs.
type streamDecoder interface {
	Decode(data []byte, frameSize int, fec bool, out []int16) ([]int16, error)
}

// audioContext is the interface to the audio backend.
type audioContext interface {
	name() string
	listDevices(log slog.Logger) ([]Device, error)
	initOutput(deviceID DeviceID, format OutputFormat, released ReleasedFunc) (OutputDevice, error)
	newDecoder(sampleRate, channels int) (streamDecoder, error)
	free() error
}

// newAudioContext is set by the backend selected at build time.
var newAudioContext func() (audioContext, error)

// rawFormatSampleSize is the size in bytes of a single sample of one channel.
const rawFormatSampleSize = 2
