// Package framefile parses the length-framed binary container used to store
// compressed audio frames on block storage.
//
// A file starts with a fixed 18 byte header made of nine little-endian
// uint16 fields, followed by a sequence of frames. Each frame is a 2 byte
// little-endian length prefix followed by that many encoded bytes.
package framefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// FileID is the constant value of the first header field.
	FileID = 0xCC1C

	// HeaderSize is the size in bytes of the header.
	HeaderSize = 18

	// lenPrefixSize is the size of the per-frame length prefix.
	lenPrefixSize = 2
)

var (
	ErrInvalidMagic  = errors.New("invalid file id")
	ErrInvalidParams = errors.New("invalid stream parameters")
	ErrFrameTooLarge = errors.New("frame length exceeds maximum frame size")
	ErrEmptyFrame    = errors.New("frame with zero length")
	ErrTruncated     = errors.New("truncated stream")
)

// IsFormatError returns true if err was caused by malformed file contents, as
// opposed to a failure of the underlying reader.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrInvalidMagic) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrEmptyFrame) ||
		errors.Is(err, ErrTruncated)
}

// Header is the fixed size file header.
type Header struct {
	FileID           uint16
	HeaderSize       uint16
	SampleRateDiv100 uint16
	BitRateDiv100    uint16
	Channels         uint16
	FrameMsTimes100  uint16
	Reserved         uint16
	SignalLenLow     uint16
	SignalLenHigh    uint16
}

// fields returns pointers to the header fields in file order.
func (h *Header) fields() [9]*uint16 {
	return [9]*uint16{
		&h.FileID, &h.HeaderSize, &h.SampleRateDiv100, &h.BitRateDiv100,
		&h.Channels, &h.FrameMsTimes100, &h.Reserved, &h.SignalLenLow,
		&h.SignalLenHigh,
	}
}

// UnmarshalBinary decodes the header from b. Only the magic is validated
// here.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header has %d bytes", ErrTruncated, len(b))
	}
	for i, f := range h.fields() {
		*f = binary.LittleEndian.Uint16(b[i*2:])
	}
	if h.FileID != FileID {
		return fmt.Errorf("%w: got 0x%04x, want 0x%04x", ErrInvalidMagic,
			h.FileID, FileID)
	}
	return nil
}

// MarshalBinary encodes the header in its on-disk layout.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	for i, f := range h.fields() {
		binary.LittleEndian.PutUint16(b[i*2:], *f)
	}
	return b, nil
}

// TotalSamples is the number of samples in the signal.
func (h *Header) TotalSamples() uint32 {
	return uint32(h.SignalLenHigh)<<16 | uint32(h.SignalLenLow)
}

// Params are the stream parameters derived from a header.
type Params struct {
	SampleRate     int
	BitRate        int
	Channels       int
	FrameDuration  time.Duration
	MonoFrameBytes int
	TotalSamples   int
	TotalFrames    int
}

// Params derives the stream parameters of the header.
func (h *Header) Params() (Params, error) {
	monoFrameBytes := 2 * int(h.SampleRateDiv100) * int(h.FrameMsTimes100) / 1000
	if monoFrameBytes <= 0 {
		return Params{}, fmt.Errorf("%w: sample rate %d00 Hz and frame "+
			"duration %d/100 ms give an empty frame", ErrInvalidParams,
			h.SampleRateDiv100, h.FrameMsTimes100)
	}
	if monoFrameBytes%2 != 0 {
		return Params{}, fmt.Errorf("%w: odd mono frame size %d",
			ErrInvalidParams, monoFrameBytes)
	}

	totalSamples := int(h.TotalSamples())
	return Params{
		SampleRate:     int(h.SampleRateDiv100) * 100,
		BitRate:        int(h.BitRateDiv100) * 100,
		Channels:       int(h.Channels),
		FrameDuration:  time.Duration(h.FrameMsTimes100) * 10 * time.Microsecond,
		MonoFrameBytes: monoFrameBytes,
		TotalSamples:   totalSamples,
		TotalFrames:    2 * totalSamples / monoFrameBytes,
	}, nil
}

// SamplesPerFrame is the number of samples per channel in one decoded frame.
func (p Params) SamplesPerFrame() int {
	return p.MonoFrameBytes / 2
}

// AppendFrame appends the length prefix and payload of one frame to b.
func AppendFrame(b []byte, payload []byte) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(payload)))
	return append(b, payload...)
}
