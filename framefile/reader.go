package framefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameSize is the default upper bound for the length of a single
// encoded frame.
const DefaultMaxFrameSize = 1024

// Reader reads frames sequentially from a framed file.
type Reader struct {
	r            io.Reader
	params       Params
	maxFrameSize int
	framesRead   int

	lenBuf [lenPrefixSize]byte
	buf    []byte
}

// NewReader reads and validates the header from r and returns a reader
// positioned at the first frame. Frames longer than maxFrameSize are
// rejected. If maxFrameSize is <= 0, DefaultMaxFrameSize is used.
func NewReader(r io.Reader, maxFrameSize int) (*Reader, error) {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, readErr("header", err)
	}

	rd := &Reader{
		r:            r,
		maxFrameSize: maxFrameSize,
	}
	var hdr Header
	if err := hdr.UnmarshalBinary(b[:]); err != nil {
		return nil, err
	}

	var err error
	if rd.params, err = hdr.Params(); err != nil {
		return nil, err
	}
	return rd, nil
}

// Params returns the parameters derived from the header.
func (rd *Reader) Params() Params {
	return rd.params
}

// FramesRead is the number of frames returned by Next so far.
func (rd *Reader) FramesRead() int {
	return rd.framesRead
}

// Next reads the next frame payload. It returns io.EOF once the number of
// frames advertised by the header has been read, without reading from the
// underlying reader.
//
// The returned slice is only valid until the next call to Next.
func (rd *Reader) Next() ([]byte, error) {
	if rd.framesRead >= rd.params.TotalFrames {
		return nil, io.EOF
	}

	if _, err := io.ReadFull(rd.r, rd.lenBuf[:]); err != nil {
		return nil, readErr("frame length", err)
	}
	frameLen := int(binary.LittleEndian.Uint16(rd.lenBuf[:]))
	switch {
	case frameLen == 0:
		return nil, fmt.Errorf("frame %d: %w", rd.framesRead, ErrEmptyFrame)
	case frameLen > rd.maxFrameSize:
		return nil, fmt.Errorf("frame %d: %w (%d > %d)", rd.framesRead,
			ErrFrameTooLarge, frameLen, rd.maxFrameSize)
	}

	if cap(rd.buf) < frameLen {
		rd.buf = make([]byte, rd.maxFrameSize)
	}
	buf := rd.buf[:frameLen]
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return nil, readErr(fmt.Sprintf("frame %d", rd.framesRead), err)
	}

	rd.framesRead++
	return buf, nil
}

// readErr converts a premature end of data into ErrTruncated. Other errors
// come from the underlying reader and are returned wrapped.
func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s: %v", ErrTruncated, what, err)
	}
	return fmt.Errorf("reading %s: %w", what, err)
}
