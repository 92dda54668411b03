package framefile

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/companyzero/sdplayback/internal/assert"
)

// testHeader returns a header for a 48kHz mono stream with 10ms frames and
// enough samples for nbFrames frames.
func testHeader(nbFrames int) Header {
	samples := uint32(nbFrames * 480)
	return Header{
		FileID:           FileID,
		HeaderSize:       HeaderSize,
		SampleRateDiv100: 480,
		BitRateDiv100:    960,
		Channels:         1,
		FrameMsTimes100:  1000,
		SignalLenLow:     uint16(samples),
		SignalLenHigh:    uint16(samples >> 16),
	}
}

// buildFile encodes a header and frames into a file image.
func buildFile(t testing.TB, hdr Header, frames ...[]byte) []byte {
	t.Helper()
	b, err := hdr.MarshalBinary()
	assert.NilErr(t, err)
	for _, f := range frames {
		b = AppendFrame(b, f)
	}
	return b
}

// errReader fails every read.
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += n
	return n, err
}

// TestParams tests deriving stream parameters from headers.
func TestParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rate       uint16
		frameMs    uint16
		samples    uint32
		wantMono   int
		wantFrames int
		wantDur    time.Duration
	}{{
		name:       "48kHz 10ms",
		rate:       480,
		frameMs:    1000,
		samples:    48000,
		wantMono:   960,
		wantFrames: 100,
		wantDur:    10 * time.Millisecond,
	}, {
		name:       "16kHz 7.5ms",
		rate:       160,
		frameMs:    750,
		samples:    1200,
		wantMono:   240,
		wantFrames: 10,
		wantDur:    7500 * time.Microsecond,
	}, {
		name:       "samples above 16 bits",
		rate:       480,
		frameMs:    1000,
		samples:    0x12345 * 480,
		wantMono:   960,
		wantFrames: 0x12345,
		wantDur:    10 * time.Millisecond,
	}, {
		name:       "partial trailing frame is ignored",
		rate:       480,
		frameMs:    1000,
		samples:    480*3 + 100,
		wantMono:   960,
		wantFrames: 3,
		wantDur:    10 * time.Millisecond,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			hdr := Header{
				FileID:           FileID,
				SampleRateDiv100: tc.rate,
				FrameMsTimes100:  tc.frameMs,
				SignalLenLow:     uint16(tc.samples),
				SignalLenHigh:    uint16(tc.samples >> 16),
			}
			p, err := hdr.Params()
			assert.NilErr(t, err)
			assert.DeepEqual(t, p.MonoFrameBytes, tc.wantMono)
			assert.DeepEqual(t, p.TotalFrames, tc.wantFrames)
			assert.DeepEqual(t, p.FrameDuration, tc.wantDur)
			assert.DeepEqual(t, p.SampleRate, int(tc.rate)*100)
		})
	}
}

// TestParamsInvalid tests that headers that would give empty frames are
// rejected.
func TestParamsInvalid(t *testing.T) {
	t.Parallel()
	hdr := testHeader(1)
	hdr.FrameMsTimes100 = 0
	_, err := hdr.Params()
	assert.ErrorIs(t, err, ErrInvalidParams)
}

// TestReaderFrameCountMatchesWritten tests that, for a range of rates and
// durations, the reader returns exactly the number of frames that were
// encoded in the file.
func TestReaderFrameCountMatchesWritten(t *testing.T) {
	t.Parallel()

	rates := []uint16{80, 160, 240, 320, 480, 960}
	durations := []uint16{750, 1000}
	for _, rate := range rates {
		for _, dur := range durations {
			for _, nb := range []int{0, 1, 3, 17} {
				// Independent bytes-to-frames reference.
				samplesPerFrame := int(rate) * 100 * int(dur) / 100 / 1000
				samples := uint32(nb * samplesPerFrame)
				hdr := Header{
					FileID:           FileID,
					HeaderSize:       HeaderSize,
					SampleRateDiv100: rate,
					FrameMsTimes100:  dur,
					Channels:         1,
					SignalLenLow:     uint16(samples),
					SignalLenHigh:    uint16(samples >> 16),
				}
				frames := make([][]byte, nb)
				for i := range frames {
					frames[i] = bytes.Repeat([]byte{byte(i)}, 10+i)
				}

				// Trailing garbage must not be read as frames.
				file := append(buildFile(t, hdr, frames...), 0xff, 0xff, 0xff)
				rd, err := NewReader(bytes.NewReader(file), 0)
				assert.NilErr(t, err)
				assert.DeepEqual(t, rd.Params().TotalFrames, nb)

				var got int
				for {
					f, err := rd.Next()
					if errors.Is(err, io.EOF) {
						break
					}
					assert.NilErr(t, err)
					assert.DeepEqual(t, f, frames[got])
					got++
				}
				if got != nb {
					t.Fatalf("rate %d dur %d: read %d frames, want %d",
						rate, dur, got, nb)
				}
			}
		}
	}
}

// TestReaderVariableFrameLengths tests that each frame uses its own length
// prefix.
func TestReaderVariableFrameLengths(t *testing.T) {
	t.Parallel()
	frames := [][]byte{{1}, {2, 2, 2, 2, 2}, {3, 3}}
	file := buildFile(t, testHeader(3), frames...)
	rd, err := NewReader(bytes.NewReader(file), 8)
	assert.NilErr(t, err)
	for i := range frames {
		f, err := rd.Next()
		assert.NilErr(t, err)
		assert.DeepEqual(t, f, frames[i])
		assert.DeepEqual(t, rd.FramesRead(), i+1)
	}
	_, err = rd.Next()
	assert.ErrorIs(t, err, io.EOF)
}

// TestReaderBadMagic tests that a corrupted magic is rejected before any
// frame data is read.
func TestReaderBadMagic(t *testing.T) {
	t.Parallel()
	hdr := testHeader(2)
	hdr.FileID = 0xCC1D
	file := buildFile(t, hdr, []byte{1, 2}, []byte{3, 4})
	cr := &countingReader{r: bytes.NewReader(file)}
	_, err := NewReader(cr, 0)
	assert.ErrorIs(t, err, ErrInvalidMagic)
	assert.BoolIs(t, IsFormatError(err), true)
	assert.DeepEqual(t, cr.n, HeaderSize)
}

// TestReaderOversizedFrame tests that a frame whose length prefix exceeds the
// maximum is rejected without reading its payload.
func TestReaderOversizedFrame(t *testing.T) {
	t.Parallel()
	big := bytes.Repeat([]byte{0xaa}, 100)
	file := buildFile(t, testHeader(2), []byte{1, 2, 3}, big)
	cr := &countingReader{r: bytes.NewReader(file)}
	rd, err := NewReader(cr, 64)
	assert.NilErr(t, err)

	_, err = rd.Next()
	assert.NilErr(t, err)
	_, err = rd.Next()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.DeepEqual(t, cr.n, HeaderSize+2+3+2)
}

// TestReaderEmptyFrame tests that a zero length prefix is rejected.
func TestReaderEmptyFrame(t *testing.T) {
	t.Parallel()
	file := buildFile(t, testHeader(1), []byte{})
	rd, err := NewReader(bytes.NewReader(file), 0)
	assert.NilErr(t, err)
	_, err = rd.Next()
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

// TestReaderTruncated tests truncated headers and payloads.
func TestReaderTruncated(t *testing.T) {
	t.Parallel()

	file := buildFile(t, testHeader(2), []byte{1, 2, 3, 4}, []byte{5, 6, 7, 8})

	_, err := NewReader(bytes.NewReader(file[:HeaderSize-1]), 0)
	assert.ErrorIs(t, err, ErrTruncated)

	rd, err := NewReader(bytes.NewReader(file[:len(file)-2]), 0)
	assert.NilErr(t, err)
	_, err = rd.Next()
	assert.NilErr(t, err)
	_, err = rd.Next()
	assert.ErrorIs(t, err, ErrTruncated)
	assert.BoolIs(t, IsFormatError(err), true)
}

// TestReaderStorageError tests that errors from the underlying reader are not
// classified as format errors.
func TestReaderStorageError(t *testing.T) {
	t.Parallel()
	errTest := errors.New("test error")
	_, err := NewReader(errReader{err: errTest}, 0)
	assert.ErrorIs(t, err, errTest)
	assert.BoolIs(t, IsFormatError(err), false)
}

// TestHeaderRoundTrip tests the header layout against a hand built image.
func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()
	want := []byte{
		0x1c, 0xcc, 0x12, 0x00, 0xe0, 0x01, 0xc0, 0x03, 0x01, 0x00,
		0xe8, 0x03, 0x00, 0x00, 0x34, 0x12, 0x01, 0x00,
	}
	var hdr Header
	assert.NilErr(t, hdr.UnmarshalBinary(want))
	assert.DeepEqual(t, hdr.SampleRateDiv100, uint16(480))
	assert.DeepEqual(t, hdr.TotalSamples(), uint32(0x11234))
	got, err := hdr.MarshalBinary()
	assert.NilErr(t, err)
	assert.DeepEqual(t, got, want)
}
