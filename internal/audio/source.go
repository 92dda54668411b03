package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/companyzero/sdplayback/framefile"
	"github.com/companyzero/sdplayback/internal/segment"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// sourceFormat is the format of the blocks returned by a pcmSource.
type sourceFormat struct {
	sampleRate    int
	channels      int
	frameBytes    int
	frameDuration time.Duration
}

// pcmSource produces blocks of samples in the output format, one frame at a
// time.
type pcmSource interface {
	fmt.Stringer

	format() sourceFormat

	// next returns the next block. The returned slice is only valid until
	// the next call. It returns io.EOF once the source is exhausted.
	next() ([]byte, error)

	close() error
}

// readErr classifies an error from reading a framed file.
func readErr(err error) error {
	if framefile.IsFormatError(err) {
		return makeCodedError(ErrCorruptStream, err)
	}
	return makeCodedError(ErrStorage, err)
}

// framedSource decodes frames of a framed file.
type framedSource struct {
	seg   segment.Segment
	rd    *framefile.Reader
	stage *decodeStage
	fmt   sourceFormat
}

// openFramedSource reads the header of the framed file in seg and prepares
// the decoder. seg is closed if an error is returned.
func openFramedSource(seg segment.Segment, actx audioContext, codec string, cfg *Config) (_ *framedSource, err error) {
	defer func() {
		if err != nil {
			seg.Close()
		}
	}()

	rd, err := framefile.NewReader(seg, cfg.MaxFrameSize)
	if err != nil {
		return nil, readErr(err)
	}
	params := rd.Params()
	srcChannels := params.Channels
	if srcChannels == 0 {
		srcChannels = 1
	}

	dec, err := newFrameDecoder(actx, codec, params.SampleRate, srcChannels)
	if err != nil {
		return nil, err
	}
	stage, err := newDecodeStage(dec, params.SamplesPerFrame(), srcChannels,
		cfg.OutputChannels, cfg.Expand)
	if err != nil {
		return nil, err
	}

	return &framedSource{
		seg:   seg,
		rd:    rd,
		stage: stage,
		fmt: sourceFormat{
			sampleRate:    params.SampleRate,
			channels:      cfg.OutputChannels,
			frameBytes:    stage.frameBytes(),
			frameDuration: params.FrameDuration,
		},
	}, nil
}

func (fs *framedSource) String() string {
	p := fs.rd.Params()
	return fmt.Sprintf("framed file (%d frames, %d bps)", p.TotalFrames, p.BitRate)
}

func (fs *framedSource) format() sourceFormat {
	return fs.fmt
}

func (fs *framedSource) next() ([]byte, error) {
	frame, err := fs.rd.Next()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, readErr(err)
	}
	return fs.stage.decode(frame)
}

func (fs *framedSource) close() error {
	return fs.seg.Close()
}

// WAVParams are the expected parameters of a WAV file.
type WAVParams struct {
	SampleRate    int
	BitDepth      int
	Channels      int
	FrameDuration time.Duration
}

// DefaultWAVParams are 10ms frames of 16 bit mono at 48kHz.
var DefaultWAVParams = WAVParams{
	SampleRate:    48000,
	BitDepth:      16,
	Channels:      1,
	FrameDuration: 10 * time.Millisecond,
}

// FrameBytes is the size of one frame of raw PCM data.
func (p WAVParams) FrameBytes() int {
	samples := int(p.FrameDuration * time.Duration(p.SampleRate) / time.Second)
	return samples * p.BitDepth / 8 * p.Channels
}

// wavSource reads frames of raw PCM data from a WAV file. A short final read
// ends the stream and its samples are dropped.
type wavSource struct {
	seg         segment.Segment
	r           io.Reader
	srcChannels int
	outChannels int
	expand      ExpandMode
	fmt         sourceFormat
	audioFmt    *goaudio.Format

	buf []byte
	pcm []int16
	out []byte
}

// openWAVSource parses the WAV header in seg and positions it at the start of
// the PCM data. seg is closed if an error is returned.
func openWAVSource(seg segment.Segment, p WAVParams, cfg *Config) (_ *wavSource, err error) {
	defer func() {
		if err != nil {
			seg.Close()
		}
	}()

	d := wav.NewDecoder(seg)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, makeCodedError(ErrCorruptStream, err)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, makeCodedError(ErrCorruptStream, err)
	}

	switch {
	case d.WavAudioFormat != 1:
		return nil, codedErrorf(ErrCorruptStream, nil, "unsupported "+
			"wav audio format %d", d.WavAudioFormat)
	case d.BitDepth != 16:
		return nil, codedErrorf(ErrCorruptStream, nil, "unsupported "+
			"bit depth %d", d.BitDepth)
	case int(d.SampleRate) != p.SampleRate, int(d.BitDepth) != p.BitDepth,
		int(d.NumChans) != p.Channels:
		return nil, codedErrorf(ErrCorruptStream, nil, "wav file has "+
			"%d Hz, %d bits, %d channels; expected %d Hz, %d bits, "+
			"%d channels", d.SampleRate, d.BitDepth, d.NumChans,
			p.SampleRate, p.BitDepth, p.Channels)
	}
	if err := checkChannels(p.Channels, cfg.OutputChannels); err != nil {
		return nil, err
	}

	frameBytes := p.FrameBytes()
	if frameBytes <= 0 {
		return nil, fmt.Errorf("invalid wav frame size %d", frameBytes)
	}
	samples := frameBytes / rawFormatSampleSize
	outFrameBytes := frameBytes / p.Channels * cfg.OutputChannels

	return &wavSource{
		seg:         seg,
		r:           io.LimitReader(d.PCMChunk, int64(d.PCMSize)),
		srcChannels: p.Channels,
		outChannels: cfg.OutputChannels,
		expand:      cfg.Expand,
		audioFmt:    d.Format(),
		fmt: sourceFormat{
			sampleRate:    p.SampleRate,
			channels:      cfg.OutputChannels,
			frameBytes:    outFrameBytes,
			frameDuration: p.FrameDuration,
		},
		buf: make([]byte, frameBytes),
		pcm: make([]int16, 0, samples),
		out: make([]byte, 0, outFrameBytes),
	}, nil
}

func (ws *wavSource) String() string {
	return fmt.Sprintf("wav file (%d Hz, %d channels)", ws.audioFmt.SampleRate,
		ws.audioFmt.NumChannels)
}

func (ws *wavSource) format() sourceFormat {
	return ws.fmt
}

func (ws *wavSource) next() ([]byte, error) {
	_, err := io.ReadFull(ws.r, ws.buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, makeCodedError(ErrStorage, err)
	}
	if ws.srcChannels == ws.outChannels {
		return ws.buf, nil
	}
	ws.pcm = bytesToLES16Slice(ws.buf, ws.pcm[:0])
	ws.out = toOutput(ws.pcm, ws.out[:0], ws.srcChannels, ws.outChannels, ws.expand)
	return ws.out, nil
}

func (ws *wavSource) close() error {
	return ws.seg.Close()
}
