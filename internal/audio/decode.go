package audio

import (
	"fmt"
	"strings"
)

const (
	// CodecOpus decodes frames with the opus codec of the audio backend.
	CodecOpus = "opus"

	// CodecPCM treats frames as raw 16 bit little endian samples.
	CodecPCM = "pcm"
)

// FrameDecoder decodes one encoded frame into out and returns the decoded
// interleaved samples.
type FrameDecoder interface {
	Decode(data []byte, frameSize int, fec bool, out []int16) ([]int16, error)
}

// pcmDecoder is a FrameDecoder for frames that already hold samples.
type pcmDecoder struct{}

func (pcmDecoder) Decode(data []byte, frameSize int, fec bool, out []int16) ([]int16, error) {
	return bytesToLES16Slice(data, out[:0]), nil
}

// newFrameDecoder returns the decoder for codec.
func newFrameDecoder(actx audioContext, codec string, sampleRate, channels int) (FrameDecoder, error) {
	switch codec {
	case CodecPCM:
		return pcmDecoder{}, nil
	case CodecOpus, "":
		dec, err := actx.newDecoder(sampleRate, channels)
		if err != nil {
			return nil, makeCodedError(ErrDecode, err)
		}
		return dec, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", codec)
	}
}

// ExpandMode selects how mono samples are written to a stereo output.
type ExpandMode int

const (
	// ExpandDuplicate writes each sample to both channels.
	ExpandDuplicate ExpandMode = iota

	// ExpandZeroPad writes each sample to the left channel and silence to
	// the right one.
	ExpandZeroPad
)

func (m ExpandMode) String() string {
	switch m {
	case ExpandDuplicate:
		return "duplicate"
	case ExpandZeroPad:
		return "zeropad"
	default:
		return fmt.Sprintf("expand(%d)", int(m))
	}
}

// ParseExpandMode parses the name of an expansion mode.
func ParseExpandMode(s string) (ExpandMode, error) {
	switch strings.ToLower(s) {
	case "duplicate", "dup", "":
		return ExpandDuplicate, nil
	case "zeropad", "zero":
		return ExpandZeroPad, nil
	default:
		return 0, fmt.Errorf("unknown expansion mode %q", s)
	}
}

// expandMono appends the stereo expansion of the mono samples in src to dst.
func expandMono(src []int16, dst []byte, mode ExpandMode) []byte {
	for _, s := range src {
		r := s
		if mode == ExpandZeroPad {
			r = 0
		}
		dst = append(dst, byte(s), byte(s>>8), byte(r), byte(r>>8))
	}
	return dst
}

// decodeStage turns encoded frames into blocks of output samples.
type decodeStage struct {
	dec             FrameDecoder
	samplesPerFrame int
	srcChannels     int
	outChannels     int
	expand          ExpandMode

	pcm []int16
	out []byte
}

func newDecodeStage(dec FrameDecoder, samplesPerFrame, srcChannels, outChannels int,
	expand ExpandMode) (*decodeStage, error) {

	if err := checkChannels(srcChannels, outChannels); err != nil {
		return nil, err
	}
	return &decodeStage{
		dec:             dec,
		samplesPerFrame: samplesPerFrame,
		srcChannels:     srcChannels,
		outChannels:     outChannels,
		expand:          expand,
		pcm:             make([]int16, samplesPerFrame*srcChannels),
		out:             make([]byte, 0, samplesPerFrame*outChannels*rawFormatSampleSize),
	}, nil
}

// checkChannels returns an error if a source with srcChannels cannot be
// played on an output with outChannels.
func checkChannels(srcChannels, outChannels int) error {
	if outChannels != 1 && outChannels != 2 {
		return fmt.Errorf("unsupported output channel count %d", outChannels)
	}
	if srcChannels < 1 || srcChannels > outChannels {
		return codedErrorf(ErrCorruptStream, nil, "source with %d "+
			"channels cannot be played on %d output channels",
			srcChannels, outChannels)
	}
	return nil
}

// frameBytes is the size of a decoded block in output format.
func (ds *decodeStage) frameBytes() int {
	return ds.samplesPerFrame * ds.outChannels * rawFormatSampleSize
}

// decode decodes one frame. The returned slice is reused by the next call.
func (ds *decodeStage) decode(frame []byte) ([]byte, error) {
	want := ds.samplesPerFrame * ds.srcChannels
	pcm, err := ds.dec.Decode(frame, ds.samplesPerFrame, false, ds.pcm[:want])
	if err != nil {
		return nil, makeCodedError(ErrDecode, err)
	}
	if len(pcm) != want {
		return nil, codedErrorf(ErrDecode, nil, "decoded %d samples, "+
			"want %d", len(pcm), want)
	}
	ds.out = toOutput(pcm, ds.out[:0], ds.srcChannels, ds.outChannels, ds.expand)
	return ds.out, nil
}

// toOutput appends the samples in src, with srcChannels, to dst in the output
// format.
func toOutput(src []int16, dst []byte, srcChannels, outChannels int, expand ExpandMode) []byte {
	if srcChannels == 1 && outChannels == 2 {
		return expandMono(src, dst, expand)
	}
	return leS16SliceToBytes(src, dst)
}
