package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/companyzero/sdplayback/internal/assert"
)

func s16Bytes(samples ...int16) []byte {
	return leS16SliceToBytes(samples, nil)
}

// TestPCMMix tests mixing streams in each mode.
func TestPCMMix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    []byte
		b    []byte
		mode MixMode
		want []byte
	}{{
		name: "mono into left",
		a:    s16Bytes(100, 200, -300, 400),
		b:    s16Bytes(10, 20),
		mode: MixMonoIntoStereoLeft,
		want: s16Bytes(110, 200, -280, 400),
	}, {
		name: "stereo into stereo",
		a:    s16Bytes(100, 200, -300, 400),
		b:    s16Bytes(1, 2, 3, 4),
		mode: MixStereoIntoStereo,
		want: s16Bytes(101, 202, -297, 404),
	}, {
		name: "saturates high",
		a:    s16Bytes(math.MaxInt16-5, 0),
		b:    s16Bytes(100),
		mode: MixMonoIntoStereoLeft,
		want: s16Bytes(math.MaxInt16, 0),
	}, {
		name: "saturates low",
		a:    s16Bytes(math.MinInt16+5, math.MinInt16),
		b:    s16Bytes(-100, -1),
		mode: MixStereoIntoStereo,
		want: s16Bytes(math.MinInt16, math.MinInt16),
	}, {
		name: "shorter b leaves tail",
		a:    s16Bytes(1, 2, 3, 4),
		b:    s16Bytes(1),
		mode: MixStereoIntoStereo,
		want: s16Bytes(2, 2, 3, 4),
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.NilErr(t, pcmMix(tc.a, tc.b, tc.mode))
			assert.BytesEqual(t, tc.a, tc.want)
		})
	}
}

// TestPCMMixTooSmall tests that a destination smaller than the mixed stream is
// rejected without being modified.
func TestPCMMixTooSmall(t *testing.T) {
	t.Parallel()

	a := s16Bytes(1, 2, 3)
	err := pcmMix(a, s16Bytes(5, 5), MixMonoIntoStereoLeft)
	assert.ErrorIs(t, err, errMixBufferTooSmall)
	assert.DeepEqual(t, int16(binary.LittleEndian.Uint16(a)), int16(1))

	err = pcmMix(s16Bytes(1), s16Bytes(5, 5), MixStereoIntoStereo)
	assert.ErrorIs(t, err, errMixBufferTooSmall)
}
