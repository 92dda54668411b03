package audio

import "encoding/binary"

// MixMode selects how a stream is mixed into another one.
type MixMode int

const (
	// MixMonoIntoStereoLeft adds each mono sample of B to the left
	// channel of stereo A.
	MixMonoIntoStereoLeft MixMode = iota

	// MixStereoIntoStereo adds each sample of stereo B to the same
	// channel of stereo A.
	MixStereoIntoStereo
)

// pcmMix adds the 16 bit little endian samples of b into a.
func pcmMix(a, b []byte, mode MixMode) error {
	step := 4
	if mode == MixStereoIntoStereo {
		step = 2
	}
	if len(b)/2*step > len(a) {
		return errMixBufferTooSmall
	}
	for i, j := 0, 0; j+1 < len(b); i, j = i+step, j+2 {
		sa := int16(binary.LittleEndian.Uint16(a[i:]))
		sb := int16(binary.LittleEndian.Uint16(b[j:]))
		binary.LittleEndian.PutUint16(a[i:], uint16(addSat(sa, sb)))
	}
	return nil
}
