package audio

import (
	"encoding/binary"
	"slices"
)

// bytesToLES16Slice appends the 16 bit little endian samples in src to dst.
// A trailing odd byte is ignored.
func bytesToLES16Slice(src []byte, dst []int16) []int16 {
	s16len := len(src) / 2
	dst = slices.Grow(dst, s16len)
	for i := 0; i < s16len; i++ {
		dst = append(dst, int16(binary.LittleEndian.Uint16(src[i*2:])))
	}
	return dst
}

// leS16SliceToBytes appends the samples in src to dst as 16 bit little endian
// values.
func leS16SliceToBytes(src []int16, dst []byte) []byte {
	dst = slices.Grow(dst, len(src)*2)
	for _, s := range src {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// addSat adds two samples, saturating at the int16 limits.
func addSat(a, b int16) int16 {
	s := int32(a) + int32(b)
	switch {
	case s > 32767:
		return 32767
	case s < -32768:
		return -32768
	default:
		return int16(s)
	}
}
