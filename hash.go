package rendergraph

import (
	"encoding/binary"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// hashSeed is the golden ratio increment of splitmix64. It must not be zero
// since splitmix maps zero to zero.
const hashSeed = 0x9e3779b97f4a7c15

// hash mixes b into in using splitmix64 rounds over 8 byte chunks.
func hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}

func appendFloats(b []byte, v ...float32) []byte {
	for _, f := range v {
		b = binary.LittleEndian.AppendUint32(b, math32.Float32bits(f))
	}
	return b
}

func appendVec(b []byte, v ms3.Vec) []byte {
	return appendFloats(b, v.X, v.Y, v.Z)
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func appendUint32s(b []byte, v ...uint32) []byte {
	for _, u := range v {
		b = binary.LittleEndian.AppendUint32(b, u)
	}
	return b
}

func appendUint(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}
