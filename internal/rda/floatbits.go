package rda

import (
	"encoding/binary"
	"math"
)

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func encodeFloat64(out []byte, v float64) {
	binary.LittleEndian.PutUint64(out, math.Float64bits(v))
}

func decodeFloat32Bits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

func encodeFloat32Bits(v float32) uint32 {
	return math.Float32bits(v)
}
