package rda

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartRoundTrip(t *testing.T) {
	msg := &StartMessage{
		NChannels:        3,
		SamplingInterval: 0.002,
		Resolutions:      []float64{1.0, 1.0, 1.0},
		ChannelNames:     []string{"1", "2", "3"},
	}

	frame := EncodeStart(msg)

	hdr, err := ReadHeader(bytes.NewReader(frame))
	require.NoError(t, err)
	require.True(t, hdr.ValidGUID())
	require.Equal(t, TypeStart, hdr.NType)
	require.Equal(t, int(hdr.NSize), len(frame))

	got, err := DecodeStart(frame[HeaderSize:])
	require.NoError(t, err)
	require.Equal(t, msg.NChannels, got.NChannels)
	require.InDelta(t, msg.SamplingInterval, got.SamplingInterval, 1e-12)
	require.Equal(t, msg.Resolutions, got.Resolutions)
	require.Equal(t, msg.ChannelNames, got.ChannelNames)
}

func TestFloatDataRoundTrip(t *testing.T) {
	const nChannels = 2
	msg := &FloatDataMessage{
		Block:   7,
		NPoints: 3,
		Samples: []float32{1, 2, 3, 4, 5, 6},
	}

	frame := EncodeFloatData(msg, nChannels)

	hdr, err := ReadHeader(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, TypeFloatData, hdr.NType)

	got, err := DecodeFloatData(frame[HeaderSize:], nChannels)
	require.NoError(t, err)
	require.Equal(t, msg.Block, got.Block)
	require.Equal(t, msg.NPoints, got.NPoints)
	require.Equal(t, msg.Samples, got.Samples)
}

func TestStopFrame(t *testing.T) {
	frame := EncodeStop()
	hdr, err := ReadHeader(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, TypeStop, hdr.NType)
	require.Equal(t, HeaderSize, int(hdr.NSize))
	require.Equal(t, 0, hdr.BodySize())
}

func TestHeaderGUIDMismatchStillParses(t *testing.T) {
	frame := EncodeStop()
	frame[0] ^= 0xFF // corrupt one GUID byte

	hdr, err := ReadHeader(bytes.NewReader(frame))
	require.NoError(t, err)
	require.False(t, hdr.ValidGUID())
	require.Equal(t, TypeStop, hdr.NType)
}

func TestUnknownTypeBodyIsDiscardableByLength(t *testing.T) {
	out := make([]byte, HeaderSize+16)
	writeHeader(out, uint32(len(out)), TypeUnknown)
	hdr, err := ReadHeader(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 16, hdr.BodySize())
}
