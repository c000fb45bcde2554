package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rows(pairs ...[2]float32) []float32 {
	out := make([]float32, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out, p[0], p[1])
	}
	return out
}

// TestSingleBlock is scenario S1: a single Put within capacity.
func TestSingleBlock(t *testing.T) {
	r := Initialize(2, 10, 3, Float32, nil)

	require.NoError(t, r.Put(rows([2]float32{1, 2}, [2]float32{3, 4})))
	require.Equal(t, int64(2), r.LastSample())

	got, err := r.Get(0, 2)
	require.NoError(t, err)
	require.Equal(t, rows([2]float32{1, 2}, [2]float32{3, 4}), got)

	_, err = r.Get(0, 3)
	require.ErrorIs(t, err, ErrNotReady)
}

// TestWrapWithPocket is scenario S2: a wrap-spanning read served from the
// pocket, contiguous and zero-copy.
func TestWrapWithPocket(t *testing.T) {
	r := Initialize(2, 10, 3, Float32, nil)

	var first []float32
	for k := 1; k <= 9; k++ {
		first = append(first, float32(k), float32(k))
	}
	require.NoError(t, r.Put(first))

	require.NoError(t, r.Put(rows([2]float32{10, 10}, [2]float32{11, 11}, [2]float32{12, 12})))
	require.Equal(t, int64(12), r.LastSample())

	got, err := r.Get(9, 12)
	require.NoError(t, err)
	require.Equal(t, rows([2]float32{10, 10}, [2]float32{11, 11}, [2]float32{12, 12}), got)
}

// TestOverwrite is scenario S3.
func TestOverwrite(t *testing.T) {
	r := Initialize(2, 10, 3, Float32, nil)

	var all []float32
	for k := 1; k <= 15; k++ {
		all = append(all, float32(k), float32(k))
	}
	require.NoError(t, r.Put(all))
	require.Equal(t, int64(15), r.LastSample())

	_, err := r.Get(0, 3)
	require.ErrorIs(t, err, ErrOverwritten)

	got, err := r.Get(5, 8)
	require.NoError(t, err)
	require.Equal(t, rows([2]float32{6, 6}, [2]float32{7, 7}, [2]float32{8, 8}), got)
}

func TestPocketMirrorInvariant(t *testing.T) {
	r := Initialize(2, 10, 3, Float32, nil)
	require.NoError(t, r.Put(rows([2]float32{1, 1}, [2]float32{2, 2}, [2]float32{3, 3}, [2]float32{4, 4})))

	for i := 0; i < r.PocketCapacity(); i++ {
		dataOff := r.dataOff + i*r.rowBytes
		pocketOff := r.pocketOff + i*r.rowBytes
		require.Equal(t, r.region[dataOff:dataOff+r.rowBytes], r.region[pocketOff:pocketOff+r.rowBytes])
	}
}

func TestOversizedPutRetainsTail(t *testing.T) {
	r := Initialize(1, 5, 2, Float32, nil)

	var all []float32
	for k := 1; k <= 8; k++ {
		all = append(all, float32(k))
	}
	require.NoError(t, r.Put(all))
	require.Equal(t, int64(8), r.LastSample())

	got, err := r.Get(3, 8)
	require.NoError(t, err)
	require.Equal(t, []float32{4, 5, 6, 7, 8}, got)
}

func TestCheckAvailabilityCodes(t *testing.T) {
	r := Initialize(1, 5, 2, Float32, nil)
	require.NoError(t, r.Put([]float32{1, 2, 3}))

	require.Equal(t, CodeNegativeIndex, r.CheckAvailability(-1, 2))
	require.Equal(t, CodeNegativeIndex, r.CheckAvailability(0, 0))
	require.Equal(t, CodeNotReady, r.CheckAvailability(0, 10))
	require.Equal(t, Ready, r.CheckAvailability(0, 3))
}

func TestShapeMismatch(t *testing.T) {
	r := Initialize(3, 5, 2, Float32, nil)
	err := r.Put([]float32{1, 2})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAttachSharesState(t *testing.T) {
	r := Initialize(2, 10, 3, Float32, nil)
	require.NoError(t, r.Put(rows([2]float32{1, 2})))

	attached, err := Attach(r.Region(), nil)
	require.NoError(t, err)
	require.Equal(t, r.LastSample(), attached.LastSample())

	got, err := attached.Get(0, 1)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, got)
}

func TestAcquireWriteCommitWrite(t *testing.T) {
	r := Initialize(1, 4, 2, Float32, nil)

	tail, head := r.AcquireWrite(3)
	require.Len(t, tail, 3)
	require.Nil(t, head)
	copy(tail, []float32{1, 2, 3})
	r.CommitWrite(3)

	got, err := r.Get(0, 3)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, got)

	// Next write wraps across the boundary.
	tail, head = r.AcquireWrite(3)
	require.Len(t, tail, 1)
	require.Len(t, head, 2)
	copy(tail, []float32{4})
	copy(head, []float32{5, 6})
	r.CommitWrite(3)

	require.Equal(t, int64(6), r.LastSample())
}

func TestSlowModeFallsBackBeyondPocket(t *testing.T) {
	r := Initialize(1, 10, 2, Float32, nil)

	var all []float32
	for k := 1; k <= 15; k++ {
		all = append(all, float32(k))
	}
	require.NoError(t, r.Put(all))

	// Span of 5 > pocketCapacity (2), and wraps.
	got, err := r.Get(8, 13)
	require.NoError(t, err)
	require.Equal(t, []float32{9, 10, 11, 12, 13}, got)
	require.Equal(t, uint64(1), r.SlowModeCount())
}
