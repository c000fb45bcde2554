// Package ring implements the two-dimensional circular sample buffer: a
// header plus a data section plus a trailing "pocket" section that mirrors
// the start of the data section so that wrap-spanning reads can be served
// as a single contiguous, zero-copy span.
//
// A write that crosses the end of the data section is split into a tail
// copy and a head copy, the row-oriented form of the split write used by
// SPSC byte rings.
package ring

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"unsafe"
)

// DataType identifies the numeric type of samples stored in the ring. Only
// Float32 is exercised by this implementation; Int16 is enumerated for
// wire-protocol compatibility (see internal/rda) but Put/Get operate on
// float32 rows exclusively.
type DataType uint32

const (
	Float32 DataType = 0
	Int16   DataType = 1
)

// Byte offsets within the header. This deviates from a byte-literal
// reference layout in one respect: nSamplesWritten is placed at an 8-byte
// aligned offset so that atomic access over the raw region is well-defined
// on strict-alignment architectures, and nChannels is stored as u32 rather
// than u64 (channel counts never approach the u32 range). Both are
// self-describing via the header, as the reference layout note permits.
const (
	offBufSizeBytes    = 0
	offPocketSizeBytes = 8
	offNSamplesWritten = 16
	offDataType        = 24
	offNChannels       = 28
	headerSize         = 32
)

const sampleSize = 4 // bytes per float32

// Sentinel errors surfaced by ring operations.
var (
	ErrUninitialized = errors.New("ring: not initialized")
	ErrNotReady      = errors.New("ring: requested sample not yet written")
	ErrOverwritten   = errors.New("ring: requested sample has been overwritten")
	ErrNegativeIndex = errors.New("ring: negative or non-positive index")
	ErrShapeMismatch = errors.New("ring: row length is not a multiple of nChannels")
)

// Availability codes returned by CheckAvailability.
const (
	Ready           = 0
	CodeUninitialized = 1
	CodeOverwritten   = 2
	CodeNotReady      = 3
	CodeNegativeIndex = 5
)

// Logger is the minimal ambient-logging surface the ring needs. Any type
// with a Warnf method satisfies it, including internal/diag's status
// logger; ring has no import-time dependency on internal/diag.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...interface{}) {}

// Ring is the two-dimensional sample buffer described in the data model:
// header + data + pocket over one contiguous byte region.
type Ring struct {
	region []byte

	bufCapacity    int
	pocketCapacity int
	nChannels      int
	dataType       DataType
	rowBytes       int
	dataOff        int
	pocketOff      int

	logger Logger

	slowModeMu   chan struct{} // binary semaphore guarding slowModeSeen
	slowModeSeen map[[2]int64]struct{}
	slowModeN    atomic.Uint64
}

// Initialize allocates a fresh region and writes its header. Values below 1
// for bufCapacity, pocketCapacity or nChannels are clamped up to 1 and a
// warning is emitted via logger (logger may be nil).
func Initialize(nChannels, bufCapacity, pocketCapacity int, dtype DataType, logger Logger) *Ring {
	if logger == nil {
		logger = noopLogger{}
	}
	if nChannels < 1 {
		logger.Warnf("ring: clamping nChannels %d up to 1", nChannels)
		nChannels = 1
	}
	if bufCapacity < 1 {
		logger.Warnf("ring: clamping bufCapacity %d up to 1", bufCapacity)
		bufCapacity = 1
	}
	if pocketCapacity < 1 {
		logger.Warnf("ring: clamping pocketCapacity %d up to 1", pocketCapacity)
		pocketCapacity = 1
	}

	rowBytes := nChannels * sampleSize
	bufSizeBytes := bufCapacity * rowBytes
	pocketSizeBytes := pocketCapacity * rowBytes

	region := make([]byte, headerSize+bufSizeBytes+pocketSizeBytes)
	binary.LittleEndian.PutUint64(region[offBufSizeBytes:], uint64(bufSizeBytes))
	binary.LittleEndian.PutUint64(region[offPocketSizeBytes:], uint64(pocketSizeBytes))
	binary.LittleEndian.PutUint32(region[offDataType:], uint32(dtype))
	binary.LittleEndian.PutUint32(region[offNChannels:], uint32(nChannels))
	// offNSamplesWritten left zero.

	r := &Ring{
		region:         region,
		bufCapacity:    bufCapacity,
		pocketCapacity: pocketCapacity,
		nChannels:      nChannels,
		dataType:       dtype,
		rowBytes:       rowBytes,
		dataOff:        headerSize,
		pocketOff:      headerSize + bufSizeBytes,
		logger:         logger,
		slowModeMu:     make(chan struct{}, 1),
		slowModeSeen:   make(map[[2]int64]struct{}),
	}
	r.slowModeMu <- struct{}{}
	return r
}

// Attach binds to an already-initialized region by reading its header. The
// region's backing array is shared with the initializer, so writes made by
// the Initialize-side Ring are visible through the attached Ring.
func Attach(region []byte, logger Logger) (*Ring, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if len(region) < headerSize {
		return nil, ErrUninitialized
	}

	bufSizeBytes := int(binary.LittleEndian.Uint64(region[offBufSizeBytes:]))
	pocketSizeBytes := int(binary.LittleEndian.Uint64(region[offPocketSizeBytes:]))
	dtype := DataType(binary.LittleEndian.Uint32(region[offDataType:]))
	nChannels := int(binary.LittleEndian.Uint32(region[offNChannels:]))

	if nChannels < 1 || bufSizeBytes < 1 {
		return nil, ErrUninitialized
	}
	rowBytes := nChannels * sampleSize
	if rowBytes == 0 {
		return nil, ErrUninitialized
	}

	r := &Ring{
		region:         region,
		bufCapacity:    bufSizeBytes / rowBytes,
		pocketCapacity: pocketSizeBytes / rowBytes,
		nChannels:      nChannels,
		dataType:       dtype,
		rowBytes:       rowBytes,
		dataOff:        headerSize,
		pocketOff:      headerSize + bufSizeBytes,
		logger:         logger,
		slowModeMu:     make(chan struct{}, 1),
		slowModeSeen:   make(map[[2]int64]struct{}),
	}
	r.slowModeMu <- struct{}{}
	return r, nil
}

// Region exposes the raw backing byte span. It exists so a future
// cross-process deployment could back the same layout with an mmap-ed
// file without changing this API.
func (r *Ring) Region() []byte { return r.region }

// NChannels returns the row width.
func (r *Ring) NChannels() int { return r.nChannels }

// BufCapacity returns the number of rows retained in the data section.
func (r *Ring) BufCapacity() int { return r.bufCapacity }

// PocketCapacity returns the number of rows mirrored in the pocket section.
func (r *Ring) PocketCapacity() int { return r.pocketCapacity }

func (r *Ring) samplesWritten() uint64 {
	p := (*uint64)(unsafe.Pointer(&r.region[offNSamplesWritten]))
	return atomic.LoadUint64(p)
}

func (r *Ring) publish(n uint64) {
	p := (*uint64)(unsafe.Pointer(&r.region[offNSamplesWritten]))
	atomic.StoreUint64(p, n)
}

// LastSample returns the cumulative count of samples ever written.
func (r *Ring) LastSample() int64 { return int64(r.samplesWritten()) }

// Put writes rows (flattened row-major, length a multiple of nChannels)
// into the ring. If more than bufCapacity rows are supplied, only the last
// bufCapacity rows are retained, though nSamplesWritten still advances by
// the full row count supplied.
func (r *Ring) Put(rows []float32) error {
	if r.nChannels == 0 {
		return ErrUninitialized
	}
	if len(rows)%r.nChannels != 0 {
		return ErrShapeMismatch
	}
	n := len(rows) / r.nChannels
	if n == 0 {
		return nil
	}

	written := r.samplesWritten()
	total := n
	dropped := 0
	if n > r.bufCapacity {
		dropped = n - r.bufCapacity
		rows = rows[dropped*r.nChannels:]
		n = r.bufCapacity
	}

	// The physical slot for the first row we actually write must match
	// (its sample index) mod bufCapacity, so an oversized Put that drops
	// its earliest rows still starts writing at the slot the surviving
	// rows are entitled to, not at the old write cursor.
	startWriteIndex := written + uint64(dropped)
	localStart := int(startWriteIndex % uint64(r.bufCapacity))
	localEnd := localStart + n
	if localEnd <= r.bufCapacity {
		r.writeRows(r.dataOff, localStart, rows)
	} else {
		tailRows := r.bufCapacity - localStart
		r.writeRows(r.dataOff, localStart, rows[:tailRows*r.nChannels])
		r.writeRows(r.dataOff, 0, rows[tailRows*r.nChannels:])
	}

	r.mirrorPocket()
	r.publish(written + uint64(total))
	return nil
}

// writeRows copies flattened row-major float32 data into the region
// starting at byte offset base + rowIdx*rowBytes.
func (r *Ring) writeRows(base int, rowIdx int, rows []float32) {
	if len(rows) == 0 {
		return
	}
	off := base + rowIdx*r.rowBytes
	dst := bytesToFloat32(r.region[off : off+len(rows)*sampleSize])
	copy(dst, rows)
}

// mirrorPocket re-copies the first pocketCapacity rows of the data section
// into the pocket section. Invoked after every Put so the pocket invariant
// holds unconditionally, regardless of which rows the write actually
// touched.
func (r *Ring) mirrorPocket() {
	n := r.pocketCapacity
	if n > r.bufCapacity {
		n = r.bufCapacity
	}
	nBytes := n * r.rowBytes
	copy(r.region[r.pocketOff:r.pocketOff+nBytes], r.region[r.dataOff:r.dataOff+nBytes])
}

// Get returns a view of rows [startIdx, endIdx). The returned slice aliases
// the ring's backing array whenever possible (the contiguous and
// pocket-spanning cases); in the rare "slow mode" case it is a fresh copy.
func (r *Ring) Get(startIdx, endIdx int64) ([]float32, error) {
	if r.nChannels == 0 {
		return nil, ErrUninitialized
	}
	if startIdx < 0 || endIdx <= 0 {
		return nil, ErrNegativeIndex
	}

	written := int64(r.samplesWritten())
	if endIdx > written {
		return nil, ErrNotReady
	}
	if written-startIdx > int64(r.bufCapacity) {
		return nil, ErrOverwritten
	}

	chunk := endIdx - startIdx
	bufCap := int64(r.bufCapacity)
	localStart := startIdx % bufCap
	localEnd := endIdx % bufCap

	if localStart == 0 && localEnd == 0 {
		return r.dataSpan(0, r.bufCapacity), nil
	}
	if localEnd > localStart {
		return r.dataSpan(int(localStart), int(localEnd)), nil
	}

	// Wrapping read.
	if chunk <= int64(r.pocketCapacity) {
		return r.pocketSpan(int(localStart), int(localEnd)), nil
	}

	return r.slowModeCopy(startIdx, endIdx, int(localStart), int(localEnd)), nil
}

// dataSpan returns a zero-copy row view data[from:to) of the data section.
func (r *Ring) dataSpan(from, to int) []float32 {
	off := r.dataOff + from*r.rowBytes
	end := r.dataOff + to*r.rowBytes
	return bytesToFloat32(r.region[off:end])
}

// pocketSpan returns data[localStart:bufCapacity) concatenated with
// pocket[0:localEnd). Because the pocket section immediately follows the
// data section in the backing array, this concatenation is one contiguous
// byte span and requires no copy.
func (r *Ring) pocketSpan(localStart, localEnd int) []float32 {
	off := r.dataOff + localStart*r.rowBytes
	end := r.pocketOff + localEnd*r.rowBytes
	return bytesToFloat32(r.region[off:end])
}

// slowModeCopy handles a wrap whose span exceeds the pocket: it copies
// data[localStart:bufCapacity) followed by data[0:localEnd) into a fresh
// buffer, and emits a rate-limited warning.
func (r *Ring) slowModeCopy(startIdx, endIdx int64, localStart, localEnd int) []float32 {
	r.warnSlowMode(startIdx, endIdx)

	tailRows := r.bufCapacity - localStart
	out := make([]float32, (tailRows+localEnd)*r.nChannels)
	copy(out, r.dataSpan(localStart, r.bufCapacity))
	copy(out[tailRows*r.nChannels:], r.dataSpan(0, localEnd))
	return out
}

func (r *Ring) warnSlowMode(startIdx, endIdx int64) {
	key := [2]int64{startIdx, endIdx}
	<-r.slowModeMu
	_, seen := r.slowModeSeen[key]
	if !seen {
		r.slowModeSeen[key] = struct{}{}
	}
	r.slowModeMu <- struct{}{}

	r.slowModeN.Add(1)
	if !seen {
		r.logger.Warnf("ring: slow-mode copy for span [%d,%d), wrap exceeds pocket capacity %d", startIdx, endIdx, r.pocketCapacity)
	}
}

// SlowModeCount reports how many Get calls have fallen back to a copying
// read since the ring was created. Exposed for diagnostics.
func (r *Ring) SlowModeCount() uint64 { return r.slowModeN.Load() }

// CheckAvailability reports the availability code for [startIdx, endIdx)
// without returning data.
func (r *Ring) CheckAvailability(startIdx, endIdx int64) int {
	if r.nChannels == 0 {
		return CodeUninitialized
	}
	if startIdx < 0 || endIdx <= 0 {
		return CodeNegativeIndex
	}
	written := int64(r.samplesWritten())
	if endIdx > written {
		return CodeNotReady
	}
	if written-startIdx > int64(r.bufCapacity) {
		return CodeOverwritten
	}
	return Ready
}

// AcquireWrite returns up to two row-major spans (tail, head) into which a
// producer may write n rows directly, avoiding an intermediate slice. The
// caller must follow with CommitWrite(n) once the data is in place; no
// other writer may call AcquireWrite concurrently (single-producer only).
func (r *Ring) AcquireWrite(n int) (tail, head []float32) {
	if n <= 0 || r.nChannels == 0 {
		return nil, nil
	}
	if n > r.bufCapacity {
		n = r.bufCapacity
	}
	written := r.samplesWritten()
	localStart := int(written % uint64(r.bufCapacity))
	localEnd := localStart + n
	if localEnd <= r.bufCapacity {
		return r.dataSpan(localStart, localEnd), nil
	}
	return r.dataSpan(localStart, r.bufCapacity), r.dataSpan(0, localEnd-r.bufCapacity)
}

// CommitWrite publishes n newly-written rows (previously staged through
// the spans returned by AcquireWrite), mirroring the pocket and advancing
// nSamplesWritten last.
func (r *Ring) CommitWrite(n int) {
	if n <= 0 {
		return
	}
	written := r.samplesWritten()
	r.mirrorPocket()
	r.publish(written + uint64(n))
}

func bytesToFloat32(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/sampleSize)
}
