// Package hll implements HyperLogLog cardinality estimation: approximating the number of
// distinct items in a stream while holding only a small, fixed-size sketch in memory.
//
// Sketch and Union are the package's two public entry points. A Sketch accumulates items
// directly and transitions through three internal representations (LIST, SET, HLL) as it
// fills; a Union folds several sketches, possibly of different configured sizes, into one.
package hll

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/twmb/murmur3"
)

// Sketch is the public handle to a single HyperLogLog accumulator.
type Sketch interface {
	Copy() (Sketch, error)
	CopyAs(tgtHllType Encoding) (Sketch, error)

	// GetCompositeEstimate chooses between the bias-adjusted raw HLL estimator and a
	// linear-counting (bitmap) estimator and does not read the HIP running count; it is what a
	// sketch falls back to once a union has made the HIP running count unusable.
	GetCompositeEstimate() (float64, error)
	GetEstimate() (float64, error)

	UpdateUInt64(datum uint64) error
	UpdateInt64(datum int64) error
	UpdateSlice(datum []byte) error
	UpdateString(datum string) error

	// Reset empties the sketch back to LIST mode without changing its configured lgConfigK
	// or Encoding.
	Reset() error

	// GetLowerBound and GetUpperBound take numStdDev in 1..3.
	GetLowerBound(numStdDev int) (float64, error)
	GetUpperBound(numStdDev int) (float64, error)

	IsEmpty() bool
	GetLgConfigK() int
	GetEncoding() Encoding
	GetMode() mode

	GetUpdatableSerializationBytes() int
	ToCompactSlice() ([]byte, error)
	ToUpdatableSlice() ([]byte, error)
	GetSerializationVersion() int

	couponUpdate(coupon int) (sketchStateI, error)
	iterator() slotIterator
}

// sketchStateI is satisfied by whichever internal representation (listPayload, setPayload,
// hll4/6/8Payload) a sketch currently holds. A sketch switches which implementation backs it
// as it grows; sketchStateI is what lets sketchState swap that out without callers noticing.
type sketchStateI interface {
	GetCompositeEstimate() (float64, error)
	GetEstimate() (float64, error)
	GetHipEstimate() (float64, error)
	GetLowerBound(numStdDev int) (float64, error)
	GetUpperBound(numStdDev int) (float64, error)
	IsEmpty() bool

	GetLgConfigK() int
	GetEncoding() Encoding
	GetMode() mode

	GetUpdatableSerializationBytes() int
	ToCompactSlice() ([]byte, error)
	ToUpdatableSlice() ([]byte, error)

	getMemDataStart() int
	getPreInts() int
	isOutOfOrder() bool
	isRebuildCurMinNumKxQFlag() bool

	putOutOfOrder(oooFlag bool)
	putRebuildCurMinNumKxQFlag(rebuildCurMinNumKxQFlag bool)
	copyAs(tgtHllType Encoding) (sketchStateI, error)
	copy() (sketchStateI, error)
	mergeTo(dest Sketch) error

	couponUpdate(coupon int) (sketchStateI, error)
	iterator() slotIterator
}

// sketchState is the Sketch implementation. sketch holds whichever representation currently
// backs it (listPayload while small, setPayload once it grows past the list threshold, one of
// the hll4/6/8Payload variants once it's promoted to HLL mode); nearly every Sketch method is
// a direct delegate to whatever sketch currently points at, and only the operations that swap
// representations or touch hashing are written out with logic of their own.
type sketchState struct {
	sketch  sketchStateI
	scratch [8]byte
}

func newSketchState(impl sketchStateI) Sketch {
	return &sketchState{sketch: impl}
}

func (h *sketchState) GetCompositeEstimate() (float64, error) { return h.sketch.GetCompositeEstimate() }
func (h *sketchState) GetEstimate() (float64, error)           { return h.sketch.GetEstimate() }
func (h *sketchState) GetHipEstimate() (float64, error)        { return h.sketch.GetHipEstimate() }
func (h *sketchState) GetLowerBound(n int) (float64, error)    { return h.sketch.GetLowerBound(n) }
func (h *sketchState) GetUpperBound(n int) (float64, error)    { return h.sketch.GetUpperBound(n) }
func (h *sketchState) IsEmpty() bool                           { return h.sketch.IsEmpty() }
func (h *sketchState) GetLgConfigK() int                       { return h.sketch.GetLgConfigK() }
func (h *sketchState) GetEncoding() Encoding                   { return h.sketch.GetEncoding() }
func (h *sketchState) GetMode() mode                           { return h.sketch.GetMode() }
func (h *sketchState) GetUpdatableSerializationBytes() int {
	return h.sketch.GetUpdatableSerializationBytes()
}
func (h *sketchState) ToCompactSlice() ([]byte, error)   { return h.sketch.ToCompactSlice() }
func (h *sketchState) ToUpdatableSlice() ([]byte, error) { return h.sketch.ToUpdatableSlice() }
func (h *sketchState) iterator() slotIterator            { return h.sketch.iterator() }
func (h *sketchState) mergeTo(dest Sketch) error         { return h.sketch.mergeTo(dest) }
func (h *sketchState) putRebuildCurMinNumKxQFlag(flag bool) {
	h.sketch.putRebuildCurMinNumKxQFlag(flag)
}

// NewSketch builds an empty sketch starting in LIST mode. lgConfigK must be between 4 and 21
// inclusive; tgtHllType picks the register width it will use once it graduates to HLL mode.
func NewSketch(lgConfigK int, tgtHllType Encoding) (Sketch, error) {
	lgK, err := checkLgK(lgConfigK)
	if err != nil {
		return nil, err
	}
	list, err := newCouponList(lgK, tgtHllType, modeList)
	if err != nil {
		return nil, err
	}
	return newSketchState(&list), nil
}

// NewSketchWithDefault builds an empty sketch at the package's default lgK and Encoding.
func NewSketchWithDefault() (Sketch, error) {
	return NewSketch(defaultLgK, EncodingDefault)
}

// NewSketchFromSlice reconstructs a Sketch from a previously serialized image. bytes is read
// but not retained. With checkRebuild set, an HLL_8 image whose rebuild flag a union merge left
// set gets a register scan that recomputes curMin, numAtCurMin, kxq0 and kxq1 (which the
// composite estimate and bounds read); hipAccum is not rebuilt, and other encodings are loaded
// as stored.
func NewSketchFromSlice(bytes []byte, checkRebuild bool) (Sketch, error) {
	if len(bytes) < 8 {
		return nil, fmt.Errorf("input array too small: %d", len(bytes))
	}
	m, err := checkPreamble(bytes)
	if err != nil {
		return nil, err
	}

	switch m {
	case modeList:
		cp, err := deserializeCouponList(bytes)
		if err != nil {
			return nil, err
		}
		return newSketchState(cp), nil
	case modeSet:
		chs, err := deserializeCouponHashSet(bytes)
		if err != nil {
			return nil, err
		}
		return newSketchState(chs), nil
	default:
		return newHllSketchFromSlice(bytes, checkRebuild)
	}
}

func newHllSketchFromSlice(bytes []byte, checkRebuild bool) (Sketch, error) {
	switch extractEncoding(bytes) {
	case EncodingHll4:
		sk, err := deserializeHll4(bytes)
		if err != nil {
			return nil, err
		}
		return newSketchState(sk), nil
	case EncodingHll6:
		return newSketchState(deserializeHll6(bytes)), nil
	default:
		sk := newSketchState(deserializeHll8(bytes))
		if checkRebuild {
			if err := checkRebuildCurMinNumKxQ(sk); err != nil {
				return nil, err
			}
		}
		return sk, nil
	}
}

func (h *sketchState) Copy() (Sketch, error) {
	cp, err := h.sketch.copy()
	if err != nil {
		return nil, err
	}
	return newSketchState(cp), nil
}

func (h *sketchState) CopyAs(tgtHllType Encoding) (Sketch, error) {
	cp, err := h.sketch.copyAs(tgtHllType)
	if err != nil {
		return nil, err
	}
	return newSketchState(cp), nil
}

func (h *sketchState) Reset() error {
	list, err := newCouponList(h.GetLgConfigK(), h.GetEncoding(), modeList)
	if err != nil {
		return err
	}
	h.sketch = &list
	return nil
}

func (h *sketchState) UpdateUInt64(datum uint64) error {
	binary.LittleEndian.PutUint64(h.scratch[:], datum)
	_, err := h.couponUpdate(encodeCoupon(h.hash(h.scratch[:])))
	return err
}

func (h *sketchState) UpdateInt64(datum int64) error {
	return h.UpdateUInt64(uint64(datum))
}

func (h *sketchState) UpdateSlice(datum []byte) error {
	if len(datum) == 0 {
		return nil
	}
	_, err := h.couponUpdate(encodeCoupon(h.hash(datum)))
	return err
}

func (h *sketchState) UpdateString(datum string) error {
	return h.UpdateSlice(unsafe.Slice(unsafe.StringData(datum), len(datum)))
}

// couponUpdate overrides the promoted delegate to special-case the sentinel that
// encodeCoupon can never actually produce (all-zero value field), which marks an
// already-filtered/no-op update rather than one that needs to reach the representation below.
func (h *sketchState) couponUpdate(cpn int) (sketchStateI, error) {
	if cpn>>keyBits26 == empty {
		return h.sketch, nil
	}
	next, err := h.sketch.couponUpdate(cpn)
	h.sketch = next
	return h.sketch, err
}

// GetSerializationVersion reports the wire format version this build writes; it is not read
// from the representation below since every mode shares one serialization scheme.
func (h *sketchState) GetSerializationVersion() int {
	return serVer
}

func (h *sketchState) hash(bs []byte) (uint64, uint64) {
	return murmur3.SeedSum128(defaultHashSeed, defaultHashSeed, bs)
}

// encodeCoupon packs a 128-bit hash down to the 32-bit coupon representation every mode
// shares: the low 26 bits of hashLo address a slot, and the top bits record 1 plus the number
// of leading zeros in hashHi (capped at 62), the count that drives the estimator.
func encodeCoupon(hashLo uint64, hashHi uint64) int {
	addr26 := hashLo & keyMask26
	lz := uint64(bits.LeadingZeros64(hashHi))
	value := min(lz, 62) + 1
	return int((value << keyBits26) | addr26)
}
