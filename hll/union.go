package hll

import (
	"fmt"
)

// Union accumulates multiple Sketch instances into one estimate of their combined
// cardinality. The gadget it holds internally is always HLL_8, since unioning smaller
// encodings up front would throw away register precision the union itself needs while
// folding sketches of different lgConfigK together.
type Union interface {
	UpdateUInt64(datum uint64) error
	UpdateInt64(datum int64) error
	UpdateSlice(datum []byte) error
	UpdateString(datum string) error

	// UpdateSketch merges the given sketch into this union.
	UpdateSketch(sketch Sketch) error

	// GetResult returns a copy of the current union state as a standalone sketch of the
	// requested Encoding. The union itself is left untouched and further sketches may
	// still be merged into it afterward.
	GetResult(tgtHllType Encoding) (Sketch, error)

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

	Reset() error

	// couponUpdate feeds a single raw coupon directly into the gadget, bypassing hashing. It
	// exists for the same low-level testing/interop purposes as Sketch.couponUpdate.
	couponUpdate(coupon int) (sketchStateI, error)
}

// unionState holds the running merge. gadget is always encoded HLL_8 internally, regardless
// of what GetResult is later asked to materialize, so intermediate merges never lose register
// precision to a narrower sub-encoding.
type unionState struct {
	lgMaxK int
	gadget Sketch
}

// NewUnionWithDefault constructs a Union at the default lgMaxK.
func NewUnionWithDefault() (Union, error) {
	return NewUnion(defaultLgK)
}

// NewUnion constructs a Union. lgMaxK is the ceiling lgConfigK this union will ever hold:
// sketches merged in at a higher lgConfigK are downsampled to it, never the other way around.
func NewUnion(lgMaxK int) (Union, error) {
	sk, err := NewSketch(lgMaxK, EncodingHll8)
	if err != nil {
		return nil, err
	}
	return &unionState{lgMaxK: lgMaxK, gadget: sk}, nil
}

// NewUnionFromSlice reconstructs a Union by deserializing byteArray as a standalone sketch and
// feeding it back in as the union's first merge. byteArray's own lgConfigK becomes lgMaxK.
func NewUnionFromSlice(byteArray []byte) (Union, error) {
	lgK, err := checkLgK(extractLgK(byteArray))
	if err != nil {
		return nil, err
	}
	sk, err := NewSketchFromSlice(byteArray, false)
	if err != nil {
		return nil, err
	}
	union, err := NewUnion(lgK)
	if err != nil {
		return nil, err
	}
	return union, union.UpdateSketch(sk)
}

func (u *unionState) GetHipEstimate() (float64, error)       { return u.gadget.GetHipEstimate() }
func (u *unionState) GetCompositeEstimate() (float64, error) { return u.gadget.GetCompositeEstimate() }
func (u *unionState) GetEstimate() (float64, error)          { return u.gadget.GetEstimate() }
func (u *unionState) GetUpperBound(n int) (float64, error)   { return u.gadget.GetUpperBound(n) }
func (u *unionState) GetLowerBound(n int) (float64, error)   { return u.gadget.GetLowerBound(n) }
func (u *unionState) GetLgConfigK() int                      { return u.gadget.GetLgConfigK() }
func (u *unionState) GetEncoding() Encoding                  { return u.gadget.GetEncoding() }
func (u *unionState) GetMode() mode                          { return u.gadget.GetMode() }
func (u *unionState) IsEmpty() bool                          { return u.gadget.IsEmpty() }
func (u *unionState) GetUpdatableSerializationBytes() int    { return u.gadget.GetUpdatableSerializationBytes() }
func (u *unionState) Reset() error                           { return u.gadget.Reset() }
func (u *unionState) UpdateUInt64(datum uint64) error        { return u.gadget.UpdateUInt64(datum) }
func (u *unionState) UpdateInt64(datum int64) error          { return u.gadget.UpdateInt64(datum) }
func (u *unionState) UpdateSlice(datum []byte) error         { return u.gadget.UpdateSlice(datum) }
func (u *unionState) UpdateString(datum string) error        { return u.gadget.UpdateString(datum) }
func (u *unionState) couponUpdate(coupon int) (sketchStateI, error) {
	return u.gadget.couponUpdate(coupon)
}

func (u *unionState) GetResult(tgtHllType Encoding) (Sketch, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.CopyAs(tgtHllType)
}

func (u *unionState) ToCompactSlice() ([]byte, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.ToCompactSlice()
}

func (u *unionState) ToUpdatableSlice() ([]byte, error) {
	if err := checkRebuildCurMinNumKxQ(u.gadget); err != nil {
		return nil, err
	}
	return u.gadget.ToUpdatableSlice()
}

func (u *unionState) UpdateSketch(sketch Sketch) error {
	merged, err := u.mergeInto(sketch)
	if err != nil {
		return err
	}
	u.gadget.(*sketchState).sketch = merged
	return nil
}

// mergeInto folds source into the union's gadget and returns the gadget's new sketch state.
// Dispatch is driven by source's mode: a LIST source is cheap enough to replay item-by-item,
// a SET source either seeds an empty same-K gadget directly or gets replayed the same way, and
// an HLL source is the case where lgConfigK mismatches actually matter (mergeHllSource).
func (u *unionState) mergeInto(source Sketch) (sketchStateI, error) {
	if u.gadget.GetEncoding() != EncodingHll8 {
		return nil, fmt.Errorf("gadget must be HLL_8")
	}
	if source == nil || source.IsEmpty() {
		return u.gadget.(*sketchState).sketch, nil
	}

	gadgetC := u.gadget.(*sketchState)
	sourceC := source.(*sketchState)

	switch sourceC.sketch.GetMode() {
	case modeList:
		err := sourceC.mergeTo(u.gadget)
		return u.gadget.(*sketchState).sketch, err
	case modeSet:
		return u.mergeSetSource(gadgetC, sourceC)
	default:
		return u.mergeHllSource(gadgetC, sourceC, source)
	}
}

func (u *unionState) mergeSetSource(gadgetC, sourceC *sketchState) (sketchStateI, error) {
	if u.gadget.IsEmpty() && sourceC.sketch.GetLgConfigK() == u.gadget.GetLgConfigK() {
		copied, err := sourceC.CopyAs(EncodingHll8)
		if err != nil {
			return nil, err
		}
		gadgetC.sketch = copied.(*sketchState).sketch
		return gadgetC.sketch, nil
	}
	err := sourceC.mergeTo(u.gadget)
	return gadgetC.sketch, err
}

// mergeHllSource handles an HLL-mode source. An empty gadget just adopts the source
// (downsampled if it exceeds lgMaxK); a LIST/SET gadget is cheap to replay forward into the
// (possibly downsampled) source copy; an HLL gadget either merges the source's registers in
// directly, or, if the source is coarser than the gadget, downsamples the gadget down to the
// source's resolution first so the merge never upsamples data that was never collected.
func (u *unionState) mergeHllSource(gadgetC, sourceC *sketchState, source Sketch) (sketchStateI, error) {
	srcLgK := source.GetLgConfigK()
	gdgtLgK := u.gadget.GetLgConfigK()
	gdgtEmpty := u.gadget.IsEmpty()
	srcExceedsMax := srcLgK > u.lgMaxK

	switch {
	case gdgtEmpty && !srcExceedsMax:
		copied, err := sourceC.CopyAs(EncodingHll8)
		if err != nil {
			return nil, err
		}
		return copied.(*sketchState).sketch, nil

	case gdgtEmpty:
		down, err := downsampleSketch(source, u.lgMaxK, EncodingHll8)
		if err != nil {
			return nil, err
		}
		return down.(*sketchState).sketch, nil

	case gadgetC.sketch.GetMode() != modeHll && !srcExceedsMax:
		copied, err := sourceC.CopyAs(EncodingHll8)
		if err != nil {
			return nil, err
		}
		if err := gadgetC.mergeTo(copied); err != nil {
			return nil, err
		}
		return copied.(*sketchState).sketch, nil

	case gadgetC.sketch.GetMode() != modeHll:
		down, err := downsampleSketch(source, u.lgMaxK, EncodingHll8)
		if err != nil {
			return nil, err
		}
		if err := gadgetC.mergeTo(down); err != nil {
			return nil, err
		}
		return down.(*sketchState).sketch, nil

	case srcLgK < gdgtLgK:
		gdtDown, err := downsampleSketch(u.gadget, srcLgK, EncodingHll8)
		if err != nil {
			return nil, err
		}
		if err := mergeHlltoHLLmode(source, gdtDown, srcLgK, srcLgK); err != nil {
			return nil, err
		}
		gdtDown.(*sketchState).sketch.putOutOfOrder(true)
		return gdtDown.(*sketchState).sketch, nil

	default:
		if err := mergeHlltoHLLmode(source, u.gadget, srcLgK, gdgtLgK); err != nil {
			return nil, err
		}
		u.gadget.(*sketchState).sketch.putOutOfOrder(true)
		return u.gadget.(*sketchState).sketch, nil
	}
}

// downsampleSketch builds a fresh sketch at tgtLgK/tgtHllType and replays every coupon (or HLL
// register, read back out as a coupon pair) src holds into it. Downsampling is nothing more
// than this: a coupon's address bits don't depend on the sketch's own lgConfigK, so
// re-inserting into a sketch configured with a smaller slot mask naturally folds addresses
// that used to be distinct slots onto the same slot, taking the max as couponUpdate already does.
func downsampleSketch(src Sketch, tgtLgK int, tgtHllType Encoding) (Sketch, error) {
	tgt, err := NewSketch(tgtLgK, tgtHllType)
	if err != nil {
		return nil, err
	}
	itr := src.iterator()
	for itr.nextValid() {
		p, err := itr.getPair()
		if err != nil {
			return nil, err
		}
		if _, err := tgt.couponUpdate(p); err != nil {
			return nil, err
		}
	}
	return tgt, nil
}

// registerTally accumulates the kxq0/kxq1/curMin/numAtCurMin statistics a fresh pass over an
// HLL_8 sketch's registers produces — the same running quantities couponUpdate maintains
// incrementally, recomputed from scratch after a merge invalidates them.
type registerTally struct {
	curMin      int
	numAtCurMin int
	kxq0        float64
	kxq1        float64
}

func newRegisterTally(lgConfigK int) *registerTally {
	return &registerTally{curMin: 64, kxq0: float64(uint64(1 << lgConfigK))}
}

func (t *registerTally) observe(v int) error {
	if v > 0 {
		inv, err := inversePow2(v)
		if err != nil {
			return err
		}
		if v < 32 {
			t.kxq0 += inv - 1.0
		} else {
			t.kxq1 += inv - 1.0
		}
	}
	switch {
	case v > t.curMin:
	case v < t.curMin:
		t.curMin = v
		t.numAtCurMin = 1
	default:
		t.numAtCurMin++
	}
	return nil
}

// checkRebuildCurMinNumKxQ recomputes an HLL_8 sketch's curMin/numAtCurMin/kxq0/kxq1
// bookkeeping from its raw registers, if a prior merge left them marked stale. Walking every
// register is the only way to do this: folding addresses during a merge can make any register
// the new minimum, so the running tallies can't be patched incrementally at merge time.
func checkRebuildCurMinNumKxQ(sketch Sketch) error {
	sketchImpl := sketch.(*sketchState).sketch
	if !sketchImpl.isRebuildCurMinNumKxQFlag() || sketch.GetMode() != modeHll || sketch.GetEncoding() != EncodingHll8 {
		return nil
	}

	arr := sketchImpl.(*hll8Payload)
	tally := newRegisterTally(sketch.GetLgConfigK())

	itr := arr.iterator()
	for itr.nextAll() {
		v, err := itr.getValue()
		if err != nil {
			return err
		}
		if err := tally.observe(v); err != nil {
			return err
		}
	}

	arr.putKxQ0(tally.kxq0)
	arr.putKxQ1(tally.kxq1)
	arr.putCurMin(tally.curMin)
	arr.putNumAtCurMin(tally.numAtCurMin)
	arr.putRebuildCurMinNumKxQFlag(false)
	// hipAccum is untouched: it tracks insertion history, not register state.
	return nil
}

// mergeHlltoHLLmode folds src's registers into tgt's, which must be HLL_8. When srcLgK exceeds
// tgtLgK, addresses are folded down through tgt's slot mask by re-deriving each source slot's
// value and replaying it through updateSlotNoKxQ, the same fold couponUpdate performs for a
// single insert; otherwise the two register arrays line up one-for-one and are walked directly,
// unpacking src's sub-byte encoding (HLL_4's nibbles, HLL_6's 6-bit fields) where needed.
func mergeHlltoHLLmode(src Sketch, tgt Sketch, srcLgK int, tgtLgK int) error {
	tgtArr := tgt.(*sketchState).sketch.(*hll8Payload)

	var err error
	switch {
	case srcLgK > tgtLgK:
		err = foldRegistersDown(src.(*sketchState).sketch.(hllArrayI), tgtArr, tgtLgK)
	case src.GetEncoding() == EncodingHll8:
		copyMaxSameSizeHll8(src.(*sketchState).sketch.(*hll8Payload), tgtArr, 1<<srcLgK)
	case src.GetEncoding() == EncodingHll4:
		err = unpackHll4Registers(src.(*sketchState).sketch.(*hll4Payload), tgtArr, 1<<srcLgK)
	default:
		unpackHll6Registers(src.(*sketchState).sketch.(*hll6Payload), tgtArr, 1<<srcLgK)
	}
	if err != nil {
		return err
	}
	tgt.(*sketchState).sketch.putRebuildCurMinNumKxQFlag(true)
	return nil
}

// foldRegistersDown walks every valid register of a finer (larger lgConfigK) source array
// and replays it into tgt at the folded slot address, srcIndex & tgtMask.
func foldRegistersDown(src hllArrayI, tgt *hll8Payload, tgtLgK int) error {
	tgtMask := (1 << tgtLgK) - 1
	itr := src.iterator()
	for itr.nextValid() {
		v, err := itr.getValue()
		if err != nil {
			return err
		}
		tgt.updateSlotNoKxQ(itr.getIndex()&tgtMask, v)
	}
	return nil
}

// copyMaxSameSizeHll8 takes the register-wise max of two same-sized HLL_8 byte arrays in place.
func copyMaxSameSizeHll8(src *hll8Payload, tgt *hll8Payload, k int) {
	for i := 0; i < k; i++ {
		tgt.hllByteArr[i] = max(src.hllByteArr[i], tgt.hllByteArr[i])
	}
}

// unpackHll4Registers unpacks src's nibble-packed registers (two 4-bit values per byte, offset
// by curMin, with any saturated nibble resolved through the auxiliary exception table) and
// replays each one into tgt.
func unpackHll4Registers(src *hll4Payload, tgt *hll8Payload, k int) error {
	for slot := 0; slot < k; slot += 2 {
		b := src.hllByteArr[slot/2]
		if err := replayHll4Nibble(src, tgt, slot, uint(b)&loNibbleMask); err != nil {
			return err
		}
		if err := replayHll4Nibble(src, tgt, slot+1, uint(b)>>4); err != nil {
			return err
		}
	}
	return nil
}

func replayHll4Nibble(src *hll4Payload, tgt *hll8Payload, slot int, nibble uint) error {
	if nibble == auxToken {
		v, err := src.auxTable.mustFindValueFor(slot)
		if err != nil {
			return err
		}
		tgt.updateSlotNoKxQ(slot, v)
		return nil
	}
	tgt.updateSlotNoKxQ(slot, int(nibble)+src.curMin)
	return nil
}

// unpackHll6Registers unpacks src's 6-bit-packed registers (four registers span every three
// bytes) and replays each one into tgt.
func unpackHll6Registers(src *hll6Payload, tgt *hll8Payload, k int) {
	for slot := 0; slot < k; slot += 4 {
		byteOff := (slot / 4) * 3
		b1 := src.hllByteArr[byteOff]
		b2 := src.hllByteArr[byteOff+1]
		b3 := src.hllByteArr[byteOff+2]

		tgt.updateSlotNoKxQ(slot, int(uint(b1)&0x3f))
		tgt.updateSlotNoKxQ(slot+1, int((uint(b1)>>6)|((uint(b2)&0x0f)<<2)))
		tgt.updateSlotNoKxQ(slot+2, int((uint(b2)>>4)|((uint(b3)&3)<<4)))
		tgt.updateSlotNoKxQ(slot+3, int(uint(b3)>>2))
	}
}
