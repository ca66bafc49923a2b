package hll

import (
	"encoding/binary"
	"fmt"
)

// setPayload is the second representation a sketch passes through: an open-addressed hash set
// of coupons, used once a list fills past its linear-scan threshold. It grows by doubling
// (subject to a load-factor check) and promotes to an HLL array once it would otherwise have
// to grow past lgConfigK-3.
type setPayload struct {
	sketchConfig
	couponState
}

func (c *setPayload) GetCompositeEstimate() (float64, error) { return getEstimate(c) }
func (c *setPayload) GetEstimate() (float64, error)           { return getEstimate(c) }
func (c *setPayload) GetHipEstimate() (float64, error)        { return getEstimate(c) }

func (c *setPayload) GetLowerBound(numStdDev int) (float64, error) {
	return getLowerBound(c, numStdDev)
}

func (c *setPayload) GetUpperBound(numStdDev int) (float64, error) {
	return getUpperBound(c, numStdDev)
}

func (c *setPayload) GetUpdatableSerializationBytes() int {
	return c.getMemDataStart() + (4 << c.getLgCouponArrInts())
}

func (c *setPayload) ToCompactSlice() ([]byte, error)   { return toCouponSlice(c, true) }
func (c *setPayload) ToUpdatableSlice() ([]byte, error) { return toCouponSlice(c, false) }

func (c *setPayload) getMemDataStart() int { return hashSetIntArrStart }
func (c *setPayload) getPreInts() int      { return hashSetPreInts }

func (c *setPayload) iterator() slotIterator {
	return newCouponSlotIterator(c.couponIntArr, c.lgConfigK)
}

func (c *setPayload) couponUpdate(coupon int) (sketchStateI, error) {
	slot, err := probeCouponSlot(c.couponIntArr, c.lgCouponArrInts, coupon)
	if err != nil {
		return nil, err
	}
	if slot.found {
		return c, nil
	}

	c.couponIntArr[slot.index] = coupon
	c.couponCount++
	shouldPromote, err := c.checkGrowOrPromote()
	if err != nil {
		return nil, err
	}
	if shouldPromote {
		return promoteSetToHll(c)
	}
	return c, nil
}

func (c *setPayload) copyAs(tgtHllType Encoding) (sketchStateI, error) {
	cp := &setPayload{
		sketchConfig: newSketchConfig(c.lgConfigK, tgtHllType, modeSet),
		couponState:  newHllCouponState(c.lgCouponArrInts, c.couponCount, make([]int, len(c.couponIntArr))),
	}
	copy(cp.couponIntArr, c.couponIntArr)
	return cp, nil
}

func (c *setPayload) copy() (sketchStateI, error) {
	return c.copyAs(c.tgtHllType)
}

func (c *setPayload) mergeTo(dest Sketch) error {
	return mergeCouponTo(c, dest)
}

// checkGrowOrPromote decides what happens after an insert grows couponCount: below the
// resizeNumber/resizeDenom load factor nothing changes, above it the array either doubles (and
// every entry is rehashed into the larger table) or, if it's already at its ceiling size of
// lgConfigK-3, the set is promoted to a full HLL register array instead.
func (c *setPayload) checkGrowOrPromote() (bool, error) {
	if (resizeDenom * c.couponCount) <= (resizeNumber * (1 << c.lgCouponArrInts)) {
		return false, nil
	}
	if c.lgCouponArrInts == c.lgConfigK-3 {
		return true, nil
	}
	c.lgCouponArrInts++
	grown, err := rehashInto(c.couponIntArr, c.lgCouponArrInts)
	c.couponIntArr = grown
	return false, err
}

// rehashInto builds a table of size 2^tgtLgArrInts and reinserts every occupied entry of src
// into it via probeCouponSlot. A fresh table never sees a coupon twice, so any "duplicate"
// result here means the source table was already corrupt.
func rehashInto(src []int, tgtLgArrInts int) ([]int, error) {
	tgt := make([]int, 1<<tgtLgArrInts)
	for _, coupon := range src {
		if coupon == empty {
			continue
		}
		slot, err := probeCouponSlot(tgt, tgtLgArrInts, coupon)
		if err != nil {
			return nil, err
		}
		if slot.found {
			return nil, fmt.Errorf("growHashSet, found duplicate")
		}
		tgt[slot.index] = coupon
	}
	return tgt, nil
}

// promoteSetToHll replays every coupon held in src into a fresh register array, the same way
// promoteListToHll does for a LIST-mode source.
func promoteSetToHll(src *setPayload) (hllArrayI, error) {
	tgt, err := newHllArrayI(src.lgConfigK, src.tgtHllType)
	if err != nil {
		return nil, err
	}
	tgt.putKxQ0(float64(uint64(1) << src.lgConfigK))

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

	est, err := src.GetEstimate()
	if err != nil {
		return nil, err
	}
	tgt.putHipAccum(est)
	tgt.putOutOfOrder(false)
	return tgt, nil
}

// couponSlot is the result of probing a hash set for a coupon: index is either where the
// coupon was found (found=true) or the first empty slot it should be inserted at (found=false).
type couponSlot struct {
	index int
	found bool
}

// probeCouponSlot walks the open-addressing probe sequence for coupon starting at
// coupon & arrMask: on each step it either lands on an empty slot, lands on coupon itself, or
// advances by an odd stride derived from coupon's own upper bits (odd against a power-of-two
// table size guarantees every slot is visited before the sequence can repeat). If the probe
// returns to its starting slot having seen neither, the table has no empty slots left — a
// caller bug, since checkGrowOrPromote is supposed to keep that from happening.
func probeCouponSlot(array []int, lgArrInts int, coupon int) (couponSlot, error) {
	arrMask := len(array) - 1
	start := coupon & arrMask
	probe := start

	for {
		switch array[probe] {
		case empty:
			return couponSlot{index: probe}, nil
		case coupon:
			return couponSlot{index: probe, found: true}, nil
		}
		stride := ((coupon & keyMask26) >> lgArrInts) | 1
		probe = (probe + stride) & arrMask
		if probe == start {
			return couponSlot{}, fmt.Errorf("key not found and no empty slots")
		}
	}
}

// newCouponHashSet allocates an empty set backing array. lgConfigK must exceed 7, the same
// floor newCouponList enforces for SET mode.
func newCouponHashSet(lgConfigK int, tgtHllType Encoding) (setPayload, error) {
	if lgConfigK <= 7 {
		return setPayload{}, fmt.Errorf("lgConfigK must be > 7 for SET mode")
	}
	cl, err := newCouponList(lgConfigK, tgtHllType, modeSet)
	if err != nil {
		return setPayload{}, err
	}
	return setPayload(cl), nil
}

// deserializeCouponHashSet rebuilds a setPayload from a serialized image. A compact image
// lists only the occupied coupons and is replayed through couponUpdate to rebuild the table;
// an updatable image already stores the full sparse array and is read back verbatim.
func deserializeCouponHashSet(byteArray []byte) (couponPayload, error) {
	lgConfigK := extractLgK(byteArray)
	tgtHllType := extractEncoding(byteArray)

	memArrStart := listIntArrStart
	if extractMode(byteArray) == modeSet {
		memArrStart = hashSetIntArrStart
	}
	set, err := newCouponHashSet(lgConfigK, tgtHllType)
	if err != nil {
		return nil, err
	}

	couponCount := extractHashSetCount(byteArray)
	if !extractCompactFlag(byteArray) {
		return deserializeUpdatableHashSet(byteArray, &set, couponCount)
	}

	for i := 0; i < couponCount; i++ {
		off := memArrStart + i*4
		if _, err := set.couponUpdate(int(binary.LittleEndian.Uint32(byteArray[off : off+4]))); err != nil {
			return nil, err
		}
	}
	return &set, nil
}

func deserializeUpdatableHashSet(byteArray []byte, set *setPayload, couponCount int) (couponPayload, error) {
	lgCouponArrInts := extractLgArr(byteArray)
	if lgCouponArrInts < lgInitSetSize {
		var err error
		lgCouponArrInts, err = computeLgArr(byteArray, couponCount, set.lgConfigK)
		if err != nil {
			return nil, err
		}
	}
	set.couponCount = couponCount
	set.lgCouponArrInts = lgCouponArrInts
	set.couponIntArr = make([]int, 1<<lgCouponArrInts)
	for i := range set.couponIntArr {
		off := hashSetIntArrStart + i*4
		set.couponIntArr[i] = int(binary.LittleEndian.Uint32(byteArray[off : off+4]))
	}
	return set, nil
}
