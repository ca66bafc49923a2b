package hll

import (
	"encoding/binary"
	"fmt"
)

// listPayload is the first and smallest representation a sketch takes: a flat, unsorted array
// of coupons, scanned linearly on every insert. It is cheap per-insert only while small, which
// is why couponUpdate promotes it away (to a hash set, or straight to an HLL array for small
// lgConfigK) once it fills.
type listPayload struct {
	sketchConfig
	couponState
}

func (c *listPayload) GetCompositeEstimate() (float64, error) { return getEstimate(c) }
func (c *listPayload) GetEstimate() (float64, error)           { return getEstimate(c) }
func (c *listPayload) GetHipEstimate() (float64, error)        { return getEstimate(c) }

func (c *listPayload) GetLowerBound(numStdDev int) (float64, error) {
	return getLowerBound(c, numStdDev)
}

func (c *listPayload) GetUpperBound(numStdDev int) (float64, error) {
	return getUpperBound(c, numStdDev)
}

func (c *listPayload) GetUpdatableSerializationBytes() int {
	return c.getMemDataStart() + (4 << c.getLgCouponArrInts())
}

func (c *listPayload) ToCompactSlice() ([]byte, error)   { return toCouponSlice(c, true) }
func (c *listPayload) ToUpdatableSlice() ([]byte, error) { return toCouponSlice(c, false) }

func (c *listPayload) getMemDataStart() int { return listIntArrStart }
func (c *listPayload) getPreInts() int      { return listPreInts }

func (c *listPayload) iterator() slotIterator {
	return newCouponSlotIterator(c.couponIntArr, c.lgConfigK)
}

// couponUpdate scans for coupon, linearly: dedups if already present, fills the first empty
// slot otherwise, and promotes once that fill exhausts the array. Below lgConfigK 8 there
// isn't enough headroom to make a hash set worthwhile, so a full list jumps straight to an
// HLL array instead of passing through SET mode.
func (c *listPayload) couponUpdate(coupon int) (sketchStateI, error) {
	slot, found := c.findSlot(coupon)
	if slot < 0 {
		return nil, fmt.Errorf("array invalid: no empties & no duplicates")
	}
	if found {
		return c, nil
	}

	c.couponIntArr[slot] = coupon
	c.couponCount++
	if c.couponCount < (1 << c.lgCouponArrInts) {
		return c, nil
	}
	if c.lgConfigK < 8 {
		return promoteListToHll(c)
	}
	return promoteListToSet(c)
}

// findSlot returns (index, true) if coupon is already present, (index, false) for the first
// empty slot it can be inserted into, or (-1, false) if the array holds neither — which would
// mean couponUpdate was called on an already-full list, a caller bug.
func (c *listPayload) findSlot(coupon int) (int, bool) {
	for i, v := range c.couponIntArr[:1<<c.lgCouponArrInts] {
		if v == empty {
			return i, false
		}
		if v == coupon {
			return i, true
		}
	}
	return -1, false
}

func (c *listPayload) copyAs(tgtHllType Encoding) (sketchStateI, error) {
	cp := &listPayload{
		sketchConfig: newSketchConfig(c.lgConfigK, tgtHllType, modeList),
		couponState:  newHllCouponState(c.lgCouponArrInts, c.couponCount, make([]int, len(c.couponIntArr))),
	}
	copy(cp.couponIntArr, c.couponIntArr)
	return cp, nil
}

func (c *listPayload) copy() (sketchStateI, error) {
	return c.copyAs(c.tgtHllType)
}

func (c *listPayload) mergeTo(dest Sketch) error {
	return mergeCouponTo(c, dest)
}

// promoteListToHll replays every coupon held in src into a fresh register array. The HIP
// accumulator is seeded from the list's own (exact, since it's still small) cardinality
// estimate rather than rebuilt incrementally, since replaying coupons out of order would
// otherwise corrupt the ordered-insertion assumption HIP depends on.
func promoteListToHll(src *listPayload) (hllArrayI, error) {
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

// promoteListToSet replays every coupon held in c into a fresh hash set.
func promoteListToSet(c *listPayload) (sketchStateI, error) {
	set, err := newCouponHashSet(c.lgConfigK, c.tgtHllType)
	if err != nil {
		return nil, err
	}
	for _, cpn := range c.couponIntArr[:c.couponCount] {
		if _, err := set.couponUpdate(cpn); err != nil {
			return nil, err
		}
	}
	return &set, nil
}

// newCouponList allocates an empty list or set backing array sized for the given mode.
// Hash sets require lgConfigK > 7: below that, LIST mode promotes straight to an HLL array
// instead (see couponUpdate), so a set backing array of that size is never requested.
func newCouponList(lgConfigK int, tgtHllType Encoding, mode mode) (listPayload, error) {
	lgCouponArrInts := lgInitSetSize
	if mode == modeList {
		lgCouponArrInts = lgInitListSize
	} else if lgConfigK <= 7 {
		return listPayload{}, fmt.Errorf("lgConfigK must be > 7 for non-HLL mode")
	}

	return listPayload{
		sketchConfig: newSketchConfig(lgConfigK, tgtHllType, mode),
		couponState:  newHllCouponState(lgCouponArrInts, 0, make([]int, 1<<lgCouponArrInts)),
	}, nil
}

// deserializeCouponList rebuilds a listPayload from a serialized image's coupon array.
func deserializeCouponList(byteArray []byte) (couponPayload, error) {
	lgConfigK := extractLgK(byteArray)
	tgtHllType := extractEncoding(byteArray)

	list, err := newCouponList(lgConfigK, tgtHllType, modeList)
	if err != nil {
		return nil, err
	}
	count := extractListCount(byteArray)
	for i := 0; i < count; i++ {
		off := listIntArrStart + i*4
		list.couponIntArr[i] = int(binary.LittleEndian.Uint32(byteArray[off : off+4]))
	}
	list.couponCount = count
	return &list, nil
}
