package hll

import (
	"fmt"
)

// hll4Payload packs two 4-bit registers per byte. A 4-bit field only spans values 0..15, so any
// register that would overflow that range (relative to curMin) is instead recorded as the
// sentinel auxToken and its real value kept in a side table (auxTable) keyed by slot.
type hll4Payload struct {
	hllArrayBase
}

// newHll4Array allocates an empty HLL_4 register array: every slot implicitly reads as curMin
// (0) until updated, so kxq0 starts at the full 2^lgConfigK (each empty slot contributes
// 2^-0 = 1) and numAtCurMin starts at every slot.
func newHll4Array(lgConfigK int) hllArrayI {
	return &hll4Payload{
		hllArrayBase: hllArrayBase{
			sketchConfig: newSketchConfig(lgConfigK, EncodingHll4, modeHll),
			numAtCurMin:  1 << lgConfigK,
			kxq0:         float64(uint64(1 << lgConfigK)),
			hllByteArr:   make([]byte, 1<<(lgConfigK-1)),
			auxStart:     hllByteArrStart + 1<<(lgConfigK-1),
		},
	}
}

// deserializeHll4 rebuilds an HLL_4 array from a serialized image, including its auxiliary
// exception table if the image recorded any saturated slots.
func deserializeHll4(byteArray []byte) (hllArrayI, error) {
	lgConfigK := extractLgK(byteArray)
	hll4 := newHll4Array(lgConfigK)
	hll4.extractCommonHll(byteArray)

	if auxCount := extractAuxCount(byteArray); auxCount > 0 {
		aux, err := deserializeAuxTable(byteArray, hll4.getAuxStart(), lgConfigK, auxCount, extractCompactFlag(byteArray))
		if err != nil {
			return nil, err
		}
		hll4.putAuxTable(aux, false)
	}
	return hll4, nil
}

// getSlotValue resolves a slot's stored register value: the nibble directly if it's below the
// saturation sentinel, or a lookup into the auxiliary table if it hit auxToken.
func (h *hll4Payload) getSlotValue(slotNo int) (int, error) {
	nib := h.getNibble(slotNo)
	if nib != auxToken {
		return nib + h.curMin, nil
	}
	return h.getAuxTable().mustFindValueFor(slotNo)
}

func (h *hll4Payload) couponUpdate(coupon int) (sketchStateI, error) {
	err := internalHll4Update(h, coupon&h.slotNoMask, coupon>>keyBits26)
	return h, err
}

func (h *hll4Payload) iterator() slotIterator {
	itr := newHll4Iterator(1<<h.lgConfigK, h)
	return &itr
}

func (h *hll4Payload) ToCompactSlice() ([]byte, error)   { return toHllByteArr(h, true) }
func (h *hll4Payload) ToUpdatableSlice() ([]byte, error) { return toHllByteArr(h, false) }

func (h *hll4Payload) GetUpdatableSerializationBytes() int {
	lgAux := lgAuxArrInts[h.lgConfigK]
	if aux := h.getAuxTable(); aux != nil {
		lgAux = aux.getLgAuxArrInts()
	}
	return hllByteArrStart + h.getHllByteArrBytes() + (4 << lgAux)
}

func (h *hll4Payload) copyAs(tgtHllType Encoding) (sketchStateI, error) {
	switch tgtHllType {
	case h.tgtHllType:
		return h.copy()
	case EncodingHll6:
		return convertToHll6(h)
	case EncodingHll8:
		return convertToHll8(h)
	default:
		return nil, fmt.Errorf("cannot convert to Encoding id: %d ", int(tgtHllType))
	}
}

func (h *hll4Payload) copy() (sketchStateI, error) {
	return &hll4Payload{hllArrayBase: h.copyCommon()}, nil
}

// convertToHll4 builds an HLL_4 array from any other register array's contents. It makes two
// passes: the first finds curMin (the 4-bit fields are stored relative to it, so it must be
// known before any field is written), the second writes each field, spilling into a fresh
// auxiliary table any register that would overflow the 4-bit range relative to that curMin.
func convertToHll4(src hllArrayI) (sketchStateI, error) {
	lgConfigK := src.GetLgConfigK()
	dst := newHll4Array(lgConfigK)
	dst.putOutOfOrder(src.isOutOfOrder())

	curMin, numAtCurMin, err := scanCurMin(src)
	if err != nil {
		return nil, err
	}

	itr := src.iterator()
	for itr.nextValid() {
		slotNo := itr.getIndex()
		v, err := itr.getValue()
		if err != nil {
			return nil, err
		}
		if err := dst.hipAndKxQIncrementalUpdate(0, v); err != nil {
			return nil, err
		}
		if v < curMin+15 {
			dst.putNibble(slotNo, byte(v-curMin))
			continue
		}
		dst.putNibble(slotNo, auxToken)
		aux := dst.getAuxTable()
		if aux == nil {
			aux = newAuxTable(lgAuxArrInts[lgConfigK], lgConfigK)
			dst.putAuxTable(aux, false)
		}
		if err := aux.mustAdd(slotNo, v); err != nil {
			return nil, err
		}
	}

	dst.putCurMin(curMin)
	dst.putNumAtCurMin(numAtCurMin)
	dst.putHipAccum(src.getHipAccum())
	dst.putRebuildCurMinNumKxQFlag(false)
	return dst, nil
}

// scanCurMin walks every register of src and returns its minimum value and how many registers
// hold that minimum.
func scanCurMin(src hllArrayI) (curMin int, numAtCurMin int, err error) {
	curMin = 64
	itr := src.iterator()
	for itr.nextAll() {
		v, err := itr.getValue()
		if err != nil {
			return 0, 0, err
		}
		switch {
		case v > curMin:
		case v < curMin:
			curMin, numAtCurMin = v, 1
		default:
			numAtCurMin++
		}
	}
	return curMin, numAtCurMin, nil
}

type hll4SlotIterator struct {
	hllSlotIterator
	hll *hll4Payload
}

func newHll4Iterator(lengthPairs int, hll *hll4Payload) hll4SlotIterator {
	return hll4SlotIterator{
		hllSlotIterator: newHllSlotIterator(lengthPairs),
		hll:             hll,
	}
}

func (itr *hll4SlotIterator) nextValid() bool {
	for itr.index+1 < itr.lengthPairs {
		itr.index++
		v, err := itr.getValue()
		if err != nil {
			return false
		}
		if v != empty {
			itr.value = v
			return true
		}
	}
	return false
}

func (itr *hll4SlotIterator) getValue() (int, error) {
	return itr.hll.getSlotValue(itr.getIndex())
}

func (itr *hll4SlotIterator) getPair() (int, error) {
	v, err := itr.getValue()
	return pair(itr.index, v), err
}
