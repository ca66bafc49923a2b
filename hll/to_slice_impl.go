package hll

import (
	"encoding/binary"
	"fmt"
)

func toHllByteArr(impl hllArrayI, compact bool) ([]byte, error) {
	byteArr := make([]byte, hllByteArrStart+impl.getHllByteArrBytes()+auxByteLength(impl, compact))
	err := insertHll(impl, byteArr, compact)
	return byteArr, err
}

// auxByteLength reports how many trailing bytes toHllByteArr must reserve for the auxiliary
// exception table. Only HLL_4 ever carries one; a compact image omits any table that happens to
// be empty, while an updatable image always reserves the nominal size for lgConfigK so the layout
// stays predictable even before anything has overflowed into it.
func auxByteLength(impl hllArrayI, compact bool) int {
	if impl.GetEncoding() != EncodingHll4 {
		return 0
	}
	if aux := impl.getAuxTable(); aux != nil {
		if compact {
			return aux.getCompactSizeBytes()
		}
		return aux.getUpdatableSizeBytes()
	}
	if compact {
		return 0
	}
	return 4 << lgAuxArrInts[impl.GetLgConfigK()]
}

func toCouponSlice(impl couponPayload, dstCompact bool) ([]byte, error) {
	dataStart := impl.getMemDataStart()
	srcCouponCount := impl.getCouponCount()

	var (
		byteArrOut []byte
		err        error
	)
	if dstCompact {
		byteArrOut = make([]byte, dataStart+(srcCouponCount<<2))
		copyCommonListAndSet(impl, byteArrOut)
		insertCompactFlag(byteArrOut, dstCompact)
		_, err = writePairsCompact(byteArrOut, dataStart, impl.iterator())
	} else {
		byteArrOut = make([]byte, dataStart+((1<<impl.getLgCouponArrInts())<<2))
		copyCommonListAndSet(impl, byteArrOut)
		writeIntsDense(byteArrOut, dataStart, impl.getCouponIntArr())
	}
	if err != nil {
		return nil, err
	}

	if impl.GetMode() == modeList {
		insertListCount(byteArrOut, srcCouponCount)
	} else {
		insertHashSetCount(byteArrOut, srcCouponCount)
	}
	return byteArrOut, nil
}

// writePairsCompact walks itr's valid (non-empty) entries and packs them consecutively starting
// at dst[offset:], returning how many it wrote.
func writePairsCompact(dst []byte, offset int, itr slotIterator) (int, error) {
	cnt := 0
	for itr.nextValid() {
		p, err := itr.getPair()
		if err != nil {
			return cnt, err
		}
		binary.LittleEndian.PutUint32(dst[offset+(cnt<<2):offset+(cnt<<2)+4], uint32(p))
		cnt++
	}
	return cnt, nil
}

// writeIntsDense copies every entry of src (including empties) into dst[offset:], one uint32
// each, preserving a sparse array's layout verbatim.
func writeIntsDense(dst []byte, offset int, src []int) {
	for _, v := range src {
		binary.LittleEndian.PutUint32(dst[offset:offset+4], uint32(v))
		offset += 4
	}
}

func copyCommonListAndSet(impl couponPayload, dst []byte) {
	insertPreInts(dst, impl.getPreInts())
	insertSerVer(dst)
	insertFamilyID(dst)
	insertLgK(dst, impl.GetLgConfigK())
	insertLgArr(dst, impl.getLgCouponArrInts())
	insertEmptyFlag(dst, impl.IsEmpty())
	insertOooFlag(dst, impl.isOutOfOrder())
	insertMode(dst, impl.GetMode())
	insertEncoding(dst, impl.GetEncoding())
}

func insertHll(impl hllArrayI, dst []byte, compact bool) error {
	insertCommonHll(impl, dst, compact)
	copy(dst[hllByteArrStart:], impl.getHllByteArr())
	if impl.getAuxTable() == nil {
		return insertAuxCount(dst, 0)
	}
	return insertAux(impl, dst, compact)
}

func insertCommonHll(impl hllArrayI, dst []byte, compact bool) {
	insertPreInts(dst, impl.getPreInts())
	insertSerVer(dst)
	insertFamilyID(dst)
	insertLgK(dst, impl.GetLgConfigK())
	insertEmptyFlag(dst, impl.IsEmpty())
	insertCompactFlag(dst, compact)
	insertOooFlag(dst, impl.isOutOfOrder())
	insertCurMin(dst, impl.getCurMin())
	insertMode(dst, impl.GetMode())
	insertEncoding(dst, impl.GetEncoding())
	insertHipAccum(dst, impl.getHipAccum())
	insertKxQ0(dst, impl.getKxQ0())
	insertKxQ1(dst, impl.getKxQ1())
	insertNumAtCurMin(dst, impl.getNumAtCurMin())
	insertRebuildCurMinNumKxQFlag(dst, impl.isRebuildCurMinNumKxQFlag())
}

func insertAux(impl hllArrayI, dst []byte, compact bool) error {
	auxTable := impl.getAuxTable()
	auxCount := auxTable.getAuxCount()
	if err := insertAuxCount(dst, auxCount); err != nil {
		return err
	}
	insertLgArr(dst, auxTable.getLgAuxArrInts())

	auxStart := impl.getAuxStart()
	if !compact {
		writeIntsDense(dst, auxStart, auxTable.getAuxIntArr()[:1<<auxTable.getLgAuxArrInts()])
		return nil
	}
	cnt, err := writePairsCompact(dst, auxStart, auxTable.iterator())
	if err != nil {
		return err
	}
	if cnt != auxCount {
		return fmt.Errorf("corruption, should not happen: %d != %d", cnt, auxCount)
	}
	return nil
}
