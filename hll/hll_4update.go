package hll

import (
	"fmt"
)

// internalHll4Update applies a single coupon's decoded value to slotNo of h. HLL only ever
// keeps the max value a slot has seen, so this is a no-op whenever newValue doesn't exceed
// what's already provably stored there (a nibble never under-reports: its stored value plus
// curMin is always a valid lower bound on the true register value, even before an aux lookup).
func internalHll4Update(h *hll4Payload, slotNo int, newValue int) error {
	rawNibble := h.getNibble(slotNo)
	lowerBound := rawNibble + h.curMin
	if newValue <= lowerBound {
		return nil
	}

	oldValue, err := resolveHll4OldValue(h, slotNo, rawNibble, lowerBound)
	if err != nil {
		return err
	}
	if rawNibble == auxToken && newValue <= oldValue {
		return nil
	}

	if err := h.hipAndKxQIncrementalUpdate(oldValue, newValue); err != nil {
		return err
	}
	if err := storeHll4Value(h, slotNo, rawNibble, newValue); err != nil {
		return err
	}

	if oldValue != h.curMin {
		return nil
	}
	if h.numAtCurMin < 1 {
		return fmt.Errorf("h.numAtCurMin < 1")
	}
	h.numAtCurMin--
	for h.numAtCurMin == 0 {
		if err := shiftToBiggerCurMin(h); err != nil {
			return err
		}
	}
	return nil
}

// resolveHll4OldValue returns the value currently provably stored at slotNo: either an
// auxiliary-table lookup (if the nibble already reads auxToken) or the nibble's own lower
// bound. A nibble of auxToken with no aux table present is always a corrupt state.
func resolveHll4OldValue(h *hll4Payload, slotNo int, rawNibble int, lowerBound int) (int, error) {
	if rawNibble != auxToken {
		return lowerBound, nil
	}
	if h.auxTable == nil {
		return 0, fmt.Errorf("auxTable must already exist")
	}
	return h.auxTable.mustFindValueFor(slotNo)
}

// storeHll4Value writes newValue into slotNo, given the nibble that was there before the
// caller already confirmed an update is needed. Four combinations of (old nibble is auxToken,
// new shifted value needs auxToken) are possible; three can actually occur here. The fourth
// (old nibble is auxToken, new shifted value below it) can't, since newValue > oldValue and
// curMin hasn't moved yet, so a previously-exceptional slot can only stay exceptional (its
// shifted value can't un-saturate by growing further).
func storeHll4Value(h *hll4Payload, slotNo int, rawNibble int, newValue int) error {
	shifted := newValue - h.curMin
	if shifted < 0 {
		return fmt.Errorf("shifedNewValue < 0")
	}

	if rawNibble == auxToken {
		if shifted >= auxToken {
			return h.auxTable.mustReplace(slotNo, newValue)
		}
		return nil
	}

	if shifted < auxToken {
		h.putNibble(slotNo, byte(shifted))
		return nil
	}
	h.putNibble(slotNo, auxToken)
	if h.auxTable == nil {
		h.auxTable = h.getNewAuxTable()
	}
	return h.auxTable.mustAdd(slotNo, newValue)
}

// shiftToBiggerCurMin raises curMin by one when the last slot at the old curMin has just been
// overwritten. It only ever touches curMin, numAtCurMin, the nibble array, and the auxiliary
// table — hipAccum/kxq0/kxq1 are untouched, since this is a re-encoding of already-recorded
// register values, not a new observation. It assumes every nibble is already in 1..15 (0 would
// mean a slot at curMin-1 was never caught by the loop above, a corrupt state) and that an
// auxTable exists if any nibble already reads auxToken.
func shiftToBiggerCurMin(h *hll4Payload) error {
	newCurMin := h.curMin + 1
	configK := 1 << h.lgConfigK

	numAtNewCurMin, numAuxTokens, err := decrementHll4Nibbles(h, configK)
	if err != nil {
		return err
	}

	newAuxTable, numAuxTokens, err := rebuildHll4AuxTable(h, newCurMin, configK-1, numAuxTokens)
	if err != nil {
		return err
	}
	if newAuxTable != nil && newAuxTable.getAuxCount() != numAuxTokens {
		return fmt.Errorf("newAuxMap.getAuxCount() != numAuxTokens")
	}

	h.auxTable = newAuxTable
	h.curMin = newCurMin
	h.numAtCurMin = numAtNewCurMin
	return nil
}

// decrementHll4Nibbles subtracts one from every non-exceptional nibble (an exceptional one is
// left as-is; its real value lives in the aux table and is handled separately) and counts how
// many land exactly on the new curMin, plus how many remain exceptional.
func decrementHll4Nibbles(h *hll4Payload, configK int) (numAtNewCurMin int, numAuxTokens int, err error) {
	for i := 0; i < configK; i++ {
		nib := h.getNibble(i)
		if nib == 0 {
			return 0, 0, fmt.Errorf("array slots cannot be 0 at this point")
		}
		if nib < auxToken {
			nib--
			h.putNibble(i, byte(nib))
			if nib == 0 {
				numAtNewCurMin++
			}
			continue
		}
		numAuxTokens++
		if h.auxTable == nil {
			return 0, 0, fmt.Errorf("auxTable cannot be nil at this point")
		}
	}
	return numAtNewCurMin, numAuxTokens, nil
}

// rebuildHll4AuxTable replays the old auxiliary table's entries against the new curMin: an
// entry that now fits back into a plain nibble (its shifted value must land exactly at 14,
// the one value a shift-by-one can produce that's still below auxToken) is folded back into
// the nibble array and dropped; every other entry is carried into a freshly built table.
func rebuildHll4AuxTable(h *hll4Payload, newCurMin int, slotMask int, numAuxTokens int) (*auxTable, int, error) {
	old := h.auxTable
	if old == nil {
		if numAuxTokens != 0 {
			return nil, 0, fmt.Errorf("numAuxTokens != 0")
		}
		return nil, 0, nil
	}

	var fresh *auxTable
	itr := old.iterator()
	for itr.nextValid() {
		slotNo := itr.getKey() & slotMask
		actualValue, err := itr.getValue()
		if err != nil {
			return nil, 0, err
		}
		shifted := actualValue - newCurMin
		if shifted < 0 {
			return nil, 0, fmt.Errorf("newShiftedVal < 0")
		}
		if h.getNibble(slotNo) != auxToken {
			return nil, 0, fmt.Errorf("Array slot != AUX_TOKEN %d", h.getNibble(slotNo))
		}

		if shifted < auxToken {
			if shifted != 14 {
				return nil, 0, fmt.Errorf("newShiftedVal != 14")
			}
			h.putNibble(slotNo, byte(shifted))
			numAuxTokens--
			continue
		}
		if fresh == nil {
			fresh = h.getNewAuxTable()
		}
		if err := fresh.mustAdd(slotNo, actualValue); err != nil {
			return nil, 0, err
		}
	}
	return fresh, numAuxTokens, nil
}
