package hll

import (
	"fmt"

	"github.com/cardcount/hllsketch/buffer"
)

// WrapBuffer heapifies a sketch from the serialized image held in buf. The
// same validation NewSketchFromSlice performs on a plain []byte applies
// here; WrapBuffer additionally honors buf's capacity so an undersized
// off-heap region is rejected before any preamble parsing is attempted,
// matching the buffer interface's capacity contract.
func WrapBuffer(buf buffer.Buffer, checkRebuild bool) (Sketch, error) {
	if buf.GetCapacity() < 8 {
		return nil, &buffer.CapacityError{Have: buf.GetCapacity(), Need: 8}
	}
	return NewSketchFromSlice(buf.Bytes(), checkRebuild)
}

// ToBuffer serializes sk's compact form into buf, which must not be
// read-only and must have room for the compact image; any capacity beyond
// the image is zeroed.
func ToBuffer(sk Sketch, buf buffer.Buffer) error {
	if buf.IsReadOnly() {
		return &buffer.ModeError{Op: "ToBuffer"}
	}
	out, err := sk.ToCompactSlice()
	if err != nil {
		return err
	}
	if buf.GetCapacity() < len(out) {
		return &buffer.CapacityError{Have: buf.GetCapacity(), Need: len(out)}
	}
	if err := buf.CopyFrom(0, out); err != nil {
		return err
	}
	if len(out) < buf.GetCapacity() {
		if err := buf.Clear(len(out), buf.GetCapacity()-len(out)); err != nil {
			return err
		}
	}
	return nil
}

// NewUpdatableBuffer allocates a heap buffer sized to hold an updatable
// sketch for the given configuration and writes a fresh empty sketch's
// updatable image into it, so the returned buffer can be wrapped again
// with WrapBuffer and mutated by re-heapifying after each update.
func NewUpdatableBuffer(lgConfigK int, tgtHllType Encoding) (buffer.Buffer, error) {
	sk, err := NewSketch(lgConfigK, tgtHllType)
	if err != nil {
		return nil, err
	}
	need := getMaxUpdatableSerializationBytes(lgConfigK, tgtHllType)
	out, err := sk.ToUpdatableSlice()
	if err != nil {
		return nil, err
	}
	if len(out) > need {
		return nil, fmt.Errorf("updatable image (%d bytes) exceeds computed capacity (%d bytes)", len(out), need)
	}
	arr := make([]byte, need)
	copy(arr, out)
	return buffer.NewHeapBuffer(arr), nil
}
