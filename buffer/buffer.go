// Package buffer provides an indexed, bounds-checked view over a region of
// bytes that may live either on the Go heap or in memory a caller owns
// directly. Package hll uses it only at the serialization boundary
// (WrapBuffer, ToBuffer and NewUpdatableBuffer), where a serialized image is
// read from or written into a Buffer's backing byte slice; the sketch
// payloads themselves keep their registers and coupons in plain slices.
package buffer

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// CapacityError is returned when a buffer is too small for the operation
// requested of it.
type CapacityError struct {
	Have int
	Need int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("buffer capacity %d is smaller than required %d", e.Have, e.Need)
}

// ModeError is returned when a mutating call is made against a buffer that
// was wrapped read-only.
type ModeError struct {
	Op string
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("buffer: write attempted through read-only wrap (%s)", e.Op)
}

// Buffer is indexed byte/short/int/long access over a region of memory,
// independent of whether that region is backed by a Go slice or by memory
// the caller owns (an "off-heap" image identified by a base address).
type Buffer interface {
	GetByte(offset int) byte
	PutByte(offset int, v byte) error

	GetShort(offset int) int16
	PutShort(offset int, v int16) error

	GetInt(offset int) int32
	PutInt(offset int, v int32) error

	GetLong(offset int) int64
	PutLong(offset int, v int64) error

	// GetCapacity returns the usable length of the buffer in bytes.
	GetCapacity() int

	// Clear zeroes length bytes starting at offset.
	Clear(offset, length int) error

	// CopyFrom bulk-copies src into the buffer starting at offset.
	CopyFrom(offset int, src []byte) error

	// Bytes exposes the buffer's backing storage directly. Callers that
	// mutate the returned slice mutate the buffer itself; no copy is made.
	Bytes() []byte

	// IsReadOnly reports whether mutating calls will fail.
	IsReadOnly() bool
}

// HeapBuffer is a Buffer backed by a conventional Go byte slice.
type HeapBuffer struct {
	arr      []byte
	readOnly bool
}

// NewHeapBuffer wraps arr for read/write access. The slice is not copied.
func NewHeapBuffer(arr []byte) *HeapBuffer {
	return &HeapBuffer{arr: arr}
}

// NewReadOnlyHeapBuffer wraps arr for read access only; any Put* or Clear
// call returns a ModeError.
func NewReadOnlyHeapBuffer(arr []byte) *HeapBuffer {
	return &HeapBuffer{arr: arr, readOnly: true}
}

func (b *HeapBuffer) GetByte(offset int) byte { return b.arr[offset] }

func (b *HeapBuffer) PutByte(offset int, v byte) error {
	if b.readOnly {
		return &ModeError{Op: "PutByte"}
	}
	b.arr[offset] = v
	return nil
}

func (b *HeapBuffer) GetShort(offset int) int16 {
	return int16(binary.LittleEndian.Uint16(b.arr[offset:]))
}

func (b *HeapBuffer) PutShort(offset int, v int16) error {
	if b.readOnly {
		return &ModeError{Op: "PutShort"}
	}
	binary.LittleEndian.PutUint16(b.arr[offset:], uint16(v))
	return nil
}

func (b *HeapBuffer) GetInt(offset int) int32 {
	return int32(binary.LittleEndian.Uint32(b.arr[offset:]))
}

func (b *HeapBuffer) PutInt(offset int, v int32) error {
	if b.readOnly {
		return &ModeError{Op: "PutInt"}
	}
	binary.LittleEndian.PutUint32(b.arr[offset:], uint32(v))
	return nil
}

func (b *HeapBuffer) GetLong(offset int) int64 {
	return int64(binary.LittleEndian.Uint64(b.arr[offset:]))
}

func (b *HeapBuffer) PutLong(offset int, v int64) error {
	if b.readOnly {
		return &ModeError{Op: "PutLong"}
	}
	binary.LittleEndian.PutUint64(b.arr[offset:], uint64(v))
	return nil
}

func (b *HeapBuffer) GetCapacity() int { return len(b.arr) }

func (b *HeapBuffer) Clear(offset, length int) error {
	if b.readOnly {
		return &ModeError{Op: "Clear"}
	}
	clear(b.arr[offset : offset+length])
	return nil
}

func (b *HeapBuffer) CopyFrom(offset int, src []byte) error {
	if b.readOnly {
		return &ModeError{Op: "CopyFrom"}
	}
	copy(b.arr[offset:], src)
	return nil
}

func (b *HeapBuffer) Bytes() []byte { return b.arr }

func (b *HeapBuffer) IsReadOnly() bool { return b.readOnly }

// OffHeapBuffer is a Buffer over a region of memory identified by a base
// pointer and length rather than a Go-managed slice. It mirrors the
// HeapBuffer implementation exactly; the only difference is how the backing
// slice is obtained, via unsafe.Slice over the caller-supplied base, the
// same zero-copy technique package hll already uses to view a string's
// bytes in UpdateString without an allocation.
type OffHeapBuffer struct {
	base     unsafe.Pointer
	length   int
	readOnly bool
}

// NewOffHeapBuffer wraps length bytes starting at base for read/write
// access. The caller retains ownership of the memory and must ensure it
// outlives the returned Buffer.
func NewOffHeapBuffer(base unsafe.Pointer, length int) *OffHeapBuffer {
	return &OffHeapBuffer{base: base, length: length}
}

// NewReadOnlyOffHeapBuffer wraps length bytes starting at base for read
// access only.
func NewReadOnlyOffHeapBuffer(base unsafe.Pointer, length int) *OffHeapBuffer {
	return &OffHeapBuffer{base: base, length: length, readOnly: true}
}

func (b *OffHeapBuffer) view() []byte {
	return unsafe.Slice((*byte)(b.base), b.length)
}

func (b *OffHeapBuffer) GetByte(offset int) byte { return b.view()[offset] }

func (b *OffHeapBuffer) PutByte(offset int, v byte) error {
	if b.readOnly {
		return &ModeError{Op: "PutByte"}
	}
	b.view()[offset] = v
	return nil
}

func (b *OffHeapBuffer) GetShort(offset int) int16 {
	return int16(binary.LittleEndian.Uint16(b.view()[offset:]))
}

func (b *OffHeapBuffer) PutShort(offset int, v int16) error {
	if b.readOnly {
		return &ModeError{Op: "PutShort"}
	}
	binary.LittleEndian.PutUint16(b.view()[offset:], uint16(v))
	return nil
}

func (b *OffHeapBuffer) GetInt(offset int) int32 {
	return int32(binary.LittleEndian.Uint32(b.view()[offset:]))
}

func (b *OffHeapBuffer) PutInt(offset int, v int32) error {
	if b.readOnly {
		return &ModeError{Op: "PutInt"}
	}
	binary.LittleEndian.PutUint32(b.view()[offset:], uint32(v))
	return nil
}

func (b *OffHeapBuffer) GetLong(offset int) int64 {
	return int64(binary.LittleEndian.Uint64(b.view()[offset:]))
}

func (b *OffHeapBuffer) PutLong(offset int, v int64) error {
	if b.readOnly {
		return &ModeError{Op: "PutLong"}
	}
	binary.LittleEndian.PutUint64(b.view()[offset:], uint64(v))
	return nil
}

func (b *OffHeapBuffer) GetCapacity() int { return b.length }

func (b *OffHeapBuffer) Clear(offset, length int) error {
	if b.readOnly {
		return &ModeError{Op: "Clear"}
	}
	clear(b.view()[offset : offset+length])
	return nil
}

func (b *OffHeapBuffer) CopyFrom(offset int, src []byte) error {
	if b.readOnly {
		return &ModeError{Op: "CopyFrom"}
	}
	copy(b.view()[offset:], src)
	return nil
}

func (b *OffHeapBuffer) Bytes() []byte { return b.view() }

func (b *OffHeapBuffer) IsReadOnly() bool { return b.readOnly }
