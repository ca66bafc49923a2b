package buffer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapBufferReadWrite(t *testing.T) {
	arr := make([]byte, 32)
	b := NewHeapBuffer(arr)

	require.NoError(t, b.PutByte(0, 0xAB))
	assert.Equal(t, byte(0xAB), b.GetByte(0))

	require.NoError(t, b.PutShort(2, -7))
	assert.Equal(t, int16(-7), b.GetShort(2))

	require.NoError(t, b.PutInt(4, 123456))
	assert.Equal(t, int32(123456), b.GetInt(4))

	require.NoError(t, b.PutLong(8, -9876543210))
	assert.Equal(t, int64(-9876543210), b.GetLong(8))

	assert.Equal(t, 32, b.GetCapacity())
}

func TestHeapBufferClearAndCopy(t *testing.T) {
	arr := []byte{1, 2, 3, 4, 5, 6}
	b := NewHeapBuffer(arr)
	require.NoError(t, b.CopyFrom(1, []byte{9, 9}))
	assert.Equal(t, []byte{1, 9, 9, 4, 5, 6}, b.Bytes())

	require.NoError(t, b.Clear(0, 2))
	assert.Equal(t, []byte{0, 0, 9, 4, 5, 6}, b.Bytes())
}

func TestHeapBufferReadOnlyRejectsWrites(t *testing.T) {
	arr := []byte{1, 2, 3, 4}
	b := NewReadOnlyHeapBuffer(arr)

	assert.True(t, b.IsReadOnly())
	assert.Error(t, b.PutByte(0, 1))
	assert.Error(t, b.PutShort(0, 1))
	assert.Error(t, b.PutInt(0, 1))
	assert.Error(t, b.PutLong(0, 1))
	assert.Error(t, b.Clear(0, 1))
	assert.Error(t, b.CopyFrom(0, []byte{1}))

	var modeErr *ModeError
	assert.ErrorAs(t, b.PutByte(0, 1), &modeErr)
}

func TestOffHeapBufferMirrorsHeapBuffer(t *testing.T) {
	arr := make([]byte, 16)
	off := NewOffHeapBuffer(unsafe.Pointer(&arr[0]), len(arr))

	require.NoError(t, off.PutInt(0, 42))
	assert.Equal(t, int32(42), off.GetInt(0))
	// writes through the off-heap view are visible in the backing array,
	// since both alias the same memory.
	assert.Equal(t, int32(42), int32(arr[0])|int32(arr[1])<<8|int32(arr[2])<<16|int32(arr[3])<<24)

	require.NoError(t, off.PutByte(15, 0xFF))
	assert.Equal(t, byte(0xFF), arr[15])
}

func TestOffHeapBufferReadOnlyRejectsWrites(t *testing.T) {
	arr := make([]byte, 8)
	off := NewReadOnlyOffHeapBuffer(unsafe.Pointer(&arr[0]), len(arr))
	assert.True(t, off.IsReadOnly())
	assert.Error(t, off.PutByte(0, 1))
}

func TestCapacityError(t *testing.T) {
	err := &CapacityError{Have: 4, Need: 40}
	assert.Contains(t, err.Error(), "40")
	assert.Contains(t, err.Error(), "4")
}
