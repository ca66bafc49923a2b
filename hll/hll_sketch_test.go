package hll

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	javaPath = "../serialization_test_data/java_generated_files"
	cppPath  = "../serialization_test_data/cpp_generated_files"
	goPath   = "../serialization_test_data/go_generated_files"
)

func TestMisc(t *testing.T) {
	hll, err := NewSketch(10, EncodingHll4)
	assert.NoError(t, err)
	assert.True(t, hll.IsEstimationMode())
	err = hll.Reset()
	assert.NoError(t, err)
	assert.Equal(t, serVer, hll.GetSerializationVersion())
}

func TestUpdateTypes(t *testing.T) {
	checkUpdateType(t, EncodingHll4)
	checkUpdateType(t, EncodingHll6)
	checkUpdateType(t, EncodingHll8)
}

func checkUpdateType(t *testing.T, tgtHllType Encoding) {
	hll, err := NewSketch(11, tgtHllType)
	assert.NoError(t, err)

	hll.UpdateSlice(nil)
	hll.UpdateSlice(make([]byte, 0))
	hll.UpdateSlice([]byte{1, 2, 3})
	hll.UpdateString("")
	hll.UpdateString("abc")

	hll.UpdateInt64(0)
	hll.UpdateInt64(1)
	hll.UpdateInt64(-1)

	hll.UpdateUInt64(0)
	hll.UpdateUInt64(1)
}

func TestCopies(t *testing.T) {
	checkCopy(t, 14, EncodingHll4)
	checkCopy(t, 8, EncodingHll6)
	checkCopy(t, 8, EncodingHll8)
}

func checkCopy(t *testing.T, lgK int, tgtHllType Encoding) {
	sk, err := NewSketch(lgK, tgtHllType)
	assert.NoError(t, err)
	for i := 0; i < 7; i++ {
		sk.UpdateInt64(int64(i))
	}
	assert.Equal(t, modeList, sk.GetMode())

	skCopy, err := sk.Copy()
	assert.NoError(t, err)
	assert.Equal(t, modeList, skCopy.GetMode())

	impl1 := sk.(*sketchState).sketch
	impl2 := skCopy.(*sketchState).sketch

	assert.Equal(t, impl1.(*listPayload).couponCount, impl2.(*listPayload).couponCount)

	est1, _ := impl1.GetEstimate()
	est2, _ := impl2.GetEstimate()
	assert.Equal(t, est1, est2)
	assert.False(t, impl1 == impl2)

	for i := 7; i < 24; i++ {
		sk.UpdateInt64(int64(i))
	}

	assert.Equal(t, modeSet, sk.GetMode())
	skCopy, err = sk.Copy()
	assert.NoError(t, err)
	assert.Equal(t, modeSet, skCopy.GetMode())

	impl1 = sk.(*sketchState).sketch
	impl2 = skCopy.(*sketchState).sketch

	assert.Equal(t, impl1.(*setPayload).couponCount, impl2.(*setPayload).couponCount)
	est1, _ = impl1.GetEstimate()
	est2, _ = impl2.GetEstimate()
	assert.Equal(t, est1, est2)
	assert.False(t, impl1 == impl2)

	u := 25
	if tgtHllType == EncodingHll4 {
		u = 100000
	}
	for i := 24; i < u; i++ {
		sk.UpdateInt64(int64(i))
	}

	assert.Equal(t, modeHll, sk.GetMode())
	skCopy, err = sk.Copy()
	assert.NoError(t, err)
	assert.Equal(t, modeHll, skCopy.GetMode())

	impl1 = sk.(*sketchState).sketch
	impl2 = skCopy.(*sketchState).sketch

	est1, _ = impl1.GetEstimate()
	est2, _ = impl2.GetEstimate()
	assert.Equal(t, est1, est2)
	assert.False(t, impl1 == impl2)
}

func TestCopyAs(t *testing.T) {
	checkCopyAs(t, EncodingHll4, EncodingHll4)
	checkCopyAs(t, EncodingHll4, EncodingHll6)
	checkCopyAs(t, EncodingHll4, EncodingHll8)
	checkCopyAs(t, EncodingHll6, EncodingHll4)
	checkCopyAs(t, EncodingHll6, EncodingHll6)
	checkCopyAs(t, EncodingHll6, EncodingHll8)
	checkCopyAs(t, EncodingHll8, EncodingHll4)
	checkCopyAs(t, EncodingHll8, EncodingHll6)
	checkCopyAs(t, EncodingHll8, EncodingHll8)
}

func checkCopyAs(t *testing.T, srcType Encoding, dstType Encoding) {
	var (
		lgK  = 8
		n1   = 7
		n2   = 24
		n3   = 1000
		base = 0
	)

	src, err := NewSketch(lgK, srcType)
	assert.NoError(t, err)
	for i := 0; i < n1; i++ {
		src.UpdateInt64(int64(i + base))
	}
	dst, err := src.CopyAs(dstType)
	assert.NoError(t, err)
	srcEst, _ := src.GetEstimate()
	dstEst, _ := dst.GetEstimate()
	assert.Equal(t, srcEst, dstEst)

	for i := n1; i < n2; i++ {
		src.UpdateInt64(int64(i + base))
	}
	dst, err = src.CopyAs(dstType)
	assert.NoError(t, err)
	srcEst, _ = src.GetEstimate()
	dstEst, _ = dst.GetEstimate()
	assert.Equal(t, srcEst, dstEst)

	for i := n2; i < n3; i++ {
		src.UpdateInt64(int64(i + base))
	}
	dst, err = src.CopyAs(dstType)
	assert.NoError(t, err)
	srcEst, _ = src.GetEstimate()
	dstEst, _ = dst.GetEstimate()
	assert.Equal(t, srcEst, dstEst)
}

func TestNewHLLDataSketchUint(t *testing.T) {
	tgts := []Encoding{EncodingHll4, EncodingHll6, EncodingHll8}
	ns := []int{1, 10, 100, 1000, 10000, 100000, 1000000}
	for _, tgt := range tgts {
		hll, err := NewSketch(11, tgt)
		assert.NoError(t, err)
		for _, n := range ns {
			for i := 0; i < n; i++ {
				hll.UpdateUInt64(uint64(i))
			}
			est, _ := hll.GetEstimate()
			assert.InDelta(t, n, est, float64(n)*0.03)
		}
	}
}

func TestNewHLLDataSketchString(t *testing.T) {
	tgts := []Encoding{EncodingHll4, EncodingHll6, EncodingHll8}
	ns := []int{1, 10, 100, 1000, 10000, 100000, 1000000}
	for _, tgt := range tgts {
		hll, err := NewSketch(11, tgt)
		assert.NoError(t, err)
		for _, n := range ns {
			for i := 0; i < n; i++ {
				hll.UpdateString(strconv.Itoa(i))
			}
			est, _ := hll.GetEstimate()
			assert.InDelta(t, n, est, float64(n)*0.03)
		}
	}
}

func TestHLLDataSketchT(b *testing.T) {
	hll, err := NewSketch(21, EncodingHll4)
	assert.NoError(b, err)
	for i := 0; i < 1000000; i++ {
		hll.UpdateUInt64(uint64(i))
	}
	est, _ := hll.GetEstimate()
	assert.InDelta(b, 1000000, est, float64(1000000)*0.03)

}

func BenchmarkHLLDataSketch(b *testing.B) {
	// HLL uint64 BenchMark
	b.Run("lgK4 HLL4 uint", func(b *testing.B) {
		hll, _ := NewSketch(4, EncodingHll4)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})
	b.Run("lgK16 HLL4 uint", func(b *testing.B) {
		hll, _ := NewSketch(16, EncodingHll4)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})
	b.Run("lgK21 HLL4 uint", func(b *testing.B) {
		hll, _ := NewSketch(21, EncodingHll4)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})

	b.Run("lgK4 HLL6 uint", func(b *testing.B) {
		hll, _ := NewSketch(4, EncodingHll6)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})
	b.Run("lgK16 HLL6 uint", func(b *testing.B) {
		hll, _ := NewSketch(16, EncodingHll6)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})
	b.Run("lgK21 HLL6 uint", func(b *testing.B) {
		hll, _ := NewSketch(21, EncodingHll6)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})

	b.Run("lgK4 HLL8 uint", func(b *testing.B) {
		hll, _ := NewSketch(4, EncodingHll8)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})
	b.Run("lgK16 HLL8 uint", func(b *testing.B) {
		hll, _ := NewSketch(16, EncodingHll8)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})
	b.Run("lgK21 HLL8 uint", func(b *testing.B) {
		hll, _ := NewSketch(21, EncodingHll8)
		for i := 0; i < b.N; i++ {
			hll.UpdateUInt64(uint64(i))
		}
	})

	// HLL Slice BenchMark
	bs := make([]byte, 8)
	b.Run("lgK4 HLL4 slice", func(b *testing.B) {
		hll, _ := NewSketch(4, EncodingHll4)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})
	b.Run("lgK16 HLL4 slice", func(b *testing.B) {
		hll, _ := NewSketch(16, EncodingHll4)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})
	b.Run("lgK21 HLL4 slice", func(b *testing.B) {
		hll, _ := NewSketch(21, EncodingHll4)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})

	b.Run("lgK4 HLL6 slice", func(b *testing.B) {
		hll, _ := NewSketch(4, EncodingHll6)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})
	b.Run("lgK16 HLL6 slice", func(b *testing.B) {
		hll, _ := NewSketch(16, EncodingHll6)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})
	b.Run("lgK21 HLL6 slice", func(b *testing.B) {
		hll, _ := NewSketch(21, EncodingHll6)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})

	b.Run("lgK4 HLL8 slice", func(b *testing.B) {
		hll, _ := NewSketch(4, EncodingHll8)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})
	b.Run("lgK16 HLL8 slice", func(b *testing.B) {
		hll, _ := NewSketch(16, EncodingHll8)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})
	b.Run("lgK21 HLL8 slice", func(b *testing.B) {
		hll, _ := NewSketch(21, EncodingHll8)
		for i := 0; i < b.N; i++ {
			binary.LittleEndian.PutUint64(bs, uint64(i))
			hll.UpdateSlice(bs)
		}
	})

	// Union benchmark
	b.Run("lgK4 HLL8 union", func(b *testing.B) {
		hll, _ := NewSketch(4, EncodingHll8)
		union, _ := NewUnion(4)
		for i := 0; i < b.N; i++ {
			hll.UpdateSlice(bs)
			union.UpdateSketch(hll)
		}
	})
	b.Run("lgK16 HLL8 union", func(b *testing.B) {
		hll, _ := NewSketch(16, EncodingHll8)
		union, _ := NewUnion(16)
		for i := 0; i < b.N; i++ {
			hll.UpdateSlice(bs)
			union.UpdateSketch(hll)
		}
	})
	b.Run("lgK21 HLL8 union", func(b *testing.B) {
		hll, _ := NewSketch(21, EncodingHll8)
		union, _ := NewUnion(21)
		for i := 0; i < b.N; i++ {
			hll.UpdateSlice(bs)
			union.UpdateSketch(hll)
		}
	})

}

func BenchmarkHLLDataSketchWithEstimate(b *testing.B) {
	hll, err := NewSketch(11, EncodingHll8)
	assert.NoError(b, err)
	for i := 0; i < b.N; i++ {
		hll.UpdateString(strconv.Itoa(i))
	}
	est, _ := hll.GetEstimate()

	estimate := int64(est)
	fmt.Printf("Estimated cardinality: %d (true: %d) (error: %f)\n ", estimate, b.N, float64(int64(b.N)-estimate)*100/float64(b.N))
}

// Test the hard case for (shiftedNewValue >= AUX_TOKEN) && (rawStoredOldNibble = AUX_TOKEN)
func TestHLL4RawStoredOldNibbleAndShiftedNewValueAuxToken(t *testing.T) {
	hll, _ := NewSketch(21, EncodingHll4)
	for i := uint64(0); i < 29197004; i++ {
		hll.UpdateUInt64(i)
	}
	hll.UpdateUInt64(29197004)
}
