package hll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositeEst(t *testing.T) {
	testComposite(t, 4, EncodingHll4, 1000)
	testComposite(t, 5, EncodingHll4, 1000)
	testComposite(t, 6, EncodingHll4, 1000)
	testComposite(t, 13, EncodingHll4, 10000)

	testComposite(t, 4, EncodingHll6, 1000)
	testComposite(t, 5, EncodingHll6, 1000)
	testComposite(t, 6, EncodingHll6, 1000)
	testComposite(t, 13, EncodingHll6, 10000)

	testComposite(t, 4, EncodingHll8, 1000)
	testComposite(t, 5, EncodingHll8, 1000)
	testComposite(t, 6, EncodingHll8, 1000)
	testComposite(t, 13, EncodingHll8, 10000)
}

func testComposite(t *testing.T, lgK int, tgtHllType Encoding, n int) {
	u, err := NewUnion(lgK)
	assert.NoError(t, err)
	sk, err := NewSketch(lgK, tgtHllType)
	assert.NoError(t, err)

	for i := 0; i < n; i++ {
		assert.NoError(t, u.UpdateInt64(int64(i)))
		assert.NoError(t, sk.UpdateInt64(int64(i)))
	}

	err = u.UpdateSketch(sk)
	assert.NoError(t, err)
	res, err := u.GetResult(tgtHllType)
	assert.NoError(t, err)
	_, err = res.GetCompositeEstimate()
	assert.NoError(t, err)

}

func TestBigHipUpdates(t *testing.T) {
	sk, err := NewSketch(13, EncodingHll8)
	assert.NoError(t, err)

	for i := 0; i < 10000; i++ {
		assert.NoError(t, sk.UpdateInt64(int64(i)))
	}
}

func TestToArraySliceDeserialize(t *testing.T) {
	lgK := 4
	u := 8
	toArraySliceDeserialize(t, lgK, EncodingHll4, u)
	toArraySliceDeserialize(t, lgK, EncodingHll6, u)
	toArraySliceDeserialize(t, lgK, EncodingHll8, u)

	lgK = 16
	u = (((1 << (lgK - 3)) * 3) / 4) + 100
	toArraySliceDeserialize(t, lgK, EncodingHll4, u)
	toArraySliceDeserialize(t, lgK, EncodingHll6, u)
	toArraySliceDeserialize(t, lgK, EncodingHll8, u)

	lgK = 21
	u = (((1 << (lgK - 3)) * 3) / 4) + 1000
	toArraySliceDeserialize(t, lgK, EncodingHll4, u)
	toArraySliceDeserialize(t, lgK, EncodingHll6, u)
	toArraySliceDeserialize(t, lgK, EncodingHll8, u)
}

func toArraySliceDeserialize(t *testing.T, lgK int, tgtHllType Encoding, u int) {
	sk1, err := NewSketch(lgK, tgtHllType)
	assert.NoError(t, err)

	for i := 0; i < u; i++ {
		assert.NoError(t, sk1.UpdateInt64(int64(i)))
	}
	_, isArray := sk1.(*sketchState).sketch.(hllArrayI)
	assert.True(t, isArray)

	// Update
	est1, err := sk1.GetEstimate()
	assert.NoError(t, err)
	assert.InDelta(t, est1, u, float64(u)*.03)
	est, err := sk1.(*sketchState).GetHipEstimate()
	assert.NoError(t, err)
	assert.Equal(t, est, est1, 0.0)

	// misc
	sk1.(*sketchState).putRebuildCurMinNumKxQFlag(true)
	sk1.(*sketchState).putRebuildCurMinNumKxQFlag(false)

	sl1, err := sk1.ToCompactSlice()
	assert.NoError(t, err)
	sk2, e := NewSketchFromSlice(sl1, true)
	assert.NoError(t, e)
	est2, err := sk2.GetEstimate()
	assert.NoError(t, err)
	assert.Equal(t, est2, est1, 0.0)

	err = sk1.Reset()
	assert.NoError(t, err)
	est, err = sk1.GetEstimate()
	assert.NoError(t, err)
	assert.Equal(t, est, 0.0, 0.0)
}
