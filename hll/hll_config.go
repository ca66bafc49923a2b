package hll

type sketchConfig struct {
	lgConfigK  int
	tgtHllType Encoding
	mode       mode

	slotNoMask int // mask from lgConfigK to extract slotNo
}

func newSketchConfig(lgConfigK int, tgtHllType Encoding, mode mode) sketchConfig {
	return sketchConfig{
		lgConfigK:  lgConfigK,
		tgtHllType: tgtHllType,
		mode:       mode,
		slotNoMask: (1 << lgConfigK) - 1,
	}
}

func (c *sketchConfig) GetLgConfigK() int {
	return c.lgConfigK
}

func (c *sketchConfig) GetEncoding() Encoding {
	return c.tgtHllType
}

func (c *sketchConfig) GetMode() mode {
	return c.mode
}
