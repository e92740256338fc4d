package cube

// MortonKey interleaves the bits of the cube's minimum corner expressed at
// MaxLevel. Sorting leaves by key reproduces the depth-first child order of
// the tree.
func (c Coordinates) MortonKey() uint64 {
	shift := MaxLevel - int(c.Level)
	if shift < 0 {
		shift = 0
	}
	x := uint32(c.I) << shift
	y := uint32(c.J) << shift
	z := uint32(c.K) << shift
	return splitBy3(x) | splitBy3(y)<<1 | splitBy3(z)<<2
}

// FromMortonKey inverts MortonKey for a cube at level l
func FromMortonKey(key uint64, l uint8) Coordinates {
	shift := MaxLevel - int(l)
	return Coordinates{
		I:     int32(compact1By2(key) >> shift),
		J:     int32(compact1By2(key>>1) >> shift),
		K:     int32(compact1By2(key>>2) >> shift),
		Level: l,
	}
}

// splitBy3 spreads the low 21 bits of v two zeros apart
func splitBy3(v uint32) uint64 {
	x := uint64(v) & 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

func compact1By2(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0x1fffff
	return x
}
