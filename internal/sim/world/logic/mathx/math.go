package mathx

import "math"

// DefaultSafeMargin keeps chunk coordinates well away from the int32 limits so
// repeated relative offsets never wrap two distant places onto one coordinate.
const DefaultSafeMargin = math.MaxInt32 / 64

// SafeAdd returns a+d clamped to [MinInt32+margin, MaxInt32-margin].
func SafeAdd(a, d, margin int32) int32 {
	if margin < 0 {
		margin = 0
	}
	lo := int64(math.MinInt32) + int64(margin)
	hi := int64(math.MaxInt32) - int64(margin)
	v := int64(a) + int64(d)
	if v < lo {
		return int32(lo)
	}
	if v > hi {
		return int32(hi)
	}
	return int32(v)
}

// SafeSub returns a-d clamped like SafeAdd.
func SafeSub(a, d, margin int32) int32 {
	if margin < 0 {
		margin = 0
	}
	lo := int64(math.MinInt32) + int64(margin)
	hi := int64(math.MaxInt32) - int64(margin)
	v := int64(a) - int64(d)
	if v < lo {
		return int32(lo)
	}
	if v > hi {
		return int32(hi)
	}
	return int32(v)
}

// RoundToInt32 rounds to the nearest integer with ties going up, saturating at the int32 range.
func RoundToInt32(v float32) int32 {
	f := math.Floor(float64(v) + 0.5)
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

// ChunkSlot maps a chunk coordinate onto a table of the given size.
func ChunkSlot(x, y, z int32, size int) int {
	h := 19*int64(x) + 7*int64(y) + 3*int64(z)
	m := h % int64(size)
	if m < 0 {
		m += int64(size)
	}
	return int(m)
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// NextPow2 returns the smallest power of two >= n (and >= 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
