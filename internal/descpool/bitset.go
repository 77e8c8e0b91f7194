package descpool

import "math/bits"

// bitset is a growable set of small non-negative integers.
type bitset []uint64

func (b *bitset) set(i int) {
	w := i / 64
	for len(*b) <= w {
		*b = append(*b, 0)
	}
	(*b)[w] |= 1 << (uint(i) % 64)
}

func (b *bitset) clear(i int) {
	w := i / 64
	if w < len(*b) {
		(*b)[w] &^= 1 << (uint(i) % 64)
	}
}

func (b bitset) has(i int) bool {
	w := i / 64
	return w < len(b) && b[w]&(1<<(uint(i)%64)) != 0
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// intersectInto stores b AND o in dst, reusing its storage.
func (b bitset) intersectInto(dst bitset, o bitset) bitset {
	n := min(len(b), len(o))
	dst = dst[:0]
	for i := 0; i < n; i++ {
		dst = append(dst, b[i]&o[i])
	}
	return dst
}

// each calls fn for every member in ascending order until fn returns false.
func (b bitset) each(fn func(i int) bool) {
	for wi, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			if !fn(wi*64 + tz) {
				return
			}
			w &^= 1 << uint(tz)
		}
	}
}
