package block

/*
Carry-less multiplication in GF(2^128) with reduction modulo the
GCM polynomial x^128 + x^7 + x^2 + x + 1. Used for the universal
hash style correlation checks in OT extension and SPCOT.
*/

// clmul64 is a 64x64 bit carry-less multiply returning the 128 bit
// product as two words. The loop is constant time in a.
func clmul64(a, b uint64) (lo, hi uint64) {
	for i := uint(0); i < 64; i++ {
		mask := -(b >> i & 1)
		lo ^= (a << i) & mask
		hi ^= (a >> (64 - i)) & mask
	}
	return
}

// ClMul returns the 256 bit carry-less product of a and b as two
// blocks, without modular reduction.
func ClMul(a, b Block) (lo, hi Block) {
	p00lo, p00hi := clmul64(a.Lo, b.Lo)
	p01lo, p01hi := clmul64(a.Lo, b.Hi)
	p10lo, p10hi := clmul64(a.Hi, b.Lo)
	p11lo, p11hi := clmul64(a.Hi, b.Hi)

	lo.Lo = p00lo
	lo.Hi = p00hi ^ p01lo ^ p10lo
	hi.Lo = p01hi ^ p10hi ^ p11lo
	hi.Hi = p11hi
	return
}

// Reduce folds the 256 bit value (hi, lo) modulo
// x^128 + x^7 + x^2 + x + 1 into a single block.
// Word-by-word right-to-left folding: x^128 = x^7 + x^2 + x + 1.
func Reduce(lo, hi Block) Block {
	c := [4]uint64{lo.Lo, lo.Hi, hi.Lo, hi.Hi}
	for i := 3; i >= 2; i-- {
		t := c[i]
		c[i-2] ^= t<<7 ^ t<<2 ^ t<<1 ^ t
		c[i-1] ^= t>>57 ^ t>>62 ^ t>>63
	}
	return Block{Hi: c[1], Lo: c[0]}
}

// Mul returns the product of a and b in GF(2^128).
func Mul(a, b Block) Block {
	lo, hi := ClMul(a, b)
	return Reduce(lo, hi)
}

// ClMulSum computes the inner product of a and b without reduction,
// returning the 256 bit accumulator as two blocks. The correlation
// checks compare these halves directly. Panic if the slices do not
// have the same length.
func ClMulSum(a, b []Block) (lo, hi Block) {
	if len(a) != len(b) {
		panic(ErrBlockLengthMissMatch)
	}
	for i := range a {
		plo, phi := ClMul(a[i], b[i])
		lo.XorEq(plo)
		hi.XorEq(phi)
	}
	return lo, hi
}

// InnerProduct computes the GF(2^128) inner product of a and b with
// a single final reduction.
func InnerProduct(a, b []Block) Block {
	return Reduce(ClMulSum(a, b))
}

// PowerSeries fills dst with x, x^2, x^3, ... in GF(2^128). Used to
// amplify a single coin-toss challenge into one multiplier per row.
func PowerSeries(x Block, dst []Block) {
	acc := x
	for i := range dst {
		dst[i] = acc
		acc = Mul(acc, x)
	}
}
