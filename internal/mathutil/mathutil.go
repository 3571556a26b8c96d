// Package mathutil holds small overflow-aware and rounding helpers shared
// by the spill merge and pipeline packages.
package mathutil

import "math/bits"

// CeilDiv returns the number of y-sized chunks needed to cover x items,
// rounding up. Used to estimate the external-merge pass count ahead of
// running the loop that actually produces it. Returns 0 when y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// SafeAdd returns x+y and reports whether the addition overflowed a
// uint64.
func SafeAdd(x, y uint64) (sum uint64, overflow bool) {
	sum, carry := bits.Add64(x, y, 0)
	return sum, carry != 0
}
