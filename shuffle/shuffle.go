// Package shuffle implements the second phase of the permutation engine:
// an in-place Fisher-Yates shuffle of the multiset each rank received
// during scatter. It is purely local and performs no communication.
package shuffle

import "github.com/thejkane/distributed-number-permuter/prng"

// FisherYates shuffles buf in place. A buffer of length 0 or 1 is left
// unchanged: the loop bound is signed, so it simply never runs instead of
// underflowing.
func FisherYates(buf []uint64, src prng.Source) {
	for k := len(buf) - 1; k >= 1; k-- {
		l := src.UniformInt(0, int64(k))
		buf[k], buf[l] = buf[l], buf[k]
	}
}
