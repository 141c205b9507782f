// Package scatter implements the first phase of the permutation engine:
// routing every locally owned global index to a uniformly random rank via
// a single all-to-all-variable exchange.
package scatter

import (
	"github.com/pkg/errors"

	"github.com/thejkane/distributed-number-permuter/prng"
	"github.com/thejkane/distributed-number-permuter/transport"
)

// Scatter routes every index in owned to a uniformly random destination
// rank and returns the multiset this rank received, in arbitrary order.
//
// Destinations are bucketed in O(len(owned) + P) time (a counting pass, a
// prefix sum, then a placement pass) rather than sorted, which avoids ever needing a sentinel value to mark a bucket
// boundary.
func Scatter(g transport.Group, owned []uint64, src prng.Source) ([]uint64, error) {
	p := g.Size()

	sendCounts := make([]int, p)
	dest := make([]int, len(owned))
	for k := range owned {
		d := int(src.UniformInt(0, int64(p-1)))
		dest[k] = d
		sendCounts[d]++
	}

	sdispls := prefixSum(sendCounts)

	cursor := append([]int(nil), sdispls...)
	sendBuf := make([]uint64, len(owned))
	for k, v := range owned {
		d := dest[k]
		sendBuf[cursor[d]] = v
		cursor[d]++
	}

	recvCounts, err := g.AllToAll(sendCounts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter: exchanging send counts")
	}
	rdispls := prefixSum(recvCounts)

	recvBuf, err := g.AllToAllv(sendBuf, sendCounts, sdispls, recvCounts, rdispls)
	if err != nil {
		return nil, errors.Wrap(err, "scatter: exchanging routed values")
	}
	return recvBuf, nil
}

// prefixSum returns the exclusive prefix sums of counts: result[i] is the
// sum of counts[0:i].
func prefixSum(counts []int) []int {
	out := make([]int, len(counts))
	sum := 0
	for i, c := range counts {
		out[i] = sum
		sum += c
	}
	return out
}
