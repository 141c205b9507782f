// Package paraperm implements the Sanders/Langr-style distributed random
// permutation: a uniformly random permutation of {0, ..., n-1} produced by
// a fixed-size group of cooperating ranks, each ending up holding a
// contiguous block of the result.
//
// The engine is a single stateless operation, Permute, executed
// identically (SPMD) on every rank of a transport.Group. It composes three
// phases, one package each: scatter (random routing), shuffle (local
// Fisher-Yates), and redistribute (re-blocking by canonical ownership).
package paraperm

import (
	"github.com/pkg/errors"

	"github.com/thejkane/distributed-number-permuter/layout"
	"github.com/thejkane/distributed-number-permuter/prng"
	"github.com/thejkane/distributed-number-permuter/redistribute"
	"github.com/thejkane/distributed-number-permuter/scatter"
	"github.com/thejkane/distributed-number-permuter/shuffle"
	"github.com/thejkane/distributed-number-permuter/transport"
)

// Permute runs one rank's share of the distributed permutation algorithm.
// Every rank in g must call Permute simultaneously with the same n;
// mismatched n across ranks is a programming error with undefined
// behaviour.
//
// On success the returned slice is this rank's contiguous segment of the
// global permutation: concatenating the results from rank 0 through
// g.Size()-1, in rank order, yields a uniformly random permutation of
// [0, n), assuming src draws independent, uniform values on every rank
// (see package prng).
func Permute(n uint64, g transport.Group, src prng.Source) ([]uint64, error) {
	self, err := layout.Compute(n, g.Size(), g.Rank())
	if err != nil {
		return nil, errors.Wrap(err, "permute: computing own block layout")
	}

	owned := make([]uint64, self.Count)
	for i := range owned {
		owned[i] = self.Pos + uint64(i)
	}

	received, err := scatter.Scatter(g, owned, src)
	if err != nil {
		return nil, errors.Wrap(err, "permute: phase 1 (random scatter)")
	}

	shuffle.FisherYates(received, src)

	out, err := redistribute.Redistribute(g, n, received, self)
	if err != nil {
		return nil, errors.Wrap(err, "permute: phase 3 (redistribution)")
	}

	return out, nil
}
