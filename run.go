package paraperm

import (
	"golang.org/x/sync/errgroup"

	"github.com/thejkane/distributed-number-permuter/prng"
	"github.com/thejkane/distributed-number-permuter/transport"
)

// RunAll drives Permute to completion on every rank of an already
// constructed process group concurrently, returning each rank's segment
// indexed by rank, or the first error encountered on any rank.
//
// It is a bare library convenience for callers (tests, or a future host)
// that already have a transport.Group and one prng.Source per rank; it
// performs no process spawning, configuration, or logging of its own.
func RunAll(n uint64, groups []transport.Group, sources []prng.Source) ([][]uint64, error) {
	results := make([][]uint64, len(groups))

	var eg errgroup.Group
	for i := range groups {
		i := i
		eg.Go(func() error {
			out, err := Permute(n, groups[i], sources[i])
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
