package redistribute_test

import (
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"golang.org/x/sync/errgroup"

	"github.com/thejkane/distributed-number-permuter/layout"
	"github.com/thejkane/distributed-number-permuter/redistribute"
	"github.com/thejkane/distributed-number-permuter/transport"
)

// run splits a globally-ordered sequence seq of length n into P
// arbitrarily-sized chunks (the post-shuffle local buffers Phase 2 would
// have produced), runs Redistribute concurrently on every rank, and
// returns the outputs indexed by rank.
func run(n uint64, p int, seq []uint64, chunkSizes []uint64) [][]uint64 {
	groups := transport.NewLocalGroup(p)
	results := make([][]uint64, p)

	var firstOf []uint64
	var cursor uint64
	for _, sz := range chunkSizes {
		firstOf = append(firstOf, cursor)
		cursor += sz
	}

	var eg errgroup.Group
	for r := 0; r < p; r++ {
		r := r
		eg.Go(func() error {
			self, err := layout.Compute(n, p, r)
			if err != nil {
				return err
			}
			buf := append([]uint64(nil), seq[firstOf[r]:firstOf[r]+chunkSizes[r]]...)
			out, err := redistribute.Redistribute(groups[r], n, buf, self)
			results[r] = out
			return err
		})
	}
	Expect(eg.Wait()).To(Succeed())
	return results
}

// evenChunks splits n into p chunks matching the canonical block sizes
// (the common case: Phase 1 + Phase 2 happened to leave every rank with
// exactly as many elements as it canonically owns).
func evenChunks(n uint64, p int) []uint64 {
	sizes := make([]uint64, p)
	for r := 0; r < p; r++ {
		b, err := layout.Compute(n, p, r)
		Expect(err).NotTo(HaveOccurred())
		sizes[r] = b.Count
	}
	return sizes
}

// skewedChunks distributes n elements across p ranks with sizes that do
// not follow the canonical block boundaries at all, the way Phase 1's
// random scatter actually would.
func skewedChunks(rng *rand.Rand, n uint64, p int) []uint64 {
	cuts := make([]uint64, p-1)
	for i := range cuts {
		cuts[i] = uint64(rng.Int63n(int64(n) + 1))
	}
	all := append([]uint64{0}, cuts...)
	all = append(all, n)
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j] < all[j-1]; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	sizes := make([]uint64, p)
	for i := 0; i < p; i++ {
		sizes[i] = all[i+1] - all[i]
	}
	return sizes
}

var _ = Describe("Redistribute", func() {
	rand.Seed(time.Now().UnixNano())

	It("re-blocks an evenly split sequence back into canonical order (n=10, P=4)", func() {
		const n, p = 10, 4
		seq := make([]uint64, n)
		for i := range seq {
			seq[i] = uint64(i)
		}
		results := run(n, p, seq, evenChunks(n, p))

		var got []uint64
		for r := 0; r < p; r++ {
			got = append(got, results[r]...)
		}
		Expect(got).To(Equal(seq))
	})

	It("re-blocks an arbitrarily skewed split (n=1000, P=7)", func() {
		const n, p = 1000, 7
		seq := make([]uint64, n)
		for i := range seq {
			seq[i] = uint64(i)
		}
		rng := rand.New(rand.NewSource(1))
		results := run(n, p, seq, skewedChunks(rng, n, p))

		var got []uint64
		for r := 0; r < p; r++ {
			got = append(got, results[r]...)
		}
		Expect(got).To(Equal(seq))
	})

	It("handles n=0 with every rank contributing and receiving nothing", func() {
		const n, p = 0, 4
		results := run(n, p, nil, evenChunks(n, p))
		for r := 0; r < p; r++ {
			Expect(results[r]).To(BeEmpty())
		}
	})

	It("handles a single-element final block (n not divisible by P)", func() {
		const n, p = 10, 4 // block size 3, counts (3,3,3,1)
		seq := make([]uint64, n)
		for i := range seq {
			seq[i] = uint64(i)
		}
		results := run(n, p, seq, evenChunks(n, p))

		Expect(results[3]).To(HaveLen(1))
		Expect(results[3][0]).To(Equal(seq[9]))
	})

	It("handles ranks beyond n that own nothing but still participate (n=5, P=8)", func() {
		const n, p = 5, 8
		seq := make([]uint64, n)
		for i := range seq {
			seq[i] = uint64(i)
		}
		results := run(n, p, seq, evenChunks(n, p))

		for r := 5; r < p; r++ {
			Expect(results[r]).To(BeEmpty())
		}
		var got []uint64
		for r := 0; r < p; r++ {
			got = append(got, results[r]...)
		}
		Expect(got).To(Equal(seq))
	})
})
