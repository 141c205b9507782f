package transport

import (
	"sync"

	"github.com/pkg/errors"
)

// NewLocalGroup returns one Group handle per rank of a size-p process
// group, all sharing a single in-process "network". It stands in for the
// real multi-host transport a launcher would otherwise wire up; it is
// sufficient to run and test the engine end to end with goroutines playing
// the role of ranks.
//
// The same network may be driven through Permute repeatedly; each
// collective call resynchronises via an internal barrier before its
// scratch state is reused.
func NewLocalGroup(p int) []Group {
	if p <= 0 {
		panic("transport: process count must be positive")
	}

	net := &network{
		size:     p,
		barrier:  newCyclicBarrier(p),
		headerCh: make([]chan envelope, p),
	}
	net.payloadCh = make([][]chan []byte, p)
	for i := range net.payloadCh {
		net.payloadCh[i] = make([]chan []byte, p)
		for j := range net.payloadCh[i] {
			net.payloadCh[i][j] = make(chan []byte, 1)
		}
	}
	for i := range net.headerCh {
		net.headerCh[i] = make(chan envelope, p)
	}

	groups := make([]Group, p)
	for r := 0; r < p; r++ {
		groups[r] = &localGroup{rank: r, net: net}
	}
	return groups
}

// envelope tags a point-to-point message with its sender, for the
// any-source HEADER receive.
type envelope struct {
	from int
	data []byte
}

// network holds the state shared by every rank handle of one LocalGroup.
type network struct {
	size    int
	barrier *cyclicBarrier

	mu          sync.Mutex
	allToAllIn  [][]int
	allToAllVIn [][][]uint64
	scanIn      []uint64

	// headerCh[dest] fans in HEADER messages from every sender, for the
	// AnySource receive.
	headerCh []chan envelope
	// payloadCh[src][dest] carries the PAYLOAD that follows a HEADER from
	// that specific sender.
	payloadCh [][]chan []byte
}

type localGroup struct {
	rank int
	net  *network
}

func (g *localGroup) Rank() int { return g.rank }
func (g *localGroup) Size() int { return g.net.size }

func (g *localGroup) AllToAll(sendCounts []int) ([]int, error) {
	n := g.net.size
	if len(sendCounts) != n {
		return nil, errors.Errorf("transport: AllToAll: sendCounts has length %d, want %d", len(sendCounts), n)
	}

	g.net.mu.Lock()
	if g.net.allToAllIn == nil {
		g.net.allToAllIn = make([][]int, n)
	}
	g.net.allToAllIn[g.rank] = append([]int(nil), sendCounts...)
	g.net.mu.Unlock()

	if err := g.net.barrier.wait(); err != nil {
		return nil, errors.Wrap(err, "transport: AllToAll")
	}

	recvCounts := make([]int, n)
	g.net.mu.Lock()
	for s := 0; s < n; s++ {
		recvCounts[s] = g.net.allToAllIn[s][g.rank]
	}
	g.net.mu.Unlock()

	if err := g.net.barrier.wait(); err != nil {
		return nil, errors.Wrap(err, "transport: AllToAll")
	}
	return recvCounts, nil
}

func (g *localGroup) AllToAllv(send []uint64, sendCounts, sdispls, recvCounts, rdispls []int) ([]uint64, error) {
	n := g.net.size
	if len(sendCounts) != n || len(sdispls) != n || len(recvCounts) != n || len(rdispls) != n {
		return nil, errors.New("transport: AllToAllv: count/displacement slices must have length P")
	}

	perDest := make([][]uint64, n)
	for d := 0; d < n; d++ {
		perDest[d] = append([]uint64(nil), send[sdispls[d]:sdispls[d]+sendCounts[d]]...)
	}

	g.net.mu.Lock()
	if g.net.allToAllVIn == nil {
		g.net.allToAllVIn = make([][][]uint64, n)
	}
	g.net.allToAllVIn[g.rank] = perDest
	g.net.mu.Unlock()

	if err := g.net.barrier.wait(); err != nil {
		return nil, errors.Wrap(err, "transport: AllToAllv")
	}

	total := 0
	for _, c := range recvCounts {
		total += c
	}
	recv := make([]uint64, total)
	g.net.mu.Lock()
	for s := 0; s < n; s++ {
		copy(recv[rdispls[s]:rdispls[s]+recvCounts[s]], g.net.allToAllVIn[s][g.rank])
	}
	g.net.mu.Unlock()

	if err := g.net.barrier.wait(); err != nil {
		return nil, errors.Wrap(err, "transport: AllToAllv")
	}
	return recv, nil
}

func (g *localGroup) ExclusiveScan(local uint64) (uint64, error) {
	n := g.net.size
	g.net.mu.Lock()
	if g.net.scanIn == nil {
		g.net.scanIn = make([]uint64, n)
	}
	g.net.scanIn[g.rank] = local
	g.net.mu.Unlock()

	if err := g.net.barrier.wait(); err != nil {
		return 0, errors.Wrap(err, "transport: ExclusiveScan")
	}

	var sum uint64
	g.net.mu.Lock()
	for s := 0; s < g.rank; s++ {
		sum += g.net.scanIn[s]
	}
	g.net.mu.Unlock()

	if err := g.net.barrier.wait(); err != nil {
		return 0, errors.Wrap(err, "transport: ExclusiveScan")
	}
	return sum, nil
}

type sendRequest struct {
	done chan error
}

func (r *sendRequest) Wait() error {
	return <-r.done
}

func (g *localGroup) ISend(dest, tag int, data []byte) (Request, error) {
	if dest < 0 || dest >= g.net.size {
		return nil, errors.Errorf("transport: ISend: destination rank %d out of range", dest)
	}

	req := &sendRequest{done: make(chan error, 1)}
	payload := append([]byte(nil), data...)

	go func() {
		switch tag {
		case TagHeader:
			g.net.headerCh[dest] <- envelope{from: g.rank, data: payload}
		case TagPayload:
			g.net.payloadCh[g.rank][dest] <- payload
		default:
			req.done <- errors.Errorf("transport: ISend: unsupported tag %d", tag)
			return
		}
		req.done <- nil
	}()
	return req, nil
}

// Recv supports only the two receive shapes redistribution uses: a HEADER
// from AnySource and a PAYLOAD from a specific source. Any other
// combination of source and tag returns an error.
func (g *localGroup) Recv(source, tag int) ([]byte, int, error) {
	switch tag {
	case TagHeader:
		if source != AnySource {
			return nil, 0, errors.New("transport: Recv: HEADER receive only supports AnySource")
		}
		env := <-g.net.headerCh[g.rank]
		return env.data, env.from, nil
	case TagPayload:
		if source == AnySource {
			return nil, 0, errors.New("transport: Recv: PAYLOAD receive requires a specific source")
		}
		data := <-g.net.payloadCh[source][g.rank]
		return data, source, nil
	default:
		return nil, 0, errors.Errorf("transport: Recv: unsupported tag %d", tag)
	}
}

func (g *localGroup) Wait(reqs ...Request) error {
	for _, req := range reqs {
		if err := req.Wait(); err != nil {
			return errors.Wrap(err, "transport: Wait")
		}
	}
	return nil
}

func (g *localGroup) Barrier() error {
	return g.net.barrier.wait()
}

// cyclicBarrier is a reusable (re-enterable) barrier for exactly n
// goroutines, built on sync.Cond's generation-counting idiom since neither
// the pack nor the wider ecosystem ships a re-enterable MPI-style barrier
// and sync.WaitGroup cannot safely be reset for reuse across calls.
type cyclicBarrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation uint64
}

func newCyclicBarrier(n int) *cyclicBarrier {
	b := &cyclicBarrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *cyclicBarrier) wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	return nil
}
