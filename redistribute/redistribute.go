// Package redistribute implements the final phase of the permutation
// engine: delivering each shuffled element to its canonical owner rank, so
// that on completion every rank holds exactly its own count of elements in
// positions [0, count) of its output.
package redistribute

import (
	"github.com/pkg/errors"

	"github.com/thejkane/distributed-number-permuter/layout"
	"github.com/thejkane/distributed-number-permuter/transport"
	"github.com/thejkane/distributed-number-permuter/wire"
)

// Redistribute re-blocks the globally shuffled sequence (the concatenation,
// in rank order, of every rank's post-shuffle buffer) into the canonical
// (pos, count) layout described by self. n and the group size are used to
// look up the canonical owner of any global position along the way; no
// rank needs to know another rank's layout in advance, since layout.Compute
// is a pure function of (n, P, rank).
func Redistribute(g transport.Group, n uint64, buf []uint64, self layout.Block) ([]uint64, error) {
	p := g.Size()
	r := g.Rank()
	total := uint64(len(buf))

	firstR, err := g.ExclusiveScan(total)
	if err != nil {
		return nil, errors.Wrap(err, "redistribute: prefix scan over local buffer sizes")
	}

	out := make([]uint64, self.Count)
	// remains is signed so that receiving more than expected shows up as a
	// negative count instead of wrapping around.
	remains := int64(self.Count)

	var reqs []transport.Request

	if total > 0 {
		lastR := firstR + total - 1
		firstp := firstR
		rho := layout.Owner(firstp, self.Size)

		for {
			ownerBlock, err := layout.Compute(n, p, rho)
			if err != nil {
				return nil, errors.Wrapf(err, "redistribute: locating owner rank %d", rho)
			}
			if ownerBlock.Count == 0 {
				return nil, errors.Errorf("redistribute: invariant violation: owner rank %d canonically owns nothing but was assigned global position %d", rho, firstp)
			}

			lastp := ownerBlock.Pos + ownerBlock.Count - 1
			if lastp > lastR {
				lastp = lastR
			}
			count := lastp - firstp + 1

			if rho == r {
				copy(out[firstp-self.Pos:], buf[firstp-firstR:firstp-firstR+count])
				remains -= int64(count)
			} else {
				hReq, pReq, err := send(g, rho, firstp, buf[firstp-firstR:firstp-firstR+count])
				if err != nil {
					return nil, errors.Wrapf(err, "redistribute: sending slice to rank %d", rho)
				}
				reqs = append(reqs, hReq, pReq)
			}

			firstp += count
			rho++
			if firstp > lastR {
				break
			}
		}
	}

	for remains > 0 {
		header, payload, err := recvOne(g, self)
		if err != nil {
			return nil, errors.Wrap(err, "redistribute: receiving inbound slice")
		}
		copy(out[header.FirstPos-self.Pos:], payload)
		remains -= int64(header.Count)
		if remains < 0 {
			return nil, errors.Errorf("redistribute: invariant violation: remains went negative (%d) after receiving %d elements", remains, header.Count)
		}
	}

	if err := g.Wait(reqs...); err != nil {
		return nil, errors.Wrap(err, "redistribute: waiting for outstanding sends")
	}
	if err := g.Barrier(); err != nil {
		return nil, errors.Wrap(err, "redistribute: final barrier")
	}

	return out, nil
}

func send(g transport.Group, dest int, firstp uint64, values []uint64) (transport.Request, transport.Request, error) {
	h := wire.Header{FirstPos: firstp, Count: uint64(len(values))}
	hData, err := wire.EncodeHeader(h)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encoding header")
	}
	hReq, err := g.ISend(dest, transport.TagHeader, hData)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sending header")
	}

	pData, err := wire.EncodePayload(values)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encoding payload")
	}
	pReq, err := g.ISend(dest, transport.TagPayload, pData)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sending payload")
	}

	return hReq, pReq, nil
}

func recvOne(g transport.Group, self layout.Block) (wire.Header, []uint64, error) {
	hData, from, err := g.Recv(transport.AnySource, transport.TagHeader)
	if err != nil {
		return wire.Header{}, nil, errors.Wrap(err, "receiving header")
	}
	header, err := wire.DecodeHeader(hData)
	if err != nil {
		return wire.Header{}, nil, errors.Wrap(err, "decoding header")
	}

	pData, _, err := g.Recv(from, transport.TagPayload)
	if err != nil {
		return wire.Header{}, nil, errors.Wrapf(err, "receiving payload from rank %d", from)
	}
	values, err := wire.DecodePayload(pData, int(header.Count))
	if err != nil {
		return wire.Header{}, nil, errors.Wrap(err, "decoding payload")
	}

	if header.FirstPos < self.Pos || header.FirstPos+header.Count > self.Pos+self.Count {
		return wire.Header{}, nil, errors.Errorf("redistribute: invariant violation: slice [%d, %d) from rank %d falls outside owned range [%d, %d)", header.FirstPos, header.FirstPos+header.Count, from, self.Pos, self.Pos+self.Count)
	}

	return header, values, nil
}
