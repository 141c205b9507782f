// Package wire gives the redistribution messages exchanged between ranks
// (a HEADER describing an inbound slice, followed by its PAYLOAD) a
// concrete binary encoding, modeled on github.com/renproject/mpc's wire
// encoding.
package wire

import (
	"fmt"

	"github.com/renproject/surge"
)

// Header is the HEADER message (tag 1): the absolute global position and
// length of an inbound slice, sent before its PAYLOAD.
type Header struct {
	FirstPos uint64
	Count    uint64
}

// SizeHint implements the surge.SizeHinter interface.
func (h Header) SizeHint() int {
	return 8 + 8
}

// Marshal implements the surge.Marshaler interface.
func (h Header) Marshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.MarshalU64(h.FirstPos, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshaling firstPos: %v", err)
	}
	buf, rem, err = surge.MarshalU64(h.Count, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshaling count: %v", err)
	}
	return buf, rem, nil
}

// Unmarshal implements the surge.Unmarshaler interface.
func (h *Header) Unmarshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.UnmarshalU64(&h.FirstPos, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshaling firstPos: %v", err)
	}
	buf, rem, err = surge.UnmarshalU64(&h.Count, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshaling count: %v", err)
	}
	return buf, rem, nil
}

// EncodeHeader serialises a Header to its wire form.
func EncodeHeader(h Header) ([]byte, error) {
	buf, _, err := h.Marshal(make([]byte, 0, h.SizeHint()), h.SizeHint())
	if err != nil {
		return nil, fmt.Errorf("encoding header: %v", err)
	}
	return buf, nil
}

// DecodeHeader deserialises a Header from its wire form.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if _, _, err := h.Unmarshal(data, len(data)); err != nil {
		return Header{}, fmt.Errorf("decoding header: %v", err)
	}
	return h, nil
}

// EncodePayload serialises the PAYLOAD message (tag 2): the countp elements
// announced by the preceding Header, in transport-native byte order.
func EncodePayload(values []uint64) ([]byte, error) {
	size := surge.SizeHint(values)
	buf, _, err := surge.Marshal(values, make([]byte, 0, size), size)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %v", err)
	}
	return buf, nil
}

// DecodePayload deserialises a PAYLOAD message of the given element count.
func DecodePayload(data []byte, count int) ([]uint64, error) {
	values := make([]uint64, 0, count)
	if _, _, err := surge.Unmarshal(&values, data, len(data)); err != nil {
		return nil, fmt.Errorf("decoding payload: %v", err)
	}
	return values, nil
}
