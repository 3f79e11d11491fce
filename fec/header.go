package fec

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/rtpkit/buffer"
)

// Mask tier geometry. Tier i holds the deltas in [tierFirstDelta[i],
// tierLastDelta[i]] and the continuation bit of tier i sits at bit offset
// tierKBitOffset[i] of the mask region.
const (
	// MinHeaderSize is the FEC header size with the mandatory small mask.
	MinHeaderSize = 20

	maskOffset = 18 // byte offset of the mask region in the FEC header

	smallMaskDeltas  = 15  // deltas 0..14
	mediumMaskDeltas = 46  // deltas 0..45
	largeMaskDeltas  = 109 // deltas 0..108

	// MaxSequenceDelta is the largest representable distance between the
	// base sequence number and a protected sequence number.
	MaxSequenceDelta = largeMaskDeltas - 1
)

// Header is the parsed view of a FlexFEC-03 packet payload.
type Header struct {
	// ProtectedSSRC is the media stream this FEC packet protects.
	ProtectedSSRC uint32

	// BaseSeq is the sequence number logical mask bit 0 refers to.
	BaseSeq uint16

	// Protected lists the protected sequence numbers in ascending
	// circular order.
	Protected []uint16

	// PTRecovery, LengthRecovery and TSRecovery are the XOR recovery
	// fields carried by the header. PTRecovery holds the second header
	// byte (marker bit and payload type).
	PTRecovery     uint8
	LengthRecovery uint16
	TSRecovery     uint32

	// HeaderLen is the number of payload bytes the header occupies: 20,
	// 24 or 32 depending on the mask tier.
	HeaderLen int
}

// ReadHeader parses a FlexFEC-03 header from a FEC packet payload.
// Retransmission packets, non-flexible masks and multi-SSRC protection
// are rejected as unsupported.
func ReadHeader(payload []byte) (*Header, error) {
	if len(payload) < MinHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooShort, len(payload))
	}
	if payload[0]&0x80 != 0 {
		return nil, ErrRetransmission
	}
	if payload[0]&0x40 != 0 {
		return nil, ErrInflexibleMask
	}
	if payload[8] != 1 {
		return nil, fmt.Errorf("%w: SSRC count %d", ErrMultiSSRC, payload[8])
	}

	h := &Header{
		PTRecovery:     payload[1],
		LengthRecovery: binary.BigEndian.Uint16(payload[2:4]),
		TSRecovery:     binary.BigEndian.Uint32(payload[4:8]),
		ProtectedSSRC:  binary.BigEndian.Uint32(payload[12:16]),
		BaseSeq:        binary.BigEndian.Uint16(payload[16:18]),
	}

	mask1 := binary.BigEndian.Uint16(payload[maskOffset:])
	appendDeltas := func(bits uint64, width, firstDelta int) {
		for i := 0; i < width; i++ {
			if bits&(1<<uint(width-1-i)) != 0 {
				h.Protected = append(h.Protected, h.BaseSeq+uint16(firstDelta+i))
			}
		}
	}

	switch {
	case mask1&0x8000 != 0: // k bit at mask offset 0: small tier
		h.HeaderLen = MinHeaderSize
		appendDeltas(uint64(mask1&0x7fff), smallMaskDeltas, 0)

	default:
		if len(payload) < MinHeaderSize+4 {
			return nil, fmt.Errorf("%w: truncated medium mask", ErrHeaderTooShort)
		}
		mask2 := binary.BigEndian.Uint32(payload[maskOffset+2:])
		if mask2&0x80000000 != 0 { // k bit at mask offset 16: medium tier
			h.HeaderLen = MinHeaderSize + 4
			appendDeltas(uint64(mask1&0x7fff), smallMaskDeltas, 0)
			appendDeltas(uint64(mask2&0x7fffffff), mediumMaskDeltas-smallMaskDeltas, smallMaskDeltas)
			return h, nil
		}

		if len(payload) < MinHeaderSize+12 {
			return nil, fmt.Errorf("%w: truncated large mask", ErrHeaderTooShort)
		}
		mask3 := binary.BigEndian.Uint64(payload[maskOffset+6:])
		if mask3&(1<<63) == 0 { // k bit at mask offset 48: large tier
			return nil, ErrNoContinuationBit
		}
		h.HeaderLen = MinHeaderSize + 12
		appendDeltas(uint64(mask1&0x7fff), smallMaskDeltas, 0)
		appendDeltas(uint64(mask2&0x7fffffff), mediumMaskDeltas-smallMaskDeltas, smallMaskDeltas)
		appendDeltas(mask3&(1<<63-1), largeMaskDeltas-mediumMaskDeltas, mediumMaskDeltas)
	}

	return h, nil
}

// WriteHeader builds a FlexFEC-03 header protecting the given sequence
// numbers, selecting the smallest mask tier that covers the largest
// delta. The recovery fields are left zero for the caller to XOR in, and
// the returned slice's length is the header length.
func WriteHeader(protectedSSRC uint32, baseSeq uint16, protected []uint16) ([]byte, error) {
	if len(protected) == 0 {
		return nil, ErrNothingProtected
	}

	maxDelta := 0
	for _, seq := range protected {
		d := buffer.SeqDelta(baseSeq, seq)
		if d < 0 {
			return nil, fmt.Errorf("%w: %d before base %d", ErrSeqBeforeBase, seq, baseSeq)
		}
		if d > MaxSequenceDelta {
			return nil, fmt.Errorf("%w: delta %d", ErrMaskTooLong, d)
		}
		if d > maxDelta {
			maxDelta = d
		}
	}

	headerLen := MinHeaderSize
	switch {
	case maxDelta < smallMaskDeltas:
	case maxDelta < mediumMaskDeltas:
		headerLen += 4
	default:
		headerLen += 12
	}

	hdr := make([]byte, headerLen)
	hdr[8] = 1 // SSRC count
	binary.BigEndian.PutUint32(hdr[12:16], protectedSSRC)
	binary.BigEndian.PutUint16(hdr[16:18], baseSeq)

	var mask1 uint16
	var mask2 uint32
	var mask3 uint64
	for _, seq := range protected {
		switch d := buffer.SeqDelta(baseSeq, seq); {
		case d < smallMaskDeltas:
			mask1 |= 1 << uint(smallMaskDeltas-1-d)
		case d < mediumMaskDeltas:
			mask2 |= 1 << uint(mediumMaskDeltas-1-d)
		default:
			mask3 |= 1 << uint(largeMaskDeltas-1-d)
		}
	}

	switch headerLen {
	case MinHeaderSize:
		binary.BigEndian.PutUint16(hdr[maskOffset:], mask1|0x8000)
	case MinHeaderSize + 4:
		binary.BigEndian.PutUint16(hdr[maskOffset:], mask1)
		binary.BigEndian.PutUint32(hdr[maskOffset+2:], mask2|0x80000000)
	default:
		binary.BigEndian.PutUint16(hdr[maskOffset:], mask1)
		binary.BigEndian.PutUint32(hdr[maskOffset+2:], mask2)
		binary.BigEndian.PutUint64(hdr[maskOffset+6:], mask3|1<<63)
	}
	return hdr, nil
}
