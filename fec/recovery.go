package fec

import (
	"fmt"

	"github.com/opd-ai/rtpkit/packet"
)

// Recover reconstructs the single missing protected packet from a FEC
// packet's payload and the protected packets that did arrive, keyed by
// sequence number. Recovery succeeds if and only if exactly one protected
// sequence number is absent from present.
func Recover(h *Header, fecPayload []byte, present map[uint16]*packet.Packet) (*packet.Packet, error) {
	missing, err := missingSeq(h, present)
	if err != nil {
		return nil, err
	}
	if len(fecPayload) < h.HeaderLen {
		return nil, fmt.Errorf("%w: payload shorter than header", ErrHeaderTooShort)
	}
	repair := fecPayload[h.HeaderLen:]

	// Fold every present packet into the recovery fields; what remains is
	// the missing packet.
	b0 := fecPayload[0]
	b1 := h.PTRecovery
	length := h.LengthRecovery
	ts := h.TSRecovery

	for _, seq := range h.Protected {
		if seq == missing {
			continue
		}
		media := present[seq].Data()
		b0 ^= media[0]
		b1 ^= media[1]
		length ^= uint16(len(media) - packet.FixedHeaderSize)
		ts ^= uint32(media[4])<<24 | uint32(media[5])<<16 | uint32(media[6])<<8 | uint32(media[7])
	}

	if int(length) > len(repair) {
		return nil, fmt.Errorf("fec: recovered length %d exceeds repair payload %d", length, len(repair))
	}

	out := packet.New(packet.FixedHeaderSize + int(length))
	data := out.Data()
	data[0] = b0&0x3f | 0x80 // restore version 2 over the excised R/F bits
	data[1] = b1
	out.SetSequenceNumber(missing)
	out.SetTimestamp(ts)
	out.SetSSRC(h.ProtectedSSRC)

	body := data[packet.FixedHeaderSize:]
	copy(body, repair[:length])
	for _, seq := range h.Protected {
		if seq == missing {
			continue
		}
		media := present[seq].Data()[packet.FixedHeaderSize:]
		for i := 0; i < len(media) && i < len(body); i++ {
			body[i] ^= media[i]
		}
	}
	return out, nil
}

// missingSeq finds the one protected sequence number absent from present.
func missingSeq(h *Header, present map[uint16]*packet.Packet) (uint16, error) {
	var missing uint16
	found := 0
	for _, seq := range h.Protected {
		if _, ok := present[seq]; !ok {
			missing = seq
			found++
		}
	}
	switch found {
	case 0:
		return 0, ErrNothingMissing
	case 1:
		return missing, nil
	default:
		return 0, fmt.Errorf("%w: %d absent", ErrTooManyMissing, found)
	}
}

// BuildRepair constructs the payload of a FEC packet protecting the given
// media packets: the FlexFEC header with its recovery fields filled in,
// followed by the XOR of the media packets' bodies.
func BuildRepair(ssrc uint32, baseSeq uint16, media []*packet.Packet) ([]byte, error) {
	seqs := make([]uint16, len(media))
	maxBody := 0
	for i, m := range media {
		seqs[i] = m.SequenceNumber()
		if body := m.Len() - packet.FixedHeaderSize; body > maxBody {
			maxBody = body
		}
	}

	hdr, err := WriteHeader(ssrc, baseSeq, seqs)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, len(hdr)+maxBody)
	copy(payload, hdr)
	repair := payload[len(hdr):]

	for _, m := range media {
		data := m.Data()
		payload[0] ^= data[0]
		payload[1] ^= data[1]
		lengthRecovery := uint16(len(data) - packet.FixedHeaderSize)
		payload[2] ^= byte(lengthRecovery >> 8)
		payload[3] ^= byte(lengthRecovery)
		payload[4] ^= data[4]
		payload[5] ^= data[5]
		payload[6] ^= data[6]
		payload[7] ^= data[7]
		for i, b := range data[packet.FixedHeaderSize:] {
			repair[i] ^= b
		}
	}
	// The XOR of the first byte trampled the R/F bits; both must read
	// zero on the wire.
	payload[0] &= 0x3f
	return payload, nil
}
