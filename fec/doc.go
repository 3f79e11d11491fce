// Package fec implements the FlexFEC-03 forward error correction codec:
// parsing and construction of FEC headers with their variable-length
// protection masks, and XOR recovery of a single missing media packet.
//
// A FEC packet's payload opens with a 20-byte minimum header carrying
// recovery fields (payload type, length, timestamp), the protected SSRC,
// the base sequence number and a protection mask. The mask comes in three
// tiers of 2, 6 or 14 bytes covering sequence deltas of up to 14, 45 or
// 108; a continuation ("k") bit at fixed offsets 0, 16 and 48 of the mask
// region marks the final tier, and exactly one such bit is ever set.
// Logical bit i of the mask means sequence number base+i is protected.
//
//	hdr, err := fec.ReadHeader(fecPayload)
//	if err != nil {
//	    // unsupported or malformed, drop
//	}
//	for _, seq := range hdr.Protected { ... }
//
// Recovery XORs the payloads and select header fields of every protected
// packet that arrived; it succeeds exactly when one protected packet is
// absent, reconstructing that packet bit for bit.
//
// The Transform stage applies the codec in both directions: on egress it
// batches outgoing media packets per SSRC and hands a repair packet to an
// OnRepair hook every group; on ingress it caches recent media packets,
// consumes arriving FEC packets and injects recovered media downstream.
//
// Multi-SSRC FEC flows, the retransmission bit and non-flexible masks are
// not supported; packets using them are conservatively dropped.
package fec
