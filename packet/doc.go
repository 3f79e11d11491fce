// Package packet provides the mutable wire representation of RTP, RTCP and
// FlexFEC packets used throughout the transport core.
//
// A Packet owns a backing byte buffer together with an offset and a length,
// and exposes protocol-aware accessors over that window. Transforms mutate
// packets in place to avoid per-stage copies; the ownership contract is that
// a transform stage borrows a packet for the duration of its own call and
// never retains it afterwards, unless the stage explicitly buffers the
// packet and returns nil to its caller.
//
// Packets are allocated from a pool of fixed-size buffers:
//
//	pkt := packet.FromBytes(datagram)
//	defer pkt.Release()
//
//	if err := pkt.Validate(); err != nil {
//	    // malformed packet, drop
//	}
//	ssrc := pkt.SSRC()
//
// # Wire format
//
// Accessors assume the 12-byte fixed RTP header (version/padding/extension/
// CSRC count, marker/payload type, sequence number, timestamp, SSRC) plus
// the optional CSRC list and header extension. RTCP packets share the first
// eight bytes of layout; IsRTCP distinguishes the two by payload type range
// so a demultiplexer can route compound RTCP away from the media path.
package packet
