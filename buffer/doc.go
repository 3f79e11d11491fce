// Package buffer implements the bounded jitter/reorder buffer that holds
// out-of-order RTP packets per synchronization source.
//
// Packets are ordered by a wraparound-aware sequence number comparator.
// The comparator treats the 16-bit sequence space as circular and is only
// valid for values within 2^15 of each other; this is an explicit contract
// of the whole package, not a general total order.
//
// An SsrcBuffer never holds more than its configured capacity. Inserting
// into a full buffer evicts and returns the circularly smallest packet so
// the caller can release it downstream:
//
//	buf := buffer.NewSsrcBuffer(300)
//	if evicted := buf.Insert(pkt); evicted != nil {
//	    deliver(evicted)
//	}
//	for _, p := range buf.Empty() {
//	    deliver(p)
//	}
//
// The Transform stage maintains one SsrcBuffer per SSRC and serializes
// access to each, so packets for the same source may safely arrive
// back-to-back on different I/O goroutines.
package buffer
