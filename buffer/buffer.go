package buffer

import (
	"sort"
	"sync"

	"github.com/opd-ai/rtpkit/packet"
	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the packet capacity of an SsrcBuffer when the caller
// does not configure one.
const DefaultCapacity = 300

// SsrcBuffer is a bounded set of packets for one SSRC, ordered by circular
// sequence number. All working-set sequence numbers must stay within 2^15
// of each other; see SeqBefore.
type SsrcBuffer struct {
	mu       sync.Mutex
	packets  []*packet.Packet // sorted ascending by circular sequence order
	capacity int
	disabled bool
}

// NewSsrcBuffer creates a buffer holding at most capacity packets. A
// non-positive capacity falls back to DefaultCapacity.
func NewSsrcBuffer(capacity int) *SsrcBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SsrcBuffer{
		packets:  make([]*packet.Packet, 0, capacity+1),
		capacity: capacity,
	}
}

// Insert adds pkt in circular sequence order. A packet whose sequence
// number is already present replaces nothing and is returned unchanged so
// the caller can release it. When insertion pushes the buffer over
// capacity, the circularly smallest packet is evicted and returned.
func (b *SsrcBuffer) Insert(pkt *packet.Packet) *packet.Packet {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disabled {
		return nil
	}

	seq := pkt.SequenceNumber()
	i := sort.Search(len(b.packets), func(i int) bool {
		return !SeqBefore(b.packets[i].SequenceNumber(), seq)
	})
	if i < len(b.packets) && b.packets[i].SequenceNumber() == seq {
		// Duplicate sequence number, keep the packet already held.
		return pkt
	}

	b.packets = append(b.packets, nil)
	copy(b.packets[i+1:], b.packets[i:])
	b.packets[i] = pkt

	if len(b.packets) > b.capacity {
		evicted := b.packets[0]
		copy(b.packets, b.packets[1:])
		b.packets = b.packets[:len(b.packets)-1]
		logrus.WithFields(logrus.Fields{
			"evicted_seq": evicted.SequenceNumber(),
			"capacity":    b.capacity,
		}).Debug("Reorder buffer over capacity, evicting oldest packet")
		return evicted
	}
	return nil
}

// Empty atomically drains the buffer, returning all packets in ascending
// circular sequence order.
func (b *SsrcBuffer) Empty() []*packet.Packet {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.packets
	b.packets = make([]*packet.Packet, 0, b.capacity+1)
	return drained
}

// Len returns the number of buffered packets.
func (b *SsrcBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}

// Disable drops all future inserts until Reset is called. Packets already
// buffered remain until drained.
func (b *SsrcBuffer) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled = true
}

// Reset clears the buffer and re-enables inserts.
func (b *SsrcBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.packets {
		p.Release()
	}
	b.packets = b.packets[:0]
	b.disabled = false
}
