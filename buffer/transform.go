package buffer

import (
	"sync"

	"github.com/opd-ai/rtpkit/packet"
	"github.com/sirupsen/logrus"
)

// Transform is the pipeline stage wrapping one SsrcBuffer per SSRC. On
// ingress it absorbs each packet and releases the circularly oldest one
// once its buffer is full, smoothing reordering at the cost of latency.
// Egress packets pass through untouched.
type Transform struct {
	mu       sync.Mutex
	buffers  map[uint32]*SsrcBuffer
	capacity int
	closed   bool
	logger   *logrus.Logger
}

// NewTransform creates a buffering stage whose per-SSRC buffers hold at
// most capacity packets each.
func NewTransform(capacity int) *Transform {
	return &Transform{
		buffers:  make(map[uint32]*SsrcBuffer),
		capacity: capacity,
		logger:   logrus.StandardLogger(),
	}
}

// Transform passes egress packets through unchanged.
func (t *Transform) Transform(pkt *packet.Packet) *packet.Packet {
	return pkt
}

// ReverseTransform buffers pkt in its SSRC's reorder buffer. It returns
// the packet evicted by the insert, or nil while the buffer absorbs.
// Duplicate sequence numbers are dropped in favor of the buffered copy.
func (t *Transform) ReverseTransform(pkt *packet.Packet) *packet.Packet {
	if pkt == nil {
		return nil
	}
	b := t.bufferFor(pkt.SSRC())
	if b == nil {
		pkt.Release()
		return nil
	}
	out := b.Insert(pkt)
	if out == pkt {
		t.logger.WithFields(logrus.Fields{
			"ssrc":     pkt.SSRC(),
			"sequence": pkt.SequenceNumber(),
		}).Debug("Dropping duplicate of buffered packet")
		out.Release()
		return nil
	}
	return out
}

// Drain atomically empties the buffer for one SSRC, returning its packets
// in ascending circular order. Returns nil for an unknown SSRC.
func (t *Transform) Drain(ssrc uint32) []*packet.Packet {
	t.mu.Lock()
	b, ok := t.buffers[ssrc]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return b.Empty()
}

// Buffer returns the reorder buffer for ssrc, creating it on first use.
// Returns nil after Close.
func (t *Transform) Buffer(ssrc uint32) *SsrcBuffer {
	return t.bufferFor(ssrc)
}

func (t *Transform) bufferFor(ssrc uint32) *SsrcBuffer {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	b, ok := t.buffers[ssrc]
	if !ok {
		b = NewSsrcBuffer(t.capacity)
		t.buffers[ssrc] = b
		t.logger.WithFields(logrus.Fields{
			"ssrc":     ssrc,
			"capacity": b.capacity,
		}).Debug("Created reorder buffer for new SSRC")
	}
	return b
}

// Close releases every buffered packet. Safe to call more than once.
func (t *Transform) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for ssrc, b := range t.buffers {
		b.Reset()
		b.Disable()
		delete(t.buffers, ssrc)
	}
	return nil
}
