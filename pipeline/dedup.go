package pipeline

import (
	"sync"

	"github.com/opd-ai/rtpkit/buffer"
	"github.com/opd-ai/rtpkit/packet"
	"github.com/sirupsen/logrus"
)

// dedupWindowSize is how many sequence numbers behind the highest seen a
// duplicate can still be recognized.
const dedupWindowSize = 64

// seqWindow tracks recently seen sequence numbers for one SSRC as a
// bitmask relative to the highest sequence number observed.
type seqWindow struct {
	highest uint16
	mask    uint64
	primed  bool
}

// observe records seq and reports whether it was already seen. Packets
// older than the window cannot be classified and are treated as unseen.
func (w *seqWindow) observe(seq uint16) (duplicate bool) {
	if !w.primed {
		w.primed = true
		w.highest = seq
		w.mask = 1
		return false
	}

	delta := buffer.SeqDelta(w.highest, seq)
	switch {
	case delta > 0:
		// Ahead of everything seen so far; slide the window.
		if delta < dedupWindowSize {
			w.mask = w.mask<<uint(delta) | 1
		} else {
			w.mask = 1
		}
		w.highest = seq
		return false
	case delta <= -dedupWindowSize:
		// Too old to classify.
		return false
	default:
		bit := uint64(1) << uint(-delta)
		if w.mask&bit != 0 {
			return true
		}
		w.mask |= bit
		return false
	}
}

// Dedup is the duplicate-suppression stage. It keeps a sliding window of
// recently seen sequence numbers per SSRC and drops ingress packets whose
// sequence number was already observed. Egress packets pass through, and
// the stage has no cryptographic or buffering side effects.
type Dedup struct {
	mu      sync.Mutex
	windows map[uint32]*seqWindow
	logger  *logrus.Logger
}

// NewDedup creates a duplicate-suppression stage.
func NewDedup() *Dedup {
	return &Dedup{
		windows: make(map[uint32]*seqWindow),
		logger:  logrus.StandardLogger(),
	}
}

// Transform passes egress packets through unchanged.
func (d *Dedup) Transform(pkt *packet.Packet) *packet.Packet {
	return pkt
}

// ReverseTransform drops pkt if its sequence number was already seen for
// its SSRC, otherwise records it and passes it through.
func (d *Dedup) ReverseTransform(pkt *packet.Packet) *packet.Packet {
	if pkt == nil || pkt.Len() < packet.FixedHeaderSize {
		return pkt
	}

	ssrc := pkt.SSRC()
	seq := pkt.SequenceNumber()

	d.mu.Lock()
	w, ok := d.windows[ssrc]
	if !ok {
		w = &seqWindow{}
		d.windows[ssrc] = w
	}
	duplicate := w.observe(seq)
	d.mu.Unlock()

	if duplicate {
		d.logger.WithFields(logrus.Fields{
			"ssrc":     ssrc,
			"sequence": seq,
		}).Debug("Dropping duplicate packet")
		pkt.Release()
		return nil
	}
	return pkt
}

// Close discards all per-SSRC windows. Safe to call more than once.
func (d *Dedup) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows = make(map[uint32]*seqWindow)
	return nil
}
