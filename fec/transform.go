package fec

import (
	"errors"
	"sync"

	"github.com/opd-ai/rtpkit/packet"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultGroupSize is how many media packets one repair packet
	// protects when the caller does not configure a group size.
	DefaultGroupSize = 10

	// mediaCacheSize bounds the per-SSRC cache of recent media packets
	// kept for recovery.
	mediaCacheSize = 128

	// pendingFecLimit bounds how many unsatisfied FEC packets are kept
	// per SSRC awaiting late media.
	pendingFecLimit = 4
)

// Config configures the FEC transform stage.
type Config struct {
	// PayloadType identifies FEC packets on the wire.
	PayloadType uint8

	// SSRC is the synchronization source for outgoing repair packets.
	SSRC uint32

	// GroupSize is the number of media packets protected per repair
	// packet. Non-positive selects DefaultGroupSize.
	GroupSize int

	// OnRepair receives each egress repair packet. Required for egress
	// protection; with a nil hook the stage only does ingress recovery.
	OnRepair func(*packet.Packet)

	// OnRecovered receives packets recovered by a previously pending FEC
	// packet when a late media packet completes its group. Recoveries
	// triggered by the FEC packet itself flow down the pipeline instead.
	OnRecovered func(*packet.Packet)
}

// egressGroup accumulates outgoing media packets for one SSRC until a
// repair packet is due.
type egressGroup struct {
	media []*packet.Packet
}

// ingressState caches recent media and unsatisfied FEC packets for one
// protected SSRC.
type ingressState struct {
	cache   map[uint16]*packet.Packet
	order   []uint16
	pending []pendingFec
}

type pendingFec struct {
	header  *Header
	payload []byte
}

// Transform is the FlexFEC pipeline stage. On egress it emits one repair
// packet per group of media packets through OnRepair; on ingress it
// consumes FEC packets and injects recovered media downstream.
type Transform struct {
	cfg    Config
	fecSeq uint16

	mu      sync.Mutex
	egress  map[uint32]*egressGroup
	ingress map[uint32]*ingressState
	closed  bool

	logger *logrus.Logger
}

// NewTransform creates a FEC stage.
func NewTransform(cfg Config) *Transform {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultGroupSize
	}
	return &Transform{
		cfg:     cfg,
		egress:  make(map[uint32]*egressGroup),
		ingress: make(map[uint32]*ingressState),
		logger:  logrus.StandardLogger(),
	}
}

// Transform accumulates the egress media packet into its SSRC's group and
// passes it through unchanged. Completing a group hands a freshly built
// repair packet to the OnRepair hook.
func (t *Transform) Transform(pkt *packet.Packet) *packet.Packet {
	if pkt == nil || t.cfg.OnRepair == nil || pkt.IsRTCP() || pkt.Validate() != nil {
		return pkt
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return pkt
	}
	ssrc := pkt.SSRC()
	group, ok := t.egress[ssrc]
	if !ok {
		group = &egressGroup{}
		t.egress[ssrc] = group
	}
	group.media = append(group.media, pkt.Clone())

	var repair *packet.Packet
	if len(group.media) >= t.cfg.GroupSize {
		repair = t.buildRepairLocked(ssrc, group)
		for _, m := range group.media {
			m.Release()
		}
		group.media = group.media[:0]
	}
	t.mu.Unlock()

	if repair != nil {
		t.cfg.OnRepair(repair)
	}
	return pkt
}

// buildRepairLocked assembles the repair RTP packet for a full group.
func (t *Transform) buildRepairLocked(ssrc uint32, group *egressGroup) *packet.Packet {
	base := group.media[0].SequenceNumber()
	payload, err := BuildRepair(ssrc, base, group.media)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"ssrc":     ssrc,
			"base_seq": base,
			"error":    err.Error(),
		}).Warn("Failed to build repair packet")
		return nil
	}

	repair := packet.New(packet.FixedHeaderSize + len(payload))
	data := repair.Data()
	data[0] = 0x80
	repair.SetPayloadType(t.cfg.PayloadType)
	repair.SetSequenceNumber(t.fecSeq)
	repair.SetTimestamp(group.media[len(group.media)-1].Timestamp())
	repair.SetSSRC(t.cfg.SSRC)
	copy(data[packet.FixedHeaderSize:], payload)
	t.fecSeq++
	return repair
}

// ReverseTransform caches ingress media packets for recovery and passes
// them through. FEC packets are consumed: a successful recovery flows
// downstream in their place, otherwise nil.
func (t *Transform) ReverseTransform(pkt *packet.Packet) *packet.Packet {
	if pkt == nil || pkt.IsRTCP() || pkt.Validate() != nil {
		return pkt
	}
	if pkt.PayloadType() == t.cfg.PayloadType {
		return t.consumeFec(pkt)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return pkt
	}
	st := t.ingressFor(pkt.SSRC())
	t.cacheLocked(st, pkt)
	recovered := t.retryPendingLocked(st)
	t.mu.Unlock()

	for _, r := range recovered {
		if t.cfg.OnRecovered != nil {
			t.cfg.OnRecovered(r)
		} else {
			r.Release()
		}
	}
	return pkt
}

// consumeFec parses and applies one FEC packet. The packet itself never
// continues down the pipeline.
func (t *Transform) consumeFec(pkt *packet.Packet) *packet.Packet {
	defer pkt.Release()

	hdr, err := ReadHeader(pkt.Payload())
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"ssrc":  pkt.SSRC(),
			"error": err.Error(),
		}).Debug("Dropping unusable FEC packet")
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	st := t.ingressFor(hdr.ProtectedSSRC)

	recovered, err := Recover(hdr, pkt.Payload(), st.cache)
	switch {
	case err == nil:
		t.cacheLocked(st, recovered)
		t.logger.WithFields(logrus.Fields{
			"ssrc":     hdr.ProtectedSSRC,
			"sequence": recovered.SequenceNumber(),
		}).Debug("Recovered missing packet from FEC")
		return recovered
	case errors.Is(err, ErrTooManyMissing):
		// Late media may still complete the group; keep the FEC packet.
		if len(st.pending) >= pendingFecLimit {
			st.pending = st.pending[1:]
		}
		st.pending = append(st.pending, pendingFec{
			header:  hdr,
			payload: append([]byte(nil), pkt.Payload()...),
		})
		return nil
	default:
		return nil
	}
}

// retryPendingLocked re-attempts every pending FEC packet for st,
// returning any packets recovered.
func (t *Transform) retryPendingLocked(st *ingressState) []*packet.Packet {
	var recovered []*packet.Packet
	remaining := st.pending[:0]
	for _, p := range st.pending {
		out, err := Recover(p.header, p.payload, st.cache)
		switch {
		case err == nil:
			t.cacheLocked(st, out)
			recovered = append(recovered, out)
		case errors.Is(err, ErrTooManyMissing):
			remaining = append(remaining, p)
		}
		// ErrNothingMissing: group complete, FEC packet spent.
	}
	st.pending = remaining
	return recovered
}

func (t *Transform) ingressFor(ssrc uint32) *ingressState {
	st, ok := t.ingress[ssrc]
	if !ok {
		st = &ingressState{cache: make(map[uint16]*packet.Packet)}
		t.ingress[ssrc] = st
	}
	return st
}

// cacheLocked stores a clone of pkt in the media cache, evicting the
// oldest entry when full.
func (t *Transform) cacheLocked(st *ingressState, pkt *packet.Packet) {
	seq := pkt.SequenceNumber()
	if _, ok := st.cache[seq]; ok {
		return
	}
	if len(st.order) >= mediaCacheSize {
		oldest := st.order[0]
		st.order = st.order[1:]
		if old, ok := st.cache[oldest]; ok {
			old.Release()
			delete(st.cache, oldest)
		}
	}
	st.cache[seq] = pkt.Clone()
	st.order = append(st.order, seq)
}

// Close releases all cached packets. Safe to call more than once.
func (t *Transform) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for ssrc, group := range t.egress {
		for _, m := range group.media {
			m.Release()
		}
		delete(t.egress, ssrc)
	}
	for ssrc, st := range t.ingress {
		for _, m := range st.cache {
			m.Release()
		}
		delete(t.ingress, ssrc)
	}
	return nil
}
