package srtp

import (
	"sync"

	"github.com/opd-ai/rtpkit/packet"
	"github.com/sirupsen/logrus"
)

// FailureHandler observes per-packet SRTP failures after the packet has
// been dropped. Handlers must not block; they exist for metrics and tests.
type FailureHandler func(ssrc uint32, err error)

// Transform is the SRTP pipeline stage. It keeps one Context per SSRC and
// direction, created lazily on the first packet of each source, and drops
// any packet that fails protection or unprotection.
type Transform struct {
	cfg       Config
	onFailure FailureHandler

	mu      sync.Mutex
	egress  map[uint32]*Context
	ingress map[uint32]*Context
	closed  bool

	logger *logrus.Logger
}

// NewTransform validates cfg and creates the SRTP stage. The stage keeps
// its own copy of the master key and salt and wipes them on Close.
func NewTransform(cfg Config) (*Transform, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.MasterKey = append([]byte(nil), cfg.MasterKey...)
	cfg.MasterSalt = append([]byte(nil), cfg.MasterSalt...)
	return &Transform{
		cfg:     cfg,
		egress:  make(map[uint32]*Context),
		ingress: make(map[uint32]*Context),
		logger:  logrus.StandardLogger(),
	}, nil
}

// OnFailure installs a handler invoked for every dropped packet.
func (t *Transform) OnFailure(h FailureHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFailure = h
}

// Transform protects an egress packet in place, appending its tag.
// Returns nil if the packet cannot be protected.
func (t *Transform) Transform(pkt *packet.Packet) *packet.Packet {
	if pkt == nil {
		return nil
	}
	ctx, err := t.contextFor(pkt.SSRC(), t.egress)
	if err == nil {
		err = ctx.Protect(pkt)
	}
	if err != nil {
		t.drop(pkt, "protect", err)
		return nil
	}
	return pkt
}

// ReverseTransform unprotects an ingress packet in place, stripping its
// tag. Returns nil for tampered, replayed or malformed packets.
func (t *Transform) ReverseTransform(pkt *packet.Packet) *packet.Packet {
	if pkt == nil {
		return nil
	}
	ctx, err := t.contextFor(pkt.SSRC(), t.ingress)
	if err == nil {
		err = ctx.Unprotect(pkt)
	}
	if err != nil {
		t.drop(pkt, "unprotect", err)
		return nil
	}
	return pkt
}

// Context returns the ingress context for ssrc, or nil if no packet for
// that source has been processed yet.
func (t *Transform) Context(ssrc uint32) *Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ingress[ssrc]
}

func (t *Transform) contextFor(ssrc uint32, dir map[uint32]*Context) (*Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if ctx, ok := dir[ssrc]; ok {
		return ctx, nil
	}
	ctx, err := NewContext(ssrc, t.cfg)
	if err != nil {
		return nil, err
	}
	dir[ssrc] = ctx
	t.logger.WithFields(logrus.Fields{
		"ssrc": ssrc,
	}).Debug("Created SRTP crypto context")
	return ctx, nil
}

func (t *Transform) drop(pkt *packet.Packet, op string, err error) {
	ssrc := pkt.SSRC()
	t.logger.WithFields(logrus.Fields{
		"ssrc":      ssrc,
		"operation": op,
		"error":     err.Error(),
	}).Warn("Dropping packet after SRTP failure")

	t.mu.Lock()
	h := t.onFailure
	t.mu.Unlock()
	if h != nil {
		h(ssrc, err)
	}
	pkt.Release()
}

// Close zeroes the master key, master salt and the session keys of every
// context. Packets arriving afterwards are dropped. Safe to call more
// than once.
func (t *Transform) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for _, dir := range []map[uint32]*Context{t.egress, t.ingress} {
		for ssrc, ctx := range dir {
			ctx.Zero()
			delete(dir, ssrc)
		}
	}
	for _, b := range [][]byte{t.cfg.MasterKey, t.cfg.MasterSalt} {
		for i := range b {
			b[i] = 0
		}
	}
	return nil
}
