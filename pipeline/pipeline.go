package pipeline

import (
	"errors"
	"sync"

	"github.com/opd-ai/rtpkit/packet"
)

// Transformer is one stage of a packet pipeline. Transform processes an
// egress packet, ReverseTransform an ingress packet; both return the
// packet (possibly mutated in place) or nil to silently drop it. Close
// releases key material and other per-stage resources and must be
// idempotent.
type Transformer interface {
	Transform(*packet.Packet) *packet.Packet
	ReverseTransform(*packet.Packet) *packet.Packet
	Close() error
}

// Pipeline is an ordered list of transform stages. It holds no state
// beyond stage order.
type Pipeline struct {
	stages    []Transformer
	closeOnce sync.Once
	closeErr  error
}

// New creates a pipeline running stages in the given order for both
// Transform and ReverseTransform. Build separate pipelines for egress and
// ingress when their orders differ.
func New(stages ...Transformer) *Pipeline {
	return &Pipeline{stages: stages}
}

// Transform runs pkt through every stage in order. Returns nil as soon as
// any stage drops the packet.
func (p *Pipeline) Transform(pkt *packet.Packet) *packet.Packet {
	for _, stage := range p.stages {
		if pkt == nil {
			return nil
		}
		pkt = stage.Transform(pkt)
	}
	return pkt
}

// ReverseTransform runs pkt through every stage in order. Returns nil as
// soon as any stage drops the packet.
func (p *Pipeline) ReverseTransform(pkt *packet.Packet) *packet.Packet {
	for _, stage := range p.stages {
		if pkt == nil {
			return nil
		}
		pkt = stage.ReverseTransform(pkt)
	}
	return pkt
}

// Close closes every stage exactly once, joining their errors. Subsequent
// calls return the first result.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		for _, stage := range p.stages {
			if err := stage.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}
