// Package rtpkit is a secure, reliable RTP/RTCP packet transport core: a
// pipeline of composable packet transforms applying SRTP encryption and
// authentication, FlexFEC loss mitigation, duplicate suppression and
// reorder buffering to every packet of a media session, plus a
// cooperative scheduler for periodic protocol tasks.
//
// A Session wires the transform stages into an egress pipeline
// [FEC, SRTP] and an ingress pipeline [dedup, SRTP, FEC, buffer]:
//
//	sess, err := rtpkit.NewSession(rtpkit.Config{
//	    MasterKey:        key,
//	    MasterSalt:       salt,
//	    ReplayProtection: true,
//	    Output:           func(p *packet.Packet) { conn.Write(p.Data()) },
//	    Deliver:          func(p *packet.Packet) { engine.Receive(p) },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	sess.Send(outgoing)    // media engine -> wire
//	sess.Receive(incoming) // wire -> media engine
//
// Dropping a packet anywhere in either pipeline is silent and normal;
// the contract is drop-and-continue, prioritizing stream liveness over
// strict delivery. Per-SSRC state in every stage is mutually independent,
// so Send and Receive may be called concurrently from multiple I/O
// goroutines.
//
// Periodic chores such as bandwidth estimation and RTCP reporting live
// outside this module; they register with the session's Executor, which
// drives them from a single lazily started goroutine.
package rtpkit

import (
	"sync"

	"github.com/opd-ai/rtpkit/buffer"
	"github.com/opd-ai/rtpkit/fec"
	"github.com/opd-ai/rtpkit/packet"
	"github.com/opd-ai/rtpkit/pipeline"
	"github.com/opd-ai/rtpkit/scheduler"
	"github.com/opd-ai/rtpkit/srtp"
	"github.com/sirupsen/logrus"
)

// Config assembles a Session. MasterKey and MasterSalt are required;
// everything else has working defaults.
type Config struct {
	// MasterKey is the 16-byte SRTP master key.
	MasterKey []byte

	// MasterSalt is the 14-byte SRTP master salt.
	MasterSalt []byte

	// ReplayProtection toggles the SRTP replay window.
	ReplayProtection bool

	// BufferCapacity bounds each per-SSRC reorder buffer. Non-positive
	// selects buffer.DefaultCapacity.
	BufferCapacity int

	// FECPayloadType identifies FlexFEC packets; zero disables FEC.
	FECPayloadType uint8

	// FECSSRC is the synchronization source of outgoing repair packets.
	FECSSRC uint32

	// FECGroupSize is the number of media packets protected per repair
	// packet. Non-positive selects fec.DefaultGroupSize.
	FECGroupSize int

	// PacketLog enables the diagnostic logging sink at the head of the
	// ingress pipeline. It has no behavioral effect.
	PacketLog bool

	// Output receives every protected egress packet ready for the wire.
	Output func(*packet.Packet)

	// Deliver receives every ingress packet released to the media engine.
	Deliver func(*packet.Packet)

	// BlockCipher and Digest override the SRTP crypto capabilities.
	BlockCipher srtp.BlockCipherFactory
	Digest      srtp.DigestFactory

	// Logger overrides the process-wide standard logger.
	Logger *logrus.Logger
}

// Session owns the egress and ingress transform pipelines of one media
// session and the executor driving its periodic tasks.
type Session struct {
	cfg Config

	egress  *pipeline.Pipeline
	ingress *pipeline.Pipeline

	srtpStage *srtp.Transform
	bufStage  *buffer.Transform
	executor  *scheduler.Executor

	closeOnce sync.Once
	closeErr  error
	logger    *logrus.Logger
}

// NewSession builds the transform pipelines from cfg.
func NewSession(cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	srtpStage, err := srtp.NewTransform(srtp.Config{
		MasterKey:        cfg.MasterKey,
		MasterSalt:       cfg.MasterSalt,
		ReplayProtection: cfg.ReplayProtection,
		BlockCipher:      cfg.BlockCipher,
		Digest:           cfg.Digest,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		srtpStage: srtpStage,
		bufStage:  buffer.NewTransform(cfg.BufferCapacity),
		executor:  scheduler.NewExecutor(),
		logger:    logger,
	}

	egressStages := []pipeline.Transformer{}
	ingressStages := []pipeline.Transformer{}
	if cfg.PacketLog {
		ingressStages = append(ingressStages, pipeline.NewLogger(logger))
	}
	ingressStages = append(ingressStages, pipeline.NewDedup(), srtpStage)

	if cfg.FECPayloadType != 0 {
		fecEgress := fec.NewTransform(fec.Config{
			PayloadType: cfg.FECPayloadType,
			SSRC:        cfg.FECSSRC,
			GroupSize:   cfg.FECGroupSize,
			OnRepair:    s.sendRepair,
		})
		fecIngress := fec.NewTransform(fec.Config{
			PayloadType: cfg.FECPayloadType,
			OnRecovered: s.deliverRecovered,
		})
		egressStages = append(egressStages, fecEgress)
		ingressStages = append(ingressStages, fecIngress)
	}

	egressStages = append(egressStages, srtpStage)
	ingressStages = append(ingressStages, s.bufStage)

	s.egress = pipeline.New(egressStages...)
	s.ingress = pipeline.New(ingressStages...)

	logger.WithFields(logrus.Fields{
		"replay_protection": cfg.ReplayProtection,
		"fec_enabled":       cfg.FECPayloadType != 0,
		"buffer_capacity":   cfg.BufferCapacity,
	}).Info("Created media transport session")
	return s, nil
}

// Send runs one egress packet through [FEC, SRTP] and hands the protected
// result to Output. Dropped packets are silently absorbed.
func (s *Session) Send(pkt *packet.Packet) {
	if out := s.egress.Transform(pkt); out != nil && s.cfg.Output != nil {
		s.cfg.Output(out)
	}
}

// Receive runs one ingress packet through [dedup, SRTP, FEC, buffer] and
// hands whatever the buffer releases to Deliver.
func (s *Session) Receive(pkt *packet.Packet) {
	if out := s.ingress.ReverseTransform(pkt); out != nil && s.cfg.Deliver != nil {
		s.cfg.Deliver(out)
	}
}

// Drain releases every packet still buffered for ssrc, in ascending
// circular order, to Deliver.
func (s *Session) Drain(ssrc uint32) {
	for _, pkt := range s.bufStage.Drain(ssrc) {
		if s.cfg.Deliver != nil {
			s.cfg.Deliver(pkt)
		} else {
			pkt.Release()
		}
	}
}

// Executor returns the session's task scheduler for bandwidth estimators
// and RTCP reporters to register with.
func (s *Session) Executor() *scheduler.Executor {
	return s.executor
}

// sendRepair protects a freshly built repair packet and sends it. Repair
// packets bypass the FEC stage so they are never FEC-protected again.
func (s *Session) sendRepair(repair *packet.Packet) {
	if out := s.srtpStage.Transform(repair); out != nil && s.cfg.Output != nil {
		s.cfg.Output(out)
	}
}

// deliverRecovered routes a late-recovered packet into the reorder buffer
// as if it had arrived on the wire.
func (s *Session) deliverRecovered(pkt *packet.Packet) {
	s.logger.WithFields(logrus.Fields{
		"ssrc":     pkt.SSRC(),
		"sequence": pkt.SequenceNumber(),
	}).Debug("Injecting late-recovered packet")
	if out := s.bufStage.ReverseTransform(pkt); out != nil && s.cfg.Deliver != nil {
		s.cfg.Deliver(out)
	}
}

// Close closes both pipelines, releasing buffered packets and zeroing key
// material. Safe to call more than once; callers must drain in-flight
// Send and Receive calls first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		egressErr := s.egress.Close()
		ingressErr := s.ingress.Close()
		if egressErr != nil {
			s.closeErr = egressErr
		} else {
			s.closeErr = ingressErr
		}
		s.logger.Info("Closed media transport session")
	})
	return s.closeErr
}
