package pipeline

import (
	"github.com/opd-ai/rtpkit/packet"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Logger is an optional diagnostic stage with no behavioral effect: every
// packet passes through unchanged while a structured record of it is
// emitted at debug level. RTCP packets are decoded as compound packets,
// everything else as RTP.
type Logger struct {
	logger *logrus.Logger
}

// NewLogger creates a packet-logging sink writing to logger, or to the
// process-wide standard logger when logger is nil.
func NewLogger(logger *logrus.Logger) *Logger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Logger{logger: logger}
}

// Transform logs an egress packet and passes it through.
func (l *Logger) Transform(pkt *packet.Packet) *packet.Packet {
	l.log("out", pkt)
	return pkt
}

// ReverseTransform logs an ingress packet and passes it through.
func (l *Logger) ReverseTransform(pkt *packet.Packet) *packet.Packet {
	l.log("in", pkt)
	return pkt
}

func (l *Logger) log(direction string, pkt *packet.Packet) {
	if pkt == nil || !l.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	if pkt.IsRTCP() {
		kinds := make([]string, 0, 2)
		if decoded, err := rtcp.Unmarshal(pkt.Data()); err == nil {
			for _, p := range decoded {
				kinds = append(kinds, rtcpKind(p))
			}
		}
		l.logger.WithFields(logrus.Fields{
			"direction": direction,
			"size":      pkt.Len(),
			"rtcp":      kinds,
		}).Debug("RTCP packet")
		return
	}

	var parsed rtp.Packet
	if err := parsed.Unmarshal(pkt.Data()); err != nil {
		l.logger.WithFields(logrus.Fields{
			"direction": direction,
			"size":      pkt.Len(),
			"error":     err.Error(),
		}).Debug("Unparseable packet")
		return
	}
	l.logger.WithFields(logrus.Fields{
		"direction":    direction,
		"ssrc":         parsed.SSRC,
		"sequence":     parsed.SequenceNumber,
		"timestamp":    parsed.Timestamp,
		"payload_type": parsed.PayloadType,
		"marker":       parsed.Marker,
		"payload_size": len(parsed.Payload),
	}).Debug("RTP packet")
}

func rtcpKind(p rtcp.Packet) string {
	switch p.(type) {
	case *rtcp.SenderReport:
		return "SR"
	case *rtcp.ReceiverReport:
		return "RR"
	case *rtcp.SourceDescription:
		return "SDES"
	case *rtcp.Goodbye:
		return "BYE"
	case *rtcp.TransportLayerNack:
		return "NACK"
	case *rtcp.PictureLossIndication:
		return "PLI"
	default:
		return "RTCP"
	}
}

// Close is a no-op; the stage holds no resources.
func (l *Logger) Close() error {
	return nil
}
