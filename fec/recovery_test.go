package fec

import (
	"testing"

	"github.com/opd-ai/rtpkit/packet"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mediaPacket(t *testing.T, ssrc uint32, seq uint16, marker bool, payload []byte) *packet.Packet {
	t.Helper()
	raw, err := (&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 3000,
			SSRC:           ssrc,
		},
		Payload: payload,
	}).Marshal()
	require.NoError(t, err)
	return packet.FromBytes(raw)
}

func TestRecover_ReconstructsMissingPacket(t *testing.T) {
	const ssrc = uint32(0xfeed)
	payloads := [][]byte{
		[]byte("first frame with some length"),
		[]byte("second"),
		[]byte("third frame"),
		[]byte("fourth frame, the longest of them all"),
	}

	media := make([]*packet.Packet, len(payloads))
	for i, pl := range payloads {
		media[i] = mediaPacket(t, ssrc, uint16(1000+i), i == 2, pl)
	}

	fecPayload, err := BuildRepair(ssrc, 1000, media)
	require.NoError(t, err)
	hdr, err := ReadHeader(fecPayload)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1000, 1001, 1002, 1003}, hdr.Protected)

	// Lose the marked packet and recover it.
	present := map[uint16]*packet.Packet{
		1000: media[0],
		1001: media[1],
		1003: media[3],
	}
	recovered, err := Recover(hdr, fecPayload, present)
	require.NoError(t, err)
	defer recovered.Release()

	lost := media[2]
	assert.Equal(t, lost.Data(), recovered.Data(), "bit-exact reconstruction")
	assert.Equal(t, uint16(1002), recovered.SequenceNumber())
	assert.True(t, recovered.Marker())
	assert.Equal(t, lost.Timestamp(), recovered.Timestamp())
	assert.Equal(t, []byte("third frame"), []byte(recovered.Payload()))
}

func TestRecover_RequiresExactlyOneMissing(t *testing.T) {
	const ssrc = uint32(0xfeed)
	media := []*packet.Packet{
		mediaPacket(t, ssrc, 1, false, []byte("a")),
		mediaPacket(t, ssrc, 2, false, []byte("b")),
		mediaPacket(t, ssrc, 3, false, []byte("c")),
	}
	fecPayload, err := BuildRepair(ssrc, 1, media)
	require.NoError(t, err)
	hdr, err := ReadHeader(fecPayload)
	require.NoError(t, err)

	all := map[uint16]*packet.Packet{1: media[0], 2: media[1], 3: media[2]}
	_, err = Recover(hdr, fecPayload, all)
	assert.ErrorIs(t, err, ErrNothingMissing)

	one := map[uint16]*packet.Packet{1: media[0]}
	_, err = Recover(hdr, fecPayload, one)
	assert.ErrorIs(t, err, ErrTooManyMissing)
}

func TestTransform_EgressEmitsRepairPerGroup(t *testing.T) {
	var repairs []*packet.Packet
	tr := NewTransform(Config{
		PayloadType: 115,
		SSRC:        0xfec0,
		GroupSize:   3,
		OnRepair:    func(p *packet.Packet) { repairs = append(repairs, p) },
	})
	defer tr.Close()

	for seq := uint16(50); seq < 56; seq++ {
		pkt := mediaPacket(t, 0xabc, seq, false, []byte("media"))
		assert.Same(t, pkt, tr.Transform(pkt), "media passes through unchanged")
	}

	require.Len(t, repairs, 2, "one repair per full group")
	repair := repairs[0]
	assert.Equal(t, uint8(115), repair.PayloadType())
	assert.Equal(t, uint32(0xfec0), repair.SSRC())

	hdr, err := ReadHeader(repair.Payload())
	require.NoError(t, err)
	assert.Equal(t, uint32(0xabc), hdr.ProtectedSSRC)
	assert.Equal(t, []uint16{50, 51, 52}, hdr.Protected)

	assert.Equal(t, repair.SequenceNumber()+1, repairs[1].SequenceNumber())
}

func TestTransform_IngressRecoversLossThroughStage(t *testing.T) {
	var repairs []*packet.Packet
	egress := NewTransform(Config{
		PayloadType: 115,
		SSRC:        0xfec0,
		GroupSize:   4,
		OnRepair:    func(p *packet.Packet) { repairs = append(repairs, p) },
	})
	defer egress.Close()
	ingress := NewTransform(Config{PayloadType: 115})
	defer ingress.Close()

	var sent []*packet.Packet
	for seq := uint16(10); seq < 14; seq++ {
		pkt := mediaPacket(t, 0x77, seq, false, []byte("payload"))
		sent = append(sent, pkt)
		egress.Transform(pkt)
	}
	require.Len(t, repairs, 1)

	// Deliver all media except seq 12, then the repair packet.
	for _, pkt := range sent {
		if pkt.SequenceNumber() == 12 {
			continue
		}
		assert.Same(t, pkt, ingress.ReverseTransform(pkt))
	}

	recovered := ingress.ReverseTransform(repairs[0])
	require.NotNil(t, recovered, "repair packet replaced by recovered media")
	assert.Equal(t, uint16(12), recovered.SequenceNumber())
	assert.Equal(t, uint32(0x77), recovered.SSRC())
	assert.Equal(t, []byte("payload"), []byte(recovered.Payload()))
}

func TestTransform_PendingFecRecoversOnLateMedia(t *testing.T) {
	var repairs, late []*packet.Packet
	egress := NewTransform(Config{
		PayloadType: 115,
		SSRC:        0xfec0,
		GroupSize:   3,
		OnRepair:    func(p *packet.Packet) { repairs = append(repairs, p) },
	})
	defer egress.Close()
	ingress := NewTransform(Config{
		PayloadType: 115,
		OnRecovered: func(p *packet.Packet) { late = append(late, p) },
	})
	defer ingress.Close()

	var sent []*packet.Packet
	for seq := uint16(0); seq < 3; seq++ {
		pkt := mediaPacket(t, 0x88, seq, false, []byte("x"))
		sent = append(sent, pkt)
		egress.Transform(pkt)
	}
	require.Len(t, repairs, 1)

	// Only the first packet arrives before the FEC packet: two missing,
	// so the FEC packet is held pending.
	require.NotNil(t, ingress.ReverseTransform(sent[0]))
	assert.Nil(t, ingress.ReverseTransform(repairs[0]))
	assert.Empty(t, late)

	// The late second packet completes the group; the third is recovered.
	require.NotNil(t, ingress.ReverseTransform(sent[1]))
	require.Len(t, late, 1)
	assert.Equal(t, uint16(2), late[0].SequenceNumber())
}

func TestTransform_DropsUnusableFec(t *testing.T) {
	tr := NewTransform(Config{PayloadType: 115})
	defer tr.Close()

	// FEC payload type but garbage payload.
	bogus := packet.New(packet.FixedHeaderSize + 4)
	bogus.Data()[0] = 0x80
	bogus.SetPayloadType(115)
	bogus.SetSSRC(0x99)
	assert.Nil(t, tr.ReverseTransform(bogus))
}
