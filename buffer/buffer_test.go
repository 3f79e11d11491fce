package buffer

import (
	"testing"

	"github.com/opd-ai/rtpkit/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rtpWithSeq(seq uint16) *packet.Packet {
	p := packet.New(packet.FixedHeaderSize + 4)
	p.Data()[0] = 0x80
	p.SetSequenceNumber(seq)
	p.SetSSRC(0x1234)
	return p
}

func TestSeqBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b uint16
		want bool
	}{
		{"Adjacent ascending", 1, 2, true},
		{"Adjacent descending", 2, 1, false},
		{"Equal", 7, 7, false},
		{"Wraparound forward", 65535, 0, true},
		{"Wraparound backward", 0, 65535, false},
		{"Large forward gap within window", 100, 32000, true},
		{"Max distance just inside window", 0, 32767, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SeqBefore(tt.a, tt.b))
		})
	}
}

func TestSeqBefore_ConsistentAndTransitive(t *testing.T) {
	// Any triple drawn from a window narrower than 2^15 must order
	// consistently, including across the wrap.
	base := uint16(65000)
	window := []uint16{base, base + 100, base + 1000, base + 5000, base + 20000}

	for i, a := range window {
		for j, b := range window {
			if i == j {
				continue
			}
			assert.NotEqual(t, SeqBefore(a, b), SeqBefore(b, a),
				"antisymmetry for %d,%d", a, b)
		}
	}
	for i := 0; i < len(window)-2; i++ {
		assert.True(t, SeqBefore(window[i], window[i+1]))
		assert.True(t, SeqBefore(window[i+1], window[i+2]))
		assert.True(t, SeqBefore(window[i], window[i+2]), "transitivity")
	}
}

func TestSeqDelta(t *testing.T) {
	assert.Equal(t, 1, SeqDelta(65535, 0))
	assert.Equal(t, -1, SeqDelta(0, 65535))
	assert.Equal(t, 0, SeqDelta(42, 42))
	assert.Equal(t, -10, SeqDelta(110, 100))
}

func TestSsrcBuffer_EvictsOldestOverCapacity(t *testing.T) {
	buf := NewSsrcBuffer(3)

	require.Nil(t, buf.Insert(rtpWithSeq(5)))
	require.Nil(t, buf.Insert(rtpWithSeq(6)))
	require.Nil(t, buf.Insert(rtpWithSeq(7)))

	evicted := buf.Insert(rtpWithSeq(8))
	require.NotNil(t, evicted)
	assert.Equal(t, uint16(5), evicted.SequenceNumber())

	drained := buf.Empty()
	require.Len(t, drained, 3)
	assert.Equal(t, uint16(6), drained[0].SequenceNumber())
	assert.Equal(t, uint16(7), drained[1].SequenceNumber())
	assert.Equal(t, uint16(8), drained[2].SequenceNumber())
}

func TestSsrcBuffer_NeverExceedsCapacity(t *testing.T) {
	buf := NewSsrcBuffer(10)
	for seq := 0; seq < 200; seq++ {
		buf.Insert(rtpWithSeq(uint16(seq * 7 % 128))) // out of order
		assert.LessOrEqual(t, buf.Len(), 10)
	}
}

func TestSsrcBuffer_OrdersAcrossWraparound(t *testing.T) {
	buf := NewSsrcBuffer(8)
	for _, seq := range []uint16{65534, 1, 65535, 0, 2} {
		require.Nil(t, buf.Insert(rtpWithSeq(seq)))
	}

	drained := buf.Empty()
	require.Len(t, drained, 5)
	want := []uint16{65534, 65535, 0, 1, 2}
	for i, p := range drained {
		assert.Equal(t, want[i], p.SequenceNumber())
	}
}

func TestSsrcBuffer_DuplicateSequenceReturned(t *testing.T) {
	buf := NewSsrcBuffer(4)
	require.Nil(t, buf.Insert(rtpWithSeq(10)))

	dup := rtpWithSeq(10)
	assert.Same(t, dup, buf.Insert(dup))
	assert.Equal(t, 1, buf.Len())
}

func TestSsrcBuffer_DisableAndReset(t *testing.T) {
	buf := NewSsrcBuffer(4)
	require.Nil(t, buf.Insert(rtpWithSeq(1)))

	buf.Disable()
	assert.Nil(t, buf.Insert(rtpWithSeq(2)))
	assert.Equal(t, 1, buf.Len())

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	require.Nil(t, buf.Insert(rtpWithSeq(3)))
	assert.Equal(t, 1, buf.Len())
}

func TestTransform_PerSSRCIsolation(t *testing.T) {
	tr := NewTransform(2)
	defer tr.Close()

	a := rtpWithSeq(1)
	a.SetSSRC(0xaaaa)
	b := rtpWithSeq(1)
	b.SetSSRC(0xbbbb)

	assert.Nil(t, tr.ReverseTransform(a))
	assert.Nil(t, tr.ReverseTransform(b))
	assert.Equal(t, 1, tr.Buffer(0xaaaa).Len())
	assert.Equal(t, 1, tr.Buffer(0xbbbb).Len())

	drained := tr.Drain(0xaaaa)
	require.Len(t, drained, 1)
	assert.Equal(t, uint32(0xaaaa), drained[0].SSRC())
	assert.Nil(t, tr.Drain(0xcccc))
}

func TestTransform_DuplicateSequenceDropped(t *testing.T) {
	tr := NewTransform(4)
	defer tr.Close()

	first := rtpWithSeq(5)
	require.Nil(t, tr.ReverseTransform(first))

	// The duplicate must neither pass downstream nor displace the
	// buffered copy.
	assert.Nil(t, tr.ReverseTransform(rtpWithSeq(5)))
	assert.Equal(t, 1, tr.Buffer(0x1234).Len())

	drained := tr.Drain(0x1234)
	require.Len(t, drained, 1)
	assert.Same(t, first, drained[0])
}

func TestTransform_ClosedStageDropsPackets(t *testing.T) {
	tr := NewTransform(4)
	require.NoError(t, tr.Close())

	assert.Nil(t, tr.ReverseTransform(rtpWithSeq(1)))
	assert.Nil(t, tr.Buffer(0x1234), "no buffers created after close")
	assert.Nil(t, tr.Drain(0x1234))
}

func TestTransform_CloseIdempotent(t *testing.T) {
	tr := NewTransform(2)
	tr.ReverseTransform(rtpWithSeq(1))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}
