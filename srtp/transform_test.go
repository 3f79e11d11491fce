package srtp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransform_InvalidConfig(t *testing.T) {
	_, err := NewTransform(Config{})
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestTransform_RoundTripThroughStage(t *testing.T) {
	egress, err := NewTransform(testConfig())
	require.NoError(t, err)
	defer egress.Close()
	ingress, err := NewTransform(testConfig())
	require.NoError(t, err)
	defer ingress.Close()

	pkt := rtpPacket(t, 0x4242, 1, []byte("hello"))
	protected := egress.Transform(pkt)
	require.NotNil(t, protected)

	out := ingress.ReverseTransform(protected)
	require.NotNil(t, out)
	assert.Equal(t, []byte("hello"), []byte(out.Payload()))
}

func TestTransform_DropsTamperedAndReportsFailure(t *testing.T) {
	egress, err := NewTransform(testConfig())
	require.NoError(t, err)
	ingress, err := NewTransform(testConfig())
	require.NoError(t, err)

	var mu sync.Mutex
	var failures []error
	ingress.OnFailure(func(ssrc uint32, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, uint32(0x4242), ssrc)
		failures = append(failures, err)
	})

	pkt := rtpPacket(t, 0x4242, 1, []byte("hello"))
	protected := egress.Transform(pkt)
	require.NotNil(t, protected)
	protected.Payload()[0] ^= 0x01

	assert.Nil(t, ingress.ReverseTransform(protected), "tampered packet silently dropped")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrAuthenticationFailed)
}

func TestTransform_PerSSRCContexts(t *testing.T) {
	egress, err := NewTransform(testConfig())
	require.NoError(t, err)
	ingress, err := NewTransform(testConfig())
	require.NoError(t, err)

	for _, ssrc := range []uint32{1, 2} {
		p := rtpPacket(t, ssrc, 10, []byte("x"))
		require.NotNil(t, egress.Transform(p))
		require.NotNil(t, ingress.ReverseTransform(p))
	}

	require.NotNil(t, ingress.Context(1))
	require.NotNil(t, ingress.Context(2))
	assert.Nil(t, ingress.Context(3), "context created lazily per SSRC")

	// A replay on one SSRC leaves the other's state untouched.
	fresh, err := NewTransform(testConfig())
	require.NoError(t, err)
	replay := fresh.Transform(rtpPacket(t, 1, 10, []byte("x")))
	require.NotNil(t, replay)
	assert.Nil(t, ingress.ReverseTransform(replay), "duplicate index rejected")
	assert.Equal(t, uint16(10), ingress.Context(2).HighestSequence())
}

func TestTransform_CloseIdempotent(t *testing.T) {
	tr, err := NewTransform(testConfig())
	require.NoError(t, err)
	require.NotNil(t, tr.Transform(rtpPacket(t, 9, 1, []byte("a"))))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

func TestTransform_ClosedStageDropsPackets(t *testing.T) {
	tr, err := NewTransform(testConfig())
	require.NoError(t, err)
	require.NotNil(t, tr.Transform(rtpPacket(t, 1, 1, []byte("a"))))
	require.NoError(t, tr.Close())

	var failures []error
	tr.OnFailure(func(_ uint32, err error) { failures = append(failures, err) })

	// No new contexts once the key material is wiped, known SSRC or not.
	assert.Nil(t, tr.Transform(rtpPacket(t, 1, 2, []byte("b"))))
	assert.Nil(t, tr.Transform(rtpPacket(t, 7, 1, []byte("c"))))
	assert.Nil(t, tr.ReverseTransform(rtpPacket(t, 7, 1, []byte("d"))))

	require.Len(t, failures, 3)
	for _, err := range failures {
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestTransform_CopiesMasterKeyMaterial(t *testing.T) {
	key := append([]byte(nil), testKey...)
	salt := append([]byte(nil), testSalt...)
	tr, err := NewTransform(Config{MasterKey: key, MasterSalt: salt})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	// Close wipes the stage's copy, never the caller's slices.
	assert.Equal(t, testKey, key)
	assert.Equal(t, testSalt, salt)
}

func TestTransform_NilPacket(t *testing.T) {
	tr, err := NewTransform(testConfig())
	require.NoError(t, err)
	assert.Nil(t, tr.Transform(nil))
	assert.Nil(t, tr.ReverseTransform(nil))
}
