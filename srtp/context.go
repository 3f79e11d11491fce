package srtp

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/opd-ai/rtpkit/packet"
)

// replayWindowSize is the fixed number of packet indices the replay
// bitmask can distinguish behind the highest authenticated index.
const replayWindowSize = 64

const halfRange = 1 << 15

// Config configures SRTP contexts created by a Transform stage.
type Config struct {
	// MasterKey is the 16-byte SRTP master key.
	MasterKey []byte

	// MasterSalt is the 14-byte SRTP master salt.
	MasterSalt []byte

	// ReplayProtection toggles the per-context replay window.
	ReplayProtection bool

	// BlockCipher overrides the block cipher capability. Nil selects AES.
	BlockCipher BlockCipherFactory

	// Digest overrides the digest capability used under HMAC. Nil selects
	// SHA-1.
	Digest DigestFactory
}

func (c Config) validate() error {
	if len(c.MasterKey) != masterKeySize {
		return fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(c.MasterKey))
	}
	if len(c.MasterSalt) != masterSaltSize {
		return fmt.Errorf("%w: got %d", ErrInvalidSaltLength, len(c.MasterSalt))
	}
	return nil
}

func (c Config) blockCipher() BlockCipherFactory {
	if c.BlockCipher != nil {
		return c.BlockCipher
	}
	return defaultBlockCipher
}

func (c Config) digest() DigestFactory {
	if c.Digest != nil {
		return c.Digest
	}
	return defaultDigest
}

// Context is the SRTP crypto state for one SSRC: session keys, rollover
// counter, highest authenticated sequence number and replay window. A
// Context serializes its own access; distinct SSRCs never share state.
type Context struct {
	mu   sync.Mutex
	ssrc uint32

	block  cipher.Block
	keys   *sessionKeys
	digest DigestFactory

	roc        uint32
	highestSeq uint16
	primed     bool

	replayEnabled bool
	replayLatest  uint64 // highest authenticated packet index
	replayMask    uint64
}

// NewContext derives session keys for ssrc from the master key and salt
// and returns a fresh crypto context with ROC zero.
func NewContext(ssrc uint32, cfg Config) (*Context, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	keys, err := deriveSessionKeys(cfg.MasterKey, cfg.MasterSalt, cfg.blockCipher())
	if err != nil {
		return nil, err
	}
	block, err := cfg.blockCipher()(keys.cipherKey)
	if err != nil {
		return nil, fmt.Errorf("session cipher: %w", err)
	}
	return &Context{
		ssrc:          ssrc,
		block:         block,
		keys:          keys,
		digest:        cfg.digest(),
		replayEnabled: cfg.ReplayProtection,
	}, nil
}

// ROC returns the current rollover counter.
func (c *Context) ROC() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roc
}

// HighestSequence returns the highest authenticated sequence number.
func (c *Context) HighestSequence() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highestSeq
}

// Index returns the 48-bit packet index of the last accepted packet.
func (c *Context) Index() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(c.roc)<<16 | uint64(c.highestSeq)
}

// Protect encrypts pkt's payload in place, appends the authentication tag
// and advances the sender-side rollover counter. The packet must validate
// as RTP before protection.
func (c *Context) Protect(pkt *packet.Packet) error {
	if err := pkt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrShortPacket, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := pkt.SequenceNumber()
	if c.primed && seq < c.highestSeq && c.highestSeq-seq > halfRange {
		// Sequence number wrapped 65535 -> 0.
		c.roc++
	}
	c.highestSeq = seq
	c.primed = true
	index := uint64(c.roc)<<16 | uint64(seq)

	if err := c.crypt(pkt, index); err != nil {
		return err
	}

	tag := c.computeTag(pkt.Data(), c.roc)
	copy(pkt.Grow(tagSize), tag)
	return nil
}

// Unprotect verifies pkt's authentication tag, checks freshness against
// the replay window, decrypts the payload in place and strips the tag.
// On any failure the packet is untouched apart from the failed attempt's
// scratch work and no context state changes.
func (c *Context) Unprotect(pkt *packet.Packet) error {
	if pkt.Len() < packet.FixedHeaderSize+tagSize {
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, pkt.Len())
	}
	if err := pkt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrShortPacket, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := pkt.SequenceNumber()
	roc, index := c.estimateIndex(seq)

	if c.replayEnabled {
		if err := c.replayCheck(index); err != nil {
			return err
		}
	}

	data := pkt.Data()
	authed := data[:len(data)-tagSize]
	want := data[len(data)-tagSize:]
	got := c.computeTag(authed, roc)
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return ErrAuthenticationFailed
	}

	pkt.SetLength(pkt.Len() - tagSize)
	if err := c.crypt(pkt, index); err != nil {
		// Restore the tag so the caller sees the packet it passed in.
		pkt.SetLength(pkt.Len() + tagSize)
		return err
	}

	c.accept(roc, seq, index)
	return nil
}

// estimateIndex guesses the 48-bit index for seq per RFC 3711 appendix A:
// pick the ROC value (current, previous or next) whose resulting index is
// closest to the highest authenticated index.
func (c *Context) estimateIndex(seq uint16) (uint32, uint64) {
	roc := c.roc
	if c.primed {
		if c.highestSeq < halfRange {
			if int(seq)-int(c.highestSeq) > halfRange && roc > 0 {
				roc--
			}
		} else {
			if int(c.highestSeq)-halfRange > int(seq) {
				roc++
			}
		}
	}
	return roc, uint64(roc)<<16 | uint64(seq)
}

// replayCheck tests index against the replay window without updating it.
func (c *Context) replayCheck(index uint64) error {
	if index > c.replayLatest {
		return nil
	}
	delta := c.replayLatest - index
	if delta >= replayWindowSize {
		return fmt.Errorf("%w: index %d older than window", ErrReplayFailed, index)
	}
	if c.replayMask&(1<<delta) != 0 {
		return fmt.Errorf("%w: index %d already seen", ErrReplayFailed, index)
	}
	return nil
}

// accept commits state updates after a packet fully authenticated and
// decrypted: ROC, highest sequence and the replay window.
func (c *Context) accept(roc uint32, seq uint16, index uint64) {
	if roc > c.roc {
		c.roc = roc
		c.highestSeq = seq
		c.primed = true
	} else if roc == c.roc {
		if !c.primed || seq > c.highestSeq {
			c.highestSeq = seq
			c.primed = true
		}
	}

	if index > c.replayLatest {
		shift := index - c.replayLatest
		if shift < replayWindowSize {
			c.replayMask = c.replayMask<<shift | 1
		} else {
			c.replayMask = 1
		}
		c.replayLatest = index
	} else {
		c.replayMask |= 1 << (c.replayLatest - index)
	}
}

// crypt runs AES counter mode over the payload; encryption and decryption
// are the same operation.
func (c *Context) crypt(pkt *packet.Packet, index uint64) error {
	hl := pkt.HeaderLength()
	if hl < 0 || hl > pkt.Len() {
		return fmt.Errorf("%w: no payload window", ErrDecryptionFailed)
	}
	// The encrypted portion is everything after the header, padding
	// included.
	payload := pkt.Data()[hl:]
	if len(payload) == 0 {
		return nil
	}
	iv := packetIV(c.keys.salt, pkt.SSRC(), index)
	cipher.NewCTR(c.block, iv[:]).XORKeyStream(payload, payload)
	return nil
}

// computeTag computes the truncated HMAC over the packet bytes followed by
// the 32-bit ROC, RFC 3711 section 4.2.
func (c *Context) computeTag(data []byte, roc uint32) []byte {
	mac := hmac.New(c.digest, c.keys.authKey)
	mac.Write(data)
	var rocBytes [4]byte
	binary.BigEndian.PutUint32(rocBytes[:], roc)
	mac.Write(rocBytes[:])
	return mac.Sum(nil)[:tagSize]
}

// Zero wipes the session key material. The context must not be used
// afterwards.
func (c *Context) Zero() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range [][]byte{c.keys.cipherKey, c.keys.authKey, c.keys.salt} {
		for i := range b {
			b[i] = 0
		}
	}
}
