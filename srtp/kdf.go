package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is the mandated SRTP auth primitive
	"fmt"
	"hash"
)

// Key sizes for the AES_CM_128_HMAC_SHA1_80 profile.
const (
	masterKeySize   = 16
	masterSaltSize  = 14
	sessionAuthSize = 20
	tagSize         = 10
)

// SRTP key derivation labels, RFC 3711 section 4.3.
const (
	labelCipherKey   = 0x00
	labelAuthKey     = 0x01
	labelSessionSalt = 0x02
)

// BlockCipherFactory builds the block cipher capability from a session
// key. The default is the standard library AES implementation.
type BlockCipherFactory func(key []byte) (cipher.Block, error)

// DigestFactory builds the digest capability used under HMAC for packet
// authentication. The default is SHA-1.
type DigestFactory func() hash.Hash

func defaultBlockCipher(key []byte) (cipher.Block, error) {
	return aes.NewCipher(key)
}

func defaultDigest() hash.Hash {
	return sha1.New() //nolint:gosec
}

// sessionKeys holds the output of the SRTP KDF for one crypto context.
type sessionKeys struct {
	cipherKey []byte
	authKey   []byte
	salt      []byte
}

// deriveSessionKeys runs the AES-CM key derivation of RFC 3711 section
// 4.3 with a zero key derivation rate: for each label, the master salt is
// XORed with the label at byte 7 and used as the counter-mode IV over a
// zero plaintext keyed by the master key.
func deriveSessionKeys(masterKey, masterSalt []byte, newCipher BlockCipherFactory) (*sessionKeys, error) {
	block, err := newCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("key derivation cipher: %w", err)
	}

	derive := func(label byte, n int) []byte {
		iv := make([]byte, block.BlockSize())
		copy(iv, masterSalt)
		iv[7] ^= label
		out := make([]byte, n)
		cipher.NewCTR(block, iv).XORKeyStream(out, out)
		return out
	}

	return &sessionKeys{
		cipherKey: derive(labelCipherKey, masterKeySize),
		authKey:   derive(labelAuthKey, sessionAuthSize),
		salt:      derive(labelSessionSalt, masterSaltSize),
	}, nil
}

// packetIV computes the 16-byte counter-mode IV for one packet: the
// session salt shifted into the high 14 bytes, XORed with the SSRC at
// bytes 4-7 and the 48-bit packet index at bytes 8-13, leaving the low 16
// bits as the block counter.
func packetIV(salt []byte, ssrc uint32, index uint64) [16]byte {
	var iv [16]byte
	copy(iv[:], salt)
	iv[4] ^= byte(ssrc >> 24)
	iv[5] ^= byte(ssrc >> 16)
	iv[6] ^= byte(ssrc >> 8)
	iv[7] ^= byte(ssrc)
	iv[8] ^= byte(index >> 40)
	iv[9] ^= byte(index >> 32)
	iv[10] ^= byte(index >> 24)
	iv[11] ^= byte(index >> 16)
	iv[12] ^= byte(index >> 8)
	iv[13] ^= byte(index)
	return iv
}
