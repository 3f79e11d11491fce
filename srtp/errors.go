package srtp

import "errors"

// Sentinel errors for SRTP processing. Per-packet failures are local to
// that packet and SSRC; callers classify them with errors.Is().
var (
	// ErrAuthenticationFailed indicates the authentication tag did not
	// match; the packet was tampered with or keyed differently.
	ErrAuthenticationFailed = errors.New("srtp: authentication tag mismatch")

	// ErrReplayFailed indicates the packet index was already seen or is
	// older than the replay window.
	ErrReplayFailed = errors.New("srtp: replayed or stale packet index")

	// ErrDecryptionFailed indicates payload decryption could not be
	// performed.
	ErrDecryptionFailed = errors.New("srtp: decryption failed")

	// ErrShortPacket indicates the packet is too small to carry an RTP
	// header and authentication tag.
	ErrShortPacket = errors.New("srtp: packet too short")
)

// Configuration errors.
var (
	// ErrInvalidKeyLength indicates the master key is not 16 bytes.
	ErrInvalidKeyLength = errors.New("srtp: master key must be 16 bytes")

	// ErrInvalidSaltLength indicates the master salt is not 14 bytes.
	ErrInvalidSaltLength = errors.New("srtp: master salt must be 14 bytes")

	// ErrClosed indicates the stage was closed and its key material
	// released.
	ErrClosed = errors.New("srtp: stage closed")
)
