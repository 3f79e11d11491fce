package packet

import "errors"

// Sentinel errors for packet validation.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrTooShort indicates the packet is smaller than the fixed RTP header.
	ErrTooShort = errors.New("packet shorter than fixed RTP header")

	// ErrBadVersion indicates the RTP version field is not 2.
	ErrBadVersion = errors.New("unsupported RTP version")

	// ErrBadHeader indicates the CSRC list or header extension claims more
	// bytes than the packet carries.
	ErrBadHeader = errors.New("header exceeds packet bounds")
)
