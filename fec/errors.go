package fec

import "errors"

// Sentinel errors for FEC header processing. All of them lead to a
// conservative drop of the offending packet, never a crash.
var (
	// ErrHeaderTooShort indicates the FEC payload is smaller than the
	// 20-byte minimum header.
	ErrHeaderTooShort = errors.New("fec: header shorter than 20 bytes")

	// ErrRetransmission indicates the retransmission bit is set, which
	// this codec does not support.
	ErrRetransmission = errors.New("fec: retransmission bit set")

	// ErrInflexibleMask indicates the mask-type bit announces a
	// non-flexible mask, which this codec does not support.
	ErrInflexibleMask = errors.New("fec: non-flexible mask")

	// ErrMultiSSRC indicates the packet protects more than one SSRC.
	ErrMultiSSRC = errors.New("fec: only single-SSRC protection supported")

	// ErrNoContinuationBit indicates no mask tier terminates the mask.
	ErrNoContinuationBit = errors.New("fec: missing mask continuation bit")

	// ErrMaskTooLong indicates a protected sequence delta above 108,
	// which no mask tier can represent.
	ErrMaskTooLong = errors.New("fec: sequence delta exceeds 108")

	// ErrNothingProtected indicates an empty protected set.
	ErrNothingProtected = errors.New("fec: no protected sequence numbers")

	// ErrSeqBeforeBase indicates a protected sequence number circularly
	// before the base sequence number.
	ErrSeqBeforeBase = errors.New("fec: protected sequence before base")
)

// Recovery errors.
var (
	// ErrNothingMissing indicates every protected packet is present, so
	// there is nothing to recover.
	ErrNothingMissing = errors.New("fec: no protected packet missing")

	// ErrTooManyMissing indicates more than one protected packet is
	// absent; XOR recovery needs exactly one.
	ErrTooManyMissing = errors.New("fec: more than one protected packet missing")
)
