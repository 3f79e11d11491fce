// Package srtp implements per-source SRTP protection: counter-mode
// encryption of the RTP payload, a truncated HMAC authentication tag, and
// replay protection, per RFC 3711 with the AES_CM_128_HMAC_SHA1_80
// profile.
//
// A Context holds the state for one (SSRC, profile) pair: session keys and
// salt derived from the master key with the standard SRTP KDF labels, the
// rollover counter (ROC), the highest authenticated sequence number, and a
// fixed 64-entry replay bitmask. The ROC is estimated from the delta
// between an arriving sequence number and the highest seen so far; a large
// negative delta implies a 16-bit wraparound and advances the counter,
// while stale packets within half-range tolerance never walk it backwards.
// The ROC is monotonically non-decreasing.
//
// The underlying block cipher and digest are opaque capabilities injected
// through Config; the defaults are the standard library's AES block cipher
// and SHA-1 under HMAC. Contexts are created lazily by the Transform stage
// on the first packet of each SSRC:
//
//	cfg := srtp.Config{MasterKey: key, MasterSalt: salt, ReplayProtection: true}
//	stage, err := srtp.NewTransform(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// egress: stage.Transform(pkt)  ingress: stage.ReverseTransform(pkt)
//
// Unprotect failures are classified into distinct sentinel errors
// (authentication, replay, decryption) and never mutate context state, so
// a flood of tampered packets cannot desynchronize a stream, and a failure
// on one SSRC never touches another's state.
package srtp
