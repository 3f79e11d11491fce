package buffer

const halfRange = 1 << 15

// SeqBefore reports whether sequence number a comes before b in circular
// 16-bit order. The comparison is only meaningful when the circular
// distance between a and b is less than 2^15; callers must keep their
// working set inside that window.
func SeqBefore(a, b uint16) bool {
	return a != b && b-a < halfRange
}

// SeqDelta returns the circular distance from a to b as a signed value in
// [-2^15, 2^15). Positive means b is ahead of a.
func SeqDelta(a, b uint16) int {
	d := int(b) - int(a)
	switch {
	case d < -halfRange:
		d += 1 << 16
	case d >= halfRange:
		d -= 1 << 16
	}
	return d
}
