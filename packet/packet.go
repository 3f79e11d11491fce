package packet

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	// FixedHeaderSize is the size of the fixed RTP header in bytes.
	FixedHeaderSize = 12

	// defaultBufferSize is the backing buffer size handed out by the pool.
	// Large enough for any packet on a standard 1500-byte MTU path.
	defaultBufferSize = 1500

	rtpVersion = 2
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, defaultBufferSize)
		return &b
	},
}

// Packet is a mutable view over a backing buffer holding one RTP, RTCP or
// FlexFEC packet. The valid window is buf[offset : offset+length]; transforms
// mutate it in place.
type Packet struct {
	buf    []byte
	offset int
	length int
	pooled bool
}

// New returns an empty pooled packet with the requested length. The window
// starts at offset 0 and the contents are zeroed.
func New(length int) *Packet {
	bp := bufferPool.Get().(*[]byte)
	buf := *bp
	if length > len(buf) {
		buf = make([]byte, length)
	}
	for i := 0; i < length; i++ {
		buf[i] = 0
	}
	return &Packet{buf: buf, length: length, pooled: true}
}

// FromBytes copies data into a pooled buffer and returns a packet over it.
// The caller keeps ownership of data.
func FromBytes(data []byte) *Packet {
	p := New(len(data))
	copy(p.buf, data)
	return p
}

// Wrap creates a packet view directly over data without copying. The packet
// must not be released back to the pool; Release is a no-op for wrapped
// packets.
func Wrap(data []byte) *Packet {
	return &Packet{buf: data, length: len(data)}
}

// Release returns the backing buffer to the pool. The packet must not be
// used afterwards.
func (p *Packet) Release() {
	if !p.pooled {
		return
	}
	buf := p.buf
	p.buf = nil
	p.pooled = false
	if len(buf) >= defaultBufferSize {
		bufferPool.Put(&buf)
	}
}

// Clone returns an independent pooled copy of the packet window.
func (p *Packet) Clone() *Packet {
	return FromBytes(p.Data())
}

// Data returns the valid packet window. Mutations to the returned slice
// mutate the packet.
func (p *Packet) Data() []byte {
	return p.buf[p.offset : p.offset+p.length]
}

// Len returns the length of the valid window in bytes.
func (p *Packet) Len() int {
	return p.length
}

// SetLength shrinks or extends the window. Extending past the backing
// buffer reallocates, preserving existing contents.
func (p *Packet) SetLength(length int) {
	if p.offset+length > len(p.buf) {
		grown := make([]byte, p.offset+length)
		copy(grown, p.buf)
		p.buf = grown
		p.pooled = false
	}
	p.length = length
}

// Grow extends the window by n bytes and returns the newly valid tail.
func (p *Packet) Grow(n int) []byte {
	old := p.length
	p.SetLength(old + n)
	return p.buf[p.offset+old : p.offset+p.length]
}

// Validate checks the structural minimum for an RTP packet: the fixed
// header is present, the version field is 2, and the CSRC list plus any
// header extension fit inside the packet.
func (p *Packet) Validate() error {
	if p.length < FixedHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrTooShort, p.length)
	}
	if p.Version() != rtpVersion {
		return fmt.Errorf("%w: %d", ErrBadVersion, p.Version())
	}
	if hl := p.HeaderLength(); hl < 0 || hl > p.length {
		return fmt.Errorf("%w: header %d of %d bytes", ErrBadHeader, hl, p.length)
	}
	return nil
}

// Version returns the two-bit RTP version field.
func (p *Packet) Version() uint8 {
	return p.buf[p.offset] >> 6
}

// HasPadding reports whether the padding bit is set.
func (p *Packet) HasPadding() bool {
	return p.buf[p.offset]&0x20 != 0
}

// HasExtension reports whether the header extension bit is set.
func (p *Packet) HasExtension() bool {
	return p.buf[p.offset]&0x10 != 0
}

// CSRCCount returns the four-bit contributing-source count.
func (p *Packet) CSRCCount() int {
	return int(p.buf[p.offset] & 0x0f)
}

// Marker reports whether the marker bit is set.
func (p *Packet) Marker() bool {
	return p.buf[p.offset+1]&0x80 != 0
}

// PayloadType returns the seven-bit payload type.
func (p *Packet) PayloadType() uint8 {
	return p.buf[p.offset+1] & 0x7f
}

// SetPayloadType overwrites the payload type, preserving the marker bit.
func (p *Packet) SetPayloadType(pt uint8) {
	p.buf[p.offset+1] = p.buf[p.offset+1]&0x80 | pt&0x7f
}

// SequenceNumber returns the 16-bit RTP sequence number.
func (p *Packet) SequenceNumber() uint16 {
	return binary.BigEndian.Uint16(p.buf[p.offset+2:])
}

// SetSequenceNumber overwrites the sequence number in place.
func (p *Packet) SetSequenceNumber(seq uint16) {
	binary.BigEndian.PutUint16(p.buf[p.offset+2:], seq)
}

// Timestamp returns the 32-bit RTP timestamp.
func (p *Packet) Timestamp() uint32 {
	return binary.BigEndian.Uint32(p.buf[p.offset+4:])
}

// SetTimestamp overwrites the timestamp in place.
func (p *Packet) SetTimestamp(ts uint32) {
	binary.BigEndian.PutUint32(p.buf[p.offset+4:], ts)
}

// SSRC returns the 32-bit synchronization source identifier.
func (p *Packet) SSRC() uint32 {
	return binary.BigEndian.Uint32(p.buf[p.offset+8:])
}

// SetSSRC overwrites the SSRC in place.
func (p *Packet) SetSSRC(ssrc uint32) {
	binary.BigEndian.PutUint32(p.buf[p.offset+8:], ssrc)
}

// PaddingSize returns the number of trailing padding bytes, or zero when
// the padding bit is clear.
func (p *Packet) PaddingSize() int {
	if !p.HasPadding() || p.length == 0 {
		return 0
	}
	return int(p.buf[p.offset+p.length-1])
}

// HeaderLength returns the total RTP header length: the fixed header, the
// CSRC list and any header extension. Returns -1 when the extension length
// field lies outside the packet.
func (p *Packet) HeaderLength() int {
	hl := FixedHeaderSize + 4*p.CSRCCount()
	if p.HasExtension() {
		if hl+4 > p.length {
			return -1
		}
		words := int(binary.BigEndian.Uint16(p.buf[p.offset+hl+2:]))
		hl += 4 + 4*words
	}
	return hl
}

// Payload returns the RTP payload window, excluding header and padding.
func (p *Packet) Payload() []byte {
	hl := p.HeaderLength()
	end := p.length - p.PaddingSize()
	if hl < 0 || hl > end {
		return nil
	}
	return p.buf[p.offset+hl : p.offset+end]
}

// IsRTCP reports whether the packet looks like an RTCP packet rather than
// RTP. RTCP packet types 200-206 occupy the byte that RTP uses for the
// marker bit and payload type, and no RTP stream uses payload types 72-78.
func (p *Packet) IsRTCP() bool {
	if p.length < 2 {
		return false
	}
	pt := p.buf[p.offset+1]
	return pt >= 200 && pt <= 206
}
