package adb

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Header is the fixed 24-byte frame header. All fields are little-endian
// uint32 on the wire, in declaration order.
type Header struct {
	Command    Command
	Arg0       uint32
	Arg1       uint32
	DataLength uint32
	DataCrc32  uint32
	Magic      uint32
}

// DecodeHeader unpacks and validates a header. b must be exactly HeaderSize
// bytes. On validation failure the zero Header is returned with the error.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("decode header: need %d bytes, got %d", HeaderSize, len(b))
	}
	h := Header{
		Command:    Command(binary.LittleEndian.Uint32(b[0:4])),
		Arg0:       binary.LittleEndian.Uint32(b[4:8]),
		Arg1:       binary.LittleEndian.Uint32(b[8:12]),
		DataLength: binary.LittleEndian.Uint32(b[12:16]),
		DataCrc32:  binary.LittleEndian.Uint32(b[16:20]),
		Magic:      binary.LittleEndian.Uint32(b[20:24]),
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Put packs h into the first HeaderSize bytes of dst.
func (h Header) Put(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], uint32(h.Command))
	binary.LittleEndian.PutUint32(dst[4:8], h.Arg0)
	binary.LittleEndian.PutUint32(dst[8:12], h.Arg1)
	binary.LittleEndian.PutUint32(dst[12:16], h.DataLength)
	binary.LittleEndian.PutUint32(dst[16:20], h.DataCrc32)
	binary.LittleEndian.PutUint32(dst[20:24], h.Magic)
}

// Encode returns the wire form of h.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	h.Put(buf)
	return buf
}

// Validate checks the length bounds and then the magic field. It is used
// for both parsed and built headers.
func (h Header) Validate() error {
	if h.DataLength > math.MaxInt32 {
		return &OversizedPayloadError{DataLength: h.DataLength, Limit: math.MaxInt32}
	}
	if h.DataLength > MaxDataLength {
		return &OversizedPayloadError{DataLength: h.DataLength, Limit: MaxDataLength}
	}
	if h.Magic != h.Command.Magic() {
		return &CorruptHeaderError{Command: h.Command, Magic: h.Magic}
	}
	return nil
}

// ChecksumValid reports whether payload sums to the header's DataCrc32.
// Peers on newer protocol versions send zero here, so a mismatch is
// informational and never rejected by this package.
func (h Header) ChecksumValid(payload []byte) bool {
	return Checksum(payload) == h.DataCrc32
}
