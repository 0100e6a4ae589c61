package adb

import (
	"encoding/binary"
	"fmt"
)

// SyncHeaderSize is the size of the sync sub-header found inside WRTE payloads.
const SyncHeaderSize = 8

// SyncID is the 4-byte ASCII request or response tag of a sync packet.
type SyncID [4]byte

// Sync packet tags.
var (
	SyncSend = SyncID{'S', 'E', 'N', 'D'}
	SyncRecv = SyncID{'R', 'E', 'C', 'V'}
	SyncStat = SyncID{'S', 'T', 'A', 'T'}
	SyncList = SyncID{'L', 'I', 'S', 'T'}
	SyncDent = SyncID{'D', 'E', 'N', 'T'}
	SyncData = SyncID{'D', 'A', 'T', 'A'}
	SyncDone = SyncID{'D', 'O', 'N', 'E'}
	SyncOkay = SyncID{'O', 'K', 'A', 'Y'}
	SyncFail = SyncID{'F', 'A', 'I', 'L'}
	SyncQuit = SyncID{'Q', 'U', 'I', 'T'}
)

var knownSyncIDs = [...]SyncID{
	SyncSend, SyncRecv, SyncStat, SyncList, SyncDent,
	SyncData, SyncDone, SyncOkay, SyncFail, SyncQuit,
}

// Known reports whether id is one of the defined sync tags.
func (id SyncID) Known() bool {
	for _, k := range knownSyncIDs {
		if id == k {
			return true
		}
	}
	return false
}

func (id SyncID) String() string {
	for _, c := range id {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("%x", id[:])
		}
	}
	return string(id[:])
}

// SyncHeader prefixes every packet of the file sync protocol. Length is
// the size of the data that follows, or a mode/size field for some tags.
type SyncHeader struct {
	ID     SyncID
	Length uint32
}

// ParseSyncHeader reads a sync header from the start of b, which is
// normally the payload of a completed WRTE frame.
func ParseSyncHeader(b []byte) (SyncHeader, error) {
	if len(b) < SyncHeaderSize {
		return SyncHeader{}, fmt.Errorf("sync header: need %d bytes, got %d", SyncHeaderSize, len(b))
	}
	var h SyncHeader
	copy(h.ID[:], b[0:4])
	h.Length = binary.LittleEndian.Uint32(b[4:8])
	return h, nil
}

// Encode returns the wire form of h.
func (h SyncHeader) Encode() []byte {
	buf := make([]byte, SyncHeaderSize)
	copy(buf[0:4], h.ID[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Length)
	return buf
}

func (h SyncHeader) String() string {
	return fmt.Sprintf("%s len=%d", h.ID, h.Length)
}
