// Package adb encodes, decodes and reassembles Android Debug Bridge
// transport frames.
package adb

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Command identifies the kind of a frame. On the wire it is four ASCII
// bytes read as a little-endian uint32.
type Command uint32

// Command codes.
const (
	CmdSync Command = 0x434e5953 // "SYNC"
	CmdCnxn Command = 0x4e584e43 // "CNXN"
	CmdOpen Command = 0x4e45504f // "OPEN"
	CmdOkay Command = 0x59414b4f // "OKAY"
	CmdClse Command = 0x45534c43 // "CLSE"
	CmdWrte Command = 0x45545257 // "WRTE"

	// Decoded for readability only; no auth or TLS handling is done here.
	CmdAuth Command = 0x48545541 // "AUTH"
	CmdStls Command = 0x534c5453 // "STLS"
)

const (
	// HeaderSize is the size of the fixed frame header: six uint32 fields.
	HeaderSize = 24

	// ProtocolVersion is sent as arg0 of CNXN.
	ProtocolVersion uint32 = 0x01000000

	// MaxDataLength is the largest payload a frame may carry (1 MiB).
	MaxDataLength uint32 = 0x100000

	magicMask uint32 = 0xFFFFFFFF
)

var knownCommands = [...]Command{CmdSync, CmdCnxn, CmdOpen, CmdOkay, CmdClse, CmdWrte, CmdAuth, CmdStls}

// Known reports whether c is one of the defined command codes.
func (c Command) Known() bool {
	for _, k := range knownCommands {
		if c == k {
			return true
		}
	}
	return false
}

// Magic returns the value the header's magic field must hold for c.
func (c Command) Magic() uint32 {
	return uint32(c) ^ magicMask
}

func (c Command) String() string {
	if !c.Known() {
		return fmt.Sprintf("0x%08x", uint32(c))
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(c))
	return string(b[:])
}

// ParseCommand maps a tag such as "CNXN", "cnxn" or "A_CNXN" to its Command.
func ParseCommand(s string) (Command, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	tag = strings.TrimPrefix(tag, "A_")
	for _, c := range knownCommands {
		if c.String() == tag {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}
