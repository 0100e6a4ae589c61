package adb_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/bamsammich/adbwire/internal/adb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader(cmd adb.Command, arg0, arg1, length uint32) adb.Header {
	return adb.Header{
		Command:    cmd,
		Arg0:       arg0,
		Arg1:       arg1,
		DataLength: length,
		DataCrc32:  0x1234,
		Magic:      cmd.Magic(),
	}
}

func TestCommandValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cmd adb.Command
		tag string
	}{
		{adb.CmdSync, "SYNC"},
		{adb.CmdCnxn, "CNXN"},
		{adb.CmdOpen, "OPEN"},
		{adb.CmdOkay, "OKAY"},
		{adb.CmdClse, "CLSE"},
		{adb.CmdWrte, "WRTE"},
		{adb.CmdAuth, "AUTH"},
		{adb.CmdStls, "STLS"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, binary.LittleEndian.Uint32([]byte(tt.tag)), uint32(tt.cmd))
			assert.Equal(t, tt.tag, tt.cmd.String())
			assert.True(t, tt.cmd.Known())

			parsed, err := adb.ParseCommand("a_" + tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, parsed)
		})
	}
}

func TestCommandUnknown(t *testing.T) {
	t.Parallel()

	c := adb.Command(0xdeadbeef)
	assert.False(t, c.Known())
	assert.Equal(t, "0xdeadbeef", c.String())

	_, err := adb.ParseCommand("NOPE")
	assert.Error(t, err)
}

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		h    adb.Header
	}{
		{name: "cnxn", h: validHeader(adb.CmdCnxn, adb.ProtocolVersion, adb.MaxDataLength, 7)},
		{name: "empty okay", h: validHeader(adb.CmdOkay, 1, 2, 0)},
		{name: "max payload", h: validHeader(adb.CmdWrte, 0xffffffff, 0, adb.MaxDataLength)},
		{name: "unknown command", h: validHeader(adb.Command(0x01020304), 9, 9, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := tt.h.Encode()
			require.Len(t, raw, adb.HeaderSize)

			got, err := adb.DecodeHeader(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.h, got)
			assert.Equal(t, raw, got.Encode())
		})
	}
}

func TestHeaderFieldOrder(t *testing.T) {
	t.Parallel()

	h := adb.Header{Command: adb.CmdOpen, Arg0: 1, Arg1: 2, DataLength: 3, DataCrc32: 4, Magic: adb.CmdOpen.Magic()}
	raw := h.Encode()

	want := make([]byte, 0, adb.HeaderSize)
	for _, v := range []uint32{uint32(adb.CmdOpen), 1, 2, 3, 4, adb.CmdOpen.Magic()} {
		want = binary.LittleEndian.AppendUint32(want, v)
	}
	assert.Equal(t, want, raw)
	assert.True(t, bytes.HasPrefix(raw, []byte("OPEN")))
}

func TestDecodeHeaderWrongLength(t *testing.T) {
	t.Parallel()

	_, err := adb.DecodeHeader(make([]byte, adb.HeaderSize-1))
	assert.Error(t, err)
	_, err = adb.DecodeHeader(make([]byte, adb.HeaderSize+1))
	assert.Error(t, err)
}

func TestDecodeHeaderMagicMismatch(t *testing.T) {
	t.Parallel()

	h := validHeader(adb.CmdWrte, 1, 2, 4)
	h.Magic ^= 0x1
	got, err := adb.DecodeHeader(h.Encode())

	require.ErrorIs(t, err, adb.ErrCorruptHeader)
	assert.Equal(t, adb.Header{}, got)

	var corrupt *adb.CorruptHeaderError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, adb.CmdWrte, corrupt.Command)
	assert.Equal(t, h.Magic, corrupt.Magic)
}

func TestValidateOversized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		length    uint32
		wantLimit uint32
	}{
		{name: "one past max", length: adb.MaxDataLength + 1, wantLimit: adb.MaxDataLength},
		{name: "beyond int32", length: math.MaxInt32 + 1, wantLimit: math.MaxInt32},
		{name: "all ones", length: math.MaxUint32, wantLimit: math.MaxInt32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Bad magic too: the length check must win.
			h := validHeader(adb.CmdWrte, 0, 0, tt.length)
			h.Magic = 0
			err := h.Validate()

			require.ErrorIs(t, err, adb.ErrOversizedPayload)
			assert.NotErrorIs(t, err, adb.ErrCorruptHeader)

			var over *adb.OversizedPayloadError
			require.ErrorAs(t, err, &over)
			assert.Equal(t, tt.length, over.DataLength)
			assert.Equal(t, tt.wantLimit, over.Limit)
		})
	}
}

func TestChecksumValid(t *testing.T) {
	t.Parallel()

	payload := []byte("host::\x00")
	h := validHeader(adb.CmdCnxn, 0, 0, uint32(len(payload)))
	h.DataCrc32 = adb.Checksum(payload)
	assert.True(t, h.ChecksumValid(payload))

	h.DataCrc32 = 0
	assert.False(t, h.ChecksumValid(payload))
}
