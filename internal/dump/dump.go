// Package dump renders ADB frames as one human-readable line each.
package dump

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/bamsammich/adbwire/internal/adb"
	"github.com/bamsammich/adbwire/internal/stats"
)

// DefaultPreview is the number of payload bytes shown by default.
const DefaultPreview = 32

// digestLen is the number of hex characters of the BLAKE3 digest shown.
const digestLen = 16

// Options controls frame rendering.
type Options struct {
	// Digest appends a truncated BLAKE3 digest of the payload, which makes
	// identical payloads easy to spot across captures.
	Digest bool
	// Preview is the number of payload bytes rendered; 0 disables the preview.
	Preview int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{Preview: DefaultPreview}
}

// PayloadDigest returns the truncated hex BLAKE3 digest of payload.
func PayloadDigest(payload []byte) string {
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])[:digestLen]
}

// SyncHeader returns the sync sub-header at the start of a WRTE payload,
// if the payload starts with a known sync tag.
func SyncHeader(f adb.Frame) (adb.SyncHeader, bool) {
	h, ok := f.Header()
	if !ok || h.Command != adb.CmdWrte {
		return adb.SyncHeader{}, false
	}
	payload, _ := f.Payload()
	sh, err := adb.ParseSyncHeader(payload)
	if err != nil || !sh.ID.Known() {
		return adb.SyncHeader{}, false
	}
	return sh, true
}

// Describe renders f on one line.
func Describe(f adb.Frame, opts Options) string {
	h, ok := f.Header()
	if !ok {
		return fmt.Sprintf("<%s>", f.State())
	}
	payload, _ := f.Payload()

	var b strings.Builder
	fmt.Fprintf(&b, "%-4s arg0=0x%08x arg1=0x%08x len=%d", h.Command, h.Arg0, h.Arg1, h.DataLength)

	switch {
	case h.DataCrc32 == 0 && len(payload) > 0:
		b.WriteString(" crc=none")
	case h.ChecksumValid(payload):
		b.WriteString(" crc=ok")
	default:
		fmt.Fprintf(&b, " crc=bad(0x%08x)", h.DataCrc32)
	}

	if sh, ok := SyncHeader(f); ok {
		fmt.Fprintf(&b, " sync=%s/%d", sh.ID, sh.Length)
	}
	if opts.Digest && len(payload) > 0 {
		fmt.Fprintf(&b, " blake3=%s", PayloadDigest(payload))
	}
	if opts.Preview > 0 && len(payload) > 0 {
		fmt.Fprintf(&b, " %q", Preview(payload, opts.Preview))
	}
	return b.String()
}

// Preview returns the first n bytes of payload with non-printable bytes
// replaced by '.', and "..." appended when truncated.
func Preview(payload []byte, n int) string {
	cut := payload
	if len(cut) > n {
		cut = cut[:n]
	}
	out := make([]byte, len(cut))
	for i, c := range cut {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		out[i] = c
	}
	if len(payload) > n {
		return string(out) + "..."
	}
	return string(out)
}

// Decode reads frames from r until end of stream and writes one line per
// frame to w, numbered from 1. It returns the statistics of what was read.
// A truncated trailing frame or a corrupt header stops decoding with an
// error; the statistics cover every frame before it.
func Decode(r io.Reader, w io.Writer, opts Options) (stats.Snapshot, error) {
	c := stats.NewCollector()
	fr := adb.NewReader(r)

	for i := 1; ; i++ {
		m, err := fr.ReadMessage()
		if errors.Is(err, io.EOF) {
			return c.Snapshot(), nil
		}
		if err != nil {
			if errors.Is(err, adb.ErrCorruptHeader) || errors.Is(err, adb.ErrOversizedPayload) {
				c.AddCorrupt()
			}
			return c.Snapshot(), fmt.Errorf("frame %d: %w", i, err)
		}

		c.Observe(m)
		if _, ok := SyncHeader(m); ok {
			c.AddSyncPackets(1)
		}
		if _, err := fmt.Fprintf(w, "%6d  %s\n", i, Describe(m, opts)); err != nil {
			return c.Snapshot(), err
		}
	}
}
