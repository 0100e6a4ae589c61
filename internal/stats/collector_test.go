package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/adbwire/internal/adb"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 50
	const opsPerGoroutine = 200

	okay := adb.Create(adb.CmdOkay, 1, 2, nil)
	wrte := adb.CreateString(adb.CmdWrte, 1, 2, "0123456")

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.Observe(okay)
				c.Observe(wrte)
				c.AddCorrupt()
				c.AddSyncPackets(2)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, 2*expected, s.Frames)
	assert.Equal(t, 2*expected*adb.HeaderSize, s.HeaderBytes)
	assert.Equal(t, expected*8, s.PayloadBytes)
	assert.Equal(t, expected, s.Corrupt)
	assert.Equal(t, 2*expected, s.SyncPackets)
	assert.Equal(t, expected, s.Commands[adb.CmdOkay])
	assert.Equal(t, expected, s.Commands[adb.CmdWrte])
	assert.Zero(t, s.BadChecksums)
}

func TestObserveBadChecksum(t *testing.T) {
	c := NewCollector()

	h := adb.Header{Command: adb.CmdWrte, DataLength: 2, DataCrc32: 99, Magic: adb.CmdWrte.Magic()}
	m := adb.NewMessage()
	_, err := m.Append(append(h.Encode(), 1, 2))
	require.NoError(t, err)
	c.Observe(m)

	// Zero checksum is how newer peers opt out; not counted.
	h.DataCrc32 = 0
	m = adb.NewMessage()
	_, err = m.Append(append(h.Encode(), 1, 2))
	require.NoError(t, err)
	c.Observe(m)

	// Incomplete frames are ignored.
	c.Observe(adb.NewMessage())

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.Frames)
	assert.Equal(t, int64(1), s.BadChecksums)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		Frames:       3,
		PayloadBytes: 4096,
		BadChecksums: 1,
		Commands:     map[adb.Command]int64{adb.CmdWrte: 2, adb.CmdCnxn: 1},
	}
	expected := "frames=3 payload=4.0 KiB bad_checksums=1 corrupt=0 sync=0 [CNXN=1 WRTE=2]"
	assert.Equal(t, expected, s.String())
}

func TestSnapshotThroughput(t *testing.T) {
	s := Snapshot{HeaderBytes: 24, PayloadBytes: 76, Elapsed: 2 * time.Second}
	assert.InDelta(t, 50.0, s.Throughput(), 0.001)
	assert.Zero(t, Snapshot{}.Throughput())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, c.Elapsed(), 10*time.Millisecond)
	assert.Empty(t, c.Snapshot().Commands)
}
