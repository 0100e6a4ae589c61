package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bamsammich/adbwire/internal/adb"
)

// Collector tracks frame statistics for one direction of a connection using
// lock-free atomic counters. Per-command counts take a short lock.
type Collector struct {
	frames       atomic.Int64
	headerBytes  atomic.Int64
	payloadBytes atomic.Int64
	badChecksums atomic.Int64
	corrupt      atomic.Int64
	syncPackets  atomic.Int64
	startTime    time.Time

	mu       sync.Mutex
	commands map[adb.Command]int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		commands:  make(map[adb.Command]int64),
	}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Frames       int64
	HeaderBytes  int64
	PayloadBytes int64
	BadChecksums int64
	Corrupt      int64
	SyncPackets  int64
	Commands     map[adb.Command]int64
	Elapsed      time.Duration
}

// Observe records one complete frame.
func (c *Collector) Observe(f adb.Frame) {
	h, ok := f.Header()
	if !ok {
		return
	}
	payload, _ := f.Payload()

	c.frames.Add(1)
	c.headerBytes.Add(adb.HeaderSize)
	c.payloadBytes.Add(int64(len(payload)))
	// Newer peers send a zero checksum and skip verification.
	if h.DataCrc32 != 0 && !h.ChecksumValid(payload) {
		c.badChecksums.Add(1)
	}

	c.mu.Lock()
	c.commands[h.Command]++
	c.mu.Unlock()
}

// AddCorrupt counts a header that failed validation.
func (c *Collector) AddCorrupt() { c.corrupt.Add(1) }

// AddSyncPackets counts sync sub-protocol packets seen inside WRTE payloads.
func (c *Collector) AddSyncPackets(n int64) { c.syncPackets.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	cmds := make(map[adb.Command]int64, len(c.commands))
	for k, v := range c.commands {
		cmds[k] = v
	}
	c.mu.Unlock()

	return Snapshot{
		Frames:       c.frames.Load(),
		HeaderBytes:  c.headerBytes.Load(),
		PayloadBytes: c.payloadBytes.Load(),
		BadChecksums: c.badChecksums.Load(),
		Corrupt:      c.corrupt.Load(),
		SyncPackets:  c.syncPackets.Load(),
		Commands:     cmds,
		Elapsed:      c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// Throughput returns wire bytes per second since creation.
func (s Snapshot) Throughput() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.HeaderBytes+s.PayloadBytes) / secs
}

func (s Snapshot) String() string {
	names := make([]string, 0, len(s.Commands))
	for cmd, n := range s.Commands {
		names = append(names, fmt.Sprintf("%s=%d", cmd, n))
	}
	sort.Strings(names)

	return fmt.Sprintf(
		"frames=%d payload=%s bad_checksums=%d corrupt=%d sync=%d [%s]",
		s.Frames, FormatBytes(s.PayloadBytes), s.BadChecksums, s.Corrupt,
		s.SyncPackets, strings.Join(names, " "),
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
