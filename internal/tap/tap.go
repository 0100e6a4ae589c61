// Package tap implements a decoding TCP proxy for ADB traffic. Every frame
// that crosses it is parsed, logged and counted, then re-encoded towards
// the other side.
package tap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bamsammich/adbwire/internal/adb"
	"github.com/bamsammich/adbwire/internal/capture"
	"github.com/bamsammich/adbwire/internal/dump"
	"github.com/bamsammich/adbwire/internal/stats"
)

// DefaultDialTimeout bounds the upstream connect for each session.
const DefaultDialTimeout = 10 * time.Second

// Config configures a Tap.
type Config struct {
	Logger     *slog.Logger
	ListenAddr string
	Upstream   string
	// RecordDir, if set, receives one zstd capture per direction per session.
	RecordDir   string
	Dump        dump.Options
	BWLimit     int64 // bytes/sec per session, 0 = unlimited
	DialTimeout time.Duration
}

// Tap accepts ADB clients and relays them to Upstream.
type Tap struct {
	listener net.Listener
	logger   *slog.Logger
	conns    map[net.Conn]struct{}
	cfg      Config
	mu       sync.Mutex
}

// New validates cfg and starts listening. Call Serve to accept sessions.
func New(cfg Config) (*Tap, error) {
	if cfg.Upstream == "" {
		return nil, errors.New("tap: upstream address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	return &Tap{
		listener: listener,
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
		cfg:      cfg,
	}, nil
}

// Addr returns the listener's address (useful when listening on :0).
func (t *Tap) Addr() net.Addr {
	return t.listener.Addr()
}

// Serve accepts sessions until ctx is cancelled, then closes every open
// session and waits for them to finish.
func (t *Tap) Serve(ctx context.Context) error {
	t.logger.Info("adb tap listening", "addr", t.listener.Addr(), "upstream", t.cfg.Upstream)

	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		t.listener.Close()
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			t.logger.Error("accept error", "error", err)
			continue
		}

		t.track(conn, true)
		wg.Go(func() {
			defer t.track(conn, false)
			t.handle(ctx, conn)
		})
	}

	wg.Wait()
	return nil
}

// Close stops accepting and drops every open session.
func (t *Tap) Close() error {
	err := t.listener.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn := range t.conns {
		conn.Close()
	}
	return err
}

func (t *Tap) track(conn net.Conn, add bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if add {
		t.conns[conn] = struct{}{}
	} else {
		delete(t.conns, conn)
	}
}

// session is one proxied client connection.
type session struct {
	id       string
	logger   *slog.Logger
	opts     dump.Options
	limiter  *rate.Limiter
	toServer *stats.Collector
	toClient *stats.Collector
}

func (t *Tap) handle(ctx context.Context, client net.Conn) {
	defer client.Close()

	s := &session{
		id:       uuid.NewString(),
		opts:     t.cfg.Dump,
		toServer: stats.NewCollector(),
		toClient: stats.NewCollector(),
	}
	s.logger = t.logger.With("session", s.id)
	if t.cfg.BWLimit > 0 {
		s.limiter = NewBWLimiter(t.cfg.BWLimit)
	}

	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	upstream, err := dialer.DialContext(ctx, "tcp", t.cfg.Upstream)
	if err != nil {
		s.logger.Error("dial upstream failed", "upstream", t.cfg.Upstream, "error", err)
		return
	}
	defer upstream.Close()

	s.logger.Info("session started", "client", client.RemoteAddr(), "upstream", upstream.RemoteAddr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		client.Close()
		upstream.Close()
	})
	defer stop()

	fromClient, closeC, err := t.source(ctx, s, client, "c2s")
	if err != nil {
		s.logger.Error("open capture failed", "error", err)
		return
	}
	defer closeC()
	fromServer, closeS, err := t.source(ctx, s, upstream, "s2c")
	if err != nil {
		s.logger.Error("open capture failed", "error", err)
		return
	}
	defer closeS()

	errCh := make(chan error, 2)
	go func() { errCh <- s.pump(ctx, "c2s", fromClient, adb.NewWriter(upstream), s.toServer) }()
	go func() { errCh <- s.pump(ctx, "s2c", fromServer, adb.NewWriter(client), s.toClient) }()

	// The first direction to finish ends the session.
	first := <-errCh
	cancel()
	<-errCh

	if first != nil && !errors.Is(first, context.Canceled) {
		s.logger.Warn("session failed", "error", first)
	}
	s.logger.Info("session closed",
		"c2s", s.toServer.Snapshot().String(),
		"s2c", s.toClient.Snapshot().String(),
	)
}

// source returns the reader for one direction, teeing it into a capture
// file when recording is enabled and throttling it when a limit is set.
func (t *Tap) source(ctx context.Context, s *session, conn net.Conn, dir string) (io.Reader, func(), error) {
	var r io.Reader = conn
	closeFn := func() {}

	if t.cfg.RecordDir != "" {
		path := filepath.Join(t.cfg.RecordDir, fmt.Sprintf("%s-%s.bin%s", s.id, dir, capture.CompressedExt))
		w, err := capture.Create(path)
		if err != nil {
			return nil, nil, err
		}
		rec := capture.NewRecorder(r, w)
		r = rec
		closeFn = func() {
			if err := rec.Err(); err != nil {
				s.logger.Warn("capture incomplete", "path", path, "error", err)
			}
			if err := w.Close(); err != nil {
				s.logger.Warn("close capture failed", "path", path, "error", err)
			}
		}
		s.logger.Debug("recording", "dir", dir, "path", path)
	}

	if s.limiter != nil {
		r = newRateLimitedReader(ctx, r, s.limiter)
	}
	return r, closeFn, nil
}

// pump decodes frames from src and re-encodes them on dst until src ends.
func (s *session) pump(ctx context.Context, dir string, src io.Reader, dst *adb.Writer, c *stats.Collector) error {
	r := adb.NewReader(src)
	for {
		m, err := r.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, adb.ErrCorruptHeader) || errors.Is(err, adb.ErrOversizedPayload) {
				c.AddCorrupt()
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s: %w", dir, err)
		}

		c.Observe(m)
		if _, ok := dump.SyncHeader(m); ok {
			c.AddSyncPackets(1)
		}
		s.logger.Info("frame", "dir", dir, "frame", dump.Describe(m, s.opts))

		if err := dst.WriteMessage(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s: %w", dir, err)
		}
	}
}
