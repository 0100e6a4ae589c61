package adb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrConnClosed is returned by Send once the connection has been closed.
var ErrConnClosed = errors.New("adb connection closed")

// Conn pairs one read loop with one shared Writer over a duplex transport.
// Decoded frames are delivered on Frames; interpreting stream IDs is left
// to the caller.
type Conn struct {
	rwc       io.ReadWriteCloser
	reader    *Reader
	writer    *Writer
	logger    *slog.Logger
	frames    chan *Message
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the logger used for frame tracing. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ConnOption {
	return func(c *Conn) { c.logger = l }
}

// WithReadBufferSize sets the transport read size.
func WithReadBufferSize(n int) ConnOption {
	return func(c *Conn) { c.reader = NewReaderSize(c.rwc, n) }
}

// WithFrameBuffer sets how many decoded frames may queue before the read
// loop blocks.
func WithFrameBuffer(n int) ConnOption {
	return func(c *Conn) { c.frames = make(chan *Message, n) }
}

// NewConn wraps rwc. Call Run to start reading.
func NewConn(rwc io.ReadWriteCloser, opts ...ConnOption) *Conn {
	c := &Conn{
		rwc:    rwc,
		reader: NewReader(rwc),
		writer: NewWriter(rwc),
		logger: slog.Default(),
		frames: make(chan *Message, 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Frames returns the channel of decoded frames. It is closed when Run returns.
func (c *Conn) Frames() <-chan *Message { return c.frames }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Run reads frames until the transport ends, ctx is cancelled, or a frame
// fails to decode. A clean end of stream or a local Close returns nil and
// cancellation returns ctx's error. Any other error is fatal and the
// connection is closed before returning.
func (c *Conn) Run(ctx context.Context) error {
	defer close(c.frames)

	stop := context.AfterFunc(ctx, func() {
		c.Close() //nolint:errcheck // unblocks the read loop
	})
	defer stop()

	for {
		m, err := c.reader.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return ctx.Err()
			default:
			}
			c.Close() //nolint:errcheck // already failing
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Warn("adb read failed", "error", err)
			return err
		}

		c.logger.Debug("adb recv", "frame", m.String())

		select {
		case c.frames <- m:
		case <-c.done:
			return ctx.Err()
		}
	}
}

// Send writes f through the connection's single writer. A write that may
// have left a partial frame on the wire closes the connection.
func (c *Conn) Send(ctx context.Context, f Frame) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	err := c.writer.WriteMessage(ctx, f)
	if err == nil {
		if h, ok := f.Header(); ok {
			c.logger.Debug("adb send", "command", h.Command.String(), "arg0", h.Arg0, "arg1", h.Arg1, "len", h.DataLength)
		}
		return nil
	}
	if errors.Is(err, ErrIncompleteWrite) {
		c.logger.Warn("adb write failed, closing connection", "error", err)
		c.Close() //nolint:errcheck // connection is unusable either way
	}
	return err
}

// Close closes the transport. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}
