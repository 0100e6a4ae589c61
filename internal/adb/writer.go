package adb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// WriteFlusher is implemented by sinks that buffer writes and need an
// explicit flush after each frame (bufio.Writer, compressed conns).
type WriteFlusher interface {
	Flush() error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Writer serializes frames onto one physical connection. Frames from any
// number of goroutines may be written concurrently; each frame's header and
// payload reach the sink contiguously.
//
// A write that fails or is cancelled part way may leave half a frame on the
// wire, so the Writer refuses all further writes after one. The owner must
// tear the connection down.
type Writer struct {
	w      io.Writer
	slot   chan struct{}
	broken atomic.Bool
}

// NewWriter creates the writer for one connection.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:    w,
		slot: make(chan struct{}, 1),
	}
}

// Broken reports whether a previous write failed.
func (w *Writer) Broken() bool { return w.broken.Load() }

// WriteMessage writes f as one frame. If ctx is done before the writer is
// free, nothing is written and ctx's error is returned. If the sink supports
// write deadlines, cancelling ctx interrupts a write in progress.
func (w *Writer) WriteMessage(ctx context.Context, f Frame) error {
	h, ok := f.Header()
	payload, pok := f.Payload()
	if !ok || !pok {
		return fmt.Errorf("write %s message: %w", f.State(), ErrIncompleteWrite)
	}
	if err := h.Validate(); err != nil {
		return fmt.Errorf("write %s: %w", h.Command, err)
	}
	if uint32(len(payload)) != h.DataLength { //nolint:gosec // G115: bounded by Validate above
		return fmt.Errorf("write %s: payload is %d bytes, header says %d", h.Command, len(payload), h.DataLength)
	}

	select {
	case w.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.slot }()

	if w.broken.Load() {
		return &IncompleteWriteError{Err: ErrWriterBroken, Command: h.Command}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, HeaderSize+len(payload))
	h.Put(buf)
	copy(buf[HeaderSize:], payload)

	var stop func() bool
	if d, ok := w.w.(writeDeadliner); ok {
		stop = context.AfterFunc(ctx, func() {
			_ = d.SetWriteDeadline(time.Now()) //nolint:errcheck // best-effort interrupt
		})
	}

	n, err := w.w.Write(buf)
	if err == nil {
		if fl, ok := w.w.(WriteFlusher); ok {
			err = fl.Flush()
		}
	}
	if stop != nil && !stop() {
		// The deadline was forced into the past; the sink is unusable even
		// if this write happened to finish.
		err = errors.Join(err, context.Cause(ctx))
	}
	if err != nil {
		w.broken.Store(true)
		return &IncompleteWriteError{Err: err, Command: h.Command, Written: n}
	}
	return nil
}
