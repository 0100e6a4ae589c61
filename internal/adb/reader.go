package adb

import (
	"errors"
	"fmt"
	"io"
)

// DefaultReadBufferSize is the size of a Reader's transport read buffer.
const DefaultReadBufferSize = 64 * 1024

// Reader reassembles frames from a byte stream. Reads from the transport
// may return any number of bytes; whatever follows the end of one frame is
// carried into the next. A Reader is owned by a single read loop.
type Reader struct {
	r       io.Reader
	buf     []byte
	tail    []byte // unconsumed part of buf
	readErr error  // transport error that arrived with tail
	err     error
}

// NewReader returns a Reader with a DefaultReadBufferSize buffer.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultReadBufferSize)
}

// NewReaderSize returns a Reader whose transport reads are at most size bytes.
func NewReaderSize(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	return &Reader{r: r, buf: make([]byte, size)}
}

// Buffered returns the number of bytes read from the transport but not yet
// consumed by a frame.
func (r *Reader) Buffered() int { return len(r.tail) }

// ReadMessage returns the next complete frame. It returns io.EOF when the
// stream ends cleanly between frames and io.ErrUnexpectedEOF when it ends
// mid-frame. Header validation errors are sticky: the stream cannot be
// resynchronized, so every later call returns the same error.
func (r *Reader) ReadMessage() (*Message, error) {
	if r.err != nil {
		return nil, r.err
	}

	m := NewMessage()
	for {
		if len(r.tail) > 0 {
			n, err := m.Append(r.tail)
			r.tail = r.tail[n:]
			if err != nil {
				r.err = err
				return nil, err
			}
			if m.PayloadComplete() {
				return m, nil
			}
		}

		if r.readErr != nil {
			err := r.readErr
			if errors.Is(err, io.EOF) {
				if m.headerRead > 0 {
					err = io.ErrUnexpectedEOF
				}
			} else {
				err = fmt.Errorf("read frame: %w", err)
			}
			r.err = err
			return nil, err
		}

		n, err := r.r.Read(r.buf)
		r.tail = r.buf[:n]
		r.readErr = err
	}
}
