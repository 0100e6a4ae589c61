package capture

import (
	"io"
	"sync"
)

// Recorder tees everything read through it into a capture sink. Recording
// failures never affect the reader; the first one is kept in Err and
// recording stops.
type Recorder struct {
	r    io.Reader
	sink io.Writer
	mu   sync.Mutex
	err  error
}

// NewRecorder returns a reader that copies r into sink as it is read.
func NewRecorder(r io.Reader, sink io.Writer) *Recorder {
	return &Recorder{r: r, sink: sink}
}

func (rec *Recorder) Read(p []byte) (int, error) {
	n, err := rec.r.Read(p)
	if n > 0 {
		rec.mu.Lock()
		if rec.err == nil {
			_, rec.err = rec.sink.Write(p[:n])
		}
		rec.mu.Unlock()
	}
	return n, err
}

// Err returns the first error writing to the sink.
func (rec *Recorder) Err() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.err
}
