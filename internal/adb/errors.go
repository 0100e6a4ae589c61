package adb

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptHeader means the magic field does not match the command; the
	// byte stream is out of sync and cannot be recovered.
	ErrCorruptHeader = errors.New("corrupt frame header")

	// ErrOversizedPayload means a header announced more payload than allowed.
	ErrOversizedPayload = errors.New("frame payload too large")

	// ErrIncompleteWrite means a frame may be partially on the wire.
	ErrIncompleteWrite = errors.New("incomplete frame write")

	// ErrMessageFailed is returned by Append on a message whose header was rejected.
	ErrMessageFailed = errors.New("message reconstruction already failed")

	// ErrWriterBroken is returned by a Writer after a failed or cancelled write.
	ErrWriterBroken = errors.New("connection writer is broken")
)

// CorruptHeaderError reports a magic mismatch.
type CorruptHeaderError struct {
	Command Command
	Magic   uint32
}

func (e *CorruptHeaderError) Error() string {
	return fmt.Sprintf("%s: command %s magic 0x%08x, want 0x%08x",
		ErrCorruptHeader, e.Command, e.Magic, e.Command.Magic())
}

func (e *CorruptHeaderError) Is(target error) bool { return target == ErrCorruptHeader }

// OversizedPayloadError reports a DataLength beyond Limit.
type OversizedPayloadError struct {
	DataLength uint32
	Limit      uint32
}

func (e *OversizedPayloadError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds %d", ErrOversizedPayload, e.DataLength, e.Limit)
}

func (e *OversizedPayloadError) Is(target error) bool { return target == ErrOversizedPayload }

// IncompleteWriteError wraps the cause of a failed frame write. Written is
// the number of frame bytes the sink accepted before failing.
type IncompleteWriteError struct {
	Err     error
	Command Command
	Written int
}

func (e *IncompleteWriteError) Error() string {
	return fmt.Sprintf("%s: %s after %d bytes: %v", ErrIncompleteWrite, e.Command, e.Written, e.Err)
}

func (e *IncompleteWriteError) Is(target error) bool { return target == ErrIncompleteWrite }

func (e *IncompleteWriteError) Unwrap() error { return e.Err }
