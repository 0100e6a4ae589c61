package adb

import (
	"fmt"
	"io"
)

// State is the reconstruction phase of a Message.
type State int

const (
	AwaitingHeader State = iota
	AwaitingPayload
	Complete
	// Failed is entered when the header was rejected. The message cannot be reused.
	Failed
)

var stateNames = [...]string{
	AwaitingHeader:  "AwaitingHeader",
	AwaitingPayload: "AwaitingPayload",
	Complete:        "Complete",
	Failed:          "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Frame is the read side of a message.
type Frame interface {
	State() State
	// Header returns ok == false until the header has been decoded.
	Header() (Header, bool)
	// Payload returns ok == false until the message is Complete.
	Payload() ([]byte, bool)
}

// Appender is the write side of a message under reconstruction.
type Appender interface {
	State() State
	Append(chunk []byte) (int, error)
}

// Message is one ADB frame. The same type reassembles inbound frames from
// arbitrary chunks (NewMessage + Append) and carries outbound frames
// (Create). It is not safe for concurrent Append calls.
type Message struct {
	header      Header
	headerBuf   [HeaderSize]byte
	payload     []byte
	headerRead  int
	payloadRead int
	state       State
}

var (
	_ Frame    = (*Message)(nil)
	_ Appender = (*Message)(nil)
)

// NewMessage returns an empty message awaiting its header.
func NewMessage() *Message {
	return &Message{}
}

// Create builds a complete outbound message. The payload is copied.
func Create(cmd Command, arg0, arg1 uint32, payload []byte) *Message {
	data := make([]byte, len(payload))
	copy(data, payload)

	//nolint:gosec // G115: callers bound payloads by MaxDataLength; Validate rejects the rest
	m := &Message{
		header: Header{
			Command:    cmd,
			Arg0:       arg0,
			Arg1:       arg1,
			DataLength: uint32(len(data)),
			DataCrc32:  Checksum(data),
			Magic:      cmd.Magic(),
		},
		payload:     data,
		headerRead:  HeaderSize,
		payloadRead: len(data),
		state:       Complete,
	}
	m.header.Put(m.headerBuf[:])
	return m
}

// CreateString builds a message whose payload is text followed by a single
// NUL byte, the form ADB uses for service names and connection banners.
func CreateString(cmd Command, arg0, arg1 uint32, text string) *Message {
	payload := make([]byte, len(text)+1)
	copy(payload, text)
	return Create(cmd, arg0, arg1, payload)
}

// State returns the current reconstruction phase.
func (m *Message) State() State { return m.state }

// HeaderComplete reports whether all header bytes were consumed and accepted.
func (m *Message) HeaderComplete() bool {
	return m.state == AwaitingPayload || m.state == Complete
}

// PayloadComplete reports whether the header and then the full payload were consumed.
func (m *Message) PayloadComplete() bool { return m.state == Complete }

func (m *Message) Header() (Header, bool) {
	return m.header, m.HeaderComplete()
}

func (m *Message) Payload() ([]byte, bool) {
	if m.state != Complete {
		return nil, false
	}
	return m.payload, true
}

// Append consumes bytes from chunk into the header and then the payload,
// returning how many bytes were used. Bytes past the end of the frame are
// not consumed; the caller starts a new Message with them. A rejected
// header is returned immediately and leaves the message Failed.
func (m *Message) Append(chunk []byte) (int, error) {
	consumed := 0

	if m.state == Failed {
		return 0, ErrMessageFailed
	}

	if m.state == AwaitingHeader {
		n := copy(m.headerBuf[m.headerRead:], chunk)
		m.headerRead += n
		consumed += n

		if m.headerRead < HeaderSize {
			return consumed, nil
		}

		h, err := DecodeHeader(m.headerBuf[:])
		if err != nil {
			m.state = Failed
			return consumed, err
		}
		m.header = h
		m.payload = make([]byte, h.DataLength)
		m.payloadRead = 0
		m.state = AwaitingPayload
		if h.DataLength == 0 {
			m.state = Complete
		}
	}

	if m.state == AwaitingPayload && consumed < len(chunk) {
		n := copy(m.payload[m.payloadRead:], chunk[consumed:])
		m.payloadRead += n
		consumed += n
		if m.payloadRead == len(m.payload) {
			m.state = Complete
		}
	}

	return consumed, nil
}

// Bytes returns the serialized frame: header followed by payload.
func (m *Message) Bytes() []byte {
	buf := make([]byte, HeaderSize+len(m.payload))
	copy(buf, m.headerBuf[:])
	copy(buf[HeaderSize:], m.payload)
	return buf
}

// WriteTo writes the complete frame to w in a single Write call.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	if m.state != Complete {
		return 0, fmt.Errorf("write %s message: %w", m.state, ErrIncompleteWrite)
	}
	if err := m.header.Validate(); err != nil {
		return 0, err
	}
	n, err := w.Write(m.Bytes())
	if err != nil {
		return int64(n), &IncompleteWriteError{Err: err, Command: m.header.Command, Written: n}
	}
	return int64(n), nil
}

func (m *Message) String() string {
	if !m.HeaderComplete() {
		return fmt.Sprintf("<%s %d/%d header bytes>", m.state, m.headerRead, HeaderSize)
	}
	return fmt.Sprintf("%s(0x%08x, 0x%08x) len=%d",
		m.header.Command, m.header.Arg0, m.header.Arg1, m.header.DataLength)
}
