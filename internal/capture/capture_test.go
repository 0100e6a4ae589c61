package capture_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/bamsammich/adbwire/internal/adb"
	"github.com/bamsammich/adbwire/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStream() []byte {
	var buf bytes.Buffer
	buf.Write(adb.CreateString(adb.CmdCnxn, adb.ProtocolVersion, adb.MaxDataLength, "host::").Bytes())
	buf.Write(adb.Create(adb.CmdWrte, 1, 2, bytes.Repeat([]byte("abc"), 10000)).Bytes())
	return buf.Bytes()
}

func TestCaptureRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
	}{
		{name: "raw", file: "out.bin"},
		{name: "compressed", file: "out.bin.zst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), tt.file)
			data := sampleStream()

			w, err := capture.Create(path)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := capture.Open(path)
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestCaptureFramesDecode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "frames.zst")
	w, err := capture.Create(path)
	require.NoError(t, err)
	_, err = w.Write(sampleStream())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := capture.Open(path)
	require.NoError(t, err)
	defer r.Close()

	fr := adb.NewReader(r)
	var cmds []adb.Command
	for {
		m, err := fr.ReadMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		h, _ := m.Header()
		cmds = append(cmds, h.Command)
	}
	assert.Equal(t, []adb.Command{adb.CmdCnxn, adb.CmdWrte}, cmds)
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := capture.Open(filepath.Join(t.TempDir(), "nope.zst"))
	assert.Error(t, err)
}

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRecorder(t *testing.T) {
	t.Parallel()

	data := sampleStream()
	var sink bytes.Buffer
	rec := capture.NewRecorder(bytes.NewReader(data), &sink)

	got, err := io.ReadAll(rec)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, data, sink.Bytes())
	assert.NoError(t, rec.Err())

	rec = capture.NewRecorder(bytes.NewReader(data), failingSink{})
	got, err = io.ReadAll(rec)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.EqualError(t, rec.Err(), "disk full")
}
