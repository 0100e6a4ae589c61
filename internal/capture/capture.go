// Package capture reads and writes capture files: the raw byte stream of
// one direction of an ADB connection, optionally zstd-compressed.
package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt marks capture files that are zstd-compressed.
const CompressedExt = ".zst"

// IsCompressed reports whether path names a compressed capture.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedExt)
}

// fileWriter buffers writes to a capture file and compresses them when the
// path ends in CompressedExt.
type fileWriter struct {
	file    *os.File
	bw      *bufio.Writer
	encoder *zstd.Encoder
	w       io.Writer
}

// Create creates (or truncates) a capture file at path.
// The encoder uses level 1 (SpeedFastest) with single-threaded encoding.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}

	fw := &fileWriter{file: f, bw: bufio.NewWriterSize(f, 64*1024)}
	fw.w = fw.bw
	if IsCompressed(path) {
		enc, err := zstd.NewWriter(fw.bw,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		fw.encoder = enc
		fw.w = enc
	}
	return fw, nil
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	return fw.w.Write(p)
}

// Flush pushes buffered bytes to the file. With compression this emits a
// syncable zstd block, so a capture cut short by a crash decodes up to the
// last flush.
func (fw *fileWriter) Flush() error {
	if fw.encoder != nil {
		if err := fw.encoder.Flush(); err != nil {
			return err
		}
	}
	return fw.bw.Flush()
}

// Close finishes the zstd stream, flushes, and closes the file.
func (fw *fileWriter) Close() error {
	var err error
	if fw.encoder != nil {
		err = fw.encoder.Close()
	}
	if ferr := fw.bw.Flush(); err == nil {
		err = ferr
	}
	if cerr := fw.file.Close(); err == nil {
		err = cerr
	}
	return err
}

type fileReader struct {
	file    *os.File
	decoder *zstd.Decoder
	r       io.Reader
}

// Open opens a capture file for reading, decompressing it when the path
// ends in CompressedExt.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	fr := &fileReader{file: f, r: bufio.NewReaderSize(f, 64*1024)}
	if IsCompressed(path) {
		dec, err := zstd.NewReader(fr.r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		fr.decoder = dec
		fr.r = dec
	}
	return fr, nil
}

func (fr *fileReader) Read(p []byte) (int, error) {
	return fr.r.Read(p)
}

func (fr *fileReader) Close() error {
	if fr.decoder != nil {
		fr.decoder.Close()
	}
	return fr.file.Close()
}
