package recorder

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressionType defines the compression algorithm to use
type CompressionType int

const (
	// NoCompression indicates no compression
	NoCompression CompressionType = iota
	// ZstdCompression indicates Zstandard compression
	ZstdCompression
)

// ArchiveSuffix marks zstd-compressed copies of trace logs.
const ArchiveSuffix = ".zst"

// NewCompressedWriter returns a writer that compresses data before writing
func NewCompressedWriter(w io.Writer, compressionType CompressionType) (io.Writer, error) {
	if compressionType == NoCompression {
		return w, nil
	}

	// Currently we only support Zstd
	return zstd.NewWriter(w)
}

// NewCompressedReader returns a reader that decompresses data after reading
func NewCompressedReader(r io.Reader, compressionType CompressionType) (io.Reader, error) {
	if compressionType == NoCompression {
		return r, nil
	}

	// Currently we only support Zstd
	return zstd.NewReader(r)
}

// CloseCompressedWriter closes the compressed writer if needed
func CloseCompressedWriter(w io.Writer, compressionType CompressionType) error {
	if compressionType == NoCompression {
		return nil
	}

	// Close the writer if it's a zstd writer
	if zw, ok := w.(*zstd.Encoder); ok {
		return zw.Close()
	}
	return nil
}

// CompressionFor picks the compression of a log from its file name.
func CompressionFor(path string) CompressionType {
	if strings.HasSuffix(path, ArchiveSuffix) {
		return ZstdCompression
	}
	return NoCompression
}

// ArchiveFile writes a zstd-compressed copy of src to dst. The source log
// is left untouched; trace logs are never truncated.
func ArchiveFile(src, dst string) (n int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := NewCompressedWriter(out, ZstdCompression)
	if err != nil {
		return 0, fmt.Errorf("create compressor: %w", err)
	}
	n, err = io.Copy(w, in)
	if err != nil {
		return n, err
	}
	return n, CloseCompressedWriter(w, ZstdCompression)
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenLog opens a trace log for reading, decompressing archived copies.
func OpenLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if CompressionFor(path) == NoCompression {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open archived log: %w", err)
	}
	return &readCloser{
		Reader:  dec,
		closers: []func() error{func() error { dec.Close(); return nil }, f.Close},
	}, nil
}
