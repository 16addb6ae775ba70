package tarball

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/xi2/xz"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{'B', 'Z', 'h'}
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Decompress wraps a raw archive stream with whichever decompression
// it calls for, autodetected by magic bytes.  A stream matching none
// of the known magics is passed through unwrapped (it may be a bare
// tar).
func Decompress(reader io.Reader) (io.Reader, error) {
	buffered := bufio.NewReader(reader)
	peek, err := buffered.Peek(6)
	if err != nil && err != io.EOF {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(peek, gzipMagic):
		return gzip.NewReader(buffered)
	case bytes.HasPrefix(peek, bzip2Magic):
		return bzip2.NewReader(buffered), nil
	case bytes.HasPrefix(peek, xzMagic):
		return xz.NewReader(buffered, 0)
	default:
		return buffered, nil
	}
}
