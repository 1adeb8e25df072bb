// Package decompress is the pluggable decompressor capability: one
// interface, one implementation per codec, selected by the
// superblock's compressor id at Probe time. The core package never
// imports a specific codec; it imports this package and asks for one
// by ID.
package decompress

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// ID mirrors the on-disk superblock compressor field.
type ID uint16

const (
	GZIP ID = 1 // historically named GZIP by the format; the wire encoding is zlib (RFC1950), not gzip (RFC1952).
	LZMA ID = 2
	LZO  ID = 3
	XZ   ID = 4
	LZ4  ID = 5
	ZSTD ID = 6
)

func (id ID) String() string {
	switch id {
	case GZIP:
		return "gzip"
	case LZMA:
		return "lzma"
	case LZO:
		return "lzo"
	case XZ:
		return "xz"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	}

	return "unknown"
}

// Codec decompresses one metadata chunk, data block, or fragment block
// at a time. dst is sized to the caller's known upper bound (8192 for
// metadata, the superblock's block size for data/fragment blocks);
// Decompress must not write past len(dst) and returns the number of
// decoded bytes actually produced.
type Codec interface {
	Decompress(dst, src []byte) (n int, err error)
}

var ErrUnsupportedCodec = fmt.Errorf("decompress: unsupported compressor")

// Get returns the Codec for a superblock compressor id. Only LZO has
// no Go decoder anywhere in this project's dependency pool; Get
// returns ErrUnsupportedCodec for it rather than fabricate one (see
// DESIGN.md).
func Get(id ID) (Codec, error) {
	switch id {
	case GZIP:
		return zlibCodec{}, nil
	case LZMA:
		return lzmaCodec{}, nil
	case XZ:
		return xzCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	case ZSTD:
		return zstdCodec{}, nil
	case LZO:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, id)
	}

	return nil, fmt.Errorf("%w: id %d", ErrUnsupportedCodec, id)
}

type zlibCodec struct{}

func (zlibCodec) Decompress(dst, src []byte) (int, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()

	return readFull(dst, r)
}

// lzmaCodec decodes the classic "LZMA_Alone" stream squashfs's legacy
// lzma compressor writes: a 13-byte header (properties byte plus
// dictionary size and uncompressed size fields) followed by the raw
// LZMA1 stream.
type lzmaCodec struct{}

func (lzmaCodec) Decompress(dst, src []byte) (int, error) {
	r, err := lzma.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("lzma: %w", err)
	}

	return readFull(dst, r)
}

// xzCodec decodes a full .xz container stream: the compression
// mksquashfs has defaulted to for years and the one most SquashFS
// images found in the wild actually use.
type xzCodec struct{}

func (xzCodec) Decompress(dst, src []byte) (int, error) {
	r, err := xz.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("xz: %w", err)
	}

	return readFull(dst, r)
}

type zstdCodec struct{}

func (zstdCodec) Decompress(dst, src []byte) (int, error) {
	d, err := zstd.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("zstd: %w", err)
	}
	defer d.Close()

	return readFull(dst, d)
}

type lz4Codec struct{}

func (lz4Codec) Decompress(dst, src []byte) (int, error) {
	r := lz4.NewReader(bytes.NewReader(src))

	return readFull(dst, r)
}

// readFull drains r into dst, returning an error only if r still
// has data once dst is full (dst is always sized to the format's
// documented upper bound, so that indicates a corrupt image, not an
// undersized buffer).
func readFull(dst []byte, r io.Reader) (int, error) {
	n := 0

	for n < len(dst) {
		m, err := r.Read(dst[n:])
		n += m

		if err != nil {
			if err == io.EOF {
				return n, nil
			}

			return n, err
		}
	}

	var probe [1]byte

	if m, _ := r.Read(probe[:]); m > 0 {
		return n, fmt.Errorf("decompress: decoded output exceeds %d-byte buffer", len(dst))
	}

	return n, nil
}
