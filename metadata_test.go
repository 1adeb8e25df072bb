package sqfsro

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/embedfs/sqfsro/decompress"
)

func TestChunkHeader(t *testing.T) {
	tests := []struct {
		name           string
		header         uint16
		wantCompressed bool
		wantLen        int
	}{
		{"compressed small", 0x0005, true, 5},
		{"uncompressed, top bit set", 0x8005, false, 5},
		{"max length compressed", 0x7fff, true, 0x7fff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := []byte{byte(tt.header), byte(tt.header >> 8)}

			compressed, storedLen, err := chunkHeader(buf, 0)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}

			if compressed != tt.wantCompressed {
				t.Errorf("compressed = %v, want %v", compressed, tt.wantCompressed)
			}

			if storedLen != tt.wantLen {
				t.Errorf("storedLen = %d, want %d", storedLen, tt.wantLen)
			}
		})
	}
}

func TestChunkHeaderOutOfRange(t *testing.T) {
	if _, _, err := chunkHeader([]byte{0x01}, 0); err == nil {
		t.Error("expected error for truncated header, got nil")
	}
}

func TestDecodeChunkUncompressed(t *testing.T) {
	payload := []byte("hello, squashfs")
	header := uint16(len(payload)) | 0x8000

	buf := append([]byte{byte(header), byte(header >> 8)}, payload...)

	scratch := make([]byte, maxChunkSize)

	decoded, next, err := decodeChunk(buf, 0, scratch, decompress.GZIP)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if string(scratch[:decoded]) != string(payload) {
		t.Errorf("decoded = %q, want %q", scratch[:decoded], payload)
	}

	if next != len(buf) {
		t.Errorf("next = %d, want %d", next, len(buf))
	}
}

func TestDecodeChunkCompressed(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")

	var compressed bytes.Buffer

	w := zlib.NewWriter(&compressed)
	w.Write(payload)
	w.Close()

	header := uint16(compressed.Len())

	buf := append([]byte{byte(header), byte(header >> 8)}, compressed.Bytes()...)

	scratch := make([]byte, maxChunkSize)

	decoded, _, err := decodeChunk(buf, 0, scratch, decompress.GZIP)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if string(scratch[:decoded]) != string(payload) {
		t.Errorf("decoded = %q, want %q", scratch[:decoded], payload)
	}
}
