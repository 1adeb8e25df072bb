package sqfsro

import (
	"fmt"

	"github.com/embedfs/sqfsro/decompress"
	"github.com/embedfs/sqfsro/device"
)

// maxChunkSize is the decompressed-size ceiling every metadata chunk
// obeys.
const maxChunkSize = 1 << 13

// chunkHeader reads the 16-bit header at buf[offset] and reports
// whether the payload that follows is stored compressed, and how many
// bytes it occupies on disk. It never reads past buf.
func chunkHeader(buf []byte, offset int) (compressed bool, storedLen int, err error) {
	if offset < 0 || offset+2 > len(buf) {
		return false, 0, fmt.Errorf("metadata: chunk header at %d out of range (buf len %d)", offset, len(buf))
	}

	header := uint16(buf[offset]) | uint16(buf[offset+1])<<8
	storedLen = int(header & 0x7fff)
	compressed = header&0x8000 == 0

	return compressed, storedLen, nil
}

// decodeChunk takes the on-disk chunk at buf[offset:], either
// decompresses storedLen bytes into scratch or copies them verbatim,
// and returns the number of decoded bytes plus the offset of the next
// chunk's header in buf. scratch must be at
// least maxChunkSize long; decodeChunk never writes past the decoded
// length it returns.
func decodeChunk(buf []byte, offset int, scratch []byte, codec decompress.ID) (decoded, nextOffset int, err error) {
	compressed, storedLen, err := chunkHeader(buf, offset)
	if err != nil {
		return 0, 0, err
	}

	payloadStart := offset + 2
	payloadEnd := payloadStart + storedLen

	if payloadEnd > len(buf) {
		return 0, 0, fmt.Errorf("metadata: chunk payload [%d,%d) exceeds buffer of length %d", payloadStart, payloadEnd, len(buf))
	}

	payload := buf[payloadStart:payloadEnd]

	if !compressed {
		if len(payload) > len(scratch) {
			return 0, 0, errChunkTooLarge
		}

		n := copy(scratch, payload)

		return n, payloadEnd, nil
	}

	c, err := decompress.Get(codec)
	if err != nil {
		return 0, 0, err
	}

	n, err := c.Decompress(scratch, payload)
	if err != nil {
		return 0, 0, fmt.Errorf("metadata: decompress chunk at %d: %w", offset, err)
	}

	if n > maxChunkSize {
		return 0, 0, errChunkTooLarge
	}

	return n, payloadEnd, nil
}

// readMetadataChunkAt reads and decodes the single metadata chunk that
// starts at the given absolute device offset, without knowing its end
// in advance: it first reads just the 2-byte header to learn the
// stored length, then re-reads exactly that many bytes. fragmentLookup
// uses it, since a fragment index-table entry names a lone chunk rather
// than a whole table with a known byte range.
func readMetadataChunkAt(d device.Device, codec decompress.ID, offset int64, scratch []byte) (decoded int, err error) {
	headerBuf, headerIntra, err := device.ReadBytes(d, offset, 2)
	if err != nil {
		return 0, err
	}

	_, storedLen, err := chunkHeader(headerBuf[headerIntra:], 0)
	if err != nil {
		return 0, err
	}

	buf, intra, err := device.ReadBytes(d, offset, int64(2+storedLen))
	if err != nil {
		return 0, err
	}

	decoded, _, err = decodeChunk(buf[intra:], 0, scratch, codec)

	return decoded, err
}
