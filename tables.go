package sqfsro

import (
	"fmt"
	"sort"

	"github.com/embedfs/sqfsro/decompress"
	"github.com/embedfs/sqfsro/device"
)

// chunkPos is one entry of a table's position list: it pairs a
// metadata chunk's on-disk start offset (relative to the table's
// anchor, which is exactly what the high bits of an inode/directory
// reference carry) with the cumulative number of decoded bytes that
// precede it.
type chunkPos struct {
	srcOffset     int64
	decodedOffset int64
}

// table is a fully materialised metadata table: the inode table or the
// directory table, entirely decompressed into one contiguous buffer
// plus the position list needed to turn a reference into a cursor
// into that buffer.
type table struct {
	decoded   []byte
	positions []chunkPos
}

// countChunks walks the header-only structure of the metadata chunk
// chain covering src, without decompressing anything, and returns how
// many chunks it contains. This is a probe pass over the chunk chain
// before the real decode.
func countChunks(src []byte) (int, error) {
	n, offset := 0, 0

	for offset < len(src) {
		_, storedLen, err := chunkHeader(src, offset)
		if err != nil {
			return 0, err
		}

		offset += 2 + storedLen
		n++
	}

	if offset != len(src) {
		return 0, fmt.Errorf("metadata: chunk chain overruns table by %d bytes", offset-len(src))
	}

	return n, nil
}

// loadTable reads the on-disk byte range [start, end) in one
// backing-store read, counts the chunks it contains, allocates one
// buffer sized to the decompressed upper bound (count × 8192), and
// decodes every chunk into it sequentially, recording the position
// list as it goes. Used for both the inode table and the directory
// table.
func loadTable(d device.Device, codec decompress.ID, start, end uint64) (*table, error) {
	if end < start {
		return nil, fmt.Errorf("metadata: table range end %d precedes start %d", end, start)
	}

	size := int64(end - start)

	buf, intra, err := device.ReadBytes(d, int64(start), size)
	if err != nil {
		return nil, newErr("load_table", KindIOError, err)
	}

	src := buf[intra : intra+size]

	count, err := countChunks(src)
	if err != nil {
		return nil, newErr("load_table", KindIOError, err)
	}

	decoded := make([]byte, count*maxChunkSize)
	positions := make([]chunkPos, 0, count)

	var scratch [maxChunkSize]byte

	offset, decodedLen := 0, 0

	for i := 0; i < count; i++ {
		n, next, err := decodeChunk(src, offset, scratch[:], codec)
		if err != nil {
			return nil, newErr("load_table", KindIOError, err)
		}

		positions = append(positions, chunkPos{srcOffset: int64(offset), decodedOffset: int64(decodedLen)})
		copy(decoded[decodedLen:], scratch[:n])
		decodedLen += n
		offset = next
	}

	return &table{decoded: decoded[:decodedLen], positions: positions}, nil
}

// cursor resolves a 48-bit inode/directory reference (high 32 bits
// are the metadata chunk's start offset relative to the table anchor,
// low 16 bits are the intra-chunk byte offset) into a byte offset into
// t.decoded.
func (t *table) cursor(ref uint64) (int64, error) {
	chunkStart := int64(ref >> 16)
	intra := int64(ref & 0xffff)

	if intra > maxChunkSize {
		return 0, newErr("cursor", KindInvalidArgument, fmt.Errorf("intra-chunk offset %d exceeds %d", intra, maxChunkSize))
	}

	i := sort.Search(len(t.positions), func(i int) bool {
		return t.positions[i].srcOffset >= chunkStart
	})

	if i == len(t.positions) || t.positions[i].srcOffset != chunkStart {
		return 0, newErr("cursor", KindInvalidArgument, errPositionNotFound)
	}

	cursor := t.positions[i].decodedOffset + intra
	if cursor > int64(len(t.decoded)) {
		return 0, newErr("cursor", KindInvalidArgument, fmt.Errorf("cursor %d exceeds decoded table length %d", cursor, len(t.decoded)))
	}

	return cursor, nil
}
