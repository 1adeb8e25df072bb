package sqfsro

import (
	"fmt"

	"vimagination.zapto.org/byteio"
	"vimagination.zapto.org/memio"

	"github.com/embedfs/sqfsro/device"
)

// fragmentsPerChunk is how many 16-byte fragment entries a fully
// packed metadata chunk holds: 512 × 16 = 8192, the metadata chunk's
// decoded size ceiling.
const fragmentsPerChunk = 512

const fragmentEntrySize = 16

// fragmentEntry records where the shared fragment block for this
// index lives on disk, how large it is once compressed, and whether
// it's compressed at all.
type fragmentEntry struct {
	start      uint64
	size       uint32
	compressed bool
}

// compressedBitBlock: for both fragment entries and per-block data
// sizes, bit 24 being *set* means the block is stored uncompressed —
// the inverse of what the name "compressed bit" suggests, matching
// the on-disk convention (SQFS_COMPRESSED_BIT_BLOCK in u-boot's
// reader).
const compressedBitBlock = 1 << 24

func splitBlockSize(raw uint32) (size uint32, compressed bool) {
	return raw &^ compressedBitBlock, raw&compressedBitBlock == 0
}

// fragmentLookup resolves a fragment index to its on-disk descriptor
// by reading the fragment index table, then the one metadata chunk
// that holds this index's entry.
func (m *Mount) fragmentLookup(index uint32) (fragmentEntry, error) {
	if uint32(index) >= m.superblock.FragCount {
		return fragmentEntry{}, newErr("fragment_lookup", KindInvalidArgument, fmt.Errorf("fragment index %d out of range (%d fragments)", index, m.superblock.FragCount))
	}

	chunkIndex := index / fragmentsPerChunk
	entryIndex := index % fragmentsPerChunk

	pointerOffset := int64(m.superblock.FragTable) + int64(chunkIndex)*8

	buf, intra, err := device.ReadBytes(m.device, pointerOffset, 8)
	if err != nil {
		return fragmentEntry{}, newErr("fragment_lookup", KindIOError, err)
	}

	chunkStart := leUint64(buf[intra : intra+8])

	var scratch [maxChunkSize]byte

	decodedLen, err := readMetadataChunkAt(m.device, m.superblock.Compressor, int64(chunkStart), scratch[:])
	if err != nil {
		return fragmentEntry{}, newErr("fragment_lookup", KindIOError, err)
	}

	entryOffset := int(entryIndex) * fragmentEntrySize
	if entryOffset+fragmentEntrySize > decodedLen {
		return fragmentEntry{}, newErr("fragment_lookup", KindInvalidArgument, fmt.Errorf("fragment entry %d not present in its chunk", index))
	}

	mb := memio.Buffer(scratch[entryOffset : entryOffset+fragmentEntrySize])
	ler := byteio.StickyLittleEndianReader{Reader: &mb}

	start := ler.ReadUint64()
	rawSize := ler.ReadUint32()
	ler.ReadUint32() // unused

	size, compressed := splitBlockSize(rawSize)

	if ler.Err != nil {
		return fragmentEntry{}, newErr("fragment_lookup", KindIOError, ler.Err)
	}

	return fragmentEntry{start: start, size: size, compressed: compressed}, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}
