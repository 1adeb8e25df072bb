package sqfsro

import (
	"fmt"
	"math/bits"
	"time"

	"vimagination.zapto.org/byteio"
	"vimagination.zapto.org/memio"

	"github.com/embedfs/sqfsro/decompress"
	"github.com/embedfs/sqfsro/device"
)

const (
	magic        = 0x73717368 // "hsqs", little-endian on disk
	headerLength = 96
	versionMajor = 4
	versionMinor = 0
)

// superblock is the fixed-size handshake block at byte 0 of the
// image, plus the five absolute table anchors that everything else in
// the reader is expressed relative to.
type superblock struct {
	Inodes      uint32
	ModTime     time.Time
	BlockSize   uint32
	FragCount   uint32
	Compressor  decompress.ID
	Flags       uint16
	IDCount     uint16
	RootInode   uint64
	BytesUsed   uint64
	IDTable     uint64
	XattrTable  uint64
	InodeTable  uint64
	DirTable    uint64
	FragTable   uint64
	ExportTable uint64
}

// readSuperblock validates the magic number and the core invariants
// (power-of-two block size 4KiB-1MiB, known version, known compressor,
// ordered table anchors) and returns the parsed superblock. It never
// mutates any Mount state; the mount is cleared on failure by its
// caller.
func readSuperblock(d device.Device) (*superblock, error) {
	buf, intra, err := device.ReadBytes(d, 0, headerLength)
	if err != nil {
		return nil, newErr("probe", KindIOError, err)
	}

	mb := memio.Buffer(buf[intra:])
	ler := byteio.StickyLittleEndianReader{Reader: &mb}

	if got := ler.ReadUint32(); got != magic {
		return nil, newErr("probe", KindInvalidArgument, errInvalidMagicNumber)
	}

	var sb superblock

	sb.Inodes = ler.ReadUint32()
	sb.ModTime = time.Unix(int64(ler.ReadUint32()), 0)
	sb.BlockSize = ler.ReadUint32()
	sb.FragCount = ler.ReadUint32()
	sb.Compressor = decompress.ID(ler.ReadUint16())

	blockLog := ler.ReadUint16()
	if sb.BlockSize < minBlockSize || sb.BlockSize > maxBlockSize || 1<<blockLog != sb.BlockSize {
		return nil, newErr("probe", KindInvalidArgument, errInvalidBlockSize)
	}

	sb.Flags = ler.ReadUint16()
	sb.IDCount = ler.ReadUint16()

	major, minor := ler.ReadUint16(), ler.ReadUint16()
	if major != versionMajor || minor != versionMinor {
		return nil, newErr("probe", KindInvalidArgument, errInvalidVersion)
	}

	sb.RootInode = ler.ReadUint64()
	sb.BytesUsed = ler.ReadUint64()
	sb.IDTable = ler.ReadUint64()
	sb.XattrTable = ler.ReadUint64()
	sb.InodeTable = ler.ReadUint64()
	sb.DirTable = ler.ReadUint64()
	sb.FragTable = ler.ReadUint64()
	sb.ExportTable = ler.ReadUint64()

	if ler.Err != nil {
		return nil, newErr("probe", KindIOError, ler.Err)
	}

	if !(sb.InodeTable < sb.DirTable && sb.DirTable < sb.FragTable && sb.FragTable <= sb.ExportTable) {
		return nil, newErr("probe", KindInvalidArgument, fmt.Errorf("table anchors out of order"))
	}

	if _, err := decompress.Get(sb.Compressor); err != nil {
		return nil, newErr("probe", KindNotSupported, err)
	}

	return &sb, nil
}

const (
	minBlockSize = 1 << 12 // 4KiB
	maxBlockSize = 1 << 20 // 1MiB
)

// blockLogOf is the inverse of the on-disk block_log field, kept here
// purely so callers constructing test fixtures don't have to repeat
// the bit-twiddling the real encoder does.
func blockLogOf(blockSize uint32) uint16 {
	return uint16(bits.TrailingZeros32(blockSize))
}
