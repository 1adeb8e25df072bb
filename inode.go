package sqfsro

import (
	"fmt"
	"time"

	"vimagination.zapto.org/byteio"
	"vimagination.zapto.org/memio"
)

// InodeKind is the 16-bit type discriminant every inode record begins
// with. The extended ("L"-prefixed) variants carry 64-bit size/start
// fields for files and directories too large for 32-bit addressing.
type InodeKind uint16

const (
	KindDir       InodeKind = 1
	KindReg       InodeKind = 2
	KindSymlink   InodeKind = 3
	KindBlockDev  InodeKind = 4
	KindCharDev   InodeKind = 5
	KindFifo      InodeKind = 6
	KindSocket    InodeKind = 7
	KindLDir      InodeKind = 8
	KindLReg      InodeKind = 9
	KindLSymlink  InodeKind = 10
	KindLBlockDev InodeKind = 11
	KindLCharDev  InodeKind = 12
	KindLFifo     InodeKind = 13
	KindLSocket   InodeKind = 14
)

func (k InodeKind) String() string {
	switch k {
	case KindDir, KindLDir:
		return "dir"
	case KindReg, KindLReg:
		return "file"
	case KindSymlink, KindLSymlink:
		return "symlink"
	case KindBlockDev, KindLBlockDev:
		return "blockdev"
	case KindCharDev, KindLCharDev:
		return "chardev"
	case KindFifo, KindLFifo:
		return "fifo"
	case KindSocket, KindLSocket:
		return "socket"
	}

	return "unknown"
}

const noFragment = 0xffffffff

// base is the common prefix every inode record begins with.
type base struct {
	kind   InodeKind
	perm   uint16
	uidIdx uint16
	gidIdx uint16
	mtime  time.Time
	number uint32
}

// Inode is the sum type over every SquashFS inode variant this reader
// recognises. Callers switch on Kind() (or type-switch on the concrete
// variants below: DirInode, RegInode, SymlinkInode, OtherInode),
// without pulling in io/fs — nothing here needs a
// fs.FileMode.
type Inode interface {
	Kind() InodeKind
	Number() uint32
	ModTime() time.Time
}

func (b base) Kind() InodeKind    { return b.kind }
func (b base) Number() uint32     { return b.number }
func (b base) ModTime() time.Time { return b.mtime }

// DirInode is a directory inode (basic or extended).
type DirInode struct {
	base
	startBlock  uint32
	offset      uint16
	span        uint32 // on-disk fileSize field: directory-table byte span plus the 3-byte header overcount, see dirSpanOverhead
	linkCount   uint32
	parentInode uint32
}

// dirSpanOverhead is subtracted from a directory inode's stored
// fileSize to get the number of directory-table bytes actually
// belonging to this directory's entry run (the format counts the
// run's own 3-byte leading header fields into fileSize for historical
// reasons).
const dirSpanOverhead = 3

// EntryTableBytes is how many bytes of the directory table belong to
// this directory's run of headers+entries.
func (d DirInode) EntryTableBytes() int64 {
	if int64(d.span) < dirSpanOverhead {
		return 0
	}

	return int64(d.span) - dirSpanOverhead
}

// RegInode is a regular-file inode (basic or extended).
type RegInode struct {
	base
	blocksStart uint64
	fragIndex   uint32
	fragOffset  uint32
	size        uint64
	blockSizes  []uint32
}

func (f RegInode) Size() int64       { return int64(f.size) }
func (f RegInode) HasFragment() bool { return f.fragIndex != noFragment }

// SymlinkInode is a symlink inode (basic or extended).
type SymlinkInode struct {
	base
	target string
}

func (s SymlinkInode) Target() string { return s.target }

// OtherInode covers the device/fifo/socket families: recognised but
// not readable. Enough of the record is parsed to know its on-disk
// size (so table-walking code can skip past it correctly); Read/Size
// on a path resolving to one fails with not-supported.
type OtherInode struct {
	base
}

func decodeInode(t *table, ref uint64, blockSize uint32) (Inode, error) {
	cursor, err := t.cursor(ref)
	if err != nil {
		return nil, err
	}

	return decodeInodeAt(t.decoded, cursor, blockSize)
}

func decodeInodeAt(decoded []byte, cursor int64, blockSize uint32) (Inode, error) {
	mb := memio.Buffer(decoded[cursor:])
	ler := byteio.StickyLittleEndianReader{Reader: &mb}

	kind := InodeKind(ler.ReadUint16())

	b := base{
		kind:   kind,
		perm:   ler.ReadUint16(),
		uidIdx: ler.ReadUint16(),
		gidIdx: ler.ReadUint16(),
		mtime:  time.Unix(int64(ler.ReadUint32()), 0),
		number: ler.ReadUint32(),
	}

	var inode Inode

	switch kind {
	case KindDir:
		inode = decodeBasicDir(&ler, b)
	case KindLDir:
		inode = decodeExtDir(&ler, b)
	case KindReg:
		inode = decodeBasicReg(&ler, b, blockSize)
	case KindLReg:
		inode = decodeExtReg(&ler, b, blockSize)
	case KindSymlink, KindLSymlink:
		inode = decodeSymlink(&ler, b, kind == KindLSymlink)
	case KindBlockDev, KindCharDev, KindFifo, KindSocket,
		KindLBlockDev, KindLCharDev, KindLFifo, KindLSocket:
		inode = decodeOther(&ler, b, kind)
	default:
		return nil, newErr("decode_inode", KindInvalidArgument, fmt.Errorf("%w: %d", errUnknownInodeType, kind))
	}

	if ler.Err != nil {
		return nil, newErr("decode_inode", KindIOError, ler.Err)
	}

	return inode, nil
}

func decodeBasicDir(ler *byteio.StickyLittleEndianReader, b base) DirInode {
	return DirInode{
		base:        b,
		startBlock:  ler.ReadUint32(),
		linkCount:   ler.ReadUint32(),
		span:        uint32(ler.ReadUint16()),
		offset:      ler.ReadUint16(),
		parentInode: ler.ReadUint32(),
	}
}

func decodeExtDir(ler *byteio.StickyLittleEndianReader, b base) DirInode {
	d := DirInode{
		base:        b,
		linkCount:   ler.ReadUint32(),
		span:        ler.ReadUint32(),
		startBlock:  ler.ReadUint32(),
		parentInode: ler.ReadUint32(),
	}

	indexCount := ler.ReadUint16()
	d.offset = ler.ReadUint16()
	ler.ReadUint32() // xattr index, not read by this project (no xattr support)

	// The index entries accelerate large-directory lookup in mksquashfs's
	// own reader; this reader always walks the run linearly, so it only
	// needs to skip past them at the right width.
	for i := uint16(0); i < indexCount; i++ {
		ler.ReadUint32()                          // index
		ler.ReadUint32()                          // start
		ler.ReadString(int(ler.ReadUint32()) + 1) // name
	}

	return d
}

func blockCount(size uint64, fragIndex uint32, blockSize uint32) uint64 {
	if size == 0 {
		return 0
	}

	if fragIndex == noFragment {
		return (size + uint64(blockSize) - 1) / uint64(blockSize)
	}

	return size / uint64(blockSize)
}

func readBlockSizes(ler *byteio.StickyLittleEndianReader, n uint64) []uint32 {
	sizes := make([]uint32, n)
	for i := range sizes {
		sizes[i] = ler.ReadUint32()
	}

	return sizes
}

func decodeBasicReg(ler *byteio.StickyLittleEndianReader, b base, blockSize uint32) RegInode {
	f := RegInode{
		base: b,
	}

	f.blocksStart = uint64(ler.ReadUint32())
	f.fragIndex = ler.ReadUint32()
	f.fragOffset = ler.ReadUint32()
	f.size = uint64(ler.ReadUint32())
	f.blockSizes = readBlockSizes(ler, blockCount(f.size, f.fragIndex, blockSize))

	return f
}

func decodeExtReg(ler *byteio.StickyLittleEndianReader, b base, blockSize uint32) RegInode {
	f := RegInode{base: b}

	f.blocksStart = ler.ReadUint64()
	f.size = ler.ReadUint64()
	ler.ReadUint64() // sparse byte count, not tracked (no sparse-file support)
	ler.ReadUint32() // link count
	f.fragIndex = ler.ReadUint32()
	f.fragOffset = ler.ReadUint32()
	ler.ReadUint32() // xattr index
	f.blockSizes = readBlockSizes(ler, blockCount(f.size, f.fragIndex, blockSize))

	return f
}

func decodeSymlink(ler *byteio.StickyLittleEndianReader, b base, extended bool) SymlinkInode {
	s := SymlinkInode{base: b}

	ler.ReadUint32() // link count
	s.target = ler.ReadString(int(ler.ReadUint32()))

	if extended {
		ler.ReadUint32() // xattr index
	}

	return s
}

func decodeOther(ler *byteio.StickyLittleEndianReader, b base, kind InodeKind) OtherInode {
	ler.ReadUint32() // link count

	switch kind {
	case KindBlockDev, KindCharDev, KindLBlockDev, KindLCharDev:
		ler.ReadUint32() // device number
	}

	extended := kind == KindLBlockDev || kind == KindLCharDev || kind == KindLFifo || kind == KindLSocket
	if extended {
		ler.ReadUint32() // xattr index
	}

	return OtherInode{base: b}
}
