package sqfsro

import (
	"io"

	"vimagination.zapto.org/byteio"
	"vimagination.zapto.org/memio"
)

// dirHeaderSize is {entry_count-1, start_block, base_inode_number},
// three u32 fields of a directory header.
const dirHeaderSize = 12

// DirEntry is one decoded directory entry, resolved eagerly to its
// target inode so callers get {name, type, size} from a single
// ReadDir call — no extra backing-store read is needed for that,
// since the whole inode table is already resident.
type DirEntry struct {
	Name        string
	Kind        InodeKind
	Size        int64
	InodeNumber uint32

	ref uint64
}

// dirWalkState is the directory-stream three-state machine.
type dirWalkState int

const (
	stateHeaderReady dirWalkState = iota
	stateEntry
	stateEnd
)

// DirStream is the runtime directory stream: the decompressed
// directory-table window for one directory, plus the cursor and
// counters the state machine advances. A DirStream owns no tables of
// its own — it borrows the Mount's resident inode and directory
// tables — so Close only needs to mark it exhausted.
type DirStream struct {
	mount *Mount

	window    []byte // the directory table bytes belonging to this directory's run
	pos       int
	remaining int64

	entriesLeftInRun uint32
	runBase          int32
	runStartBlock    uint32

	state dirWalkState
}

func (m *Mount) openDirStream(d DirInode) (*DirStream, error) {
	span := d.EntryTableBytes()

	if span == 0 {
		return &DirStream{mount: m, state: stateEnd}, nil
	}

	cursor, err := m.dirTable.cursor(uint64(d.startBlock)<<16 | uint64(d.offset))
	if err != nil {
		return nil, newErr("open_dir", KindInvalidArgument, err)
	}

	end := cursor + span
	if end > int64(len(m.dirTable.decoded)) {
		return nil, newErr("open_dir", KindIOError, errShortDirectoryTable)
	}

	ds := &DirStream{
		mount:     m,
		window:    m.dirTable.decoded[cursor:end],
		remaining: span,
		state:     stateHeaderReady,
	}

	return ds, nil
}

// ReadDir advances the state machine by exactly one entry and returns
// it, or io.EOF once the stream is exhausted.
func (d *DirStream) ReadDir() (DirEntry, error) {
	if d.state == stateEnd {
		return DirEntry{}, io.EOF
	}

	if d.state == stateHeaderReady {
		if d.remaining < dirHeaderSize {
			d.state = stateEnd

			return DirEntry{}, io.EOF
		}

		mb := memio.Buffer(d.window[d.pos:])
		ler := byteio.StickyLittleEndianReader{Reader: &mb}

		count := ler.ReadUint32()
		d.runStartBlock = ler.ReadUint32()
		base := ler.ReadUint32()
		d.runBase = int32(base)
		d.entriesLeftInRun = count + 1

		d.pos += dirHeaderSize
		d.remaining -= dirHeaderSize
		d.state = stateEntry
	}

	if d.remaining <= 0 {
		d.state = stateEnd

		return DirEntry{}, io.EOF
	}

	mb := memio.Buffer(d.window[d.pos:])
	ler := byteio.StickyLittleEndianReader{Reader: &mb}

	offset := ler.ReadUint16()
	delta := ler.ReadInt16()
	typ := ler.ReadUint16()
	nameLen := int(ler.ReadUint16()) + 1
	name := ler.ReadString(nameLen)

	if ler.Err != nil {
		d.state = stateEnd

		return DirEntry{}, io.EOF
	}

	entrySize := 8 + nameLen
	d.pos += entrySize
	d.remaining -= int64(entrySize)
	d.entriesLeftInRun--

	if d.entriesLeftInRun == 0 {
		d.state = stateHeaderReady
	}

	if d.remaining <= 0 {
		d.state = stateEnd
	}

	ref := uint64(d.runStartBlock)<<16 | uint64(offset)
	inodeNumber := uint32(d.runBase + int32(delta))

	inode, err := decodeInode(d.mount.inodeTable, ref, d.mount.superblock.BlockSize)
	if err != nil {
		return DirEntry{}, newErr("readdir", KindIOError, err)
	}

	var size int64
	if f, ok := inode.(RegInode); ok {
		size = f.Size()
	}

	return DirEntry{Name: name, Kind: InodeKind(typ), Size: size, InodeNumber: inodeNumber, ref: ref}, nil
}

// Close releases the stream's reference to the directory window. It
// never errors; the tables it borrows are owned by the Mount and are
// freed only when the Mount itself is closed.
func (d *DirStream) Close() error {
	d.state = stateEnd
	d.window = nil

	return nil
}
