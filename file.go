package sqfsro

import (
	"fmt"

	"github.com/embedfs/sqfsro/decompress"
	"github.com/embedfs/sqfsro/device"
)

// readFile walks a regular file's data blocks in order, decompressing
// or copying each one, then appends the fragment tail (the portion of
// the file too small to deserve its own block, shared with other
// small files in one packed fragment block) when the inode has one.
// offset places the result within dst (dst is the caller's
// destination buffer, not a file position — every read starts at byte
// 0 of the file); length, when non-zero, truncates the read early and
// must not exceed the file's size.
func (m *Mount) readFile(f RegInode, dst []byte, offset, length int64) (int, error) {
	size := f.Size()

	if length < 0 || offset < 0 {
		return 0, newErr("read", KindInvalidArgument, fmt.Errorf("negative offset or length"))
	}

	if length > size {
		return 0, newErr("read", KindInvalidArgument, fmt.Errorf("requested length %d exceeds file size %d", length, size))
	}

	want := size
	if length != 0 {
		want = length
	}

	if offset+want > int64(len(dst)) {
		return 0, newErr("read", KindInvalidArgument, fmt.Errorf("destination buffer too small for offset %d + length %d", offset, want))
	}

	out := dst[offset : offset+want]
	written := int64(0)

	dataOffset := int64(f.blocksStart)

	for _, raw := range f.blockSizes {
		if written >= want {
			return int(written), nil
		}

		storedSize, compressed := splitBlockSize(raw)

		n, err := m.readDataBlock(dataOffset, int64(storedSize), compressed, out[written:])
		if err != nil {
			return int(written), err
		}

		written += int64(n)
		dataOffset += int64(storedSize)
	}

	if written >= want {
		return int(written), nil
	}

	if !f.HasFragment() {
		return int(written), nil
	}

	tail, err := m.readFragmentTail(f, want-written)
	if err != nil {
		return int(written), err
	}

	written += int64(copy(out[written:], tail))

	return int(written), nil
}

// readDataBlock reads and, if needed, decompresses exactly one regular
// data block, writing at most len(out) decoded bytes into out. storedSize
// is the block's on-disk size (already stripped of the compressed-bit
// convention via splitBlockSize).
func (m *Mount) readDataBlock(start, storedSize int64, compressed bool, out []byte) (int, error) {
	if storedSize == 0 {
		return 0, nil
	}

	buf, intra, err := device.ReadBytes(m.device, start, storedSize)
	if err != nil {
		return 0, newErr("read", KindIOError, err)
	}

	payload := buf[intra : intra+storedSize]

	if !compressed {
		return copy(out, payload), nil
	}

	c, err := decompress.Get(m.superblock.Compressor)
	if err != nil {
		return 0, newErr("read", KindNotSupported, err)
	}

	scratch := make([]byte, m.superblock.BlockSize)

	n, err := c.Decompress(scratch, payload)
	if err != nil {
		return 0, newErr("read", KindIOError, fmt.Errorf("decompress data block at %d: %w", start, err))
	}

	return copy(out, scratch[:n]), nil
}

// readFragmentTail returns up to need bytes of a file's fragment
// portion, starting at its stored fragOffset within the shared
// fragment block.
func (m *Mount) readFragmentTail(f RegInode, need int64) ([]byte, error) {
	entry, err := m.fragmentLookup(f.fragIndex)
	if err != nil {
		return nil, err
	}

	buf, intra, err := device.ReadBytes(m.device, int64(entry.start), int64(entry.size))
	if err != nil {
		return nil, newErr("read", KindIOError, err)
	}

	payload := buf[intra : intra+int64(entry.size)]

	var decoded []byte

	if entry.compressed {
		c, err := decompress.Get(m.superblock.Compressor)
		if err != nil {
			return nil, newErr("read", KindNotSupported, err)
		}

		scratch := make([]byte, m.superblock.BlockSize)

		n, err := c.Decompress(scratch, payload)
		if err != nil {
			return nil, newErr("read", KindIOError, fmt.Errorf("decompress fragment block at %d: %w", entry.start, err))
		}

		decoded = scratch[:n]
	} else {
		decoded = payload
	}

	lo := int64(f.fragOffset)
	if lo > int64(len(decoded)) {
		return nil, newErr("read", KindIOError, fmt.Errorf("fragment offset %d exceeds decoded block of %d bytes", lo, len(decoded)))
	}

	hi := lo + need
	if hi > int64(len(decoded)) {
		hi = int64(len(decoded))
	}

	return decoded[lo:hi], nil
}
