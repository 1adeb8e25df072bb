// Package device implements the backing-store reader: the
// sector-granular primitive the core decode pipeline reads through.
// It is intentionally the thinnest layer in the repository and never
// interprets anything it reads.
package device

import (
	"fmt"
	"io"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
)

// Device is a sector-addressable byte range: a whole disk image or a
// single partition on one. Every read the core issues goes through
// ReadAt; Device never buffers or caches across calls.
type Device interface {
	io.ReaderAt
	// SectorSize is the device's native block size, in bytes. Callers
	// align reads to it; it is typically 512 or 4096.
	SectorSize() int64
}

// sectionDevice adapts an io.ReaderAt plus an explicit sector size and
// byte offset into a Device. It underlies both OpenPartition (via
// go-diskfs) and OpenRaw (for images with no partition table, such as
// a bare SquashFS file used directly in tests).
type sectionDevice struct {
	r          io.ReaderAt
	base       int64
	size       int64
	sectorSize int64
}

func (s *sectionDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		return 0, fmt.Errorf("device: read [%d,%d) out of range [0,%d)", off, off+int64(len(p)), s.size)
	}

	return s.r.ReadAt(p, s.base+off)
}

func (s *sectionDevice) SectorSize() int64 {
	return s.sectorSize
}

// OpenRaw wraps an io.ReaderAt (typically an *os.File holding a
// SquashFS image with no partition table around it) directly as a
// Device, with an explicit sector size. Used by tests and by any
// caller that already knows it has a bare image rather than a raw
// block device.
func OpenRaw(r io.ReaderAt, size, sectorSize int64) Device {
	return &sectionDevice{r: r, base: 0, size: size, sectorSize: sectorSize}
}

// OpenPartition opens the block device at path and returns a Device
// scoped to the numbered partition (1-based, matching go-diskfs and
// fdisk/parted numbering). partition == 0 means "the whole disk has
// no partition table; read it directly", matching an embedded target
// that stores the SquashFS image as the entire block device.
func OpenPartition(path string, partition int) (Device, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("device: open %q: %w", path, err)
	}

	sectorSize := d.LogicalBlocksize
	if sectorSize <= 0 {
		sectorSize = 512
	}

	if partition == 0 {
		return &sectionDevice{r: d.Backend, base: 0, size: d.Size, sectorSize: sectorSize}, nil
	}

	base, size, err := partitionExtent(d, partition)
	if err != nil {
		return nil, err
	}

	return &sectionDevice{r: d.Backend, base: base, size: size, sectorSize: sectorSize}, nil
}

// partitionExtent resolves the byte offset and length of the given
// 1-based partition number from whatever partition table go-diskfs
// parsed (MBR or GPT — the Table interface hides the difference).
func partitionExtent(d *disk.Disk, partition int) (base, size int64, err error) {
	if d.Table == nil {
		return 0, 0, fmt.Errorf("device: no partition table and partition %d requested", partition)
	}

	parts := d.Table.GetPartitions()
	if partition < 1 || partition > len(parts) {
		return 0, 0, fmt.Errorf("device: partition %d out of range (have %d)", partition, len(parts))
	}

	p := parts[partition-1]

	return p.GetStart(), p.GetSize(), nil
}

// ReadBytes translates an arbitrary byte range into a sector-aligned
// read and returns the aligned buffer plus the offset of byteStart
// within it.
func ReadBytes(d Device, byteStart, byteLen int64) (buf []byte, intraOffset int64, err error) {
	if byteLen < 0 || byteStart < 0 {
		return nil, 0, fmt.Errorf("device: negative read range")
	}

	sector := d.SectorSize()
	if sector <= 0 {
		sector = 512
	}

	sectorIndex := byteStart / sector
	intraOffset = byteStart - sectorIndex*sector
	end := byteStart + byteLen
	nSectors := (end - sectorIndex*sector + sector - 1) / sector

	buf = make([]byte, nSectors*sector)

	n, err := d.ReadAt(buf, sectorIndex*sector)
	if err != nil && n < len(buf) {
		return nil, 0, fmt.Errorf("device: short read: %w", err)
	}

	return buf, intraOffset, nil
}
