package sqfsro

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/embedfs/sqfsro/decompress"
	"github.com/embedfs/sqfsro/device"
)

// buildSuperblockFixture lays out a valid 96-byte superblock header,
// using blockLogOf so the fixture doesn't have to hand-compute the
// log2 of blockSize the way the real encoder does.
func buildSuperblockFixture(blockSize uint32, compressor decompress.ID) []byte {
	buf := make([]byte, headerLength)

	binary.LittleEndian.PutUint32(buf[0:], magic)
	binary.LittleEndian.PutUint32(buf[12:], blockSize)
	binary.LittleEndian.PutUint16(buf[20:], uint16(compressor))
	binary.LittleEndian.PutUint16(buf[22:], blockLogOf(blockSize))
	binary.LittleEndian.PutUint16(buf[28:], versionMajor)
	binary.LittleEndian.PutUint16(buf[30:], versionMinor)
	binary.LittleEndian.PutUint64(buf[64:], 1) // inode table
	binary.LittleEndian.PutUint64(buf[72:], 2) // dir table
	binary.LittleEndian.PutUint64(buf[80:], 3) // frag table
	binary.LittleEndian.PutUint64(buf[88:], 3) // export table

	return buf
}

func openFixture(buf []byte) device.Device {
	const sectorSize = 512

	padded := make([]byte, (int64(len(buf))+sectorSize-1)/sectorSize*sectorSize)
	copy(padded, buf)

	return device.OpenRaw(bytes.NewReader(padded), int64(len(padded)), sectorSize)
}

func TestReadSuperblockValid(t *testing.T) {
	buf := buildSuperblockFixture(131072, decompress.GZIP)

	sb, err := readSuperblock(openFixture(buf))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if sb.BlockSize != 131072 {
		t.Errorf("BlockSize = %d, want 131072", sb.BlockSize)
	}

	if sb.Compressor != decompress.GZIP {
		t.Errorf("Compressor = %s, want gzip", sb.Compressor)
	}

	if sb.InodeTable != 1 || sb.DirTable != 2 || sb.FragTable != 3 {
		t.Errorf("table anchors = %d/%d/%d, want 1/2/3", sb.InodeTable, sb.DirTable, sb.FragTable)
	}
}

func TestReadSuperblockBadMagic(t *testing.T) {
	buf := buildSuperblockFixture(131072, decompress.GZIP)
	binary.LittleEndian.PutUint32(buf[0:], 0xdeadbeef)

	if _, err := readSuperblock(openFixture(buf)); err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}

func TestReadSuperblockBlockSizeMismatchesLog(t *testing.T) {
	buf := buildSuperblockFixture(131072, decompress.GZIP)
	// corrupt block_log so it no longer matches the stored block size,
	// without touching blockLogOf's own output.
	binary.LittleEndian.PutUint16(buf[22:], blockLogOf(131072)+1)

	if _, err := readSuperblock(openFixture(buf)); err == nil {
		t.Fatal("expected error for block size/log mismatch, got nil")
	}
}

func TestReadSuperblockUnknownCompressor(t *testing.T) {
	buf := buildSuperblockFixture(131072, decompress.LZO)

	if _, err := readSuperblock(openFixture(buf)); err == nil {
		t.Fatal("expected error for unsupported compressor, got nil")
	}
}
