package sqfsro

import (
	"fmt"
	"sync"

	"github.com/embedfs/sqfsro/device"
)

// Mount is the mount context: a superblock, the backing device it was
// read from, and the fully-decoded inode and directory tables, loaded
// once at Probe time and resident for the mount's lifetime. Mount is
// not safe for concurrent use, enforced by documentation rather than a
// mutex.
type Mount struct {
	device     device.Device
	superblock *superblock
	inodeTable *table
	dirTable   *table
}

// Probe reads and validates the superblock, resolves the compressor it
// names, and eagerly loads the inode and directory tables in full —
// loaded once, kept resident for the mount's lifetime, rather than
// loaded and freed per call, since nothing here needs to bound peak
// memory the way an embedded bootloader does.
func Probe(dev device.Device) (*Mount, error) {
	sb, err := readSuperblock(dev)
	if err != nil {
		return nil, err
	}

	inodeTable, err := loadTable(dev, sb.Compressor, sb.InodeTable, sb.DirTable)
	if err != nil {
		return nil, newErr("probe", KindIOError, err)
	}

	dirTable, err := loadTable(dev, sb.Compressor, sb.DirTable, sb.FragTable)
	if err != nil {
		return nil, newErr("probe", KindIOError, err)
	}

	return &Mount{device: dev, superblock: sb, inodeTable: inodeTable, dirTable: dirTable}, nil
}

// ProbePath is a convenience wrapper over Probe for the common case of
// mounting a SquashFS image that is a whole file or a numbered
// partition of a block device, combining the device-open step with
// Probe the way most callers actually use them.
func ProbePath(path string, partition int) (*Mount, error) {
	dev, err := device.OpenPartition(path, partition)
	if err != nil {
		return nil, newErr("probe", KindIOError, err)
	}

	return Probe(dev)
}

// OpenDir resolves path to an inode, requires it to be a directory,
// and positions a stream over its entry run.
func (m *Mount) OpenDir(path string) (*DirStream, error) {
	inode, err := m.resolve(path)
	if err != nil {
		return nil, err
	}

	dir, ok := inode.(DirInode)
	if !ok {
		return nil, newErr("open_dir", KindNotADirectory, nil)
	}

	return m.openDirStream(dir)
}

// Read resolves path to a regular-file inode and copies up to length
// decoded bytes (the whole file if length is 0) into dst starting at
// dst[offset:].
func (m *Mount) Read(path string, dst []byte, offset, length int64) (int, error) {
	inode, err := m.resolve(path)
	if err != nil {
		return 0, err
	}

	f, ok := inode.(RegInode)
	if !ok {
		return 0, newErr("read", KindNotSupported, fmt.Errorf("%s is not a regular file", path))
	}

	return m.readFile(f, dst, offset, length)
}

// Size resolves path to a regular-file inode and returns its stored
// size field. Any other inode kind, directories included, fails with
// not-supported.
func (m *Mount) Size(path string) (int64, error) {
	inode, err := m.resolve(path)
	if err != nil {
		return 0, err
	}

	f, ok := inode.(RegInode)
	if !ok {
		return 0, newErr("size", KindNotSupported, fmt.Errorf("%s is not a regular file", path))
	}

	return f.Size(), nil
}

// Close releases the mount's resident tables. It never fails; the
// backing device is owned by whoever opened it and is not closed here
// — this reader takes no position on device lifetime beyond its own
// tables.
func (m *Mount) Close() error {
	m.inodeTable = nil
	m.dirTable = nil

	return nil
}

// singleton backs the firmware-style free-function API: a global
// single-mount surface alongside the *Mount-based API, matching the
// original C-shaped process-wide mount context without forcing every
// Go caller through it.
var (
	singletonMu sync.Mutex
	singleton   *Mount
)

// the following free functions operate on the process-wide singleton
// mount exactly as the original C API's probe/open_dir/readdir/
// close_dir/read/size/close do; a Go caller who wants more than one
// concurrent mount should use the *Mount methods directly instead.

func singletonProbe(path string, partition int) error {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	m, err := ProbePath(path, partition)
	if err != nil {
		singleton = nil

		return err
	}

	singleton = m

	return nil
}

// SingletonProbe mounts path at partition as the process-wide mount,
// replacing any previous one. It is the free-function equivalent of
// Probe/ProbePath.
func SingletonProbe(path string, partition int) error {
	return singletonProbe(path, partition)
}

// SingletonOpenDir opens a directory stream against the process-wide
// mount. Fails with invalid-argument if no mount is active.
func SingletonOpenDir(path string) (*DirStream, error) {
	singletonMu.Lock()
	m := singleton
	singletonMu.Unlock()

	if m == nil {
		return nil, newErr("open_dir", KindInvalidArgument, fmt.Errorf("no active mount"))
	}

	return m.OpenDir(path)
}

// SingletonReadDir is the free-function spelling of (*DirStream).ReadDir,
// taking the stream SingletonOpenDir returned. It carries no singleton
// state of its own; it exists so callers mirroring the original C API
// (probe/open_dir/readdir/close_dir/read/size/close, all free
// functions) never have to reach for a method call.
func SingletonReadDir(ds *DirStream) (DirEntry, error) {
	return ds.ReadDir()
}

// SingletonCloseDir is the free-function spelling of (*DirStream).Close.
func SingletonCloseDir(ds *DirStream) error {
	return ds.Close()
}

// SingletonRead reads from path through the process-wide mount.
func SingletonRead(path string, dst []byte, offset, length int64) (int, error) {
	singletonMu.Lock()
	m := singleton
	singletonMu.Unlock()

	if m == nil {
		return 0, newErr("read", KindInvalidArgument, fmt.Errorf("no active mount"))
	}

	return m.Read(path, dst, offset, length)
}

// SingletonSize reads path's size through the process-wide mount.
func SingletonSize(path string) (int64, error) {
	singletonMu.Lock()
	m := singleton
	singletonMu.Unlock()

	if m == nil {
		return 0, newErr("size", KindInvalidArgument, fmt.Errorf("no active mount"))
	}

	return m.Size(path)
}

// SingletonClose tears down the process-wide mount, matching the
// original API's close(); a subsequent call with no active mount is a
// no-op, not an error, mirroring close-on-an-already-closed-handle
// semantics elsewhere: closing twice is a caller bug but must not
// corrupt state.
func SingletonClose() error {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singleton == nil {
		return nil
	}

	err := singleton.Close()
	singleton = nil

	return err
}
