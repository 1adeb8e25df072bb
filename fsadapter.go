package sqfsro

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"time"
)

// FS returns an io/fs.FS view of the mount, for the idiomatic Go
// consumers a read-only filesystem reader is expected to support,
// built directly on Mount's own primitives — it opens no extra tables
// and shares m's resident inode/directory tables.
func (m *Mount) FS() fs.FS {
	return (*mountFS)(m)
}

type mountFS Mount

func (f *mountFS) mount() *Mount { return (*Mount)(f) }

func (f *mountFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	m := f.mount()

	p := name
	if p == "." {
		p = "/"
	}

	inode, err := m.resolve(p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fsErrFor(err)}
	}

	switch v := inode.(type) {
	case DirInode:
		ds, err := m.openDirStream(v)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fsErrFor(err)}
		}

		return &fsDir{mount: m, name: name, inode: v, ds: ds}, nil
	case RegInode:
		return &fsFile{mount: m, name: name, inode: v}, nil
	default:
		return &fsOtherFile{mount: m, name: name, inode: v}, nil
	}
}

// fsErrFor maps an *FSError's Kind to the handful of sentinel errors
// io/fs callers (fs.WalkDir, fstest.TestFS) already know how to
// recognise via errors.Is.
func fsErrFor(err error) error {
	fe, ok := err.(*FSError)
	if !ok {
		return err
	}

	switch fe.Kind {
	case KindNotFound:
		return fs.ErrNotExist
	case KindInvalidArgument:
		return fs.ErrInvalid
	case KindNotADirectory, KindNotSupported:
		return fs.ErrInvalid
	default:
		return err
	}
}

// fileInfo adapts a decoded inode to fs.FileInfo.
type fileInfo struct {
	name  string
	inode Inode
}

func (fi fileInfo) Name() string { return fi.name }

func (fi fileInfo) Size() int64 {
	if f, ok := fi.inode.(RegInode); ok {
		return f.Size()
	}

	return 0
}

func (fi fileInfo) Mode() fs.FileMode {
	switch fi.inode.Kind() {
	case KindDir, KindLDir:
		return fs.ModeDir | 0o555
	case KindSymlink, KindLSymlink:
		return fs.ModeSymlink | 0o777
	case KindBlockDev, KindLBlockDev:
		return fs.ModeDevice
	case KindCharDev, KindLCharDev:
		return fs.ModeDevice | fs.ModeCharDevice
	case KindFifo, KindLFifo:
		return fs.ModeNamedPipe
	case KindSocket, KindLSocket:
		return fs.ModeSocket
	default:
		return 0o444
	}
}

func (fi fileInfo) ModTime() time.Time { return fi.inode.ModTime() }
func (fi fileInfo) IsDir() bool        { return fi.Mode().IsDir() }
func (fi fileInfo) Sys() any           { return fi.inode }

// fsFile is the fs.File for a regular file: the first Read decodes the
// whole file through readFile (the routine behind Mount.Read) and later
// Reads serve it from an internal cursor.
type fsFile struct {
	mount  *Mount
	name   string
	inode  RegInode
	cursor int64
	data   []byte // lazily populated by the first Read; io.Reader callers expect a streaming cursor, but Mount.Read only knows how to produce "everything from byte 0"
}

func (f *fsFile) Stat() (fs.FileInfo, error) {
	return fileInfo{name: path.Base(f.name), inode: f.inode}, nil
}

func (f *fsFile) Read(p []byte) (int, error) {
	if f.data == nil && f.inode.Size() > 0 {
		buf := make([]byte, f.inode.Size())

		if _, err := f.mount.readFile(f.inode, buf, 0, 0); err != nil {
			return 0, &fs.PathError{Op: "read", Path: f.name, Err: fsErrFor(err)}
		}

		f.data = buf
	}

	if f.cursor >= int64(len(f.data)) {
		return 0, io.EOF
	}

	n := copy(p, f.data[f.cursor:])
	f.cursor += int64(n)

	return n, nil
}

func (f *fsFile) Close() error { return nil }

// fsOtherFile represents a device/fifo/socket inode: stat-able but
// not readable.
type fsOtherFile struct {
	mount *Mount
	name  string
	inode Inode
}

func (f *fsOtherFile) Stat() (fs.FileInfo, error) {
	return fileInfo{name: path.Base(f.name), inode: f.inode}, nil
}

func (f *fsOtherFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: f.name, Err: fs.ErrInvalid}
}

func (f *fsOtherFile) Close() error { return nil }

// fsDir is the fs.ReadDirFile backing directory Open calls, built
// directly on DirStream.
type fsDir struct {
	mount *Mount
	name  string
	inode DirInode
	ds    *DirStream
}

func (d *fsDir) Stat() (fs.FileInfo, error) {
	return fileInfo{name: path.Base(d.name), inode: d.inode}, nil
}

func (d *fsDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *fsDir) Close() error {
	return d.ds.Close()
}

func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	var entries []fs.DirEntry

	for n <= 0 || len(entries) < n {
		e, err := d.ds.ReadDir()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return entries, err
		}

		inode, ierr := decodeInode(d.mount.inodeTable, e.ref, d.mount.superblock.BlockSize)
		if ierr != nil {
			return entries, ierr
		}

		entries = append(entries, fs.FileInfoToDirEntry(fileInfo{name: e.Name, inode: inode}))
	}

	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}

	return entries, nil
}
