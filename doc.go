// Package sqfsro is a read-only reader for the SquashFS on-disk
// filesystem format. It mounts an image stored on a block device or
// any byte-addressable backing store and exposes directory
// enumeration, file size lookup, and file-content reads — the
// operations a firmware-stage boot loader or embedded runtime needs to
// fetch a kernel, device tree, or payload out of a compressed
// read-only image. There is no concept of mutation, journaling,
// extended attributes, NFS-style export lookup, permission
// enforcement, or concurrent use. Nothing is cached across calls
// except the inode and directory tables, which a Mount decodes once at
// Probe and keeps until Close.
//
// # On-disk layout
//
// Byte 0 holds the 96-byte superblock: magic "hsqs", inode count,
// modification time, data-block size (a power of two between 4KiB and
// 1MiB), fragment count, compressor id, flags, and the absolute byte
// anchors of the uid/gid table, the xattr table, the inode table, the
// directory table, the fragment-index table and the export table, in
// that order.
//
// Everything past the superblock is built from metadata chunks: a
// 16-bit header (low 15 bits the stored byte length, top bit clear
// meaning the payload is compressed) followed by that many bytes,
// chained back-to-back until the next table's anchor. A chunk's
// decompressed size never exceeds 8KiB. The inode table and the
// directory table are both chains of metadata chunks; loadTable in
// tables.go decodes an entire chain into one contiguous buffer and
// records, for each chunk, the on-disk offset it started at and the
// cumulative decoded-byte offset it produced — the position list that
// turns a 48-bit inode/directory reference (32 bits of chunk-start
// offset, 16 bits of intra-chunk offset) into a cursor without a
// linear scan.
//
// An inode begins with a common 16-byte prefix (type, permissions,
// uid/gid table indices, mtime, inode number) followed by a
// type-specific body: directories carry a start block, a link count,
// and a byte span into the directory table; regular files carry a
// data-block start offset, a fragment index/offset pair, a size, and
// one u32 per data block (bit 24 set means that block is stored
// uncompressed — the inverse of what "compressed bit" suggests);
// symlinks carry a link count and the target path as a length-prefixed
// string. The "L"-prefixed variants (LDIR, LREG, ...) are the same
// records widened to 64-bit fields for images too large for the basic
// forms.
//
// A directory's entry run is a sequence of {count-1, start-block,
// base-inode-number} headers each followed by that many {intra-chunk
// offset, signed inode-number delta, type, name-length-1, name}
// entries — dirwalk.go's three-state machine (header / entry / end)
// walks this linearly, the only traversal the format supports.
//
// Files too small to deserve a dedicated data block are packed,
// several to a block, into the shared fragment store; fragment.go
// resolves a fragment index to its owning block's on-disk descriptor
// without materialising the fragment table: unlike the inode and
// directory tables, which are decoded whole, it reads only the one
// chunk that holds the requested index.
package sqfsro
