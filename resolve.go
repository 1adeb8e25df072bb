package sqfsro

import (
	"errors"
	"io"
	"strings"
)

// maxSymlinkDepth bounds symlink-resolution recursion, converting a
// symlink cycle into ErrLoopDetected instead of a stack overflow.
const maxSymlinkDepth = 40

// tokenize splits a path into its non-empty, non-"." components. An
// empty path or "/" tokenizes to an empty slice, which resolveTokens
// treats as the root.
func tokenize(path string) []string {
	parts := strings.Split(path, "/")
	tokens := make([]string, 0, len(parts))

	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}

		tokens = append(tokens, p)
	}

	return tokens
}

// resolveSymlinkTarget is the symlink-resolution routine, kept as a
// pure string function so it is unit testable without any image.
// base is the sequence of path components already consumed, including
// the symlink's own name; target is the symlink's stored value
// (relative or absolute).
//
// Unlike the original C implementation (which counts every ".."
// anywhere in target and applies all of them against the front of
// base), this applies ".." positionally, matching POSIX path
// resolution — an explicit decision, not an accidental divergence.
func resolveSymlinkTarget(base []string, target string) []string {
	var resolved []string

	if strings.HasPrefix(target, "/") {
		resolved = nil
	} else if len(base) > 0 {
		resolved = append(resolved, base[:len(base)-1]...)
	}

	for _, tok := range tokenize(target) {
		if tok == ".." {
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
			}

			continue
		}

		resolved = append(resolved, tok)
	}

	return resolved
}

// resolve is the path resolver behind OpenDir, generalised to return
// the terminal inode for any path. Every symlink on the path is
// followed, the last component included, so the result is never a
// SymlinkInode.
func (m *Mount) resolve(path string) (Inode, error) {
	inode, _, err := m.resolveTokens(tokenize(path), 0)

	return inode, err
}

func (m *Mount) resolveTokens(tokens []string, depth int) (Inode, []string, error) {
	if depth > maxSymlinkDepth {
		return nil, nil, newErr("resolve", KindLoopDetected, nil)
	}

	current, err := decodeInode(m.inodeTable, m.superblock.RootInode, m.superblock.BlockSize)
	if err != nil {
		return nil, nil, newErr("resolve", KindIOError, err)
	}

	consumed := make([]string, 0, len(tokens))

	for i, tok := range tokens {
		dir, ok := current.(DirInode)
		if !ok {
			return nil, nil, newErr("resolve", KindNotADirectory, nil)
		}

		entry, ok, err := m.findEntry(dir, tok)
		if err != nil {
			return nil, nil, err
		}

		if !ok {
			return nil, nil, newErr("resolve", KindNotFound, nil)
		}

		consumed = append(consumed, tok)

		next, err := decodeInode(m.inodeTable, entry.ref, m.superblock.BlockSize)
		if err != nil {
			return nil, nil, newErr("resolve", KindIOError, err)
		}

		if sym, ok := next.(SymlinkInode); ok {
			rest := resolveSymlinkTarget(consumed, sym.target)
			rest = append(rest, tokens[i+1:]...)

			return m.resolveTokens(rest, depth+1)
		}

		current = next
	}

	return current, consumed, nil
}

// findEntry walks dir's entry run looking for name, iterating entries
// until one whose name matches is found or the stream ends.
func (m *Mount) findEntry(dir DirInode, name string) (DirEntry, bool, error) {
	ds, err := m.openDirStream(dir)
	if err != nil {
		return DirEntry{}, false, err
	}

	defer ds.Close()

	for {
		entry, err := ds.ReadDir()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return DirEntry{}, false, nil
			}

			return DirEntry{}, false, err
		}

		if entry.Name == name {
			return entry, true, nil
		}
	}
}
