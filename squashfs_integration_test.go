package sqfsro

import (
	"archive/tar"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/embedfs/sqfsro/device"
)

// checkSqfstar skips a test when the sqfstar tool isn't installed —
// these tests build real images rather than faking the on-disk format.
var checkSqfstar = func(_ *testing.T) {}

func TestMain(m *testing.M) {
	if _, err := exec.LookPath("sqfstar"); err != nil {
		checkSqfstar = (*testing.T).SkipNow
	}

	os.Exit(m.Run())
}

type tarEntry struct {
	header   tar.Header
	contents string
}

// buildImage shells out to sqfstar, piping a tar stream of the
// requested entries into it and returning the path to the resulting
// image.
func buildImage(t *testing.T, entries []tarEntry) string {
	t.Helper()

	checkSqfstar(t)

	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		w := tar.NewWriter(pw)

		for _, e := range entries {
			h := e.header
			if h.ModTime.IsZero() {
				h.ModTime = time.Now()
			}

			if err := w.WriteHeader(&h); err != nil {
				done <- err

				return
			}

			if e.contents != "" {
				if _, err := io.WriteString(w, e.contents); err != nil {
					done <- err

					return
				}
			}
		}

		w.Close()
		pw.Close()
		done <- nil
	}()

	tmp := t.TempDir()
	image := filepath.Join(tmp, "image.sqfs")

	cmd := exec.Command("sqfstar", image)
	cmd.Stdin = pr

	require.NoError(t, cmd.Run())

	pr.Close()
	require.NoError(t, <-done)

	return image
}

func mountImage(t *testing.T, path string) *Mount {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	info, err := f.Stat()
	require.NoError(t, err)

	m, err := Probe(device.OpenRaw(f, info.Size(), 512))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m
}

func regularFile(name string, size int64) tar.Header {
	return tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: size, Format: tar.FormatGNU}
}

func TestRoundTripSmallFile(t *testing.T) {
	const contents = "hello from a test fixture"

	image := buildImage(t, []tarEntry{
		{header: tar.Header{Name: "greeting.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(contents)), Format: tar.FormatGNU}, contents: contents},
	})

	m := mountImage(t, image)

	size, err := m.Size("/greeting.txt")
	require.NoError(t, err)
	require.EqualValues(t, len(contents), size)

	buf := make([]byte, size)
	n, err := m.Read("/greeting.txt", buf, 0, 0)
	require.NoError(t, err)
	require.Equal(t, contents, string(buf[:n]))
}

func TestRoundTripZeroLengthFile(t *testing.T) {
	image := buildImage(t, []tarEntry{
		{header: regularFile("empty.txt", 0)},
	})

	m := mountImage(t, image)

	size, err := m.Size("/empty.txt")
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	n, err := m.Read("/empty.txt", nil, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestDirectoryEnumeration(t *testing.T) {
	image := buildImage(t, []tarEntry{
		{header: tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755, Format: tar.FormatGNU}},
		{header: tar.Header{Name: "dir/a.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1, Format: tar.FormatGNU}, contents: "a"},
		{header: tar.Header{Name: "dir/b.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1, Format: tar.FormatGNU}, contents: "b"},
	})

	m := mountImage(t, image)

	ds, err := m.OpenDir("/dir")
	require.NoError(t, err)
	defer ds.Close()

	names := map[string]bool{}

	for {
		e, err := ds.ReadDir()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
		names[e.Name] = true
	}

	require.True(t, names["a.txt"])
	require.True(t, names["b.txt"])
}

func TestSymlinkResolution(t *testing.T) {
	image := buildImage(t, []tarEntry{
		{header: tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755, Format: tar.FormatGNU}},
		{header: tar.Header{Name: "dir/target.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 3, Format: tar.FormatGNU}, contents: "xyz"},
		{header: tar.Header{Name: "link.txt", Typeflag: tar.TypeSymlink, Mode: 0o777, Linkname: "dir/target.txt", Format: tar.FormatGNU}},
	})

	m := mountImage(t, image)

	size, err := m.Size("/link.txt")
	require.NoError(t, err)
	require.EqualValues(t, 3, size)
}

func TestReadLengthCannotExceedSize(t *testing.T) {
	image := buildImage(t, []tarEntry{
		{header: regularFile("f.txt", 3), contents: "abc"},
	})

	m := mountImage(t, image)

	buf := make([]byte, 100)

	_, err := m.Read("/f.txt", buf, 0, 100)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
