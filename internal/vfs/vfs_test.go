package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenModes(t *testing.T) {
	fs := New()

	require.Error(t, fs.Open("/a", OpenExisting), "missing file must fail OpenExisting")

	require.NoError(t, fs.Open("/a", OpenCreate))
	require.NoError(t, fs.WriteRange("/a", 0, []byte("hello")))

	require.NoError(t, fs.Open("/a", OpenCreate), "OpenCreate on an existing file must keep its bytes")
	n, err := fs.Size("/a")
	require.NoError(t, err)
	require.Equal(t, 5, n)

	require.NoError(t, fs.Open("/a", OpenCreateClear))
	n, err = fs.Size("/a")
	require.NoError(t, err)
	require.Equal(t, 0, n, "OpenCreateClear must truncate an existing file")
}

func TestWriteRangeGrows(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Open("/f", OpenCreate))

	require.NoError(t, fs.WriteRange("/f", 3, []byte("xyz")))
	buf := make([]byte, 6)
	n, err := fs.ReadRange("/f", 0, buf)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, []byte{0, 0, 0, 'x', 'y', 'z'}, buf)
}

func TestAppendReturnsPriorOffset(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Open("/f", OpenCreate))

	off, err := fs.Append("/f", []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 0, off)

	off, err = fs.Append("/f", []byte("de"))
	require.NoError(t, err)
	require.Equal(t, 3, off)

	n, err := fs.Size("/f")
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestReadRangePastEOF(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Open("/f", OpenCreate))
	require.NoError(t, fs.WriteRange("/f", 0, []byte("ab")))

	buf := make([]byte, 4)
	n, err := fs.ReadRange("/f", 10, buf)
	require.NoError(t, err)
	require.Equal(t, 0, n, "reading past EOF must return 0 bytes, not an error")
}

func TestReadWriteMissingFile(t *testing.T) {
	fs := New()

	_, err := fs.ReadRange("/nope", 0, make([]byte, 1))
	require.Error(t, err)

	err = fs.WriteRange("/nope", 0, []byte("x"))
	require.Error(t, err)

	_, err = fs.Append("/nope", []byte("x"))
	require.Error(t, err)
}
