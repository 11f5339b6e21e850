// Package vfs implements the in-memory virtual file system the kernel's
// FileSys-backed ecalls operate against: a flat (path -> bytes) map, not a
// directory tree, since the runtime never lists directories.
package vfs

import "fmt"

// OpenMode selects how OpenFd should treat a missing or existing path.
type OpenMode int

const (
	OpenExisting     OpenMode = iota // fail if the path does not exist
	OpenCreate                       // create if missing, keep existing bytes
	OpenCreateClear                  // create if missing, truncate if it exists
)

// Error distinguishes "not found" from other VFS failures so the kernel can
// map it to the right ecall outcome (OpenFd blocks on not-found rather than
// raising a hard error).
type Error struct {
	Path string
	Kind string // "NotFound" | "AlreadyExists"
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Path) }

type entry struct {
	bytes []byte
}

// FS is an in-memory file system keyed by path. Not safe for concurrent use;
// the kernel drives it from its single scheduler goroutine.
type FS struct {
	files map[string]*entry
}

func New() *FS {
	return &FS{files: make(map[string]*entry)}
}

// Open resolves path per mode and returns only an error, no handle: paths
// are unique keys, and the kernel keeps its own per-process fd table mapping
// small integers to paths.
func (fs *FS) Open(path string, mode OpenMode) error {
	e, exists := fs.files[path]
	switch mode {
	case OpenExisting:
		if !exists {
			return &Error{Path: path, Kind: "NotFound"}
		}
		return nil
	case OpenCreate:
		if !exists {
			fs.files[path] = &entry{}
		}
		return nil
	case OpenCreateClear:
		if exists {
			e.bytes = e.bytes[:0]
		} else {
			fs.files[path] = &entry{}
		}
		return nil
	default:
		return fmt.Errorf("unknown open mode %d", mode)
	}
}

// ReadRange copies up to len(buf) bytes starting at begin into buf, returning
// the number of bytes actually copied (0 at or past EOF).
func (fs *FS) ReadRange(path string, begin int, buf []byte) (int, error) {
	e, ok := fs.files[path]
	if !ok {
		return 0, &Error{Path: path, Kind: "NotFound"}
	}
	if begin >= len(e.bytes) {
		return 0, nil
	}
	n := copy(buf, e.bytes[begin:])
	return n, nil
}

// WriteRange overwrites (and extends, if necessary) the file's bytes
// starting at begin with data.
func (fs *FS) WriteRange(path string, begin int, data []byte) error {
	e, ok := fs.files[path]
	if !ok {
		return &Error{Path: path, Kind: "NotFound"}
	}
	end := begin + len(data)
	if end > len(e.bytes) {
		grown := make([]byte, end)
		copy(grown, e.bytes)
		e.bytes = grown
	}
	copy(e.bytes[begin:end], data)
	return nil
}

// Append writes data to the end of the file, returning the offset it was
// written at.
func (fs *FS) Append(path string, data []byte) (int, error) {
	e, ok := fs.files[path]
	if !ok {
		return 0, &Error{Path: path, Kind: "NotFound"}
	}
	off := len(e.bytes)
	e.bytes = append(e.bytes, data...)
	return off, nil
}

// Size reports the current length of path's contents.
func (fs *FS) Size(path string) (int, error) {
	e, ok := fs.files[path]
	if !ok {
		return 0, &Error{Path: path, Kind: "NotFound"}
	}
	return len(e.bytes), nil
}
