package piecetree

import (
	"fmt"
	"os"
)

// Vault is an append-only byte store a piece can reference. The "original"
// vault holds a file's initial content (or a range-mapped view of it for
// large files); the "add" vault accumulates every byte ever inserted.
type Vault interface {
	// ReadRange returns the bytes in [offset, offset+length).
	ReadRange(offset, length int) ([]byte, error)
	// Len returns the total number of bytes the vault currently holds.
	Len() int
}

// memVault is an in-memory, append-only byte vault.
type memVault struct {
	data []byte
}

func newMemVault(initial []byte) *memVault {
	buf := make([]byte, len(initial))
	copy(buf, initial)
	return &memVault{data: buf}
}

func (v *memVault) ReadRange(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(v.data) {
		return nil, fmt.Errorf("piecetree: range [%d,%d) out of bounds (len=%d)", offset, offset+length, len(v.data))
	}
	return v.data[offset : offset+length], nil
}

func (v *memVault) Len() int { return len(v.data) }

// append adds bytes to the vault and returns their starting offset.
func (v *memVault) append(b []byte) int {
	start := len(v.data)
	v.data = append(v.data, b...)
	return start
}

// fileVault is a range-mapped view over a file on disk, used for the
// original content of files above the large-file threshold so the buffer
// never holds a resident copy of the bytes themselves.
type fileVault struct {
	path string
	size int64
}

// OpenFileRange implements the `read_range(path, offset, len)` contract
// required of large-file and remote filesystem backends (spec §4.A).
func OpenFileRange(path string) (Vault, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &fileVault{path: path, size: fi.Size()}, nil
}

func (v *fileVault) Len() int { return int(v.size) }

func (v *fileVault) ReadRange(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || int64(offset+length) > v.size {
		return nil, fmt.Errorf("piecetree: range [%d,%d) out of bounds (size=%d)", offset, offset+length, v.size)
	}
	f, err := os.Open(v.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return nil, err
	}
	return buf, nil
}
