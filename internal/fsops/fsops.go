// Package fsops is the buffer layer's filesystem contract: a small
// interface over file content I/O, an atomic-write-with-rename
// implementation for local disk, and an Unsupported stub for sandboxed or
// remote-FS builds that have no local filesystem (spec §6).
package fsops

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/realagiorganization/fresh/internal/fresherr"
)

// Metadata is a file's size, permission bits, and (on Unix) owning
// uid/gid, grounded on original_source's FileMetadata.
type Metadata struct {
	Size    int64
	Mode    os.FileMode
	ModTime time.Time

	HasOwner bool
	UID, GID uint32
}

// FileSystem is the content-I/O surface the editor's buffers and recovery
// index use. A remote-FS backend (SSH, container mount) or a sandboxed
// build with no local disk implements this without changing buffer code.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	ReadRange(path string, offset int64, length int) ([]byte, error)
	// WriteFile writes data to path atomically: a temp file in the same
	// directory, synced, permissions restored from any existing file at
	// path, then renamed over it.
	WriteFile(path string, data []byte) error
	Metadata(path string) (Metadata, error)
	Rename(from, to string) error
	Remove(path string) error
	IsOwner(path string) bool
}

// Local is the native-disk FileSystem implementation.
type Local struct{}

var _ FileSystem = Local{}

func (Local) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (Local) ReadRange(path string, offset int64, length int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	n, err := f.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteFile writes data to a sibling temp file, syncs it, restores the
// destination's existing permissions if any, then renames it into place —
// the rename is atomic on a POSIX filesystem, so a reader never observes a
// half-written file (spec §6: "atomic write via temp+rename").
func (l Local) WriteFile(path string, data []byte) error {
	existing, statErr := l.Metadata(path)

	tmp := tempPathFor(path)
	f, err := os.Create(tmp)
	if err != nil {
		return fresherr.Wrap(fresherr.KindFsUnsupported, "create temp file for "+path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fresherr.Wrap(fresherr.KindFsUnsupported, "write temp file for "+path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fresherr.Wrap(fresherr.KindFsUnsupported, "sync temp file for "+path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fresherr.Wrap(fresherr.KindFsUnsupported, "close temp file for "+path, err)
	}

	if statErr == nil {
		_ = os.Chmod(tmp, existing.Mode)
		chownIfOwner(tmp, existing)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fresherr.Wrap(fresherr.KindFsUnsupported, "rename temp file onto "+path, err)
	}
	return nil
}

func (Local) Metadata(path string) (Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Metadata{}, err
	}
	md := Metadata{Size: fi.Size(), Mode: fi.Mode(), ModTime: fi.ModTime()}
	fillOwner(&md, fi)
	return md, nil
}

func (Local) Rename(from, to string) error { return os.Rename(from, to) }
func (Local) Remove(path string) error     { return os.Remove(path) }

// IsOwner reports whether the current user owns path. Defaults to true
// when ownership can't be determined (non-Unix, or the file is gone),
// matching original_source's "default to true if we can't determine".
func (l Local) IsOwner(path string) bool {
	md, err := l.Metadata(path)
	if err != nil || !md.HasOwner {
		return true
	}
	return md.UID == currentUID()
}

func tempPathFor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	return filepath.Join(dir, base+".tmp")
}

// Unsupported is a FileSystem stub that rejects every operation, for
// builds where there is no local filesystem available (spec §6's
// remote-FS/sandboxed shape; original_source's NoopFileSystem for WASM).
type Unsupported struct{ Reason string }

var _ FileSystem = Unsupported{}

func (u Unsupported) err() error {
	reason := u.Reason
	if reason == "" {
		reason = "no filesystem backend configured"
	}
	return fresherr.New(fresherr.KindFsUnsupported, reason)
}

func (u Unsupported) ReadFile(string) ([]byte, error)              { return nil, u.err() }
func (u Unsupported) ReadRange(string, int64, int) ([]byte, error) { return nil, u.err() }
func (u Unsupported) WriteFile(string, []byte) error               { return u.err() }
func (u Unsupported) Metadata(string) (Metadata, error)             { return Metadata{}, u.err() }
func (u Unsupported) Rename(string, string) error                  { return u.err() }
func (u Unsupported) Remove(string) error                          { return u.err() }
func (u Unsupported) IsOwner(string) bool                          { return true }

func currentUID() uint32 {
	if runtime.GOOS == "windows" || runtime.GOOS == "js" {
		return 0
	}
	return uint32(os.Getuid())
}
