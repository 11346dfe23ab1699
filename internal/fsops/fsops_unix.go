//go:build unix

package fsops

import (
	"os"
	"syscall"
)

func fillOwner(md *Metadata, fi os.FileInfo) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	md.HasOwner = true
	md.UID = st.Uid
	md.GID = st.Gid
}

// chownIfOwner restores a temp file's owning uid/gid from existing before
// the atomic rename, so a root-run save doesn't silently reassign
// ownership to root (original_source's uid/gid preservation).
func chownIfOwner(path string, existing Metadata) {
	if !existing.HasOwner {
		return
	}
	_ = os.Chown(path, int(existing.UID), int(existing.GID))
}
