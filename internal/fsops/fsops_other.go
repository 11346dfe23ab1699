//go:build !unix

package fsops

import "os"

func fillOwner(md *Metadata, fi os.FileInfo) {}

func chownIfOwner(path string, existing Metadata) {}
