//go:build linux

package index

import (
	"fmt"
	"os"

	"github.com/odvcencio/twig/pkg/object"
	"golang.org/x/sys/unix"
)

// EntryFromFile builds an entry for the file at abs, staged as rel with
// content hash h. Symlinks are not followed.
func EntryFromFile(abs, rel string, h object.Hash) (Entry, error) {
	var st unix.Stat_t
	if err := unix.Lstat(abs, &st); err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", rel, &os.PathError{Op: "lstat", Path: abs, Err: err})
	}

	var fm os.FileMode
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFLNK:
		fm = os.ModeSymlink
	case unix.S_IFREG:
		fm = os.FileMode(st.Mode & 0o777)
	default:
		fm = os.ModeIrregular
	}
	mode, err := ModeFromFileMode(fm)
	if err != nil {
		return Entry{}, fmt.Errorf("stage %s: %w", rel, err)
	}

	return Entry{
		CTime: Timestamp{Sec: uint32(st.Ctim.Sec), Nsec: uint32(st.Ctim.Nsec)},
		MTime: Timestamp{Sec: uint32(st.Mtim.Sec), Nsec: uint32(st.Mtim.Nsec)},
		Dev:   uint32(st.Dev),
		Ino:   uint32(st.Ino),
		Mode:  mode,
		UID:   st.Uid,
		GID:   st.Gid,
		Size:  uint32(st.Size),
		Hash:  h,
		Flags: FlagsFor(rel),
		Path:  rel,
	}, nil
}
