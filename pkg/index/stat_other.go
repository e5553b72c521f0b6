//go:build !linux

package index

import (
	"fmt"
	"os"

	"github.com/odvcencio/twig/pkg/object"
)

// EntryFromFile builds an entry for the file at abs, staged as rel with
// content hash h. Only mode, size and mtime are available on this platform.
func EntryFromFile(abs, rel string, h object.Hash) (Entry, error) {
	fi, err := os.Lstat(abs)
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", rel, err)
	}
	mode, err := ModeFromFileMode(fi.Mode())
	if err != nil {
		return Entry{}, fmt.Errorf("stage %s: %w", rel, err)
	}
	mt := fi.ModTime()
	ts := Timestamp{Sec: uint32(mt.Unix()), Nsec: uint32(mt.Nanosecond())}
	return Entry{
		CTime: ts,
		MTime: ts,
		Mode:  mode,
		Size:  uint32(fi.Size()),
		Hash:  h,
		Flags: FlagsFor(rel),
		Path:  rel,
	}, nil
}
