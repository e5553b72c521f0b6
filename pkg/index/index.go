// Package index implements the staging area: a sorted list of path to blob
// mappings with file-system metadata, persisted as a single binary file.
//
// File layout (all integers big-endian):
//
//	header   "DIRC" | version (4) | entry count (4)
//	entry    ctime s/ns | mtime s/ns | dev | ino | mode | uid | gid | size
//	         (4 bytes each) | hash (20) | flags (2) | path | 1-8 NUL bytes
//	trailer  SHA-1 of everything above (20)
//
// Each entry is padded with NUL bytes so its length is a multiple of 8. At
// least one NUL is always written, which terminates the path.
//
// Flags hold the path length in the low 12 bits (0xFFF when it does not
// fit). Bits 12-13 are the merge stage in the format this layout derives
// from; twig has no merges, so they are reserved and always zero, as are
// bits 14-15.
package index

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/odvcencio/twig/pkg/object"
)

// ErrCorruptIndex is returned when the index file cannot be decoded.
var ErrCorruptIndex = errors.New("corrupt index")

const (
	signature = "DIRC"
	version   = 2

	headerSize   = 12
	fixedSize    = 62 // ten 4-byte fields, the hash and the flags
	checksumSize = 20

	nameMask = 0x0FFF
)

// File modes stored in entries.
const (
	ModeFile       uint32 = 0o100644
	ModeExecutable uint32 = 0o100755
	ModeSymlink    uint32 = 0o120000
)

// Timestamp is a seconds/nanoseconds pair truncated to 32 bits each.
type Timestamp struct {
	Sec  uint32
	Nsec uint32
}

// Entry is one staged path.
type Entry struct {
	CTime Timestamp
	MTime Timestamp
	Dev   uint32
	Ino   uint32
	Mode  uint32
	UID   uint32
	GID   uint32
	Size  uint32
	Hash  object.Hash
	Flags uint16
	Path  string // repository-relative, "/"-separated
}

// Stage returns the entry's merge stage. It is always zero for entries
// written by twig.
func (e Entry) Stage() int {
	return int(e.Flags>>12) & 0x3
}

// TreeMode maps the entry mode onto a tree entry mode.
func (e Entry) TreeMode() object.Mode {
	switch e.Mode {
	case ModeExecutable:
		return object.ModeExecutable
	case ModeSymlink:
		return object.ModeSymlink
	default:
		return object.ModeFile
	}
}

// FlagsFor returns the flags value twig writes for path.
func FlagsFor(path string) uint16 {
	if len(path) >= nameMask {
		return nameMask
	}
	return uint16(len(path))
}

// ModeFromFileMode normalizes a file-system mode to one of the three entry
// modes. Only regular files and symlinks can be staged.
func ModeFromFileMode(m os.FileMode) (uint32, error) {
	switch {
	case m&os.ModeSymlink != 0:
		return ModeSymlink, nil
	case m.IsRegular():
		if m.Perm()&0o111 != 0 {
			return ModeExecutable, nil
		}
		return ModeFile, nil
	default:
		return 0, fmt.Errorf("unsupported file type %s", m.Type())
	}
}

// Find returns the entry for path.
func Find(entries []Entry, path string) (Entry, bool) {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Path >= path })
	if i < len(entries) && entries[i].Path == path {
		return entries[i], true
	}
	return Entry{}, false
}

// Insert adds e to the sorted list, replacing an existing entry with the same
// path. The returned slice stays sorted and unique by path.
func Insert(entries []Entry, e Entry) []Entry {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Path >= e.Path })
	if i < len(entries) && entries[i].Path == e.Path {
		entries[i] = e
		return entries
	}
	entries = append(entries, Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}

// Remove deletes the entry for path, reporting whether one existed.
func Remove(entries []Entry, path string) ([]Entry, bool) {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Path >= path })
	if i < len(entries) && entries[i].Path == path {
		return append(entries[:i], entries[i+1:]...), true
	}
	return entries, false
}

// Sort orders entries by path.
func Sort(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

// FormatEntry renders an entry for ls-files: the bare path, or
// "<mode> <hash> <stage>\t<path>" when detailed.
func FormatEntry(e Entry, detailed bool) string {
	if !detailed {
		return e.Path
	}
	return fmt.Sprintf("%06o %s %d\t%s", e.Mode, e.Hash, e.Stage(), e.Path)
}
