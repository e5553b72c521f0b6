package object

import (
	"fmt"
	"time"
)

// Kind identifies which of the three object variants a stored object is.
type Kind uint8

const (
	KindBlob Kind = iota + 1
	KindTree
	KindCommit
)

// String returns the kind's header text ("blob", "tree" or "commit").
func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	case KindCommit:
		return "commit"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps header text back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "blob":
		return KindBlob, nil
	case "tree":
		return KindTree, nil
	case "commit":
		return KindCommit, nil
	default:
		return 0, fmt.Errorf("unknown object kind %q", s)
	}
}

// Object is implemented by *Blob, *Tree and *Commit.
type Object interface {
	Kind() Kind
}

// Mode is a tree entry mode. Its text form is the octal number without a
// leading zero, e.g. "100644" or "40000".
type Mode uint32

const (
	ModeDir        Mode = 0o40000
	ModeFile       Mode = 0o100644
	ModeExecutable Mode = 0o100755
	ModeSymlink    Mode = 0o120000
)

// IsDir reports whether the entry refers to a subtree.
func (m Mode) IsDir() bool { return m == ModeDir }

func (m Mode) IsSymlink() bool { return m == ModeSymlink }

func (m Mode) String() string { return fmt.Sprintf("%o", uint32(m)) }

// ParseMode parses the octal text form of a tree entry mode.
func ParseMode(s string) (Mode, error) {
	var v uint32
	if s == "" {
		return 0, fmt.Errorf("empty mode")
	}
	for _, c := range s {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("invalid mode %q", s)
		}
		v = v<<3 | uint32(c-'0')
	}
	switch m := Mode(v); m {
	case ModeDir, ModeFile, ModeExecutable, ModeSymlink:
		return m, nil
	default:
		return 0, fmt.Errorf("unsupported mode %q", s)
	}
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

func (*Blob) Kind() Kind { return KindBlob }

// TreeEntry is one (mode, name, hash) triple of a tree.
type TreeEntry struct {
	Mode Mode
	Name string
	Hash Hash
}

// Tree describes one directory level.
type Tree struct {
	Entries []TreeEntry // canonical order, see SortTreeEntries
}

func (*Tree) Kind() Kind { return KindTree }

// Signature identifies who made a commit and when. Identity is free text,
// conventionally "Name <email>".
type Signature struct {
	Identity string
	When     time.Time
}

// Commit records a tree snapshot. Only linear history is supported, so a
// commit has at most one parent.
type Commit struct {
	TreeHash  Hash
	Parent    Hash // empty for a root commit
	Author    Signature
	Committer Signature
	Message   string
}

func (*Commit) Kind() Kind { return KindCommit }
