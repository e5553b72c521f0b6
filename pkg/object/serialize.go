package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// treeSortKey compares directories as if their name ended in "/", so that
// "a.txt" < "a/" < "a0" regardless of entry kind.
func treeSortKey(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// SortTreeEntries sorts entries in canonical tree order.
func SortTreeEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})
}

// MarshalTree serializes a Tree as concatenated entries of the form
//
//	<mode text> SP <name> NUL <20 raw hash bytes>
//
// in canonical order. The input slice is not modified.
func MarshalTree(tr *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	SortTreeEntries(sorted)

	var buf bytes.Buffer
	for i, e := range sorted {
		if err := validTreeName(e.Name); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("marshal tree: duplicate entry %q", e.Name)
		}
		raw, err := e.Hash.Raw()
		if err != nil {
			return nil, fmt.Errorf("marshal tree: entry %q: %w", e.Name, err)
		}
		buf.WriteString(e.Mode.String())
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(raw[:])
	}
	return buf.Bytes(), nil
}

func validTreeName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid entry name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

// UnmarshalTree parses a serialized Tree. Each field is located by its
// delimiter or fixed width; entries must appear in canonical order.
func UnmarshalTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	pos := 0
	for pos < len(data) {
		sp := bytes.IndexByte(data[pos:], ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("%w: tree entry at offset %d: missing mode", ErrCorruptObject, pos)
		}
		mode, err := ParseMode(string(data[pos : pos+sp]))
		if err != nil {
			return nil, fmt.Errorf("%w: tree entry at offset %d: %v", ErrCorruptObject, pos, err)
		}
		pos += sp + 1

		nul := bytes.IndexByte(data[pos:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: tree entry at offset %d: unterminated name", ErrCorruptObject, pos)
		}
		name := string(data[pos : pos+nul])
		if err := validTreeName(name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptObject, err)
		}
		pos += nul + 1

		if len(data)-pos < HashSize {
			return nil, fmt.Errorf("%w: tree entry %q: truncated hash", ErrCorruptObject, name)
		}
		h, _ := HashFromRaw(data[pos : pos+HashSize])
		pos += HashSize

		e := TreeEntry{Mode: mode, Name: name, Hash: h}
		if n := len(tr.Entries); n > 0 && treeSortKey(tr.Entries[n-1]) >= treeSortKey(e) {
			return nil, fmt.Errorf("%w: tree entry %q out of order", ErrCorruptObject, name)
		}
		tr.Entries = append(tr.Entries, e)
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// ValidateIdentity checks that id fits on a single commit header line.
func ValidateIdentity(id string) error {
	if i := strings.IndexAny(id, "\n\r\x00"); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidIdentity, id, id[i])
	}
	return nil
}

// FormatSignature renders "identity unix-seconds ±HHMM".
func FormatSignature(s Signature) string {
	return fmt.Sprintf("%s %d %s", s.Identity, s.When.Unix(), s.When.Format("-0700"))
}

// ParseSignature parses the value of an author or committer line. The
// identity may contain spaces; the last two fields are the time.
func ParseSignature(s string) (Signature, error) {
	tzIdx := strings.LastIndexByte(s, ' ')
	if tzIdx < 0 {
		return Signature{}, fmt.Errorf("signature %q: missing timezone", s)
	}
	tz := s[tzIdx+1:]
	rest := s[:tzIdx]
	tsIdx := strings.LastIndexByte(rest, ' ')
	if tsIdx < 0 {
		return Signature{}, fmt.Errorf("signature %q: missing timestamp", s)
	}
	secs, err := strconv.ParseInt(rest[tsIdx+1:], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("signature %q: bad timestamp: %w", s, err)
	}
	loc, err := parseOffset(tz)
	if err != nil {
		return Signature{}, fmt.Errorf("signature %q: %w", s, err)
	}
	return Signature{
		Identity: rest[:tsIdx],
		When:     time.Unix(secs, 0).In(loc),
	}, nil
}

func parseOffset(tz string) (*time.Location, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return nil, fmt.Errorf("bad timezone %q", tz)
	}
	hh, err1 := strconv.Atoi(tz[1:3])
	mm, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil || mm >= 60 {
		return nil, fmt.Errorf("bad timezone %q", tz)
	}
	offset := hh*3600 + mm*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone("", offset), nil
}

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H        (optional)
//	author A T Z
//	committer A T Z
//
//	message
//
// The message always ends with a newline.
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	if c.Parent != "" {
		fmt.Fprintf(&buf, "parent %s\n", c.Parent)
	}
	fmt.Fprintf(&buf, "author %s\n", FormatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", FormatSignature(c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	if !strings.HasSuffix(c.Message, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: commit: missing header/message separator", ErrCorruptObject)
	}
	header := string(data[:idx])
	c := &Commit{Message: string(data[idx+2:])}

	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: commit: malformed header line %q", ErrCorruptObject, line)
		}
		switch key {
		case "tree":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit: %v", ErrCorruptObject, err)
			}
			c.TreeHash = h
		case "parent":
			if c.Parent != "" {
				return nil, fmt.Errorf("%w: commit: more than one parent", ErrCorruptObject)
			}
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit: %v", ErrCorruptObject, err)
			}
			c.Parent = h
		case "author":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit: author: %v", ErrCorruptObject, err)
			}
			c.Author = sig
		case "committer":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit: committer: %v", ErrCorruptObject, err)
			}
			c.Committer = sig
		default:
			return nil, fmt.Errorf("%w: commit: unknown header key %q", ErrCorruptObject, key)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("%w: commit: missing tree", ErrCorruptObject)
	}
	return c, nil
}

// Parse decodes content of the given kind into its typed variant.
func Parse(kind Kind, data []byte) (Object, error) {
	switch kind {
	case KindBlob:
		return UnmarshalBlob(data)
	case KindTree:
		return UnmarshalTree(data)
	case KindCommit:
		return UnmarshalCommit(data)
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrCorruptObject, kind)
	}
}

// Marshal encodes a typed object into its kind and content bytes.
func Marshal(o Object) (Kind, []byte, error) {
	switch v := o.(type) {
	case *Blob:
		return KindBlob, MarshalBlob(v), nil
	case *Tree:
		data, err := MarshalTree(v)
		return KindTree, data, err
	case *Commit:
		return KindCommit, MarshalCommit(v), nil
	default:
		return 0, nil, fmt.Errorf("marshal: unsupported object %T", o)
	}
}
