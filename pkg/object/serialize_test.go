package object

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseMode(t *testing.T) {
	for text, want := range map[string]Mode{
		"40000":  ModeDir,
		"100644": ModeFile,
		"100755": ModeExecutable,
		"120000": ModeSymlink,
	} {
		got, err := ParseMode(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got)
		assert.Equal(t, text, got.String())
	}
	for _, bad := range []string{"", "100664", "9", "040000x"} {
		_, err := ParseMode(bad)
		assert.Error(t, err, bad)
	}
}

func TestMarshalTreeCanonicalOrder(t *testing.T) {
	h := HashObject(KindBlob, []byte("x"))
	tr := &Tree{Entries: []TreeEntry{
		{Mode: ModeFile, Name: "a0", Hash: h},
		{Mode: ModeDir, Name: "a", Hash: h},
		{Mode: ModeFile, Name: "a.txt", Hash: h},
	}}
	data, err := MarshalTree(tr)
	require.NoError(t, err)

	got, err := UnmarshalTree(data)
	require.NoError(t, err)
	names := make([]string, len(got.Entries))
	for i, e := range got.Entries {
		names[i] = e.Name
	}
	// "a.txt" < "a/" < "a0"
	assert.Equal(t, []string{"a.txt", "a", "a0"}, names)

	// The input slice is left untouched.
	assert.Equal(t, "a0", tr.Entries[0].Name)
}

func TestMarshalTreeEncoding(t *testing.T) {
	h := HashObject(KindBlob, []byte("hello"))
	raw, _ := h.Raw()
	data, err := MarshalTree(&Tree{Entries: []TreeEntry{{Mode: ModeFile, Name: "a.txt", Hash: h}}})
	require.NoError(t, err)

	want := append([]byte("100644 a.txt\x00"), raw[:]...)
	assert.Equal(t, want, data)
}

func TestMarshalTreeRejectsBadEntries(t *testing.T) {
	h := HashObject(KindBlob, []byte("x"))
	for _, tr := range []*Tree{
		{Entries: []TreeEntry{{Mode: ModeFile, Name: "a/b", Hash: h}}},
		{Entries: []TreeEntry{{Mode: ModeFile, Name: "", Hash: h}}},
		{Entries: []TreeEntry{{Mode: ModeFile, Name: "x", Hash: "nothex"}}},
		{Entries: []TreeEntry{{Mode: ModeFile, Name: "x", Hash: h}, {Mode: ModeFile, Name: "x", Hash: h}}},
	} {
		_, err := MarshalTree(tr)
		assert.Error(t, err)
	}
}

func TestUnmarshalTreeCorrupt(t *testing.T) {
	h := HashObject(KindBlob, []byte("x"))
	raw, _ := h.Raw()
	entry := func(mode, name string) []byte {
		return append([]byte(mode+" "+name+"\x00"), raw[:]...)
	}

	cases := map[string][]byte{
		"bad mode":     entry("777", "a"),
		"no name end":  []byte("100644 a"),
		"short hash":   entry("100644", "a")[:20],
		"out of order": append(entry("100644", "b"), entry("100644", "a")...),
		"duplicate":    append(entry("100644", "a"), entry("100644", "a")...),
		"slash name":   entry("100644", "a/b"),
	}
	for name, data := range cases {
		_, err := UnmarshalTree(data)
		assert.True(t, errors.Is(err, ErrCorruptObject), "%s: %v", name, err)
	}

	empty, err := UnmarshalTree(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
}

func TestCommitRoundTrip(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("", 3*3600+30*60))
	c := &Commit{
		TreeHash:  HashObject(KindTree, nil),
		Parent:    HashObject(KindCommit, []byte("p")),
		Author:    Signature{Identity: "Ada Lovelace <ada@example.com>", When: when},
		Committer: Signature{Identity: "Ada Lovelace <ada@example.com>", When: when},
		Message:   "init",
	}
	data := MarshalCommit(c)
	assert.Contains(t, string(data), "author Ada Lovelace <ada@example.com> 1709283600 +0330\n")
	assert.True(t, bytes.HasSuffix(data, []byte("\n\ninit\n")))

	got, err := UnmarshalCommit(data)
	require.NoError(t, err)
	assert.Equal(t, c.TreeHash, got.TreeHash)
	assert.Equal(t, c.Parent, got.Parent)
	assert.Equal(t, c.Author.Identity, got.Author.Identity)
	assert.True(t, c.Author.When.Equal(got.Author.When))
	assert.Equal(t, "init\n", got.Message)

	// Re-encoding a decoded commit is byte-identical.
	assert.Equal(t, data, MarshalCommit(got))
}

func TestCommitWithoutParent(t *testing.T) {
	c := &Commit{
		TreeHash:  HashObject(KindTree, nil),
		Author:    Signature{Identity: "x <x@y>", When: time.Unix(0, 0).UTC()},
		Committer: Signature{Identity: "x <x@y>", When: time.Unix(0, 0).UTC()},
		Message:   "root\n",
	}
	data := MarshalCommit(c)
	assert.NotContains(t, string(data), "parent ")
	assert.Contains(t, string(data), "author x <x@y> 0 +0000\n")

	got, err := UnmarshalCommit(data)
	require.NoError(t, err)
	assert.Empty(t, got.Parent)
	assert.Equal(t, "root\n", got.Message)
}

func TestValidateIdentity(t *testing.T) {
	for _, ok := range []string{"Ada Lovelace <ada@example.com>", "x", ""} {
		assert.NoError(t, ValidateIdentity(ok), ok)
	}
	for _, bad := range []string{"a\nb", "a\r", "a\x00b"} {
		assert.ErrorIs(t, ValidateIdentity(bad), ErrInvalidIdentity, bad)
	}
}

func TestUnmarshalCommitCorrupt(t *testing.T) {
	tree := string(HashObject(KindTree, nil))
	sig := "x <x@y> 0 +0000"
	cases := map[string]string{
		"no separator":  "tree " + tree + "\n",
		"two parents":   "tree " + tree + "\nparent " + tree + "\nparent " + tree + "\nauthor " + sig + "\ncommitter " + sig + "\n\nm\n",
		"bad tree":      "tree nope\nauthor " + sig + "\ncommitter " + sig + "\n\nm\n",
		"missing tree":  "author " + sig + "\ncommitter " + sig + "\n\nm\n",
		"bad signature": "tree " + tree + "\nauthor x\ncommitter " + sig + "\n\nm\n",
		"bad timezone":  "tree " + tree + "\nauthor x 0 0000\ncommitter " + sig + "\n\nm\n",
		"unknown key":   "tree " + tree + "\ngpgsig x\n\nm\n",
	}
	for name, data := range cases {
		_, err := UnmarshalCommit([]byte(data))
		assert.True(t, errors.Is(err, ErrCorruptObject), "%s: %v", name, err)
	}
}

func TestKindString(t *testing.T) {
	for _, k := range []Kind{KindBlob, KindTree, KindCommit} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("tag")
	assert.Error(t, err)
}

func TestHashRaw(t *testing.T) {
	h := HashObject(KindBlob, []byte("raw"))
	raw, err := h.Raw()
	require.NoError(t, err)
	back, err := HashFromRaw(raw[:])
	require.NoError(t, err)
	assert.Equal(t, h, back)

	_, err = Hash("abc").Raw()
	assert.Error(t, err)
	_, err = HashFromRaw([]byte{1, 2})
	assert.Error(t, err)

	parsed, err := ParseHash(" " + string(h[:20]) + string(bytes.ToUpper([]byte(h[20:]))) + "\n")
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Equal(t, string(h[:8]), h.Short())
}

// Any content written under any kind reads back exactly.
func TestPropertyWriteReadRoundTrip(t *testing.T) {
	s := NewStore(afero.NewMemMapFs())
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]Kind{KindBlob, KindTree, KindCommit}).Draw(t, "kind")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		h1, err := s.Write(kind, data)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		h2, err := s.Write(kind, data)
		if err != nil {
			t.Fatalf("Write again: %v", err)
		}
		if h1 != h2 || h1 != HashObject(kind, data) {
			t.Fatalf("hash not deterministic: %s %s", h1, h2)
		}

		gotKind, gotData, err := s.Read(h1)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if gotKind != kind || !bytes.Equal(gotData, data) {
			t.Fatalf("Read = (%s, %q), want (%s, %q)", gotKind, gotData, kind, data)
		}
	})
}

// Tree encoding is independent of entry order and survives a round trip.
func TestPropertyTreeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z0-9._-]{1,12}`).Filter(func(s string) bool { return s != "." && s != ".." }),
			0, 20, rapid.ID[string],
		).Draw(t, "names")

		entries := make([]TreeEntry, len(names))
		for i, n := range names {
			mode := rapid.SampledFrom([]Mode{ModeDir, ModeFile, ModeExecutable, ModeSymlink}).Draw(t, "mode")
			entries[i] = TreeEntry{Mode: mode, Name: n, Hash: HashObject(KindBlob, []byte(n))}
		}

		data, err := MarshalTree(&Tree{Entries: entries})
		if err != nil {
			t.Fatalf("MarshalTree: %v", err)
		}

		shuffled := rapid.Permutation(entries).Draw(t, "shuffled")
		data2, err := MarshalTree(&Tree{Entries: shuffled})
		if err != nil {
			t.Fatalf("MarshalTree: %v", err)
		}
		if !bytes.Equal(data, data2) {
			t.Fatalf("encoding depends on entry order")
		}

		got, err := UnmarshalTree(data)
		if err != nil {
			t.Fatalf("UnmarshalTree: %v", err)
		}
		if len(got.Entries) != len(entries) {
			t.Fatalf("got %d entries, want %d", len(got.Entries), len(entries))
		}
		again, err := MarshalTree(got)
		if err != nil || !bytes.Equal(again, data) {
			t.Fatalf("re-encoding differs: %v", err)
		}
	})
}
