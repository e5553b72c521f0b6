package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odvcencio/twig/pkg/object"
)

func TestCommit_EmptyIndex(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.Commit("empty", "Test <test@example.com>")
	if !errors.Is(err, ErrNothingToCommit) {
		t.Fatalf("Commit error = %v, want ErrNothingToCommit", err)
	}
}

// The first commit has no parent; the next one points at it and the branch
// ref follows.
func TestCommit_AdvancesBranch(t *testing.T) {
	r := newTestRepo(t)

	first := commitFile(t, r, "a.txt", "one\n", "first")
	c1, err := r.Store.ReadCommit(first)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c1.Parent != "" {
		t.Errorf("first commit parent = %q, want none", c1.Parent)
	}
	if c1.Message != "first\n" {
		t.Errorf("message = %q", c1.Message)
	}
	if c1.Author.Identity != "Test <test@example.com>" || c1.Committer.Identity != c1.Author.Identity {
		t.Errorf("author/committer = %q/%q", c1.Author.Identity, c1.Committer.Identity)
	}
	if d := time.Since(c1.Author.When); d < 0 || d > time.Minute {
		t.Errorf("author time %v is not now", c1.Author.When)
	}

	second := commitFile(t, r, "a.txt", "two\n", "second")
	c2, err := r.Store.ReadCommit(second)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c2.Parent != first {
		t.Errorf("second commit parent = %s, want %s", c2.Parent, first)
	}

	tip, err := r.ResolveRef("refs/heads/master")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if tip != second {
		t.Errorf("master = %s, want %s", tip, second)
	}
	head, err := r.Head()
	if err != nil || head.Ref != "refs/heads/master" {
		t.Errorf("HEAD = %+v, %v; want symbolic master", head, err)
	}
}

func TestCommit_DetachedHead(t *testing.T) {
	r := newTestRepo(t)
	first := commitFile(t, r, "a.txt", "one\n", "first")
	if err := r.UpdateRef("HEAD", string(first)); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	second := commitFile(t, r, "b.txt", "b\n", "detached")

	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Hash != second {
		t.Errorf("detached HEAD = %s, want %s", head.Hash, second)
	}
	tip, _ := r.ResolveRef("refs/heads/master")
	if tip != first {
		t.Errorf("master moved to %s while detached", tip)
	}
}

// Identical trees hash the same; the commits on top of them still differ.
func TestCommit_IdenticalTrees(t *testing.T) {
	r := newTestRepo(t)
	first := commitFile(t, r, "a.txt", "same\n", "one")
	second, err := r.Commit("two", "Test <test@example.com>")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if first == second {
		t.Fatal("commits on identical trees share a hash")
	}
	c1, _ := r.Store.ReadCommit(first)
	c2, _ := r.Store.ReadCommit(second)
	if c1.TreeHash != c2.TreeHash {
		t.Errorf("tree hashes differ: %s vs %s", c1.TreeHash, c2.TreeHash)
	}
}

func TestCommitTree(t *testing.T) {
	r := newTestRepo(t)
	tree, err := r.WriteTree(nil)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	sig := object.Signature{Identity: "A <a@b>", When: time.Unix(1700000000, 0).UTC()}

	h, err := r.CommitTree(tree, "root", "", sig)
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	want := object.HashObject(object.KindCommit, object.MarshalCommit(&object.Commit{
		TreeHash: tree, Author: sig, Committer: sig, Message: "root",
	}))
	if h != want {
		t.Errorf("CommitTree = %s, want %s", h, want)
	}

	// No ref moved.
	if _, err := r.ResolveRef("HEAD"); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("HEAD resolved after CommitTree: %v", err)
	}

	child, err := r.CommitTree(tree, "child", h, sig)
	if err != nil {
		t.Fatalf("CommitTree child: %v", err)
	}
	c, _ := r.Store.ReadCommit(child)
	if c.Parent != h {
		t.Errorf("parent = %s, want %s", c.Parent, h)
	}

	if _, err := r.CommitTree(object.ZeroHash, "x", "", sig); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("missing tree error = %v", err)
	}
	if _, err := r.CommitTree(tree, "x", object.ZeroHash, sig); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("missing parent error = %v", err)
	}
	// A tree is not a valid parent.
	if _, err := r.CommitTree(tree, "x", tree, sig); err == nil {
		t.Error("tree accepted as parent")
	}
}

func TestLog(t *testing.T) {
	r := newTestRepo(t)
	var hashes []object.Hash
	for _, content := range []string{"1", "2", "3"} {
		hashes = append(hashes, commitFile(t, r, "f", content, "commit "+content))
	}

	log, err := r.Log(hashes[2], 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("Log returned %d entries, want 3", len(log))
	}
	for i, e := range log {
		if e.Hash != hashes[2-i] {
			t.Errorf("log[%d] = %s, want %s", i, e.Hash, hashes[2-i])
		}
	}

	limited, err := r.Log(hashes[2], 2)
	if err != nil || len(limited) != 2 {
		t.Errorf("Log limit 2 = %d entries, %v", len(limited), err)
	}

	// A missing parent is an error, not a silent stop.
	if err := os.Remove(filepath.Join(r.Dir, "objects", string(hashes[0][:2]), string(hashes[0][2:]))); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	fresh, err := Find(r.RootDir, Options{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if _, err := fresh.Log(hashes[2], 0); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("Log over a missing commit error = %v, want ErrObjectNotFound", err)
	}
}

func TestCommit_RejectsMultilineAuthor(t *testing.T) {
	r := newTestRepo(t)
	first := commitFile(t, r, "a.txt", "a\n", "first")
	writeWorktree(t, r, "a.txt", "b\n")
	if err := r.Add([]string{filepath.Join(r.RootDir, "a.txt")}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, author := range []string{
		"Eve\nparent " + string(object.ZeroHash) + " <e@x>",
		"Eve <e@x>\r",
		"Eve\x00 <e@x>",
	} {
		if _, err := r.Commit("second", author); !errors.Is(err, object.ErrInvalidIdentity) {
			t.Errorf("Commit(%q) error = %v, want ErrInvalidIdentity", author, err)
		}
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if head != first {
		t.Fatalf("HEAD moved to %s, want %s", head, first)
	}
	if _, err := r.Log(head, 0); err != nil {
		t.Fatalf("Log after rejected commit: %v", err)
	}

	tree, err := r.WriteTree(nil)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	sig := object.Signature{Identity: "Eve\ntree " + string(tree), When: time.Unix(1700000000, 0).UTC()}
	if _, err := r.CommitTree(tree, "x", first, sig); !errors.Is(err, object.ErrInvalidIdentity) {
		t.Errorf("CommitTree error = %v, want ErrInvalidIdentity", err)
	}
}
