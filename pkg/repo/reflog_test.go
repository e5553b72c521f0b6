package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/twig/pkg/object"
)

func TestUpdateRef_WritesReflog(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "a.txt", "1", "one")
	h2 := commitFile(t, r, "a.txt", "2", "two")

	if err := r.UpdateRef("refs/heads/topic", string(h1)); err != nil {
		t.Fatalf("UpdateRef(h1): %v", err)
	}
	if err := r.UpdateRef("refs/heads/topic", string(h2)); err != nil {
		t.Fatalf("UpdateRef(h2): %v", err)
	}

	entries, err := r.ReadReflog("topic", 10)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 reflog entries, got %d", len(entries))
	}
	if entries[0].New != h2 || entries[0].Old != h1 {
		t.Fatalf("latest entry = %s -> %s, want %s -> %s", entries[0].Old, entries[0].New, h1, h2)
	}
	if entries[1].Old != object.ZeroHash || entries[1].New != h1 {
		t.Fatalf("first entry = %s -> %s, want creation of %s", entries[1].Old, entries[1].New, h1)
	}
	if entries[0].Message != "update" || entries[0].Ref != "refs/heads/topic" {
		t.Fatalf("entry = %+v", entries[0])
	}

	assertFile(t, filepath.Join(r.Dir, "logs", "refs", "heads", "topic"))
}

func TestReflog_CommitAndCheckout(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "a.txt", "1", "first")
	h2 := commitFile(t, r, "a.txt", "2", "second\n\nbody")

	branch, err := r.ReadReflog("master", 0)
	if err != nil {
		t.Fatalf("ReadReflog(master): %v", err)
	}
	if len(branch) != 2 {
		t.Fatalf("master reflog has %d entries, want 2", len(branch))
	}
	if branch[0].Message != "commit: second" {
		t.Errorf("latest message = %q", branch[0].Message)
	}
	if branch[1].Message != "commit (initial): first" || branch[1].Old != object.ZeroHash {
		t.Errorf("initial entry = %+v", branch[1])
	}

	if err := r.Checkout(string(h1)); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	head, err := r.ReadReflog("HEAD", 1)
	if err != nil {
		t.Fatalf("ReadReflog(HEAD): %v", err)
	}
	if len(head) != 1 {
		t.Fatalf("limit ignored: got %d entries", len(head))
	}
	want := fmt.Sprintf("checkout: moving from master to %s", h1)
	if head[0].Message != want || head[0].Old != h2 || head[0].New != h1 {
		t.Errorf("HEAD entry = %+v, want %q %s -> %s", head[0], want, h2, h1)
	}

	all, err := r.ReadReflog("", 0)
	if err != nil {
		t.Fatalf("ReadReflog(\"\"): %v", err)
	}
	// Two commits plus the checkout.
	if len(all) != 3 {
		t.Errorf("HEAD reflog has %d entries, want 3", len(all))
	}
}

func TestReflog_Disabled(t *testing.T) {
	r := newTestRepo(t)
	cfg := DefaultConfig()
	cfg.Core.LogAllRefUpdates = false
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	commitFile(t, r, "a.txt", "1", "first")

	if _, err := os.Stat(filepath.Join(r.Dir, "logs")); !os.IsNotExist(err) {
		t.Fatalf("logs directory created with reflogs disabled: %v", err)
	}
	entries, err := r.ReadReflog("master", 0)
	if err != nil || entries != nil {
		t.Fatalf("ReadReflog = %v, %v; want nothing", entries, err)
	}
}

func TestReflog_SkipsMalformedLines(t *testing.T) {
	r := newTestRepo(t)
	h := commitFile(t, r, "a.txt", "1", "first")

	p := filepath.Join(r.Dir, "logs", "refs", "heads", "master")
	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open reflog: %v", err)
	}
	fmt.Fprintln(f, "garbage")
	fmt.Fprintln(f, "a b notanumber message")
	f.Close()

	entries, err := r.ReadReflog("refs/heads/master", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 1 || entries[0].New != h {
		t.Fatalf("entries = %+v", entries)
	}

	if _, err := r.ReadReflog("../escape", 0); err == nil {
		t.Fatal("ReadReflog accepted an escaping ref name")
	}
}
