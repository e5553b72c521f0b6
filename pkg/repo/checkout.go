package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
	"go.uber.org/zap"
)

// ErrCheckoutConflict is returned when checking out would overwrite files
// that are not tracked by the index.
var ErrCheckoutConflict = errors.New("untracked working tree files would be overwritten by checkout")

// Checkout switches the work tree, index and HEAD to target, which is any
// revision ResolveRevision accepts. Branches leave HEAD symbolic; anything
// else detaches it.
//
//  1. Resolve target and read its commit and tree.
//  2. Load every blob of the target tree.
//  3. Refuse if an untracked file or directory would be overwritten.
//  4. Remove tracked files absent from the target, pruning empty directories.
//  5. Write the target files.
//  6. Rewrite the index from the target tree.
//  7. Update HEAD.
//
// Nothing in the work tree changes unless steps 1-3 succeed.
func (r *Repo) Checkout(target string) error {
	// 1. Resolve.
	h, branch, err := r.ResolveRevision(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	commit, err := r.Store.ReadCommit(h)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	files, err := r.ReadTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	// 2. Load blobs.
	blobs := make(map[string][]byte, len(files))
	for _, f := range files {
		b, err := r.Store.ReadBlob(f.Hash)
		if err != nil {
			return fmt.Errorf("checkout: %q: %w", f.Path, err)
		}
		blobs[f.Path] = b.Data
	}
	r.Logger.Debug("checkout validated", zap.String("commit", string(h)), zap.Int("files", len(files)))

	// 3. Untracked files in the way.
	current, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	tracked := make(map[string]bool, len(current))
	for _, e := range current {
		tracked[e.Path] = true
	}
	if conflicts := r.checkoutConflicts(files, blobs, tracked); len(conflicts) > 0 {
		return fmt.Errorf("checkout %s: %w: %s", target, ErrCheckoutConflict, strings.Join(conflicts, ", "))
	}

	// 4. Remove tracked files that the target does not have.
	for _, e := range current {
		if _, ok := blobs[e.Path]; ok {
			continue
		}
		abs := r.absPath(e.Path)
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checkout: remove %q: %w", e.Path, err)
		}
		r.removeEmptyParents(filepath.Dir(abs))
	}

	// 5. Write target files.
	for _, f := range files {
		abs := r.absPath(f.Path)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("checkout: mkdir for %q: %w", f.Path, err)
		}
		if info, err := os.Lstat(abs); err == nil && info.IsDir() {
			// Only empty directories can remain here; see checkoutConflicts.
			if err := os.RemoveAll(abs); err != nil {
				return fmt.Errorf("checkout: remove directory %q: %w", f.Path, err)
			}
		}
		if err := writeWorktreeFile(abs, f.Mode, blobs[f.Path]); err != nil {
			return fmt.Errorf("checkout: write %q: %w", f.Path, err)
		}
	}

	// 6. Rewrite the index.
	entries := make([]index.Entry, 0, len(files))
	for _, f := range files {
		e, err := index.EntryFromFile(r.absPath(f.Path), f.Path, f.Hash)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		entries = index.Insert(entries, e)
	}
	if err := r.WriteIndex(entries); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	// 7. Update HEAD.
	from, prev := r.headDescription()
	to := target
	if branch != "" {
		to = strings.TrimPrefix(branch, headsPrefix)
		err = r.SymbolicRef("HEAD", branch)
	} else {
		err = r.writeRef("HEAD", string(h))
	}
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	r.logRefUpdate("HEAD", prev, h, fmt.Sprintf("checkout: moving from %s to %s", from, to))
	r.Logger.Debug("checkout complete", zap.String("commit", string(h)), zap.String("branch", branch))
	return nil
}

// headDescription names what HEAD currently points at for reflog messages:
// the branch name, or the abbreviated commit when detached. It also returns
// the commit HEAD resolves to, if any.
func (r *Repo) headDescription() (string, object.Hash) {
	h, _ := r.ResolveRef("HEAD")
	head, err := r.Head()
	switch {
	case err != nil:
		return "HEAD", h
	case head.Detached():
		return head.Hash.Short(), h
	default:
		return strings.TrimPrefix(head.Ref, headsPrefix), h
	}
}

// checkoutConflicts lists work tree paths that writing files would clobber
// without them being tracked. An untracked file whose content already
// matches the target is not a conflict.
func (r *Repo) checkoutConflicts(files []TreeFile, blobs map[string][]byte, tracked map[string]bool) []string {
	seen := make(map[string]bool)
	var conflicts []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			conflicts = append(conflicts, p)
		}
	}

	for _, f := range files {
		// A parent directory occupied by an untracked file or symlink.
		for dir := parentDir(f.Path); dir != ""; dir = parentDir(dir) {
			info, err := os.Lstat(r.absPath(dir))
			if err == nil && !info.IsDir() && !tracked[dir] {
				add(dir)
			}
		}

		abs := r.absPath(f.Path)
		info, err := os.Lstat(abs)
		if err != nil || tracked[f.Path] {
			continue
		}
		if info.IsDir() {
			// Everything left in the directory after tracked files are
			// removed would be lost.
			for _, p := range r.untrackedUnder(abs, tracked) {
				add(p)
			}
			continue
		}
		data, err := readWorktreeFile(abs, info)
		if err != nil || !bytes.Equal(data, blobs[f.Path]) || (info.Mode()&os.ModeSymlink != 0) != f.Mode.IsSymlink() {
			add(f.Path)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// untrackedUnder lists the untracked non-directory paths beneath dir.
func (r *Repo) untrackedUnder(dir string, tracked map[string]bool) []string {
	var out []string
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			out = append(out, r.relOrSelf(p))
			return nil
		}
		if !d.IsDir() {
			if rel := r.relOrSelf(p); !tracked[rel] {
				out = append(out, rel)
			}
		}
		return nil
	})
	return out
}

func (r *Repo) relOrSelf(p string) string {
	rel, err := filepath.Rel(r.RootDir, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
