package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
)

// FileStatus is the state of a path in one comparison.
type FileStatus int

const (
	StatusClean     FileStatus = iota // both sides match
	StatusNew                         // in the index, not in HEAD
	StatusModified                    // content or mode differs
	StatusDeleted                     // missing from the newer side
	StatusUntracked                   // in the work tree, not in the index
)

// StatusEntry records the status of a single path.
type StatusEntry struct {
	Path        string     // repo-relative path
	IndexStatus FileStatus // index vs HEAD tree
	WorkStatus  FileStatus // work tree vs index
}

// Code renders the entry as a two-letter porcelain code such as "A ", " M"
// or "??".
func (e StatusEntry) Code() string {
	if e.IndexStatus == StatusUntracked || e.WorkStatus == StatusUntracked {
		return "??"
	}
	letter := func(s FileStatus) byte {
		switch s {
		case StatusNew:
			return 'A'
		case StatusModified:
			return 'M'
		case StatusDeleted:
			return 'D'
		default:
			return ' '
		}
	}
	return string([]byte{letter(e.IndexStatus), letter(e.WorkStatus)})
}

// statusRacyWindow is how recent a modification time must be before a stat
// match is no longer trusted and the file is hashed instead.
const statusRacyWindow = 2 * time.Second

// Status compares HEAD, the index and the work tree. Clean paths are
// omitted.
//
//  1. Read the index and the HEAD tree (empty on an unborn branch).
//  2. Walk the work tree, skipping the store and ignored paths.
//  3. Compare work tree files against index entries.
//  4. Compare index entries against the HEAD tree.
func (r *Repo) Status() ([]StatusEntry, error) {
	entries, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	head, err := r.headFiles()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	staged := make(map[string]index.Entry, len(entries))
	for _, e := range entries {
		staged[e.Path] = e
	}

	ig := NewIgnorer(r.RootDir, filepath.Base(r.Dir))
	result := make(map[string]*StatusEntry)
	get := func(p string) *StatusEntry {
		se, ok := result[p]
		if !ok {
			se = &StatusEntry{Path: p}
			result[p] = se
		}
		return se
	}

	seen := make(map[string]bool)
	err = filepath.WalkDir(r.RootDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == r.RootDir {
			return nil
		}
		if p == r.Dir {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if ig.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		e, tracked := staged[rel]
		if !tracked {
			if !ig.Ignored(rel, false) {
				get(rel).WorkStatus = StatusUntracked
			}
			return nil
		}
		seen[rel] = true
		dirty, err := r.worktreeDiffers(p, e)
		if err != nil {
			return err
		}
		if dirty {
			get(rel).WorkStatus = StatusModified
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("status: walk: %w", err)
	}

	for _, e := range entries {
		if !seen[e.Path] {
			get(e.Path).WorkStatus = StatusDeleted
		}
		h, inHead := head[e.Path]
		switch {
		case !inHead:
			get(e.Path).IndexStatus = StatusNew
		case h.Hash != e.Hash || h.Mode != e.TreeMode():
			get(e.Path).IndexStatus = StatusModified
		}
	}
	for p := range head {
		if _, ok := staged[p]; !ok {
			get(p).IndexStatus = StatusDeleted
		}
	}

	out := make([]StatusEntry, 0, len(result))
	for _, se := range result {
		out = append(out, *se)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// headFiles maps each file of the HEAD commit's tree to its entry. An
// unborn branch has no files.
func (r *Repo) headFiles() (map[string]TreeFile, error) {
	files := make(map[string]TreeFile)
	h, err := r.ResolveRef("HEAD")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return files, nil
		}
		return nil, err
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, err
	}
	list, err := r.ReadTree(c.TreeHash)
	if err != nil {
		return nil, err
	}
	for _, f := range list {
		files[f.Path] = f
	}
	return files, nil
}

// worktreeDiffers reports whether the file at abs no longer matches its
// index entry. Matching size, mode and mtime are trusted unless the file
// was modified too recently to tell; otherwise the content is hashed.
func (r *Repo) worktreeDiffers(abs string, e index.Entry) (bool, error) {
	info, err := os.Lstat(abs)
	if err != nil {
		return false, err
	}
	mode, err := index.ModeFromFileMode(info.Mode())
	if err != nil || mode != e.Mode {
		return true, nil
	}
	cur, err := index.EntryFromFile(abs, e.Path, e.Hash)
	if err != nil {
		return false, err
	}
	if cur.Size == e.Size && cur.MTime == e.MTime && time.Since(info.ModTime()) >= statusRacyWindow {
		return false, nil
	}

	data, err := readWorktreeFile(abs, info)
	if err != nil {
		return false, err
	}
	return object.HashObject(object.KindBlob, data) != e.Hash, nil
}
