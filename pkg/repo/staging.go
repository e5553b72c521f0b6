package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
	"go.uber.org/zap"
)

// indexPath returns the filesystem path to the index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.Dir, "index")
}

// ReadIndex loads the index. A missing index is empty.
func (r *Repo) ReadIndex() ([]index.Entry, error) {
	return index.Read(r.indexPath())
}

// WriteIndex replaces the index with entries.
func (r *Repo) WriteIndex(entries []index.Entry) error {
	if err := index.Write(r.indexPath(), entries); err != nil {
		return err
	}
	r.Logger.Debug("index written", zap.Int("entries", len(entries)))
	return nil
}

// Add stages paths, which are absolute or relative to the process working
// directory. Directories are staged recursively. A tracked path that no
// longer exists in the work tree is removed from the index. The index is
// written once, after every path has been processed.
func (r *Repo) Add(paths []string) error {
	entries, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		entries, err = r.addPath(entries, rel)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}

	if err := r.WriteIndex(entries); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// addPath stages rel ("" is the work tree root). Untracked paths matched by
// the ignore file are skipped while expanding directories; a file named
// directly is always staged.
func (r *Repo) addPath(entries []index.Entry, rel string) ([]index.Entry, error) {
	abs := r.absPath(rel)
	info, err := os.Lstat(abs)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %q: %w", rel, err)
		}
		var removed bool
		entries, removed = removeTracked(entries, rel)
		if !removed {
			return nil, fmt.Errorf("pathspec %q did not match any files", rel)
		}
		r.Logger.Debug("unstaged deleted path", zap.String("path", rel))
		return entries, nil
	}

	if !info.IsDir() {
		return r.stageFile(entries, rel, info)
	}

	ig := NewIgnorer(r.RootDir, filepath.Base(r.Dir))
	tracked := make(map[string]bool, len(entries))
	for _, e := range entries {
		tracked[e.Path] = true
	}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == r.Dir {
			return filepath.SkipDir
		}
		fileRel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return err
		}
		fileRel = filepath.ToSlash(fileRel)
		if d.IsDir() {
			if p != abs && ig.Ignored(fileRel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !tracked[fileRel] && ig.Ignored(fileRel, false) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() && fi.Mode()&os.ModeSymlink == 0 {
			return nil
		}
		entries, err = r.stageFile(entries, fileRel, fi)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Tracked files under the directory that were deleted from disk.
	kept := entries[:0]
	for _, e := range entries {
		if underDir(e.Path, rel) {
			if _, err := os.Lstat(r.absPath(e.Path)); errors.Is(err, fs.ErrNotExist) {
				r.Logger.Debug("unstaged deleted path", zap.String("path", e.Path))
				continue
			}
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// stageFile writes the blob for rel and inserts its entry, dropping any
// staged entries that would make rel both a file and a directory.
func (r *Repo) stageFile(entries []index.Entry, rel string, info os.FileInfo) ([]index.Entry, error) {
	abs := r.absPath(rel)
	data, err := readWorktreeFile(abs, info)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", rel, err)
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: data})
	if err != nil {
		return nil, fmt.Errorf("write blob %q: %w", rel, err)
	}
	e, err := index.EntryFromFile(abs, rel, h)
	if err != nil {
		return nil, err
	}

	entries, _ = removeTracked(entries, rel+"/")
	for dir := parentDir(rel); dir != ""; dir = parentDir(dir) {
		entries, _ = index.Remove(entries, dir)
	}
	return index.Insert(entries, e), nil
}

// UpdateIndex stages the named files. Unlike Add, directories are not
// expanded and every path must exist.
func (r *Repo) UpdateIndex(paths []string) error {
	entries, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("update index: %w", err)
	}
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("update index: %w", err)
		}
		info, err := os.Lstat(r.absPath(rel))
		if err != nil {
			return fmt.Errorf("update index: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("update index: %q is a directory", rel)
		}
		if entries, err = r.stageFile(entries, rel, info); err != nil {
			return fmt.Errorf("update index: %w", err)
		}
	}
	if err := r.WriteIndex(entries); err != nil {
		return fmt.Errorf("update index: %w", err)
	}
	return nil
}

// Remove unstages paths and, unless cached is set, deletes them from the
// work tree. A directory removes every tracked entry beneath it. Every path
// must match a tracked entry; nothing is changed otherwise.
func (r *Repo) Remove(paths []string, cached bool) error {
	entries, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}

	var gone []string
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("rm: %w", err)
		}
		for _, e := range entries {
			if rel != "" && (e.Path == rel || underDir(e.Path, rel)) {
				gone = append(gone, e.Path)
			}
		}
		var removed bool
		entries, removed = removeTracked(entries, rel)
		if !removed {
			return fmt.Errorf("rm: pathspec %q did not match any files", rel)
		}
	}

	if err := r.WriteIndex(entries); err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	if cached {
		return nil
	}
	for _, rel := range gone {
		abs := r.absPath(rel)
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rm: %w", err)
		}
		r.removeEmptyParents(filepath.Dir(abs))
		r.Logger.Debug("removed path", zap.String("path", rel))
	}
	return nil
}

// LsFiles lists the staged paths, or detailed "mode hash stage\tpath" lines.
func (r *Repo) LsFiles(detailed bool) ([]string, error) {
	entries, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("ls-files: %w", err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = index.FormatEntry(e, detailed)
	}
	return out, nil
}

// removeTracked drops the entry for rel and, when rel ends in "/" or names a
// directory, every entry beneath it.
func removeTracked(entries []index.Entry, rel string) ([]index.Entry, bool) {
	dir := strings.TrimSuffix(rel, "/")
	removed := false
	kept := entries[:0]
	for _, e := range entries {
		if (e.Path == rel || underDir(e.Path, dir)) && rel != "" {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}

// underDir reports whether p lies beneath directory dir ("" is the root).
func underDir(p, dir string) bool {
	if dir == "" {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

func (r *Repo) absPath(rel string) string {
	return filepath.Join(r.RootDir, filepath.FromSlash(rel))
}

// repoRelPath converts p, absolute or relative to the working directory, to
// a "/"-separated path relative to the work tree root. Paths outside the
// work tree or inside the store directory are rejected.
func (r *Repo) repoRelPath(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(p) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", p, err)
		}
		abs = filepath.Join(cwd, p)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is outside repository at %q", p, r.RootDir)
	}
	if abs == r.Dir || strings.HasPrefix(abs, r.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is inside the repository store", p)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}
