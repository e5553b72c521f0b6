package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

var (
	// ErrRepositoryNotFound is returned by Find when no store directory
	// exists in the start directory or any of its parents.
	ErrRepositoryNotFound = errors.New("not a twig repository")
	// ErrNotADirectory is returned by Create when the target is missing or
	// is not a directory.
	ErrNotADirectory = errors.New("not a directory")
)

const description = "Unnamed repository; edit this file 'description' to name the repository.\n"

// Create initializes a repository in dir, which must be an existing
// directory. It lays out HEAD, config, description, objects/ and refs/.
// If the store directory already exists it is opened as-is and nothing is
// rewritten.
func Create(dir string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("init %s: %w", abs, ErrNotADirectory)
		}
		return nil, fmt.Errorf("init: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("init %s: %w", abs, ErrNotADirectory)
	}

	r := open(abs, opts)
	if info, err := os.Stat(r.Dir); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("init %s: %w", r.Dir, ErrNotADirectory)
		}
		r.Logger.Debug("repository already exists", zap.String("dir", r.Dir))
		return r, nil
	}

	for _, d := range []string{
		filepath.Join(r.Dir, "objects"),
		filepath.Join(r.Dir, "refs", "heads"),
		filepath.Join(r.Dir, "refs", "tags"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := os.WriteFile(filepath.Join(r.Dir, "HEAD"), []byte(symrefPrefix+"refs/heads/"+DefaultBranch+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir, "description"), []byte(description), 0o644); err != nil {
		return nil, fmt.Errorf("init: write description: %w", err)
	}
	if err := r.WriteConfig(DefaultConfig()); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r.Logger.Debug("repository created", zap.String("dir", r.Dir))
	return r, nil
}

// Find searches upward from dir for a store directory and opens the
// repository that contains it.
func Find(dir string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		info, err := os.Stat(filepath.Join(cur, opts.dirName()))
		if err == nil && info.IsDir() {
			return open(cur, opts), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w (or any of the parent directories)", abs, ErrRepositoryNotFound)
		}
		cur = parent
	}
}
