package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/lockfile"
	"github.com/odvcencio/twig/pkg/object"
	"go.uber.org/zap"
)

var (
	// ErrInvalidRef is returned for refs that are missing, malformed or
	// cannot be resolved to an object.
	ErrInvalidRef = errors.New("invalid ref")
	// ErrDetachedHead is returned by operations that need HEAD to name a
	// branch while it holds a commit hash.
	ErrDetachedHead = fmt.Errorf("%w: HEAD is detached", ErrInvalidRef)
)

const (
	symrefPrefix = "ref: "
	headsPrefix  = "refs/heads/"
	tagsPrefix   = "refs/tags/"

	// maxSymrefDepth bounds symbolic ref chains so cycles terminate.
	maxSymrefDepth = 5
)

// HeadState is the decoded content of HEAD. Exactly one field is set: Ref
// for a symbolic HEAD ("refs/heads/master"), Hash for a detached one.
type HeadState struct {
	Ref  string
	Hash object.Hash
}

// Detached reports whether HEAD holds a commit hash directly.
func (h HeadState) Detached() bool {
	return h.Ref == ""
}

// validRefName rejects names that would escape the store directory or
// collide with lock files.
func validRefName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty ref name", ErrInvalidRef)
	}
	if strings.ContainsAny(name, "\x00\\ ") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("%w: bad ref name %q", ErrInvalidRef, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: bad ref name %q", ErrInvalidRef, name)
		}
	}
	return nil
}

func (r *Repo) refPath(name string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(name))
}

// readRef returns the trimmed content of a ref file. A missing file is
// reported as ErrInvalidRef wrapping fs.ErrNotExist.
func (r *Repo) readRef(name string) (string, error) {
	if err := validRefName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(r.refPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrInvalidRef, name, fs.ErrNotExist)
		}
		return "", fmt.Errorf("read ref %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *Repo) refExists(name string) bool {
	if validRefName(name) != nil {
		return false
	}
	info, err := os.Stat(r.refPath(name))
	return err == nil && info.Mode().IsRegular()
}

// Head reads HEAD.
func (r *Repo) Head() (HeadState, error) {
	content, err := r.readRef("HEAD")
	if err != nil {
		return HeadState{}, fmt.Errorf("head: %w", err)
	}
	if target, ok := strings.CutPrefix(content, symrefPrefix); ok {
		target = strings.TrimSpace(target)
		if err := validRefName(target); err != nil {
			return HeadState{}, fmt.Errorf("head: %w", err)
		}
		return HeadState{Ref: target}, nil
	}
	h, err := object.ParseHash(content)
	if err != nil {
		return HeadState{}, fmt.Errorf("head: %w: %v", ErrInvalidRef, err)
	}
	return HeadState{Hash: h}, nil
}

// GetRef returns the ref HEAD points at, or ErrDetachedHead.
func (r *Repo) GetRef() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if head.Detached() {
		return "", fmt.Errorf("get ref: %w", ErrDetachedHead)
	}
	return head.Ref, nil
}

// IsDetached reports whether HEAD holds a commit hash directly.
func (r *Repo) IsDetached() (bool, error) {
	head, err := r.Head()
	if err != nil {
		return false, err
	}
	return head.Detached(), nil
}

// CurrentBranch returns the short name of the checked-out branch.
func (r *Repo) CurrentBranch() (string, error) {
	ref, err := r.GetRef()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(ref, headsPrefix), nil
}

// ResolveRef follows name through symbolic refs to a hash. Names are paths
// relative to the store directory, such as "HEAD" or "refs/heads/master".
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	cur := name
	for hop := 0; hop <= maxSymrefDepth; hop++ {
		content, err := r.readRef(cur)
		if err != nil {
			return "", fmt.Errorf("resolve ref %q: %w", name, err)
		}
		if target, ok := strings.CutPrefix(content, symrefPrefix); ok {
			cur = strings.TrimSpace(target)
			continue
		}
		h, err := object.ParseHash(content)
		if err != nil {
			return "", fmt.Errorf("resolve ref %q: %w: %s does not hold a hash", name, ErrInvalidRef, cur)
		}
		return h, nil
	}
	return "", fmt.Errorf("resolve ref %q: %w: more than %d symbolic refs", name, ErrInvalidRef, maxSymrefDepth)
}

// UpdateRef replaces the content of ref with value plus a newline. The file
// is written under ref+".lock" and renamed into place. Hash updates are
// recorded in the ref's reflog.
func (r *Repo) UpdateRef(ref, value string) error {
	return r.updateRef(ref, value, "update")
}

func (r *Repo) updateRef(ref, value, reason string) error {
	old, _ := r.ResolveRef(ref)
	if err := r.writeRef(ref, value); err != nil {
		return err
	}
	if h, err := object.ParseHash(value); err == nil {
		r.logRefUpdate(ref, old, h, reason)
	}
	return nil
}

func (r *Repo) writeRef(ref, value string) error {
	if err := validRefName(ref); err != nil {
		return fmt.Errorf("update ref: %w", err)
	}
	if err := lockfile.WriteFile(r.refPath(ref), []byte(value+"\n")); err != nil {
		return fmt.Errorf("update ref %s: %w", ref, err)
	}
	r.Logger.Debug("ref updated", zap.String("ref", ref), zap.String("value", value))
	return nil
}

// SymbolicRef points name at target.
func (r *Repo) SymbolicRef(name, target string) error {
	if err := validRefName(target); err != nil {
		return fmt.Errorf("symbolic ref: %w", err)
	}
	return r.writeRef(name, symrefPrefix+target)
}

// ReadSymbolicRef returns the target of the symbolic ref name.
func (r *Repo) ReadSymbolicRef(name string) (string, error) {
	content, err := r.readRef(name)
	if err != nil {
		return "", fmt.Errorf("symbolic ref: %w", err)
	}
	target, ok := strings.CutPrefix(content, symrefPrefix)
	if !ok {
		return "", fmt.Errorf("symbolic ref %s: %w: not a symbolic ref", name, ErrInvalidRef)
	}
	return strings.TrimSpace(target), nil
}

// ListRefs lists the refs under refs/<prefix> with their resolved hashes.
// Names are full, e.g. "refs/heads/master".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.Dir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	var names []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(r.Dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	refs := make(map[string]object.Hash, len(names))
	if errors.Is(err, fs.ErrNotExist) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	sort.Strings(names)
	for _, name := range names {
		h, err := r.ResolveRef(name)
		if err != nil {
			return nil, fmt.Errorf("list refs: %w", err)
		}
		refs[name] = h
	}
	return refs, nil
}

// ResolveRevision resolves a user-supplied revision: "HEAD", a full ref
// name, a branch name, a tag name, or a full or abbreviated object hash.
// When rev names a branch, its full ref name is returned as well.
func (r *Repo) ResolveRevision(rev string) (object.Hash, string, error) {
	rev = strings.TrimSpace(rev)
	switch {
	case rev == "HEAD":
		head, err := r.Head()
		if err != nil {
			return "", "", err
		}
		h, err := r.ResolveRef("HEAD")
		if err != nil {
			return "", "", err
		}
		return h, head.Ref, nil
	case strings.HasPrefix(rev, "refs/"):
		h, err := r.ResolveRef(rev)
		if err != nil {
			return "", "", err
		}
		if strings.HasPrefix(rev, headsPrefix) {
			return h, rev, nil
		}
		return h, "", nil
	case r.refExists(headsPrefix + rev):
		h, err := r.ResolveRef(headsPrefix + rev)
		if err != nil {
			return "", "", err
		}
		return h, headsPrefix + rev, nil
	case r.refExists(tagsPrefix + rev):
		h, err := r.ResolveRef(tagsPrefix + rev)
		if err != nil {
			return "", "", err
		}
		return h, "", nil
	}

	if len(rev) >= object.MinPrefix && len(rev) <= object.HexSize && isHexString(rev) {
		h, err := r.Store.ResolvePrefix(rev)
		if err != nil {
			return "", "", err
		}
		return h, "", nil
	}
	return "", "", fmt.Errorf("resolve %q: %w: unknown revision", rev, ErrInvalidRef)
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
