package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/twig/pkg/object"
	"go.uber.org/zap"
)

// ErrNothingToCommit is returned by Commit when the index is empty.
var ErrNothingToCommit = errors.New("nothing to commit")

// CommitTree writes a commit object for tree with an optional parent. The
// author is also recorded as committer. No ref is changed.
func (r *Repo) CommitTree(tree object.Hash, message string, parent object.Hash, author object.Signature) (object.Hash, error) {
	if err := object.ValidateIdentity(author.Identity); err != nil {
		return "", fmt.Errorf("commit tree: author: %w", err)
	}
	if _, err := r.Store.ReadTree(tree); err != nil {
		return "", fmt.Errorf("commit tree: %w", err)
	}
	if parent != "" {
		if _, err := r.Store.ReadCommit(parent); err != nil {
			return "", fmt.Errorf("commit tree: parent: %w", err)
		}
	}

	h, err := r.Store.WriteCommit(&object.Commit{
		TreeHash:  tree,
		Parent:    parent,
		Author:    author,
		Committer: author,
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("commit tree: %w", err)
	}
	return h, nil
}

// Commit records the index as a new commit on top of HEAD and advances the
// current branch, or HEAD itself when detached.
//
//  1. Read the index; an empty index is ErrNothingToCommit
//  2. Write the tree
//  3. Resolve the parent from HEAD (none on an unborn branch)
//  4. Write the commit
//  5. Update the ref
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	if err := object.ValidateIdentity(author); err != nil {
		return "", fmt.Errorf("commit: author: %w", err)
	}
	entries, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
	}

	treeHash, err := r.WriteTree(entries)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	target := head.Ref
	parent := head.Hash
	if !head.Detached() {
		parent, err = r.branchTip(head.Ref)
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	} else {
		target = "HEAD"
	}

	sig := object.Signature{Identity: author, When: time.Now().Truncate(time.Second)}
	h, err := r.CommitTree(treeHash, message, parent, sig)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	reason := "commit: " + subject
	if parent == "" {
		reason = "commit (initial): " + subject
	}
	if err := r.updateRef(target, string(h), reason); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if target != "HEAD" {
		r.logRefUpdate("HEAD", parent, h, reason)
	}
	r.Logger.Debug("commit created",
		zap.String("hash", string(h)),
		zap.String("ref", target),
		zap.String("parent", string(parent)),
	)
	return h, nil
}

// branchTip resolves ref, returning "" for a branch that has no commits yet.
func (r *Repo) branchTip(ref string) (object.Hash, error) {
	h, err := r.ResolveRef(ref)
	if err != nil {
		if !r.refExists(ref) {
			return "", nil
		}
		return "", err
	}
	return h, nil
}

// LogEntry is one commit visited by Log.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.Commit
}

// Log walks the parent chain from start, newest first. A limit of zero or
// less means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var out []LogEntry
	for cur := start; cur != ""; {
		if limit > 0 && len(out) >= limit {
			break
		}
		c, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		out = append(out, LogEntry{Hash: cur, Commit: c})
		cur = c.Parent
	}
	return out, nil
}
