package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
)

// TreeFile is one file of a flattened tree.
type TreeFile struct {
	Path string // "/"-separated, relative to the tree root
	Mode object.Mode
	Hash object.Hash
}

// treeNode is a directory or, when leaf is set, a file in the in-memory
// tree assembled from index entries.
type treeNode struct {
	children map[string]*treeNode
	leaf     bool
	mode     object.Mode
	hash     object.Hash
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[string]*treeNode)}
}

func (n *treeNode) insert(p string, mode object.Mode, h object.Hash) error {
	parts := strings.Split(p, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid path %q", p)
		}
	}

	cur := n
	for i, part := range parts[:len(parts)-1] {
		child, ok := cur.children[part]
		if !ok {
			child = newTreeNode()
			cur.children[part] = child
		} else if child.leaf {
			return fmt.Errorf("path %q is both a file and a directory", strings.Join(parts[:i+1], "/"))
		}
		cur = child
	}

	name := parts[len(parts)-1]
	if existing, ok := cur.children[name]; ok {
		if !existing.leaf {
			return fmt.Errorf("path %q is both a file and a directory", p)
		}
		return fmt.Errorf("duplicate path %q", p)
	}
	cur.children[name] = &treeNode{leaf: true, mode: mode, hash: h}
	return nil
}

// WriteTree writes one tree object per directory of the staged entries and
// returns the root tree hash. The result depends only on the set of
// (path, mode, hash) triples, not on their order.
func (r *Repo) WriteTree(entries []index.Entry) (object.Hash, error) {
	root := newTreeNode()
	for _, e := range entries {
		if err := root.insert(e.Path, e.TreeMode(), e.Hash); err != nil {
			return "", fmt.Errorf("write tree: %w", err)
		}
	}
	return r.writeTreeNode(root, "")
}

// writeTreeNode writes the subtrees of n bottom-up, then n itself.
func (r *Repo) writeTreeNode(n *treeNode, prefix string) (object.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.children))
	for name, child := range n.children {
		if child.leaf {
			entries = append(entries, object.TreeEntry{Mode: child.mode, Name: name, Hash: child.hash})
			continue
		}
		subHash, err := r.writeTreeNode(child, path.Join(prefix, name))
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{Mode: object.ModeDir, Name: name, Hash: subHash})
	}

	h, err := r.Store.WriteTree(&object.Tree{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree %q: %w", prefix, err)
	}
	return h, nil
}

// ReadTree flattens the tree h recursively into its files, sorted by path.
func (r *Repo) ReadTree(h object.Hash) ([]TreeFile, error) {
	var files []TreeFile
	if err := r.readTreeRec(h, "", &files); err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (r *Repo) readTreeRec(h object.Hash, prefix string, out *[]TreeFile) error {
	tr, err := r.Store.ReadTree(h)
	if err != nil {
		return fmt.Errorf("read tree %q: %w", prefix, err)
	}
	for _, e := range tr.Entries {
		p := path.Join(prefix, e.Name)
		if e.Mode.IsDir() {
			if err := r.readTreeRec(e.Hash, p, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, TreeFile{Path: p, Mode: e.Mode, Hash: e.Hash})
	}
	return nil
}
