package repo

import (
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
)

// CatObject returns the kind and content of the object named by name, which
// may be any revision ResolveRevision accepts. With pretty set, trees are
// rendered one "mode kind hash\tname" line per entry; other kinds are
// returned verbatim either way.
func (r *Repo) CatObject(name string, pretty bool) (object.Kind, string, error) {
	h, _, err := r.ResolveRevision(name)
	if err != nil {
		return 0, "", fmt.Errorf("cat-file: %w", err)
	}
	kind, data, err := r.Store.Read(h)
	if err != nil {
		return 0, "", fmt.Errorf("cat-file: %w", err)
	}
	if !pretty || kind != object.KindTree {
		return kind, string(data), nil
	}

	tr, err := object.UnmarshalTree(data)
	if err != nil {
		return 0, "", fmt.Errorf("cat-file %s: %w", h, err)
	}
	var b strings.Builder
	for _, e := range tr.Entries {
		entryKind := object.KindBlob
		if e.Mode.IsDir() {
			entryKind = object.KindTree
		}
		fmt.Fprintf(&b, "%06o %s %s\t%s\n", uint32(e.Mode), entryKind, e.Hash, e.Name)
	}
	return kind, b.String(), nil
}

// HashFile returns the blob hash of the file at path, storing the blob when
// write is set.
func (r *Repo) HashFile(path string, write bool) (object.Hash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("hash-object: %w", err)
	}
	if !write {
		return object.HashObject(object.KindBlob, data), nil
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: data})
	if err != nil {
		return "", fmt.Errorf("hash-object: %w", err)
	}
	return h, nil
}
