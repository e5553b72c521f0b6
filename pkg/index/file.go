package index

import (
	"errors"
	"fmt"
	"os"

	"github.com/odvcencio/twig/pkg/lockfile"
)

// Read loads the index file at path. A missing file is an empty index.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	entries, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return entries, nil
}

// Write replaces the index file at path with entries. The new content is
// written under path+".lock" and renamed into place.
func Write(path string, entries []Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := lockfile.WriteFile(path, data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
