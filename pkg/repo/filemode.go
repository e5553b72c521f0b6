package repo

import (
	"fmt"
	"os"

	"github.com/odvcencio/twig/pkg/object"
)

func filePermFromMode(mode object.Mode) os.FileMode {
	if mode == object.ModeExecutable {
		return 0o755
	}
	return 0o644
}

// readWorktreeFile returns the blob content for a work tree path: the file
// bytes, or the link target for a symlink.
func readWorktreeFile(abs string, info os.FileInfo) ([]byte, error) {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(abs)
		if err != nil {
			return nil, err
		}
		return []byte(target), nil
	case info.Mode().IsRegular():
		return os.ReadFile(abs)
	default:
		return nil, fmt.Errorf("%s: unsupported file type %s", abs, info.Mode().Type())
	}
}

// writeWorktreeFile materializes a blob at abs with the given tree mode,
// replacing whatever non-directory is there.
func writeWorktreeFile(abs string, mode object.Mode, data []byte) error {
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}
	if mode == object.ModeSymlink {
		return os.Symlink(string(data), abs)
	}
	perm := filePermFromMode(mode)
	if err := os.WriteFile(abs, data, perm); err != nil {
		return err
	}
	// WriteFile's perm is filtered by the umask.
	return os.Chmod(abs, perm)
}
