package repo

import (
	"path/filepath"
	"time"

	"github.com/odvcencio/twig/pkg/logging"
	"github.com/odvcencio/twig/pkg/object"
	"go.uber.org/zap"
)

const (
	// DefaultDirName is the store directory created under the work tree.
	DefaultDirName = ".twig"
	// DefaultBranch is the branch HEAD points at in a new repository.
	DefaultBranch = "master"
)

// Options locates and configures a repository. The zero value uses the
// default store directory name, no logging and the default object cache.
type Options struct {
	// DirName is the store directory name under the work tree root.
	DirName string
	Logger  *zap.Logger
	// CacheTTL overrides the object read cache expiry. Negative disables
	// the cache.
	CacheTTL time.Duration
}

func (o Options) dirName() string {
	if o.DirName == "" {
		return DefaultDirName
	}
	return o.DirName
}

// Repo represents an opened twig repository.
type Repo struct {
	RootDir string        // working tree root
	Dir     string        // store directory, RootDir/.twig by default
	Store   *object.Store // content-addressed object store
	Logger  *zap.Logger
}

func open(root string, opts Options) *Repo {
	logger := logging.OrNop(opts.Logger)
	dir := filepath.Join(root, opts.dirName())

	storeOpts := []object.StoreOption{object.WithLogger(logger)}
	if opts.CacheTTL != 0 {
		storeOpts = append(storeOpts, object.WithCacheTTL(opts.CacheTTL))
	}
	return &Repo{
		RootDir: root,
		Dir:     dir,
		Store:   object.NewOsStore(dir, storeOpts...),
		Logger:  logger,
	}
}
