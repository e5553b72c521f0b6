package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/twig/pkg/logging"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Setting keys. Each is also read from the environment as TWIG_<KEY>.
const (
	keyDir         = "dir"
	keyLogLevel    = "log_level"
	keyAuthorName  = "author_name"
	keyAuthorEmail = "author_email"
)

// app carries the settings shared by every command.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("TWIG")
	v.AutomaticEnv()
	v.SetDefault(keyDir, repo.DefaultDirName)
	v.SetDefault(keyLogLevel, logging.LevelNone)
	return &app{v: v}
}

func (a *app) bindFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.String("git-dir-name", repo.DefaultDirName, "name of the repository store directory (env TWIG_DIR)")
	flags.String("log-level", logging.LevelNone, "log level: debug, info, warn, error or none (env TWIG_LOG_LEVEL)")
	// Flags only override the environment when set explicitly.
	_ = a.v.BindPFlag(keyDir, flags.Lookup("git-dir-name"))
	_ = a.v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
}

func (a *app) options() (repo.Options, error) {
	if a.logger == nil {
		l, err := logging.New(strings.ToLower(a.v.GetString(keyLogLevel)))
		if err != nil {
			return repo.Options{}, err
		}
		a.logger = l
	}
	return repo.Options{DirName: a.v.GetString(keyDir), Logger: a.logger}, nil
}

// openRepo finds the repository containing the working directory.
func (a *app) openRepo() (*repo.Repo, error) {
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	return repo.Find(".", opts)
}

// author resolves the commit identity: the --author flag, then
// TWIG_AUTHOR_NAME/TWIG_AUTHOR_EMAIL, then the repository [user] config,
// then $USER. The result must fit on one commit header line.
func (a *app) author(r *repo.Repo, flag string) (string, error) {
	id := a.resolveAuthor(r, flag)
	if err := object.ValidateIdentity(id); err != nil {
		return "", fmt.Errorf("author: %w", err)
	}
	return id, nil
}

func (a *app) resolveAuthor(r *repo.Repo, flag string) string {
	if s := strings.TrimSpace(flag); s != "" {
		return s
	}
	if name := strings.TrimSpace(a.v.GetString(keyAuthorName)); name != "" {
		return fmt.Sprintf("%s <%s>", name, strings.TrimSpace(a.v.GetString(keyAuthorEmail)))
	}
	if cfg, err := r.ReadConfig(); err == nil {
		if id := cfg.Identity(); id != "" {
			return id
		}
	} else {
		r.Logger.Warn("ignoring unreadable config", zap.Error(err))
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return fmt.Sprintf("%s <%s@localhost>", user, user)
}
