package repo

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/twig/pkg/object"
	"go.uber.org/zap"
)

// ReflogEntry is one recorded ref movement.
type ReflogEntry struct {
	Ref     string
	Old     object.Hash // ZeroHash when the ref was created
	New     object.Hash
	When    time.Time
	Message string
}

func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.Dir, "logs", filepath.FromSlash(ref))
}

// logRefUpdate appends to the reflog of ref when core.logallrefupdates is
// set. The ref has already moved, so failures are logged and not returned.
func (r *Repo) logRefUpdate(ref string, from, to object.Hash, message string) {
	cfg, err := r.ReadConfig()
	if err != nil {
		r.Logger.Warn("reflog skipped: unreadable config", zap.Error(err))
		return
	}
	if !cfg.Core.LogAllRefUpdates {
		return
	}
	if err := r.appendReflog(ref, from, to, message); err != nil {
		r.Logger.Warn("reflog append failed", zap.String("ref", ref), zap.Error(err))
	}
}

func (r *Repo) appendReflog(ref string, from, to object.Hash, message string) error {
	if from == "" {
		from = object.ZeroHash
	}
	message = strings.Join(strings.Fields(message), " ")
	if message == "" {
		message = "update"
	}

	p := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %d %s\n", from, to, time.Now().Unix(), message)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// ReadReflog returns the recorded movements of ref, newest first. A ref
// without a log yields no entries. Short branch names are accepted; a limit
// of zero or less returns everything.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		ref = "HEAD"
	case ref != "HEAD" && !strings.HasPrefix(ref, "refs/"):
		ref = headsPrefix + ref
	}
	if err := validRefName(ref); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	f, err := os.Open(r.reflogPath(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.SplitN(strings.TrimSpace(sc.Text()), " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:     ref,
			Old:     object.Hash(parts[0]),
			New:     object.Hash(parts[1]),
			When:    time.Unix(ts, 0),
			Message: parts[3],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
