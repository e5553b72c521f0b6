package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusMap(t *testing.T, r *Repo) map[string]string {
	t.Helper()
	entries, err := r.Status()
	require.NoError(t, err)
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Path] = e.Code()
	}
	return m
}

func TestStatus_CleanAfterCommit(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "a.txt", "a\n", "first")
	assert.Empty(t, statusMap(t, r))
}

func TestStatus_StagedAndUntracked(t *testing.T) {
	r := newTestRepo(t)
	abs := writeWorktree(t, r, "staged.txt", "s\n")
	require.NoError(t, r.Add([]string{abs}))
	writeWorktree(t, r, "dir/loose.txt", "u\n")

	assert.Equal(t, map[string]string{
		"staged.txt":    "A ",
		"dir/loose.txt": "??",
	}, statusMap(t, r))
}

func TestStatus_ModifiedAndDeleted(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, "keep.txt", "k\n")
	writeWorktree(t, r, "gone.txt", "g\n")
	writeWorktree(t, r, "edit.txt", "old\n")
	writeWorktree(t, r, "staged.txt", "old\n")
	require.NoError(t, r.Add([]string{r.RootDir}))
	_, err := r.Commit("base", "Test <test@example.com>")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(r.RootDir, "gone.txt")))
	// Same size as the committed content, so only hashing can tell.
	writeWorktree(t, r, "edit.txt", "new\n")
	abs := writeWorktree(t, r, "staged.txt", "staged change\n")
	require.NoError(t, r.Add([]string{abs}))

	assert.Equal(t, map[string]string{
		"gone.txt":   " D",
		"edit.txt":   " M",
		"staged.txt": "M ",
	}, statusMap(t, r))

	require.NoError(t, r.Add([]string{filepath.Join(r.RootDir, "gone.txt")}))
	assert.Equal(t, "D ", statusMap(t, r)["gone.txt"])
}

func TestStatus_ModeChange(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "run.sh", "#!/bin/sh\n", "script")
	require.NoError(t, os.Chmod(filepath.Join(r.RootDir, "run.sh"), 0o755))
	assert.Equal(t, " M", statusMap(t, r)["run.sh"])
}

func TestStatus_TrustsOldStatMatch(t *testing.T) {
	r := newTestRepo(t)
	abs := writeWorktree(t, r, "a.txt", "aa\n")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(abs, old, old))
	require.NoError(t, r.Add([]string{abs}))
	_, err := r.Commit("base", "Test <test@example.com>")
	require.NoError(t, err)

	// Same size and restored mtime: the stat data matches, so the file is
	// not rehashed.
	writeWorktree(t, r, "a.txt", "bb\n")
	require.NoError(t, os.Chtimes(abs, old, old))
	assert.Empty(t, statusMap(t, r))

	// A recent mtime forces a content comparison.
	now := time.Now()
	require.NoError(t, os.Chtimes(abs, now, now))
	assert.Equal(t, " M", statusMap(t, r)["a.txt"])
}

func TestStatus_IgnoredFilesHidden(t *testing.T) {
	r := newTestRepo(t)
	writeWorktree(t, r, IgnoreFile, "*.log\nbuild/\n")
	writeWorktree(t, r, "debug.log", "x")
	writeWorktree(t, r, "build/out.bin", "x")
	writeWorktree(t, r, "main.go", "package main\n")

	assert.Equal(t, map[string]string{
		IgnoreFile: "??",
		"main.go":  "??",
	}, statusMap(t, r))
}
