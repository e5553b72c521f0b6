package repo

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFile is the work tree file whose patterns Add skips when expanding
// directories.
const IgnoreFile = ".twigignore"

// Ignorer decides which paths a recursive Add skips. Patterns follow the
// familiar ignore-file rules: "#" comments, "!" negation, a trailing "/"
// matches directories only, a pattern containing "/" matches the full path
// and "**" spans directories. The last matching pattern wins.
type Ignorer struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob     string
	negated  bool
	dirOnly  bool
	fullPath bool
	re       *regexp.Regexp // set when glob contains "**"
}

// NewIgnorer reads root/.twigignore if present. The store directory name
// storeDir is always ignored.
func NewIgnorer(root, storeDir string) *Ignorer {
	ig := &Ignorer{patterns: []ignorePattern{{glob: storeDir, dirOnly: true}}}

	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return ig
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if p, ok := parseIgnoreLine(sc.Text()); ok {
			ig.patterns = append(ig.patterns, p)
		}
	}
	return ig
}

func parseIgnoreLine(line string) (ignorePattern, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignorePattern{}, false
	}

	var p ignorePattern
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		p.negated = true
		line = rest
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return ignorePattern{}, false
	}
	p.fullPath = strings.Contains(line, "/")
	p.glob = line
	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			p.re = re
		}
	}
	return p, true
}

// Ignored reports whether the "/"-separated, root-relative path rel is
// ignored. isDir tells whether rel names a directory.
func (ig *Ignorer) Ignored(rel string, isDir bool) bool {
	ignored := false
	for _, p := range ig.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if p.matches(rel) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p *ignorePattern) matches(rel string) bool {
	target := rel
	if !p.fullPath {
		target = path.Base(rel)
	}
	if p.re != nil {
		return p.re.MatchString(target)
	}
	ok, _ := path.Match(p.glob, target)
	return ok
}

// globToRegex translates a glob with "**" segments into an anchored regexp.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		ch := glob[i]
		switch {
		case ch == '*' && strings.HasPrefix(glob[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case ch == '*' && strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
