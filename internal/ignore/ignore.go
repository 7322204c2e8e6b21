package ignore

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	ig "github.com/sabhiram/go-gitignore"
)

// FileName is the per-directory ignore file, gitignore syntax.
const FileName = ".upload_ignore"

// Defaults are never part of an upload.
var Defaults = []string{".sync_temp", "make-upload.yaml", FileName, ".env", ".git"}

// Cache caches compiled matchers per directory. Rules cascade from the
// project root down, so a child .upload_ignore can re-include with "!".
type Cache struct {
	Root string

	matchers map[string]*ig.GitIgnore
	lines    map[string][]string
}

// NewCache creates a Cache rooted at absRoot.
func NewCache(absRoot string) *Cache {
	return &Cache{Root: absRoot, matchers: map[string]*ig.GitIgnore{}, lines: map[string][]string{}}
}

// Clear forces every .upload_ignore to be re-read on the next Match.
func (c *Cache) Clear() {
	c.matchers = map[string]*ig.GitIgnore{}
	c.lines = map[string][]string{}
}

// Match reports whether path (absolute, inside Root) is ignored.
func (c *Cache) Match(path string, isDir bool) bool {
	base := filepath.Base(path)
	for _, d := range Defaults {
		if strings.EqualFold(d, base) {
			return true
		}
	}

	dir := path
	if !isDir {
		dir = filepath.Dir(path)
	}

	m, ok := c.matchers[dir]
	if !ok {
		var cumulative []string
		for _, anc := range c.ancestors(dir) {
			cumulative = append(cumulative, c.linesFor(anc)...)
		}
		if len(cumulative) > 0 {
			m = ig.CompileIgnoreLines(cumulative...)
		}
		c.matchers[dir] = m
	}
	if m == nil {
		return false
	}

	rel, err := filepath.Rel(c.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if runtime.GOOS == "windows" {
		rel = strings.ToLower(rel)
	}
	if isDir {
		// gitignore "dir/" patterns only match with the trailing slash
		if m.MatchesPath(rel + "/") {
			return true
		}
	}
	return m.MatchesPath(rel)
}

// ancestors lists Root .. dir, outermost first.
func (c *Cache) ancestors(dir string) []string {
	var out []string
	cur := dir
	for {
		out = append(out, cur)
		if cur == c.Root {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// linesFor returns the preprocessed rules of dir's ignore file. Simple
// patterns like "*.log" also get a "**/*.log" variant so they apply in
// every subdirectory.
func (c *Cache) linesFor(dir string) []string {
	if lines, ok := c.lines[dir]; ok {
		return lines
	}
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		c.lines[dir] = nil
		return nil
	}

	prefix := ""
	if rel, err := filepath.Rel(c.Root, dir); err == nil && rel != "." {
		prefix = filepath.ToSlash(rel) + "/"
	}

	var lines []string
	for _, ln := range strings.Split(string(data), "\n") {
		l := strings.TrimSpace(ln)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		neg := ""
		if strings.HasPrefix(l, "!") {
			neg = "!"
			l = strings.TrimPrefix(l, "!")
		}
		l = filepath.ToSlash(l)
		if strings.Contains(strings.TrimSuffix(l, "/"), "/") || strings.Contains(l, "**") {
			lines = append(lines, neg+"/"+prefix+strings.TrimPrefix(l, "/"))
			continue
		}
		lines = append(lines, neg+prefix+l, neg+prefix+"**/"+l)
	}
	c.lines[dir] = lines
	return lines
}
