package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "*.log\nnode_modules\n/build/\ndocs/draft\n")
	writeFile(t, filepath.Join(root, "src", FileName), "!keep.log\n")

	c := NewCache(root)
	tests := []struct {
		name  string
		path  string
		isDir bool
		want  bool
	}{
		{"default sync temp", ".sync_temp", true, true},
		{"default config", "make-upload.yaml", false, true},
		{"default ignore file", "src/" + FileName, false, true},
		{"plain file", "index.html", false, false},
		{"glob at root", "debug.log", false, true},
		{"glob in subdir", "a/b/debug.log", false, true},
		{"folder name anywhere", "web/node_modules", true, true},
		{"anchored dir", "build", true, true},
		{"anchored dir not nested", "web/build", true, false},
		{"path pattern", "docs/draft", false, true},
		{"negated in child", "src/keep.log", false, false},
		{"child rule scoped", "keep.log", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Match(filepath.Join(root, filepath.FromSlash(tt.path)), tt.isDir); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestClearRereadsRules(t *testing.T) {
	root := t.TempDir()
	c := NewCache(root)
	p := filepath.Join(root, "notes.txt")
	if c.Match(p, false) {
		t.Fatal("matched without rules")
	}

	writeFile(t, filepath.Join(root, FileName), "*.txt\n")
	if c.Match(p, false) {
		t.Fatal("rules picked up before Clear")
	}
	c.Clear()
	if !c.Match(p, false) {
		t.Fatal("rules not picked up after Clear")
	}
}
