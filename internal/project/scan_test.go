package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(rel), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "index.html")
	touch(t, root, "src/b.js")
	touch(t, root, "src/a.js")
	touch(t, root, "src/debug.log")
	touch(t, root, ".sync_temp/upload.db")
	touch(t, root, "make-upload.yaml")
	touch(t, root, ".upload_ignore")
	if err := os.WriteFile(filepath.Join(root, ".upload_ignore"), []byte("*.log\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "dist"), 0755); err != nil {
		t.Fatal(err)
	}

	tree, err := Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if tree.ID != root {
		t.Errorf("ID = %s, want %s", tree.ID, root)
	}

	var paths []string
	tree.Walk(func(n *Node) bool {
		if n.RelPath() != "" {
			paths = append(paths, n.RelPath())
		}
		return true
	})
	want := "dist,index.html,src,src/a.js,src/b.js"
	if got := strings.Join(paths, ","); got != want {
		t.Fatalf("tree = %s, want %s", got, want)
	}

	dist := tree.Find("dist")
	if dist == nil || !dist.IsFolder() || len(dist.Children()) != 0 {
		t.Fatalf("dist = %+v", dist)
	}
	a := tree.Find("src/a.js")
	if a == nil || !a.IsFile() || a.AbsPath() != filepath.Join(root, "src", "a.js") {
		t.Fatalf("src/a.js = %+v", a)
	}
	if !tree.Root().IsAncestorOf(a) || !tree.Contains(a) {
		t.Errorf("ancestry broken for %s", a.RelPath())
	}
}

func TestModTimeIsLive(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.txt")
	tree, err := Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	n := tree.Find("a.txt")

	later := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := os.Chtimes(n.AbsPath(), later, later); err != nil {
		t.Fatal(err)
	}
	got, err := n.ModTime()
	if err != nil || !got.Equal(later) {
		t.Fatalf("ModTime = %v, %v, want %v", got, err, later)
	}

	if err := os.Remove(n.AbsPath()); err != nil {
		t.Fatal(err)
	}
	if _, err := n.ModTime(); err == nil {
		t.Errorf("ModTime of removed file succeeded")
	}
}

func TestFind(t *testing.T) {
	a := NewFile("a.txt", time.Unix(1, 0))
	tree := NewTree("mem", NewFolder("root").Add(NewFolder("src").Add(a)))

	for _, rel := range []string{"src/a.txt", "/src/a.txt", "src\\a.txt", "./src/a.txt"} {
		if got := tree.Find(rel); got != a {
			t.Errorf("Find(%q) = %v", rel, got)
		}
	}
	if tree.Find("") != tree.Root() || tree.Find(".") != tree.Root() {
		t.Errorf("Find of root failed")
	}
	if tree.Find("src/missing") != nil {
		t.Errorf("Find of missing path returned a node")
	}
	if got, _ := a.ModTime(); !got.Equal(time.Unix(1, 0)) {
		t.Errorf("in-memory ModTime = %v", got)
	}
}
