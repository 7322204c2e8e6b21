package record

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := Open(filepath.Join(root, ".sync_temp", "upload.db"), root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, root
}

func TestSyncProfiles(t *testing.T) {
	s, _ := openStore(t)

	if err := s.SyncProfiles([]ProfileSpec{{Name: "live", Default: true}, {Name: "staging"}}); err != nil {
		t.Fatal(err)
	}
	if name, ok := s.DefaultProfile(); !ok || name != "live" {
		t.Fatalf("DefaultProfile = %q, %v", name, ok)
	}
	if err := s.Set("staging", "index.html", time.Unix(10, 0)); err != nil {
		t.Fatal(err)
	}

	// staging disappears from the config, live stops being the default
	if err := s.SyncProfiles([]ProfileSpec{{Name: "live"}}); err != nil {
		t.Fatal(err)
	}
	if s.IsValid("staging") {
		t.Errorf("removed profile still valid")
	}
	if _, ok := s.DefaultProfile(); ok {
		t.Errorf("default profile still set")
	}
	ps, err := s.Profiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].Name != "live" {
		t.Fatalf("Profiles = %+v", ps)
	}
	if _, _, err := s.Get("staging", "index.html"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Get on removed profile: err = %v", err)
	}
}

func TestSetAndGet(t *testing.T) {
	s, root := openStore(t)
	if err := s.SyncProfiles([]ProfileSpec{{Name: "live"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.Get("live", "a.txt"); err != nil || ok {
		t.Fatalf("Get before Set = %v, %v", ok, err)
	}

	first := time.Unix(100, 123)
	if err := s.Set("live", "a.txt", first); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get("live", "a.txt")
	if err != nil || !ok || !got.Equal(first) {
		t.Fatalf("Get = %v, %v, %v", got, ok, err)
	}
	st, err := s.Stamp("live", "a.txt")
	if err != nil || st == nil {
		t.Fatalf("Stamp = %v, %v", st, err)
	}
	if st.Hash != "" || st.Size != 0 {
		t.Errorf("plain Set stored content: %+v", st)
	}

	// a later upload replaces the stamp and records what was sent
	c, err := ReadContent(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	second := time.Unix(200, 0)
	if err := s.SetContent("live", "a.txt", second, c); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := s.Get("live", "a.txt"); !got.Equal(second) {
		t.Errorf("Get after second Set = %v", got)
	}
	if st, _ := s.Stamp("live", "a.txt"); st.Size != 5 || st.Hash != c.Hash || c.Hash == "" {
		t.Errorf("stamp = %+v, want size 5 hash %s", st, c.Hash)
	}
	stamps, err := s.Stamps("live")
	if err != nil || len(stamps) != 1 {
		t.Fatalf("Stamps = %v, %v", stamps, err)
	}

	if err := s.Set("nope", "a.txt", second); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Set on unknown profile: err = %v", err)
	}
}

func TestReset(t *testing.T) {
	s, _ := openStore(t)
	if err := s.SyncProfiles([]ProfileSpec{{Name: "live"}, {Name: "staging"}}); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a", "b", "c"} {
		if err := s.Set("live", p, time.Unix(1, 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Set("staging", "a", time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}

	n, err := s.Reset("live")
	if err != nil || n != 3 {
		t.Fatalf("Reset = %d, %v", n, err)
	}
	if _, ok, _ := s.Get("live", "a"); ok {
		t.Errorf("stamp survived reset")
	}
	if _, ok, _ := s.Get("staging", "a"); !ok {
		t.Errorf("reset touched another profile")
	}
}

func TestProfileRecord(t *testing.T) {
	s, _ := openStore(t)
	if err := s.SyncProfiles([]ProfileSpec{{Name: "live"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("live", "src/a.txt", time.Unix(50, 0)); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Profile("live")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name() != "live" || rec.Len() != 1 {
		t.Fatalf("record = %s with %d stamps", rec.Name(), rec.Len())
	}
	if got, ok := rec.Lookup("src/a.txt"); !ok || !got.Equal(time.Unix(50, 0)) {
		t.Fatalf("Lookup = %v, %v", got, ok)
	}

	if err := rec.Set("src/b.txt", time.Unix(60, 0)); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.Lookup("src/b.txt"); !ok {
		t.Errorf("Set not visible through Lookup")
	}
	if _, ok, _ := s.Get("live", "src/b.txt"); !ok {
		t.Errorf("Set not persisted")
	}

	if _, err := s.Profile("nope"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Profile(nope): err = %v", err)
	}
}

func TestProfileRecordContent(t *testing.T) {
	s, root := openStore(t)
	if err := s.SyncProfiles([]ProfileSpec{{Name: "live"}}); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(root, "index.html")
	if err := os.WriteFile(file, []byte("<html>"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := ReadContent(file)
	if err != nil {
		t.Fatal(err)
	}
	if c.Size != 6 {
		t.Fatalf("size = %d, want 6", c.Size)
	}

	rec, err := s.Profile("live")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Unchanged("index.html", file) {
		t.Fatal("unchanged without any upload")
	}
	if err := rec.SetContent("index.html", time.Unix(10, 0), c); err != nil {
		t.Fatal(err)
	}

	// touched only
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(file, later, later); err != nil {
		t.Fatal(err)
	}
	if !rec.Unchanged("index.html", file) {
		t.Errorf("touched file reported as edited")
	}

	// reloaded from the database
	again, err := s.Profile("live")
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := again.Content("index.html"); !ok || got != c {
		t.Errorf("Content after reload = %+v, %v", got, ok)
	}

	if err := os.WriteFile(file, []byte("<html><body>"), 0644); err != nil {
		t.Fatal(err)
	}
	if again.Unchanged("index.html", file) {
		t.Errorf("edited file reported as unchanged")
	}

	// a plain stamp forgets the content
	if err := again.Set("index.html", time.Unix(20, 0)); err != nil {
		t.Fatal(err)
	}
	if _, ok := again.Content("index.html"); ok {
		t.Errorf("content kept after plain Set")
	}
}

func TestUnknownProfileRecord(t *testing.T) {
	s, _ := openStore(t)
	if _, err := s.Profile("nope"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Profile(nope): err = %v", err)
	}
}

func TestStoresAreScopedToProject(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shared.db")
	a, err := Open(db, filepath.Join(dir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := Open(db, filepath.Join(dir, "b"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := a.SyncProfiles([]ProfileSpec{{Name: "live"}}); err != nil {
		t.Fatal(err)
	}
	if err := b.SyncProfiles([]ProfileSpec{{Name: "live"}}); err != nil {
		t.Fatal(err)
	}
	if err := a.Set("live", "x", time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := b.Get("live", "x"); ok {
		t.Errorf("stamp leaked across projects")
	}
}
