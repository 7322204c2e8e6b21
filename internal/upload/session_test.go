package upload

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"make-upload/internal/record"
	"make-upload/internal/selection"
)

type fakeProfiles struct {
	def     string
	records map[string]*record.Memory
}

func (f *fakeProfiles) DefaultProfile() (string, bool) { return f.def, f.def != "" }
func (f *fakeProfiles) IsValid(name string) bool {
	_, ok := f.records[name]
	return ok
}
func (f *fakeProfiles) Record(name string) (Record, error) {
	r, ok := f.records[name]
	if !ok {
		return nil, record.ErrUnknownProfile
	}
	return r, nil
}

func TestQuickUploadsStaleSetOfDefaultProfile(t *testing.T) {
	live := record.NewMemory()
	_ = live.Set("src/a.txt", at(50))
	_ = live.Set("src/b.txt", at(150))
	_ = live.Set("src/c.txt", at(150))
	_ = live.Set("dist", at(150))
	profiles := &fakeProfiles{def: "live", records: map[string]*record.Memory{"live": live, "staging": record.NewMemory()}}

	s, nodes := newSession(t, profiles.records["staging"])
	// a choice made under another profile must not leak into the quick upload
	if err := s.Model().SetCheckState(nodes["c.txt"], selection.Checked); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTransport{}
	var opened string
	j, err := s.Quick(context.Background(), profiles, nil, func(name string) (Transport, error) {
		opened = name
		return tr, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sum := j.Wait()

	if opened != "live" || sum.Profile != "live" {
		t.Fatalf("opened %q, summary profile %q", opened, sum.Profile)
	}
	if !equal(tr.dispatched(), []string{"src/a.txt"}) {
		t.Fatalf("dispatched = %v, want only the stale file", tr.dispatched())
	}
	if s.Model().Record() != selection.Record(live) {
		t.Errorf("model not switched to the default profile")
	}
}

func TestQuickUploadOfSingleFile(t *testing.T) {
	live := record.NewMemory()
	profiles := &fakeProfiles{def: "live", records: map[string]*record.Memory{"live": live}}
	s, nodes := newSession(t, nil)

	tr := &fakeTransport{}
	j, err := s.Quick(context.Background(), profiles, nodes["b.txt"], func(string) (Transport, error) { return tr, nil })
	if err != nil {
		t.Fatal(err)
	}
	j.Wait()
	if !equal(tr.dispatched(), []string{"src/b.txt"}) {
		t.Fatalf("dispatched = %v", tr.dispatched())
	}
}

func TestQuickWithoutDefaultProfile(t *testing.T) {
	profiles := &fakeProfiles{records: map[string]*record.Memory{"live": record.NewMemory()}}
	s, _ := newSession(t, nil)
	_, err := s.Quick(context.Background(), profiles, nil, func(string) (Transport, error) {
		t.Fatal("transport opened without a default profile")
		return nil, nil
	})
	if !errors.Is(err, ErrConfigurationInvalid) {
		t.Fatalf("err = %v", err)
	}
}

func TestQuickWithStore(t *testing.T) {
	dir := t.TempDir()
	store, err := record.Open(filepath.Join(dir, "upload.db"), dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.SyncProfiles([]record.ProfileSpec{{Name: "live", Default: true}}); err != nil {
		t.Fatal(err)
	}

	s, _ := newSession(t, nil)
	j, err := s.Quick(context.Background(), StoreProfiles{store}, nil, func(string) (Transport, error) { return &fakeTransport{}, nil })
	if err != nil {
		t.Fatal(err)
	}
	if sum := j.Wait(); sum.Succeeded != 4 {
		t.Fatalf("summary = %+v", sum)
	}
	stamps, err := store.Stamps("live")
	if err != nil {
		t.Fatal(err)
	}
	if len(stamps) != 4 {
		t.Fatalf("stamps = %d, want 4", len(stamps))
	}
}

func TestRegistryKeepsOneSessionPerProject(t *testing.T) {
	tree, _ := newProject()
	reg := NewRegistry()
	s := reg.Open(tree)
	if reg.Open(tree) != s {
		t.Fatalf("second Open created a new session")
	}
	other, _ := newProject()
	other.ID = "/work/other"
	if reg.Open(other) == s || reg.Len() != 2 {
		t.Fatalf("projects share a session")
	}

	reg.Close(tree.ID)
	if _, ok := reg.Get(tree.ID); ok {
		t.Fatalf("closed session still registered")
	}
	if reg.Open(tree) == s {
		t.Fatalf("reopened project got the discarded session")
	}
}

func TestRegistryCloseCancelsRunningJob(t *testing.T) {
	tree, nodes := newProject()
	reg := NewRegistry()
	s := reg.Open(tree)
	s.Model().SetActiveProfile(record.NewMemory())
	s.Model().SetRootScope(nodes["src"])

	tr := &fakeTransport{started: make(chan string, 4), release: make(chan struct{})}
	j, err := s.Start(context.Background(), "live", tr)
	if err != nil {
		t.Fatal(err)
	}
	<-tr.started
	go func() {
		for !j.cancelled.Load() {
			time.Sleep(time.Millisecond)
		}
		close(tr.release)
	}()
	reg.Close(tree.ID)
	if j.State() != Cancelled {
		t.Fatalf("state after close = %v", j.State())
	}
}
