package record

import (
	"sync"
	"time"
)

// ProfileRecord is the upload record of one profile, loaded into memory so
// staleness checks over a large tree do not hit the database per node.
// Writes go to both the map and the store. Safe for concurrent use: the
// upload job writes while the selection model reads.
type ProfileRecord struct {
	store *Store
	name  string

	mu      sync.RWMutex
	stamps  map[string]time.Time
	content map[string]Content
}

// Profile loads the record of the named profile.
func (s *Store) Profile(name string) (*ProfileRecord, error) {
	stamps, err := s.Stamps(name)
	if err != nil {
		return nil, err
	}
	r := &ProfileRecord{
		store:   s,
		name:    name,
		stamps:  make(map[string]time.Time, len(stamps)),
		content: map[string]Content{},
	}
	for _, st := range stamps {
		r.stamps[st.Path] = time.Unix(0, st.UploadedAt)
		if st.Hash != "" {
			r.content[st.Path] = Content{Hash: st.Hash, Size: st.Size}
		}
	}
	return r, nil
}

// Name is the profile name.
func (r *ProfileRecord) Name() string { return r.name }

// Lookup returns the last upload time recorded for path.
func (r *ProfileRecord) Lookup(path string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.stamps[path]
	return t, ok
}

// Set persists a successful upload of path at t.
func (r *ProfileRecord) Set(path string, t time.Time) error {
	if err := r.store.Set(r.name, path, t); err != nil {
		return err
	}
	r.mu.Lock()
	r.stamps[path] = t
	delete(r.content, path)
	r.mu.Unlock()
	return nil
}

// SetContent persists a successful upload of path at t with the content
// that was sent.
func (r *ProfileRecord) SetContent(path string, t time.Time, c Content) error {
	if err := r.store.SetContent(r.name, path, t, c); err != nil {
		return err
	}
	r.mu.Lock()
	r.stamps[path] = t
	if c.Hash != "" {
		r.content[path] = c
	} else {
		delete(r.content, path)
	}
	r.mu.Unlock()
	return nil
}

// Content returns what was sent in the last upload of path, when known.
func (r *ProfileRecord) Content(path string) (Content, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.content[path]
	return c, ok
}

// Unchanged reports whether the file at absPath still holds the content
// last uploaded as path. A touched but unedited file is modified by time
// only.
func (r *ProfileRecord) Unchanged(path, absPath string) bool {
	c, ok := r.Content(path)
	if !ok {
		return false
	}
	cur, err := ReadContent(absPath)
	return err == nil && cur == c
}

// Len is the number of recorded paths.
func (r *ProfileRecord) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stamps)
}
