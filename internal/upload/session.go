package upload

import (
	"context"
	"fmt"
	"sync"

	"make-upload/internal/events"
	"make-upload/internal/project"
	"make-upload/internal/record"
	"make-upload/internal/selection"
)

// Session is the upload state of one open project: its selection model and
// at most one active job.
type Session struct {
	id    string
	model *selection.Model
	opts  []Option

	mu  sync.Mutex
	job *Job
}

func (s *Session) ID() string { return s.id }

// Model is the project's selection. It must only be used from the
// goroutine driving the session.
func (s *Session) Model() *selection.Model { return s.model }

// Current returns the last started job, or nil.
func (s *Session) Current() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// Busy reports whether a job is collecting or transferring.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil && s.job.State().Active()
}

// Start collects the model's checked entries and uploads them through t
// in the background. The model's active record receives the upload stamps.
// t is closed when the job ends, or right away when the job is rejected.
func (s *Session) Start(ctx context.Context, profile string, t Transport, opts ...Option) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && s.job.State().Active() {
		_ = t.Close()
		return nil, ErrJobAlreadyInProgress
	}
	rec, ok := s.model.Record().(Record)
	if !ok || rec == nil {
		_ = t.Close()
		return nil, ErrConfigurationInvalid
	}

	j := newJob(s.id, profile, t, rec, append(append([]Option{}, s.opts...), opts...))
	j.setState(Collecting)
	s.job = j
	j.items = Collect(s.model)

	go j.run(ctx)
	return j, nil
}

// Profiles resolves profile names to their upload records.
type Profiles interface {
	DefaultProfile() (string, bool)
	IsValid(name string) bool
	Record(name string) (Record, error)
}

// StoreProfiles exposes a record store as Profiles.
type StoreProfiles struct {
	*record.Store
}

func (p StoreProfiles) Record(name string) (Record, error) {
	return p.Store.Profile(name)
}

// Quick uploads what is stale under the default profile: the model is reset
// to that profile and to scope, then collected with no user choices applied.
// open is called with the profile name to get its transport.
func (s *Session) Quick(ctx context.Context, profiles Profiles, scope *project.Node, open func(profile string) (Transport, error), opts ...Option) (*Job, error) {
	if s.Busy() {
		return nil, ErrJobAlreadyInProgress
	}
	name, ok := profiles.DefaultProfile()
	if !ok || !profiles.IsValid(name) {
		return nil, fmt.Errorf("%w: no default profile", ErrConfigurationInvalid)
	}
	rec, err := profiles.Record(name)
	if err != nil {
		return nil, err
	}

	s.model.SetActiveProfile(rec)
	s.model.SetRootScope(scope)
	s.model.CheckOnlyModified()

	t, err := open(name)
	if err != nil {
		return nil, err
	}
	return s.Start(ctx, name, t, opts...)
}

// Registry holds one session per open project.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     []Option
}

// NewRegistry returns an empty registry. opts apply to every job started
// through its sessions.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{sessions: map[string]*Session{}, opts: opts}
}

// Open returns the session of tree's project, creating it on first use.
func (r *Registry) Open(tree *project.Tree) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[tree.ID]; ok {
		return s
	}
	s := &Session{id: tree.ID, model: selection.NewModel(tree), opts: r.opts}
	r.sessions[tree.ID] = s
	events.GlobalBus.Publish(events.EventProjectOpened, tree.ID)
	return s
}

// Get returns the open session of project id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close discards the session of project id. A running job is cancelled and
// waited for.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	if j := s.Current(); j != nil {
		j.Cancel()
		<-j.Done()
	}
	events.GlobalBus.Publish(events.EventProjectClosed, id)
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
