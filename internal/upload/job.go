// Package upload drives upload jobs: it collects the checked entries of a
// selection model, hands them to a transport one at a time and records the
// upload time of every entry that made it.
package upload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"make-upload/internal/events"
	"make-upload/internal/project"
	"make-upload/internal/record"
	"make-upload/internal/selection"
)

// State is the lifecycle of a job.
type State int

const (
	Idle State = iota
	Collecting
	InProgress
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case InProgress:
		return "in progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Active reports whether a job in this state blocks a new one.
func (s State) Active() bool { return s == Collecting || s == InProgress }

// Item is one entry to transfer.
type Item struct {
	RelPath   string
	LocalPath string
	// Dir marks an empty folder to be created remotely.
	Dir bool
}

// Transport moves items to a destination. Put returns an error wrapped with
// Fatal when the connection itself is unusable; any other error fails only
// that item.
type Transport interface {
	Put(ctx context.Context, item Item) error
	Close() error
}

// Record is the upload record a job writes back into.
type Record interface {
	selection.Record
	Set(path string, t time.Time) error
}

// ContentRecord is a Record that also keeps the size and hash of what was
// sent.
type ContentRecord interface {
	Record
	SetContent(path string, t time.Time, c record.Content) error
}

// JobInfo is published when a job starts transferring.
type JobInfo struct {
	ID      string
	Project string
	Profile string
	Total   int
}

// ItemResult is published around every item.
type ItemResult struct {
	JobID string
	Index int
	Total int
	Item  Item
	Err   error
}

// Summary is the outcome of a job.
type Summary struct {
	ID        string
	Project   string
	Profile   string
	State     State
	Total     int
	Succeeded int
	// Failed lists every failed item, the one that ended the job included.
	Failed []*ItemError
	// Fatal is set when the job ended Failed.
	Fatal    error
	Started  time.Time
	Finished time.Time
}

// FailedPaths lists the paths of the failed items in dispatch order.
func (s Summary) FailedPaths() []string {
	out := make([]string, 0, len(s.Failed))
	for _, f := range s.Failed {
		out = append(out, f.Path)
	}
	return out
}

// Option configures a job.
type Option func(*Job)

// WithClock replaces time.Now for upload stamps.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(j *Job) { j.log = l }
}

// WithBus publishes job events on bus instead of the global one.
func WithBus(bus EventBus.Bus) Option {
	return func(j *Job) { j.bus = bus }
}

// Job is a single upload run.
type Job struct {
	id        string
	project   string
	profile   string
	items     []Item
	transport Transport
	record    Record
	now       func() time.Time
	log       zerolog.Logger
	bus       EventBus.Bus

	cancelled atomic.Bool
	done      chan struct{}

	mu      sync.Mutex
	state   State
	summary Summary
}

func newJob(project, profile string, t Transport, rec Record, opts []Option) *Job {
	j := &Job{
		id:        uuid.NewString(),
		project:   project,
		profile:   profile,
		transport: t,
		record:    rec,
		now:       time.Now,
		log:       zerolog.Nop(),
		bus:       events.GlobalBus,
		done:      make(chan struct{}),
		state:     Idle,
	}
	for _, o := range opts {
		o(j)
	}
	j.log = j.log.With().Str("job", j.id).Str("profile", profile).Logger()
	return j
}

func (j *Job) ID() string { return j.id }

// Items returns the collected work list.
func (j *Job) Items() []Item { return j.items }

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Cancel stops dispatching after the item in flight, if any.
func (j *Job) Cancel() { j.cancelled.Store(true) }

// Done is closed once the job reached a final state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job is over and returns its summary.
func (j *Job) Wait() Summary {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.summary
}

// Collect returns the checked entries of m in tree order, starting at the
// model's scope. Checked empty folders are included as Dir items.
func Collect(m *selection.Model) []Item {
	var items []Item
	m.WalkLeaves(m.Top(), func(n *project.Node) {
		if n.RelPath() == "" || m.EffectiveCheckState(n) != selection.Checked {
			return
		}
		items = append(items, Item{RelPath: n.RelPath(), LocalPath: n.AbsPath(), Dir: n.IsFolder()})
	})
	return items
}

// transfer sends one item and stamps it. When the record keeps content,
// the file is hashed before it is sent so the stamp describes what went out.
func (j *Job) transfer(ctx context.Context, it Item) error {
	cr, keeps := j.record.(ContentRecord)
	if !keeps || it.Dir {
		if err := j.transport.Put(ctx, it); err != nil {
			return err
		}
		return j.record.Set(it.RelPath, j.now())
	}
	c, err := record.ReadContent(it.LocalPath)
	if err != nil {
		return err
	}
	if err := j.transport.Put(ctx, it); err != nil {
		return err
	}
	return cr.SetContent(it.RelPath, j.now(), c)
}

func (j *Job) run(ctx context.Context) {
	defer close(j.done)
	defer func() {
		if err := j.transport.Close(); err != nil {
			j.log.Warn().Err(err).Msg("closing transport")
		}
	}()

	sum := Summary{
		ID:      j.id,
		Project: j.project,
		Profile: j.profile,
		Total:   len(j.items),
		Started: j.now(),
	}
	j.setState(InProgress)
	j.bus.Publish(events.EventJobStarted, JobInfo{ID: j.id, Project: j.project, Profile: j.profile, Total: len(j.items)})
	j.log.Info().Int("items", len(j.items)).Msg("upload started")

	final := Completed
	for i, it := range j.items {
		if j.cancelled.Load() || ctx.Err() != nil {
			final = Cancelled
			break
		}
		res := ItemResult{JobID: j.id, Index: i, Total: len(j.items), Item: it}
		j.bus.Publish(events.EventItemStarted, res)

		// the item in flight always runs to completion
		err := j.transfer(context.WithoutCancel(ctx), it)
		if err == nil {
			sum.Succeeded++
			j.log.Debug().Str("path", it.RelPath).Msg("uploaded")
			j.bus.Publish(events.EventItemDone, res)
			continue
		}
		res.Err = err
		sum.Failed = append(sum.Failed, &ItemError{Path: it.RelPath, Err: err})
		if IsFatal(err) {
			j.log.Error().Err(err).Str("path", it.RelPath).Msg("fatal transfer error")
			sum.Fatal = err
			final = Failed
			j.bus.Publish(events.EventItemDone, res)
			break
		}
		j.log.Warn().Err(err).Str("path", it.RelPath).Msg("item failed")
		j.bus.Publish(events.EventItemDone, res)
	}

	sum.State = final
	sum.Finished = j.now()
	j.mu.Lock()
	j.state = final
	j.summary = sum
	j.mu.Unlock()

	j.log.Info().
		Str("state", final.String()).
		Int("succeeded", sum.Succeeded).
		Int("failed", len(sum.Failed)).
		Msg("upload finished")
	j.bus.Publish(events.EventJobFinished, sum)
}
