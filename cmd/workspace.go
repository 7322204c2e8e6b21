package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"

	"make-upload/internal/config"
	"make-upload/internal/events"
	"make-upload/internal/history"
	"make-upload/internal/logging"
	"make-upload/internal/project"
	"make-upload/internal/record"
	"make-upload/internal/transport"
	"make-upload/internal/upload"
	"make-upload/internal/util"
)

// sessions holds the upload session of every project this process opened.
var sessions = upload.NewRegistry()

// workspace is an opened project: its configuration, record store, scanned
// tree and upload session.
type workspace struct {
	cfg     *config.Config
	store   *record.Store
	log     *logging.Logger
	tree    *project.Tree
	session *upload.Session

	handlers []subscription
}

type subscription struct {
	topic string
	fn    interface{}
}

func openWorkspace() (*workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Find(cwd)
	if err != nil {
		return nil, err
	}
	root := cfg.Root()

	logger, err := logging.Open(root)
	if err != nil {
		return nil, err
	}
	store, err := record.Open(cfg.DatabasePath(), root)
	if err != nil {
		logger.Close()
		return nil, err
	}
	specs := make([]record.ProfileSpec, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		specs = append(specs, record.ProfileSpec{Name: p.Name, Default: p.Default})
	}
	if err := store.SyncProfiles(specs); err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	w := &workspace{cfg: cfg, store: store, log: logger}
	w.subscribe()
	if err := w.rescan(); err != nil {
		w.Close()
		return nil, err
	}
	logger.Debug().Str("root", root).Int("profiles", len(specs)).Msg("workspace opened")
	return w, nil
}

// rescan reads the project tree again and replaces the upload session.
func (w *workspace) rescan() error {
	tree, err := project.Scan(w.cfg.Root())
	if err != nil {
		return fmt.Errorf("failed to scan project: %w", err)
	}
	if w.tree != nil {
		sessions.Close(w.tree.ID)
	}
	w.tree = tree
	w.session = sessions.Open(tree)
	return nil
}

// subscribe attaches the workspace to the application bus: finished jobs
// go to the upload history, session changes to the log.
func (w *workspace) subscribe() {
	w.handlers = []subscription{
		{events.EventJobFinished, w.recordHistory},
		{events.EventProjectOpened, func(id string) {
			w.log.Debug().Str("project", id).Msg("session opened")
		}},
		{events.EventProjectClosed, func(id string) {
			w.log.Debug().Str("project", id).Msg("session closed")
		}},
	}
	for _, h := range w.handlers {
		_ = events.GlobalBus.Subscribe(h.topic, h.fn)
	}
}

func (w *workspace) unsubscribe() {
	for _, h := range w.handlers {
		_ = events.GlobalBus.Unsubscribe(h.topic, h.fn)
	}
	w.handlers = nil
}

// recordHistory runs on the job goroutine before Wait returns.
func (w *workspace) recordHistory(sum upload.Summary) {
	if sum.Total == 0 && sum.State == upload.Completed {
		return
	}
	if err := history.Add(history.FromSummary(sum)); err != nil {
		w.log.Warn().Err(err).Str("job", sum.ID).Msg("failed to save history")
	}
}

func (w *workspace) Close() {
	if w.tree != nil {
		sessions.Close(w.tree.ID)
	}
	w.unsubscribe()
	if w.store != nil {
		w.store.Close()
	}
	w.log.Close()
}

// profile resolves a profile name; an empty name means the default
// profile, then the one last picked.
func (w *workspace) profile(name string) (*config.Profile, error) {
	if name == "" {
		if p, ok := w.cfg.DefaultProfile(); ok {
			return p, nil
		}
		if lc, err := config.LoadLocalConfig(w.cfg.Root()); err == nil && lc.Upload.LastProfile != "" {
			name = lc.Upload.LastProfile
		}
	}
	if name == "" && len(w.cfg.Profiles) == 1 {
		return &w.cfg.Profiles[0], nil
	}
	if name == "" {
		return nil, fmt.Errorf("%w: pass --profile", upload.ErrConfigurationInvalid)
	}
	p, ok := w.cfg.Profile(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", record.ErrUnknownProfile, name)
	}
	return p, nil
}

// activate loads the record of p into the session's model.
func (w *workspace) activate(p *config.Profile) (*record.ProfileRecord, error) {
	rec, err := w.store.Profile(p.Name)
	if err != nil {
		return nil, err
	}
	w.session.Model().SetActiveProfile(rec)
	return rec, nil
}

// scope finds the node for a command line path. With no path the
// profile's local_path applies.
func (w *workspace) scope(arg string, p *config.Profile) (*project.Node, error) {
	rel := ""
	if arg != "" {
		r, err := util.ProjectPath(w.cfg.Root(), arg)
		if err != nil {
			return nil, err
		}
		rel = r
	} else if p != nil && p.LocalPath != "" {
		rel = strings.Trim(strings.ReplaceAll(p.LocalPath, "\\", "/"), "/")
	}
	if rel == "" {
		return nil, nil
	}
	n := w.tree.Find(rel)
	if n == nil {
		return nil, fmt.Errorf("%s is not part of the project (ignored or missing)", rel)
	}
	return n, nil
}

// openTransport connects to p, asking for a password on a terminal when
// an ssh profile carries no credentials.
func (w *workspace) openTransport(p *config.Profile) (upload.Transport, error) {
	if needsPassword(p) && util.IsInteractive() {
		prompt := promptui.Prompt{Label: fmt.Sprintf("Password for %s", p.Name), Mask: '*'}
		pw, err := prompt.Run()
		if err != nil {
			return nil, err
		}
		cp := *p
		cp.Password = pw
		p = &cp
	}
	w.log.Info().Str("profile", p.Name).Msg("connecting")
	return transport.Open(p)
}

func needsPassword(p *config.Profile) bool {
	u, err := p.ParsedURL()
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "scp", "ssh", "sftp":
	default:
		return false
	}
	if _, ok := u.User.Password(); ok {
		return false
	}
	return p.PrivateKey == "" && p.Password == ""
}

func rememberProfile(root, name string) {
	lc, err := config.LoadLocalConfig(root)
	if err != nil {
		return
	}
	lc.Upload.LastProfile = name
	_ = lc.Save(root)
}
