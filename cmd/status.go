package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/spf13/cobra"

	"make-upload/internal/config"
	"make-upload/internal/events"
	"make-upload/internal/output"
	"make-upload/internal/project"
	"make-upload/internal/record"
	"make-upload/internal/selection"
)

var (
	statusProfile string
	statusAll     bool
	statusWatch   bool
)

const watchDebounce = 300 * time.Millisecond

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show what would be uploaded",
	Long: `Show the project tree with the files that were modified since their last
upload to the profile. With --watch the view is refreshed on every change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusProfile, "profile", "p", "", "profile to compare against (default profile when empty)")
	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "show unchanged entries too")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "refresh on file changes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.Close()

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	p, err := w.profile(statusProfile)
	if err != nil {
		return err
	}

	if err := printStatus(w, p, arg); err != nil {
		return err
	}
	if !statusWatch {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return watchProject(ctx, w, func() {
		output.Default.Println("")
		if err := w.rescan(); err != nil {
			output.Default.Printf("⚠️  %v\n", err)
			return
		}
		if err := printStatus(w, p, arg); err != nil {
			output.Default.Printf("⚠️  %v\n", err)
		}
	})
}

func printStatus(w *workspace, p *config.Profile, arg string) error {
	rec, err := w.activate(p)
	if err != nil {
		return err
	}
	scope, err := w.scope(arg, p)
	if err != nil {
		return err
	}
	m := w.session.Model()
	m.SetRootScope(scope)
	m.CheckOnlyModified()

	var b strings.Builder
	n := renderTree(&b, m, statusAll, contentNote(m, rec))
	output.Default.Printf("Profile %s (%s), %d uploaded entries recorded\n", p.Name, p.URL, rec.Len())
	if n == 0 {
		output.Default.Println("✅ Nothing to upload")
		return nil
	}
	output.Default.PrintBlock(b.String(), false)
	output.Default.Printf("%d entries to upload\n", n)
	return nil
}

// contentNote marks checked files whose bytes match their last upload.
// They stay checked: only the modification time decides staleness.
func contentNote(m *selection.Model, rec *record.ProfileRecord) func(*project.Node) string {
	return func(n *project.Node) string {
		if n.IsFolder() || m.EffectiveCheckState(n) != selection.Checked {
			return ""
		}
		if rec.Unchanged(n.RelPath(), n.AbsPath()) {
			return "touched, content unchanged"
		}
		return ""
	}
}

// watchProject calls refresh after every burst of changes below the
// project root until ctx is done. Changes are published as
// EventWatcherChanged; the refresh follows the bus.
func watchProject(ctx context.Context, w *workspace, refresh func()) error {
	root := w.cfg.Root()
	ch := make(chan notify.EventInfo, 100)
	if err := notify.Watch(filepath.Join(root, "..."), ch, notify.All); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	defer notify.Stop(ch)
	w.log.Info().Str("root", root).Msg("watching project")
	output.Default.Println("👀 Watching for changes, press Ctrl+C to stop")

	changed := make(chan struct{}, 1)
	onChange := func(path string) {
		w.log.Debug().Str("path", path).Msg("change")
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	_ = events.GlobalBus.Subscribe(events.EventWatcherChanged, onChange)
	defer func() { _ = events.GlobalBus.Unsubscribe(events.EventWatcherChanged, onChange) }()

	temp := filepath.Join(root, config.SyncTempDir) + string(os.PathSeparator)
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			if strings.HasPrefix(ev.Path(), temp) {
				continue
			}
			events.GlobalBus.Publish(events.EventWatcherChanged, ev.Path())
		case <-changed:
			timer = time.After(watchDebounce)
		case <-timer:
			timer = nil
			refresh()
		}
	}
}
