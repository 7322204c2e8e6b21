package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"make-upload/internal/config"
	"make-upload/internal/events"
	"make-upload/internal/output"
	"make-upload/internal/selection"
	"make-upload/internal/tui"
	"make-upload/internal/upload"
	"make-upload/internal/util"
)

var (
	uploadProfile string
	uploadYes     bool
	uploadAll     bool
	uploadInvert  bool
	uploadCheck   []string
	uploadUncheck []string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload modified files to a profile",
	Long: `Upload the files of the project (or of path) that were modified since their
last upload to the chosen profile. The selection starts with the modified files
and can be adjusted with --all, --invert, --check and --uncheck.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadProfile, "profile", "p", "", "profile to upload to")
	uploadCmd.Flags().BoolVarP(&uploadYes, "yes", "y", false, "do not ask for confirmation")
	uploadCmd.Flags().BoolVar(&uploadAll, "all", false, "select every file, modified or not")
	uploadCmd.Flags().BoolVar(&uploadInvert, "invert", false, "invert the selection")
	uploadCmd.Flags().StringSliceVar(&uploadCheck, "check", nil, "also upload these paths")
	uploadCmd.Flags().StringSliceVar(&uploadUncheck, "uncheck", nil, "skip these paths")
}

func runUpload(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.Close()

	p, err := pickProfile(w, uploadProfile)
	if err != nil {
		return err
	}
	if _, err := w.activate(p); err != nil {
		return err
	}
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	scope, err := w.scope(arg, p)
	if err != nil {
		return err
	}

	m := w.session.Model()
	m.SetRootScope(scope)
	if err := applySelection(w, m); err != nil {
		return err
	}

	var b strings.Builder
	n := renderTree(&b, m, false, nil)
	if n == 0 {
		output.Default.Println("✅ Nothing to upload")
		return nil
	}
	output.Default.PrintBlock(b.String(), false)

	if !uploadYes {
		ok, err := confirm(fmt.Sprintf("Upload %d entries to %s", n, p.Name))
		if err != nil {
			return err
		}
		if !ok {
			output.Default.Println("⏹ Cancelled")
			return nil
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sum, err := runJob(p, func() (*upload.Job, error) {
		t, err := w.openTransport(p)
		if err != nil {
			return nil, err
		}
		return w.session.Start(ctx, p.Name, t, upload.WithLogger(w.log.Zerolog()))
	})
	if err != nil {
		return err
	}
	rememberProfile(w.cfg.Root(), p.Name)
	return finishJob(w, sum)
}

// pickProfile uses name when set, otherwise lets the user choose on a
// terminal, otherwise falls back to the default profile.
func pickProfile(w *workspace, name string) (*config.Profile, error) {
	if name != "" || !util.IsInteractive() {
		return w.profile(name)
	}
	choices := make([]tui.ProfileChoice, 0, len(w.cfg.Profiles))
	for _, p := range w.cfg.Profiles {
		c := tui.ProfileChoice{Name: p.Name, URL: p.URL, Default: p.Default}
		if rec, err := w.store.Profile(p.Name); err == nil {
			c.Stamps = rec.Len()
		}
		choices = append(choices, c)
	}
	preselect := ""
	if lc, err := config.LoadLocalConfig(w.cfg.Root()); err == nil {
		preselect = lc.Upload.LastProfile
	}
	picked, err := tui.PickProfile(choices, "Upload to", preselect)
	if err != nil {
		return nil, err
	}
	return w.profile(picked)
}

func applySelection(w *workspace, m *selection.Model) error {
	if uploadAll {
		m.CheckAll()
	} else {
		m.CheckOnlyModified()
	}
	set := func(paths []string, st selection.CheckState) error {
		for _, arg := range paths {
			n, err := w.scope(arg, nil)
			if err != nil {
				return err
			}
			if n == nil {
				n = m.Top()
			}
			if err := m.SetCheckState(n, st); err != nil {
				return err
			}
		}
		return nil
	}
	if err := set(uploadCheck, selection.Checked); err != nil {
		return err
	}
	if err := set(uploadUncheck, selection.Unchecked); err != nil {
		return err
	}
	if uploadInvert {
		m.InvertSelection()
	}
	return nil
}

func confirm(label string) (bool, error) {
	if !util.IsInteractive() {
		return false, errors.New("not a terminal, pass --yes to upload without confirmation")
	}
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// runJob starts a job with a progress bar attached and waits for it.
func runJob(p *config.Profile, start func() (*upload.Job, error)) (upload.Summary, error) {
	var bar *progressbar.ProgressBar
	onStart := func(info upload.JobInfo) {
		bar = progressbar.NewOptions(info.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(p.Name),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	onItem := func(r upload.ItemResult) {
		if bar != nil {
			bar.Describe(r.Item.RelPath)
		}
	}
	onDone := func(r upload.ItemResult) {
		// recorded in the output history while the bar owns the terminal
		if r.Err != nil {
			output.Default.Printf("❌ %s: %v\n", r.Item.RelPath, r.Err)
		} else {
			output.Default.Printf("✅ %s\n", r.Item.RelPath)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	_ = events.GlobalBus.Subscribe(events.EventJobStarted, onStart)
	_ = events.GlobalBus.Subscribe(events.EventItemStarted, onItem)
	_ = events.GlobalBus.Subscribe(events.EventItemDone, onDone)
	defer func() {
		_ = events.GlobalBus.Unsubscribe(events.EventJobStarted, onStart)
		_ = events.GlobalBus.Unsubscribe(events.EventItemStarted, onItem)
		_ = events.GlobalBus.Unsubscribe(events.EventItemDone, onDone)
	}()

	output.Default.Suspend()
	defer output.Default.Resume()
	j, err := start()
	if err != nil {
		return upload.Summary{}, err
	}
	sum := j.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	return sum, nil
}

// finishJob reports sum and refreshes the selection so that only what is
// still stale stays checked. The history entry was written by the
// workspace's EventJobFinished handler.
func finishJob(w *workspace, sum upload.Summary) error {
	if sum.Total == 0 && sum.State == upload.Completed {
		output.Default.Println("✅ Nothing to upload")
		return nil
	}
	output.Default.Printf("Upload %s: %d/%d uploaded in %s\n",
		sum.State, sum.Succeeded, sum.Total, sum.Finished.Sub(sum.Started).Round(time.Millisecond))
	for _, f := range sum.Failed {
		output.Default.Printf("  ❌ %s: %v\n", f.Path, f.Err)
	}
	w.session.Model().CheckOnlyModified()

	switch {
	case sum.State == upload.Failed:
		return fmt.Errorf("upload aborted: %w", sum.Fatal)
	case len(sum.Failed) > 0:
		return fmt.Errorf("%d entries failed to upload", len(sum.Failed))
	}
	return nil
}
