package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"make-upload/internal/upload"
)

var quickCmd = &cobra.Command{
	Use:   "quick [path]",
	Short: "Upload modified files to the default profile",
	Long: `Upload every file modified since its last upload to the default profile,
without asking. With path only that file or folder is considered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuick,
}

func runQuick(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.Close()

	p, ok := w.cfg.DefaultProfile()
	if !ok {
		return upload.ErrConfigurationInvalid
	}
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	scope, err := w.scope(arg, p)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	open := func(name string) (upload.Transport, error) {
		prof, err := w.profile(name)
		if err != nil {
			return nil, err
		}
		return w.openTransport(prof)
	}
	sum, err := runJob(p, func() (*upload.Job, error) {
		return w.session.Quick(ctx, upload.StoreProfiles{Store: w.store}, scope, open, upload.WithLogger(w.log.Zerolog()))
	})
	if err != nil {
		return err
	}
	return finishJob(w, sum)
}
