package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"make-upload/internal/output"
	"make-upload/internal/tui"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List upload profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

var profilesResetCmd = &cobra.Command{
	Use:   "reset <name>",
	Short: "Forget what was uploaded to a profile",
	Long: `Forget every upload stamp of the profile, so the whole project shows as
modified for it. A short captcha guards the operation on a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := openWorkspace()
		if err != nil {
			return err
		}
		defer w.Close()

		p, err := w.profile(args[0])
		if err != nil {
			return err
		}
		ok, err := tui.ConfirmWithCaptcha(fmt.Sprintf("Forget every upload to %s?", p.Name), 3)
		if err != nil {
			return err
		}
		if !ok {
			output.Default.Println("⏹ Cancelled")
			return nil
		}
		n, err := w.store.Reset(p.Name)
		if err != nil {
			return err
		}
		w.log.Info().Str("profile", p.Name).Int64("stamps", n).Msg("profile reset")
		output.Default.Printf("✅ Forgot %d upload stamps of %s\n", n, p.Name)
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesResetCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, p := range w.cfg.Profiles {
		mark := " "
		if p.Default {
			mark = "*"
		}
		stamps := 0
		if rec, err := w.store.Profile(p.Name); err == nil {
			stamps = rec.Len()
		}
		line := fmt.Sprintf("%s %-16s %s", mark, p.Name, p.URL)
		if p.LocalPath != "" {
			line += fmt.Sprintf(" (from %s)", p.LocalPath)
		}
		output.Default.Printf("%s, %d stamps\n", line, stamps)
	}
	return nil
}
