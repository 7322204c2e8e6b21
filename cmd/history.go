package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"make-upload/internal/config"
	"make-upload/internal/history"
	"make-upload/internal/output"
)

var (
	historyAll   bool
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past uploads of the project",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVarP(&historyAll, "all", "a", false, "list every project with recorded uploads")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of uploads to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyAll {
		for _, p := range history.Projects() {
			output.Default.Println(p)
		}
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Find(cwd)
	if err != nil {
		return err
	}
	entries := history.ForProject(cfg.Root())
	if len(entries) == 0 {
		output.Default.Println("No uploads recorded yet.")
		return nil
	}
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-12s %-11s %d/%d",
			e.Finished.Local().Format("2006-01-02 15:04:05"), e.Profile, e.State, e.Succeeded, e.Total)
		if len(e.Failed) > 0 {
			line += fmt.Sprintf(", %d failed", len(e.Failed))
		}
		if e.Fatal != "" {
			line += ": " + e.Fatal
		}
		output.Default.Println(line)
	}
	return nil
}
