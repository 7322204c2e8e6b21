package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"make-upload/internal/config"
	"make-upload/internal/history"
	"make-upload/internal/logging"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "make-upload",
	Short: "Incremental project upload tool",
	Long: `A CLI tool that uploads the files of a project to one or more destinations
(local folders, SSH, SFTP, FTP, WebDAV or S3) and remembers, per destination,
what was uploaded and when, so only modified files are offered next time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, _ := os.Getwd()
		if _, err := config.Find(cwd); err != nil {
			if !errors.Is(err, config.ErrNotFound) {
				return err
			}
			fmt.Println("Config file not found")
			fmt.Println("USAGE:")
			fmt.Println("Make sure you have the config file by running.")
			fmt.Println("make-upload init")
			fmt.Println("------------------------------")
			showRecentProjectsMenu()
			return nil
		}
		return showMainMenu(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write debug entries to the upload log")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(quickCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(historyCmd)
}

func showMainMenu(cmd *cobra.Command) error {
	items := []string{
		"upload :: Choose what to upload",
		"quick :: Upload modified files to the default profile",
		"status :: Show modified files",
		"profiles :: List profiles",
		"history :: Show past uploads",
		"Exit",
	}
	prompt := promptui.Select{
		Label: "Select an option",
		Items: items,
	}
	_, result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		return err
	}

	switch result {
	case items[0]:
		return runUpload(cmd, nil)
	case items[1]:
		return runQuick(cmd, nil)
	case items[2]:
		return runStatus(cmd, nil)
	case items[3]:
		return runProfiles(cmd, nil)
	case items[4]:
		return runHistory(cmd, nil)
	}
	return nil
}

func showRecentProjectsMenu() {
	projects := history.Projects()
	if len(projects) == 0 {
		fmt.Println("No recent projects found.")
		return
	}

	prompt := promptui.SelectWithAdd{
		Label:    "Display recent projects (type to search)",
		Items:    projects,
		AddLabel: "Search",
	}
	idx, result, err := prompt.Run()
	if err != nil {
		fmt.Printf("Prompt failed %v\n", err)
		return
	}

	if idx == -1 {
		results := history.SearchProjects(result)
		if len(results) == 0 {
			fmt.Printf("No projects found matching '%s'\n", result)
			return
		}
		searchPrompt := promptui.Select{
			Label: "Search results",
			Items: results,
		}
		_, selected, err := searchPrompt.Run()
		if err != nil {
			fmt.Printf("Prompt failed %v\n", err)
			return
		}
		result = selected
	}

	sub := promptui.Select{
		Label: fmt.Sprintf("Selected: %s", result),
		Items: []string{"Show path", "Forget project", "Back"},
	}
	_, choice, err := sub.Run()
	if err != nil {
		return
	}
	switch choice {
	case "Show path":
		fmt.Printf("cd %s\n", result)
	case "Forget project":
		if err := history.RemoveProject(result); err != nil {
			fmt.Printf("⚠️  Failed to update history: %v\n", err)
			return
		}
		fmt.Printf("Removed from history: %s\n", result)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// ExecuteContext allows running the root command with a supplied context for cancellation.
func ExecuteContext(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}
