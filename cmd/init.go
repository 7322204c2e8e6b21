package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"make-upload/internal/config"
	"make-upload/internal/ignore"
	"make-upload/internal/util"
)

const defaultIgnoreContent = `# Development files
.DS_Store
Thumbs.db

# Dependencies
node_modules

# IDE files
.vscode
.idea

# Log files
*.log

# Temporary files
*.tmp
*.swp
*.bak
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config file",
	Long: `Generate a default make-upload.yaml config file and an .upload_ignore file
in the current directory. A template.yaml next to the executable is used as the
starting point when present.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		fmt.Printf("You are in: %s\n", cwd)

		if config.Exists(cwd) {
			fmt.Println("Config file already exists.")
			return nil
		}

		cfg, source, err := initialConfig(cwd)
		if err != nil {
			return err
		}
		if err := config.Save(cwd, cfg); err != nil {
			return err
		}
		fmt.Printf("✅ Created %s from %s\n", config.ConfigFileName, source)

		ignorePath := filepath.Join(cwd, ignore.FileName)
		if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
			if err := os.WriteFile(ignorePath, []byte(defaultIgnoreContent), 0644); err != nil {
				fmt.Printf("⚠️  Warning: Failed to create %s file: %v\n", ignore.FileName, err)
			} else {
				fmt.Printf("✅ Created %s file with default ignore patterns\n", ignore.FileName)
			}
		}
		return nil
	},
}

// initialConfig reads template.yaml from the executable's directory, or
// falls back to the built-in template.
func initialConfig(cwd string) (*config.Config, string, error) {
	name := strings.Join(strings.Fields(filepath.Base(cwd)), "-")

	if dir, err := util.ExecutableDir(); err == nil {
		templateFile := filepath.Join(dir, "template.yaml")
		if data, err := os.ReadFile(templateFile); err == nil {
			var cfg config.Config
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, "", fmt.Errorf("error parsing template.yaml: %w", err)
			}
			if cfg.ProjectName == "" {
				cfg.ProjectName = name
			}
			return &cfg, templateFile, nil
		}
	}
	return config.Template(name), "built-in template", nil
}
