package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/tabcollate/internal/config"
)

//go:embed templates/tabcollate.yaml
var configTemplate embed.FS

// templatePath is the template's path inside configTemplate.
const templatePath = "templates/tabcollate.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new tabcollate configuration file",
		Long: `Initialize creates a new .tabcollate configuration file in the current directory.

The generated file includes:
- Defaults for the table selector, placeholder options and total labels
- A commented site entry showing every layout field

Examples:
  # Create .tabcollate in current directory
  tabcollate init

  # Create config file at a specific path
  tabcollate init -o sites.yaml

  # Force overwrite existing file
  tabcollate init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Site entries may hold session cookies.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nAdd a site entry describing your page:")
	fmt.Fprintln(out, "  - One control selector per axis")
	fmt.Fprintln(out, "  - The breakdown control or fixed breakdown axis")
	fmt.Fprintln(out, "  - Cookies and headers if the page needs a session")
	return nil
}
