package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/configs"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .codescout.yaml",
		Long: `Write a starter .codescout.yaml to the current directory.

The template has every option commented out; defaults work out of the
box. An existing .codescout.yaml or .codescout.yml is preserved unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			return runInit(cmd, cwd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	yamlPath := filepath.Join(dir, ".codescout.yaml")

	if !force {
		// Never clobber user customizations. Both extensions count.
		for _, name := range []string{".codescout.yaml", ".codescout.yml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Existing %s preserved (use --force to overwrite)\n", name)
				return nil
			}
		}
	}

	if err := os.WriteFile(yamlPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", yamlPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", yamlPath)
	return nil
}
