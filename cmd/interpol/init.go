package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"interpol/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default " + project.ManifestName,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if info, err := os.Stat(dir); err != nil {
			return fmt.Errorf("failed to stat %q: %w", dir, err)
		} else if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		path, err := project.Init(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
		return nil
	},
}
