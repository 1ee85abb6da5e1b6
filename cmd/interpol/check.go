package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [patterns...]",
	Short: "Report diagnostics without writing anything",
	Long:  `Run the rewrite pass and print diagnostics only. The exit status is 1 when any error is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd, args)
		if err != nil {
			return err
		}
		res, err := runDriver(cmd.Context(), s, uiModeOff, "interpol check")
		if err != nil {
			return err
		}
		out := cmd.ErrOrStderr()
		if s.format == formatJSON {
			out = cmd.OutOrStdout()
		}
		if err := printDiagnostics(out, res, s); err != nil {
			return err
		}
		if s.timings {
			fmt.Fprint(cmd.ErrOrStderr(), res.Timings.Summary())
		}
		if res.HasErrors() {
			return errReported
		}
		return nil
	},
}
