package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"interpol/internal/driver"
	"interpol/internal/report"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [patterns...]",
	Short: "Rewrite interpolation call sites",
	Long: `Rewrite every recognized call site in the matched packages. Without -w or -o
the rewritten files are printed to stdout, each preceded by a "// path" line.`,
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().BoolP("write", "w", false, "overwrite source files in place")
	rewriteCmd.Flags().StringP("out", "o", "", "mirror rewritten files under this directory")
	rewriteCmd.Flags().String("report", "", "write the run report to this file (.json for JSON, msgpack otherwise)")
	rewriteCmd.Flags().String("ui", "off", "show progress UI (auto|on|off)")
	rewriteCmd.Flags().Bool("summary", false, "print a one-line summary to stderr")
}

func runRewrite(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	inPlace, err := cmd.Flags().GetBool("write")
	if err != nil {
		return err
	}
	outDir, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	reportPath, err := cmd.Flags().GetString("report")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	showSummary, err := cmd.Flags().GetBool("summary")
	if err != nil {
		return err
	}
	if inPlace && outDir != "" {
		return fmt.Errorf("-w and -o are mutually exclusive")
	}

	res, err := runDriver(cmd.Context(), s, mode, "interpol rewrite")
	if err != nil {
		return err
	}

	out := driver.Output{Mode: driver.OutputStdout, Stdout: cmd.OutOrStdout()}
	switch {
	case inPlace:
		out.Mode = driver.OutputInPlace
	case outDir != "":
		out.Mode = driver.OutputDir
		out.Dir = outDir
	case s.format == formatJSON:
		// stdout занят JSON-диагностикой
		out.Mode = driver.OutputNone
	}
	written, writeErr := driver.Write(res, out, nil)

	diagOut := cmd.ErrOrStderr()
	if s.format == formatJSON {
		diagOut = cmd.OutOrStdout()
	}
	if err := printDiagnostics(diagOut, res, s); err != nil {
		return err
	}
	if reportPath != "" {
		r := report.Build(res, s.reportMeta())
		if err := report.Write(reportPath, r); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if showSummary {
		fmt.Fprintln(os.Stderr, summary(res))
		if out.Mode == driver.OutputInPlace || out.Mode == driver.OutputDir {
			for _, rel := range written {
				fmt.Fprintf(os.Stderr, "  wrote %s\n", rel)
			}
		}
	}
	if s.timings {
		fmt.Fprint(os.Stderr, res.Timings.Summary())
	}
	if writeErr != nil {
		return writeErr
	}
	if res.HasErrors() {
		return errReported
	}
	return nil
}
