package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"interpol/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "interpol",
	Short: "Rewrite interpolation call sites into template/params form",
	Long: `interpol finds calls to interpolator entry points in type-checked Go packages
and rewrites each of them into a call of the interpolator's backend, with the
literal parts and the wrapped slot values split apart.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errReported signals that diagnostics were already printed; main only sets the exit status.
var errReported = errors.New("errors reported")

func main() {
	// Устанавливаем версию для автоматического флага --version
	rootCmd.Version = version.Version

	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("trace", false, "log every recognized call site to stderr")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	rootCmd.PersistentFlags().Int("jobs", 0, "files processed in parallel (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().Bool("tests", false, "include _test.go files")
	rootCmd.PersistentFlags().String("format", "pretty", "diagnostics format (pretty|json|short)")
	rootCmd.PersistentFlags().Bool("timings", false, "print stage timings to stderr")
	rootCmd.PersistentFlags().String("runtime", "", "import path of the guard runtime package")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a runtime trace to this file")
	rootCmd.PersistentPreRunE = startProfiling

	err := rootCmd.Execute()
	if stopErr := profSession.Stop(); stopErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", stopErr)
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
