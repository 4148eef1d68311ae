// Command rayhunter runs the diagnostic-capture and analysis pipeline
// described in spec.md, either against a live modem DIAG device or against
// a previously captured QMDL file. The admin HTTP API and web UI that would
// normally front this pipeline are out of scope (spec.md §1); this binary
// is a bare CLI for exercising and testing the pipeline directly.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is stamped via -ldflags in a real release build; left as a plain
// var default here, matching how the teacher's packages treat build-time
// values it doesn't otherwise need (see qmdl.rayhunterVersion).
var version = "dev"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rayhunter",
		Short:   "IMSI-catcher detection pipeline",
		Version: version,
	}
	cmd.PersistentFlags().Int("prom-port", 0, "port to export Prometheus metrics on (0 disables)")
	cmd.AddCommand(newRecordCmd())
	cmd.AddCommand(newAnalyzeCmd())
	return cmd
}
