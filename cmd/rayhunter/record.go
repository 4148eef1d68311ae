package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BeigeBox/rayhunter/analysis"
	"github.com/BeigeBox/rayhunter/diag"
	"github.com/BeigeBox/rayhunter/metrics"
	"github.com/BeigeBox/rayhunter/session"
)

func newRecordCmd() *cobra.Command {
	var (
		devicePath string
		outDir     string
		minStartMB uint64
		minContMB  uint64
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a live DIAG capture and analyze it as it arrives",
		RunE: func(cmd *cobra.Command, args []string) error {
			promPort, _ := cmd.Flags().GetInt("prom-port")
			metrics.SetupPrometheus(promPort)

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating capture dir: %w", err)
			}

			cfg := session.Config{
				CaptureDir:                    outDir,
				MinSpaceToStartRecordingMB:    minStartMB,
				MinSpaceToContinueRecordingMB: minContMB,
				Analyzers:                     analysis.DefaultAnalyzerConfig(),
			}

			open := func(ctx context.Context, sink diag.FrameSink) (session.Source, error) {
				return diag.Open(ctx, devicePath, sink)
			}

			sess := session.New(cfg, session.StatfsDisk{}, open)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sess.Start(ctx); err != nil {
				return fmt.Errorf("starting session: %w", err)
			}

			<-ctx.Done()
			log.Info().Msg("rayhunter: stop signal received")

			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sess.Stop(stopCtx); err != nil {
				return fmt.Errorf("stopping session: %w", err)
			}
			if err := sess.Err(); err != nil {
				return fmt.Errorf("session ended with error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&devicePath, "device", "/dev/diag", "DIAG character device path")
	cmd.Flags().StringVar(&outDir, "out", "./captures", "directory to write QMDL/manifest/report files to")
	cmd.Flags().Uint64Var(&minStartMB, "min-start-mb", 512, "minimum free space (MB) required to start recording")
	cmd.Flags().Uint64Var(&minContMB, "min-continue-mb", 128, "minimum free space (MB) to continue recording before stopping")
	return cmd
}
