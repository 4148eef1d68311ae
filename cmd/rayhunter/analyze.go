package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BeigeBox/rayhunter/analysis"
	"github.com/BeigeBox/rayhunter/metrics"
	"github.com/BeigeBox/rayhunter/replay"
	"github.com/BeigeBox/rayhunter/report"
)

func newOutFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

func newAnalyzeCmd() *cobra.Command {
	var (
		qmdlPath string
		outPath  string
		speed    float64
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Replay a QMDL capture through the analyzer pipeline offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			promPort, _ := cmd.Flags().GetInt("prom-port")
			metrics.SetupPrometheus(promPort)

			return runAnalyze(cmd.Context(), qmdlPath, outPath, speed)
		},
	}

	cmd.Flags().StringVar(&qmdlPath, "qmdl", "", "path to a finished QMDL capture file")
	cmd.Flags().StringVar(&outPath, "out", "report.ndjson", "path to write the NDJSON analysis report to")
	cmd.Flags().Float64Var(&speed, "speed", 0, "playback pacing multiplier (0 = as fast as possible)")
	cmd.MarkFlagRequired("qmdl")
	return cmd
}

// runAnalyze drives the identical decode+harness+report pipeline record
// uses, but sourced from a finite replay.Source instead of a live
// diag.Device -- the foundational replay-determinism path of spec.md §8:
// the same (QMDL, analyzer set+versions, config) tuple always produces the
// same report.
func runAnalyze(ctx context.Context, qmdlPath, outPath string, speed float64) error {
	source, err := replay.Open(qmdlPath, nil)
	if err != nil {
		return fmt.Errorf("opening qmdl file: %w", err)
	}
	source.Speed = speed
	defer source.Close()

	config := analysis.DefaultAnalyzerConfig()
	analyzers := config.BuildAnalyzers()

	infos := make([]report.AnalyzerInfo, len(analyzers))
	for i, a := range analyzers {
		infos[i] = report.AnalyzerInfo{Name: a.Name(), Description: a.Description(), Version: a.Version()}
	}
	digest, err := report.ConfigDigest(config)
	if err != nil {
		return fmt.Errorf("hashing config: %w", err)
	}

	outFile, err := newOutFile(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	writer, err := report.NewWriter(outFile, report.Header{
		SchemaVersion: report.SchemaVersion,
		Analyzers:     infos,
		ConfigDigest:  digest,
	})
	if err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}

	harness := analysis.NewHarness(analyzers)
	containers, errc := source.Stream(ctx)

	var rows int
	for c := range containers {
		writer.Write(harness.AnalyzeContainer(c))
		rows++
	}
	if err := <-errc; err != nil {
		writer.Close()
		return fmt.Errorf("replay stream: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("flushing report: %w", err)
	}

	log.Info().
		Int("rows", rows).
		Int("corrupt_frames", source.CorruptFrameCount()).
		Int("decode_drops", source.DecodeDropCount()).
		Str("out", outPath).
		Msg("rayhunter: analysis complete")
	return nil
}
