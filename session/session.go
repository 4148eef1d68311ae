// Package session orchestrates a single recording: the DIAG transport (or a
// replay.Source standing in for it), the QMDL writer, the decoder+harness,
// and the NDJSON report writer, wired together per spec.md §4.9/§5.
//
// There is at most one active Session at a time (spec.md §5 "Scheduling
// model": "only one is allowed at a time"; §9 "the session and its manifest
// are process-singletons"). Session itself does not enforce that -- the
// caller (the out-of-scope admin API layer) is expected to hold a single
// Session value, matching spec.md's explicit "Model as an explicit
// SessionSupervisor value ... never reach for ambient globals."
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/BeigeBox/rayhunter/analysis"
	"github.com/BeigeBox/rayhunter/diag"
	"github.com/BeigeBox/rayhunter/qmdl"
	"github.com/BeigeBox/rayhunter/report"
)

// State is the session's lifecycle state, per spec.md §4.9.
type State int

const (
	Idle State = iota
	Recording
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Source is the narrow contract a Session needs from whatever is producing
// MessagesContainers: a live diag.Device or a replay.Source. Both satisfy
// this structurally.
type Source interface {
	Stream(ctx context.Context) (<-chan diag.MessagesContainer, <-chan error)
	CorruptFrameCount() int
	Close() error
}

// DiskUsage reports free bytes for the filesystem backing a capture
// directory. Implemented by StatfsDisk in disk.go (a unix.Statfs wrapper);
// tests substitute a fake.
type DiskUsage interface {
	FreeBytes(path string) (uint64, error)
}

// Config holds the tunables spec.md §6 lists under "core-relevant fields",
// plus the wiring a Session needs to open its QMDL/report files.
type Config struct {
	// CaptureDir is where the QMDL file, manifest sidecar, and NDJSON
	// report for this session are written.
	CaptureDir string

	MinSpaceToStartRecordingMB    uint64
	MinSpaceToContinueRecordingMB uint64

	Analyzers analysis.AnalyzerConfig

	// WatchdogInterval overrides the 1Hz default (spec.md §5); zero means
	// use the default.
	WatchdogInterval time.Duration

	// ShutdownBudget overrides the 2s cancellation budget (spec.md §5);
	// zero means use the default.
	ShutdownBudget time.Duration
}

const (
	defaultWatchdogInterval = time.Second
	defaultShutdownBudget   = 2 * time.Second
)

// SourceOpener opens the container source for a new recording (a live
// diag.Device or a replay.Source), given a FrameSink (the session's QMDL
// writer) to tee raw frames to; a source that does not tee, e.g. replay,
// may ignore it.
type SourceOpener func(ctx context.Context, sink diag.FrameSink) (Source, error)

// Session ties together one recording's transport, QMDL writer, manifest,
// decoder/harness, and report writer, per spec.md §4.9. A Session is used
// once: Start, optionally Pause/Resume, then Stop: callers construct a new
// Session for the next recording.
type Session struct {
	cfg    Config
	disk   DiskUsage
	open   SourceOpener

	mu          sync.Mutex
	state       State
	stopReason  qmdl.StopReason
	stopErr     error
	pauseCh     chan bool // true = pause, false = resume

	manifest   *qmdl.Manifest
	writer     *qmdl.Writer
	report     *report.Writer
	reportFile *os.File
	source     Source

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an unstarted Session. disk and open are injected so tests
// can run the full orchestration without a real DIAG device or filesystem
// quota.
func New(cfg Config, disk DiskUsage, open SourceOpener) *Session {
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = defaultWatchdogInterval
	}
	if cfg.ShutdownBudget <= 0 {
		cfg.ShutdownBudget = defaultShutdownBudget
	}
	return &Session{cfg: cfg, disk: disk, open: open, state: Idle}
}

// ErrInsufficientStorage is returned by Start (and surfaces as
// Stopped(DiskFull) mid-recording) when free space drops below the
// configured threshold, per spec.md §7.
var ErrInsufficientStorage = errors.New("session: insufficient storage")

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StopReason returns the terminal stop reason, valid only once State() ==
// Stopped.
func (s *Session) StopReason() qmdl.StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopReason
}

// Err returns the error that caused a Stopped(DiagError) transition, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopErr
}

// Start checks the disk quota, opens the manifest/QMDL/report files and the
// container source, and spawns the pipeline tasks described in spec.md §5.
// It returns once the pipeline is running; Stop (or a fatal error reaching
// the watchdog) ends the recording.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return fmt.Errorf("session: Start called from state %s", s.state)
	}
	s.mu.Unlock()

	free, err := s.disk.FreeBytes(s.cfg.CaptureDir)
	if err != nil {
		return fmt.Errorf("session: checking free space: %w", err)
	}
	if free < s.cfg.MinSpaceToStartRecordingMB*1024*1024 {
		return ErrInsufficientStorage
	}

	id := ulid.Make().String()
	now := time.Now().UTC()

	manifestPath := filepath.Join(s.cfg.CaptureDir, "manifest.json")
	manifest, err := qmdl.LoadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("session: loading manifest: %w", err)
	}
	if _, err := manifest.Create(id, now); err != nil {
		return fmt.Errorf("session: creating manifest entry: %w", err)
	}

	qmdlPath := filepath.Join(s.cfg.CaptureDir, id+".qmdl")
	writer, err := qmdl.Create(qmdlPath)
	if err != nil {
		return fmt.Errorf("session: creating qmdl file: %w", err)
	}

	analyzers := s.cfg.Analyzers.BuildAnalyzers()
	infos := make([]report.AnalyzerInfo, len(analyzers))
	for i, a := range analyzers {
		infos[i] = report.AnalyzerInfo{Name: a.Name(), Description: a.Description(), Version: a.Version()}
	}
	digest, err := report.ConfigDigest(s.cfg.Analyzers)
	if err != nil {
		writer.Close()
		return fmt.Errorf("session: hashing config: %w", err)
	}
	reportFile, err := newReportFile(filepath.Join(s.cfg.CaptureDir, id+".ndjson"))
	if err != nil {
		writer.Close()
		return fmt.Errorf("session: creating report file: %w", err)
	}
	reportWriter, err := report.NewWriter(reportFile, report.Header{
		SchemaVersion: report.SchemaVersion,
		Analyzers:     infos,
		ConfigDigest:  digest,
	})
	if err != nil {
		writer.Close()
		reportFile.Close()
		return fmt.Errorf("session: writing report header: %w", err)
	}

	src, err := s.open(ctx, writer)
	if err != nil {
		writer.Close()
		reportWriter.Close()
		return fmt.Errorf("session: opening source: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.manifest = manifest
	s.writer = writer
	s.report = reportWriter
	s.reportFile = reportFile
	s.source = src
	s.cancel = cancel
	s.pauseCh = make(chan bool, 1)
	s.done = make(chan struct{})
	s.state = Recording
	s.mu.Unlock()

	log.Info().Str("session", id).Str("capture_dir", s.cfg.CaptureDir).Msg("session: recording started")

	go s.run(sessCtx, src, analyzers)
	return nil
}

// run drives the per-session tasks (spec.md §5). Unlike a plain
// errgroup.WithContext, a task finishing *without* an error (the normal end
// of a finite replay, or the watchdog tripping a disk-quota stop) must also
// wind the rest of the pipeline down -- so every task that can end the
// session on its own explicitly cancels pipelineCtx in addition to
// returning its error, and the other tasks only ever watch pipelineCtx.
func (s *Session) run(sessCtx context.Context, src Source, analyzers []analysis.Analyzer) {
	defer close(s.done)

	pipelineCtx, cancelPipeline := context.WithCancel(sessCtx)
	defer cancelPipeline()

	containers, srcErr := src.Stream(pipelineCtx)
	rows := make(chan analysis.Row, 64)

	var g errgroup.Group

	g.Go(func() error {
		defer cancelPipeline()
		defer close(rows)
		return s.decodeLoop(pipelineCtx, containers, analyzers, rows)
	})
	g.Go(func() error {
		// rows is closed whenever decodeLoop returns, so the report loop
		// drains every row already produced instead of racing cancellation.
		return s.reportLoop(context.Background(), rows)
	})
	g.Go(func() error {
		defer cancelPipeline()
		return s.watchdog(pipelineCtx)
	})

	// A non-nil terminal error from the source (e.g. diag.ErrDeviceGone)
	// ends the session; fold it into the group the same way a task error
	// would. A clean end (nil) leaves decodeLoop to drain the containers
	// still buffered; it ends the session once the channel closes.
	g.Go(func() error {
		select {
		case err := <-srcErr:
			if err != nil {
				cancelPipeline()
			}
			return err
		case <-pipelineCtx.Done():
			return nil
		}
	})

	runErr := g.Wait()
	s.teardown(runErr)
}

// decodeLoop consumes containers, runs them through the harness, and
// forwards rows to the report writer. It also honors pause/resume signals
// on s.pauseCh (spec.md §4.9 "pauses the transport read loop"): since the
// transport itself has no pause primitive at this layer, pausing here
// simply stops draining containers, which backpressures the upstream
// source per §5's "block the reader, never drop" policy.
func (s *Session) decodeLoop(ctx context.Context, containers <-chan diag.MessagesContainer, analyzers []analysis.Analyzer, rows chan<- analysis.Row) error {
	harness := analysis.NewHarness(analyzers)
	paused := false

	for {
		if paused {
			select {
			case <-ctx.Done():
				return nil
			case p := <-s.pauseCh:
				paused = p
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case p := <-s.pauseCh:
			paused = p
		case c, ok := <-containers:
			if !ok {
				return nil
			}
			row := harness.AnalyzeContainer(c)
			_ = s.manifest.UpdateCurrent(c.Timestamp, uint64(s.writer.Size()))
			select {
			case rows <- row:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *Session) reportLoop(ctx context.Context, rows <-chan analysis.Row) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case row, ok := <-rows:
			if !ok {
				return nil
			}
			s.report.Write(row)
		}
	}
}

// watchdog polls free disk space at cfg.WatchdogInterval (spec.md §5 "1Hz")
// and cancels the session with Stopped(DiskFull) if it drops below
// MinSpaceToContinueRecordingMB. The stat itself is non-blocking per §5
// ("Watchdog disk check: non-blocking (stat only)").
func (s *Session) watchdog(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			free, err := s.disk.FreeBytes(s.cfg.CaptureDir)
			if err != nil {
				log.Warn().Err(err).Msg("session: watchdog disk check failed")
				continue
			}
			if free < s.cfg.MinSpaceToContinueRecordingMB*1024*1024 {
				s.mu.Lock()
				s.stopReason = qmdl.StopReasonDiskFull
				s.mu.Unlock()
				return ErrInsufficientStorage
			}
		}
	}
}

// teardown finalizes the manifest entry, flushes and closes the writer,
// report, and source, and records the session's terminal state. runErr is
// the first non-nil error returned by any pipeline task (nil on an orderly
// Stop).
func (s *Session) teardown(runErr error) {
	s.mu.Lock()
	reason := s.stopReason
	if reason == "" {
		switch {
		case runErr == nil:
			reason = qmdl.StopReasonUserStop
		case errors.Is(runErr, diag.ErrDeviceGone):
			reason = qmdl.StopReasonDiagError
		case errors.Is(runErr, ErrInsufficientStorage):
			reason = qmdl.StopReasonDiskFull
		default:
			reason = qmdl.StopReasonDiagError
		}
	}
	if runErr != nil && !errors.Is(runErr, ErrInsufficientStorage) {
		s.stopErr = runErr
	}
	s.stopReason = reason
	s.mu.Unlock()

	if err := s.manifest.Finalize(reason); err != nil {
		log.Warn().Err(err).Msg("session: finalizing manifest")
	}
	if err := s.manifest.Flush(); err != nil {
		log.Warn().Err(err).Msg("session: flushing manifest")
	}
	if err := s.report.Close(); err != nil {
		log.Warn().Err(err).Msg("session: closing report writer")
	}
	if err := s.reportFile.Close(); err != nil {
		log.Warn().Err(err).Msg("session: closing report file")
	}
	if err := s.writer.Close(); err != nil {
		log.Warn().Err(err).Msg("session: closing qmdl writer")
	}
	if err := s.source.Close(); err != nil {
		log.Warn().Err(err).Msg("session: closing source")
	}

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()

	log.Info().Str("reason", string(reason)).Msg("session: recording stopped")
}

// Pause suspends the decode loop's container draining, per spec.md §4.9.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording {
		return fmt.Errorf("session: Pause called from state %s", s.state)
	}
	s.state = Paused
	s.pauseCh <- true
	return nil
}

// Resume un-suspends a paused session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		return fmt.Errorf("session: Resume called from state %s", s.state)
	}
	s.state = Recording
	s.pauseCh <- false
	return nil
}

// Stop triggers an orderly shutdown: cancel the session context, then wait
// up to ShutdownBudget for every task to return before giving up, per
// spec.md §5's cancellation budget. Stop is idempotent; calling it on an
// already-stopped session is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Stopped || s.state == Idle {
		s.mu.Unlock()
		return nil
	}
	s.stopReason = qmdl.StopReasonUserStop
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.ShutdownBudget):
		log.Warn().Msg("session: shutdown budget exceeded, tasks did not return in time")
		s.mu.Lock()
		s.stopReason = qmdl.StopReasonDiagError
		s.state = Stopped
		s.mu.Unlock()
		return fmt.Errorf("session: shutdown exceeded %s budget", s.cfg.ShutdownBudget)
	case <-ctx.Done():
		return ctx.Err()
	}
}
