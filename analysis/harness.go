package analysis

import (
	"time"

	"github.com/BeigeBox/rayhunter/decode"
	"github.com/BeigeBox/rayhunter/diag"
)

// Row is one record of the NDJSON analysis report, corresponding to one
// incoming MessagesContainer (spec.md §4.3, §4.5).
type Row struct {
	Timestamp      time.Time
	SkippedReasons []decode.SkippedReason
	// Events has exactly len(Harness.analyzers) slots, in configured
	// order; a nil slot means that analyzer produced no event for this
	// container (spec.md's "analyzer slot alignment" invariant).
	Events []*Event
}

// AnalyzerConfig is a fixed set of boolean toggles plus the IMSI-exposure
// tuning parameters (spec.md §4.3). There is deliberately no file-based
// config loader (see SPEC_FULL.md's Non-goals): callers construct this
// in-memory, typically from CLI flags.
type AnalyzerConfig struct {
	EnableDiagnostic          bool
	EnableConnectionRedirect  bool
	EnableSIBDowngrade        bool
	EnableNullCipherAS        bool
	EnableNullCipherNAS       bool
	EnableIncompleteSIB       bool
	EnableIMSIRequested       bool
	EnableImsiExposureRatio   bool

	SIBDowngrade    SIBDowngradeConfig
	IncompleteSIB   IncompleteSIBConfig
	ImsiExposure    ImsiExposureConfig
}

// DefaultAnalyzerConfig enables every built-in analyzer with its default
// tuning.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		EnableDiagnostic:         true,
		EnableConnectionRedirect: true,
		EnableSIBDowngrade:       true,
		EnableNullCipherAS:       true,
		EnableNullCipherNAS:      true,
		EnableIncompleteSIB:      true,
		EnableIMSIRequested:      true,
		EnableImsiExposureRatio:  true,

		SIBDowngrade:  DefaultSIBDowngradeConfig(),
		IncompleteSIB: DefaultIncompleteSIBConfig(),
		ImsiExposure:  DefaultImsiExposureConfig(),
	}
}

// BuildAnalyzers instantiates the ordered analyzer set this config selects.
// Order here is the order analyzer slots appear in every emitted Row, and
// must stay stable across a session (spec.md: "the harness must preserve
// selection order in rows so downstream NDJSON slots align across sessions
// built with the same config").
func (c AnalyzerConfig) BuildAnalyzers() []Analyzer {
	var analyzers []Analyzer
	if c.EnableDiagnostic {
		analyzers = append(analyzers, NewDiagnosticAnalyzer())
	}
	if c.EnableConnectionRedirect {
		analyzers = append(analyzers, NewConnectionRedirect2GAnalyzer())
	}
	if c.EnableSIBDowngrade {
		analyzers = append(analyzers, NewSIBDowngradeAnalyzer(c.SIBDowngrade))
	}
	if c.EnableNullCipherAS {
		analyzers = append(analyzers, NewNullCipherASAnalyzer())
	}
	if c.EnableNullCipherNAS {
		analyzers = append(analyzers, NewNullCipherNASAnalyzer())
	}
	if c.EnableIncompleteSIB {
		analyzers = append(analyzers, NewIncompleteSIBAnalyzer(c.IncompleteSIB))
	}
	if c.EnableIMSIRequested {
		analyzers = append(analyzers, NewIMSIRequestedAnalyzer())
	}
	if c.EnableImsiExposureRatio {
		analyzers = append(analyzers, NewImsiExposureRatioAnalyzer(c.ImsiExposure))
	}
	return analyzers
}

// Harness drives a fixed, ordered set of analyzers over every decoded
// element of every incoming container, producing one Row per container
// (spec.md §4.5).
type Harness struct {
	analyzers []Analyzer
	packetNum uint64
}

// NewHarness builds a harness over analyzers, in the given order. The order
// is preserved verbatim in every Row's Events slice.
func NewHarness(analyzers []Analyzer) *Harness {
	return &Harness{analyzers: analyzers}
}

// Analyzers returns the harness's ordered analyzer set, for building the
// NDJSON report header (name/description/version per analyzer).
func (h *Harness) Analyzers() []Analyzer { return h.analyzers }

// AnalyzeContainer runs the harness algorithm from spec.md §4.5 over one
// MessagesContainer: decode each log item, accumulate skip reasons, and let
// every analyzer see every successfully decoded element in order, with
// last-event-wins per analyzer slot.
func (h *Harness) AnalyzeContainer(container diag.MessagesContainer) Row {
	row := Row{
		Timestamp: container.Timestamp,
		Events:    make([]*Event, len(h.analyzers)),
	}

	for _, item := range container.Items {
		ie, present, skip := decode.Decode(item)
		if skip != nil {
			row.SkippedReasons = append(row.SkippedReasons, *skip)
		}
		if !present {
			h.packetNum++
			continue
		}

		for i, a := range h.analyzers {
			if event := a.Analyze(ie, h.packetNum); event != nil {
				row.Events[i] = event
			}
		}
		h.packetNum++
	}

	return row
}

// PacketNum returns the current value of the monotonic packet counter,
// mostly useful for tests asserting monotonicity across containers.
func (h *Harness) PacketNum() uint64 { return h.packetNum }
