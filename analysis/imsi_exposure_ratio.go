package analysis

import (
	"fmt"

	"github.com/BeigeBox/rayhunter/decode"
)

// ImsiExposureConfig tunes the ratio analyzer, ported field-for-field from
// the Rust ImsiExposureConfig this module is based on (spec.md §4.7).
type ImsiExposureConfig struct {
	// WindowSize is the number of messages in the sliding window. Larger
	// windows resist transient spikes but detect short attacks more
	// slowly. Default 200 (roughly 15-30 minutes of typical LTE traffic).
	WindowSize int
	// BaselineRatio is the expected fraction of IMSI-exposing messages in
	// normal operation; Tucker et al. measured a median below 3%. Default
	// 0.03. Not used directly by the alert thresholds below, but surfaced
	// for operators tuning medium/high against their own baseline.
	BaselineRatio float64
	// MediumThreshold is the ratio at or above which a Medium event fires.
	// Default 0.10.
	MediumThreshold float64
	// HighThreshold is the ratio at or above which a High event fires.
	// Default 0.25.
	HighThreshold float64
	// MinSampleSize is the minimum window occupancy before alerting, to
	// avoid a single exposure in a near-empty window looking catastrophic.
	// Default 50.
	MinSampleSize int
}

// DefaultImsiExposureConfig mirrors the Rust Default impl's values.
func DefaultImsiExposureConfig() ImsiExposureConfig {
	return ImsiExposureConfig{
		WindowSize:      200,
		BaselineRatio:   0.03,
		MediumThreshold: 0.10,
		HighThreshold:   0.25,
		MinSampleSize:   50,
	}
}

// ImsiExposureRatioAnalyzer implements the core Tucker et al. (NDSS 2025)
// methodology: rather than alerting on any single IMSI-exposing message, it
// tracks the ratio of exposing to total messages over a sliding window and
// alerts only when that ratio is both elevated and a fresh exposure was
// just observed.
type ImsiExposureRatioAnalyzer struct {
	config             ImsiExposureConfig
	window             *SlidingWindowRatio
	lastClassification *ImsiExposureClassification
}

func NewImsiExposureRatioAnalyzer(config ImsiExposureConfig) *ImsiExposureRatioAnalyzer {
	return &ImsiExposureRatioAnalyzer{
		config: config,
		window: NewSlidingWindowRatio(config.WindowSize),
	}
}

func (a *ImsiExposureRatioAnalyzer) Name() string { return "IMSI Exposure Ratio" }
func (a *ImsiExposureRatioAnalyzer) Description() string {
	return "Tracks the ratio of IMSI-exposing messages (identity requests, reject messages, " +
		"paging with IMSI, 2G redirects, etc.) to total messages over a sliding window. " +
		"Normal LTE networks produce <3% IMSI-exposing messages; an elevated ratio indicates " +
		"a likely IMSI catcher. Based on Tucker et al., NDSS 2025."
}
func (a *ImsiExposureRatioAnalyzer) Version() uint32 { return 1 }

func (a *ImsiExposureRatioAnalyzer) Analyze(ie decode.InformationElement, _ uint64) *Event {
	if !IsCountableMessage(ie) {
		return nil
	}

	classification := Classify(ie)
	isExposing := classification != nil
	a.lastClassification = classification

	a.window.Push(isExposing)

	if a.window.Count() < a.config.MinSampleSize {
		return nil
	}
	ratio, ok := a.window.Ratio()
	if !ok {
		return nil
	}

	// Only emit when the message just observed was itself exposing, and
	// the ratio clears a threshold -- this avoids repeated alerts firing
	// on every subsequent non-exposing message while the ratio stays high.
	if !isExposing {
		return nil
	}

	desc := "unknown"
	if a.lastClassification != nil {
		desc = a.lastClassification.Description
	}

	if ratio >= a.config.HighThreshold {
		return &Event{
			Type: High,
			Message: fmt.Sprintf(
				"IMSI exposure ratio %.1f%% (%d/%d messages) exceeds high threshold %.0f%%. Latest: %s",
				ratio*100, a.window.PositiveCount(), a.window.Count(), a.config.HighThreshold*100, desc,
			),
		}
	}
	if ratio >= a.config.MediumThreshold {
		return &Event{
			Type: Medium,
			Message: fmt.Sprintf(
				"IMSI exposure ratio %.1f%% (%d/%d messages) exceeds medium threshold %.0f%%. Latest: %s",
				ratio*100, a.window.PositiveCount(), a.window.Count(), a.config.MediumThreshold*100, desc,
			),
		}
	}
	return nil
}
