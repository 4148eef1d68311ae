package analysis

import (
	"fmt"

	"github.com/BeigeBox/rayhunter/decode"
)

// IncompleteSIBConfig tunes how many messages the incomplete-SIB analyzer
// waits for a scheduled SIB before flagging it as missing. The harness
// feeds a monotonic packet_num rather than a radio frame number, so
// "frames" here means "subsequent log items seen" (packet_num advances for
// every log item, including ones that decode to nothing or to a non-LTE
// radio), a reasonable proxy
// given the DIAG transport does not expose SFN outside the RRC PDU itself.
type IncompleteSIBConfig struct {
	WaitMessages uint64
}

// DefaultIncompleteSIBConfig matches spec.md §4.6's "within N frames".
func DefaultIncompleteSIBConfig() IncompleteSIBConfig {
	return IncompleteSIBConfig{WaitMessages: 200}
}

// IncompleteSIBAnalyzer fires Medium when SIB1 schedules SIB6 or SIB7 but
// the corresponding SystemInformation message carrying it never shows up
// within the configured window. Stateful: tracks pending deadlines keyed by
// SIB type across calls within one session.
type IncompleteSIBAnalyzer struct {
	config  IncompleteSIBConfig
	pending map[int]uint64 // sibType (6 or 7) -> packet_num deadline
}

func NewIncompleteSIBAnalyzer(config IncompleteSIBConfig) *IncompleteSIBAnalyzer {
	return &IncompleteSIBAnalyzer{config: config, pending: make(map[int]uint64)}
}

func (a *IncompleteSIBAnalyzer) Name() string { return "Incomplete SIB" }
func (a *IncompleteSIBAnalyzer) Description() string {
	return "Fires when SIB1 schedules SIB6 or SIB7 but the corresponding System Information " +
		"message never arrives within the configured window."
}
func (a *IncompleteSIBAnalyzer) Version() uint32 { return 1 }

func (a *IncompleteSIBAnalyzer) Analyze(ie decode.InformationElement, packetNum uint64) *Event {
	if ie.Radio != decode.RadioLTE || ie.LTE == nil || ie.LTE.Channel != decode.LTEChannelBCCHDLSCH {
		return a.checkExpired(packetNum)
	}
	msg := ie.LTE.BCCHDLSCH
	if msg == nil {
		return a.checkExpired(packetNum)
	}

	switch msg.Kind {
	case decode.BCCHDLSCHSIB1:
		if msg.SIB1.ScheduledSIB6 {
			if _, already := a.pending[6]; !already {
				a.pending[6] = packetNum + a.config.WaitMessages
			}
		}
		if msg.SIB1.ScheduledSIB7 {
			if _, already := a.pending[7]; !already {
				a.pending[7] = packetNum + a.config.WaitMessages
			}
		}
	case decode.BCCHDLSCHSystemInformation:
		if msg.SystemInformation.SIB6Present {
			delete(a.pending, 6)
		}
		if msg.SystemInformation.SIB7Present {
			delete(a.pending, 7)
		}
	}

	return a.checkExpired(packetNum)
}

func (a *IncompleteSIBAnalyzer) checkExpired(packetNum uint64) *Event {
	// Fixed iteration order keeps output deterministic across runs (map
	// iteration order is not), satisfying the replay-determinism property.
	for _, sibType := range [2]int{6, 7} {
		deadline, ok := a.pending[sibType]
		if !ok || packetNum <= deadline {
			continue
		}
		delete(a.pending, sibType)
		return &Event{
			Type:    Medium,
			Message: fmt.Sprintf("SIB%d scheduled by SIB1 but not delivered within %d messages", sibType, a.config.WaitMessages),
		}
	}
	return nil
}
