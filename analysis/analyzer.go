package analysis

import "github.com/BeigeBox/rayhunter/decode"

// EventType is event severity, ordered Informational < Low < Medium < High
// (spec.md §4.3) so a harness can fold a container's events to a max.
type EventType int

const (
	Informational EventType = iota
	Low
	Medium
	High
)

func (t EventType) String() string {
	switch t {
	case Informational:
		return "Informational"
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Unknown"
	}
}

// Event is one analyzer's output for one information element.
type Event struct {
	Type    EventType
	Message string
}

// Analyzer is implemented by every built-in and (eventually) pluggable
// detector. Analyzers may be stateful but an instance's state lives only
// for the duration of one recording session (spec.md §4.3): constructed at
// session start, discarded at session end, never persisted.
type Analyzer interface {
	Name() string
	Description() string
	Version() uint32
	Analyze(ie decode.InformationElement, packetNum uint64) *Event
}
