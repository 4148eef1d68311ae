// Package decode implements Stage B of the protocol decoder (spec.md §4.4):
// turning the raw PDU bytes Stage A (package gsmtap) extracted into a typed
// InformationElement. LTE RRC and LTE NAS get real (if deliberately
// small-subset) decoders; GSM, UMTS and 5G NR are typed stubs so the
// analyzer harness stays total over every radio the diag transport can
// report, without needing analyzer changes the day those decoders grow up.
//
// Every decode entry point is fail-closed: malformed input becomes a
// SkippedReason, never a panic or a zero-value element mistaken for a real
// one. See safe.go for the recover boundary.
package decode

import "github.com/BeigeBox/rayhunter/gsmtap"

// RadioKind mirrors gsmtap.RadioType at the InformationElement level.
type RadioKind int

const (
	RadioUnknown RadioKind = iota
	RadioGSM
	RadioUMTS
	RadioLTE
	RadioFiveG
)

// LTEChannel identifies which LTE RRC/NAS channel an LTEMessage came from.
type LTEChannel int

const (
	LTEChannelUnknown LTEChannel = iota
	LTEChannelNAS
	LTEChannelBCCHBCH
	LTEChannelBCCHDLSCH
	LTEChannelPCCH
	LTEChannelMCCH
	LTEChannelDLDCCH
	LTEChannelULDCCH
)

func lteChannelFromGSMTAP(ch gsmtap.ChannelType) LTEChannel {
	switch ch {
	case gsmtap.ChannelNAS:
		return LTEChannelNAS
	case gsmtap.ChannelBCCHBCH:
		return LTEChannelBCCHBCH
	case gsmtap.ChannelBCCHDLSCH:
		return LTEChannelBCCHDLSCH
	case gsmtap.ChannelPCCH:
		return LTEChannelPCCH
	case gsmtap.ChannelMCCH:
		return LTEChannelMCCH
	case gsmtap.ChannelDLDCCH:
		return LTEChannelDLDCCH
	case gsmtap.ChannelULDCCH:
		return LTEChannelULDCCH
	default:
		return LTEChannelUnknown
	}
}

// InformationElement is the tagged result of Stage B decoding. LTE is
// populated only when Radio is RadioLTE; GSM, UMTS and 5G NR elements are
// bare stubs that carry no per-radio payload.
type InformationElement struct {
	Radio RadioKind
	LTE   *LTEMessage
}

// IsCountable reports whether this element counts toward the sliding-window
// ratio analyzer's sample size (spec.md's is_countable_message predicate:
// true only for LTE messages, including stubs for channels this decoder
// does not yet parse in detail).
func (ie InformationElement) IsCountable() bool {
	return ie.Radio == RadioLTE && ie.LTE != nil
}

// LTEMessage holds the decoded contents of exactly one LTE channel type.
type LTEMessage struct {
	Channel   LTEChannel
	NAS       *NASMessage
	DLDCCH    *DLDCCHMessage
	ULDCCH    *ULDCCHMessage
	BCCHBCH   *BCCHBCHMessage
	BCCHDLSCH *BCCHDLSCHMessage
	PCCH      *PCCHMessage
	MCCH      *MCCHMessage
}

// ULDCCHMessage, BCCHBCHMessage and MCCHMessage are reserved stubs: the
// uplink DCCH, MIB and MCCH channels are not parsed beyond channel
// classification, matching spec.md §4.4's "Stubs" carve-out.
type ULDCCHMessage struct{}
type BCCHBCHMessage struct{}
type MCCHMessage struct{}
