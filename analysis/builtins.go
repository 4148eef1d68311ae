package analysis

import (
	"fmt"

	"github.com/BeigeBox/rayhunter/decode"
)

// DiagnosticAnalyzer is stateless: for every message the classifier
// recognizes, it emits an Informational event carrying the human
// description. Noisy by design -- it exists to explain why another
// analyzer fired, not to be actionable on its own.
type DiagnosticAnalyzer struct{}

func NewDiagnosticAnalyzer() *DiagnosticAnalyzer { return &DiagnosticAnalyzer{} }

func (a *DiagnosticAnalyzer) Name() string { return "Diagnostic" }
func (a *DiagnosticAnalyzer) Description() string {
	return "Catches any messages that may lead to IMSI exposure. Can be quite noisy. " +
		"Useful for understanding why another indicator fired, not as a standalone signal. " +
		"Based on Tucker et al., NDSS 2025."
}
func (a *DiagnosticAnalyzer) Version() uint32 { return 2 }

func (a *DiagnosticAnalyzer) Analyze(ie decode.InformationElement, _ uint64) *Event {
	c := Classify(ie)
	if c == nil {
		return nil
	}
	return &Event{
		Type:    Informational,
		Message: fmt.Sprintf("Diagnostic: %s (%s).", c.Description, c.Category),
	}
}

// ConnectionRedirect2GAnalyzer fires High when an RRC Connection Release
// redirects the UE to a GERAN (2G) carrier, the classic IMSI-catcher
// release-and-recapture-on-2G move.
type ConnectionRedirect2GAnalyzer struct{}

func NewConnectionRedirect2GAnalyzer() *ConnectionRedirect2GAnalyzer {
	return &ConnectionRedirect2GAnalyzer{}
}

func (a *ConnectionRedirect2GAnalyzer) Name() string { return "Connection redirect to 2G" }
func (a *ConnectionRedirect2GAnalyzer) Description() string {
	return "Fires when an RRC Connection Release redirects the UE to a GERAN (2G) carrier, " +
		"a common downgrade-and-recapture technique used by IMSI catchers."
}
func (a *ConnectionRedirect2GAnalyzer) Version() uint32 { return 1 }

func (a *ConnectionRedirect2GAnalyzer) Analyze(ie decode.InformationElement, _ uint64) *Event {
	if ie.Radio != decode.RadioLTE || ie.LTE == nil || ie.LTE.Channel != decode.LTEChannelDLDCCH {
		return nil
	}
	msg := ie.LTE.DLDCCH
	if msg == nil || msg.Type != decode.DLDCCHConnectionRelease || msg.ConnectionRelease == nil {
		return nil
	}
	rel := msg.ConnectionRelease
	if rel.RedirectedCarrierPresent && rel.RedirectedCarrierType == decode.CarrierGERAN {
		return &Event{
			Type:    High,
			Message: fmt.Sprintf("RRC Connection Release redirected UE to GERAN ARFCN %d", rel.RedirectedARFCN),
		}
	}
	return nil
}

// SIBDowngradeConfig tunes the SIB 6/7 downgrade analyzer's threshold.
type SIBDowngradeConfig struct {
	// PriorityThreshold is the minimum non-LTE reselection priority (0-7)
	// that counts as "unusually high" when it also exceeds the advertised
	// LTE priority. Default 5.
	PriorityThreshold uint8
}

// DefaultSIBDowngradeConfig matches spec.md §4.6's "threshold is a tunable".
func DefaultSIBDowngradeConfig() SIBDowngradeConfig {
	return SIBDowngradeConfig{PriorityThreshold: 5}
}

// SIBDowngradeAnalyzer fires High when a serving cell advertises SIB6
// (UTRAN) or SIB7 (GERAN) neighbor reselection priorities unusually high
// relative to its own LTE priority -- a network trying to steer UEs onto
// weaker RATs.
type SIBDowngradeAnalyzer struct {
	config SIBDowngradeConfig
}

func NewSIBDowngradeAnalyzer(config SIBDowngradeConfig) *SIBDowngradeAnalyzer {
	return &SIBDowngradeAnalyzer{config: config}
}

func (a *SIBDowngradeAnalyzer) Name() string { return "LTE SIB 6/7 downgrade" }
func (a *SIBDowngradeAnalyzer) Description() string {
	return "Fires when a serving cell advertises SIB6 (UTRAN) or SIB7 (GERAN) neighbor " +
		"reselection priorities unusually high relative to its own LTE priority."
}
func (a *SIBDowngradeAnalyzer) Version() uint32 { return 1 }

func (a *SIBDowngradeAnalyzer) Analyze(ie decode.InformationElement, _ uint64) *Event {
	if ie.Radio != decode.RadioLTE || ie.LTE == nil || ie.LTE.Channel != decode.LTEChannelBCCHDLSCH {
		return nil
	}
	msg := ie.LTE.BCCHDLSCH
	if msg == nil || msg.Kind != decode.BCCHDLSCHSystemInformation || msg.SystemInformation == nil {
		return nil
	}
	si := msg.SystemInformation
	threshold := a.config.PriorityThreshold

	if si.SIB6Present && si.SIB6UTRANPriority >= threshold && si.SIB6UTRANPriority > si.EUTRANPriority {
		return &Event{
			Type: High,
			Message: fmt.Sprintf("SIB6 UTRAN reselection priority %d exceeds LTE priority %d (threshold %d)",
				si.SIB6UTRANPriority, si.EUTRANPriority, threshold),
		}
	}
	if si.SIB7Present && si.SIB7GERANPriority >= threshold && si.SIB7GERANPriority > si.EUTRANPriority {
		return &Event{
			Type: High,
			Message: fmt.Sprintf("SIB7 GERAN reselection priority %d exceeds LTE priority %d (threshold %d)",
				si.SIB7GERANPriority, si.EUTRANPriority, threshold),
		}
	}
	return nil
}

// NullCipherASAnalyzer fires High when an RRC SecurityModeCommand selects
// eea0 (null ciphering) at the AS layer.
type NullCipherASAnalyzer struct{}

func NewNullCipherASAnalyzer() *NullCipherASAnalyzer { return &NullCipherASAnalyzer{} }

func (a *NullCipherASAnalyzer) Name() string        { return "Null cipher (AS)" }
func (a *NullCipherASAnalyzer) Description() string {
	return "Fires when an RRC Security Mode Command selects eea0 (null ciphering)."
}
func (a *NullCipherASAnalyzer) Version() uint32 { return 1 }

func (a *NullCipherASAnalyzer) Analyze(ie decode.InformationElement, _ uint64) *Event {
	if ie.Radio != decode.RadioLTE || ie.LTE == nil || ie.LTE.Channel != decode.LTEChannelDLDCCH {
		return nil
	}
	msg := ie.LTE.DLDCCH
	if msg == nil || msg.Type != decode.DLDCCHSecurityModeCommand || msg.SecurityModeCommand == nil {
		return nil
	}
	if msg.SecurityModeCommand.CipheringAlgorithm == 0 {
		return &Event{Type: High, Message: "RRC Security Mode Command selected eea0 (null AS ciphering)"}
	}
	return nil
}

// NullCipherNASAnalyzer fires High when a NAS Security Mode Command selects
// eea0/eia0 even though the UE had offered a non-null option, meaning the
// network chose to downgrade rather than being forced to.
type NullCipherNASAnalyzer struct{}

func NewNullCipherNASAnalyzer() *NullCipherNASAnalyzer { return &NullCipherNASAnalyzer{} }

func (a *NullCipherNASAnalyzer) Name() string { return "Null cipher (NAS)" }
func (a *NullCipherNASAnalyzer) Description() string {
	return "Fires when a NAS Security Mode Command selects eea0/eia0 (null ciphering/integrity) " +
		"while the UE's security capabilities offered a non-null option."
}
func (a *NullCipherNASAnalyzer) Version() uint32 { return 1 }

func (a *NullCipherNASAnalyzer) Analyze(ie decode.InformationElement, _ uint64) *Event {
	if ie.Radio != decode.RadioLTE || ie.LTE == nil || ie.LTE.Channel != decode.LTEChannelNAS {
		return nil
	}
	nas := ie.LTE.NAS
	if nas == nil || nas.Type != decode.EMMSecurityModeCommand || nas.SecurityAlgorithms == nil {
		return nil
	}
	sel := nas.SecurityAlgorithms
	offeredNonNullEEA := sel.OfferedEEABitmap&^1 != 0
	offeredNonNullEIA := sel.OfferedEIABitmap&^1 != 0

	if sel.SelectedEEA == 0 && offeredNonNullEEA {
		return &Event{Type: High, Message: "NAS Security Mode Command selected eea0 despite non-null algorithms on offer"}
	}
	if sel.SelectedEIA == 0 && offeredNonNullEIA {
		return &Event{Type: High, Message: "NAS Security Mode Command selected eia0 despite non-null algorithms on offer"}
	}
	return nil
}

// IMSIRequestedAnalyzer fires Medium on an EMM Identity Request asking for
// the IMSI specifically (as opposed to IMEI/IMEISV/TMSI).
type IMSIRequestedAnalyzer struct{}

func NewIMSIRequestedAnalyzer() *IMSIRequestedAnalyzer { return &IMSIRequestedAnalyzer{} }

func (a *IMSIRequestedAnalyzer) Name() string        { return "IMSI requested" }
func (a *IMSIRequestedAnalyzer) Description() string {
	return "Fires on an EMM Identity Request asking specifically for the IMSI."
}
func (a *IMSIRequestedAnalyzer) Version() uint32 { return 1 }

func (a *IMSIRequestedAnalyzer) Analyze(ie decode.InformationElement, _ uint64) *Event {
	if ie.Radio != decode.RadioLTE || ie.LTE == nil || ie.LTE.Channel != decode.LTEChannelNAS {
		return nil
	}
	nas := ie.LTE.NAS
	if nas == nil || nas.Type != decode.EMMIdentityRequest {
		return nil
	}
	if nas.IdentityRequested == decode.IdentityIMSI {
		return &Event{Type: Medium, Message: "EMM Identity Request asked for IMSI"}
	}
	return nil
}
