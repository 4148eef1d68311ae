// Package analysis implements the analyzer harness (spec.md §4.5), the
// built-in analyzers (§4.6), and the IMSI-exposure classifier and
// sliding-window ratio analyzer (§4.7) that consume decode.InformationElement
// values produced by package decode.
package analysis

import (
	"fmt"

	"github.com/BeigeBox/rayhunter/decode"
)

// ImsiExposureCategory enumerates the taxonomy of IMSI-exposing messages
// from Tucker et al. (NDSS 2025).
type ImsiExposureCategory int

const (
	DirectIdentityRequest ImsiExposureCategory = iota
	AttachReject
	TauReject
	ServiceReject
	AuthenticationReject
	DetachRequest
	ConnectionRedirect
	PagingWithImsi
)

func (c ImsiExposureCategory) String() string {
	switch c {
	case DirectIdentityRequest:
		return "DirectIdentityRequest"
	case AttachReject:
		return "AttachReject"
	case TauReject:
		return "TauReject"
	case ServiceReject:
		return "ServiceReject"
	case AuthenticationReject:
		return "AuthenticationReject"
	case DetachRequest:
		return "DetachRequest"
	case ConnectionRedirect:
		return "ConnectionRedirect"
	case PagingWithImsi:
		return "PagingWithImsi"
	default:
		return "Unknown"
	}
}

// ImsiExposureClassification is the result of classifying a message for
// IMSI exposure potential.
type ImsiExposureClassification struct {
	Category    ImsiExposureCategory
	Description string
}

// IsCountableMessage reports whether ie is relevant for the exposure-ratio
// denominator: every successfully decoded LTE message (spec.md §4.7), GSM,
// UMTS and 5G-NR stubs excluded.
func IsCountableMessage(ie decode.InformationElement) bool {
	return ie.IsCountable()
}

// Classify returns the IMSI exposure classification for ie, or nil if ie is
// benign or not yet relevant (UMTS/GSM/5G are stubs and never classify).
func Classify(ie decode.InformationElement) *ImsiExposureClassification {
	if ie.Radio != decode.RadioLTE || ie.LTE == nil {
		return nil
	}
	switch ie.LTE.Channel {
	case decode.LTEChannelNAS:
		return classifyNAS(ie.LTE.NAS)
	case decode.LTEChannelDLDCCH:
		return classifyDLDCCH(ie.LTE.DLDCCH)
	case decode.LTEChannelPCCH:
		return classifyPCCH(ie.LTE.PCCH)
	default:
		return nil
	}
}

var attachRejectExposingCauses = map[decode.EMMCause]bool{
	decode.CauseIllegalUE:                                    true,
	decode.CauseIllegalME:                                    true,
	decode.CauseEPSServicesNotAllowed:                        true,
	decode.CauseEPSServicesAndNonEPSServicesNotAllowed:       true,
	decode.CausePLMNNotAllowed:                               true,
	decode.CauseTrackingAreaNotAllowed:                       true,
	decode.CauseRoamingNotAllowedInThisTrackingArea:          true,
	decode.CauseEPSServicesNotAllowedInThisPLMN:              true,
	decode.CauseNoSuitableCellsInTrackingArea:                true,
	decode.CauseRequestedServiceOptionNotAuthorizedInThisPLMN: true,
}

var tauRejectExposingCauses = map[decode.EMMCause]bool{
	decode.CauseIllegalUE:                                    true,
	decode.CauseIllegalME:                                    true,
	decode.CauseEPSServicesNotAllowed:                        true,
	decode.CauseEPSServicesAndNonEPSServicesNotAllowed:       true,
	decode.CauseTrackingAreaNotAllowed:                       true,
	decode.CauseEPSServicesNotAllowedInThisPLMN:              true,
	decode.CauseRequestedServiceOptionNotAuthorizedInThisPLMN: true,
}

var serviceRejectExposingCauses = map[decode.EMMCause]bool{
	decode.CauseIllegalUE:                                    true,
	decode.CauseIllegalME:                                    true,
	decode.CauseEPSServicesNotAllowed:                        true,
	decode.CauseUEIdentityCannotBeDerivedByTheNetwork:         true,
	decode.CauseTrackingAreaNotAllowed:                       true,
	decode.CauseEPSServicesNotAllowedInThisPLMN:              true,
	decode.CauseRequestedServiceOptionNotAuthorizedInThisPLMN: true,
}

func classifyNAS(nas *decode.NASMessage) *ImsiExposureClassification {
	if nas == nil {
		return nil
	}
	switch nas.Type {
	case decode.EMMIdentityRequest:
		return &ImsiExposureClassification{
			Category:    DirectIdentityRequest,
			Description: fmt.Sprintf("EMM Identity Request (%s)", identityTypeName(nas.IdentityRequested)),
		}
	case decode.EMMAttachReject:
		if attachRejectExposingCauses[nas.Cause] {
			return &ImsiExposureClassification{
				Category:    AttachReject,
				Description: fmt.Sprintf("EMM Attach Reject (cause %d)", nas.Cause),
			}
		}
	case decode.EMMTAUReject:
		if tauRejectExposingCauses[nas.Cause] {
			return &ImsiExposureClassification{
				Category:    TauReject,
				Description: fmt.Sprintf("EMM TAU Reject (cause %d)", nas.Cause),
			}
		}
	case decode.EMMServiceReject:
		if serviceRejectExposingCauses[nas.Cause] {
			return &ImsiExposureClassification{
				Category:    ServiceReject,
				Description: fmt.Sprintf("EMM Service Reject (cause %d)", nas.Cause),
			}
		}
	case decode.EMMAuthenticationReject:
		return &ImsiExposureClassification{
			Category:    AuthenticationReject,
			Description: "EMM Authentication Reject",
		}
	case decode.EMMDetachRequestMT:
		if nas.Detach != decode.DetachIMSIDetach {
			return &ImsiExposureClassification{
				Category:    DetachRequest,
				Description: fmt.Sprintf("EMM Detach Request (type %d, cause %d)", nas.Detach, nas.Cause),
			}
		}
	}
	return nil
}

func identityTypeName(t decode.IdentityType) string {
	switch t {
	case decode.IdentityIMSI:
		return "IMSI"
	case decode.IdentityIMEI:
		return "IMEI"
	case decode.IdentityIMEISV:
		return "IMEISV"
	case decode.IdentityTMSI:
		return "TMSI"
	default:
		return "unknown"
	}
}

func classifyDLDCCH(msg *decode.DLDCCHMessage) *ImsiExposureClassification {
	if msg == nil || msg.Type != decode.DLDCCHConnectionRelease || msg.ConnectionRelease == nil {
		return nil
	}
	rel := msg.ConnectionRelease
	if rel.RedirectedCarrierPresent && rel.RedirectedCarrierType == decode.CarrierGERAN {
		return &ImsiExposureClassification{
			Category:    ConnectionRedirect,
			Description: "RRC Connection Release with redirect to 2G (GERAN)",
		}
	}
	return nil
}

func classifyPCCH(msg *decode.PCCHMessage) *ImsiExposureClassification {
	if msg == nil {
		return nil
	}
	for _, rec := range msg.Records {
		if rec.UEIdentityType == decode.PagingIdentityIMSI {
			return &ImsiExposureClassification{
				Category:    PagingWithImsi,
				Description: "Paging with IMSI instead of S-TMSI",
			}
		}
	}
	return nil
}
