package decode

import (
	"errors"
)

// EMMMessageType enumerates the handful of LTE NAS EMM messages this
// decoder recognizes. Everything else decodes successfully but carries
// EMMUnknown, matching spec.md §4.4's directive that unrecognized-but-known
// message types are not decode errors.
type EMMMessageType int

const (
	EMMUnknown EMMMessageType = iota
	EMMIdentityRequest
	EMMAttachReject
	EMMTAUReject
	EMMServiceReject
	EMMAuthenticationReject
	EMMDetachRequestMT
	EMMSecurityModeCommand
)

// IdentityType is the NAS "identity type 2" IE value (3GPP TS 24.301
// §9.9.3.3); only IMSI matters to the IMSI-exposure classifier.
type IdentityType uint8

const (
	IdentityIMSI   IdentityType = 1
	IdentityIMEI   IdentityType = 2
	IdentityIMEISV IdentityType = 3
	IdentityTMSI   IdentityType = 4
)

// EMMCause is the EMM cause IE value (3GPP TS 24.301 Annex A), the subset
// the classifier's decision table inspects.
type EMMCause uint8

const (
	CauseIllegalUE                                    EMMCause = 3
	CauseIllegalME                                     EMMCause = 6
	CauseEPSServicesNotAllowed                         EMMCause = 7
	CauseEPSServicesAndNonEPSServicesNotAllowed        EMMCause = 8
	CauseUEIdentityCannotBeDerivedByTheNetwork         EMMCause = 9
	CausePLMNNotAllowed                                EMMCause = 11
	CauseTrackingAreaNotAllowed                         EMMCause = 12
	CauseRoamingNotAllowedInThisTrackingArea            EMMCause = 13
	CauseEPSServicesNotAllowedInThisPLMN               EMMCause = 14
	CauseNoSuitableCellsInTrackingArea                  EMMCause = 15
	CauseRequestedServiceOptionNotAuthorizedInThisPLMN EMMCause = 35
)

// DetachType is the "type of detach" IE sent by the network in a Detach
// Request (3GPP TS 24.301 §9.9.3.7, network-to-UE direction).
type DetachType uint8

const (
	DetachReAttachRequired    DetachType = 1
	DetachReAttachNotRequired DetachType = 2
	DetachIMSIDetach         DetachType = 3
)

// NASSecurityAlgorithms carries the ciphering/integrity algorithms a
// Security Mode Command selected, plus the bitmap of algorithms the UE had
// offered (so the null-cipher analyzer can tell "network forced eea0" apart
// from "eea0 was the only thing on offer").
type NASSecurityAlgorithms struct {
	SelectedEEA      uint8
	SelectedEIA      uint8
	OfferedEEABitmap uint8
	OfferedEIABitmap uint8
}

// NASMessage is the decoded body of a plain EMM NAS message. decodeNAS
// accepts only the EMM protocol discriminator, so an ESM message (log code
// LogCodeLTENASESMPlain) yields a decode error rather than a NASMessage.
type NASMessage struct {
	Type               EMMMessageType
	IdentityRequested  IdentityType
	Cause              EMMCause
	Detach             DetachType
	SecurityAlgorithms *NASSecurityAlgorithms
}

const (
	nasProtocolDiscriminatorEMM = 0x07

	emmMsgIdentityRequest       = 0x55
	emmMsgAttachReject          = 0x44
	emmMsgTAUReject             = 0x4B
	emmMsgServiceReject         = 0x4E
	emmMsgAuthenticationReject  = 0x54
	emmMsgDetachRequestNetwork  = 0x46
	emmMsgSecurityModeCommand   = 0x5D
)

var errNASTooShort = errors.New("decode: nas message shorter than header")
var errNASWrongDiscriminator = errors.New("decode: nas protocol discriminator is not EMM")

// decodeNAS parses the hand-rolled byte layout this module invents for
// plain EMM messages: byte 0 protocol discriminator, byte 1 security header
// type (ignored -- Stage A only ever hands us "plain", unciphered items),
// byte 2 EMM message type, remaining bytes message-specific.
func decodeNAS(pdu []byte) (*NASMessage, error) {
	if len(pdu) < 3 {
		return nil, errNASTooShort
	}
	if pdu[0] != nasProtocolDiscriminatorEMM {
		return nil, errNASWrongDiscriminator
	}

	msg := &NASMessage{}
	switch pdu[2] {
	case emmMsgIdentityRequest:
		msg.Type = EMMIdentityRequest
		if len(pdu) < 4 {
			return nil, errNASTooShort
		}
		msg.IdentityRequested = IdentityType(pdu[3] & 0x0F)
	case emmMsgAttachReject:
		msg.Type = EMMAttachReject
		if len(pdu) < 4 {
			return nil, errNASTooShort
		}
		msg.Cause = EMMCause(pdu[3])
	case emmMsgTAUReject:
		msg.Type = EMMTAUReject
		if len(pdu) < 4 {
			return nil, errNASTooShort
		}
		msg.Cause = EMMCause(pdu[3])
	case emmMsgServiceReject:
		msg.Type = EMMServiceReject
		if len(pdu) < 4 {
			return nil, errNASTooShort
		}
		msg.Cause = EMMCause(pdu[3])
	case emmMsgAuthenticationReject:
		msg.Type = EMMAuthenticationReject
	case emmMsgDetachRequestNetwork:
		msg.Type = EMMDetachRequestMT
		if len(pdu) < 4 {
			return nil, errNASTooShort
		}
		msg.Detach = DetachType(pdu[3] & 0x0F)
		if len(pdu) >= 5 {
			msg.Cause = EMMCause(pdu[4])
		}
	case emmMsgSecurityModeCommand:
		msg.Type = EMMSecurityModeCommand
		if len(pdu) < 6 {
			return nil, errNASTooShort
		}
		msg.SecurityAlgorithms = &NASSecurityAlgorithms{
			SelectedEEA:      (pdu[3] >> 4) & 0x0F,
			SelectedEIA:      pdu[3] & 0x0F,
			OfferedEEABitmap: pdu[4],
			OfferedEIABitmap: pdu[5],
		}
	default:
		msg.Type = EMMUnknown
	}
	return msg, nil
}

// EncodeNASIdentityRequest and friends below are the inverse encoders used
// by tests and replay fixtures; production code never calls them.

func EncodeNASIdentityRequest(idType IdentityType) []byte {
	return []byte{nasProtocolDiscriminatorEMM, 0, emmMsgIdentityRequest, byte(idType)}
}

func EncodeNASReject(msgType byte, cause EMMCause) []byte {
	return []byte{nasProtocolDiscriminatorEMM, 0, msgType, byte(cause)}
}

func EncodeNASAuthenticationReject() []byte {
	return []byte{nasProtocolDiscriminatorEMM, 0, emmMsgAuthenticationReject}
}

func EncodeNASDetachRequestMT(detach DetachType, cause EMMCause) []byte {
	return []byte{nasProtocolDiscriminatorEMM, 0, emmMsgDetachRequestNetwork, byte(detach), byte(cause)}
}

func EncodeNASSecurityModeCommand(sel NASSecurityAlgorithms) []byte {
	return []byte{
		nasProtocolDiscriminatorEMM, 0, emmMsgSecurityModeCommand,
		(sel.SelectedEEA << 4) | (sel.SelectedEIA & 0x0F),
		sel.OfferedEEABitmap,
		sel.OfferedEIABitmap,
	}
}

// EMM message-type byte constants exported for the reject-message encoders
// above, named to match the unexported table in decodeNAS.
const (
	EMMMsgByteAttachReject  = emmMsgAttachReject
	EMMMsgByteTAUReject     = emmMsgTAUReject
	EMMMsgByteServiceReject = emmMsgServiceReject
)
