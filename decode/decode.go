package decode

import (
	"fmt"

	"github.com/BeigeBox/rayhunter/diag"
	"github.com/BeigeBox/rayhunter/gsmtap"
)

// SkippedReason explains why a log item produced no InformationElement. It
// is attached to a Row's skipped list (package analysis), not treated as a
// hard pipeline error.
type SkippedReason struct {
	Reason  string  `json:"reason"`
	LogCode *uint16 `json:"log_code,omitempty"`
	Detail  string  `json:"detail,omitempty"`
}

func decodeErrorReason(code diag.LogCode, detail string) *SkippedReason {
	c := uint16(code)
	return &SkippedReason{Reason: "decode_error", LogCode: &c, Detail: detail}
}

// Decode turns one DIAG log item into an InformationElement. present is
// false with a nil skip reason for log codes outside diag.KnownLogCodes
// (the item is still durably written to the QMDL capture by the transport,
// it simply contributes nothing to analysis, per spec.md §4.4). present is
// false with a non-nil skip reason when the code is known but the payload
// fails to parse. Recovered panics are folded into the same skip path.
func Decode(item diag.LogItem) (ie InformationElement, present bool, skip *SkippedReason) {
	if !diag.IsKnown(item.LogCode) {
		return InformationElement{}, false, nil
	}

	element, err := safeDecode(func() (InformationElement, error) {
		return decodeKnown(item)
	})
	if err != nil {
		return InformationElement{}, false, decodeErrorReason(item.LogCode, err.Error())
	}
	return element, true, nil
}

func decodeKnown(item diag.LogItem) (InformationElement, error) {
	record, pdu, err := gsmtap.FromLogItem(item)
	if err != nil {
		return InformationElement{}, err
	}

	switch record.Radio {
	case gsmtap.RadioGSM:
		return InformationElement{Radio: RadioGSM}, nil
	case gsmtap.RadioUMTS:
		return InformationElement{Radio: RadioUMTS}, nil
	case gsmtap.RadioFiveG:
		return InformationElement{Radio: RadioFiveG}, nil
	case gsmtap.RadioLTE:
		return decodeLTE(record, pdu)
	default:
		return InformationElement{}, fmt.Errorf("decode: unhandled radio type %v", record.Radio)
	}
}

func decodeLTE(record gsmtap.Record, pdu []byte) (InformationElement, error) {
	channel := lteChannelFromGSMTAP(record.Channel)
	msg := &LTEMessage{Channel: channel}

	switch channel {
	case LTEChannelNAS:
		nas, err := decodeNAS(pdu)
		if err != nil {
			return InformationElement{}, err
		}
		msg.NAS = nas
	case LTEChannelDLDCCH:
		dldcch, err := decodeDLDCCH(pdu)
		if err != nil {
			return InformationElement{}, err
		}
		msg.DLDCCH = dldcch
	case LTEChannelPCCH:
		pcch, err := decodePCCH(pdu)
		if err != nil {
			return InformationElement{}, err
		}
		msg.PCCH = pcch
	case LTEChannelBCCHDLSCH:
		sib, err := decodeBCCHDLSCH(pdu)
		if err != nil {
			return InformationElement{}, err
		}
		msg.BCCHDLSCH = sib
	case LTEChannelBCCHBCH:
		msg.BCCHBCH = &BCCHBCHMessage{}
	case LTEChannelULDCCH:
		msg.ULDCCH = &ULDCCHMessage{}
	case LTEChannelMCCH:
		msg.MCCH = &MCCHMessage{}
	default:
		return InformationElement{}, fmt.Errorf("decode: unrecognized lte channel %d", record.Channel)
	}

	return InformationElement{Radio: RadioLTE, LTE: msg}, nil
}
