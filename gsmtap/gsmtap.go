// Package gsmtap implements Stage A of the protocol decoder (spec.md
// §4.4): mapping a DIAG log item to the normalized gsmtap framing record
// (radio-type, channel-type, subtype, arfcn, frame-number) plus the raw
// embedded RRC/NAS PDU bytes that Stage B (package decode) parses.
package gsmtap

import (
	"encoding/binary"
	"errors"

	"github.com/BeigeBox/rayhunter/diag"
)

// RadioType identifies which air interface a record came from.
type RadioType int

const (
	RadioUnknown RadioType = iota
	RadioGSM
	RadioUMTS
	RadioLTE
	RadioFiveG
)

func (r RadioType) String() string {
	switch r {
	case RadioGSM:
		return "GSM"
	case RadioUMTS:
		return "UMTS"
	case RadioLTE:
		return "LTE"
	case RadioFiveG:
		return "5G"
	default:
		return "unknown"
	}
}

// ChannelType identifies the logical channel a PDU was carried on. The LTE
// values correspond 1:1 to the InformationElement variants in package
// decode; GSM/UMTS/5G records carry ChannelUnknown since those decoders are
// stubs (spec.md §4.4 "Stubs").
type ChannelType int

const (
	ChannelUnknown ChannelType = iota
	ChannelNAS
	ChannelBCCHBCH
	ChannelBCCHDLSCH
	ChannelPCCH
	ChannelMCCH
	ChannelDLDCCH
	ChannelULDCCH
)

// Record is the normalized gsmtap-style framing layer shared by pcap
// consumers and the decoder (spec.md §3 "GSMTAP record").
type Record struct {
	Radio          RadioType
	Channel        ChannelType
	Subtype        uint8
	ARFCN          uint16
	FrameNumber    uint32
	SubframeNumber uint8
}

// ErrUnknownLogCode is returned by FromLogItem for a log code outside the
// allowlist; the caller still owns the raw item for storage, it simply gets
// no gsmtap record or PDU.
var ErrUnknownLogCode = errors.New("gsmtap: unknown log code")

// lteRRCHeaderSize is the fixed Stage-A header this package expects in
// front of the RRC PDU for LogCodeLTERRCOTA: 1 byte channel type, 2 bytes
// ARFCN (LE), 4 bytes frame number (LE), 1 byte subframe number.
const lteRRCHeaderSize = 8

// FromLogItem maps a DIAG log item to its gsmtap record and the embedded
// PDU bytes Stage B should parse. Returns ErrUnknownLogCode for anything
// outside diag.KnownLogCodes; returns a non-nil error (never panics) if a
// known code's payload is too short to contain the expected Stage-A header.
func FromLogItem(item diag.LogItem) (Record, []byte, error) {
	switch item.LogCode {
	case diag.LogCodeLTERRCOTA:
		return parseLTERRC(item.Payload)
	case diag.LogCodeLTENASEMMPlain, diag.LogCodeLTENASESMPlain:
		return Record{Radio: RadioLTE, Channel: ChannelNAS}, item.Payload, nil
	case diag.LogCodeUMTSRRCOTA:
		return Record{Radio: RadioUMTS, Channel: ChannelUnknown}, item.Payload, nil
	case diag.LogCodeGSMRRGPRS:
		return Record{Radio: RadioGSM, Channel: ChannelUnknown}, item.Payload, nil
	case diag.LogCodeFiveGNRRRC:
		return Record{Radio: RadioFiveG, Channel: ChannelUnknown}, item.Payload, nil
	default:
		return Record{}, nil, ErrUnknownLogCode
	}
}

func parseLTERRC(payload []byte) (Record, []byte, error) {
	if len(payload) < lteRRCHeaderSize {
		return Record{}, nil, errors.New("gsmtap: lte rrc payload shorter than stage-a header")
	}
	chanByte := payload[0]
	arfcn := binary.LittleEndian.Uint16(payload[1:3])
	frameNum := binary.LittleEndian.Uint32(payload[3:7])
	subframe := payload[7]
	pdu := payload[lteRRCHeaderSize:]

	ch := channelFromByte(chanByte)
	return Record{
		Radio:          RadioLTE,
		Channel:        ch,
		ARFCN:          arfcn,
		FrameNumber:    frameNum,
		SubframeNumber: subframe,
	}, pdu, nil
}

func channelFromByte(b byte) ChannelType {
	switch b {
	case 0:
		return ChannelBCCHBCH
	case 1:
		return ChannelBCCHDLSCH
	case 2:
		return ChannelPCCH
	case 3:
		return ChannelMCCH
	case 4:
		return ChannelDLDCCH
	case 5:
		return ChannelULDCCH
	default:
		return ChannelUnknown
	}
}

// EncodeLTERRCPayload is the inverse of parseLTERRC, used by tests and
// replay-fixture construction to build synthetic LTE RRC log items.
func EncodeLTERRCPayload(ch ChannelType, arfcn uint16, frameNum uint32, subframe uint8, pdu []byte) []byte {
	out := make([]byte, lteRRCHeaderSize+len(pdu))
	out[0] = channelToByte(ch)
	binary.LittleEndian.PutUint16(out[1:3], arfcn)
	binary.LittleEndian.PutUint32(out[3:7], frameNum)
	out[7] = subframe
	copy(out[lteRRCHeaderSize:], pdu)
	return out
}

func channelToByte(ch ChannelType) byte {
	switch ch {
	case ChannelBCCHBCH:
		return 0
	case ChannelBCCHDLSCH:
		return 1
	case ChannelPCCH:
		return 2
	case ChannelMCCH:
		return 3
	case ChannelDLDCCH:
		return 4
	case ChannelULDCCH:
		return 5
	default:
		return 0xFF
	}
}
