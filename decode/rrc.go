package decode

// This file implements the hand-rolled, UPER-inspired bit layouts for the
// small set of LTE RRC messages the analyzers need: RRCConnectionRelease's
// redirectedCarrierInfo, SecurityModeCommand's selected algorithms, Paging's
// ue-Identity, and SystemInformationBlockType1/SystemInformation's SIB6/7
// scheduling and presence. None of this claims conformance with the real
// 3GPP ASN.1 UPER encoding; it is a compact, internally consistent,
// bit-packed subset documented here and exercised only by our own encoder
// in the test files, the same trade-off spec.md §9 calls out explicitly.
// Truncated input surfaces as io.ErrUnexpectedEOF from the underlying
// bitReader, which Decode's safety wrapper turns into a skip reason.

// CarrierType is the RAT a redirectedCarrierInfo points the UE at.
type CarrierType uint8

const (
	CarrierEUTRA          CarrierType = 0
	CarrierGERAN          CarrierType = 1
	CarrierUTRAFDD        CarrierType = 2
	CarrierUTRATDD        CarrierType = 3
	CarrierCDMA2000HRPD   CarrierType = 4
	CarrierCDMA2000_1xRTT CarrierType = 5
)

// DLDCCHMessageType selects which DL-DCCH message this decoder recognized.
type DLDCCHMessageType int

const (
	DLDCCHUnknown DLDCCHMessageType = iota
	DLDCCHConnectionRelease
	DLDCCHSecurityModeCommand
)

// RRCConnectionRelease carries the one field the redirect-to-2G analyzer
// needs: whether the network is steering the UE to a GERAN carrier.
type RRCConnectionRelease struct {
	RedirectedCarrierPresent bool
	RedirectedCarrierType    CarrierType
	RedirectedARFCN          uint16 // meaningful only when RedirectedCarrierType == CarrierGERAN
}

// RRCSecurityModeCommand carries the AS-level selected ciphering/integrity
// algorithms (0 == null, i.e. eea0/eia0).
type RRCSecurityModeCommand struct {
	CipheringAlgorithm uint8
	IntegrityAlgorithm uint8
}

// DLDCCHMessage is the decoded body of a DL-DCCH-Message.
type DLDCCHMessage struct {
	Type                DLDCCHMessageType
	ConnectionRelease   *RRCConnectionRelease
	SecurityModeCommand *RRCSecurityModeCommand
}

// bit layout: 1 bit c1-choice marker (must be 1 in this subset), 4 bits
// message selector (0 = ConnectionRelease, 1 = SecurityModeCommand, other =
// unknown-but-valid), then message-specific bits.
func decodeDLDCCH(pdu []byte) (*DLDCCHMessage, error) {
	r := newBitReader(pdu)
	c1, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !c1 {
		return &DLDCCHMessage{Type: DLDCCHUnknown}, nil
	}
	sel, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}

	switch sel {
	case 0:
		rel, err := decodeConnectionRelease(r)
		if err != nil {
			return nil, err
		}
		return &DLDCCHMessage{Type: DLDCCHConnectionRelease, ConnectionRelease: rel}, nil
	case 1:
		smc, err := decodeSecurityModeCommand(r)
		if err != nil {
			return nil, err
		}
		return &DLDCCHMessage{Type: DLDCCHSecurityModeCommand, SecurityModeCommand: smc}, nil
	default:
		return &DLDCCHMessage{Type: DLDCCHUnknown}, nil
	}
}

func decodeConnectionRelease(r *bitReader) (*RRCConnectionRelease, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	rel := &RRCConnectionRelease{RedirectedCarrierPresent: present}
	if !present {
		return rel, nil
	}
	carrier, err := r.ReadUint(3)
	if err != nil {
		return nil, err
	}
	rel.RedirectedCarrierType = CarrierType(carrier)
	if rel.RedirectedCarrierType == CarrierGERAN {
		arfcn, err := r.ReadUint(10)
		if err != nil {
			return nil, err
		}
		rel.RedirectedARFCN = uint16(arfcn)
	}
	return rel, nil
}

func decodeSecurityModeCommand(r *bitReader) (*RRCSecurityModeCommand, error) {
	cipher, err := r.ReadUint(3)
	if err != nil {
		return nil, err
	}
	integrity, err := r.ReadUint(3)
	if err != nil {
		return nil, err
	}
	return &RRCSecurityModeCommand{
		CipheringAlgorithm: uint8(cipher),
		IntegrityAlgorithm: uint8(integrity),
	}, nil
}

// EncodeDLDCCHConnectionRelease and EncodeDLDCCHSecurityModeCommand are the
// inverse encoders, used only by tests and replay fixtures.

func EncodeDLDCCHConnectionRelease(rel RRCConnectionRelease) []byte {
	w := newBitWriter()
	w.WriteBool(true)
	w.WriteUint(0, 4)
	w.WriteBool(rel.RedirectedCarrierPresent)
	if rel.RedirectedCarrierPresent {
		w.WriteUint(uint64(rel.RedirectedCarrierType), 3)
		if rel.RedirectedCarrierType == CarrierGERAN {
			w.WriteUint(uint64(rel.RedirectedARFCN), 10)
		}
	}
	return w.Bytes()
}

func EncodeDLDCCHSecurityModeCommand(smc RRCSecurityModeCommand) []byte {
	w := newBitWriter()
	w.WriteBool(true)
	w.WriteUint(1, 4)
	w.WriteUint(uint64(smc.CipheringAlgorithm), 3)
	w.WriteUint(uint64(smc.IntegrityAlgorithm), 3)
	return w.Bytes()
}

// PagingUEIdentityType is the ue-Identity choice in a PagingRecord.
type PagingUEIdentityType uint8

const (
	PagingIdentitySTMSI PagingUEIdentityType = 0
	PagingIdentityIMSI  PagingUEIdentityType = 1
)

// PagingRecord is one entry of a Paging message's pagingRecordList.
type PagingRecord struct {
	UEIdentityType PagingUEIdentityType
}

// PCCHMessage is the decoded body of a PCCH-Message.
type PCCHMessage struct {
	Records []PagingRecord
}

// bit layout: 4 bits record count (0-15), then one bit per record for
// ue-Identity choice.
func decodePCCH(pdu []byte) (*PCCHMessage, error) {
	r := newBitReader(pdu)
	count, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	msg := &PCCHMessage{Records: make([]PagingRecord, 0, count)}
	for i := uint64(0); i < count; i++ {
		b, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		msg.Records = append(msg.Records, PagingRecord{UEIdentityType: PagingUEIdentityType(b)})
	}
	return msg, nil
}

func EncodePCCH(records []PagingRecord) []byte {
	w := newBitWriter()
	w.WriteUint(uint64(len(records)), 4)
	for _, rec := range records {
		w.WriteUint(uint64(rec.UEIdentityType), 1)
	}
	return w.Bytes()
}

// BCCHDLSCHKind selects which message the BCCH-DL-SCH channel carried.
type BCCHDLSCHKind int

const (
	BCCHDLSCHUnknown BCCHDLSCHKind = iota
	BCCHDLSCHSIB1
	BCCHDLSCHSystemInformation
)

// SIB1Message carries the scheduling flags the incomplete-SIB analyzer
// needs: which of SIB6/SIB7 the serving cell has promised to deliver.
type SIB1Message struct {
	ScheduledSIB6 bool
	ScheduledSIB7 bool
}

// SystemInformationMessage carries the cell-reselection priorities the
// SIB6/7 downgrade analyzer inspects. A priority is on a 0-7 scale per
// 3GPP TS 36.331's cellReselectionPriority; higher means "prefer this RAT".
type SystemInformationMessage struct {
	EUTRANPriority    uint8
	SIB6Present       bool
	SIB6UTRANPriority uint8
	SIB7Present       bool
	SIB7GERANPriority uint8
}

// BCCHDLSCHMessage is the decoded body of a BCCH-DL-SCH-Message.
type BCCHDLSCHMessage struct {
	Kind              BCCHDLSCHKind
	SIB1              *SIB1Message
	SystemInformation *SystemInformationMessage
}

// bit layout: 1 bit isSIB1.
//   SIB1 body: 1 bit scheduledSIB6, 1 bit scheduledSIB7.
//   SystemInformation body: 3 bits eutranPriority, 1 bit sib6Present
//     (+ 3 bits sib6Priority if present), 1 bit sib7Present
//     (+ 3 bits sib7Priority if present).
func decodeBCCHDLSCH(pdu []byte) (*BCCHDLSCHMessage, error) {
	r := newBitReader(pdu)
	isSIB1, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if isSIB1 {
		sib6, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		sib7, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return &BCCHDLSCHMessage{
			Kind: BCCHDLSCHSIB1,
			SIB1: &SIB1Message{ScheduledSIB6: sib6, ScheduledSIB7: sib7},
		}, nil
	}

	eutranPriority, err := r.ReadUint(3)
	if err != nil {
		return nil, err
	}
	si := &SystemInformationMessage{EUTRANPriority: uint8(eutranPriority)}

	sib6Present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	si.SIB6Present = sib6Present
	if sib6Present {
		p, err := r.ReadUint(3)
		if err != nil {
			return nil, err
		}
		si.SIB6UTRANPriority = uint8(p)
	}

	sib7Present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	si.SIB7Present = sib7Present
	if sib7Present {
		p, err := r.ReadUint(3)
		if err != nil {
			return nil, err
		}
		si.SIB7GERANPriority = uint8(p)
	}

	return &BCCHDLSCHMessage{Kind: BCCHDLSCHSystemInformation, SystemInformation: si}, nil
}

func EncodeBCCHDLSCHSIB1(sib1 SIB1Message) []byte {
	w := newBitWriter()
	w.WriteBool(true)
	w.WriteBool(sib1.ScheduledSIB6)
	w.WriteBool(sib1.ScheduledSIB7)
	return w.Bytes()
}

func EncodeBCCHDLSCHSystemInformation(si SystemInformationMessage) []byte {
	w := newBitWriter()
	w.WriteBool(false)
	w.WriteUint(uint64(si.EUTRANPriority), 3)
	w.WriteBool(si.SIB6Present)
	if si.SIB6Present {
		w.WriteUint(uint64(si.SIB6UTRANPriority), 3)
	}
	w.WriteBool(si.SIB7Present)
	if si.SIB7Present {
		w.WriteUint(uint64(si.SIB7GERANPriority), 3)
	}
	return w.Bytes()
}
