package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeigeBox/rayhunter/diag"
	"github.com/BeigeBox/rayhunter/gsmtap"
)

func lteRRCItem(t *testing.T, ch gsmtap.ChannelType, pdu []byte) diag.LogItem {
	t.Helper()
	payload := gsmtap.EncodeLTERRCPayload(ch, 100, 1, 0, pdu)
	return diag.LogItem{LogCode: diag.LogCodeLTERRCOTA, Timestamp: time.Unix(1, 0), Payload: payload}
}

func TestDecodeUnknownLogCodeIsSilentlyAbsent(t *testing.T) {
	item := diag.LogItem{LogCode: diag.LogCode(0xDEAD), Timestamp: time.Unix(1, 0)}
	_, present, skip := Decode(item)
	assert.False(t, present)
	assert.Nil(t, skip)
}

func TestDecodeNASIdentityRequest(t *testing.T) {
	pdu := EncodeNASIdentityRequest(IdentityIMSI)
	item := diag.LogItem{LogCode: diag.LogCodeLTENASEMMPlain, Timestamp: time.Unix(1, 0), Payload: pdu}

	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	require.True(t, ie.IsCountable())
	require.NotNil(t, ie.LTE.NAS)
	assert.Equal(t, EMMIdentityRequest, ie.LTE.NAS.Type)
	assert.Equal(t, IdentityIMSI, ie.LTE.NAS.IdentityRequested)
}

func TestDecodeNASSecurityModeCommandNullCipher(t *testing.T) {
	pdu := EncodeNASSecurityModeCommand(NASSecurityAlgorithms{
		SelectedEEA:      0,
		SelectedEIA:      2,
		OfferedEEABitmap: 0b0000_0110,
		OfferedEIABitmap: 0b0000_0110,
	})
	item := diag.LogItem{LogCode: diag.LogCodeLTENASEMMPlain, Timestamp: time.Unix(1, 0), Payload: pdu}

	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	require.NotNil(t, ie.LTE.NAS.SecurityAlgorithms)
	assert.EqualValues(t, 0, ie.LTE.NAS.SecurityAlgorithms.SelectedEEA)
	assert.EqualValues(t, 0b0000_0110, ie.LTE.NAS.SecurityAlgorithms.OfferedEEABitmap)
}

func TestDecodeNASTruncatedYieldsSkip(t *testing.T) {
	item := diag.LogItem{LogCode: diag.LogCodeLTENASEMMPlain, Timestamp: time.Unix(1, 0), Payload: []byte{0x07}}
	_, present, skip := Decode(item)
	assert.False(t, present)
	require.NotNil(t, skip)
	assert.Equal(t, "decode_error", skip.Reason)
}

func TestDecodeRRCConnectionReleaseRedirectToGERAN(t *testing.T) {
	pdu := EncodeDLDCCHConnectionRelease(RRCConnectionRelease{
		RedirectedCarrierPresent: true,
		RedirectedCarrierType:    CarrierGERAN,
		RedirectedARFCN:          42,
	})
	item := lteRRCItem(t, gsmtap.ChannelDLDCCH, pdu)

	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	require.Equal(t, DLDCCHConnectionRelease, ie.LTE.DLDCCH.Type)
	rel := ie.LTE.DLDCCH.ConnectionRelease
	require.True(t, rel.RedirectedCarrierPresent)
	assert.Equal(t, CarrierGERAN, rel.RedirectedCarrierType)
	assert.EqualValues(t, 42, rel.RedirectedARFCN)
}

func TestDecodeRRCSecurityModeCommand(t *testing.T) {
	pdu := EncodeDLDCCHSecurityModeCommand(RRCSecurityModeCommand{CipheringAlgorithm: 0, IntegrityAlgorithm: 2})
	item := lteRRCItem(t, gsmtap.ChannelDLDCCH, pdu)

	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	require.Equal(t, DLDCCHSecurityModeCommand, ie.LTE.DLDCCH.Type)
	assert.EqualValues(t, 0, ie.LTE.DLDCCH.SecurityModeCommand.CipheringAlgorithm)
}

func TestDecodePagingWithIMSIIdentity(t *testing.T) {
	pdu := EncodePCCH([]PagingRecord{
		{UEIdentityType: PagingIdentitySTMSI},
		{UEIdentityType: PagingIdentityIMSI},
	})
	item := lteRRCItem(t, gsmtap.ChannelPCCH, pdu)

	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	require.Len(t, ie.LTE.PCCH.Records, 2)
	assert.Equal(t, PagingIdentityIMSI, ie.LTE.PCCH.Records[1].UEIdentityType)
}

func TestDecodeSIB1Scheduling(t *testing.T) {
	pdu := EncodeBCCHDLSCHSIB1(SIB1Message{ScheduledSIB6: true, ScheduledSIB7: false})
	item := lteRRCItem(t, gsmtap.ChannelBCCHDLSCH, pdu)

	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	require.Equal(t, BCCHDLSCHSIB1, ie.LTE.BCCHDLSCH.Kind)
	assert.True(t, ie.LTE.BCCHDLSCH.SIB1.ScheduledSIB6)
	assert.False(t, ie.LTE.BCCHDLSCH.SIB1.ScheduledSIB7)
}

func TestDecodeSystemInformationSIB6Downgrade(t *testing.T) {
	pdu := EncodeBCCHDLSCHSystemInformation(SystemInformationMessage{
		EUTRANPriority:    3,
		SIB6Present:       true,
		SIB6UTRANPriority: 7,
	})
	item := lteRRCItem(t, gsmtap.ChannelBCCHDLSCH, pdu)

	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	si := ie.LTE.BCCHDLSCH.SystemInformation
	require.True(t, si.SIB6Present)
	assert.EqualValues(t, 7, si.SIB6UTRANPriority)
	assert.Greater(t, int(si.SIB6UTRANPriority), int(si.EUTRANPriority))
}

func TestDecodeStubRadiosAreCountableFalse(t *testing.T) {
	item := diag.LogItem{LogCode: diag.LogCodeGSMRRGPRS, Timestamp: time.Unix(1, 0), Payload: []byte{1, 2, 3}}
	ie, present, skip := Decode(item)
	require.True(t, present)
	require.Nil(t, skip)
	assert.False(t, ie.IsCountable())
	assert.Equal(t, RadioGSM, ie.Radio)
}
