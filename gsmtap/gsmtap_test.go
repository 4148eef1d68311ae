package gsmtap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeigeBox/rayhunter/diag"
)

func TestFromLogItemLTERRCRoundTrip(t *testing.T) {
	pdu := []byte{0xAA, 0xBB, 0xCC}
	payload := EncodeLTERRCPayload(ChannelDLDCCH, 6400, 123, 4, pdu)
	item := diag.LogItem{LogCode: diag.LogCodeLTERRCOTA, Timestamp: time.Unix(1, 0), Payload: payload}

	record, got, err := FromLogItem(item)
	require.NoError(t, err)
	assert.Equal(t, RadioLTE, record.Radio)
	assert.Equal(t, ChannelDLDCCH, record.Channel)
	assert.EqualValues(t, 6400, record.ARFCN)
	assert.EqualValues(t, 123, record.FrameNumber)
	assert.EqualValues(t, 4, record.SubframeNumber)
	assert.Equal(t, pdu, got)
}

func TestFromLogItemLTERRCTooShort(t *testing.T) {
	item := diag.LogItem{LogCode: diag.LogCodeLTERRCOTA, Timestamp: time.Unix(1, 0), Payload: []byte{1, 2, 3}}
	_, _, err := FromLogItem(item)
	assert.Error(t, err)
}

func TestFromLogItemNAS(t *testing.T) {
	item := diag.LogItem{LogCode: diag.LogCodeLTENASEMMPlain, Timestamp: time.Unix(1, 0), Payload: []byte{7, 0, 0x55}}
	record, pdu, err := FromLogItem(item)
	require.NoError(t, err)
	assert.Equal(t, RadioLTE, record.Radio)
	assert.Equal(t, ChannelNAS, record.Channel)
	assert.Equal(t, []byte{7, 0, 0x55}, pdu)
}

func TestFromLogItemStubRadios(t *testing.T) {
	for _, code := range []diag.LogCode{diag.LogCodeUMTSRRCOTA, diag.LogCodeGSMRRGPRS, diag.LogCodeFiveGNRRRC} {
		item := diag.LogItem{LogCode: code, Timestamp: time.Unix(1, 0), Payload: []byte{9}}
		record, pdu, err := FromLogItem(item)
		require.NoError(t, err)
		assert.NotEqual(t, RadioUnknown, record.Radio)
		assert.Equal(t, []byte{9}, pdu)
	}
}

func TestFromLogItemUnknownLogCode(t *testing.T) {
	item := diag.LogItem{LogCode: diag.LogCode(0x1234), Timestamp: time.Unix(1, 0)}
	_, _, err := FromLogItem(item)
	assert.ErrorIs(t, err, ErrUnknownLogCode)
}

func TestChannelByteRoundTrip(t *testing.T) {
	channels := []ChannelType{
		ChannelBCCHBCH, ChannelBCCHDLSCH, ChannelPCCH, ChannelMCCH, ChannelDLDCCH, ChannelULDCCH,
	}
	for _, ch := range channels {
		got := channelFromByte(channelToByte(ch))
		assert.Equal(t, ch, got)
	}
}
