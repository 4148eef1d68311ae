package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeigeBox/rayhunter/decode"
	"github.com/BeigeBox/rayhunter/diag"
)

func identityRequestItem(ts time.Time) diag.LogItem {
	return diag.LogItem{
		LogCode:   diag.LogCodeLTENASEMMPlain,
		Timestamp: ts,
		Payload:   decode.EncodeNASIdentityRequest(decode.IdentityIMSI),
	}
}

func TestHarnessSlotAlignment(t *testing.T) {
	config := DefaultAnalyzerConfig()
	h := NewHarness(config.BuildAnalyzers())

	ts := time.Unix(1, 0)
	row := h.AnalyzeContainer(diag.MessagesContainer{
		Timestamp: ts,
		LogCode:   diag.LogCodeLTENASEMMPlain,
		Items:     []diag.LogItem{identityRequestItem(ts)},
	})

	assert.Len(t, row.Events, len(h.Analyzers()))
	// Diagnostic and IMSI-requested analyzers should both have fired.
	var sawDiagnostic, sawIMSIRequested bool
	for i, a := range h.Analyzers() {
		if a.Name() == "Diagnostic" && row.Events[i] != nil {
			sawDiagnostic = true
		}
		if a.Name() == "IMSI requested" && row.Events[i] != nil {
			sawIMSIRequested = true
		}
	}
	assert.True(t, sawDiagnostic)
	assert.True(t, sawIMSIRequested)
}

func TestHarnessMonotonicPacketNum(t *testing.T) {
	config := DefaultAnalyzerConfig()
	h := NewHarness(config.BuildAnalyzers())
	ts := time.Unix(1, 0)

	h.AnalyzeContainer(diag.MessagesContainer{
		Timestamp: ts,
		Items:     []diag.LogItem{identityRequestItem(ts), identityRequestItem(ts)},
	})
	assert.EqualValues(t, 2, h.PacketNum())

	h.AnalyzeContainer(diag.MessagesContainer{
		Timestamp: ts,
		Items:     []diag.LogItem{identityRequestItem(ts)},
	})
	assert.EqualValues(t, 3, h.PacketNum())
}

func TestHarnessUnknownLogCodeCountsPacketNumButNoEvents(t *testing.T) {
	config := DefaultAnalyzerConfig()
	h := NewHarness(config.BuildAnalyzers())
	ts := time.Unix(1, 0)

	row := h.AnalyzeContainer(diag.MessagesContainer{
		Timestamp: ts,
		Items:     []diag.LogItem{{LogCode: diag.LogCode(0xFFFF), Timestamp: ts}},
	})
	assert.EqualValues(t, 1, h.PacketNum())
	for _, e := range row.Events {
		assert.Nil(t, e)
	}
	assert.Empty(t, row.SkippedReasons)
}

func TestHarnessDecodeErrorSurfacesAsSkip(t *testing.T) {
	config := DefaultAnalyzerConfig()
	h := NewHarness(config.BuildAnalyzers())
	ts := time.Unix(1, 0)

	row := h.AnalyzeContainer(diag.MessagesContainer{
		Timestamp: ts,
		Items:     []diag.LogItem{{LogCode: diag.LogCodeLTENASEMMPlain, Timestamp: ts, Payload: []byte{0x07}}},
	})
	require.Len(t, row.SkippedReasons, 1)
	assert.Equal(t, "decode_error", row.SkippedReasons[0].Reason)
}

func TestHarnessReplayDeterminism(t *testing.T) {
	config := DefaultAnalyzerConfig()
	ts := time.Unix(1, 0)
	container := diag.MessagesContainer{
		Timestamp: ts,
		Items:     []diag.LogItem{identityRequestItem(ts), identityRequestItem(ts)},
	}

	h1 := NewHarness(config.BuildAnalyzers())
	h2 := NewHarness(config.BuildAnalyzers())

	row1 := h1.AnalyzeContainer(container)
	row2 := h2.AnalyzeContainer(container)

	require.Equal(t, len(row1.Events), len(row2.Events))
	for i := range row1.Events {
		if row1.Events[i] == nil {
			assert.Nil(t, row2.Events[i])
			continue
		}
		require.NotNil(t, row2.Events[i])
		assert.Equal(t, row1.Events[i].Type, row2.Events[i].Type)
		assert.Equal(t, row1.Events[i].Message, row2.Events[i].Message)
	}
}
