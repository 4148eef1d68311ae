package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeigeBox/rayhunter/decode"
)

func TestNullCipherASFiresOnEEA0(t *testing.T) {
	a := NewNullCipherASAnalyzer()
	ie := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelDLDCCH,
			DLDCCH: &decode.DLDCCHMessage{
				Type:                decode.DLDCCHSecurityModeCommand,
				SecurityModeCommand: &decode.RRCSecurityModeCommand{CipheringAlgorithm: 0, IntegrityAlgorithm: 2},
			},
		},
	}
	event := a.Analyze(ie, 0)
	require.NotNil(t, event)
	assert.Equal(t, High, event.Type)
}

func TestNullCipherASDoesNotFireOnNonNull(t *testing.T) {
	a := NewNullCipherASAnalyzer()
	ie := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelDLDCCH,
			DLDCCH: &decode.DLDCCHMessage{
				Type:                decode.DLDCCHSecurityModeCommand,
				SecurityModeCommand: &decode.RRCSecurityModeCommand{CipheringAlgorithm: 1, IntegrityAlgorithm: 2},
			},
		},
	}
	assert.Nil(t, a.Analyze(ie, 0))
}

func TestNullCipherNASFiresOnlyWhenNonNullWasOffered(t *testing.T) {
	a := NewNullCipherNASAnalyzer()

	forced := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelNAS,
			NAS: &decode.NASMessage{
				Type: decode.EMMSecurityModeCommand,
				SecurityAlgorithms: &decode.NASSecurityAlgorithms{
					SelectedEEA:      0,
					OfferedEEABitmap: 0b0000_0011, // eea0 and eea1 offered
				},
			},
		},
	}
	event := a.Analyze(forced, 0)
	require.NotNil(t, event)
	assert.Equal(t, High, event.Type)

	onlyOption := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelNAS,
			NAS: &decode.NASMessage{
				Type: decode.EMMSecurityModeCommand,
				SecurityAlgorithms: &decode.NASSecurityAlgorithms{
					SelectedEEA:      0,
					OfferedEEABitmap: 0b0000_0001, // only eea0 ever offered
				},
			},
		},
	}
	assert.Nil(t, a.Analyze(onlyOption, 0))
}

func TestSIBDowngradeFiresOnHighUTRANPriority(t *testing.T) {
	a := NewSIBDowngradeAnalyzer(DefaultSIBDowngradeConfig())
	ie := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelBCCHDLSCH,
			BCCHDLSCH: &decode.BCCHDLSCHMessage{
				Kind: decode.BCCHDLSCHSystemInformation,
				SystemInformation: &decode.SystemInformationMessage{
					EUTRANPriority:    2,
					SIB6Present:       true,
					SIB6UTRANPriority: 7,
				},
			},
		},
	}
	event := a.Analyze(ie, 0)
	require.NotNil(t, event)
	assert.Equal(t, High, event.Type)
}

func TestSIBDowngradeDoesNotFireBelowThreshold(t *testing.T) {
	a := NewSIBDowngradeAnalyzer(DefaultSIBDowngradeConfig())
	ie := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelBCCHDLSCH,
			BCCHDLSCH: &decode.BCCHDLSCHMessage{
				Kind: decode.BCCHDLSCHSystemInformation,
				SystemInformation: &decode.SystemInformationMessage{
					EUTRANPriority:    5,
					SIB6Present:       true,
					SIB6UTRANPriority: 4,
				},
			},
		},
	}
	assert.Nil(t, a.Analyze(ie, 0))
}

func TestIncompleteSIBFiresAfterWindowExpires(t *testing.T) {
	a := NewIncompleteSIBAnalyzer(IncompleteSIBConfig{WaitMessages: 2})

	sib1 := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel:   decode.LTEChannelBCCHDLSCH,
			BCCHDLSCH: &decode.BCCHDLSCHMessage{Kind: decode.BCCHDLSCHSIB1, SIB1: &decode.SIB1Message{ScheduledSIB6: true}},
		},
	}
	assert.Nil(t, a.Analyze(sib1, 0))
	assert.Nil(t, a.Analyze(sib1, 1))
	assert.Nil(t, a.Analyze(sib1, 2))
	event := a.Analyze(sib1, 3)
	require.NotNil(t, event)
	assert.Equal(t, Medium, event.Type)
}

func TestIncompleteSIBDoesNotFireWhenDelivered(t *testing.T) {
	a := NewIncompleteSIBAnalyzer(IncompleteSIBConfig{WaitMessages: 2})

	sib1 := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel:   decode.LTEChannelBCCHDLSCH,
			BCCHDLSCH: &decode.BCCHDLSCHMessage{Kind: decode.BCCHDLSCHSIB1, SIB1: &decode.SIB1Message{ScheduledSIB6: true}},
		},
	}
	delivered := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelBCCHDLSCH,
			BCCHDLSCH: &decode.BCCHDLSCHMessage{
				Kind:              decode.BCCHDLSCHSystemInformation,
				SystemInformation: &decode.SystemInformationMessage{SIB6Present: true},
			},
		},
	}

	assert.Nil(t, a.Analyze(sib1, 0))
	assert.Nil(t, a.Analyze(delivered, 1))
	assert.Nil(t, a.Analyze(sib1, 5))
}

func TestImsiExposureRatioNoAlertBelowMinSampleSize(t *testing.T) {
	a := NewImsiExposureRatioAnalyzer(ImsiExposureConfig{
		WindowSize: 100, MediumThreshold: 0.10, HighThreshold: 0.25, MinSampleSize: 50,
	})
	ie := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelNAS,
			NAS:     &decode.NASMessage{Type: decode.EMMIdentityRequest, IdentityRequested: decode.IdentityIMSI},
		},
	}
	for i := uint64(0); i < 10; i++ {
		assert.Nil(t, a.Analyze(ie, i))
	}
	assert.Equal(t, 10, a.window.Count())
}

func TestImsiExposureRatioFiresOnlyOnExposingMessageOnceOverThreshold(t *testing.T) {
	a := NewImsiExposureRatioAnalyzer(ImsiExposureConfig{
		WindowSize: 10, MediumThreshold: 0.10, HighThreshold: 0.50, MinSampleSize: 4,
	})
	exposing := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE: &decode.LTEMessage{
			Channel: decode.LTEChannelNAS,
			NAS:     &decode.NASMessage{Type: decode.EMMIdentityRequest, IdentityRequested: decode.IdentityIMSI},
		},
	}
	nonExposing := decode.InformationElement{
		Radio: decode.RadioLTE,
		LTE:   &decode.LTEMessage{Channel: decode.LTEChannelNAS, NAS: &decode.NASMessage{Type: decode.EMMUnknown}},
	}

	assert.Nil(t, a.Analyze(nonExposing, 0))
	assert.Nil(t, a.Analyze(nonExposing, 1))
	assert.Nil(t, a.Analyze(nonExposing, 2))
	// 4th message is exposing and ratio 1/4 = 0.25 >= medium(0.10) but < high(0.50)
	event := a.Analyze(exposing, 3)
	require.NotNil(t, event)
	assert.Equal(t, Medium, event.Type)

	// A subsequent non-exposing message must not re-alert even though the
	// ratio is still elevated.
	assert.Nil(t, a.Analyze(nonExposing, 4))
}

func TestImsiExposureRatioNonLTEIgnored(t *testing.T) {
	a := NewImsiExposureRatioAnalyzer(DefaultImsiExposureConfig())
	assert.Nil(t, a.Analyze(decode.InformationElement{Radio: decode.RadioGSM}, 0))
	assert.Equal(t, 0, a.window.Count())
}
