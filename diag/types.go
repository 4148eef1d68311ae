// Package diag models the Qualcomm DIAG wire: log-item headers, the
// allowlisted set of log codes the rest of the pipeline understands, and the
// live device transport that arms those codes and streams MessagesContainers.
//
// The data types in this file (LogItem, MessagesContainer, ParseLogItem) have
// no dependency on the qmdl package: the QMDL reader imports diag to reuse
// them, not the other way around, so a live capture and a QMDL replay can
// share exactly one notion of "a DIAG log item".
package diag

import (
	"encoding/binary"
	"errors"
	"time"
)

// LogCode identifies the type of a DIAG log item, per the modem's log-code
// registry (3GPP log packet IDs). Only a small allowlist is understood by
// the decoder; everything else still gets written to the QMDL file (for
// later replay against a newer decoder) but yields no InformationElement.
type LogCode uint16

// Known log codes. Real Qualcomm diag log codes for LTE RRC/NAS; GSM/UMTS/5G
// placeholders reserve codes so future decoders slot in without analyzer
// changes, per spec.md §4.4 "Stubs".
const (
	LogCodeLTERRCOTA        LogCode = 0xB0C0 // LTE RRC OTA message
	LogCodeLTENASEMMPlain   LogCode = 0xB0EC // LTE NAS EMM plain
	LogCodeLTENASESMPlain   LogCode = 0xB0ED // LTE NAS ESM plain
	LogCodeUMTSRRCOTA       LogCode = 0x412F // UMTS RRC OTA (stub)
	LogCodeGSMRRGPRS        LogCode = 0x5226 // GSM RR/GPRS (stub)
	LogCodeFiveGNRRRC       LogCode = 0xB821 // 5G NR RRC (stub)
)

// KnownLogCodes is the set of log codes the transport requests via the log
// mask and that the decoder has some handling (even if only a stub) for.
var KnownLogCodes = []LogCode{
	LogCodeLTERRCOTA,
	LogCodeLTENASEMMPlain,
	LogCodeLTENASESMPlain,
	LogCodeUMTSRRCOTA,
	LogCodeGSMRRGPRS,
	LogCodeFiveGNRRRC,
}

// IsKnown reports whether code is in the allowlist the decoder understands.
func IsKnown(code LogCode) bool {
	for _, k := range KnownLogCodes {
		if k == code {
			return true
		}
	}
	return false
}

// logItemHeaderSize is the fixed-size header preceding every log item's
// payload once HDLC framing has been stripped: 2 bytes log code (LE), 2
// bytes payload length (LE), 8 bytes modem timestamp as Unix nanoseconds
// (LE).
const logItemHeaderSize = 12

// ErrShortLogItem is returned when a de-framed message is too small to hold
// a log-item header.
var ErrShortLogItem = errors.New("diag: frame shorter than log item header")

// LogItem is a single typed record extracted from one HDLC frame.
type LogItem struct {
	LogCode   LogCode
	Timestamp time.Time
	Payload   []byte
}

// ParseLogItem decodes the fixed header at the front of a de-framed HDLC
// payload. It never panics: a too-short frame yields ErrShortLogItem rather
// than indexing out of range, matching the "corrupt frames are dropped with
// a counted reason" discipline used one layer down in hdlc.
func ParseLogItem(frame []byte) (LogItem, error) {
	if len(frame) < logItemHeaderSize {
		return LogItem{}, ErrShortLogItem
	}
	code := LogCode(binary.LittleEndian.Uint16(frame[0:2]))
	length := binary.LittleEndian.Uint16(frame[2:4])
	nanos := int64(binary.LittleEndian.Uint64(frame[4:12]))

	payload := frame[logItemHeaderSize:]
	if int(length) <= len(payload) {
		payload = payload[:length]
	}
	return LogItem{
		LogCode:   code,
		Timestamp: time.Unix(0, nanos).UTC(),
		Payload:   payload,
	}, nil
}

// EncodeLogItem is the inverse of ParseLogItem, used by tests and by the
// replay-fixture tooling to build synthetic QMDL files.
func EncodeLogItem(item LogItem) []byte {
	out := make([]byte, logItemHeaderSize+len(item.Payload))
	binary.LittleEndian.PutUint16(out[0:2], uint16(item.LogCode))
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(item.Payload)))
	binary.LittleEndian.PutUint64(out[4:12], uint64(item.Timestamp.UnixNano()))
	copy(out[logItemHeaderSize:], item.Payload)
	return out
}

// MessagesContainer carries one or more log items of the same LogCode plus
// the modem-supplied timestamp, per spec.md §3. Single-producer (transport),
// single-consumer (decoder) by convention; nothing here enforces that beyond
// documentation.
type MessagesContainer struct {
	// Timestamp is the modem timestamp of the container's last item.
	Timestamp time.Time
	LogCode   LogCode
	Items     []LogItem
}

// FrameSink is the narrow interface the live transport needs from a QMDL
// writer: append one already-HDLC-encoded frame. Defined here (rather than
// imported from package qmdl) so this package never depends on qmdl --
// qmdl.Writer satisfies this interface structurally.
type FrameSink interface {
	Append(frame []byte) error
}

// Assembler groups a sequence of de-framed, parsed LogItems into
// MessagesContainers: consecutive items sharing a LogCode are coalesced into
// one container, mirroring how the modem typically batches same-type log
// items within a single read cycle.
type Assembler struct {
	pending *MessagesContainer
}

// Push feeds one parsed log item into the assembler. It returns a completed
// container when item starts a new run (different LogCode than the pending
// run), or false if item was folded into the still-open run.
func (a *Assembler) Push(item LogItem) (MessagesContainer, bool) {
	if a.pending != nil && a.pending.LogCode == item.LogCode {
		a.pending.Items = append(a.pending.Items, item)
		a.pending.Timestamp = item.Timestamp
		return MessagesContainer{}, false
	}
	var flushed MessagesContainer
	ok := false
	if a.pending != nil {
		flushed = *a.pending
		ok = true
	}
	a.pending = &MessagesContainer{
		Timestamp: item.Timestamp,
		LogCode:   item.LogCode,
		Items:     []LogItem{item},
	}
	return flushed, ok
}

// Flush returns the in-progress container, if any, and resets the
// assembler. Used at end-of-stream so the final run is not lost.
func (a *Assembler) Flush() (MessagesContainer, bool) {
	if a.pending == nil {
		return MessagesContainer{}, false
	}
	c := *a.pending
	a.pending = nil
	return c, true
}
