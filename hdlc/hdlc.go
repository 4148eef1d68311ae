// Package hdlc implements the HDLC-style byte framing used on the Qualcomm
// DIAG wire: a single 0x7e terminator per message, 0x7d-prefixed escapes, and
// a trailing CRC-16/X-25 appended before escaping.
//
// Based loosely on the escape/terminator discipline in
// github.com/BertoldVdb/go-misc/serialpacket/framer/hdlc, adapted from a
// stateful port-reading framer into a pure encode/decode pair suitable for
// both the live DIAG stream and QMDL file replay.
package hdlc

import (
	"bytes"
	"errors"
	"io"

	"github.com/sigurn/crc16"
)

const (
	frameEnd    byte = 0x7e
	frameEscape byte = 0x7d
	escapeXOR   byte = 0x20
)

// crcParams is the CRC-16/X-25 table: poly 0x1021 reflected, init 0xffff, xorout 0xffff.
// crc16.CCITT_FALSE is NOT the right table (it's unreflected); X_25 is.
var crcParams = crc16.MakeTable(crc16.X_25)

// Errors reported, wrapped in a Result's FramingError, by Decoder.Next and
// DecodeAll. A decoder error never halts the stream;
// the caller (or the iterator below) resynchronizes at the next terminator.
var (
	// ErrUnterminated indicates EOF was reached in the middle of a frame.
	ErrUnterminated = errors.New("hdlc: unterminated frame at eof")
	// ErrBadEscape indicates a lone 0x7d at EOF, or 0x7d followed by a byte
	// that is not a valid escape target.
	ErrBadEscape = errors.New("hdlc: invalid escape sequence")
	// ErrBadCRC indicates the trailing two bytes did not match the CRC-16/X-25
	// of the preceding payload.
	ErrBadCRC = errors.New("hdlc: crc mismatch")
)

// FramingError wraps one of the sentinel errors above with the raw bytes
// that were discarded, for callers that want to log/count them.
type FramingError struct {
	Err  error
	Raw  []byte
}

func (e *FramingError) Error() string { return e.Err.Error() }
func (e *FramingError) Unwrap() error { return e.Err }

// Encode appends a CRC-16/X-25 checksum to msg, escapes 0x7e and 0x7d bytes
// (including within the checksum), and terminates the result with 0x7e.
// Total output length is bounded by 2*len(msg)+5 (worst case: every payload
// byte and both crc bytes need escaping, plus the terminator).
func Encode(msg []byte) []byte {
	sum := crc16.Checksum(msg, crcParams)

	out := make([]byte, 0, 2*len(msg)+3)
	out = appendEscaped(out, msg)
	out = appendEscaped(out, []byte{byte(sum), byte(sum >> 8)})
	out = append(out, frameEnd)
	return out
}

func appendEscaped(dst []byte, src []byte) []byte {
	for _, b := range src {
		switch b {
		case frameEnd:
			dst = append(dst, frameEscape, frameEnd^escapeXOR)
		case frameEscape:
			dst = append(dst, frameEscape, frameEscape^escapeXOR)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// Result is the outcome of decoding a single terminated frame: either the
// de-escaped, CRC-verified payload, or a FramingError describing why the
// frame was rejected.
type Result struct {
	Frame []byte
	Err   *FramingError
}

// Decoder incrementally decodes an HDLC byte stream, one Result per 0x7e
// terminator observed. It is not safe for concurrent use.
type Decoder struct {
	r         io.Reader
	buf       []byte // unconsumed bytes read from r but not yet yielded
	pos       int
	err       error // sticky terminal read error (distinct from frame errors)
	scratch   bytes.Buffer
	escaped   bool
	readChunk [16 * 1024]byte
}

// NewDecoder returns a Decoder that reads raw bytes from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next returns the next decoded Result, or io.EOF once the underlying reader
// is exhausted and no partial frame remains buffered. A non-EOF I/O error
// from the underlying reader is returned directly (not wrapped in Result)
// since that is not a framing-layer condition.
func (d *Decoder) Next() (Result, error) {
	d.scratch.Reset()
	d.escaped = false
	sawAnyByte := false

	for {
		b, ok, err := d.nextByte()
		if err != nil {
			if err == io.EOF {
				if sawAnyByte {
					raw := append([]byte(nil), d.scratch.Bytes()...)
					if d.escaped {
						// A lone 0x7d at EOF: the escape was never
						// resolved, per spec.md §4.1 "BadEscape (lone
						// 0x7d at EOF ...)".
						return Result{Err: &FramingError{Err: ErrBadEscape, Raw: raw}}, nil
					}
					return Result{Err: &FramingError{Err: ErrUnterminated, Raw: raw}}, nil
				}
				return Result{}, io.EOF
			}
			return Result{}, err
		}
		if !ok {
			continue
		}

		if b == frameEnd {
			if d.scratch.Len() == 0 && !d.escaped {
				// Consecutive terminators: empty-between-terminators is
				// skipped, not reported, per spec.
				sawAnyByte = false
				continue
			}
			raw := append([]byte(nil), d.scratch.Bytes()...)
			if d.escaped {
				return Result{Err: &FramingError{Err: ErrBadEscape, Raw: raw}}, nil
			}
			return decodeFrame(raw), nil
		}

		sawAnyByte = true

		if d.escaped {
			d.escaped = false
			switch b {
			case frameEnd ^ escapeXOR:
				d.scratch.WriteByte(frameEnd)
			case frameEscape ^ escapeXOR:
				d.scratch.WriteByte(frameEscape)
			default:
				// Invalid escape target: consume until next terminator,
				// report BadEscape for that whole span.
				d.skipToTerminator()
				raw := append([]byte(nil), d.scratch.Bytes()...)
				return Result{Err: &FramingError{Err: ErrBadEscape, Raw: raw}}, nil
			}
			continue
		}

		if b == frameEscape {
			d.escaped = true
			continue
		}

		d.scratch.WriteByte(b)
	}
}

// skipToTerminator discards bytes (without interpreting further escapes)
// until the next 0x7e, leaving the decoder ready to start a fresh frame.
func (d *Decoder) skipToTerminator() {
	d.escaped = false
	for {
		b, ok, err := d.nextByte()
		if err != nil || !ok {
			return
		}
		if b == frameEnd {
			return
		}
	}
}

func (d *Decoder) nextByte() (byte, bool, error) {
	if d.pos >= len(d.buf) {
		if d.err != nil {
			return 0, false, d.err
		}
		n, err := d.r.Read(d.readChunk[:])
		if n > 0 {
			d.buf = d.readChunk[:n]
			d.pos = 0
		}
		if err != nil {
			d.err = err
			if n == 0 {
				return 0, false, err
			}
		}
		if n == 0 {
			return 0, false, err
		}
	}
	b := d.buf[d.pos]
	d.pos++
	return b, true, nil
}

func decodeFrame(payload []byte) Result {
	if len(payload) < 2 {
		return Result{Err: &FramingError{Err: ErrBadCRC, Raw: payload}}
	}
	body := payload[:len(payload)-2]
	wantLo, wantHi := payload[len(payload)-2], payload[len(payload)-1]
	want := uint16(wantLo) | uint16(wantHi)<<8
	got := crc16.Checksum(body, crcParams)
	if got != want {
		return Result{Err: &FramingError{Err: ErrBadCRC, Raw: payload}}
	}
	return Result{Frame: body}
}

// DecodeAll decodes every frame in input, returning one Result per
// terminator seen. It is a convenience wrapper over Decoder for callers
// that have the whole stream in memory (tests, small QMDL fixtures).
func DecodeAll(input []byte) []Result {
	dec := NewDecoder(bytes.NewReader(input))
	var results []Result
	for {
		res, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A hard I/O error reading from a bytes.Reader cannot happen,
			// but keep the result stream well-formed if it somehow did.
			break
		}
		results = append(results, res)
	}
	return results
}
