package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sys/unix"

	"github.com/BeigeBox/rayhunter/hdlc"
)

// Sentinel errors matching the error taxonomy in spec.md §7. These are
// control-plane errors: unlike hdlc.FramingError or a decode.SkippedReason,
// encountering one always ends the session.
var (
	// ErrDeviceBusy is returned by Open when another process already holds
	// the DIAG device exclusively.
	ErrDeviceBusy = errors.New("diag: device busy")
	// ErrDiagProtocolError is returned by Open when the mask/start setup
	// handshake fails (after retry) or times out.
	ErrDiagProtocolError = errors.New("diag: setup protocol error")
	// ErrDeviceGone is surfaced from the container stream when a read
	// returns EIO/ENODEV: the modem (or its USB link) disappeared.
	ErrDeviceGone = errors.New("diag: device gone")
)

const (
	readChunkSize  = 16 * 1024
	setupAckTimeout = 2 * time.Second
	setupRetries    = 3
)

// request/ack opcodes for the setup handshake. These are placeholders for
// the vendor-specific DIAG control opcodes; what matters for the pipeline is
// the shape of the exchange (request id, echoed ack) described in spec.md
// §4.3, not the exact wire values.
const (
	opSetLogMask    byte = 0x73
	opStartLogging  byte = 0x74
	opAck           byte = 0x00
)

// Device is the live DIAG transport: it owns the modem character device fd,
// performs the one-time setup handshake, and exposes a stream of
// MessagesContainer while teeing every raw framed byte span to a FrameSink
// (typically a *qmdl.Writer).
type Device struct {
	fd   int
	sink FrameSink

	corruptFrames int
	decodeDrops   int

	requestID byte
}

// Open opens the modem diagnostic character device exclusively, arms the
// known log-code allowlist, and sends the start-logging request. It returns
// ErrDeviceBusy if another process holds the device, or ErrDiagProtocolError
// if the setup handshake fails after retrying.
func Open(ctx context.Context, path string, sink FrameSink) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, mapOpenError(err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrDeviceBusy
		}
		return nil, fmt.Errorf("diag: flock %s: %w", path, err)
	}

	d := &Device{fd: fd, sink: sink}

	if err := d.setup(ctx); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return d, nil
}

func mapOpenError(err error) error {
	if errors.Is(err, unix.EBUSY) {
		return ErrDeviceBusy
	}
	return fmt.Errorf("diag: open: %w", err)
}

// setup performs the "set log mask" then "start logging" handshake,
// retrying the mask request up to setupRetries times on framing error per
// spec.md §4.3, and failing with ErrDiagProtocolError if the start-logging
// ack does not arrive within setupAckTimeout.
func (d *Device) setup(ctx context.Context) error {
	err := retry.Do(
		func() error { return d.sendSetLogMask() },
		retry.Attempts(setupRetries),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			var fe *hdlc.FramingError
			return errors.As(err, &fe)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: set log mask: %v", ErrDiagProtocolError, err)
	}

	ackCtx, cancel := context.WithTimeout(ctx, setupAckTimeout)
	defer cancel()
	if err := d.sendStartLogging(ackCtx); err != nil {
		return fmt.Errorf("%w: start logging: %v", ErrDiagProtocolError, err)
	}
	return nil
}

func (d *Device) nextRequestID() byte {
	d.requestID++
	return d.requestID
}

// sendSetLogMask writes the "arm these log codes" request and waits for its
// echoed acknowledgement.
func (d *Device) sendSetLogMask() error {
	reqID := d.nextRequestID()
	var body bytes.Buffer
	body.WriteByte(opSetLogMask)
	body.WriteByte(reqID)
	for _, code := range KnownLogCodes {
		var buf [2]byte
		buf[0] = byte(code)
		buf[1] = byte(code >> 8)
		body.Write(buf[:])
	}
	return d.writeAndAwaitAck(body.Bytes(), reqID, setupAckTimeout)
}

// sendStartLogging writes the "start logging" request and waits for its ack,
// honoring ctx's deadline.
func (d *Device) sendStartLogging(ctx context.Context) error {
	reqID := d.nextRequestID()
	body := []byte{opStartLogging, reqID}
	deadline := setupAckTimeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining > 0 {
			deadline = remaining
		}
	}
	return d.writeAndAwaitAck(body, reqID, deadline)
}

// writeAndAwaitAck sends an encoded request frame and blocks (up to
// timeout) for a frame whose opcode is opAck and whose request-id byte
// matches reqID. Anything else read while waiting is discarded; a framing
// error surfaces as an error so the caller's retry policy can act on it.
func (d *Device) writeAndAwaitAck(body []byte, reqID byte, timeout time.Duration) error {
	frame := hdlc.Encode(body)
	if _, err := unix.Write(d.fd, frame); err != nil {
		return fmt.Errorf("diag: write: %w", err)
	}

	deadline := time.Now().Add(timeout)
	dec := hdlc.NewDecoder(&fdReader{fd: d.fd, deadline: deadline})
	for {
		res, err := dec.Next()
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
		if len(res.Frame) >= 2 && res.Frame[0] == opAck && res.Frame[1] == reqID {
			return nil
		}
		if time.Now().After(deadline) {
			return context.DeadlineExceeded
		}
	}
}

// fdReader adapts a raw fd read loop with a wall-clock deadline to io.Reader,
// used only during the synchronous setup handshake (the steady-state stream
// loop below reads fd directly without a per-call deadline, since it's
// governed by session-level cancellation instead).
type fdReader struct {
	fd       int
	deadline time.Time
}

func (r *fdReader) Read(p []byte) (int, error) {
	for {
		if time.Now().After(r.deadline) {
			return 0, context.DeadlineExceeded
		}
		n, err := unix.Read(r.fd, p)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EIO) || errors.Is(err, unix.ENODEV) {
				return 0, ErrDeviceGone
			}
			return 0, err
		}
		if n == 0 {
			return 0, context.DeadlineExceeded
		}
		return n, nil
	}
}

// Stream reads raw bytes from the device fd, reconstructs MessagesContainers
// via the HDLC framer and log-item assembler, tees every raw frame span to
// the configured FrameSink, and sends completed containers on the returned
// channel. Stream blocks the reader on the consumer (the channel has a
// small buffer but never drops); it closes the channel and sends a final
// error (nil on orderly ctx cancellation) once reading stops.
func (d *Device) Stream(ctx context.Context) (<-chan MessagesContainer, <-chan error) {
	out := make(chan MessagesContainer, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		errc <- d.streamLoop(ctx, out)
	}()

	return out, errc
}

func (d *Device) streamLoop(ctx context.Context, out chan<- MessagesContainer) error {
	var leftover []byte
	var buf [readChunkSize]byte
	var asm Assembler

	for {
		if ctx.Err() != nil {
			if c, ok := asm.Flush(); ok {
				select {
				case out <- c:
				case <-time.After(0):
				}
			}
			return nil
		}

		n, err := unix.Read(d.fd, buf[:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EIO) || errors.Is(err, unix.ENODEV) {
				return ErrDeviceGone
			}
			return fmt.Errorf("diag: read: %w", err)
		}
		if n == 0 {
			continue
		}

		leftover = append(leftover, buf[:n]...)
		var chunks [][]byte
		chunks, leftover = splitFrames(leftover)

		for _, chunk := range chunks {
			if d.sink != nil {
				if err := d.sink.Append(chunk); err != nil {
					return fmt.Errorf("diag: tee to qmdl: %w", err)
				}
			}
			res := hdlc.DecodeAll(chunk)
			for _, r := range res {
				if r.Err != nil {
					d.corruptFrames++
					continue
				}
				item, err := ParseLogItem(r.Frame)
				if err != nil {
					d.decodeDrops++
					continue
				}
				if container, ok := asm.Push(item); ok {
					select {
					case out <- container:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	}
}

// splitFrames slices buf into complete raw frames (each ending at an
// unescaped 0x7e terminator, inclusive) and returns the remaining unframed
// tail. A raw 0x7e byte always marks a genuine boundary: the encoder always
// escapes any 0x7e that appears inside a payload, so no escape-state
// tracking is needed to find boundaries (only to decode what's inside them).
func splitFrames(buf []byte) (chunks [][]byte, tail []byte) {
	start := 0
	for i, b := range buf {
		if b == 0x7e {
			chunks = append(chunks, buf[start:i+1])
			start = i + 1
		}
	}
	tail = append([]byte(nil), buf[start:]...)
	return chunks, tail
}

// Close releases the device fd.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// CorruptFrameCount returns the number of frames dropped due to HDLC framing
// errors since Open, for surfacing as a skipped-message reason.
func (d *Device) CorruptFrameCount() int { return d.corruptFrames }

// DecodeDropCount returns the number of frames that passed HDLC/CRC but
// failed log-item header parsing.
func (d *Device) DecodeDropCount() int { return d.decodeDrops }
