package qmdl

import (
	"context"
	"io"
	"os"

	"github.com/BeigeBox/rayhunter/diag"
	"github.com/BeigeBox/rayhunter/hdlc"
)

// Reader replays a QMDL file as a sequence of MessagesContainers, identical
// in shape to diag.Device.Stream's output. It is the foundation both of
// offline analysis (package replay) and of the qmdl-replay-determinism
// property test in spec.md §8.
type Reader struct {
	f         *os.File
	knownSize *int64

	corruptFrames int
	decodeDrops   int
}

// Open opens path for reading. If knownSize is non-nil, the reader stops at
// that byte offset even if the underlying file grows further (a concurrent
// writer is still appending); if nil, the reader reads to EOF.
func Open(path string, knownSize *int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{f: f, knownSize: knownSize}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// CorruptFrameCount returns the number of HDLC framing errors seen during
// the most recent Stream call.
func (r *Reader) CorruptFrameCount() int { return r.corruptFrames }

// DecodeDropCount returns the number of frames that passed framing but
// failed log-item header parsing during the most recent Stream call.
func (r *Reader) DecodeDropCount() int { return r.decodeDrops }

// Stream rewinds the file to offset 0 (restartable, per spec.md §4.2) and
// returns a channel of MessagesContainers plus a channel carrying the
// terminal error (nil on clean EOF / known-size exhaustion). The container
// channel is closed once reading stops; the error channel receives exactly
// one value.
func (r *Reader) Stream(ctx context.Context) (<-chan diag.MessagesContainer, <-chan error) {
	out := make(chan diag.MessagesContainer, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		errc <- r.streamLoop(ctx, out)
	}()

	return out, errc
}

func (r *Reader) streamLoop(ctx context.Context, out chan<- diag.MessagesContainer) error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.corruptFrames = 0
	r.decodeDrops = 0

	var src io.Reader = r.f
	if r.knownSize != nil {
		src = io.LimitReader(r.f, *r.knownSize)
	}

	dec := hdlc.NewDecoder(src)
	var asm diag.Assembler

	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := dec.Next()
		if err == io.EOF {
			if c, ok := asm.Flush(); ok {
				select {
				case out <- c:
				case <-ctx.Done():
				}
			}
			return nil
		}
		if err != nil {
			return err
		}
		if res.Err != nil {
			r.corruptFrames++
			continue
		}
		item, err := diag.ParseLogItem(res.Frame)
		if err != nil {
			r.decodeDrops++
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
