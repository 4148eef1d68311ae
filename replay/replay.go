// Package replay implements a drop-in substitute for the live DIAG
// transport (package diag) that reads a finished QMDL capture file and
// yields the same MessagesContainer sequence (spec.md §4.8). It is the
// foundation of the replay-determinism property test: for a given (QMDL,
// analyzer set, analyzer versions, config) tuple, the analyzer harness must
// produce byte-identical row sequences whether driven by a live device or
// a replay source.
package replay

import (
	"context"
	"time"

	"github.com/BeigeBox/rayhunter/diag"
	"github.com/BeigeBox/rayhunter/qmdl"
)

// Source replays a finished QMDL file as a finite MessagesContainer stream.
type Source struct {
	reader *qmdl.Reader
	// Speed is a playback-rate multiplier applied to the wall-clock gap
	// between consecutive containers' modem timestamps: 1.0 paces
	// replay at the original capture rate, 2.0 plays twice as fast, 0
	// means "as fast as possible" (no pacing at all), matching spec.md
	// §4.8.
	Speed float64
}

// Open opens path for replay. knownSize optionally bounds the read to a
// prior snapshot (e.g. a manifest entry's qmdl_size_bytes), matching how a
// live recording's concurrent QMDL reader would be bounded.
func Open(path string, knownSize *int64) (*Source, error) {
	r, err := qmdl.Open(path, knownSize)
	if err != nil {
		return nil, err
	}
	return &Source{reader: r}, nil
}

// Close releases the underlying file.
func (s *Source) Close() error { return s.reader.Close() }

// CorruptFrameCount returns the number of HDLC framing errors seen during
// the most recent Stream call, mirroring diag.Device's counter so callers
// can treat the two transports identically.
func (s *Source) CorruptFrameCount() int { return s.reader.CorruptFrameCount() }

// DecodeDropCount returns the number of frames that passed framing but
// failed log-item header parsing during the most recent Stream call.
func (s *Source) DecodeDropCount() int { return s.reader.DecodeDropCount() }

// Stream reproduces diag.Device.Stream's signature: a channel of containers
// and a channel carrying the terminal error (nil on a clean, exhausted
// replay). When Speed is 0 containers are emitted as fast as the consumer
// drains them; otherwise each container is paced to the wall-clock gap
// implied by consecutive containers' modem Timestamps, scaled by Speed.
func (s *Source) Stream(ctx context.Context) (<-chan diag.MessagesContainer, <-chan error) {
	raw, rawErr := s.reader.Stream(ctx)
	if s.Speed <= 0 {
		return raw, rawErr
	}

	out := make(chan diag.MessagesContainer, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		var lastTimestamp time.Time
		var haveLast bool

		for {
			select {
			case c, ok := <-raw:
				if !ok {
					errc <- <-rawErr
					return
				}
				if haveLast {
					gap := time.Duration(float64(c.Timestamp.Sub(lastTimestamp)) / s.Speed)
					if gap > 0 {
						select {
						case <-time.After(gap):
						case <-ctx.Done():
							errc <- nil
							return
						}
					}
				}
				lastTimestamp = c.Timestamp
				haveLast = true

				select {
				case out <- c:
				case <-ctx.Done():
					errc <- nil
					return
				}
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
	}()

	return out, errc
}
