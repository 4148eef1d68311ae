package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/BeigeBox/rayhunter/analysis"
	"github.com/BeigeBox/rayhunter/decode"
	"github.com/BeigeBox/rayhunter/metrics"
)

// eventJSON is the wire shape of one events[] slot.
type eventJSON struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rowJSON is the wire shape of one report row line (spec.md §6).
type rowJSON struct {
	Timestamp time.Time              `json:"timestamp"`
	Skipped   []decode.SkippedReason `json:"skipped"`
	Events    []*eventJSON           `json:"events"`
}

func toRowJSON(row analysis.Row) rowJSON {
	events := make([]*eventJSON, len(row.Events))
	for i, e := range row.Events {
		if e == nil {
			continue
		}
		events[i] = &eventJSON{Type: e.Type.String(), Message: e.Message}
	}
	skipped := row.SkippedReasons
	if skipped == nil {
		skipped = []decode.SkippedReason{}
	}
	return rowJSON{Timestamp: row.Timestamp, Skipped: skipped, Events: events}
}

// writeTask is one line of work for the marshalling goroutine: either a
// row to serialize and append, or (Row == nil) a request to flush and
// signal done via the returned error channel.
type writeTask struct {
	row  *analysis.Row
	done chan<- error
}

// Writer serializes analysis.Rows to NDJSON on a dedicated goroutine,
// mirroring the teacher's saver package's single-marshaller-goroutine
// pattern: producers hand off a Task on a bounded channel and never block
// on I/O themselves.
type Writer struct {
	tasks chan writeTask
	wg    sync.WaitGroup

	mu       sync.Mutex
	writeErr error
}

// NewWriter writes header immediately, then starts the background
// marshalling goroutine that appends subsequent rows written via Write.
func NewWriter(w io.Writer, header Header) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if err := writeLine(bw, header); err != nil {
		return nil, fmt.Errorf("report: write header: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("report: flush header: %w", err)
	}

	rw := &Writer{tasks: make(chan writeTask, 64)}
	rw.wg.Add(1)
	go rw.run(bw)
	return rw, nil
}

func (rw *Writer) run(bw *bufio.Writer) {
	defer rw.wg.Done()
	for task := range rw.tasks {
		if task.row == nil {
			task.done <- bw.Flush()
			continue
		}
		line := toRowJSON(*task.row)
		data, marshalErr := json.Marshal(line)
		err := marshalErr
		if err == nil {
			metrics.RowJSONSizeHistogram.Observe(float64(len(data)))
			data = append(data, '\n')
			_, err = bw.Write(data)
		}
		rw.mu.Lock()
		if err != nil && rw.writeErr == nil {
			rw.writeErr = err
		}
		rw.mu.Unlock()
		metrics.RowsTotal.Inc()
		for _, e := range task.row.Events {
			if e != nil {
				metrics.EventsTotal.WithLabelValues(e.Type.String()).Inc()
			}
		}
		for _, s := range task.row.SkippedReasons {
			metrics.SkippedTotal.WithLabelValues(s.Reason).Inc()
		}
	}
}

// Write enqueues row for serialization. Non-blocking unless the writer's
// internal queue (capacity 64) is full, matching the bounded-backpressure
// model the rest of the pipeline uses.
func (rw *Writer) Write(row analysis.Row) {
	rw.tasks <- writeTask{row: &row}
}

// Flush blocks until every previously enqueued row has been written and
// the underlying writer has been flushed.
func (rw *Writer) Flush() error {
	done := make(chan error, 1)
	rw.tasks <- writeTask{done: done}
	return <-done
}

// Close flushes and stops the marshalling goroutine. Write must not be
// called after Close.
func (rw *Writer) Close() error {
	err := rw.Flush()
	close(rw.tasks)
	rw.wg.Wait()
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if err != nil {
		return err
	}
	return rw.writeErr
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
