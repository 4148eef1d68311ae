package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Row is the parsed form of one report line (after the header).
type Row struct {
	Timestamp string           `json:"timestamp"`
	Skipped   []map[string]any `json:"skipped"`
	Events    []map[string]any `json:"events"`
}

// ReadAll parses a full NDJSON report: the header line followed by zero or
// more row lines. Used by tests and any offline report inspection tool.
func ReadAll(r io.Reader) (Header, []Row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Header{}, nil, err
		}
		return Header{}, nil, fmt.Errorf("report: empty report, expected header line")
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return Header{}, nil, fmt.Errorf("report: parse header: %w", err)
	}

	var rows []Row
	for scanner.Scan() {
		var row Row
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return Header{}, nil, fmt.Errorf("report: parse row: %w", err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return Header{}, nil, err
	}
	return header, rows, nil
}
