package valuation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeEvent writes e as a single JSON line.
func EncodeEvent(w io.Writer, e PortfolioEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cannot marshal event %q: %w", e.ID, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("cannot write event %q: %w", e.ID, err)
	}
	return nil
}

// EncodeEvents orders events by time and id, then writes them in JSONL
// format, one event per line.
func EncodeEvents(w io.Writer, events []PortfolioEvent) error {
	sorted := make([]PortfolioEvent, len(events))
	copy(sorted, events)
	SortRecords(sorted)
	for _, e := range sorted {
		if err := EncodeEvent(w, e); err != nil {
			return err
		}
	}
	return nil
}

// DecodeEvents reads events in JSONL format. Empty lines are skipped.
// Events are not validated.
func DecodeEvents(r io.Reader) ([]PortfolioEvent, error) {
	var events []PortfolioEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e PortfolioEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("line %d: cannot decode event %q: %w", n, line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read events: %w", err)
	}
	return events, nil
}
