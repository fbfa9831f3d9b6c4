package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"payflow/internal/model"
)

const maxLineSize = 10 * 1024 * 1024

// ScanLogs reads JSONL log records from r and calls fn for each non-empty
// line. A line that fails to parse is passed to fn with a non-nil error; fn
// decides whether to stop by returning an error.
func ScanLogs(r io.Reader, fn func(line int, rec model.LogRecord, err error) error) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			if err := fn(lineNo, model.LogRecord{}, fmt.Errorf("parse log record: %w", err)); err != nil {
				return err
			}
			continue
		}
		if err := fn(lineNo, record, nil); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}
