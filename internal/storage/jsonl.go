package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"payflow/internal/model"
)

// ErrOutOfOrder is returned when a record does not extend the log.
var ErrOutOfOrder = errors.New("storage: record sequence out of order")

// JsonlStorage appends log records to a JSONL file. Sequence numbers must
// strictly increase across the whole file.
type JsonlStorage struct {
	path    string
	mu      sync.Mutex
	lastSeq uint64
}

// NewJsonlStorage opens path for appending. An existing file is scanned so
// new records continue after its last sequence number.
func NewJsonlStorage(path string) (*JsonlStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	s := &JsonlStorage{path: path}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	err = ScanLogs(f, func(line int, rec model.LogRecord, err error) error {
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		s.lastSeq = rec.Seq()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan existing log: %w", err)
	}
	return s, nil
}

// LastSeq returns the sequence number of the last stored record.
func (s *JsonlStorage) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// Reset truncates the file.
func (s *JsonlStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove output file: %w", err)
	}
	s.lastSeq = 0
	return nil
}

// PutLogBatch appends a batch of log records as JSON lines. The batch is
// rejected whole if any record would not extend the log.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.lastSeq
	for _, record := range logs {
		if record.Seq() <= last {
			return fmt.Errorf("%w: seq %d after %d", ErrOutOfOrder, record.Seq(), last)
		}
		last = record.Seq()
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range logs {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal log record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write log record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	s.lastSeq = last
	return nil
}
