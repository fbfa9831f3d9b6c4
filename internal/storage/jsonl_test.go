package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/model"
)

func rec(seq uint64) model.LogRecord {
	return model.LogRecord{ChainID: 1, BlockNumber: seq, Topics: []string{"0xaa"}, Data: "0x"}
}

func readAll(t *testing.T, path string) []model.LogRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []model.LogRecord
	require.NoError(t, ScanLogs(f, func(_ int, r model.LogRecord, err error) error {
		require.NoError(t, err)
		out = append(out, r)
		return nil
	}))
	return out
}

func TestJsonlStorageAppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "logs.jsonl")
	s, err := NewJsonlStorage(path)
	require.NoError(t, err)
	assert.Zero(t, s.LastSeq())

	require.NoError(t, s.PutLogBatch([]model.LogRecord{rec(1), rec(2)}))
	require.NoError(t, s.PutLogBatch(nil))
	require.NoError(t, s.PutLogBatch([]model.LogRecord{rec(3)}))
	assert.Equal(t, uint64(3), s.LastSeq())

	err = s.PutLogBatch([]model.LogRecord{rec(4), rec(4)})
	require.ErrorIs(t, err, ErrOutOfOrder)
	assert.Len(t, readAll(t, path), 3)

	reopened, err := NewJsonlStorage(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reopened.LastSeq())
	require.ErrorIs(t, reopened.PutLogBatch([]model.LogRecord{rec(2)}), ErrOutOfOrder)

	require.NoError(t, reopened.Reset())
	assert.Zero(t, reopened.LastSeq())
	require.NoError(t, reopened.PutLogBatch([]model.LogRecord{rec(1)}))
	assert.Len(t, readAll(t, path), 1)
}

func TestScanLogsReportsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"block_number":1,"topics":["0xaa"],"data":"0x"}`,
		``,
		`not json`,
		`{"block_number":2,"topics":["0xbb"],"data":"0x"}`,
	}, "\n")

	var seqs []uint64
	var badLines []int
	err := ScanLogs(strings.NewReader(input), func(line int, r model.LogRecord, err error) error {
		if err != nil {
			badLines = append(badLines, line)
			return nil
		}
		seqs = append(seqs, r.Seq())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seqs)
	assert.Equal(t, []int{3}, badLines)

	_, err = NewJsonlStorage(writeFile(t, input))
	require.ErrorContains(t, err, "line 3")
}

func TestJSONLWriterTruncatesUnlessAppending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.jsonl")

	w, err := NewJSONLWriter(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(model.DecodeError{Seq: 1, Error: "boom"}))
	require.NoError(t, w.Close())

	w, err = NewJSONLWriter(path, true)
	require.NoError(t, err)
	require.NoError(t, w.Write(model.DecodeError{Seq: 2, Error: "bang"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	w, err = NewJSONLWriter(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	var nilWriter *JSONLWriter
	require.NoError(t, nilWriter.Write("ignored"))
	require.NoError(t, nilWriter.Close())
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
