package memory

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/attache/attache/pkg/fault"
)

// ShortTermLog is the append-only JSON-lines conversation log. One writer per
// workspace; appends go through O_APPEND plus an fsync so a crash can lose at
// most the record being written, never corrupt earlier ones.
type ShortTermLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenShortTermLog opens (or creates) the log file.
func OpenShortTermLog(path string) (*ShortTermLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fault.Fatal("create memory directory: %v", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fault.Fatal("open short-term log: %v", err)
	}
	return &ShortTermLog{path: path, file: file}, nil
}

// Append assigns the record an ID and timestamp and writes it as one JSON
// line. The returned record carries the assigned fields.
func (l *ShortTermLog) Append(record Record) (Record, error) {
	record.ID = ulid.Make().String()
	record.Timestamp = time.Now().UTC()

	data, err := json.Marshal(record)
	if err != nil {
		return Record{}, fault.Fatal("marshal short-term record: %v", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(data); err != nil {
		return Record{}, fault.Fatal("append short-term record: %v", err)
	}
	if err := l.file.Sync(); err != nil {
		return Record{}, fault.Fatal("sync short-term log: %v", err)
	}
	return record, nil
}

// All returns every record in append order. Truncated or malformed trailing
// lines (a crash mid-append) are skipped, never fatal.
func (l *ShortTermLog) All() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAll()
}

func (l *ShortTermLog) readAll() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fault.Fatal("open short-term log: %v", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fault.Fatal("read short-term log: %v", err)
	}
	return records, nil
}

// Last returns the most recent n records whose timestamp falls within the
// window, oldest first. A zero window means no time bound.
func (l *ShortTermLog) Last(n int, window time.Duration) ([]Record, error) {
	records, err := l.All()
	if err != nil {
		return nil, err
	}

	if window > 0 {
		cutoff := time.Now().UTC().Add(-window)
		kept := records[:0]
		for _, record := range records {
			if !record.Timestamp.Before(cutoff) {
				kept = append(kept, record)
			}
		}
		records = kept
	}

	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// Get returns the record at a zero-based append index.
func (l *ShortTermLog) Get(index int) (Record, error) {
	records, err := l.All()
	if err != nil {
		return Record{}, err
	}
	if index < 0 || index >= len(records) {
		return Record{}, fault.BadInput("short-term index %d out of range [0,%d)", index, len(records))
	}
	return records[index], nil
}

// Len returns the number of readable records.
func (l *ShortTermLog) Len() (int, error) {
	records, err := l.All()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Compact rewrites the log keeping only the newest keep records, using a
// temp-file rename so readers never observe a half-written file.
func (l *ShortTermLog) Compact(keep int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readAll()
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	if len(records) > keep {
		records = records[len(records)-keep:]
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".short_term-*.jsonl")
	if err != nil {
		return fault.Fatal("create compaction temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	writer := bufio.NewWriter(tmp)
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			tmp.Close()
			return fault.Fatal("marshal record during compaction: %v", err)
		}
		data = append(data, '\n')
		if _, err := writer.Write(data); err != nil {
			tmp.Close()
			return fault.Fatal("write compacted log: %v", err)
		}
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return fault.Fatal("flush compacted log: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fault.Fatal("sync compacted log: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fault.Fatal("close compacted log: %v", err)
	}

	l.file.Close()
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fault.Fatal("swap compacted log: %v", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fault.Fatal("reopen short-term log: %v", err)
	}
	l.file = file
	return nil
}

// Close flushes and closes the underlying file.
func (l *ShortTermLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
