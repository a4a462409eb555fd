package eventlog

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/golang/snappy"

	"echo/identifier"
)

// Journal mirrors every novel Set onto an append-only, Snappy-compressed
// JSONL file, grounded on the teacher's replay.Writer/Loader pair: a single
// sequential append stream, flushed per record, with the in-memory *Log
// remaining the authoritative structure the FSMs and runtime observe. It
// is the append-ordered storage spec.md §6 says implementations "may"
// provide for a PersistentEventLog; nothing in the core depends on it.
type Journal struct {
	mu     sync.Mutex
	file   *os.File
	writer *snappy.Writer
}

type journalRecord struct {
	Seq  identifier.Seq  `json:"seq"`
	Site identifier.Site `json:"site"`
	Body string          `json:"body"` // base64 of the raw event bytes
}

// OpenJournal opens (creating if necessary) a Snappy-framed append journal
// at path.
func OpenJournal(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{file: file, writer: snappy.NewBufferedWriter(file)}, nil
}

// Append records a single novel (seq, site, body) write. Callers are
// expected to invoke Append only for writes eventlog.Log.Set reported as
// novel, keeping the journal free of the log's own idempotent no-ops.
func (j *Journal) Append(seq identifier.Seq, site identifier.Site, body []byte) error {
	if j == nil {
		return nil
	}
	record := journalRecord{Seq: seq, Site: site, Body: base64.StdEncoding.EncodeToString(body)}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.writer.Write(line); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}
	return j.writer.Flush()
}

// Close flushes and releases the underlying file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Close(); err != nil {
		_ = j.file.Close()
		return err
	}
	return j.file.Close()
}

// LoadJournal rehydrates a Log[json.RawMessage] by replaying every record
// previously written to the journal at path, in file order. Since the
// journal only ever records novel writes, replaying it in order reproduces
// the same Log a live site would have accumulated.
func LoadJournal(path string) (*Log[json.RawMessage], error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New[json.RawMessage](), nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	log := New[json.RawMessage]()
	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var record journalRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("unmarshal journal record: %w", err)
		}
		body, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			return nil, fmt.Errorf("decode journal record body: %w", err)
		}
		log, _ = log.Set(record.Seq, record.Site, json.RawMessage(body))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return log, nil
}
