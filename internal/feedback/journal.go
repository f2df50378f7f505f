package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// JournalEntry is a single line written to the journal file. It wraps a
// [Record] with the session it belongs to and when it was generated.
type JournalEntry struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	Record    Record    `json:"record"`
}

// Journal persists feedback records as append-only JSON lines in a local
// file. Thread-safe for concurrent use.
//
// For multi-instance deployments this should be replaced with a
// database-backed implementation.
type Journal struct {
	mu   sync.Mutex
	path string
}

// NewJournal creates a Journal that writes to the given path.
// The file is created on first append if it does not exist.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Append writes one record to the journal. source identifies which tier
// produced the record (e.g. "model", "stats", "unavailable").
func (j *Journal) Append(sessionID, source string, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := JournalEntry{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Source:    source,
		Record:    rec,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write journal: %w", err)
	}
	return nil
}
