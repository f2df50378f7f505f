package feedback

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testRecord() Record {
	return Record{
		Observations:  []string{"a", "b", "c"},
		Improvements:  []string{"slow down"},
		Strengths:     []string{"clear voice"},
		OverallScore:  7,
		QuickTip:      "pause more",
		ProgressNotes: "improving",
	}
}

func TestJournal_Append(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "feedback.jsonl")
	j := NewJournal(path)

	if err := j.Append("sess-1", "model", testRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := j.Append("sess-2", "stats", testRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var entries []JournalEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SessionID != "sess-1" || entries[0].Source != "model" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].SessionID != "sess-2" || entries[1].Source != "stats" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[0].Record.OverallScore != 7 {
		t.Errorf("score = %d, want 7", entries[0].Record.OverallScore)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestRecord_Valid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Record)
		want   bool
	}{
		{"complete", func(*Record) {}, true},
		{"two observations", func(r *Record) { r.Observations = r.Observations[:2] }, false},
		{"no improvements", func(r *Record) { r.Improvements = nil }, false},
		{"no strengths", func(r *Record) { r.Strengths = nil }, false},
		{"score zero", func(r *Record) { r.OverallScore = 0 }, false},
		{"score eleven", func(r *Record) { r.OverallScore = 11 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRecord()
			tt.mutate(&r)
			if got := r.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
