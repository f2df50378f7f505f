package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory [Store]. Records are lost on restart; it exists
// for development setups and tests where PostgreSQL is unavailable.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Transcription
	now     func() time.Time
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*Transcription),
		now:     time.Now,
	}
}

func (s *MemStore) Create(_ context.Context, t *Transcription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	cp := *t
	s.records[t.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Transcription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) Update(_ context.Context, t *Transcription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[t.ID]
	if !ok {
		return ErrNotFound
	}
	rec.Text = t.Text
	rec.Duration = t.Duration
	rec.Language = t.Language
	rec.Analysis = t.Analysis
	rec.UpdatedAt = s.now().UTC()

	t.CreatedAt = rec.CreatedAt
	t.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemStore) List(_ context.Context, opts ListOptions) (*Page, error) {
	opts = opts.normalize()

	s.mu.RLock()
	all := make([]Transcription, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, *rec)
	}
	s.mu.RUnlock()

	// Newest first, with ID as tiebreaker for a stable order.
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return &Page{
		Items: all[start:end],
		Page:  opts.Page,
		Limit: opts.Limit,
		Total: total,
		Pages: pageCount(total, opts.Limit),
	}, nil
}
