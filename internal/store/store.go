// Package store persists transcription records for the batch analysis API.
// Two implementations exist: an in-memory store for development and tests,
// and a PostgreSQL store for production deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/orato-ai/orato/internal/analysis"
)

// ErrNotFound is returned when a transcription with the requested ID does
// not exist.
var ErrNotFound = errors.New("store: transcription not found")

// Transcription is one saved transcript plus its optional analysis.
type Transcription struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Duration  float64          `json:"duration"`
	Language  string           `json:"language"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Analysis  *analysis.Result `json:"analysis,omitempty"`
}

// ListOptions controls pagination for [Store.List]. Page numbers are
// 1-based; out-of-range values are normalised by implementations.
type ListOptions struct {
	Page  int
	Limit int
}

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// normalize clamps pagination parameters to sane bounds.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = defaultPage
	}
	if o.Limit < 1 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	return o
}

// Page is one page of transcriptions plus pagination metadata.
type Page struct {
	Items []Transcription `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
	Pages int             `json:"pages"`
}

// Store provides CRUD operations for transcriptions.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new transcription. An empty ID is assigned by the
	// implementation; CreatedAt and UpdatedAt are set on insert.
	Create(ctx context.Context, t *Transcription) error

	// Get retrieves a transcription by ID. Returns [ErrNotFound] if no
	// transcription with the given ID exists.
	Get(ctx context.Context, id string) (*Transcription, error)

	// Update replaces the text and analysis of an existing transcription.
	// Returns [ErrNotFound] if the transcription does not exist.
	Update(ctx context.Context, t *Transcription) error

	// Delete removes a transcription by ID. Returns [ErrNotFound] if the
	// transcription does not exist.
	Delete(ctx context.Context, id string) error

	// List returns one page of transcriptions, newest first.
	List(ctx context.Context, opts ListOptions) (*Page, error)
}

// pageCount computes the number of pages needed for total items at the
// given page size.
func pageCount(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
