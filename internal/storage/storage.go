// Package storage persists store snapshots to local storage.
//
// Every backend stores one named record holding the full snapshot, written
// as a whole on each save so a failed write never leaves a half-updated
// record behind.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"spendbook/internal/core"
)

// DefaultKey is the record name the snapshot is stored under.
const DefaultKey = "expense-store"

var (
	// ErrNotFound means nothing has been persisted yet.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt means a record exists but cannot be decoded.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// Persister loads and saves the full snapshot.
type Persister interface {
	// Load returns the last saved snapshot, ErrNotFound when none was
	// saved yet, or an error wrapping ErrCorrupt when the record is
	// unreadable.
	Load(ctx context.Context) (core.Snapshot, error)

	// Save replaces the stored snapshot. On error the previous record
	// stays intact.
	Save(ctx context.Context, s core.Snapshot) error

	// Close releases any resources held by the persister.
	Close() error
}

// Encode serializes a snapshot to its persisted JSON form.
func Encode(s core.Snapshot) ([]byte, error) {
	if s.Expenses == nil {
		s.Expenses = []core.Expense{}
	}
	if s.Categories == nil {
		s.Categories = []core.Category{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a persisted record. Anything that is not a well-formed
// snapshot with unique ids is reported as ErrCorrupt.
func Decode(data []byte) (core.Snapshot, error) {
	var raw struct {
		Expenses   *[]core.Expense  `json:"expenses"`
		Categories *[]core.Category `json:"categories"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if raw.Categories == nil {
		return core.Snapshot{}, fmt.Errorf("%w: missing categories", ErrCorrupt)
	}
	s := core.Snapshot{Categories: *raw.Categories, Expenses: []core.Expense{}}
	if raw.Expenses != nil && *raw.Expenses != nil {
		s.Expenses = *raw.Expenses
	}
	if s.Categories == nil {
		s.Categories = []core.Category{}
	}
	for i := range s.Expenses {
		if s.Expenses[i].CategoryIDs == nil {
			s.Expenses[i].CategoryIDs = []string{}
		}
	}
	if err := s.Check(); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return s, nil
}
