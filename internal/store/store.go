// Package store keeps the records behind the /data endpoints.
//
// A record is identified only by its current position. Deleting record i
// moves every later record down by one.
package store

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrNotFound is returned for an index outside the store.
var ErrNotFound = errors.New("record not found")

// Store is an ordered, process-lifetime collection of JSON values. Every
// operation runs under one mutex.
type Store struct {
	mu      sync.Mutex
	records []json.RawMessage
}

func New() *Store {
	return &Store{}
}

// Append adds a copy of rec at the end and returns its index.
func (s *Store) Append(rec json.RawMessage) int {
	cp := append(json.RawMessage(nil), rec...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, cp)
	return len(s.records) - 1
}

// List returns a snapshot of all records in order. The slice is never nil.
func (s *Store) List() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]json.RawMessage, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record at index.
func (s *Store) Get(index int) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return nil, ErrNotFound
	}
	return s.records[index], nil
}

// Delete removes the record at index.
func (s *Store) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return ErrNotFound
	}
	s.records = append(s.records[:index], s.records[index+1:]...)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
