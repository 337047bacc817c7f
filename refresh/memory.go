package refresh

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Records are keyed by value digest and
// the plaintext value is not retained.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[[32]byte]Record
	bySubject map[string]map[[32]byte]struct{}
	cutoffs   map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[[32]byte]Record),
		bySubject: make(map[string]map[[32]byte]struct{}),
		cutoffs:   make(map[string]time.Time),
	}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, rec Record) error {
	key := Digest(rec.Value)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[key]; exists {
		return ErrConflict
	}
	if cutoff, ok := m.cutoffs[rec.SubjectID]; ok && !rec.CreatedAt.After(cutoff) {
		return ErrSubjectRevoked
	}
	rec.Value = ""
	m.records[key] = rec

	idx := m.bySubject[rec.SubjectID]
	if idx == nil {
		idx = make(map[[32]byte]struct{})
		m.bySubject[rec.SubjectID] = idx
	}
	idx[key] = struct{}{}
	return nil
}

// FindByValue implements Store.
func (m *MemoryStore) FindByValue(_ context.Context, value string) (*Record, error) {
	key := Digest(value)

	m.mu.Lock()
	rec, ok := m.records[key]
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	rec.Value = value
	return &rec, nil
}

// MarkUsed implements Store.
func (m *MemoryStore) MarkUsed(_ context.Context, value string, at time.Time) (bool, error) {
	key := Digest(value)

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Used || rec.Revoked {
		return false, nil
	}
	rec.Used = true
	rec.UsedAt = &at
	m.records[key] = rec
	return true, nil
}

// MarkRevoked implements Store.
func (m *MemoryStore) MarkRevoked(_ context.Context, value string, at time.Time) error {
	key := Digest(value)

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	if rec.Revoked {
		return nil
	}
	rec.Revoked = true
	rec.RevokedAt = &at
	m.records[key] = rec
	return nil
}

// RevokeAllForSubject implements Store.
func (m *MemoryStore) RevokeAllForSubject(_ context.Context, subjectID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if at.After(m.cutoffs[subjectID]) {
		m.cutoffs[subjectID] = at
	}

	count := 0
	for key := range m.bySubject[subjectID] {
		rec := m.records[key]
		if rec.Revoked || rec.CreatedAt.After(at) {
			continue
		}
		revokedAt := at
		rec.Revoked = true
		rec.RevokedAt = &revokedAt
		m.records[key] = rec
		count++
	}
	return count, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
