package test_utils

import (
	"context"
	"sync"

	"poll-node/modules/journal"
)

// MockJournal keeps entries in memory. Setting Fail makes the next appends
// return it without storing anything.
type MockJournal struct {
	mu      sync.Mutex
	Entries []journal.Entry
	Fail    error
}

var _ journal.Journal = &MockJournal{}

func NewMockJournal() *MockJournal {
	return &MockJournal{}
}

func (m *MockJournal) Append(ctx context.Context, entry *journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if err := journal.Seal(entry, uint64(len(m.Entries))+1); err != nil {
		return err
	}
	m.Entries = append(m.Entries, *entry)
	return nil
}

func (m *MockJournal) Replay(ctx context.Context, fromSeq uint64, fn func(journal.Entry) error) error {
	m.mu.Lock()
	entries := make([]journal.Entry, len(m.Entries))
	copy(entries, m.Entries)
	m.mu.Unlock()

	for _, e := range entries {
		if e.Seq < fromSeq {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockJournal) Head(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.Entries)), nil
}

func (m *MockJournal) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Entries)
}

func (m *MockJournal) Last() journal.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entries[len(m.Entries)-1]
}
