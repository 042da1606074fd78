package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/secora-signer-go/pkg/persistence"
)

// MemoryJournal is an in-memory implementation of ISigningJournal.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Records are copied on the way in and out to prevent external mutation.
type MemoryJournal struct {
	mu      sync.RWMutex
	records map[string]*persistence.SigningRecord
	closed  bool
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		records: make(map[string]*persistence.SigningRecord),
	}
}

func (m *MemoryJournal) SaveRecord(record *persistence.SigningRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SigningRecord")
	}
	if record.ID == "" {
		return fmt.Errorf("cannot save SigningRecord without an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	m.records[record.ID] = record.Copy()
	return nil
}

func (m *MemoryJournal) LoadRecord(id string) (*persistence.SigningRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}
	return m.records[id].Copy(), nil
}

func (m *MemoryJournal) ListRecords() ([]*persistence.SigningRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*persistence.SigningRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r.Copy())
	}
	persistence.SortRecords(records)
	return records, nil
}

func (m *MemoryJournal) DeleteRecord(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryJournal) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}
