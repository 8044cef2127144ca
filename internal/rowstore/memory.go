package rowstore

import (
	"context"
	"fmt"
	"sync"
)

// Operation names recorded by InMemoryStore and used as metric labels.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Call records a single write made against an InMemoryStore.
type Call struct {
	Op        string
	Table     string
	KeyColumn string
	KeyValue  any
	Fields    Row
}

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. It records every write so callers can assert
// exactly which fields were persisted, and can be told to fail a write.
type InMemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Row // table -> key -> row
	calls  []Call
	fail   map[string]error // op -> error returned by the next call of that op
}

// NewInMemoryStore creates a new in-memory row store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tables: make(map[string]map[string]Row),
		fail:   make(map[string]error),
	}
}

// Load returns copies of every row in the table.
func (s *InMemoryStore) Load(ctx context.Context, table string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Row, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		rows = append(rows, row.Clone())
	}
	return rows, nil
}

// Insert stores a new row.
func (s *InMemoryStore) Insert(ctx context.Context, table, keyColumn string, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Op: OpInsert, Table: table, KeyColumn: keyColumn, KeyValue: row[keyColumn], Fields: row.Clone()})
	if err := s.takeFailure(OpInsert); err != nil {
		return err
	}

	keyValue, ok := row[keyColumn]
	if !ok {
		return fmt.Errorf("insert into %s: missing key column %s", table, keyColumn)
	}
	encoded, err := encodeRow(row)
	if err != nil {
		return err
	}

	if s.tables[table] == nil {
		s.tables[table] = make(map[string]Row)
	}
	key := keyString(keyValue)
	if _, exists := s.tables[table][key]; exists {
		return ErrRowExists
	}
	s.tables[table][key] = encoded
	return nil
}

// Update merges fields into an existing row.
func (s *InMemoryStore) Update(ctx context.Context, table, keyColumn string, keyValue any, fields Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Op: OpUpdate, Table: table, KeyColumn: keyColumn, KeyValue: keyValue, Fields: fields.Clone()})
	if err := s.takeFailure(OpUpdate); err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrEmptyFields
	}

	row, ok := s.tables[table][keyString(keyValue)]
	if !ok {
		return ErrRowNotFound
	}
	encoded, err := encodeRow(fields)
	if err != nil {
		return err
	}
	for k, v := range encoded {
		row[k] = v
	}
	return nil
}

// Delete removes a row.
func (s *InMemoryStore) Delete(ctx context.Context, table, keyColumn string, keyValue any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Op: OpDelete, Table: table, KeyColumn: keyColumn, KeyValue: keyValue})
	if err := s.takeFailure(OpDelete); err != nil {
		return err
	}

	key := keyString(keyValue)
	if _, ok := s.tables[table][key]; !ok {
		return ErrRowNotFound
	}
	delete(s.tables[table], key)
	return nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Calls returns a copy of every write recorded so far.
func (s *InMemoryStore) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ResetCalls clears the recorded writes without touching stored rows.
func (s *InMemoryStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// FailNext makes the next write of the given op return err.
func (s *InMemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// Row returns a copy of a stored row, or nil if it does not exist.
func (s *InMemoryStore) Row(table string, keyValue any) Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.tables[table][keyString(keyValue)]
	if !ok {
		return nil
	}
	return row.Clone()
}

// takeFailure must be called with s.mu held.
func (s *InMemoryStore) takeFailure(op string) error {
	err, ok := s.fail[op]
	if !ok {
		return nil
	}
	delete(s.fail, op)
	return err
}
