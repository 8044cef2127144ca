// Package rowstore provides the persisted key-row store used by the location
// hierarchy and the widget layout. Callers hand it the exact fields that
// changed on every mutation; it knows nothing about the entities themselves.
package rowstore

import (
	"context"
	"errors"
)

// Table names used by the layout and location subsystems.
const (
	TableLocations   = "locations"
	TableWidgetPages = "widget_pages"
	TableWidgets     = "widgets"
)

// Common errors for row store operations.
var (
	ErrRowNotFound  = errors.New("row not found")
	ErrRowExists    = errors.New("row already exists")
	ErrEmptyFields  = errors.New("no fields to write")
	ErrUnknownTable = errors.New("unknown table")
)

// Row is a single stored record keyed by column name.
// Values are plain scalars, strings, or JSON-encodable structures.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store defines the persistence operations consumed by the managers.
type Store interface {
	// Load returns every row of a table. Order is unspecified.
	Load(ctx context.Context, table string) ([]Row, error)

	// Insert stores a new row. The row must carry keyColumn.
	// Returns ErrRowExists if the key is already present.
	Insert(ctx context.Context, table, keyColumn string, row Row) error

	// Update writes fields to the row whose keyColumn equals keyValue.
	// Returns ErrRowNotFound if no such row exists.
	Update(ctx context.Context, table, keyColumn string, keyValue any, fields Row) error

	// Delete removes the row whose keyColumn equals keyValue.
	// Returns ErrRowNotFound if no such row exists.
	Delete(ctx context.Context, table, keyColumn string, keyValue any) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
