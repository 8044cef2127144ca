package rowstore

import (
	"context"
	_ "embed"
	"fmt"
)

// schemaSQL mirrors migrations/000001_create_layout_tables.up.sql.
//
//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the layout tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
