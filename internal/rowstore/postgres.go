package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/onnwee/homelayout/internal/tracing"
)

// knownTables restricts which tables the SQL backend will touch.
var knownTables = map[string]bool{
	TableLocations:   true,
	TableWidgetPages: true,
	TableWidgets:     true,
}

// PostgresStore implements Store on PostgreSQL via database/sql and lib/pq.
// Compound values are written to jsonb columns as JSON text.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenPostgres opens a connection pool for the given DSN and verifies it.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStore(db, logger), nil
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load selects every row of a table.
func (s *PostgresStore) Load(ctx context.Context, table string) (_ []Row, err error) {
	if !knownTables[table] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemPostgres, table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+pq.QuoteIdentifier(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}
	return out, nil
}

// Insert adds a row with a single INSERT statement.
func (s *PostgresStore) Insert(ctx context.Context, table, keyColumn string, row Row) (err error) {
	if !knownTables[table] {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if _, ok := row[keyColumn]; !ok {
		return fmt.Errorf("insert into %s: missing key column %s", table, keyColumn)
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemPostgres, table, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	encoded, err := encodeRow(row)
	if err != nil {
		return err
	}
	columns := sortedColumns(encoded)

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = encoded[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrRowExists
		}
		s.logger.Error("failed to insert row",
			slog.String("table", table),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// Update writes exactly the given fields to the keyed row.
func (s *PostgresStore) Update(ctx context.Context, table, keyColumn string, keyValue any, fields Row) (err error) {
	if !knownTables[table] {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if len(fields) == 0 {
		return ErrEmptyFields
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemPostgres, table, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	encoded, err := encodeRow(fields)
	if err != nil {
		return err
	}
	columns := sortedColumns(encoded)

	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+1)
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
		args = append(args, encoded[col])
	}
	args = append(args, keyValue)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), pq.QuoteIdentifier(keyColumn), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to update row",
			slog.String("table", table),
			slog.Any("key", keyValue),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	return checkAffected(res)
}

// Delete removes the keyed row.
func (s *PostgresStore) Delete(ctx context.Context, table, keyColumn string, keyValue any) (err error) {
	if !knownTables[table] {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemPostgres, table, tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", pq.QuoteIdentifier(table), pq.QuoteIdentifier(keyColumn))
	res, err := s.db.ExecContext(ctx, query, keyValue)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return checkAffected(res)
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrRowNotFound
	}
	return nil
}

func sortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
