package widget

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/homelayout/internal/rowstore"
	"github.com/onnwee/homelayout/internal/tracing"
)

// write is one store call and the call that reverses it.
type write struct {
	table string
	key   int
	do    func(context.Context) error
	undo  func(context.Context) error
}

func (m *LayoutManager) insertWrite(table string, key int, row rowstore.Row) write {
	return write{
		table: table,
		key:   key,
		do: func(ctx context.Context) error {
			return m.store.Insert(ctx, table, colID, row)
		},
		undo: func(ctx context.Context) error {
			return m.store.Delete(ctx, table, colID, key)
		},
	}
}

func (m *LayoutManager) updateWrite(table string, key int, fields, previous rowstore.Row) write {
	return write{
		table: table,
		key:   key,
		do: func(ctx context.Context) error {
			return m.store.Update(ctx, table, colID, key, fields)
		},
		undo: func(ctx context.Context) error {
			return m.store.Update(ctx, table, colID, key, previous)
		},
	}
}

func (m *LayoutManager) deleteWrite(table string, key int, previous rowstore.Row) write {
	return write{
		table: table,
		key:   key,
		do: func(ctx context.Context) error {
			return m.store.Delete(ctx, table, colID, key)
		},
		undo: func(ctx context.Context) error {
			return m.store.Insert(ctx, table, colID, previous)
		},
	}
}

// commit runs writes in order. If one fails, the writes that already
// succeeded are reversed newest first and restore puts the in-memory state
// back. Must be called with m.mu held, after the in-memory change was made.
func (m *LayoutManager) commit(ctx context.Context, op string, restore func(), writes ...write) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "layout."+op, attribute.Int("layout.writes", len(writes)))
	defer func() { endSpan(err) }()

	for i, w := range writes {
		err = w.do(ctx)
		if err == nil {
			continue
		}

		for j := i - 1; j >= 0; j-- {
			if uerr := writes[j].undo(ctx); uerr != nil {
				m.logger.Error("failed to reverse layout write",
					slog.String("op", op),
					slog.String("table", writes[j].table),
					slog.Int("key", writes[j].key),
					slog.String("error", uerr.Error()))
			}
		}
		restore()
		tracing.AddEvent(ctx, "layout.rollback",
			attribute.String("table", w.table),
			attribute.Int("reversed_writes", i))
		m.metrics.incRollback()
		m.logger.Error("layout write failed, rolled back",
			slog.String("op", op),
			slog.String("table", w.table),
			slog.Int("key", w.key),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to persist %s: %w", op, err)
	}

	m.metrics.incMutation(op)
	m.logger.Debug("layout updated", slog.String("op", op))
	return nil
}
