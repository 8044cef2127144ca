package rowstore

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWithMetrics_CountsWrites(t *testing.T) {
	ctx := context.Background()
	mem := NewInMemoryStore()
	m := NewMetrics()
	s := WithMetrics(mem, m)

	_ = s.Insert(ctx, TableWidgets, "id", Row{"id": 1, "x": 0})
	_ = s.Update(ctx, TableWidgets, "id", 1, Row{"x": 5})
	mem.FailNext(OpUpdate, errors.New("timeout"))
	_ = s.Update(ctx, TableWidgets, "id", 1, Row{"x": 6})
	_ = s.Delete(ctx, TableWidgets, "id", 1)

	if got := testutil.ToFloat64(m.writes.WithLabelValues(TableWidgets, OpUpdate)); got != 2 {
		t.Errorf("expected 2 updates, got %v", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues(TableWidgets, OpInsert)); got != 1 {
		t.Errorf("expected 1 insert, got %v", got)
	}
	if got := testutil.ToFloat64(m.writeErrors.WithLabelValues(TableWidgets, OpUpdate)); got != 1 {
		t.Errorf("expected 1 update error, got %v", got)
	}
	if got := testutil.ToFloat64(m.writeErrors.WithLabelValues(TableWidgets, OpDelete)); got != 0 {
		t.Errorf("expected no delete errors, got %v", got)
	}
	if n := testutil.CollectAndCount(m.writeDuration); n != 3 {
		t.Errorf("expected 3 duration series, got %d", n)
	}

	// Reads pass straight through.
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestWithMetrics_NilMetrics(t *testing.T) {
	mem := NewInMemoryStore()
	if s := WithMetrics(mem, nil); s != Store(mem) {
		t.Error("expected the store to be returned unchanged")
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
