package widget

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/homelayout/internal/rowstore"
)

var errStoreDown = errors.New("store down")

type recordingNotifier struct {
	events []LayoutEvent
}

func (n *recordingNotifier) Publish(ev LayoutEvent) {
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []EventType {
	out := make([]EventType, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	err := reg.Register(WidgetType{
		SkillName:  "weatherSkill",
		WidgetName: "WeatherWidget",
		DefaultW:   400,
		DefaultH:   250,
		Configs:    OptionSpec{"city": KindString, "units": KindString},
		Functions: map[string]FunctionHandler{
			"describe": func(ctx context.Context, c Call) (any, error) {
				return map[string]any{"city": c.Widget.Configs["city"], "verbose": c.Args["verbose"]}, nil
			},
			"explode": func(ctx context.Context, c Call) (any, error) {
				return nil, errors.New("boom")
			},
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register(WidgetType{SkillName: "AliceCore", WidgetName: "Clock"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return reg
}

type fixture struct {
	mgr      *LayoutManager
	store    *rowstore.InMemoryStore
	notifier *recordingNotifier
	metrics  *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    rowstore.NewInMemoryStore(),
		notifier: &recordingNotifier{},
		metrics:  NewMetrics(),
	}
	f.mgr = NewLayoutManager(ManagerConfig{
		Store:    f.store,
		Types:    testRegistry(t),
		Notifier: f.notifier,
		Metrics:  f.metrics,
	})
	if err := f.mgr.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	f.store.ResetCalls()
	return f
}

func (f *fixture) addPage(t *testing.T) *Page {
	t.Helper()
	p, err := f.mgr.AddPage(context.Background())
	if err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}
	return p
}

func (f *fixture) addWeather(t *testing.T, pageID int) *Instance {
	t.Helper()
	w, err := f.mgr.AddWidget(context.Background(), "weatherSkill", "WeatherWidget", pageID)
	if err != nil {
		t.Fatalf("AddWidget failed: %v", err)
	}
	return w
}

func TestLayoutManager_LoadCreatesDefaultPage(t *testing.T) {
	store := rowstore.NewInMemoryStore()
	mgr := NewLayoutManager(ManagerConfig{Store: store, Types: NewRegistry()})
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	pages := mgr.Pages()
	if len(pages) != 1 || pages[0].ID != DefaultPageID {
		t.Fatalf("expected only the default page, got %+v", pages)
	}
	if pages[0].Icon != DefaultPageIcon {
		t.Errorf("expected icon %q, got %q", DefaultPageIcon, pages[0].Icon)
	}
	if store.Row(rowstore.TableWidgetPages, DefaultPageID) == nil {
		t.Error("expected default page row to be stored")
	}
}

func TestLayoutManager_PageWidgetScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	page := f.addPage(t)
	if page.ID == DefaultPageID {
		t.Fatal("new page must not use the default page id")
	}
	if page.ID != 1 {
		t.Errorf("expected first page id 1, got %d", page.ID)
	}

	w := f.addWeather(t, page.ID)
	if w.PageID != page.ID {
		t.Errorf("expected pageId %d, got %d", page.ID, w.PageID)
	}
	if w.X != 0 || w.Y != 0 {
		t.Errorf("expected position 0,0, got %d,%d", w.X, w.Y)
	}
	if w.W != 400 || w.H != 250 {
		t.Errorf("expected type default size 400x250, got %dx%d", w.W, w.H)
	}
	if len(w.Settings) != 0 || len(w.Configs) != 0 {
		t.Errorf("expected empty settings and configs, got %v %v", w.Settings, w.Configs)
	}
	got, _ := f.mgr.GetPage(page.ID)
	if !reflect.DeepEqual(got.Widgets, []int{w.ID}) {
		t.Errorf("expected page order [%d], got %v", w.ID, got.Widgets)
	}

	if err := f.mgr.RemoveWidget(ctx, w.ID); err != nil {
		t.Fatalf("RemoveWidget failed: %v", err)
	}
	got, _ = f.mgr.GetPage(page.ID)
	if len(got.Widgets) != 0 {
		t.Errorf("expected empty page order, got %v", got.Widgets)
	}
	if _, ok := f.mgr.GetWidgetInstance(w.ID); ok {
		t.Error("expected widget to be absent after removal")
	}
	if f.store.Row(rowstore.TableWidgets, w.ID) != nil {
		t.Error("expected widget row to be deleted")
	}

	want := []EventType{EventPageAdded, EventWidgetAdded, EventWidgetRemoved}
	if !reflect.DeepEqual(f.notifier.types(), want) {
		t.Errorf("expected events %v, got %v", want, f.notifier.types())
	}
}

func TestLayoutManager_AddWidgetErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.mgr.AddWidget(ctx, "weatherSkill", "WeatherWidget", 42); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
	if _, err := f.mgr.AddWidget(ctx, "weatherSkill", "Radar", DefaultPageID); !errors.Is(err, ErrUnknownWidgetType) {
		t.Errorf("expected ErrUnknownWidgetType, got %v", err)
	}
	if calls := f.store.Calls(); len(calls) != 0 {
		t.Errorf("expected no store calls, got %d", len(calls))
	}
}

func TestLayoutManager_AddWidgetRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.FailNext(rowstore.OpUpdate, errStoreDown)
	if _, err := f.mgr.AddWidget(ctx, "AliceCore", "Clock", DefaultPageID); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}

	if len(f.mgr.Widgets()) != 0 {
		t.Error("expected no widgets after rollback")
	}
	page, _ := f.mgr.GetPage(DefaultPageID)
	if len(page.Widgets) != 0 {
		t.Errorf("expected default page order unchanged, got %v", page.Widgets)
	}
	if f.store.Row(rowstore.TableWidgets, 1) != nil {
		t.Error("expected inserted widget row to be reversed")
	}
	if got := testutil.ToFloat64(f.metrics.rollbacks); got != 1 {
		t.Errorf("expected 1 rollback, got %v", got)
	}
	if len(f.notifier.events) != 0 {
		t.Errorf("expected no events, got %v", f.notifier.types())
	}

	// The id is reused once the add succeeds.
	w, err := f.mgr.AddWidget(ctx, "AliceCore", "Clock", DefaultPageID)
	if err != nil {
		t.Fatalf("AddWidget failed: %v", err)
	}
	if w.ID != 1 {
		t.Errorf("expected id 1, got %d", w.ID)
	}
	if w.W != DefaultWidth || w.H != DefaultHeight {
		t.Errorf("expected default size, got %dx%d", w.W, w.H)
	}
}

func TestLayoutManager_SaveWidgetPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.addWeather(t, DefaultPageID)

	t.Run("unknown widget", func(t *testing.T) {
		f.store.ResetCalls()
		if f.mgr.SaveWidgetPosition(ctx, 999, 10, 10) {
			t.Error("expected false for unknown widget")
		}
		if calls := f.store.Calls(); len(calls) != 0 {
			t.Errorf("expected no store calls, got %+v", calls)
		}
	})

	t.Run("persists x and y only", func(t *testing.T) {
		f.store.ResetCalls()
		if !f.mgr.SaveWidgetPosition(ctx, w.ID, 30, 40) {
			t.Fatal("expected true")
		}
		calls := f.store.Calls()
		if len(calls) != 1 {
			t.Fatalf("expected 1 store call, got %d", len(calls))
		}
		if !reflect.DeepEqual(calls[0].Fields, rowstore.Row{"x": 30, "y": 40}) {
			t.Errorf("unexpected fields %v", calls[0].Fields)
		}
		got, _ := f.mgr.GetWidgetInstance(w.ID)
		if got.X != 30 || got.Y != 40 {
			t.Errorf("expected 30,40, got %d,%d", got.X, got.Y)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f.store.FailNext(rowstore.OpUpdate, errStoreDown)
		if f.mgr.SaveWidgetPosition(ctx, w.ID, 1, 2) {
			t.Error("expected false on store failure")
		}
		got, _ := f.mgr.GetWidgetInstance(w.ID)
		if got.X != 30 || got.Y != 40 {
			t.Errorf("expected position restored to 30,40, got %d,%d", got.X, got.Y)
		}
	})

	if got := testutil.ToFloat64(f.metrics.softFailures.WithLabelValues(OpSavePosition)); got != 2 {
		t.Errorf("expected 2 soft failures, got %v", got)
	}
}

func TestLayoutManager_SaveWidgetSize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.addWeather(t, DefaultPageID)

	tests := []struct {
		name          string
		id            int
		width, height int
		want          bool
	}{
		{"negative height", w.ID, 100, -5, false},
		{"zero width", w.ID, 0, 100, false},
		{"unknown widget", 999, 100, 100, false},
		{"valid", w.ID, 120, 80, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := f.mgr.GetWidgetInstance(w.ID)
			f.store.ResetCalls()

			if got := f.mgr.SaveWidgetSize(ctx, tt.id, 5, 6, tt.width, tt.height); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}

			after, _ := f.mgr.GetWidgetInstance(w.ID)
			stored := f.store.Row(rowstore.TableWidgets, w.ID)
			if !tt.want {
				if after.W != before.W || after.H != before.H {
					t.Errorf("expected size unchanged at %dx%d, got %dx%d", before.W, before.H, after.W, after.H)
				}
				if len(f.store.Calls()) != 0 {
					t.Error("expected no store calls")
				}
				if stored["h"] != before.H {
					t.Errorf("expected stored h %d, got %v", before.H, stored["h"])
				}
				return
			}
			if after.W != tt.width || after.H != tt.height || after.X != 5 || after.Y != 6 {
				t.Errorf("unexpected geometry %+v", after)
			}
			calls := f.store.Calls()
			want := rowstore.Row{"x": 5, "y": 6, "w": tt.width, "h": tt.height}
			if len(calls) != 1 || !reflect.DeepEqual(calls[0].Fields, want) {
				t.Errorf("expected single update %v, got %+v", want, calls)
			}
		})
	}
}

func TestLayoutManager_SaveWidgetSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.addWeather(t, DefaultPageID)

	if _, err := f.mgr.SaveWidgetSettings(ctx, w.ID, map[string]any{"color": "red", "fontSize": float64(14)}); err != nil {
		t.Fatalf("SaveWidgetSettings failed: %v", err)
	}
	got, err := f.mgr.SaveWidgetSettings(ctx, w.ID, map[string]any{"titlebar": false})
	if err != nil {
		t.Fatalf("SaveWidgetSettings failed: %v", err)
	}
	if !reflect.DeepEqual(got.Settings, Options{"titlebar": false}) {
		t.Errorf("expected settings replaced wholesale, got %v", got.Settings)
	}

	if _, err := f.mgr.SaveWidgetSettings(ctx, w.ID, map[string]any{"sparkles": true}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
	if _, err := f.mgr.SaveWidgetSettings(ctx, 999, map[string]any{}); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("expected ErrWidgetNotFound, got %v", err)
	}

	f.store.FailNext(rowstore.OpUpdate, errStoreDown)
	if _, err := f.mgr.SaveWidgetSettings(ctx, w.ID, map[string]any{"z": 3}); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	after, _ := f.mgr.GetWidgetInstance(w.ID)
	if !reflect.DeepEqual(after.Settings, Options{"titlebar": false}) {
		t.Errorf("expected settings restored, got %v", after.Settings)
	}
}

func TestLayoutManager_SaveWidgetConfigs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.addWeather(t, DefaultPageID)

	got, err := f.mgr.SaveWidgetConfigs(ctx, w.ID, map[string]any{"city": "Oslo", "units": "metric"})
	if err != nil {
		t.Fatalf("SaveWidgetConfigs failed: %v", err)
	}
	if got.Configs["city"] != "Oslo" {
		t.Errorf("expected city Oslo, got %v", got.Configs["city"])
	}
	if _, err := f.mgr.SaveWidgetConfigs(ctx, w.ID, map[string]any{"city": 7}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
	if _, err := f.mgr.SaveWidgetConfigs(ctx, 999, nil); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("expected ErrWidgetNotFound, got %v", err)
	}

	// Settings and configs are separate namespaces.
	after, _ := f.mgr.GetWidgetInstance(w.ID)
	if len(after.Settings) != 0 {
		t.Errorf("expected settings untouched, got %v", after.Settings)
	}
}

func TestLayoutManager_SaveWidgetOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.addWeather(t, DefaultPageID)
	if _, err := f.mgr.SaveWidgetOptions(ctx, w.ID, map[string]any{"color": "blue"}, map[string]any{"city": "Oslo"}); err != nil {
		t.Fatalf("SaveWidgetOptions failed: %v", err)
	}
	f.store.ResetCalls()

	// Invalid configs must not leave valid settings behind.
	_, err := f.mgr.SaveWidgetOptions(ctx, w.ID, map[string]any{"color": "red"}, map[string]any{"bogus": 1})
	if !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	got, _ := f.mgr.GetWidgetInstance(w.ID)
	if got.Settings["color"] != "blue" || got.Configs["city"] != "Oslo" {
		t.Errorf("expected options unchanged, got settings=%v configs=%v", got.Settings, got.Configs)
	}
	if n := len(f.store.Calls()); n != 0 {
		t.Errorf("expected no store calls for a rejected update, got %d", n)
	}

	// A store failure restores both namespaces.
	f.store.FailNext(rowstore.OpUpdate, errStoreDown)
	if _, err := f.mgr.SaveWidgetOptions(ctx, w.ID, map[string]any{"color": "red"}, map[string]any{"city": "Lima"}); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	got, _ = f.mgr.GetWidgetInstance(w.ID)
	if got.Settings["color"] != "blue" || got.Configs["city"] != "Oslo" {
		t.Errorf("expected options restored, got settings=%v configs=%v", got.Settings, got.Configs)
	}
	f.store.ResetCalls()

	got, err = f.mgr.SaveWidgetOptions(ctx, w.ID, map[string]any{"color": "red"}, map[string]any{"city": "Lima"})
	if err != nil {
		t.Fatalf("SaveWidgetOptions failed: %v", err)
	}
	calls := f.store.Calls()
	if len(calls) != 1 || len(calls[0].Fields) != 2 {
		t.Fatalf("expected one update with settings and configs, got %+v", calls)
	}
	if got.Settings["color"] != "red" || got.Configs["city"] != "Lima" {
		t.Errorf("unexpected options settings=%v configs=%v", got.Settings, got.Configs)
	}

	// A nil map leaves that namespace alone.
	f.store.ResetCalls()
	if got, err = f.mgr.SaveWidgetOptions(ctx, w.ID, nil, map[string]any{"units": "metric"}); err != nil {
		t.Fatalf("SaveWidgetOptions failed: %v", err)
	}
	if got.Settings["color"] != "red" {
		t.Errorf("expected settings kept, got %v", got.Settings)
	}
	if calls := f.store.Calls(); len(calls) != 1 || len(calls[0].Fields) != 1 {
		t.Errorf("expected a configs-only update, got %+v", calls)
	}
}

func TestLayoutManager_RemovePage(t *testing.T) {
	ctx := context.Background()

	t.Run("default page is protected", func(t *testing.T) {
		f := newFixture(t)
		f.addWeather(t, DefaultPageID)
		if err := f.mgr.RemovePage(ctx, DefaultPageID); !errors.Is(err, ErrProtectedPage) {
			t.Errorf("expected ErrProtectedPage, got %v", err)
		}
		if _, err := f.mgr.GetPage(DefaultPageID); err != nil {
			t.Errorf("default page must survive: %v", err)
		}
	})

	t.Run("unknown page", func(t *testing.T) {
		f := newFixture(t)
		if err := f.mgr.RemovePage(ctx, 7); !errors.Is(err, ErrPageNotFound) {
			t.Errorf("expected ErrPageNotFound, got %v", err)
		}
	})

	t.Run("widgets move to default page", func(t *testing.T) {
		f := newFixture(t)
		keep := f.addWeather(t, DefaultPageID)
		page := f.addPage(t)
		a := f.addWeather(t, page.ID)
		b := f.addWeather(t, page.ID)

		if err := f.mgr.RemovePage(ctx, page.ID); err != nil {
			t.Fatalf("RemovePage failed: %v", err)
		}
		def, _ := f.mgr.GetPage(DefaultPageID)
		if !reflect.DeepEqual(def.Widgets, []int{keep.ID, a.ID, b.ID}) {
			t.Errorf("unexpected default page order %v", def.Widgets)
		}
		for _, id := range []int{a.ID, b.ID} {
			w, _ := f.mgr.GetWidgetInstance(id)
			if w.PageID != DefaultPageID {
				t.Errorf("widget %d: expected page 0, got %d", id, w.PageID)
			}
		}
		if f.store.Row(rowstore.TableWidgetPages, page.ID) != nil {
			t.Error("expected page row deleted")
		}
	})

	t.Run("store failure restores everything", func(t *testing.T) {
		f := newFixture(t)
		page := f.addPage(t)
		a := f.addWeather(t, page.ID)

		f.store.FailNext(rowstore.OpDelete, errStoreDown)
		if err := f.mgr.RemovePage(ctx, page.ID); !errors.Is(err, errStoreDown) {
			t.Fatalf("expected store error, got %v", err)
		}
		if _, err := f.mgr.GetPage(page.ID); err != nil {
			t.Errorf("expected page restored: %v", err)
		}
		w, _ := f.mgr.GetWidgetInstance(a.ID)
		if w.PageID != page.ID {
			t.Errorf("expected widget back on page %d, got %d", page.ID, w.PageID)
		}
		if pid, _ := rowstore.Int(f.store.Row(rowstore.TableWidgets, a.ID), "page_id"); pid != page.ID {
			t.Errorf("expected stored page_id reversed to %d, got %d", page.ID, pid)
		}
		def, _ := f.mgr.GetPage(DefaultPageID)
		if len(def.Widgets) != 0 {
			t.Errorf("expected default page order restored, got %v", def.Widgets)
		}
	})
}

func TestLayoutManager_UpdatePageIcon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	page := f.addPage(t)

	f.store.ResetCalls()
	got, err := f.mgr.UpdatePageIcon(ctx, page.ID, "fas fa-home")
	if err != nil {
		t.Fatalf("UpdatePageIcon failed: %v", err)
	}
	if got.Icon != "fas fa-home" {
		t.Errorf("expected new icon, got %q", got.Icon)
	}
	calls := f.store.Calls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].Fields, rowstore.Row{"icon": "fas fa-home"}) {
		t.Errorf("expected single {icon} update, got %+v", calls)
	}
	if _, err := f.mgr.UpdatePageIcon(ctx, 99, "x"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestLayoutManager_MoveWidget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	page := f.addPage(t)
	w := f.addWeather(t, DefaultPageID)

	moved, err := f.mgr.MoveWidget(ctx, w.ID, page.ID)
	if err != nil {
		t.Fatalf("MoveWidget failed: %v", err)
	}
	if moved.PageID != page.ID {
		t.Errorf("expected page %d, got %d", page.ID, moved.PageID)
	}
	def, _ := f.mgr.GetPage(DefaultPageID)
	dst, _ := f.mgr.GetPage(page.ID)
	if len(def.Widgets) != 0 || !reflect.DeepEqual(dst.Widgets, []int{w.ID}) {
		t.Errorf("unexpected orders: default %v, target %v", def.Widgets, dst.Widgets)
	}

	if _, err := f.mgr.MoveWidget(ctx, w.ID, 50); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
	if _, err := f.mgr.MoveWidget(ctx, 50, page.ID); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("expected ErrWidgetNotFound, got %v", err)
	}
}

func TestLayoutManager_DispatchWidgetFunction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.addWeather(t, DefaultPageID)
	if _, err := f.mgr.SaveWidgetConfigs(ctx, w.ID, map[string]any{"city": "Lima"}); err != nil {
		t.Fatalf("SaveWidgetConfigs failed: %v", err)
	}

	result, err := f.mgr.DispatchWidgetFunction(ctx, w.ID, "describe", map[string]any{"verbose": true})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	want := map[string]any{"city": "Lima", "verbose": true}
	if !reflect.DeepEqual(result, want) {
		t.Errorf("expected %v, got %v", want, result)
	}

	if _, err := f.mgr.DispatchWidgetFunction(ctx, w.ID, "__init__", nil); !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("expected ErrUnsupportedFunction, got %v", err)
	}
	if _, err := f.mgr.DispatchWidgetFunction(ctx, 404, "describe", nil); !errors.Is(err, ErrWidgetNotFound) {
		t.Errorf("expected ErrWidgetNotFound, got %v", err)
	}
	if _, err := f.mgr.DispatchWidgetFunction(ctx, w.ID, "explode", nil); err == nil {
		t.Error("expected handler error")
	}

	calls := f.metrics.functionCalls
	if got := testutil.ToFloat64(calls.WithLabelValues("weatherSkill", "WeatherWidget", "describe", OutcomeOK)); got != 1 {
		t.Errorf("expected 1 ok call, got %v", got)
	}
	if got := testutil.ToFloat64(calls.WithLabelValues("weatherSkill", "WeatherWidget", "__init__", OutcomeUnsupported)); got != 1 {
		t.Errorf("expected 1 unsupported call, got %v", got)
	}
	if got := testutil.ToFloat64(calls.WithLabelValues("weatherSkill", "WeatherWidget", "explode", OutcomeError)); got != 1 {
		t.Errorf("expected 1 failed call, got %v", got)
	}
}

func TestLayoutManager_LoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	page := f.addPage(t)
	a := f.addWeather(t, page.ID)
	b := f.addWeather(t, page.ID)
	if _, err := f.mgr.SaveWidgetSettings(ctx, a.ID, map[string]any{"fontSize": 12, "backgroundOpacity": 0.5}); err != nil {
		t.Fatalf("SaveWidgetSettings failed: %v", err)
	}
	if _, err := f.mgr.MoveWidget(ctx, a.ID, DefaultPageID); err != nil {
		t.Fatalf("MoveWidget failed: %v", err)
	}
	if _, err := f.mgr.MoveWidget(ctx, a.ID, page.ID); err != nil {
		t.Fatalf("MoveWidget failed: %v", err)
	}

	reloaded := NewLayoutManager(ManagerConfig{Store: f.store, Types: testRegistry(t)})
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, _ := reloaded.GetPage(page.ID)
	if !reflect.DeepEqual(got.Widgets, []int{b.ID, a.ID}) {
		t.Errorf("expected order [%d %d], got %v", b.ID, a.ID, got.Widgets)
	}
	w, _ := reloaded.GetWidgetInstance(a.ID)
	if !reflect.DeepEqual(w.Settings, Options{"fontSize": 12, "backgroundOpacity": 0.5}) {
		t.Errorf("expected settings normalized after reload, got %#v", w.Settings)
	}

	next, err := reloaded.AddPage(ctx)
	if err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}
	if next.ID != page.ID+1 {
		t.Errorf("expected next page id %d, got %d", page.ID+1, next.ID)
	}
}

func TestLayoutManager_LoadRepairsPageOrders(t *testing.T) {
	ctx := context.Background()
	store := rowstore.NewInMemoryStore()
	seed := []struct {
		table string
		row   rowstore.Row
	}{
		{rowstore.TableWidgetPages, rowstore.Row{"id": 0, "icon": "a", "widgets": `[1, 99]`}},
		{rowstore.TableWidgetPages, rowstore.Row{"id": 2, "icon": "b", "widgets": nil}},
		{rowstore.TableWidgets, rowstore.Row{"id": 1, "skill_name": "AliceCore", "widget_name": "Clock", "page_id": 0}},
		{rowstore.TableWidgets, rowstore.Row{"id": 3, "skill_name": "AliceCore", "widget_name": "Clock", "page_id": 2}},
		{rowstore.TableWidgets, rowstore.Row{"id": 4, "skill_name": "AliceCore", "widget_name": "Clock", "page_id": 9}},
	}
	for _, s := range seed {
		if err := store.Insert(ctx, s.table, "id", s.row); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	mgr := NewLayoutManager(ManagerConfig{Store: store, Types: testRegistry(t)})
	if err := mgr.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def, _ := mgr.GetPage(DefaultPageID)
	if !reflect.DeepEqual(def.Widgets, []int{1, 4}) {
		t.Errorf("expected default order [1 4], got %v", def.Widgets)
	}
	second, _ := mgr.GetPage(2)
	if !reflect.DeepEqual(second.Widgets, []int{3}) {
		t.Errorf("expected page 2 order [3], got %v", second.Widgets)
	}
	orphan, _ := mgr.GetWidgetInstance(4)
	if orphan.PageID != DefaultPageID {
		t.Errorf("expected widget 4 on default page, got %d", orphan.PageID)
	}
	if orphan.W != DefaultWidth || orphan.H != DefaultHeight {
		t.Errorf("expected default size for missing geometry, got %dx%d", orphan.W, orphan.H)
	}
	if orphan.Settings == nil || orphan.Configs == nil {
		t.Error("expected non-nil settings and configs")
	}

	var stored []int
	if _, err := rowstore.DecodeJSON(store.Row(rowstore.TableWidgetPages, 0), "widgets", &stored); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(stored, []int{1, 4}) {
		t.Errorf("expected repaired order persisted, got %v", stored)
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	if len(m.Collectors()) != 4 {
		t.Fatalf("expected 4 collectors, got %d", len(m.Collectors()))
	}
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	f := newFixture(t)
	f.addPage(t)
	if got := testutil.ToFloat64(f.metrics.mutations.WithLabelValues(OpAddPage)); got != 1 {
		t.Errorf("expected 1 add_page mutation, got %v", got)
	}
}
