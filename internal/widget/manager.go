package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/homelayout/internal/rowstore"
	"github.com/onnwee/homelayout/internal/tracing"
)

// DefaultPageIcon is used for new pages when no icon is configured.
const DefaultPageIcon = "fas fa-biohazard"

// Operation names used in logs and metrics.
const (
	OpAddWidget      = "add_widget"
	OpRemoveWidget   = "remove_widget"
	OpSavePosition   = "save_position"
	OpSaveSize       = "save_size"
	OpSaveSettings   = "save_settings"
	OpSaveConfigs    = "save_configs"
	OpSaveOptions    = "save_options"
	OpMoveWidget     = "move_widget"
	OpAddPage        = "add_page"
	OpRemovePage     = "remove_page"
	OpUpdatePageIcon = "update_page_icon"
	OpRepair         = "repair"
)

// ManagerConfig holds the collaborators of a LayoutManager.
// Store and Types are required.
type ManagerConfig struct {
	Store           rowstore.Store
	Types           TypeResolver
	Notifier        Notifier
	Metrics         *Metrics
	Logger          *slog.Logger
	DefaultPageIcon string
}

// LayoutManager owns the dashboard pages and the widget instances placed on
// them. Every mutation is applied in memory, then persisted; a failed write
// reverses the earlier writes of the same operation and restores memory.
// One RWMutex serializes writers; lookups run concurrently.
type LayoutManager struct {
	mu       sync.RWMutex
	store    rowstore.Store
	types    TypeResolver
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	icon     string

	pages        map[int]*Page
	widgets      map[int]*Instance
	nextWidgetID int
	nextPageID   int
}

// NewLayoutManager creates a manager holding only the default page.
// Call Load to read the stored layout.
func NewLayoutManager(cfg ManagerConfig) *LayoutManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	icon := cfg.DefaultPageIcon
	if icon == "" {
		icon = DefaultPageIcon
	}
	return &LayoutManager{
		store:        cfg.Store,
		types:        cfg.Types,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		logger:       logger,
		icon:         icon,
		pages:        map[int]*Page{DefaultPageID: {ID: DefaultPageID, Icon: icon}},
		widgets:      make(map[int]*Instance),
		nextWidgetID: 1,
		nextPageID:   DefaultPageID + 1,
	}
}

// Load replaces the in-memory layout with the stored pages and widgets.
// The default page is created if the store has none. Page orders are
// repaired so that every widget appears exactly once, on its own page;
// widgets whose page is gone move to the default page. Repairs are persisted.
func (m *LayoutManager) Load(ctx context.Context) error {
	pageRows, err := m.store.Load(ctx, rowstore.TableWidgetPages)
	if err != nil {
		return fmt.Errorf("failed to load widget pages: %w", err)
	}
	widgetRows, err := m.store.Load(ctx, rowstore.TableWidgets)
	if err != nil {
		return fmt.Errorf("failed to load widgets: %w", err)
	}

	pages := make(map[int]*Page, len(pageRows)+1)
	for _, r := range pageRows {
		p, err := pageFromRow(r)
		if err != nil {
			return fmt.Errorf("failed to decode widget page: %w", err)
		}
		pages[p.ID] = p
	}
	widgets := make(map[int]*Instance, len(widgetRows))
	for _, r := range widgetRows {
		w, err := instanceFromRow(r)
		if err != nil {
			return fmt.Errorf("failed to decode widget: %w", err)
		}
		m.normalizeLoaded(w)
		widgets[w.ID] = w
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := pages[DefaultPageID]; !ok {
		def := &Page{ID: DefaultPageID, Icon: m.icon}
		if err := m.store.Insert(ctx, rowstore.TableWidgetPages, colID, def.row()); err != nil {
			return fmt.Errorf("failed to create default page: %w", err)
		}
		pages[DefaultPageID] = def
	}

	if err := m.repair(ctx, pages, widgets); err != nil {
		return err
	}

	m.pages = pages
	m.widgets = widgets
	m.nextPageID = DefaultPageID + 1
	for id := range pages {
		if id >= m.nextPageID {
			m.nextPageID = id + 1
		}
	}
	m.nextWidgetID = 1
	for id := range widgets {
		if id >= m.nextWidgetID {
			m.nextWidgetID = id + 1
		}
	}

	m.logger.Info("layout loaded",
		slog.Int("pages", len(pages)),
		slog.Int("widgets", len(widgets)))
	return nil
}

// normalizeLoaded narrows stored option values back to their declared kinds.
// Values that no longer validate are kept as stored.
func (m *LayoutManager) normalizeLoaded(w *Instance) {
	if s, err := SettingsSpec.Normalize(w.Settings); err == nil {
		w.Settings = s
	} else {
		m.logger.Warn("stored widget settings do not validate",
			slog.Int("widget_id", w.ID),
			slog.String("error", err.Error()))
	}
	if m.types == nil {
		return
	}
	t, ok := m.types.ResolveWidgetType(w.SkillName, w.WidgetName)
	if !ok {
		return
	}
	if c, err := t.Configs.Normalize(w.Configs); err == nil {
		w.Configs = c
	} else {
		m.logger.Warn("stored widget configs do not validate",
			slog.Int("widget_id", w.ID),
			slog.String("error", err.Error()))
	}
}

// repair makes page orders and widget page ids agree. Must be called with m.mu held.
func (m *LayoutManager) repair(ctx context.Context, pages map[int]*Page, widgets map[int]*Instance) error {
	ids := make([]int, 0, len(widgets))
	for id := range widgets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		w := widgets[id]
		if _, ok := pages[w.PageID]; ok {
			continue
		}
		m.logger.Warn("widget references missing page, moving to default page",
			slog.Int("widget_id", w.ID),
			slog.Int("page_id", w.PageID))
		w.PageID = DefaultPageID
		if err := m.store.Update(ctx, rowstore.TableWidgets, colID, w.ID, rowstore.Row{colPageID: DefaultPageID}); err != nil {
			return fmt.Errorf("failed to repair widget %d: %w", w.ID, err)
		}
	}

	pageIDs := make([]int, 0, len(pages))
	for id := range pages {
		pageIDs = append(pageIDs, id)
	}
	sort.Ints(pageIDs)

	for _, pid := range pageIDs {
		p := pages[pid]
		seen := make(map[int]bool, len(p.Widgets))
		order := make([]int, 0, len(p.Widgets))
		for _, wid := range p.Widgets {
			if w, ok := widgets[wid]; ok && w.PageID == pid && !seen[wid] {
				seen[wid] = true
				order = append(order, wid)
			}
		}
		for _, wid := range ids {
			if widgets[wid].PageID == pid && !seen[wid] {
				seen[wid] = true
				order = append(order, wid)
			}
		}
		if equalOrder(order, p.Widgets) {
			continue
		}
		m.logger.Warn("repairing page widget order", slog.Int("page_id", pid))
		p.Widgets = order
		if err := m.store.Update(ctx, rowstore.TableWidgetPages, colID, pid, rowstore.Row{colWidgets: p.widgetList()}); err != nil {
			return fmt.Errorf("failed to repair page %d: %w", pid, err)
		}
		m.metrics.incMutation(OpRepair)
	}
	return nil
}

func equalOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *LayoutManager) notify(t EventType, w *Instance, p *Page) {
	if m.notifier == nil {
		return
	}
	ev := LayoutEvent{Type: t, At: time.Now().UTC()}
	if w != nil {
		rec := w.Record()
		ev.Widget = &rec
	}
	if p != nil {
		rec := p.Record()
		ev.Page = &rec
	}
	m.notifier.Publish(ev)
}

// AddWidget places a new instance of a skill's widget type at the top-left
// of a page, with the type's default size and empty settings and configs.
func (m *LayoutManager) AddWidget(ctx context.Context, skillName, widgetName string, pageID int) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	t, ok := m.resolve(skillName, widgetName)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownWidgetType, skillName, widgetName)
	}

	w := &Instance{
		ID:         m.nextWidgetID,
		SkillName:  skillName,
		WidgetName: widgetName,
		PageID:     pageID,
		W:          t.DefaultW,
		H:          t.DefaultH,
		Settings:   Options{},
		Configs:    Options{},
	}
	oldOrder := page.widgetList()
	m.widgets[w.ID] = w
	page.Widgets = append(page.widgetList(), w.ID)

	err := m.commit(ctx, OpAddWidget,
		func() {
			delete(m.widgets, w.ID)
			page.Widgets = oldOrder
		},
		m.insertWrite(rowstore.TableWidgets, w.ID, w.row()),
		m.updateWrite(rowstore.TableWidgetPages, pageID,
			rowstore.Row{colWidgets: page.widgetList()},
			rowstore.Row{colWidgets: oldOrder}),
	)
	if err != nil {
		return nil, err
	}
	m.nextWidgetID++

	m.notify(EventWidgetAdded, w, nil)
	return w.clone(), nil
}

func (m *LayoutManager) resolve(skillName, widgetName string) (*WidgetType, bool) {
	if m.types == nil {
		return nil, false
	}
	return m.types.ResolveWidgetType(skillName, widgetName)
}

// RemoveWidget deletes an instance and takes it off its page.
func (m *LayoutManager) RemoveWidget(ctx context.Context, widgetID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.widgets[widgetID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrWidgetNotFound, widgetID)
	}

	writes := []write{m.deleteWrite(rowstore.TableWidgets, w.ID, w.row())}
	delete(m.widgets, widgetID)

	page, hasPage := m.pages[w.PageID]
	var oldOrder []int
	if hasPage && page.indexOf(widgetID) >= 0 {
		oldOrder = page.widgetList()
		page.Widgets = page.without(widgetID)
		writes = append(writes, m.updateWrite(rowstore.TableWidgetPages, page.ID,
			rowstore.Row{colWidgets: page.widgetList()},
			rowstore.Row{colWidgets: oldOrder}))
	}

	err := m.commit(ctx, OpRemoveWidget,
		func() {
			m.widgets[widgetID] = w
			if oldOrder != nil {
				page.Widgets = oldOrder
			}
		},
		writes...,
	)
	if err != nil {
		return err
	}

	m.notify(EventWidgetRemoved, w, nil)
	return nil
}

// SaveWidgetPosition moves a widget within its page, persisting {x, y}.
// It reports false, without raising, when the widget is unknown or the write
// fails; drag interactions call it at high frequency.
func (m *LayoutManager) SaveWidgetPosition(ctx context.Context, widgetID, x, y int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.widgets[widgetID]
	if !ok {
		m.metrics.incSoftFailure(OpSavePosition)
		m.logger.Debug("save position on unknown widget", slog.Int("widget_id", widgetID))
		return false
	}

	oldX, oldY := w.X, w.Y
	w.X, w.Y = x, y
	err := m.commit(ctx, OpSavePosition,
		func() { w.X, w.Y = oldX, oldY },
		m.updateWrite(rowstore.TableWidgets, widgetID,
			rowstore.Row{colX: x, colY: y},
			rowstore.Row{colX: oldX, colY: oldY}),
	)
	if err != nil {
		m.metrics.incSoftFailure(OpSavePosition)
		return false
	}

	m.notify(EventWidgetUpdated, w, nil)
	return true
}

// SaveWidgetSize sets a widget's position and size, persisting {x, y, w, h}.
// Same contract as SaveWidgetPosition; also false when w or h is not positive.
func (m *LayoutManager) SaveWidgetSize(ctx context.Context, widgetID, x, y, width, height int) bool {
	if width <= 0 || height <= 0 {
		m.metrics.incSoftFailure(OpSaveSize)
		m.logger.Debug("save size rejected",
			slog.Int("widget_id", widgetID),
			slog.String("error", ErrInvalidGeometry.Error()))
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.widgets[widgetID]
	if !ok {
		m.metrics.incSoftFailure(OpSaveSize)
		m.logger.Debug("save size on unknown widget", slog.Int("widget_id", widgetID))
		return false
	}

	old := *w
	w.X, w.Y, w.W, w.H = x, y, width, height
	err := m.commit(ctx, OpSaveSize,
		func() { w.X, w.Y, w.W, w.H = old.X, old.Y, old.W, old.H },
		m.updateWrite(rowstore.TableWidgets, widgetID,
			rowstore.Row{colX: x, colY: y, colW: width, colH: height},
			rowstore.Row{colX: old.X, colY: old.Y, colW: old.W, colH: old.H}),
	)
	if err != nil {
		m.metrics.incSoftFailure(OpSaveSize)
		return false
	}

	m.notify(EventWidgetUpdated, w, nil)
	return true
}

// SaveWidgetSettings replaces a widget's display settings wholesale,
// persisting {settings}. Keys and value kinds are checked against SettingsSpec.
func (m *LayoutManager) SaveWidgetSettings(ctx context.Context, widgetID int, settings map[string]any) (*Instance, error) {
	return m.saveOptions(ctx, OpSaveSettings, widgetID, optionUpdate{settings: settings, hasSettings: true})
}

// SaveWidgetConfigs replaces a widget's functional configuration wholesale,
// persisting {configs}. Keys are checked against the widget type's option set.
func (m *LayoutManager) SaveWidgetConfigs(ctx context.Context, widgetID int, configs map[string]any) (*Instance, error) {
	return m.saveOptions(ctx, OpSaveConfigs, widgetID, optionUpdate{configs: configs, hasConfigs: true})
}

// SaveWidgetOptions replaces settings and configs together. A nil map leaves
// that namespace alone. Both maps are validated before anything changes and
// the changed columns are written in a single store update.
func (m *LayoutManager) SaveWidgetOptions(ctx context.Context, widgetID int, settings, configs map[string]any) (*Instance, error) {
	return m.saveOptions(ctx, OpSaveOptions, widgetID, optionUpdate{
		settings:    settings,
		configs:     configs,
		hasSettings: settings != nil,
		hasConfigs:  configs != nil,
	})
}

type optionUpdate struct {
	settings, configs       map[string]any
	hasSettings, hasConfigs bool
}

func (m *LayoutManager) saveOptions(ctx context.Context, op string, widgetID int, u optionUpdate) (*Instance, error) {
	var settings Options
	if u.hasSettings {
		var err error
		if settings, err = SettingsSpec.Normalize(u.settings); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.widgets[widgetID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrWidgetNotFound, widgetID)
	}

	var configs Options
	if u.hasConfigs {
		t, ok := m.resolve(w.SkillName, w.WidgetName)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownWidgetType, w.SkillName, w.WidgetName)
		}
		var err error
		if configs, err = t.Configs.Normalize(u.configs); err != nil {
			return nil, err
		}
	}

	oldSettings, oldConfigs := w.Settings, w.Configs
	fields, previous := rowstore.Row{}, rowstore.Row{}
	if u.hasSettings {
		w.Settings = settings
		fields[colSettings] = settings.Clone()
		previous[colSettings] = oldSettings.Clone()
	}
	if u.hasConfigs {
		w.Configs = configs
		fields[colConfigs] = configs.Clone()
		previous[colConfigs] = oldConfigs.Clone()
	}
	if len(fields) == 0 {
		return w.clone(), nil
	}

	err := m.commit(ctx, op,
		func() { w.Settings, w.Configs = oldSettings, oldConfigs },
		m.updateWrite(rowstore.TableWidgets, widgetID, fields, previous),
	)
	if err != nil {
		return nil, err
	}

	m.notify(EventWidgetUpdated, w, nil)
	return w.clone(), nil
}

// MoveWidget puts a widget at the end of another page's order,
// persisting {page_id} and both page orders.
func (m *LayoutManager) MoveWidget(ctx context.Context, widgetID, pageID int) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.widgets[widgetID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrWidgetNotFound, widgetID)
	}
	dst, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	if w.PageID == pageID {
		return w.clone(), nil
	}

	oldPageID := w.PageID
	writes := []write{m.updateWrite(rowstore.TableWidgets, widgetID,
		rowstore.Row{colPageID: pageID},
		rowstore.Row{colPageID: oldPageID})}

	src, hasSrc := m.pages[oldPageID]
	var srcOrder []int
	if hasSrc {
		srcOrder = src.widgetList()
		src.Widgets = src.without(widgetID)
		writes = append(writes, m.updateWrite(rowstore.TableWidgetPages, src.ID,
			rowstore.Row{colWidgets: src.widgetList()},
			rowstore.Row{colWidgets: srcOrder}))
	}
	dstOrder := dst.widgetList()
	dst.Widgets = append(dst.without(widgetID), widgetID)
	writes = append(writes, m.updateWrite(rowstore.TableWidgetPages, dst.ID,
		rowstore.Row{colWidgets: dst.widgetList()},
		rowstore.Row{colWidgets: dstOrder}))
	w.PageID = pageID

	err := m.commit(ctx, OpMoveWidget,
		func() {
			w.PageID = oldPageID
			dst.Widgets = dstOrder
			if hasSrc {
				src.Widgets = srcOrder
			}
		},
		writes...,
	)
	if err != nil {
		return nil, err
	}

	m.notify(EventWidgetMoved, w, nil)
	return w.clone(), nil
}

// AddPage creates an empty page with the next free id and the default icon.
func (m *LayoutManager) AddPage(ctx context.Context) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &Page{ID: m.nextPageID, Icon: m.icon, Widgets: []int{}}
	m.pages[p.ID] = p

	err := m.commit(ctx, OpAddPage,
		func() { delete(m.pages, p.ID) },
		m.insertWrite(rowstore.TableWidgetPages, p.ID, p.row()),
	)
	if err != nil {
		return nil, err
	}
	m.nextPageID++

	m.notify(EventPageAdded, nil, p)
	return p.clone(), nil
}

// RemovePage deletes a page. Its widgets are moved, in order, to the end of
// the default page first. The default page itself can never be removed.
func (m *LayoutManager) RemovePage(ctx context.Context, pageID int) error {
	if pageID == DefaultPageID {
		return ErrProtectedPage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	page, ok := m.pages[pageID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	def := m.pages[DefaultPageID]

	var orphans []*Instance
	for _, wid := range page.Widgets {
		if w, ok := m.widgets[wid]; ok && w.PageID == pageID {
			orphans = append(orphans, w)
		}
	}

	defOrder := def.widgetList()
	writes := make([]write, 0, len(orphans)+2)
	for _, w := range orphans {
		w.PageID = DefaultPageID
		def.Widgets = append(def.Widgets, w.ID)
		writes = append(writes, m.updateWrite(rowstore.TableWidgets, w.ID,
			rowstore.Row{colPageID: DefaultPageID},
			rowstore.Row{colPageID: pageID}))
	}
	if len(orphans) > 0 {
		writes = append(writes, m.updateWrite(rowstore.TableWidgetPages, DefaultPageID,
			rowstore.Row{colWidgets: def.widgetList()},
			rowstore.Row{colWidgets: defOrder}))
	}
	writes = append(writes, m.deleteWrite(rowstore.TableWidgetPages, pageID, page.row()))
	delete(m.pages, pageID)

	err := m.commit(ctx, OpRemovePage,
		func() {
			for _, w := range orphans {
				w.PageID = pageID
			}
			def.Widgets = defOrder
			m.pages[pageID] = page
		},
		writes...,
	)
	if err != nil {
		return err
	}

	if len(orphans) > 0 {
		m.logger.Info("reassigned widgets to default page",
			slog.Int("page_id", pageID),
			slog.Int("count", len(orphans)))
		m.notify(EventPageUpdated, nil, def)
	}
	m.notify(EventPageRemoved, nil, page)
	return nil
}

// UpdatePageIcon changes a page's icon, persisting {icon}.
func (m *LayoutManager) UpdatePageIcon(ctx context.Context, pageID int, icon string) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}

	old := p.Icon
	p.Icon = icon
	err := m.commit(ctx, OpUpdatePageIcon,
		func() { p.Icon = old },
		m.updateWrite(rowstore.TableWidgetPages, pageID,
			rowstore.Row{colIcon: icon},
			rowstore.Row{colIcon: old}),
	)
	if err != nil {
		return nil, err
	}

	m.notify(EventPageUpdated, nil, p)
	return p.clone(), nil
}

// GetWidgetInstance returns a copy of the widget, or false if it does not exist.
func (m *LayoutManager) GetWidgetInstance(widgetID int) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.widgets[widgetID]
	if !ok {
		return nil, false
	}
	return w.clone(), true
}

// GetPage returns a copy of the page.
func (m *LayoutManager) GetPage(pageID int) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	return p.clone(), nil
}

// Widgets returns copies of every widget ordered by id.
func (m *LayoutManager) Widgets() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Instance, 0, len(m.widgets))
	for _, w := range m.widgets {
		out = append(out, w.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pages returns copies of every page ordered by id.
func (m *LayoutManager) Pages() []*Page {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Templates lists the widget types that can be added.
func (m *LayoutManager) Templates() []Template {
	if m.types == nil {
		return []Template{}
	}
	return m.types.Templates()
}

// DispatchWidgetFunction invokes a named function of a widget's type with the
// caller's arguments. The lookup holds the read lock; the handler runs
// without it so a slow skill cannot stall layout writes.
func (m *LayoutManager) DispatchWidgetFunction(ctx context.Context, widgetID int, function string, args map[string]any) (result any, err error) {
	m.mu.RLock()
	w, ok := m.widgets[widgetID]
	var rec Record
	if ok {
		rec = w.Record()
	}
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrWidgetNotFound, widgetID)
	}

	var handler FunctionHandler
	t, found := m.resolve(rec.SkillName, rec.WidgetName)
	if found {
		handler, found = t.Function(function)
	}
	if !found {
		m.metrics.incFunctionCall(rec.SkillName, rec.WidgetName, function, OutcomeUnsupported)
		return nil, fmt.Errorf("%w: %s/%s.%s", ErrUnsupportedFunction, rec.SkillName, rec.WidgetName, function)
	}

	ctx, endSpan := tracing.StartSpan(ctx, "widget.function",
		attribute.String("widget.skill", rec.SkillName),
		attribute.String("widget.name", rec.WidgetName),
		attribute.String("widget.function", function),
		attribute.Int("widget.id", widgetID),
	)
	defer func() { endSpan(err) }()

	if args == nil {
		args = map[string]any{}
	}
	result, err = handler(ctx, Call{Widget: rec, Args: args})
	if err != nil {
		m.metrics.incFunctionCall(rec.SkillName, rec.WidgetName, function, OutcomeError)
		if !errors.Is(err, ErrInvalidFunctionInput) {
			m.logger.Warn("widget function failed",
				slog.Int("widget_id", widgetID),
				slog.String("function", function),
				slog.String("error", err.Error()))
		}
		return nil, err
	}
	m.metrics.incFunctionCall(rec.SkillName, rec.WidgetName, function, OutcomeOK)
	return result, nil
}
