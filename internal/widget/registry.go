package widget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Common errors for widget and page operations.
var (
	ErrWidgetNotFound       = errors.New("widget not found")
	ErrPageNotFound         = errors.New("page not found")
	ErrProtectedPage        = errors.New("default page cannot be removed")
	ErrUnsupportedFunction  = errors.New("widget does not support function")
	ErrUnknownWidgetType    = errors.New("skill does not provide widget type")
	ErrDuplicateWidgetType  = errors.New("widget type already registered")
	ErrInvalidOption        = errors.New("invalid widget option")
	ErrInvalidGeometry      = errors.New("widget width and height must be positive")
	ErrInvalidFunctionInput = errors.New("invalid function arguments")
)

// Call is what a widget function receives: a snapshot of the instance it was
// dispatched on and the caller's named arguments.
type Call struct {
	Widget Record
	Args   map[string]any
}

// FunctionHandler implements one named function of a widget type.
type FunctionHandler func(ctx context.Context, call Call) (any, error)

// WidgetType is the capability set a skill exposes for one of its widgets.
type WidgetType struct {
	SkillName  string
	WidgetName string
	DefaultW   int
	DefaultH   int
	Configs    OptionSpec
	Functions  map[string]FunctionHandler
}

// Function looks up a handler by name.
func (t *WidgetType) Function(name string) (FunctionHandler, bool) {
	fn, ok := t.Functions[name]
	return fn, ok
}

// FunctionNames returns the supported function names, sorted.
func (t *WidgetType) FunctionNames() []string {
	names := make([]string, 0, len(t.Functions))
	for name := range t.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template describes a registered widget type for clients building a palette.
type Template struct {
	SkillName  string     `json:"skillName"`
	WidgetName string     `json:"widgetName"`
	W          int        `json:"w"`
	H          int        `json:"h"`
	Configs    OptionSpec `json:"configs"`
	Functions  []string   `json:"functions"`
}

// TypeResolver resolves a (skill, widget) pair to its capability set.
type TypeResolver interface {
	ResolveWidgetType(skillName, widgetName string) (*WidgetType, bool)
	Templates() []Template
}

type typeKey struct {
	skill, widget string
}

// Registry holds the widget types provided by installed skills.
// Handlers are bound once at registration, dispatch is a map lookup.
type Registry struct {
	mu    sync.RWMutex
	types map[typeKey]*WidgetType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[typeKey]*WidgetType)}
}

// Register adds a widget type. The type is copied, later changes to t are
// not observed.
func (r *Registry) Register(t WidgetType) error {
	if t.SkillName == "" || t.WidgetName == "" {
		return fmt.Errorf("%w: skill and widget name are required", ErrUnknownWidgetType)
	}
	if t.DefaultW <= 0 {
		t.DefaultW = DefaultWidth
	}
	if t.DefaultH <= 0 {
		t.DefaultH = DefaultHeight
	}

	fns := make(map[string]FunctionHandler, len(t.Functions))
	for name, fn := range t.Functions {
		if fn == nil {
			return fmt.Errorf("widget %s/%s: function %q has nil handler", t.SkillName, t.WidgetName, name)
		}
		fns[name] = fn
	}
	t.Functions = fns
	configs := make(OptionSpec, len(t.Configs))
	for k, v := range t.Configs {
		configs[k] = v
	}
	t.Configs = configs

	key := typeKey{t.SkillName, t.WidgetName}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[key]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateWidgetType, t.SkillName, t.WidgetName)
	}
	r.types[key] = &t
	return nil
}

// ResolveWidgetType returns the capability set for a skill's widget, if any.
func (r *Registry) ResolveWidgetType(skillName, widgetName string) (*WidgetType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[typeKey{skillName, widgetName}]
	return t, ok
}

// Templates lists every registered widget type ordered by skill then widget.
func (r *Registry) Templates() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Template, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, Template{
			SkillName:  t.SkillName,
			WidgetName: t.WidgetName,
			W:          t.DefaultW,
			H:          t.DefaultH,
			Configs:    t.Configs,
			Functions:  t.FunctionNames(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SkillName != out[j].SkillName {
			return out[i].SkillName < out[j].SkillName
		}
		return out[i].WidgetName < out[j].WidgetName
	})
	return out
}
