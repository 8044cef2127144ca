// Package skills registers the widget types bundled with the service.
package skills

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/onnwee/homelayout/internal/widget"
)

// Names of the bundled skills and widgets.
const (
	CoreSkill    = "AliceCore"
	ClockWidget  = "Clock"
	WeatherSkill = "weatherSkill"
	WeatherName  = "WeatherWidget"
	NotesSkill   = "Notes"
	NotepadName  = "Notepad"
)

// Register adds every bundled widget type to reg.
func Register(reg *widget.Registry) error {
	return RegisterWithClock(reg, time.Now)
}

// RegisterWithClock is Register with an injectable time source.
func RegisterWithClock(reg *widget.Registry, now func() time.Time) error {
	types := []widget.WidgetType{
		clock(now),
		weather(),
		notepad(),
	}
	for _, t := range types {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("failed to register %s/%s: %w", t.SkillName, t.WidgetName, err)
		}
	}
	return nil
}

func clock(now func() time.Time) widget.WidgetType {
	return widget.WidgetType{
		SkillName:  CoreSkill,
		WidgetName: ClockWidget,
		DefaultW:   200,
		DefaultH:   100,
		Configs: widget.OptionSpec{
			"timezone": widget.KindString,
			"hour24":   widget.KindBool,
		},
		Functions: map[string]widget.FunctionHandler{
			"time": func(ctx context.Context, c widget.Call) (any, error) {
				zone, err := stringArg(c, "timezone")
				if err != nil {
					return nil, err
				}
				if zone == "" {
					zone, _ = c.Widget.Configs["timezone"].(string)
				}
				loc := time.UTC
				if zone != "" {
					loc, err = time.LoadLocation(zone)
					if err != nil {
						return nil, fmt.Errorf("%w: unknown timezone %q", widget.ErrInvalidFunctionInput, zone)
					}
				}
				layout := "03:04 PM"
				if h24, _ := c.Widget.Configs["hour24"].(bool); h24 {
					layout = "15:04"
				}
				t := now().In(loc)
				return map[string]any{
					"time":     t.Format(layout),
					"timezone": loc.String(),
					"unix":     t.Unix(),
				}, nil
			},
		},
	}
}

func weather() widget.WidgetType {
	return widget.WidgetType{
		SkillName:  WeatherSkill,
		WidgetName: WeatherName,
		DefaultW:   400,
		DefaultH:   250,
		Configs: widget.OptionSpec{
			"city":  widget.KindString,
			"units": widget.KindString,
		},
		Functions: map[string]widget.FunctionHandler{
			"describe": func(ctx context.Context, c widget.Call) (any, error) {
				city, _ := c.Widget.Configs["city"].(string)
				units, _ := c.Widget.Configs["units"].(string)
				if units == "" {
					units = "metric"
				}
				return map[string]any{"city": city, "units": units}, nil
			},
		},
	}
}

func notepad() widget.WidgetType {
	return widget.WidgetType{
		SkillName:  NotesSkill,
		WidgetName: NotepadName,
		Configs: widget.OptionSpec{
			"text": widget.KindString,
		},
		Functions: map[string]widget.FunctionHandler{
			"read": func(ctx context.Context, c widget.Call) (any, error) {
				text, _ := c.Widget.Configs["text"].(string)
				return map[string]any{"text": text}, nil
			},
		},
	}
}

// stringArg returns an optional string argument.
func stringArg(c widget.Call, name string) (string, error) {
	raw, ok := c.Args[name]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", widget.ErrInvalidFunctionInput, name)
	}
	return s, nil
}
