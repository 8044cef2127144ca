// Package widget manages the dashboard: pages holding positioned, configured
// widget instances provided by skills, and the capability registry that
// dispatches calls to a widget's functions.
package widget

import (
	"fmt"

	"github.com/onnwee/homelayout/internal/rowstore"
)

// DefaultPageID is the page that always exists and can never be removed.
const DefaultPageID = 0

// Default size for widget types that do not declare their own.
const (
	DefaultWidth  = 300
	DefaultHeight = 200
)

// Instance is a widget placed on a page.
type Instance struct {
	ID         int
	SkillName  string
	WidgetName string
	PageID     int
	X, Y       int
	W, H       int
	Settings   Options
	Configs    Options
}

// Record is the flat external representation of an Instance.
type Record struct {
	ID         int     `json:"id"`
	SkillName  string  `json:"skillName"`
	WidgetName string  `json:"widgetName"`
	PageID     int     `json:"pageId"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	W          int     `json:"w"`
	H          int     `json:"h"`
	Settings   Options `json:"settings"`
	Configs    Options `json:"configs"`
}

// Record returns a detached flat copy of the instance.
func (w *Instance) Record() Record {
	return Record{
		ID:         w.ID,
		SkillName:  w.SkillName,
		WidgetName: w.WidgetName,
		PageID:     w.PageID,
		X:          w.X,
		Y:          w.Y,
		W:          w.W,
		H:          w.H,
		Settings:   w.Settings.Clone(),
		Configs:    w.Configs.Clone(),
	}
}

func (w *Instance) clone() *Instance {
	c := *w
	c.Settings = w.Settings.Clone()
	c.Configs = w.Configs.Clone()
	return &c
}

// Page is an ordered container of widget ids. Order is display order.
type Page struct {
	ID      int
	Icon    string
	Widgets []int
}

// PageRecord is the flat external representation of a Page.
type PageRecord struct {
	ID      int    `json:"id"`
	Icon    string `json:"icon"`
	Widgets []int  `json:"widgets"`
}

// Record returns a detached flat copy of the page.
func (p *Page) Record() PageRecord {
	return PageRecord{
		ID:      p.ID,
		Icon:    p.Icon,
		Widgets: p.widgetList(),
	}
}

func (p *Page) widgetList() []int {
	out := make([]int, len(p.Widgets))
	copy(out, p.Widgets)
	return out
}

func (p *Page) clone() *Page {
	c := *p
	c.Widgets = p.widgetList()
	return &c
}

// indexOf returns the position of widgetID on the page, or -1.
func (p *Page) indexOf(widgetID int) int {
	for i, id := range p.Widgets {
		if id == widgetID {
			return i
		}
	}
	return -1
}

// without returns the page order with widgetID removed.
func (p *Page) without(widgetID int) []int {
	out := make([]int, 0, len(p.Widgets))
	for _, id := range p.Widgets {
		if id != widgetID {
			out = append(out, id)
		}
	}
	return out
}

// Stored column names.
const (
	colID         = "id"
	colSkillName  = "skill_name"
	colWidgetName = "widget_name"
	colPageID     = "page_id"
	colX          = "x"
	colY          = "y"
	colW          = "w"
	colH          = "h"
	colSettings   = "settings"
	colConfigs    = "configs"
	colIcon       = "icon"
	colWidgets    = "widgets"
)

func (w *Instance) row() rowstore.Row {
	return rowstore.Row{
		colID:         w.ID,
		colSkillName:  w.SkillName,
		colWidgetName: w.WidgetName,
		colPageID:     w.PageID,
		colX:          w.X,
		colY:          w.Y,
		colW:          w.W,
		colH:          w.H,
		colSettings:   w.Settings.Clone(),
		colConfigs:    w.Configs.Clone(),
	}
}

func (p *Page) row() rowstore.Row {
	return rowstore.Row{
		colID:      p.ID,
		colIcon:    p.Icon,
		colWidgets: p.widgetList(),
	}
}

func instanceFromRow(r rowstore.Row) (*Instance, error) {
	w := &Instance{
		SkillName:  rowstore.String(r, colSkillName),
		WidgetName: rowstore.String(r, colWidgetName),
	}
	ints := []struct {
		col string
		dst *int
		def int
	}{
		{colPageID, &w.PageID, DefaultPageID},
		{colX, &w.X, 0},
		{colY, &w.Y, 0},
		{colW, &w.W, DefaultWidth},
		{colH, &w.H, DefaultHeight},
	}
	id, err := rowstore.Int(r, colID)
	if err != nil {
		return nil, err
	}
	w.ID = id
	for _, f := range ints {
		v, err := rowstore.IntOr(r, f.col, f.def)
		if err != nil {
			return nil, fmt.Errorf("widget %d: %w", id, err)
		}
		*f.dst = v
	}

	var settings, configs map[string]any
	if _, err := rowstore.DecodeJSON(r, colSettings, &settings); err != nil {
		return nil, fmt.Errorf("widget %d: %w", id, err)
	}
	if _, err := rowstore.DecodeJSON(r, colConfigs, &configs); err != nil {
		return nil, fmt.Errorf("widget %d: %w", id, err)
	}
	w.Settings = Options(settings).Clone()
	w.Configs = Options(configs).Clone()
	return w, nil
}

func pageFromRow(r rowstore.Row) (*Page, error) {
	id, err := rowstore.Int(r, colID)
	if err != nil {
		return nil, err
	}
	p := &Page{ID: id, Icon: rowstore.String(r, colIcon)}
	if _, err := rowstore.DecodeJSON(r, colWidgets, &p.Widgets); err != nil {
		return nil, fmt.Errorf("page %d: %w", id, err)
	}
	return p, nil
}
