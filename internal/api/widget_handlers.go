package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/onnwee/homelayout/internal/validate"
	"github.com/onnwee/homelayout/internal/widget"
)

// LayoutService is the subset of *widget.LayoutManager the handlers use.
type LayoutService interface {
	AddWidget(ctx context.Context, skillName, widgetName string, pageID int) (*widget.Instance, error)
	RemoveWidget(ctx context.Context, widgetID int) error
	SaveWidgetPosition(ctx context.Context, widgetID, x, y int) bool
	SaveWidgetSize(ctx context.Context, widgetID, x, y, width, height int) bool
	SaveWidgetOptions(ctx context.Context, widgetID int, settings, configs map[string]any) (*widget.Instance, error)
	MoveWidget(ctx context.Context, widgetID, pageID int) (*widget.Instance, error)
	AddPage(ctx context.Context) (*widget.Page, error)
	RemovePage(ctx context.Context, pageID int) error
	UpdatePageIcon(ctx context.Context, pageID int, icon string) (*widget.Page, error)
	GetWidgetInstance(widgetID int) (*widget.Instance, bool)
	Widgets() []*widget.Instance
	Pages() []*widget.Page
	Templates() []widget.Template
	DispatchWidgetFunction(ctx context.Context, widgetID int, function string, args map[string]any) (any, error)
}

// AddWidgetRequest is the body of PUT /widgets/. PageID defaults to the default page.
type AddWidgetRequest struct {
	SkillName  string `json:"skillName"`
	WidgetName string `json:"widgetName"`
	PageID     int    `json:"pageId"`
}

// UpdateWidgetRequest is the body of PATCH /widgets/{id}/.
// Each present mapping replaces the stored one.
type UpdateWidgetRequest struct {
	Settings map[string]any `json:"settings,omitempty"`
	Configs  map[string]any `json:"configs,omitempty"`
}

// SavePositionRequest is the body of PATCH /widgets/{id}/savePosition/.
type SavePositionRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SaveSizeRequest is the body of PATCH /widgets/{id}/saveSize/.
type SaveSizeRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// MoveWidgetRequest is the body of PATCH /widgets/{id}/page/.
type MoveWidgetRequest struct {
	PageID *int `json:"pageId"`
}

// UpdatePageIconRequest is the body of PATCH /widgets/pages/{id}/icon/.
type UpdatePageIconRequest struct {
	Icon string `json:"icon"`
}

// FunctionRequest is the optional body of POST /widgets/{id}/function/{function}/.
type FunctionRequest struct {
	Args map[string]any `json:"args"`
}

// SoftResult is the response of the position and size endpoints.
// A failed save is reported here rather than through the error envelope.
type SoftResult struct {
	Success bool `json:"success"`
}

// WidgetHandlers holds dependencies for widget and page HTTP handlers.
type WidgetHandlers struct {
	layout LayoutService
}

// NewWidgetHandlers creates a new WidgetHandlers instance.
func NewWidgetHandlers(layout LayoutService) *WidgetHandlers {
	return &WidgetHandlers{layout: layout}
}

// ListWidgets handles GET /widgets/.
func (h *WidgetHandlers) ListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets := h.layout.Widgets()
	records := make([]widget.Record, 0, len(widgets))
	for _, wi := range widgets {
		records = append(records, wi.Record())
	}
	writeJSON(w, r, map[string]any{"widgets": records})
}

// GetWidget handles GET /widgets/{id}/.
func (h *WidgetHandlers) GetWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	wi, found := h.layout.GetWidgetInstance(id)
	if !found {
		writeDomainError(w, r, widget.ErrWidgetNotFound)
		return
	}
	writeJSON(w, r, map[string]any{"widget": wi.Record()})
}

// AddWidget handles PUT /widgets/.
func (h *WidgetHandlers) AddWidget(w http.ResponseWriter, r *http.Request) {
	var req AddWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	if req.SkillName == "" || req.WidgetName == "" {
		writeBadRequest(w, r, "skillName and widgetName are required")
		return
	}

	wi, err := h.layout.AddWidget(r.Context(), req.SkillName, req.WidgetName, req.PageID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"widget": wi.Record()})
}

// RemoveWidget handles DELETE /widgets/{id}/.
func (h *WidgetHandlers) RemoveWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	if err := h.layout.RemoveWidget(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, nil)
}

// UpdateWidget handles PATCH /widgets/{id}/.
func (h *WidgetHandlers) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req UpdateWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	if req.Settings == nil && req.Configs == nil {
		writeBadRequest(w, r, "settings or configs is required")
		return
	}

	wi, err := h.layout.SaveWidgetOptions(r.Context(), id, req.Settings, req.Configs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"widget": wi.Record()})
}

// SavePosition handles PATCH /widgets/{id}/savePosition/.
func (h *WidgetHandlers) SavePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req SavePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	writeStatusJSON(w, r, http.StatusOK, SoftResult{
		Success: h.layout.SaveWidgetPosition(r.Context(), id, req.X, req.Y),
	})
}

// SaveSize handles PATCH /widgets/{id}/saveSize/.
func (h *WidgetHandlers) SaveSize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req SaveSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	writeStatusJSON(w, r, http.StatusOK, SoftResult{
		Success: h.layout.SaveWidgetSize(r.Context(), id, req.X, req.Y, req.W, req.H),
	})
}

// MoveWidget handles PATCH /widgets/{id}/page/.
func (h *WidgetHandlers) MoveWidget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req MoveWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	if req.PageID == nil {
		writeBadRequest(w, r, "pageId is required")
		return
	}

	wi, err := h.layout.MoveWidget(r.Context(), id, *req.PageID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"widget": wi.Record()})
}

// CallFunction handles POST /widgets/{id}/function/{function}/.
// An empty body calls the function without arguments.
func (h *WidgetHandlers) CallFunction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	function, err := validate.FunctionName(r.PathValue("function"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var req FunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}

	result, err := h.layout.DispatchWidgetFunction(r.Context(), id, function, req.Args)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"result": result})
}

// Templates handles GET /widgets/templates/.
func (h *WidgetHandlers) Templates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{"templates": h.layout.Templates()})
}

// ListPages handles GET /widgets/pages/.
func (h *WidgetHandlers) ListPages(w http.ResponseWriter, r *http.Request) {
	pages := h.layout.Pages()
	records := make([]widget.PageRecord, 0, len(pages))
	for _, p := range pages {
		records = append(records, p.Record())
	}
	writeJSON(w, r, map[string]any{"pages": records})
}

// AddPage handles PUT /widgets/addPage/.
func (h *WidgetHandlers) AddPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.layout.AddPage(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"page": p.Record()})
}

// RemovePage handles DELETE /widgets/pages/{id}/.
func (h *WidgetHandlers) RemovePage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	if err := h.layout.RemovePage(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, nil)
}

// UpdatePageIcon handles PATCH /widgets/pages/{id}/icon/.
func (h *WidgetHandlers) UpdatePageIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req UpdatePageIconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	icon, err := validate.PageIcon(req.Icon)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	p, err := h.layout.UpdatePageIcon(r.Context(), id, icon)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"page": p.Record()})
}
