package api

import (
	"net/http"

	"github.com/onnwee/homelayout/internal/middleware"
)

// APIPrefix is the base path of every layout route.
const APIPrefix = "/api/v1"

// RouterConfig collects the handler groups mounted by NewRouter.
// Nil groups are not mounted.
type RouterConfig struct {
	Locations *LocationHandlers
	Widgets   *WidgetHandlers
	Events    *EventHandlers
	Health    *HealthHandlers
	Metrics   http.Handler
}

// NewRouter registers every route on a new ServeMux.
// Unmatched paths get the standard not_found envelope.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	route := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(method+" "+APIPrefix+path, h)
	}

	if l := cfg.Locations; l != nil {
		route(http.MethodGet, "/locations/{$}", l.ListLocations)
		route(http.MethodPost, "/locations/{$}", l.CreateLocation)
		route(http.MethodGet, "/locations/{id}/{$}", l.GetLocation)
		route(http.MethodPatch, "/locations/{id}/{$}", l.RenameLocation)
		route(http.MethodDelete, "/locations/{id}/{$}", l.DeleteLocation)
		route(http.MethodPatch, "/locations/{id}/parent/{$}", l.MoveLocation)
		route(http.MethodPatch, "/locations/{id}/settings/{$}", l.UpdateSettings)
		route(http.MethodPut, "/locations/{id}/synonyms/{$}", l.AddSynonym)
		route(http.MethodDelete, "/locations/{id}/synonyms/{synonym}/{$}", l.RemoveSynonym)
	}

	if wh := cfg.Widgets; wh != nil {
		route(http.MethodGet, "/widgets/{$}", wh.ListWidgets)
		route(http.MethodPut, "/widgets/{$}", wh.AddWidget)
		route(http.MethodGet, "/widgets/templates/{$}", wh.Templates)
		route(http.MethodGet, "/widgets/pages/{$}", wh.ListPages)
		route(http.MethodPut, "/widgets/addPage/{$}", wh.AddPage)
		route(http.MethodDelete, "/widgets/pages/{id}/{$}", wh.RemovePage)
		route(http.MethodPatch, "/widgets/pages/{id}/icon/{$}", wh.UpdatePageIcon)
		route(http.MethodGet, "/widgets/{id}/{$}", wh.GetWidget)
		route(http.MethodPatch, "/widgets/{id}/{$}", wh.UpdateWidget)
		route(http.MethodDelete, "/widgets/{id}/{$}", wh.RemoveWidget)
		route(http.MethodPatch, "/widgets/{id}/savePosition/{$}", wh.SavePosition)
		route(http.MethodPatch, "/widgets/{id}/saveSize/{$}", wh.SaveSize)
		route(http.MethodPatch, "/widgets/{id}/page/{$}", wh.MoveWidget)
		route(http.MethodPost, "/widgets/{id}/function/{function}/{$}", wh.CallFunction)
	}

	if cfg.Events != nil {
		route(http.MethodGet, "/widgets/events", cfg.Events.Stream)
	}

	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})

	return mux
}
