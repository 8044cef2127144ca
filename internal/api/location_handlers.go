package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/onnwee/homelayout/internal/location"
	"github.com/onnwee/homelayout/internal/validate"
)

// LocationIndex is the subset of *location.Index the handlers use.
type LocationIndex interface {
	CreateLocation(ctx context.Context, name string, parentID int, synonyms []string, settings *location.Settings) (*location.Location, error)
	RenameLocation(ctx context.Context, id int, newName string) error
	AddSynonym(ctx context.Context, id int, synonym string) error
	RemoveSynonym(ctx context.Context, id int, synonym string) error
	MoveLocation(ctx context.Context, id, newParent int) error
	UpdateSettings(ctx context.Context, id int, settings location.Settings) error
	DeleteLocation(ctx context.Context, id int) error
	GetLocation(id int) (*location.Location, error)
	FindLocation(nameOrSynonym string) (*location.Location, error)
	Locations() []*location.Location
	Children(id int) ([]*location.Location, error)
}

// CreateLocationRequest is the body of POST /locations/.
type CreateLocationRequest struct {
	Name           string          `json:"name"`
	ParentLocation int             `json:"parentLocation"`
	Synonyms       []string        `json:"synonyms,omitempty"`
	Settings       json.RawMessage `json:"settings,omitempty"`
}

// RenameLocationRequest is the body of PATCH /locations/{id}/.
type RenameLocationRequest struct {
	Name string `json:"name"`
}

// MoveLocationRequest is the body of PATCH /locations/{id}/parent/.
type MoveLocationRequest struct {
	ParentLocation *int `json:"parentLocation"`
}

// AddSynonymRequest is the body of PUT /locations/{id}/synonyms/.
type AddSynonymRequest struct {
	Synonym string `json:"synonym"`
}

// LocationHandlers holds dependencies for location HTTP handlers.
type LocationHandlers struct {
	index LocationIndex
}

// NewLocationHandlers creates a new LocationHandlers instance.
func NewLocationHandlers(index LocationIndex) *LocationHandlers {
	return &LocationHandlers{index: index}
}

// locationPayload renders a location as a flat record, or as the name-keyed
// document when the request asks for ?format=document.
func locationPayload(r *http.Request, loc *location.Location) any {
	if r.URL.Query().Get("format") == "document" {
		return loc.Document()
	}
	return loc.Record()
}

func (h *LocationHandlers) writeLocation(w http.ResponseWriter, r *http.Request, id int) {
	loc, err := h.index.GetLocation(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"location": locationPayload(r, loc)})
}

// ListLocations handles GET /locations/.
// ?name= resolves a single location by name or synonym; ?parent= lists children.
func (h *LocationHandlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if name := q.Get("name"); name != "" {
		loc, err := h.index.FindLocation(name)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, map[string]any{"location": locationPayload(r, loc)})
		return
	}

	var locs []*location.Location
	if parent := q.Get("parent"); parent != "" {
		parentID, err := strconv.Atoi(parent)
		if err != nil {
			writeBadRequest(w, r, "parent must be an integer")
			return
		}
		locs, err = h.index.Children(parentID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
	} else {
		locs = h.index.Locations()
	}

	if q.Get("format") == "document" {
		doc := make(map[string]location.Record, len(locs))
		for _, loc := range locs {
			doc[loc.Name] = loc.Record()
		}
		writeJSON(w, r, map[string]any{"locations": doc})
		return
	}
	records := make([]location.Record, 0, len(locs))
	for _, loc := range locs {
		records = append(records, loc.Record())
	}
	writeJSON(w, r, map[string]any{"locations": records})
}

// CreateLocation handles POST /locations/.
func (h *LocationHandlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}

	name, err := validate.LocationName(req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	synonyms := make([]string, 0, len(req.Synonyms))
	for _, s := range req.Synonyms {
		syn, err := validate.Synonym(s)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		synonyms = append(synonyms, syn)
	}

	var settings *location.Settings
	if len(req.Settings) > 0 {
		s, err := location.DecodeSettings(req.Settings)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		settings = &s
	}

	loc, err := h.index.CreateLocation(r.Context(), name, req.ParentLocation, synonyms, settings)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"location": locationPayload(r, loc)})
}

// GetLocation handles GET /locations/{id}/.
func (h *LocationHandlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	h.writeLocation(w, r, id)
}

// RenameLocation handles PATCH /locations/{id}/.
func (h *LocationHandlers) RenameLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req RenameLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	name, err := validate.LocationName(req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.index.RenameLocation(r.Context(), id, name); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeLocation(w, r, id)
}

// MoveLocation handles PATCH /locations/{id}/parent/.
func (h *LocationHandlers) MoveLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req MoveLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	if req.ParentLocation == nil {
		writeBadRequest(w, r, "parentLocation is required")
		return
	}

	if err := h.index.MoveLocation(r.Context(), id, *req.ParentLocation); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeLocation(w, r, id)
}

// UpdateSettings handles PATCH /locations/{id}/settings/.
// The body is the settings object; omitted keys take their default value.
func (h *LocationHandlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	settings, err := location.DecodeSettings(raw)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.index.UpdateSettings(r.Context(), id, settings); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeLocation(w, r, id)
}

// DeleteLocation handles DELETE /locations/{id}/.
func (h *LocationHandlers) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	if err := h.index.DeleteLocation(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, nil)
}

// AddSynonym handles PUT /locations/{id}/synonyms/.
func (h *LocationHandlers) AddSynonym(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req AddSynonymRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	synonym, err := validate.Synonym(req.Synonym)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.index.AddSynonym(r.Context(), id, synonym); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeLocation(w, r, id)
}

// RemoveSynonym handles DELETE /locations/{id}/synonyms/{synonym}/.
func (h *LocationHandlers) RemoveSynonym(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	if err := h.index.RemoveSynonym(r.Context(), id, r.PathValue("synonym")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeLocation(w, r, id)
}

// pathInt parses an integer path parameter, writing a bad_request response on failure.
func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		writeBadRequest(w, r, name+" must be an integer")
		return 0, false
	}
	return v, true
}
