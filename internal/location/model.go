// Package location models the physical places of a home (rooms, floors,
// areas) as a hierarchy with synonyms and floor-plan display settings.
package location

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/onnwee/homelayout/internal/rowstore"
)

// RootID is the parentLocation value of a top-level location.
const RootID = 0

// Default floor-plan geometry applied when a location has no stored settings.
const (
	DefaultWidth  = 150
	DefaultHeight = 150
)

// Settings describes where a location is drawn on the floor plan.
// Every field is always serialized, so the record always carries all keys.
type Settings struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	W        int    `json:"w"`
	H        int    `json:"h"`
	Rotation int    `json:"rotation"`
	Texture  string `json:"texture"`
}

// DefaultSettings returns the placement given to locations without stored settings.
func DefaultSettings() Settings {
	return Settings{W: DefaultWidth, H: DefaultHeight}
}

// Validate checks the geometry is drawable.
func (s Settings) Validate() error {
	if s.W <= 0 || s.H <= 0 {
		return fmt.Errorf("%w: w and h must be positive (got %dx%d)", ErrInvalidSettings, s.W, s.H)
	}
	return nil
}

// DecodeSettings builds Settings from stored or submitted JSON. Keys that are
// missing keep their default value, so an empty object yields DefaultSettings.
// Unknown keys are rejected.
func DecodeSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if len(data) == 0 || string(data) == "null" {
		return s, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	for key := range raw {
		if !settingKeys[key] {
			return Settings{}, fmt.Errorf("%w: unknown key %q", ErrInvalidSettings, key)
		}
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return s, nil
}

var settingKeys = map[string]bool{
	"x": true, "y": true, "z": true, "w": true, "h": true, "rotation": true, "texture": true,
}

// Location is one place in the hierarchy.
type Location struct {
	ID             int
	Name           string
	ParentLocation int
	Synonyms       map[string]struct{}
	Settings       Settings
}

// Record is the flat external representation of a Location.
type Record struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	ParentLocation int      `json:"parentLocation"`
	Synonyms       []string `json:"synonyms"`
	Settings       Settings `json:"settings"`
}

// Record returns the flat representation. Synonyms are sorted.
func (l *Location) Record() Record {
	return Record{
		ID:             l.ID,
		Name:           l.Name,
		ParentLocation: l.ParentLocation,
		Synonyms:       l.SynonymList(),
		Settings:       l.Settings,
	}
}

// Document returns the name-keyed representation: {"<name>": record}.
func (l *Location) Document() map[string]Record {
	return map[string]Record{l.Name: l.Record()}
}

// SynonymList returns the synonyms in sorted order.
func (l *Location) SynonymList() []string {
	out := make([]string, 0, len(l.Synonyms))
	for s := range l.Synonyms {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasSynonym reports whether s is one of the location's synonyms.
func (l *Location) HasSynonym(s string) bool {
	_, ok := l.Synonyms[s]
	return ok
}

func (l *Location) clone() *Location {
	c := *l
	c.Synonyms = make(map[string]struct{}, len(l.Synonyms))
	for s := range l.Synonyms {
		c.Synonyms[s] = struct{}{}
	}
	return &c
}

// Stored column names.
const (
	colID       = "id"
	colName     = "name"
	colParent   = "parent_location"
	colSynonyms = "synonyms"
	colSettings = "settings"
)

func (l *Location) row() rowstore.Row {
	return rowstore.Row{
		colID:       l.ID,
		colName:     l.Name,
		colParent:   l.ParentLocation,
		colSynonyms: l.SynonymList(),
		colSettings: l.Settings,
	}
}

// fromRow rebuilds a Location from a stored row, normalizing settings.
func fromRow(r rowstore.Row) (*Location, error) {
	id, err := rowstore.Int(r, colID)
	if err != nil {
		return nil, err
	}
	parent, err := rowstore.IntOr(r, colParent, RootID)
	if err != nil {
		return nil, err
	}

	var synonyms []string
	if _, err := rowstore.DecodeJSON(r, colSynonyms, &synonyms); err != nil {
		return nil, fmt.Errorf("location %d: %w", id, err)
	}

	var rawSettings json.RawMessage
	if _, err := rowstore.DecodeJSON(r, colSettings, &rawSettings); err != nil {
		return nil, fmt.Errorf("location %d: %w", id, err)
	}
	settings, err := DecodeSettings(rawSettings)
	if err != nil {
		return nil, fmt.Errorf("location %d: %w", id, err)
	}

	loc := &Location{
		ID:             id,
		Name:           rowstore.String(r, colName),
		ParentLocation: parent,
		Synonyms:       make(map[string]struct{}, len(synonyms)),
		Settings:       settings,
	}
	for _, s := range synonyms {
		loc.Synonyms[s] = struct{}{}
	}
	return loc, nil
}
