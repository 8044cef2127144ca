package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/homelayout/internal/rowstore"
	"github.com/onnwee/homelayout/internal/tracing"
)

// Common errors for location operations.
var (
	ErrLocationNotFound = errors.New("location not found")
	ErrDuplicateName    = errors.New("location name already exists")
	ErrInvalidParent    = errors.New("parent location does not exist")
	ErrParentCycle      = errors.New("location cannot be its own ancestor")
	ErrUnknownSynonym   = errors.New("unknown synonym")
	ErrHasChildren      = errors.New("location has child locations")
	ErrInvalidName      = errors.New("location name must not be empty")
	ErrInvalidSynonym   = errors.New("synonym must not be empty")
	ErrInvalidSettings  = errors.New("invalid location settings")
	ErrReservedID       = errors.New("location id must be greater than the root id")
)

// Index is the location hierarchy. It owns every Location, keeps names
// unique and the parent chain acyclic, and persists each mutation before
// returning. A failed store write restores the previous in-memory state.
// Thread-safe via RWMutex; reads run concurrently, writes are serialized.
type Index struct {
	mu        sync.RWMutex
	store     rowstore.Store
	logger    *slog.Logger
	locations map[int]*Location
	byName    map[string]int
	nextID    int
}

// NewIndex creates an empty hierarchy backed by store.
func NewIndex(store rowstore.Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		store:     store,
		logger:    logger,
		locations: make(map[int]*Location),
		byName:    make(map[string]int),
		nextID:    1,
	}
}

// Load replaces the in-memory hierarchy with the stored rows.
// Fails if stored names collide, a parent is missing, or the parents form a cycle.
func (x *Index) Load(ctx context.Context) error {
	rows, err := x.store.Load(ctx, rowstore.TableLocations)
	if err != nil {
		return fmt.Errorf("failed to load locations: %w", err)
	}

	locations := make(map[int]*Location, len(rows))
	byName := make(map[string]int, len(rows))
	nextID := 1
	for _, r := range rows {
		loc, err := fromRow(r)
		if err != nil {
			return fmt.Errorf("failed to decode location: %w", err)
		}
		if loc.ID <= RootID {
			return fmt.Errorf("%w: stored location %q has id %d", ErrReservedID, loc.Name, loc.ID)
		}
		if other, exists := byName[loc.Name]; exists {
			return fmt.Errorf("%w: %q used by %d and %d", ErrDuplicateName, loc.Name, other, loc.ID)
		}
		locations[loc.ID] = loc
		byName[loc.Name] = loc.ID
		if loc.ID >= nextID {
			nextID = loc.ID + 1
		}
	}

	for _, loc := range locations {
		if loc.ParentLocation != RootID {
			if _, ok := locations[loc.ParentLocation]; !ok {
				return fmt.Errorf("%w: location %d references %d", ErrInvalidParent, loc.ID, loc.ParentLocation)
			}
		}
		if err := checkAcyclic(locations, loc.ID, loc.ParentLocation); err != nil {
			return err
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.locations = locations
	x.byName = byName
	x.nextID = nextID

	x.logger.Info("locations loaded", slog.Int("count", len(locations)))
	return nil
}

// checkAcyclic walks up from parent and fails if it reaches id or revisits a node.
func checkAcyclic(locations map[int]*Location, id, parent int) error {
	seen := map[int]bool{id: true}
	for cur := parent; cur != RootID; {
		if seen[cur] {
			return fmt.Errorf("%w: location %d", ErrParentCycle, id)
		}
		seen[cur] = true
		loc, ok := locations[cur]
		if !ok {
			return fmt.Errorf("%w: %d", ErrInvalidParent, cur)
		}
		cur = loc.ParentLocation
	}
	return nil
}

// CreateLocation adds a location under parentID (RootID for top level).
// Nil settings means DefaultSettings.
func (x *Index) CreateLocation(ctx context.Context, name string, parentID int, synonyms []string, settings *Settings) (*Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	s := DefaultSettings()
	if settings != nil {
		s = *settings
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if parentID != RootID {
		if _, ok := x.locations[parentID]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrInvalidParent, parentID)
		}
	}

	loc := &Location{
		ID:             x.nextID,
		Name:           name,
		ParentLocation: parentID,
		Synonyms:       make(map[string]struct{}, len(synonyms)),
		Settings:       s,
	}
	for _, syn := range synonyms {
		if syn == "" {
			return nil, ErrInvalidSynonym
		}
		loc.Synonyms[syn] = struct{}{}
	}
	if err := checkAcyclic(x.locations, loc.ID, parentID); err != nil {
		return nil, err
	}

	if err := x.store.Insert(ctx, rowstore.TableLocations, colID, loc.row()); err != nil {
		x.logger.Error("failed to persist new location",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to persist location %q: %w", name, err)
	}

	x.locations[loc.ID] = loc
	x.byName[name] = loc.ID
	x.nextID++

	x.logger.Debug("location created", slog.Int("id", loc.ID), slog.String("name", name))
	return loc.clone(), nil
}

// RenameLocation changes a location's name, persisting {name}.
// Renaming to the current name is a no-op.
func (x *Index) RenameLocation(ctx context.Context, id int, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return ErrInvalidName
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	loc, ok := x.locations[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}
	if loc.Name == newName {
		return nil
	}
	if other, exists := x.byName[newName]; exists && other != id {
		return fmt.Errorf("%w: %q", ErrDuplicateName, newName)
	}

	oldName := loc.Name
	loc.Name = newName
	delete(x.byName, oldName)
	x.byName[newName] = id

	return x.persist(ctx, id, rowstore.Row{colName: newName}, func() {
		loc.Name = oldName
		delete(x.byName, newName)
		x.byName[oldName] = id
	})
}

// AddSynonym adds synonym to the location's set, persisting {synonyms}.
// Adding a synonym that is already present is a no-op.
func (x *Index) AddSynonym(ctx context.Context, id int, synonym string) error {
	if synonym == "" {
		return ErrInvalidSynonym
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	loc, ok := x.locations[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}
	if loc.HasSynonym(synonym) {
		return nil
	}

	loc.Synonyms[synonym] = struct{}{}
	return x.persist(ctx, id, rowstore.Row{colSynonyms: loc.SynonymList()}, func() {
		delete(loc.Synonyms, synonym)
	})
}

// RemoveSynonym deletes synonym from the location's set, persisting {synonyms}.
// Returns ErrUnknownSynonym, without side effects, if it is not present.
func (x *Index) RemoveSynonym(ctx context.Context, id int, synonym string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	loc, ok := x.locations[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}
	if !loc.HasSynonym(synonym) {
		return fmt.Errorf("%w: %q", ErrUnknownSynonym, synonym)
	}

	delete(loc.Synonyms, synonym)
	return x.persist(ctx, id, rowstore.Row{colSynonyms: loc.SynonymList()}, func() {
		loc.Synonyms[synonym] = struct{}{}
	})
}

// MoveLocation re-parents a location, persisting {parent_location}.
func (x *Index) MoveLocation(ctx context.Context, id, newParent int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	loc, ok := x.locations[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}
	if newParent != RootID {
		if _, ok := x.locations[newParent]; !ok {
			return fmt.Errorf("%w: %d", ErrInvalidParent, newParent)
		}
	}
	if err := checkAcyclic(x.locations, id, newParent); err != nil {
		return err
	}
	if loc.ParentLocation == newParent {
		return nil
	}

	oldParent := loc.ParentLocation
	loc.ParentLocation = newParent
	return x.persist(ctx, id, rowstore.Row{colParent: newParent}, func() {
		loc.ParentLocation = oldParent
	})
}

// UpdateSettings replaces the floor-plan settings, persisting {settings}.
func (x *Index) UpdateSettings(ctx context.Context, id int, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	loc, ok := x.locations[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}

	old := loc.Settings
	loc.Settings = settings
	return x.persist(ctx, id, rowstore.Row{colSettings: settings}, func() {
		loc.Settings = old
	})
}

// DeleteLocation removes a location that has no children.
func (x *Index) DeleteLocation(ctx context.Context, id int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	loc, ok := x.locations[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}
	for _, other := range x.locations {
		if other.ParentLocation == id {
			return fmt.Errorf("%w: %d is parent of %d", ErrHasChildren, id, other.ID)
		}
	}

	if err := x.store.Delete(ctx, rowstore.TableLocations, colID, id); err != nil {
		x.logger.Error("failed to delete location",
			slog.Int("id", id),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete location %d: %w", id, err)
	}

	delete(x.locations, id)
	delete(x.byName, loc.Name)
	x.logger.Debug("location deleted", slog.Int("id", id))
	return nil
}

// persist writes fields for id and runs rollback if the write fails.
// Must be called with x.mu held.
func (x *Index) persist(ctx context.Context, id int, fields rowstore.Row, rollback func()) error {
	if err := x.store.Update(ctx, rowstore.TableLocations, colID, id, fields); err != nil {
		rollback()
		tracing.AddEvent(ctx, "location.rollback", attribute.Int("location.id", id))
		x.logger.Error("location update failed, rolled back",
			slog.Int("id", id),
			slog.String("table", rowstore.TableLocations),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to persist location %d: %w", id, err)
	}
	x.logger.Debug("location updated", slog.Int("id", id))
	return nil
}

// GetLocation returns a copy of the location with the given id.
func (x *Index) GetLocation(id int) (*Location, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	loc, ok := x.locations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLocationNotFound, id)
	}
	return loc.clone(), nil
}

// FindLocation resolves a name, falling back to synonyms. Matching is
// case-sensitive. When several locations share a synonym the lowest id wins.
func (x *Index) FindLocation(nameOrSynonym string) (*Location, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if id, ok := x.byName[nameOrSynonym]; ok {
		return x.locations[id].clone(), nil
	}

	var found *Location
	for _, loc := range x.locations {
		if loc.HasSynonym(nameOrSynonym) && (found == nil || loc.ID < found.ID) {
			found = loc
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrLocationNotFound, nameOrSynonym)
	}
	return found.clone(), nil
}

// Locations returns copies of every location ordered by id.
func (x *Index) Locations() []*Location {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sorted(func(*Location) bool { return true })
}

// Children returns the direct children of id ordered by id.
// Children(RootID) lists the top-level locations.
func (x *Index) Children(id int) ([]*Location, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if id != RootID {
		if _, ok := x.locations[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrLocationNotFound, id)
		}
	}
	return x.sorted(func(l *Location) bool { return l.ParentLocation == id }), nil
}

// sorted must be called with x.mu held.
func (x *Index) sorted(keep func(*Location) bool) []*Location {
	out := make([]*Location, 0, len(x.locations))
	for _, loc := range x.locations {
		if keep(loc) {
			out = append(out, loc.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
