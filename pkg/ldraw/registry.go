package ldraw

import "sort"

// EntryState describes what the registry knows about an identity.
type EntryState int

const (
	// EntryUnknown means the identity has never been referenced.
	EntryUnknown EntryState = iota
	// EntryPending means the identity is referenced but its backing
	// text has not been parsed yet.
	EntryPending
	// EntryLoaded means a completed part type is registered.
	EntryLoaded
)

// Registry maps normalized identities to part types. Pending identities
// are tracked as a tagged state rather than a placeholder object, so
// lookups are handled exhaustively. A Registry is owned by one Loader
// and passed explicitly to the components that need lookup; it is never
// process-global, so multiple independent loads can coexist.
type Registry struct {
	entries map[string]*PartType // nil value = pending
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*PartType)}
}

// Lookup returns the part type registered under id and the entry state.
// The part type is non-nil only for EntryLoaded.
func (r *Registry) Lookup(id string) (*PartType, EntryState) {
	pt, ok := r.entries[NormalizeID(id)]
	if !ok {
		return nil, EntryUnknown
	}
	if pt == nil {
		return nil, EntryPending
	}
	return pt, EntryLoaded
}

// Known reports whether id is registered, pending or loaded.
func (r *Registry) Known(id string) bool {
	_, ok := r.entries[NormalizeID(id)]
	return ok
}

// MarkPending records id as referenced but not yet loaded. Loaded
// entries are left untouched.
func (r *Registry) MarkPending(id string) {
	id = NormalizeID(id)
	if _, ok := r.entries[id]; !ok {
		r.entries[id] = nil
	}
}

// Register inserts a completed part type, overwriting a pending mark.
func (r *Registry) Register(pt *PartType) {
	r.entries[pt.ID] = pt
}

// Remove deletes an entry; used when an empty main model is renamed.
func (r *Registry) Remove(id string) {
	delete(r.entries, NormalizeID(id))
}

// Loaded returns all completed part types in identity order.
func (r *Registry) Loaded() []*PartType {
	parts := make([]*PartType, 0, len(r.entries))
	for _, pt := range r.entries {
		if pt != nil {
			parts = append(parts, pt)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })
	return parts
}

// PendingIDs returns all identities still awaiting their backing text,
// in identity order.
func (r *Registry) PendingIDs() []string {
	var ids []string
	for id, pt := range r.entries {
		if pt == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
