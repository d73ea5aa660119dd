package arscwriter

import "fmt"

// Visibility levels of an entry, in increasing order of exposure.
const (
	VisibilityUndefined = iota
	VisibilityPrivate
	VisibilityPublic
)

// Overlayable is a named, actor-scoped group of resources that runtime
// overlays may replace. Entries reference one shared record through an
// integer handle into Table.Overlayables, so "same group" is handle
// equality rather than pointer identity.
type Overlayable struct {
	Name   string
	Actor  string
	Source Source
}

// OverlayableItem is one entry's membership in an overlayable group, with
// the policy partitions that gate who may overlay it.
type OverlayableItem struct {
	Overlayable int // handle into Table.Overlayables
	Policies    uint32
	Source      Source
}

// ConfigValue pairs one device configuration (plus optional product
// qualifier) with a value.
type ConfigValue struct {
	Config  Config
	Product string
	Value   Value
}

// Entry is one named resource slot within a type. IDs are dense within the
// type but may have holes.
type Entry struct {
	Name       string
	ID         int // entry id, -1 while unassigned
	Visibility int
	StagedAPI  bool
	Source     Source

	Overlayable *OverlayableItem
	StagedID    ResourceID // finalized id alias for a staged id, 0 if none

	Values []*ConfigValue
}

// FindValue returns the default-product value for an exact configuration
// match, or nil. Product "default" is the spelled-out form of the empty
// qualifier.
func (e *Entry) FindValue(config Config) *ConfigValue {
	for _, cv := range e.Values {
		if cv.Config == config && (cv.Product == "" || cv.Product == "default") {
			return cv
		}
	}
	return nil
}

// HasValue reports whether the entry has any value for the configuration,
// under any product qualifier.
func (e *Entry) HasValue(config Config) bool {
	for _, cv := range e.Values {
		if cv.Config == config {
			return true
		}
	}
	return false
}

// AddValue appends a configuration value, enforcing that configurations are
// unique within the entry.
func (e *Entry) AddValue(config Config, product string, v Value) error {
	for _, cv := range e.Values {
		if cv.Config == config && cv.Product == product {
			return fmt.Errorf("duplicate value for entry %q config %s", e.Name, config.String())
		}
	}
	e.Values = append(e.Values, &ConfigValue{Config: config, Product: product, Value: v})
	return nil
}

// Type is a named resource kind owning an ordered-by-id set of entries.
type Type struct {
	Name    string
	ID      int // type id, -1 while unassigned
	Entries []*Entry
}

// pseudo types exist only in textual form and never reach binary chunks
func (t *Type) pseudo() bool {
	return t.Name == "styleable" || t.Name == "macro"
}

// FindOrCreateEntry returns the named entry, creating it unassigned.
func (t *Type) FindOrCreateEntry(name string) *Entry {
	for _, e := range t.Entries {
		if e.Name == name {
			return e
		}
	}
	e := &Entry{Name: name, ID: -1}
	t.Entries = append(t.Entries, e)
	return e
}

// Package is one resource package; id 0x00 is reserved for shared
// libraries, 0x7f is the conventional application id.
type Package struct {
	ID    int // package id, -1 while unassigned
	Name  string
	Types []*Type
}

// FindOrCreateType returns the named type, creating it unassigned.
func (p *Package) FindOrCreateType(name string) *Type {
	for _, t := range p.Types {
		if t.Name == name {
			return t
		}
	}
	t := &Type{Name: name, ID: -1}
	p.Types = append(p.Types, t)
	return t
}

// Table is the fully-resolved resource table view the flattener consumes.
// The flattener reads it and never mutates anything except the owned value
// string pool, which it sorts and prunes once before encoding.
type Table struct {
	Strings  *StringPool
	Packages []*Package

	// Overlayable records referenced by entries through handles.
	Overlayables []Overlayable

	// Package-id to name mappings for shared-library references.
	ReferencedPackages map[uint8]string
}

func NewTable() *Table {
	return &Table{
		Strings:            NewStringPool(),
		ReferencedPackages: make(map[uint8]string),
	}
}

// AddOverlayable registers a group record and returns its handle.
func (t *Table) AddOverlayable(o Overlayable) int {
	t.Overlayables = append(t.Overlayables, o)
	return len(t.Overlayables) - 1
}

// FindOrCreatePackage returns the named package, creating it unassigned.
func (t *Table) FindOrCreatePackage(name string) *Package {
	for _, p := range t.Packages {
		if p.Name == name {
			return p
		}
	}
	p := &Package{ID: -1, Name: name}
	t.Packages = append(t.Packages, p)
	return p
}
