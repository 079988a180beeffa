// Package slavetypes holds the table of known slave device types. A
// slave's type decides which attributes and children it may carry and
// which module parameters it accepts.
package slavetypes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/KevinKickass/ecconf/internal/records"
)

// Generic is the raw profile whose PDO layout is described in the
// configuration itself.
const Generic = "generic"

type ModParamDesc struct {
	Name string
	ID   int32
	Type records.ModParamType
}

type Type struct {
	Name        string
	VID         uint32
	PID         uint32
	Description string
	// ModParams is nil for types that take no module parameters.
	ModParams []ModParamDesc
}

// IsGeneric reports whether the type is the raw profile.
func (t *Type) IsGeneric() bool {
	return t.Name == Generic
}

// FindModParam looks up a parameter by exact name.
func (t *Type) FindModParam(name string) (ModParamDesc, bool) {
	for _, p := range t.ModParams {
		if p.Name == name {
			return p, true
		}
	}
	return ModParamDesc{}, false
}

// ParseModParamType maps a descriptor type name.
func ParseModParamType(s string) (records.ModParamType, error) {
	switch strings.ToLower(s) {
	case "bit":
		return records.ModParamBit, nil
	case "u32":
		return records.ModParamU32, nil
	case "s32":
		return records.ModParamS32, nil
	case "float":
		return records.ModParamFloat, nil
	case "string":
		return records.ModParamString, nil
	}
	return records.ModParamNone, fmt.Errorf("unknown modparam type %q", s)
}

// Registry maps type names to descriptors. Names are case-sensitive.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry returns a registry seeded with the built-in types.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]*Type)}
	for i := range builtinTypes {
		t := builtinTypes[i]
		r.types[t.Name] = &t
	}
	return r
}

// Register adds a type. Redefining an existing name is an error.
func (r *Registry) Register(t *Type) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("slave type has no name")
	}
	if len(t.Name) > records.StrMaxLen-1 {
		return fmt.Errorf("slave type name %q too long", t.Name)
	}

	seen := make(map[string]bool, len(t.ModParams))
	for _, p := range t.ModParams {
		if seen[p.Name] {
			return fmt.Errorf("slave type %s: duplicate modparam %q", t.Name, p.Name)
		}
		seen[p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("slave type %s already defined", t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// Lookup finds a type by name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
