package typesystem

import (
	"sync"

	"github.com/funvibe/typesubst/internal/config"
)

// ClassifierRegistry is the read-only view of declarations the inference
// layer consults.
type ClassifierRegistry interface {
	// DeclarationOf returns the class declaration behind c, if c is a class.
	DeclarationOf(c TypeConstructor) (*ClassConstructor, bool)
	// FormalTypeParametersOf returns the ordered formal parameters of c.
	FormalTypeParametersOf(c TypeConstructor) []*TypeParameter
	// SupertypesOf returns the ordered direct supertypes of c. Classes
	// without declared supertypes answer Any; parameters and variables
	// without bounds answer Any?.
	SupertypesOf(c TypeConstructor) []Type
	// AnyType returns the non-null top type.
	AnyType() *SimpleType
	// NothingType returns the bottom type.
	NothingType() *SimpleType
	IsAny(c TypeConstructor) bool
	IsNothing(c TypeConstructor) bool
}

// ParameterSpec describes a formal parameter at declaration time.
type ParameterSpec struct {
	Name     string
	Variance Variance
}

// Registry is the in-memory classifier registry. Declarations happen in two
// phases (DeclareClass, then SetSupertypes/SetUpperBounds) and the registry is
// read-only after Freeze.
type Registry struct {
	mu         sync.RWMutex
	classes    map[string]*ClassConstructor
	parameters map[string]*TypeParameter
	order      []*ClassConstructor
	frozen     bool

	any     *ClassConstructor
	nothing *ClassConstructor
}

// NewRegistry returns a registry holding Any and Nothing.
func NewRegistry() *Registry {
	r := &Registry{
		classes:    make(map[string]*ClassConstructor),
		parameters: make(map[string]*TypeParameter),
	}
	r.any, _ = r.DeclareClass(config.AnyTypeName, Class)
	r.nothing, _ = r.DeclareClass(config.NothingTypeName, Class)
	return r
}

// DeclareClass creates a classifier with its formal parameters.
func (r *Registry) DeclareClass(name string, kind ClassKind, params ...ParameterSpec) (*ClassConstructor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return nil, ErrRegistryFrozen
	}
	if _, exists := r.classes[name]; exists {
		return nil, &DuplicateClassifierError{Name: name}
	}
	c := &ClassConstructor{Name: name, Kind: kind}
	for i, spec := range params {
		p := NewTypeParameter(name, spec.Name, i, spec.Variance)
		c.parameters = append(c.parameters, p)
		r.parameters[p.QualifiedName()] = p
	}
	r.classes[name] = c
	r.order = append(r.order, c)
	return c, nil
}

// SetSupertypes attaches the direct supertypes of a declared class.
func (r *Registry) SetSupertypes(c *ClassConstructor, supertypes []Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	c.supertypes = supertypes
	return nil
}

// SetUpperBounds attaches declared upper bounds to a parameter.
func (r *Registry) SetUpperBounds(p *TypeParameter, bounds []Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	p.UpperBounds = bounds
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup finds a class by name.
func (r *Registry) Lookup(name string) (*ClassConstructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// LookupParameter finds a parameter by its qualified name (Owner.Name).
func (r *Registry) LookupParameter(qualified string) (*TypeParameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parameters[qualified]
	return p, ok
}

// MustLookup is Lookup for fixtures that know the name exists.
func (r *Registry) MustLookup(name string) *ClassConstructor {
	c, ok := r.Lookup(name)
	if !ok {
		panic(NewClassifierNotFoundError(name))
	}
	return c
}

// Classes returns the declared classes in declaration order.
func (r *Registry) Classes() []*ClassConstructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ClassConstructor, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) DeclarationOf(c TypeConstructor) (*ClassConstructor, bool) {
	cc, ok := c.(*ClassConstructor)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cc, r.classes[cc.Name] == cc
}

func (r *Registry) FormalTypeParametersOf(c TypeConstructor) []*TypeParameter {
	return c.Parameters()
}

func (r *Registry) SupertypesOf(c TypeConstructor) []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	supers := c.Supertypes()
	if len(supers) > 0 {
		return supers
	}
	switch c := c.(type) {
	case *ClassConstructor:
		if c == r.any {
			return nil
		}
		return []Type{r.AnyType()}
	case *ParameterConstructor, *VariableConstructor:
		return []Type{MakeNullableAsSpecified(r.AnyType(), true)}
	}
	return nil
}

func (r *Registry) AnyType() *SimpleType     { return &SimpleType{Constructor: r.any} }
func (r *Registry) NothingType() *SimpleType { return &SimpleType{Constructor: r.nothing} }

// IsAny reports whether c is the top class.
func (r *Registry) IsAny(c TypeConstructor) bool { return c == TypeConstructor(r.any) }

// IsNothing reports whether c is the bottom class.
func (r *Registry) IsNothing(c TypeConstructor) bool { return c == TypeConstructor(r.nothing) }
