package core

import (
	"fmt"
	"sort"
)

// VarStore holds the named variables of one machine. The set of names is
// fixed at construction except for array declarations.
type VarStore struct {
	vars map[string]Value
}

// NewVarStore creates a store where every name starts as Int(0).
func NewVarStore(names []string) *VarStore {
	s := &VarStore{vars: make(map[string]Value, len(names))}
	for _, n := range names {
		s.vars[n] = Int(0)
	}
	return s
}

// Resolve returns the current value of an operand. A name that is bound
// yields its value, an unbound name yields itself as text, and a literal
// yields itself. Nothing is cached.
func (s *VarStore) Resolve(o Operand) Value {
	if !o.IsName() {
		return o.Lit
	}
	if v, ok := s.vars[o.Name]; ok {
		return v
	}
	return Text(o.Name)
}

// Lookup returns the value bound to name.
func (s *VarStore) Lookup(name string) (Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Has reports whether name is bound.
func (s *VarStore) Has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Assign rebinds an existing name. Unknown names are left alone and Assign
// returns false.
func (s *VarStore) Assign(name string, v Value) bool {
	if _, ok := s.vars[name]; !ok {
		return false
	}
	s.vars[name] = v
	return true
}

// DeclareArray binds name to a fresh array, replacing any previous binding.
func (s *VarStore) DeclareArray(name string, size int, def Value) (*Array, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: array %s has negative size %d",
			ErrInvalidOperand, name, size)
	}
	if size > MaxArrayLen {
		return nil, fmt.Errorf("%w: array %s size %d exceeds %d",
			ErrInvalidOperand, name, size, MaxArrayLen)
	}
	a := NewArray(size, def)
	s.vars[name] = ArrayOf(a)
	return a, nil
}

// Array returns the array bound to name.
func (s *VarStore) Array(name string) (*Array, error) {
	v, ok := s.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is undefined", ErrNotArray, name)
	}
	a, ok := v.AsArray()
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %s", ErrNotArray, name, v.Kind().Name())
	}
	return a, nil
}

// Names returns the bound names in sorted order.
func (s *VarStore) Names() []string {
	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of every binding.
func (s *VarStore) Snapshot() map[string]Value {
	out := make(map[string]Value, len(s.vars))
	for n, v := range s.vars {
		out[n] = v.Clone()
	}
	return out
}
