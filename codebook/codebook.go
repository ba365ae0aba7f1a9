// Package codebook defines the opcode table of the vexi virtual machine.
//
// A Codebook maps an opcode to its category, mnemonic, and arity. The table is
// built once and never mutated afterwards, so a single *Codebook can be shared
// by every machine in the process.
package codebook

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when an opcode or mnemonic is absent from the table.
var ErrNotFound = errors.New("opcode not found")

// Opcode identifies an operation. Base opcodes fit in one byte; wider
// literals are built with Compose.
type Opcode uint8

// Category groups opcodes. The declaration order is the resolution priority.
type Category int

// Categories in resolution priority order.
const (
	Arithmetic Category = iota
	Logic
	Variables
	Control
	Array
	ArrayOps
	IO
	ControlFlow
	Constants
	ExtraConstants

	numCategories
)

// Name returns the name of the category.
func (c Category) Name() string {
	switch c {
	case Arithmetic:
		return "arithmetic"
	case Logic:
		return "logic"
	case Variables:
		return "variables"
	case Control:
		return "control"
	case Array:
		return "data_structures"
	case ArrayOps:
		return "ds_operations"
	case IO:
		return "io"
	case ControlFlow:
		return "control_flow"
	case Constants:
		return "constants"
	case ExtraConstants:
		return "extra_constants"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Executable reports whether opcodes of the category are instructions.
// Constants live in operand space and are never dispatched.
func (c Category) Executable() bool {
	return c >= Arithmetic && c <= ControlFlow
}

// Operation is the closed set of behaviors an executable opcode can bind to.
type Operation int

// Operations.
const (
	OpNone Operation = iota

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	OpEq
	OpNeq
	OpGt
	OpLt
	OpGte
	OpLte
	OpAnd
	OpOr
	OpNot

	OpAssign
	OpMov

	OpArray
	OpPush
	OpPop
	OpGet
	OpSet
	OpLength

	OpPrintStr
	OpPrintVar
	OpInputInt

	OpLabel
	OpJmp
	OpJmpIfEq
	OpJmpIfNeq

	NumOperations
)

// Arity bounds the number of arguments an instruction accepts. Max < 0 means
// any number.
type Arity struct {
	Min, Max int
}

// Fixed returns an arity that accepts exactly n arguments.
func Fixed(n int) Arity {
	return Arity{Min: n, Max: n}
}

// Variadic is the arity of opcodes whose argument count is not checked.
var Variadic = Arity{Min: 0, Max: -1}

// Accepts reports whether n arguments satisfy the arity.
func (a Arity) Accepts(n int) bool {
	if n < a.Min {
		return false
	}
	return a.Max < 0 || n <= a.Max
}

func (a Arity) String() string {
	switch {
	case a.Max < 0:
		return fmt.Sprintf("%d+", a.Min)
	case a.Min == a.Max:
		return fmt.Sprintf("%d", a.Min)
	default:
		return fmt.Sprintf("%d..%d", a.Min, a.Max)
	}
}

// Entry describes one opcode.
type Entry struct {
	Opcode   Opcode
	Category Category
	Mnemonic string
	Arity    Arity

	// Op is the bound behavior. OpNone for opcodes the engine recognizes but
	// does not execute, such as the structured-control markers.
	Op Operation

	// Literal is the value of a constant opcode, nil otherwise.
	Literal any
}

// IsConstant reports whether the entry lives in one of the constant groups.
func (e Entry) IsConstant() bool {
	return e.Category == Constants || e.Category == ExtraConstants
}

func (e Entry) String() string {
	if e.IsConstant() {
		return fmt.Sprintf("0x%02X %s(%v)", e.Opcode, e.Category.Name(), e.Literal)
	}
	return fmt.Sprintf("0x%02X %s.%s/%s", e.Opcode, e.Category.Name(), e.Mnemonic, e.Arity)
}

// Codebook is an immutable opcode table.
type Codebook struct {
	name    string
	groups  [numCategories]map[Opcode]Entry
	byName  map[string]Entry
	aliases map[string]string
}

// New creates an empty codebook. Tables are filled with register before the
// codebook is handed out.
func New(name string) *Codebook {
	cb := &Codebook{
		name:    name,
		byName:  make(map[string]Entry),
		aliases: make(map[string]string),
	}
	for i := range cb.groups {
		cb.groups[i] = make(map[Opcode]Entry)
	}
	return cb
}

// Name returns the name of the codebook.
func (cb *Codebook) Name() string {
	return cb.name
}

func (cb *Codebook) register(e Entry) {
	if _, dup := cb.groups[e.Category][e.Opcode]; dup {
		panic(fmt.Sprintf("codebook %s: opcode 0x%02X registered twice in %s",
			cb.name, e.Opcode, e.Category.Name()))
	}

	cb.groups[e.Category][e.Opcode] = e

	// The first registration of a mnemonic wins, so reverse lookup follows
	// the category priority.
	if e.Mnemonic != "" {
		if _, ok := cb.byName[e.Mnemonic]; !ok {
			cb.byName[e.Mnemonic] = e
		}
	}
}

func (cb *Codebook) alias(name, mnemonic string) {
	cb.aliases[name] = mnemonic
}

// Lookup returns the entry of an opcode, searching every category in priority
// order.
func (cb *Codebook) Lookup(op Opcode) (Entry, error) {
	for c := Category(0); c < numCategories; c++ {
		if e, ok := cb.groups[c][op]; ok {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("0x%02X: %w", op, ErrNotFound)
}

// Instruction returns the entry of an executable opcode. Values outside the
// single-byte range and values that are only constants are not instructions.
func (cb *Codebook) Instruction(op int) (Entry, error) {
	if op < 0 || op > 0xFF {
		return Entry{}, fmt.Errorf("0x%X: %w", op, ErrNotFound)
	}

	for c := Arithmetic; c <= ControlFlow; c++ {
		if e, ok := cb.groups[c][Opcode(op)]; ok {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("0x%02X: %w", op, ErrNotFound)
}

// ByMnemonic resolves a mnemonic or one of its aliases.
func (cb *Codebook) ByMnemonic(name string) (Entry, error) {
	if target, ok := cb.aliases[name]; ok {
		name = target
	}
	if e, ok := cb.byName[name]; ok {
		return e, nil
	}
	return Entry{}, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// VariableName returns the name bound to a variable opcode.
func (cb *Codebook) VariableName(op int64) (string, bool) {
	if op < 0 || op > 0xFF {
		return "", false
	}
	e, ok := cb.groups[Variables][Opcode(op)]
	if !ok {
		return "", false
	}
	return e.Mnemonic, true
}

// VariableNames returns the predeclared variable names in opcode order.
func (cb *Codebook) VariableNames() []string {
	entries := cb.Group(Variables)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Mnemonic)
	}
	return names
}

// Constant returns the literal value of a constant code, searching the
// constant groups in priority order.
func (cb *Codebook) Constant(code int) (any, error) {
	if code < 0 || code > 0xFF {
		return nil, fmt.Errorf("constant 0x%X: %w", code, ErrNotFound)
	}
	for _, c := range []Category{Constants, ExtraConstants} {
		if e, ok := cb.groups[c][Opcode(code)]; ok {
			return e.Literal, nil
		}
	}
	return nil, fmt.Errorf("constant 0x%02X: %w", code, ErrNotFound)
}

// ExtraConstant returns the typed literal of an extra constant code.
func (cb *Codebook) ExtraConstant(code int) (any, error) {
	if code >= 0 && code <= 0xFF {
		if e, ok := cb.groups[ExtraConstants][Opcode(code)]; ok {
			return e.Literal, nil
		}
	}
	return nil, fmt.Errorf("extra constant 0x%X: %w", code, ErrNotFound)
}

// Compose concatenates single-byte constant codes big-endian, so
// Compose(0xFF, 0x02) is 255*256 + 2.
func (cb *Codebook) Compose(codes ...int) (int64, error) {
	if len(codes) > 8 {
		return 0, fmt.Errorf("compose: %d bytes overflow int64", len(codes))
	}

	var value int64
	for _, c := range codes {
		lit, err := cb.Constant(c)
		if err != nil {
			return 0, fmt.Errorf("compose: %w", err)
		}
		b, ok := lit.(int64)
		if !ok || b < 0 || b > 0xFF {
			return 0, fmt.Errorf("compose: code 0x%02X is not a byte constant", c)
		}
		value = value<<8 + b
	}

	if len(codes) == 8 && value < 0 {
		return 0, fmt.Errorf("compose: value overflows int64")
	}

	return value, nil
}

// Group returns the entries of one category ordered by opcode.
func (cb *Codebook) Group(c Category) []Entry {
	if c < 0 || c >= numCategories {
		return nil
	}
	entries := make([]Entry, 0, len(cb.groups[c]))
	for _, e := range cb.groups[c] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Opcode < entries[j].Opcode
	})
	return entries
}

// Entries returns every entry, grouped by category in priority order.
func (cb *Codebook) Entries() []Entry {
	var entries []Entry
	for c := Category(0); c < numCategories; c++ {
		entries = append(entries, cb.Group(c)...)
	}
	return entries
}

// Categories returns every category in priority order.
func Categories() []Category {
	cats := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		cats = append(cats, c)
	}
	return cats
}
