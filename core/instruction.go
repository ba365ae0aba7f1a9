package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Operand is one argument of an instruction: either a name, resolved against
// the variable store at each use, or a literal value.
type Operand struct {
	Name string
	Lit  Value
}

// Ref returns a name operand.
func Ref(name string) Operand { return Operand{Name: name} }

// Lit returns a literal operand.
func Lit(v Value) Operand { return Operand{Lit: v} }

// IntLit returns an integer literal operand.
func IntLit(v int64) Operand { return Lit(Int(v)) }

// IsName reports whether the operand refers to a name.
func (o Operand) IsName() bool { return o.Name != "" }

// Equal compares two operands structurally.
func (o Operand) Equal(p Operand) bool {
	if o.IsName() || p.IsName() {
		return o.Name == p.Name
	}
	return o.Lit.Kind() == p.Lit.Kind() && o.Lit.Equal(p.Lit)
}

// String renders the operand so that the loader reads it back unchanged.
func (o Operand) String() string {
	if o.IsName() {
		return o.Name
	}
	if t, ok := o.Lit.AsText(); ok {
		return strconv.Quote(t)
	}
	return o.Lit.String()
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Instruction is one decoded instruction.
type Instruction struct {
	Opcode int
	Args   []Operand

	// Line is the source line, 0 for instructions built in memory.
	Line int
}

// Inst builds an instruction.
func Inst(opcode int, args ...Operand) Instruction {
	return Instruction{Opcode: opcode, Args: args}
}

// Equal compares opcode and arguments, ignoring the source line.
func (i Instruction) Equal(j Instruction) bool {
	if i.Opcode != j.Opcode || len(i.Args) != len(j.Args) {
		return false
	}
	for k := range i.Args {
		if !i.Args[k].Equal(j.Args[k]) {
			return false
		}
	}
	return true
}

func (i Instruction) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	parts = append(parts, fmt.Sprintf("0x%02X", i.Opcode))
	for _, a := range i.Args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}
