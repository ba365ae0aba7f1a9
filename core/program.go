package core

import (
	"fmt"
	"sort"

	"github.com/sarchlab/vexi/codebook"
)

// Labels is a read-only view of a program's label table.
type Labels struct {
	m map[string]int
}

// Lookup returns the instruction index bound to a label.
func (l Labels) Lookup(name string) (int, bool) {
	pc, ok := l.m[name]
	return pc, ok
}

// Names returns the label names in sorted order.
func (l Labels) Names() []string {
	names := make([]string, 0, len(l.m))
	for n := range l.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Program is a validated, immutable instruction list with its label table.
type Program struct {
	name   string
	insts  []Instruction
	labels map[string]int
}

// NewProgram validates the instructions against the codebook and builds the
// label table. Opcodes the codebook does not know are kept and fault when
// executed. Label instructions stay in place and execute as no-ops.
func NewProgram(cb *codebook.Codebook, name string, insts []Instruction) (*Program, error) {
	p := &Program{
		name:   name,
		insts:  append([]Instruction(nil), insts...),
		labels: make(map[string]int),
	}

	for pc, inst := range p.insts {
		entry, err := cb.Instruction(inst.Opcode)
		if err != nil {
			continue
		}

		if !entry.Arity.Accepts(len(inst.Args)) {
			return nil, p.loadError(inst, pc, fmt.Errorf(
				"%w: %s takes %s arguments, got %d",
				ErrMalformed, entry.Mnemonic, entry.Arity, len(inst.Args)))
		}

		if entry.Op != codebook.OpLabel {
			continue
		}

		label, ok := operandText(inst.Args[0])
		if !ok {
			return nil, p.loadError(inst, pc, fmt.Errorf(
				"%w: label name %s is not a name", ErrMalformed, inst.Args[0]))
		}
		if prev, dup := p.labels[label]; dup {
			return nil, p.loadError(inst, pc, fmt.Errorf(
				"%w: label %s already defined at %d", ErrMalformed, label, prev))
		}
		p.labels[label] = pc
	}

	if err := p.checkJumpTargets(cb); err != nil {
		return nil, err
	}

	return p, nil
}

// checkJumpTargets rejects symbolic targets that can never resolve. Names of
// predeclared variables are accepted since they are read at run time.
func (p *Program) checkJumpTargets(cb *codebook.Codebook) error {
	for pc, inst := range p.insts {
		entry, err := cb.Instruction(inst.Opcode)
		if err != nil {
			continue
		}

		target, ok := jumpTarget(entry, inst.Args)
		if !ok || !target.IsName() && target.Lit.Kind() != KindText {
			continue
		}

		name, _ := operandText(target)
		if _, ok := p.labels[name]; ok {
			continue
		}
		if target.IsName() && isVariable(cb, name) {
			continue
		}

		return p.loadError(inst, pc, fmt.Errorf("%w: %s", ErrUndefinedLabel, name))
	}
	return nil
}

func jumpTarget(entry codebook.Entry, args []Operand) (Operand, bool) {
	switch entry.Op {
	case codebook.OpJmp:
		return args[0], true
	case codebook.OpJmpIfEq, codebook.OpJmpIfNeq:
		return args[2], true
	default:
		return Operand{}, false
	}
}

func isVariable(cb *codebook.Codebook, name string) bool {
	for _, v := range cb.VariableNames() {
		if v == name {
			return true
		}
	}
	return false
}

// operandText returns the name or text payload of an operand.
func operandText(o Operand) (string, bool) {
	if o.IsName() {
		return o.Name, true
	}
	return o.Lit.AsText()
}

func (p *Program) loadError(inst Instruction, pc int, err error) *LoadError {
	line := inst.Line
	if line == 0 {
		err = fmt.Errorf("instruction %d: %w", pc, err)
	}
	return &LoadError{File: p.name, Line: line, Err: err}
}

// Name returns the name the program was loaded under.
func (p *Program) Name() string { return p.name }

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.insts) }

// At returns the instruction at pc.
func (p *Program) At(pc int) Instruction { return p.insts[pc] }

// Instructions returns a copy of the instruction list.
func (p *Program) Instructions() []Instruction {
	return append([]Instruction(nil), p.insts...)
}

// Labels returns the label table.
func (p *Program) Labels() Labels { return Labels{m: p.labels} }
