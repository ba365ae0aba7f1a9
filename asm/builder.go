// Package asm provides an assembly-like API for writing vexi programs from Go.
//
// A Builder records every call as one instruction. When an Executor is
// attached, each instruction except labels and jumps also runs immediately,
// so a Builder can drive a machine interactively and save what it did as a
// program afterwards.
package asm

import (
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
)

// ErrNotVariable is returned by Set for names that have no assignment opcode.
var ErrNotVariable = errors.New("not an assignable variable")

// Executor runs single instructions. *api.Machine implements it.
type Executor interface {
	Exec(inst core.Instruction) error
}

// Builder records instructions. The first error stops recording and is
// reported by Err, Program and Save.
type Builder struct {
	cb    *codebook.Codebook
	exec  Executor
	insts []core.Instruction
	err   error
}

// New creates a builder that only records.
func New(cb *codebook.Codebook) *Builder {
	return &Builder{cb: cb}
}

// Attach makes the builder execute every instruction it records on e.
func (b *Builder) Attach(e Executor) *Builder {
	b.exec = e
	return b
}

// Err returns the first error the builder hit.
func (b *Builder) Err() error {
	return b.err
}

// Len returns the number of recorded instructions.
func (b *Builder) Len() int {
	return len(b.insts)
}

// Reset drops every recorded instruction and the sticky error.
func (b *Builder) Reset() {
	b.insts = nil
	b.err = nil
}

// Program turns the recording into a program.
func (b *Builder) Program(name string) (*core.Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	return core.NewProgram(b.cb, name, b.insts)
}

// Save writes the recording as VEXI text.
func (b *Builder) Save(path string) error {
	prog, err := b.Program(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	return core.Format(f, b.cb, prog)
}

func (b *Builder) emit(mnemonic string, args ...any) {
	if b.err != nil {
		return
	}

	entry, err := b.cb.ByMnemonic(mnemonic)
	if err != nil {
		b.err = fmt.Errorf("%s: %w", mnemonic, err)
		return
	}

	b.emitEntry(entry, args...)
}

func (b *Builder) emitEntry(entry codebook.Entry, args ...any) {
	if b.err != nil {
		return
	}

	ops := make([]core.Operand, len(args))
	for i, a := range args {
		op, err := operand(a)
		if err != nil {
			b.err = fmt.Errorf("%s argument %d: %w", entry.Mnemonic, i+1, err)
			return
		}
		ops[i] = op
	}

	inst := core.Inst(int(entry.Opcode), ops...)
	inst.Line = len(b.insts) + 1

	// Control flow only means something inside a program, so it is recorded
	// but never executed.
	if b.exec != nil && entry.Category != codebook.ControlFlow {
		if err := b.exec.Exec(inst); err != nil {
			b.err = err
			return
		}
	}

	b.insts = append(b.insts, inst)
}

// Const composes single-byte constant codes big-endian into one literal, so
// Const(0xFF, 0x02) is 65282. A bad code becomes the builder's error.
func (b *Builder) Const(codes ...int) core.Value {
	n, err := b.cb.Compose(codes...)
	if err != nil && b.err == nil {
		b.err = err
	}
	return core.Int(n)
}

// Set assigns value to a variable that has its own assignment opcode.
func (b *Builder) Set(name string, value any) *Builder {
	if b.err != nil {
		return b
	}

	entry, err := b.cb.ByMnemonic(name)
	if err != nil || entry.Op != codebook.OpAssign {
		b.err = fmt.Errorf("%w: %s", ErrNotVariable, name)
		return b
	}

	b.emitEntry(entry, value)
	return b
}

// Array declares an array of size elements set to def.
func (b *Builder) Array(name string, size int, def any) *Builder {
	b.emit("ARRAY", name, size, def)
	return b
}

// ASet stores value at index of an array.
func (b *Builder) ASet(name string, index, value any) *Builder {
	b.emit("SET", name, index, value)
	return b
}

// Mov copies src into dst.
func (b *Builder) Mov(dst string, src any) *Builder {
	b.emit("var_mov", dst, src)
	return b
}

func (b *Builder) Add(dst string, src any) *Builder { b.emit("ADD", dst, src); return b }
func (b *Builder) Sub(dst string, src any) *Builder { b.emit("SUB", dst, src); return b }
func (b *Builder) Mul(dst string, src any) *Builder { b.emit("MUL", dst, src); return b }
func (b *Builder) Div(dst string, src any) *Builder { b.emit("DIV", dst, src); return b }
func (b *Builder) Mod(dst string, src any) *Builder { b.emit("MOD", dst, src); return b }

func (b *Builder) Eq(dst string, x, y any) *Builder  { b.emit("EQ", dst, x, y); return b }
func (b *Builder) Neq(dst string, x, y any) *Builder { b.emit("NEQ", dst, x, y); return b }
func (b *Builder) Gt(dst string, x, y any) *Builder  { b.emit("GT", dst, x, y); return b }
func (b *Builder) Lt(dst string, x, y any) *Builder  { b.emit("LT", dst, x, y); return b }
func (b *Builder) Gte(dst string, x, y any) *Builder { b.emit("GTE", dst, x, y); return b }
func (b *Builder) Lte(dst string, x, y any) *Builder { b.emit("LTE", dst, x, y); return b }
func (b *Builder) And(dst string, x, y any) *Builder { b.emit("AND", dst, x, y); return b }
func (b *Builder) Or(dst string, x, y any) *Builder  { b.emit("OR", dst, x, y); return b }
func (b *Builder) Not(dst string, x any) *Builder    { b.emit("NOT", dst, x); return b }

// Get reads index of an array into dst.
func (b *Builder) Get(name string, index any, dst string) *Builder {
	b.emit("GET", name, index, dst)
	return b
}

// Push appends value to an array.
func (b *Builder) Push(name string, value any) *Builder {
	b.emit("PUSH", name, value)
	return b
}

// Pop removes the last element of an array and, when dst is not empty,
// stores it there.
func (b *Builder) Pop(name, dst string) *Builder {
	if dst == "" {
		b.emit("POP", name)
	} else {
		b.emit("POP", name, dst)
	}
	return b
}

// Length stores the length of an array in dst.
func (b *Builder) Length(name, dst string) *Builder {
	b.emit("LENGTH", name, dst)
	return b
}

// Label marks the position of the next instruction.
func (b *Builder) Label(name string) *Builder {
	b.emit("LABEL", name)
	return b
}

// Jmp jumps to a label.
func (b *Builder) Jmp(label string) *Builder {
	b.emit("JMP", label)
	return b
}

// JmpIfEq jumps to label when x equals y.
func (b *Builder) JmpIfEq(x, y any, label string) *Builder {
	b.emit("JMP_IF_EQ", x, y, label)
	return b
}

// JmpIfNeq jumps to label when x differs from y.
func (b *Builder) JmpIfNeq(x, y any, label string) *Builder {
	b.emit("JMP_IF_NEQ", x, y, label)
	return b
}

// PrintStr prints text without a newline.
func (b *Builder) PrintStr(text string) *Builder {
	b.emit("PRINT_STR", core.Text(text))
	return b
}

// PrintVar prints a value followed by a newline.
func (b *Builder) PrintVar(x any) *Builder {
	b.emit("PRINT_VAR", x)
	return b
}

// InputInt reads one integer into dst.
func (b *Builder) InputInt(dst string) *Builder {
	b.emit("INPUT_INT", dst)
	return b
}
