package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/vexi/codebook"
)

// ResultKind tells the engine how to continue after a handler.
type ResultKind int

// Result kinds.
const (
	Continue ResultKind = iota
	Jump
	Faulted
)

// Result is the outcome of one handler.
type Result struct {
	Kind   ResultKind
	Target int
	Err    error
}

func next() Result             { return Result{Kind: Continue} }
func jumpTo(target int) Result { return Result{Kind: Jump, Target: target} }
func fault(err error) Result   { return Result{Kind: Faulted, Err: err} }

func faultf(sentinel error, format string, args ...any) Result {
	return fault(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

type handler func(e *Emulator, entry codebook.Entry, args []Operand, labels Labels) Result

// handlers binds every operation to its behavior. OpNone stays nil, so
// structured-control markers are unimplemented.
var handlers = [codebook.NumOperations]handler{
	codebook.OpAdd: (*Emulator).runArithmetic,
	codebook.OpSub: (*Emulator).runArithmetic,
	codebook.OpMul: (*Emulator).runArithmetic,
	codebook.OpDiv: (*Emulator).runArithmetic,
	codebook.OpMod: (*Emulator).runArithmetic,

	codebook.OpEq:  (*Emulator).runLogic,
	codebook.OpNeq: (*Emulator).runLogic,
	codebook.OpGt:  (*Emulator).runLogic,
	codebook.OpLt:  (*Emulator).runLogic,
	codebook.OpGte: (*Emulator).runLogic,
	codebook.OpLte: (*Emulator).runLogic,
	codebook.OpAnd: (*Emulator).runLogic,
	codebook.OpOr:  (*Emulator).runLogic,
	codebook.OpNot: (*Emulator).runLogic,

	codebook.OpAssign: (*Emulator).runAssign,
	codebook.OpMov:    (*Emulator).runMov,

	codebook.OpArray:  (*Emulator).runArray,
	codebook.OpPush:   (*Emulator).runPush,
	codebook.OpPop:    (*Emulator).runPop,
	codebook.OpGet:    (*Emulator).runGet,
	codebook.OpSet:    (*Emulator).runSet,
	codebook.OpLength: (*Emulator).runLength,

	codebook.OpPrintStr: (*Emulator).runPrintStr,
	codebook.OpPrintVar: (*Emulator).runPrintVar,
	codebook.OpInputInt: (*Emulator).runInputInt,

	codebook.OpLabel:    (*Emulator).runLabel,
	codebook.OpJmp:      (*Emulator).runJmp,
	codebook.OpJmpIfEq:  (*Emulator).runCondJmp,
	codebook.OpJmpIfNeq: (*Emulator).runCondJmp,
}

// Emulator executes instructions against a variable store.
type Emulator struct {
	cb     *codebook.Codebook
	vars   *VarStore
	strict bool
	in     *bufio.Reader
	out    io.Writer
}

// NewEmulator creates a strict emulator reading stdin and writing stdout.
func NewEmulator(cb *codebook.Codebook, vars *VarStore) *Emulator {
	return &Emulator{
		cb:     cb,
		vars:   vars,
		strict: true,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// SetStrict selects whether unimplemented opcodes fault (strict) or are
// skipped with a warning.
func (e *Emulator) SetStrict(strict bool) { e.strict = strict }

// SetInput sets the source INPUT_INT reads from.
func (e *Emulator) SetInput(r io.Reader) { e.in = bufio.NewReader(r) }

// SetOutput sets the destination of the print instructions.
func (e *Emulator) SetOutput(w io.Writer) { e.out = w }

// Vars returns the variable store.
func (e *Emulator) Vars() *VarStore { return e.vars }

// Codebook returns the codebook used for decoding.
func (e *Emulator) Codebook() *codebook.Codebook { return e.cb }

// Step executes inst, found at pc, and returns the next pc. A failed
// instruction leaves the variable store untouched and returns a *Fault.
func (e *Emulator) Step(inst Instruction, pc int, labels Labels) (int, error) {
	entry, err := e.cb.Instruction(inst.Opcode)
	if err != nil {
		return pc, e.fault(inst, pc, entry, ErrUnknownOpcode)
	}

	if !entry.Arity.Accepts(len(inst.Args)) {
		return pc, e.fault(inst, pc, entry, fmt.Errorf("%w: %s takes %s arguments, got %d",
			ErrMalformed, entry.Mnemonic, entry.Arity, len(inst.Args)))
	}

	h := handlers[entry.Op]
	if h == nil {
		if e.strict {
			return pc, e.fault(inst, pc, entry, ErrUnimplemented)
		}
		slog.Warn("skipping unimplemented opcode",
			"PC", pc, "Opcode", fmt.Sprintf("0x%02X", inst.Opcode), "Mnemonic", entry.Mnemonic)
		return pc + 1, nil
	}

	// Direct assignment binds its argument as given; 0x30-0x35 are plain
	// literals there.
	args := inst.Args
	if entry.Op != codebook.OpAssign {
		args = e.translate(args)
	}

	r := h(e, entry, args, labels)

	nextPC := pc + 1
	switch r.Kind {
	case Jump:
		nextPC = r.Target
	case Faulted:
		return pc, e.fault(inst, pc, entry, r.Err)
	}

	Trace("Inst",
		"PC", pc,
		"Opcode", fmt.Sprintf("0x%02X", inst.Opcode),
		"Mnemonic", entry.Mnemonic,
		"Next", nextPC)

	return nextPC, nil
}

// StepProgram executes the instruction of p at pc. Jumping to p.Len() ends
// the program; any other target outside the program faults.
func (e *Emulator) StepProgram(p *Program, pc int) (int, error) {
	if pc < 0 || pc >= p.Len() {
		return pc, &Fault{PC: pc, Err: fmt.Errorf("%w: pc %d, program has %d instructions",
			ErrJumpOutOfRange, pc, p.Len())}
	}

	inst := p.At(pc)
	nextPC, err := e.Step(inst, pc, p.Labels())
	if err != nil {
		return pc, err
	}

	if nextPC < 0 || nextPC > p.Len() {
		entry, _ := e.cb.Instruction(inst.Opcode)
		return pc, e.fault(inst, pc, entry, fmt.Errorf("%w: target %d, program has %d instructions",
			ErrJumpOutOfRange, nextPC, p.Len()))
	}

	return nextPC, nil
}

// RunStats summarizes a run.
type RunStats struct {
	Steps  int
	PC     int
	Halted bool
}

// Run executes p from pc 0 until the program ends, a fault occurs, ctx is
// done, or maxSteps instructions have run. maxSteps <= 0 means no limit.
func (e *Emulator) Run(ctx context.Context, p *Program, maxSteps int) (RunStats, error) {
	stats := RunStats{}

	for stats.PC < p.Len() {
		if err := ctx.Err(); err != nil {
			return stats, &Fault{PC: stats.PC, Err: fmt.Errorf("%w: %v", ErrBudgetExceeded, err)}
		}
		if maxSteps > 0 && stats.Steps >= maxSteps {
			return stats, &Fault{PC: stats.PC, Err: fmt.Errorf("%w: %d steps", ErrBudgetExceeded, maxSteps)}
		}

		nextPC, err := e.StepProgram(p, stats.PC)
		if err != nil {
			return stats, err
		}

		stats.Steps++
		stats.PC = nextPC
	}

	stats.Halted = true
	return stats, nil
}

func (e *Emulator) fault(inst Instruction, pc int, entry codebook.Entry, err error) *Fault {
	f := &Fault{
		PC:       pc,
		Opcode:   inst.Opcode,
		Mnemonic: entry.Mnemonic,
		Line:     inst.Line,
		Err:      err,
	}
	slog.Debug("Fault", "PC", pc, "Opcode", fmt.Sprintf("0x%02X", inst.Opcode), "Err", err)
	return f
}

// translate turns integer literals that are variable opcodes into names.
func (e *Emulator) translate(args []Operand) []Operand {
	var out []Operand
	for i, a := range args {
		if a.IsName() {
			continue
		}
		n, ok := a.Lit.AsInt()
		if !ok {
			continue
		}
		name, ok := e.cb.VariableName(n)
		if !ok {
			continue
		}
		if out == nil {
			out = append([]Operand(nil), args...)
		}
		out[i] = Ref(name)
	}
	if out == nil {
		return args
	}
	return out
}

func (e *Emulator) resolve(o Operand) Value {
	return e.vars.Resolve(o)
}

// assign writes v to a destination operand. Writes to names that are not
// bound are dropped.
func (e *Emulator) assign(dst Operand, v Value) {
	name, ok := operandText(dst)
	if !ok || !e.vars.Assign(name, v) {
		Trace("DroppedWrite", "Dst", dst.String(), "Value", v.String())
	}
}

func boolInt(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

func (e *Emulator) runAssign(entry codebook.Entry, args []Operand, _ Labels) Result {
	e.assign(Ref(entry.Mnemonic), e.resolve(args[0]))
	return next()
}

func (e *Emulator) runMov(_ codebook.Entry, args []Operand, _ Labels) Result {
	e.assign(args[0], e.resolve(args[1]))
	return next()
}

func (e *Emulator) runArithmetic(entry codebook.Entry, args []Operand, _ Labels) Result {
	dst := e.resolve(args[0])
	src := e.resolve(args[1])

	if (entry.Op == codebook.OpDiv || entry.Op == codebook.OpMod) && src.IsNumeric() {
		if f, _ := src.Number(); f == 0 {
			Trace("DivisionByZero", "Mnemonic", entry.Mnemonic, "Dst", args[0].String())
		}
	}

	v, ok := arith(entry.Op, dst, src)
	if !ok {
		Trace("NonNumericOperand",
			"Mnemonic", entry.Mnemonic, "Dst", dst.Kind().Name(), "Src", src.Kind().Name())
		return next()
	}

	e.assign(args[0], v)
	return next()
}

// arith computes a op b. Division and modulo by zero yield 0. ok is false
// when either operand is not numeric.
func arith(op codebook.Operation, a, b Value) (Value, bool) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return a, false
	}

	ai, aInt := a.integer()
	bi, bInt := b.integer()
	if aInt && bInt {
		switch op {
		case codebook.OpAdd:
			if c, ok := addInt(ai, bi); ok {
				return Int(c), true
			}
			return Float(float64(ai) + float64(bi)), true
		case codebook.OpSub:
			if c, ok := subInt(ai, bi); ok {
				return Int(c), true
			}
			return Float(float64(ai) - float64(bi)), true
		case codebook.OpMul:
			if c, ok := mulInt(ai, bi); ok {
				return Int(c), true
			}
			return Float(float64(ai) * float64(bi)), true
		case codebook.OpDiv:
			if bi == 0 {
				return Int(0), true
			}
			if ai%bi == 0 && !(ai == math.MinInt64 && bi == -1) {
				return Int(ai / bi), true
			}
			return Float(float64(ai) / float64(bi)), true
		case codebook.OpMod:
			if bi == 0 {
				return Int(0), true
			}
			r := ai % bi
			if r != 0 && (r < 0) != (bi < 0) {
				r += bi
			}
			return Int(r), true
		}
		return a, false
	}

	af, _ := a.Number()
	bf, _ := b.Number()
	switch op {
	case codebook.OpAdd:
		return Float(af + bf), true
	case codebook.OpSub:
		return Float(af - bf), true
	case codebook.OpMul:
		return Float(af * bf), true
	case codebook.OpDiv:
		if bf == 0 {
			return Int(0), true
		}
		return Float(af / bf), true
	case codebook.OpMod:
		if bf == 0 {
			return Int(0), true
		}
		r := math.Mod(af, bf)
		if r != 0 && (r < 0) != (bf < 0) {
			r += bf
		}
		return Float(r), true
	}
	return a, false
}

// addInt, subInt and mulInt report false when the result does not fit in
// an int64; the caller then falls back to float arithmetic.
func addInt(a, b int64) (int64, bool) {
	c := a + b
	return c, (a^c)&(b^c) >= 0
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	return c, (a^b)&(a^c) >= 0
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return c, false
	}
	return c, true
}

func (e *Emulator) runLogic(entry codebook.Entry, args []Operand, _ Labels) Result {
	a := e.resolve(args[1])

	if entry.Op == codebook.OpNot {
		e.assign(args[0], boolInt(!a.Truthy()))
		return next()
	}

	b := e.resolve(args[2])

	var r bool
	switch entry.Op {
	case codebook.OpEq:
		r = a.Equal(b)
	case codebook.OpNeq:
		r = !a.Equal(b)
	case codebook.OpAnd:
		r = a.Truthy() && b.Truthy()
	case codebook.OpOr:
		r = a.Truthy() || b.Truthy()
	default:
		c, ok := a.Compare(b)
		if !ok {
			Trace("IncomparableOperands",
				"Mnemonic", entry.Mnemonic, "A", a.Kind().Name(), "B", b.Kind().Name())
		}
		r = ok && ordered(entry.Op, c)
	}

	e.assign(args[0], boolInt(r))
	return next()
}

func ordered(op codebook.Operation, c int) bool {
	switch op {
	case codebook.OpGt:
		return c > 0
	case codebook.OpLt:
		return c < 0
	case codebook.OpGte:
		return c >= 0
	case codebook.OpLte:
		return c <= 0
	default:
		return false
	}
}

func (e *Emulator) runArray(_ codebook.Entry, args []Operand, _ Labels) Result {
	name, ok := operandText(args[0])
	if !ok {
		return faultf(ErrInvalidOperand, "array name %s", args[0])
	}

	size := 0
	if len(args) > 1 {
		v := e.resolve(args[1])
		n, ok := v.Index()
		if !ok {
			return faultf(ErrInvalidOperand, "array size %s", v)
		}
		size = n
	}

	def := Int(0)
	if len(args) > 2 {
		def = e.resolve(args[2])
	}

	if _, err := e.vars.DeclareArray(name, size, def); err != nil {
		return fault(err)
	}
	return next()
}

func (e *Emulator) array(o Operand) (*Array, string, error) {
	name, ok := operandText(o)
	if !ok {
		return nil, "", fmt.Errorf("%w: operand %s", ErrNotArray, o)
	}
	a, err := e.vars.Array(name)
	return a, name, err
}

func (e *Emulator) index(o Operand) (int, error) {
	v := e.resolve(o)
	i, ok := v.Index()
	if !ok {
		return 0, fmt.Errorf("%w: index %s is not an integer", ErrIndexOutOfRange, v)
	}
	return i, nil
}

func (e *Emulator) runPush(_ codebook.Entry, args []Operand, _ Labels) Result {
	a, name, err := e.array(args[0])
	if err != nil {
		return fault(err)
	}
	if !a.Push(e.resolve(args[1])) {
		return faultf(ErrIndexOutOfRange, "array %s is full at %d elements", name, a.Len())
	}
	return next()
}

func (e *Emulator) runPop(_ codebook.Entry, args []Operand, _ Labels) Result {
	a, name, err := e.array(args[0])
	if err != nil {
		return fault(err)
	}

	v, ok := a.Pop()
	if !ok {
		return faultf(ErrIndexOutOfRange, "pop from empty array %s", name)
	}

	if len(args) > 1 {
		e.assign(args[1], v)
	}
	return next()
}

func (e *Emulator) runGet(_ codebook.Entry, args []Operand, _ Labels) Result {
	a, name, err := e.array(args[0])
	if err != nil {
		return fault(err)
	}

	i, err := e.index(args[1])
	if err != nil {
		return fault(err)
	}

	v, ok := a.Get(i)
	if !ok {
		return faultf(ErrIndexOutOfRange, "%s[%d], length %d", name, i, a.Len())
	}

	if len(args) > 2 {
		e.assign(args[2], v)
	} else {
		Trace("Get", "Array", name, "Index", i, "Value", v.String())
	}
	return next()
}

func (e *Emulator) runSet(_ codebook.Entry, args []Operand, _ Labels) Result {
	a, name, err := e.array(args[0])
	if err != nil {
		return fault(err)
	}

	i, err := e.index(args[1])
	if err != nil {
		return fault(err)
	}

	if !a.Set(i, e.resolve(args[2])) {
		return faultf(ErrIndexOutOfRange, "%s[%d], length %d", name, i, a.Len())
	}
	return next()
}

func (e *Emulator) runLength(_ codebook.Entry, args []Operand, _ Labels) Result {
	a, name, err := e.array(args[0])
	if err != nil {
		return fault(err)
	}

	if len(args) > 1 {
		e.assign(args[1], Int(int64(a.Len())))
	} else {
		Trace("Length", "Array", name, "Length", a.Len())
	}
	return next()
}

func (e *Emulator) runPrintStr(_ codebook.Entry, args []Operand, _ Labels) Result {
	fmt.Fprint(e.out, e.resolve(args[0]).String())
	return next()
}

func (e *Emulator) runPrintVar(_ codebook.Entry, args []Operand, _ Labels) Result {
	fmt.Fprintln(e.out, e.resolve(args[0]).String())
	return next()
}

func (e *Emulator) runInputInt(_ codebook.Entry, args []Operand, _ Labels) Result {
	line, err := e.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return fault(fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}

	n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return faultf(ErrInvalidInput, "%q is not an integer", strings.TrimSpace(line))
	}

	e.assign(args[0], Int(n))
	return next()
}

func (e *Emulator) runLabel(codebook.Entry, []Operand, Labels) Result {
	return next()
}

func (e *Emulator) runJmp(_ codebook.Entry, args []Operand, labels Labels) Result {
	target, err := e.target(args[0], labels)
	if err != nil {
		return fault(err)
	}
	return jumpTo(target)
}

func (e *Emulator) runCondJmp(entry codebook.Entry, args []Operand, labels Labels) Result {
	eq := e.resolve(args[0]).Equal(e.resolve(args[1]))
	if eq != (entry.Op == codebook.OpJmpIfEq) {
		return next()
	}

	target, err := e.target(args[2], labels)
	if err != nil {
		return fault(err)
	}
	return jumpTo(target)
}

// target resolves a jump operand. A name that is a label wins over a
// variable of the same name; otherwise the resolved value must be an index
// or the name of a label.
func (e *Emulator) target(o Operand, labels Labels) (int, error) {
	if o.IsName() {
		if pc, ok := labels.Lookup(o.Name); ok {
			return pc, nil
		}
	}

	v := e.resolve(o)
	if t, ok := v.AsText(); ok {
		if pc, ok := labels.Lookup(t); ok {
			return pc, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrUndefinedLabel, t)
	}

	pc, ok := v.Index()
	if !ok {
		return 0, fmt.Errorf("%w: target %s", ErrInvalidOperand, v)
	}
	return pc, nil
}
