package core_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
)

const (
	opADD      = 0x10
	opSUB      = 0x11
	opMUL      = 0x12
	opDIV      = 0x13
	opMOD      = 0x14
	opEQ       = 0x20
	opGT       = 0x22
	opAND      = 0x26
	opNOT      = 0x28
	opVarI     = 0x30
	opVarX     = 0x31
	opVarY     = 0x32
	opVarZ     = 0x33
	opVarTemp  = 0x34
	opVarMov   = 0x35
	opWHILE    = 0x42
	opARRAY    = 0x50
	opPUSH     = 0x60
	opPOP      = 0x61
	opGET      = 0x62
	opSET      = 0x63
	opLENGTH   = 0x64
	opPrintStr = 0x70
	opPrintVar = 0x71
	opInputInt = 0x72
	opLABEL    = 0x80
	opJMP      = 0x81
	opJmpIfNeq = 0x83
)

var (
	ref = core.Ref
	num = core.IntLit
)

var _ = Describe("Emulator", func() {
	var (
		cb   *codebook.Codebook
		vars *core.VarStore
		emu  *core.Emulator
		out  *bytes.Buffer
	)

	BeforeEach(func() {
		cb = codebook.Default()
		vars = core.NewVarStore(cb.VariableNames())
		emu = core.NewEmulator(cb, vars)
		out = new(bytes.Buffer)
		emu.SetOutput(out)
		emu.SetInput(strings.NewReader(""))
	})

	step := func(inst core.Instruction) (int, error) {
		return emu.Step(inst, 0, core.Labels{})
	}

	mustStep := func(inst core.Instruction) {
		_, err := step(inst)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
	}

	value := func(name string) core.Value {
		v, ok := vars.Lookup(name)
		ExpectWithOffset(1, ok).To(BeTrue(), name)
		return v
	}

	program := func(insts ...core.Instruction) *core.Program {
		p, err := core.NewProgram(cb, "test", insts)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return p
	}

	Context("variables", func() {
		It("should assign through variable opcodes", func() {
			next, err := step(core.Inst(opVarX, num(100)))
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(1))
			Expect(value("var_x")).To(Equal(core.Int(100)))
		})

		It("should move between variables", func() {
			mustStep(core.Inst(opVarY, num(25)))
			mustStep(core.Inst(opVarMov, ref("var_z"), ref("var_y")))
			Expect(value("var_z")).To(Equal(core.Int(25)))
		})

		It("should resolve names freshly on every use", func() {
			mustStep(core.Inst(opVarX, num(1)))
			mustStep(core.Inst(opVarMov, ref("var_y"), ref("var_x")))
			Expect(value("var_y")).To(Equal(core.Int(1)))

			mustStep(core.Inst(opVarX, num(2)))
			mustStep(core.Inst(opVarMov, ref("var_y"), ref("var_x")))
			Expect(value("var_y")).To(Equal(core.Int(2)))
		})

		It("should translate integer operands that name variables", func() {
			mustStep(core.Inst(opVarX, num(4)))
			mustStep(core.Inst(opVarY, num(6)))
			mustStep(core.Inst(opADD, num(opVarX), num(opVarY)))
			Expect(value("var_x")).To(Equal(core.Int(10)))
		})

		It("should assign variable opcode values as literals", func() {
			mustStep(core.Inst(opVarY, num(7)))
			mustStep(core.Inst(opVarX, num(opVarY)))
			Expect(value("var_x")).To(Equal(core.Int(opVarY)))

			for op := opVarI; op <= opVarMov; op++ {
				mustStep(core.Inst(opVarTemp, num(int64(op))))
				Expect(value("var_temp")).To(Equal(core.Int(int64(op))))
			}
		})

		It("should treat unknown names as text", func() {
			mustStep(core.Inst(opPrintVar, ref("Hello")))
			Expect(out.String()).To(Equal("Hello\n"))
		})

		It("should drop writes to undeclared names", func() {
			before := vars.Snapshot()
			mustStep(core.Inst(opVarMov, ref("nowhere"), num(3)))
			Expect(vars.Snapshot()).To(Equal(before))
			Expect(vars.Has("nowhere")).To(BeFalse())
		})
	})

	Context("arithmetic", func() {
		It("should divide exactly to an integer", func() {
			mustStep(core.Inst(opVarZ, num(250)))
			mustStep(core.Inst(opDIV, ref("var_z"), num(25)))
			Expect(value("var_z")).To(Equal(core.Int(10)))
		})

		It("should divide inexactly to a float", func() {
			mustStep(core.Inst(opVarX, num(7)))
			mustStep(core.Inst(opDIV, ref("var_x"), num(2)))
			Expect(value("var_x")).To(Equal(core.Float(3.5)))
		})

		It("should use floored modulo", func() {
			mustStep(core.Inst(opVarX, num(-7)))
			mustStep(core.Inst(opMOD, ref("var_x"), num(3)))
			Expect(value("var_x")).To(Equal(core.Int(2)))

			mustStep(core.Inst(opVarY, num(7)))
			mustStep(core.Inst(opMOD, ref("var_y"), num(-3)))
			Expect(value("var_y")).To(Equal(core.Int(-2)))
		})

		It("should mix floats and integers", func() {
			mustStep(core.Inst(opVarX, core.Lit(core.Float(1.5))))
			mustStep(core.Inst(opMUL, ref("var_x"), num(2)))
			Expect(value("var_x")).To(Equal(core.Float(3)))
		})

		It("should count booleans as 0 and 1", func() {
			mustStep(core.Inst(opVarX, num(4)))
			mustStep(core.Inst(opADD, ref("var_x"), core.Lit(core.Bool(true))))
			Expect(value("var_x")).To(Equal(core.Int(5)))
		})

		DescribeTable("should zero the destination instead of faulting",
			func(opcode int, divisor core.Operand) {
				mustStep(core.Inst(opVarX, num(9)))
				next, err := step(core.Inst(opcode, ref("var_x"), divisor))
				Expect(err).NotTo(HaveOccurred())
				Expect(next).To(Equal(1))
				Expect(value("var_x")).To(Equal(core.Int(0)))
			},
			Entry("DIV by int", opDIV, num(0)),
			Entry("MOD by int", opMOD, num(0)),
			Entry("DIV by float", opDIV, core.Lit(core.Float(0))),
			Entry("MOD by zero variable", opMOD, ref("var_y")),
		)

		DescribeTable("should widen to float instead of wrapping",
			func(opcode int, start, operand int64, want float64) {
				mustStep(core.Inst(opVarX, num(start)))
				mustStep(core.Inst(opcode, ref("var_x"), num(operand)))
				Expect(value("var_x")).To(Equal(core.Float(want)))
			},
			Entry("ADD past the maximum", opADD, int64(math.MaxInt64), int64(1), math.Exp2(63)),
			Entry("SUB past the minimum", opSUB, int64(math.MinInt64), int64(1), -math.Exp2(63)),
			Entry("MUL past the maximum", opMUL, int64(math.MaxInt64), int64(2), math.Exp2(64)),
			Entry("MUL of the minimum by -1", opMUL, int64(math.MinInt64), int64(-1), math.Exp2(63)),
			Entry("DIV of the minimum by -1", opDIV, int64(math.MinInt64), int64(-1), math.Exp2(63)),
		)

		It("should keep in-range integer results exact", func() {
			mustStep(core.Inst(opVarX, num(math.MaxInt64-1)))
			mustStep(core.Inst(opADD, ref("var_x"), num(1)))
			Expect(value("var_x")).To(Equal(core.Int(math.MaxInt64)))

			mustStep(core.Inst(opMUL, ref("var_x"), num(-1)))
			Expect(value("var_x")).To(Equal(core.Int(-math.MaxInt64)))
		})

		It("should leave non-numeric destinations alone", func() {
			mustStep(core.Inst(opVarX, ref("word")))
			mustStep(core.Inst(opADD, ref("var_x"), num(1)))
			Expect(value("var_x")).To(Equal(core.Text("word")))
		})
	})

	Context("logic", func() {
		It("should compare across numeric kinds", func() {
			mustStep(core.Inst(opVarX, num(1)))
			mustStep(core.Inst(opEQ, ref("var_z"), ref("var_x"), core.Lit(core.Float(1))))
			Expect(value("var_z")).To(Equal(core.Int(1)))
		})

		It("should order values", func() {
			mustStep(core.Inst(opVarX, num(5)))
			mustStep(core.Inst(opGT, ref("var_z"), ref("var_x"), num(3)))
			Expect(value("var_z")).To(Equal(core.Int(1)))

			mustStep(core.Inst(opGT, ref("var_z"), num(3), ref("var_x")))
			Expect(value("var_z")).To(Equal(core.Int(0)))
		})

		It("should combine truth values", func() {
			mustStep(core.Inst(opVarX, num(5)))
			mustStep(core.Inst(opAND, ref("var_z"), ref("var_x"), ref("var_y")))
			Expect(value("var_z")).To(Equal(core.Int(0)))

			mustStep(core.Inst(opNOT, ref("var_z"), ref("var_y")))
			Expect(value("var_z")).To(Equal(core.Int(1)))
		})
	})

	Context("arrays", func() {
		BeforeEach(func() {
			mustStep(core.Inst(opARRAY, ref("arr"), num(5), num(0)))
		})

		It("should keep length in step with push and pop", func() {
			mustStep(core.Inst(opLENGTH, ref("arr"), ref("var_x")))
			Expect(value("var_x")).To(Equal(core.Int(5)))

			mustStep(core.Inst(opPUSH, ref("arr"), num(9)))
			mustStep(core.Inst(opLENGTH, ref("arr"), ref("var_x")))
			Expect(value("var_x")).To(Equal(core.Int(6)))

			mustStep(core.Inst(opPOP, ref("arr"), ref("var_y")))
			Expect(value("var_y")).To(Equal(core.Int(9)))
			mustStep(core.Inst(opLENGTH, ref("arr"), ref("var_x")))
			Expect(value("var_x")).To(Equal(core.Int(5)))
		})

		It("should fault out-of-range reads without touching the destination", func() {
			mustStep(core.Inst(opPUSH, ref("arr"), num(9)))
			mustStep(core.Inst(opVarZ, num(77)))

			_, err := step(core.Inst(opGET, ref("arr"), num(10), ref("var_z")))
			Expect(err).To(MatchError(core.ErrIndexOutOfRange))
			Expect(err.Error()).To(ContainSubstring("arr[10]"))
			Expect(value("var_z")).To(Equal(core.Int(77)))
		})

		It("should set and get elements", func() {
			mustStep(core.Inst(opSET, ref("arr"), num(2), num(42)))
			mustStep(core.Inst(opGET, ref("arr"), num(2), ref("var_x")))
			Expect(value("var_x")).To(Equal(core.Int(42)))
		})

		It("should reject fractional indices", func() {
			_, err := step(core.Inst(opSET, ref("arr"), core.Lit(core.Float(1.5)), num(1)))
			Expect(err).To(MatchError(core.ErrIndexOutOfRange))
		})

		It("should fault when popping an empty array", func() {
			mustStep(core.Inst(opARRAY, ref("empty")))
			_, err := step(core.Inst(opPOP, ref("empty")))
			Expect(err).To(MatchError(core.ErrIndexOutOfRange))
		})

		It("should fault on array sizes beyond the limit", func() {
			p := program(
				core.Inst(opVarX, num(1)),
				core.Inst(opARRAY, ref("huge"), num(0x7FFFFFFFFFFFFFFF), num(0)),
			)

			stats, err := emu.Run(context.Background(), p, 0)
			Expect(err).To(MatchError(core.ErrInvalidOperand))
			var f *core.Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.PC).To(Equal(1))
			Expect(stats.Halted).To(BeFalse())
			Expect(vars.Has("huge")).To(BeFalse())

			_, err = step(core.Inst(opARRAY, ref("huge"), num(core.MaxArrayLen+1)))
			Expect(err).To(MatchError(core.ErrInvalidOperand))
		})

		It("should fault when a push would pass the limit", func() {
			mustStep(core.Inst(opARRAY, ref("full"), num(core.MaxArrayLen), num(0)))

			_, err := step(core.Inst(opPUSH, ref("full"), num(1)))
			Expect(err).To(MatchError(core.ErrIndexOutOfRange))

			mustStep(core.Inst(opLENGTH, ref("full"), ref("var_x")))
			Expect(value("var_x")).To(Equal(core.Int(core.MaxArrayLen)))
		})

		It("should fault on values that are not arrays", func() {
			_, err := step(core.Inst(opPUSH, ref("var_x"), num(1)))
			Expect(err).To(MatchError(core.ErrNotArray))

			_, err = step(core.Inst(opLENGTH, ref("missing")))
			Expect(err).To(MatchError(core.ErrNotArray))
		})
	})

	Context("io", func() {
		It("should print text without a newline", func() {
			mustStep(core.Inst(opPrintStr, core.Lit(core.Text("sum: "))))
			mustStep(core.Inst(opVarX, num(15)))
			mustStep(core.Inst(opPrintVar, ref("var_x")))
			Expect(out.String()).To(Equal("sum: 15\n"))
		})

		It("should read integers", func() {
			emu.SetInput(strings.NewReader("42\n-3"))
			mustStep(core.Inst(opInputInt, ref("var_x")))
			mustStep(core.Inst(opInputInt, ref("var_y")))
			Expect(value("var_x")).To(Equal(core.Int(42)))
			Expect(value("var_y")).To(Equal(core.Int(-3)))
		})

		It("should fault on bad or missing input", func() {
			emu.SetInput(strings.NewReader("abc\n"))
			_, err := step(core.Inst(opInputInt, ref("var_x")))
			Expect(err).To(MatchError(core.ErrInvalidInput))

			_, err = step(core.Inst(opInputInt, ref("var_x")))
			Expect(err).To(MatchError(core.ErrInvalidInput))
		})
	})

	Context("faults", func() {
		It("should fault on unknown opcodes without mutation", func() {
			mustStep(core.Inst(opVarX, num(5)))
			before := vars.Snapshot()

			next, err := emu.Step(core.Inst(0x99, num(1)), 3, core.Labels{})
			Expect(next).To(Equal(3))
			Expect(err).To(MatchError(core.ErrUnknownOpcode))

			var f *core.Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.PC).To(Equal(3))
			Expect(f.Opcode).To(Equal(0x99))
			Expect(vars.Snapshot()).To(Equal(before))
		})

		It("should fault on markers in strict mode", func() {
			_, err := step(core.Inst(opWHILE))
			Expect(err).To(MatchError(core.ErrUnimplemented))
		})

		It("should skip markers in permissive mode", func() {
			emu.SetStrict(false)
			next, err := step(core.Inst(opWHILE, num(1)))
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(1))
		})

		It("should fault on the wrong number of arguments", func() {
			_, err := step(core.Inst(opADD, ref("var_x")))
			Expect(err).To(MatchError(core.ErrMalformed))
		})
	})

	Context("control flow", func() {
		It("should run a counting loop in the expected number of steps", func() {
			p := program(
				core.Inst(opVarI, num(3)),
				core.Inst(opLABEL, ref("loop")),
				core.Inst(opSUB, ref("var_i"), num(1)),
				core.Inst(opJmpIfNeq, ref("var_i"), num(0), ref("loop")),
			)

			stats, err := emu.Run(context.Background(), p, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Halted).To(BeTrue())
			Expect(stats.Steps).To(Equal(10))
			Expect(value("var_i")).To(Equal(core.Int(0)))
		})

		It("should halt when jumping to the end", func() {
			p := program(
				core.Inst(opJMP, num(2)),
				core.Inst(opVarX, num(1)),
			)

			stats, err := emu.Run(context.Background(), p, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Steps).To(Equal(1))
			Expect(value("var_x")).To(Equal(core.Int(0)))
		})

		It("should fault when jumping past the end", func() {
			p := program(core.Inst(opJMP, num(9)))

			_, err := emu.Run(context.Background(), p, 0)
			Expect(err).To(MatchError(core.ErrJumpOutOfRange))
		})

		It("should fault on labels that only exist at run time", func() {
			p := program(
				core.Inst(opVarX, ref("elsewhere")),
				core.Inst(opJMP, ref("var_x")),
			)

			_, err := emu.Run(context.Background(), p, 0)
			Expect(err).To(MatchError(core.ErrUndefinedLabel))
		})

		It("should stop at the step budget", func() {
			p := program(
				core.Inst(opLABEL, ref("top")),
				core.Inst(opJMP, ref("top")),
			)

			stats, err := emu.Run(context.Background(), p, 50)
			Expect(err).To(MatchError(core.ErrBudgetExceeded))
			Expect(stats.Steps).To(Equal(50))
		})

		It("should stop when the context is done", func() {
			p := program(core.Inst(opVarX, num(1)))
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := emu.Run(ctx, p, 0)
			Expect(err).To(MatchError(core.ErrBudgetExceeded))
			Expect(value("var_x")).To(Equal(core.Int(0)))
		})
	})

	Context("scenarios", func() {
		It("should evaluate the arithmetic chain", func() {
			p := program(
				core.Inst(opVarX, num(100)),
				core.Inst(opVarY, num(25)),
				core.Inst(opVarZ, num(0)),
				core.Inst(opVarMov, ref("var_z"), ref("var_x")),
				core.Inst(opADD, ref("var_z"), ref("var_y")),
				core.Inst(opMUL, ref("var_z"), num(2)),
				core.Inst(opDIV, ref("var_z"), ref("var_y")),
				core.Inst(opVarMov, ref("var_x"), ref("var_z")),
				core.Inst(opSUB, ref("var_x"), num(5)),
				core.Inst(opVarMov, ref("var_temp"), ref("var_y")),
				core.Inst(opMOD, ref("var_temp"), num(3)),
				core.Inst(opVarMov, ref("var_y"), ref("var_temp")),
			)

			_, err := emu.Run(context.Background(), p, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(value("var_x")).To(Equal(core.Int(5)))
			Expect(value("var_y")).To(Equal(core.Int(1)))
			Expect(value("var_z")).To(Equal(core.Int(10)))
		})

		It("should sum one through five", func() {
			insts := []core.Instruction{
				core.Inst(opVarI, num(0)),
				core.Inst(opVarX, num(0)),
			}
			for i := int64(1); i <= 5; i++ {
				insts = append(insts,
					core.Inst(opVarI, num(i)),
					core.Inst(opADD, ref("var_x"), ref("var_i")))
			}

			_, err := emu.Run(context.Background(), program(insts...), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(value("var_x")).To(Equal(core.Int(15)))
		})

		It("should stop a run at an unknown opcode", func() {
			p := program(
				core.Inst(opVarX, num(5)),
				core.Inst(0x99),
				core.Inst(opVarTemp, num(7)),
			)

			stats, err := emu.Run(context.Background(), p, 0)
			Expect(err).To(MatchError(core.ErrUnknownOpcode))
			Expect(stats.PC).To(Equal(1))
			Expect(value("var_temp")).To(Equal(core.Int(0)))
		})
	})
})
