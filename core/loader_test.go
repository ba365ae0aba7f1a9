package core_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
)

var _ = Describe("Loader", func() {
	var cb *codebook.Codebook

	BeforeEach(func() {
		cb = codebook.Default()
	})

	parse := func(src string) (*core.Program, error) {
		return core.ParseText(cb, "test.vexi", strings.NewReader(src))
	}

	It("should read the comma dialect with mnemonics and comments", func() {
		p, err := parse(`
// sum two numbers
var_x,10
0x32, 5
# add them
ADD,var_x,var_y
PRINT_STR,Total is
PRINT_VAR,var_x
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Len()).To(Equal(5))

		Expect(p.At(0).Opcode).To(Equal(0x31))
		Expect(p.At(0).Line).To(Equal(3))
		Expect(p.At(1).Args).To(Equal([]core.Operand{core.IntLit(5)}))
		Expect(p.At(2).Args).To(Equal([]core.Operand{core.Ref("var_x"), core.Ref("var_y")}))
		Expect(p.At(3).Args).To(Equal([]core.Operand{core.Lit(core.Text("Total is"))}))
	})

	It("should read the whitespace dialect", func() {
		p, err := parse("16 var_x 2.5\n112 \"a, b\"\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.At(0).Args[1]).To(Equal(core.Lit(core.Float(2.5))))
		Expect(p.At(1).Args[0]).To(Equal(core.Lit(core.Text("a, b"))))
	})

	It("should build the label table", func() {
		p, err := parse("LABEL,start\nvar_i,1\nLABEL,end\nJMP,start\n")
		Expect(err).NotTo(HaveOccurred())

		pc, ok := p.Labels().Lookup("end")
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(2))
		Expect(p.Labels().Names()).To(Equal([]string{"end", "start"}))
	})

	DescribeTable("should reject malformed programs with a line number",
		func(src string, line int, cause error) {
			_, err := parse(src)
			Expect(err).To(MatchError(core.ErrMalformedProgram))
			Expect(err).To(MatchError(cause))

			var le *core.LoadError
			Expect(errors.As(err, &le)).To(BeTrue())
			Expect(le.Line).To(Equal(line))
		},
		Entry("wrong arity", "var_x,1\nADD,var_x\n", 2, core.ErrMalformed),
		Entry("bad literal", "var_x,12abc\n", 1, core.ErrMalformed),
		Entry("unknown mnemonic", "HALT\n", 1, core.ErrMalformed),
		Entry("opcode wider than a byte", "0x100,1\n", 1, core.ErrMalformed),
		Entry("unterminated quote", "PRINT_STR,\"oops\n", 1, core.ErrMalformed),
		Entry("duplicate label", "LABEL,a\nLABEL,a\n", 2, core.ErrMalformed),
		Entry("undefined jump target", "JMP,nowhere\n", 1, core.ErrUndefinedLabel),
	)

	It("should keep unknown opcodes for run time", func() {
		p, err := parse("0x99,1\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.At(0).Opcode).To(Equal(0x99))
	})

	It("should round-trip the compact form", func() {
		p, err := parse(strings.Join([]string{
			"var_x,-12",
			"var_y,0x1F",
			"ARRAY,arr,3,1.5",
			"PUSH,arr,true",
			"PRINT_STR,\"two words\"",
			"LABEL,loop",
			"JMP_IF_NEQ,var_x,0,loop",
		}, "\n"))
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(core.FormatCompact(&buf, p)).To(Succeed())

		q, err := core.ParseCompact(cb, "compact", buf.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Len()).To(Equal(p.Len()))
		for i := 0; i < p.Len(); i++ {
			Expect(q.At(i).Equal(p.At(i))).To(BeTrue(), "instruction %d: %s vs %s", i, p.At(i), q.At(i))
		}
	})

	It("should format with mnemonics", func() {
		p, err := parse("16 var_x 1\n153 2\n")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(core.Format(&buf, cb, p)).To(Succeed())
		Expect(buf.String()).To(Equal("ADD,var_x,1\n0x99,2\n"))
	})

	Context("JSON", func() {
		It("should accept single and tuple arguments", func() {
			p, err := core.ParseJSON(cb, "inline",
				[]byte(`[[49, 100], [16, ["var_x", "var_y"]], [112, "hello world"], [128, ["end"]]]`))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Len()).To(Equal(4))
			Expect(p.At(0).Args).To(Equal([]core.Operand{core.IntLit(100)}))
			Expect(p.At(2).Args).To(Equal([]core.Operand{core.Lit(core.Text("hello world"))}))
		})

		It("should round-trip through MarshalJSON", func() {
			p, err := parse("var_x,3\nMUL,var_x,2.5\nLABEL,end\n")
			Expect(err).NotTo(HaveOccurred())

			data, err := p.MarshalJSON()
			Expect(err).NotTo(HaveOccurred())

			q, err := core.ParseJSON(cb, "again", data)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < p.Len(); i++ {
				Expect(q.At(i).Equal(p.At(i))).To(BeTrue())
			}
		})

		It("should decode a stream of programs", func() {
			progs, err := core.DecodePrograms(cb, "set.jsonl",
				strings.NewReader("[[49, 1]]\n[[50, 2], [51, 3]]\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(progs).To(HaveLen(2))
			Expect(progs[1].Len()).To(Equal(2))
		})

		It("should reject non-list instructions", func() {
			_, err := core.ParseJSON(cb, "bad", []byte(`[{"op": 16}]`))
			Expect(err).To(MatchError(core.ErrMalformedProgram))
		})
	})

	It("should pick the decoder from the file extension", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "prog.json")
		Expect(os.WriteFile(path, []byte(`[[49, 7]]`), 0o644)).To(Succeed())

		p, err := core.LoadFile(cb, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal(path))
		Expect(p.At(0).Args[0]).To(Equal(core.IntLit(7)))
	})
})
