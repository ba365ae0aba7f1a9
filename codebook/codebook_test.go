package codebook_test

import (
	"errors"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vexi/codebook"
)

var _ = Describe("Codebook", func() {
	var cb *codebook.Codebook

	BeforeEach(func() {
		cb = codebook.Default()
	})

	Context("Lookup", func() {
		It("should resolve arithmetic before constants", func() {
			e, err := cb.Lookup(0x10)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Category).To(Equal(codebook.Arithmetic))
			Expect(e.Mnemonic).To(Equal("ADD"))
			Expect(e.Op).To(Equal(codebook.OpAdd))
		})

		It("should fall back to the identity constant", func() {
			e, err := cb.Lookup(0x99)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Category).To(Equal(codebook.Constants))
			Expect(e.Literal).To(Equal(int64(0x99)))
		})

		It("should give constants priority over extra constants", func() {
			e, err := cb.Lookup(0xF2)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Category).To(Equal(codebook.Constants))
		})
	})

	Context("Instruction", func() {
		It("should find every executable range", func() {
			for _, op := range []int{0x14, 0x28, 0x35, 0x47, 0x50, 0x64, 0x72, 0x83} {
				e, err := cb.Instruction(op)
				Expect(err).NotTo(HaveOccurred(), "opcode 0x%02X", op)
				Expect(e.Category.Executable()).To(BeTrue())
			}
		})

		It("should not treat constants as instructions", func() {
			_, err := cb.Instruction(0x99)
			Expect(errors.Is(err, codebook.ErrNotFound)).To(BeTrue())
		})

		It("should reject values wider than a byte", func() {
			_, err := cb.Instruction(0x110)
			Expect(err).To(MatchError(codebook.ErrNotFound))
		})

		It("should leave structured markers without behavior", func() {
			e, err := cb.Instruction(0x42)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Mnemonic).To(Equal("WHILE"))
			Expect(e.Op).To(Equal(codebook.OpNone))
		})
	})

	It("should keep executable categories disjoint", func() {
		seen := map[codebook.Opcode]codebook.Category{}
		for _, c := range codebook.Categories() {
			if !c.Executable() {
				continue
			}
			for _, e := range cb.Group(c) {
				prev, dup := seen[e.Opcode]
				Expect(dup).To(BeFalse(),
					"0x%02X in %s and %s", e.Opcode, prev.Name(), c.Name())
				seen[e.Opcode] = c
			}
		}
	})

	Context("ByMnemonic", func() {
		It("should resolve names and aliases", func() {
			e, err := cb.ByMnemonic("JMP_IF_NEQ")
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Opcode).To(Equal(codebook.Opcode(0x83)))

			e, err = cb.ByMnemonic("MOV")
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Mnemonic).To(Equal("var_mov"))
		})

		It("should map SET to the array operation", func() {
			e, err := cb.ByMnemonic("SET")
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Opcode).To(Equal(codebook.Opcode(0x63)))
		})

		It("should report unknown names", func() {
			_, err := cb.ByMnemonic("HALT")
			Expect(err).To(MatchError(codebook.ErrNotFound))
		})
	})

	It("should list predeclared variables in opcode order", func() {
		Expect(cb.VariableNames()).To(Equal([]string{
			"var_i", "var_x", "var_y", "var_z", "var_temp", "var_mov",
		}))

		name, ok := cb.VariableName(0x33)
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("var_z"))

		_, ok = cb.VariableName(0x10)
		Expect(ok).To(BeFalse())
	})

	Context("constants", func() {
		It("should be identity valued", func() {
			v, err := cb.Constant(0x2A)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(int64(42)))
		})

		It("should expose typed extra constants", func() {
			v, err := cb.ExtraConstant(0xF1)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(1.0))

			v, err = cb.ExtraConstant(0xF3)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(false))
		})

		It("should compose bytes big-endian", func() {
			v, err := cb.Compose(0xFF, 0x02)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(int64(65282)))

			v, err = cb.Compose(0x01, 0x00, 0x00)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(int64(65536)))
		})

		It("should compose nothing to zero", func() {
			v, err := cb.Compose()
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeZero())
		})

		It("should refuse codes outside a byte", func() {
			_, err := cb.Compose(0x01, 0x100)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("Mirror", func() {
		var mockCtrl *gomock.Controller

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should write every entry once", func() {
			sink := NewMockSink(mockCtrl)
			sink.EXPECT().
				WriteEntries("vexi core", gomock.Len(len(cb.Entries()))).
				Return(nil)

			Expect(codebook.Mirror(cb, sink)).To(Succeed())
		})

		It("should wrap sink failures", func() {
			sink := NewMockSink(mockCtrl)
			sink.EXPECT().
				WriteEntries(gomock.Any(), gomock.Any()).
				Return(errors.New("disk full"))

			err := codebook.Mirror(cb, sink)
			Expect(err).To(MatchError(ContainSubstring("disk full")))
		})

		It("should accept a nil sink", func() {
			Expect(codebook.Mirror(cb, nil)).To(Succeed())
		})
	})
})
