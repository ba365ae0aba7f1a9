// Package verify checks vexi programs before they run. It offers static lint
// checks and a dry run on a throwaway variable store.
package verify

import (
	"fmt"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
)

// IssueType categorizes lint issues
type IssueType string

const (
	IssueStruct IssueType = "STRUCT" // Opcode or operand shape error
	IssueFlow   IssueType = "FLOW"   // Control or data flow that cannot work as written
)

// Issue represents a single lint issue
type Issue struct {
	Type    IssueType
	PC      int // -1 when the issue is not tied to one instruction
	Line    int
	Opcode  int
	Message string
	Details map[string]interface{}
}

func (i Issue) String() string {
	if i.PC < 0 {
		return fmt.Sprintf("%s: %s", i.Type, i.Message)
	}
	return fmt.Sprintf("%s pc=%d line=%d: %s", i.Type, i.PC, i.Line, i.Message)
}

// HasType reports whether any issue is of type t.
func HasType(issues []Issue, t IssueType) bool {
	for _, i := range issues {
		if i.Type == t {
			return true
		}
	}
	return false
}

func newIssue(t IssueType, pc int, inst core.Instruction, format string, args ...interface{}) Issue {
	return Issue{
		Type:    t,
		PC:      pc,
		Line:    inst.Line,
		Opcode:  inst.Opcode,
		Message: fmt.Sprintf(format, args...),
	}
}

// destination returns the operand an instruction writes a scalar to.
func destination(entry codebook.Entry, args []core.Operand) (core.Operand, bool) {
	switch entry.Op {
	case codebook.OpMov, codebook.OpInputInt,
		codebook.OpAdd, codebook.OpSub, codebook.OpMul, codebook.OpDiv, codebook.OpMod,
		codebook.OpEq, codebook.OpNeq, codebook.OpGt, codebook.OpLt, codebook.OpGte, codebook.OpLte,
		codebook.OpAnd, codebook.OpOr, codebook.OpNot:
		return args[0], true
	case codebook.OpPop, codebook.OpLength:
		if len(args) > 1 {
			return args[1], true
		}
	case codebook.OpGet:
		if len(args) > 2 {
			return args[2], true
		}
	}
	return core.Operand{}, false
}

func jumpTarget(entry codebook.Entry, args []core.Operand) (core.Operand, bool) {
	switch entry.Op {
	case codebook.OpJmp:
		return args[0], true
	case codebook.OpJmpIfEq, codebook.OpJmpIfNeq:
		return args[2], true
	}
	return core.Operand{}, false
}

// name returns the variable an operand refers to, translating integer
// literals that are variable opcodes the way the emulator does.
func name(cb *codebook.Codebook, o core.Operand) (string, bool) {
	if o.IsName() {
		return o.Name, true
	}
	if n, ok := o.Lit.AsInt(); ok {
		return cb.VariableName(n)
	}
	return o.Lit.AsText()
}
