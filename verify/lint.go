package verify

import (
	"errors"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
)

// RunLint performs static lint checks on a loaded program.
// STRUCT issues are instructions that fault in strict mode wherever they run.
// FLOW issues are jumps, labels and writes that cannot behave as written.
// Returns a list of issues found, or empty list if no issues.
func RunLint(cb *codebook.Codebook, prog *core.Program) []Issue {
	var issues []Issue

	declared := make(map[string]bool)
	for _, v := range cb.VariableNames() {
		declared[v] = true
	}

	// Arrays become writable names once declared anywhere in the program.
	for _, inst := range prog.Instructions() {
		entry, err := cb.Instruction(inst.Opcode)
		if err != nil || entry.Op != codebook.OpArray {
			continue
		}
		if n, ok := name(cb, inst.Args[0]); ok {
			declared[n] = true
		}
	}

	usedLabels := make(map[string]bool)
	numericTargets := make(map[int]bool)
	dynamicJumps := false

	for pc, inst := range prog.Instructions() {
		entry, err := cb.Instruction(inst.Opcode)
		if err != nil {
			issues = append(issues, newIssue(IssueStruct, pc, inst, "unknown opcode 0x%02X", inst.Opcode))
			continue
		}

		// STRUCT: markers are recognized but have no behavior
		if entry.Op == codebook.OpNone {
			issues = append(issues, newIssue(IssueStruct, pc, inst,
				"%s is a structured-control marker and cannot execute", entry.Mnemonic))
			continue
		}

		// FLOW: writes to names that are never bound are dropped
		if dst, ok := destination(entry, inst.Args); ok {
			n, ok := name(cb, dst)
			switch {
			case !ok:
				issues = append(issues, newIssue(IssueFlow, pc, inst,
					"%s writes to %s, which is not a variable", entry.Mnemonic, dst))
			case !declared[n]:
				issue := newIssue(IssueFlow, pc, inst,
					"%s writes to undeclared name %q; the write is dropped", entry.Mnemonic, n)
				issue.Details = map[string]interface{}{"name": n}
				issues = append(issues, issue)
			}
		}

		target, ok := jumpTarget(entry, inst.Args)
		if !ok {
			continue
		}

		if target.IsName() {
			if _, isLabel := prog.Labels().Lookup(target.Name); isLabel {
				usedLabels[target.Name] = true
			} else {
				dynamicJumps = true
			}
			continue
		}

		if text, isText := target.Lit.AsText(); isText {
			usedLabels[text] = true
			continue
		}

		if n, isInt := target.Lit.AsInt(); isInt {
			if _, isVar := cb.VariableName(n); isVar {
				dynamicJumps = true
				continue
			}
		}

		// FLOW: numeric targets must land inside the program or on its end
		idx, isIndex := target.Lit.Index()
		if !isIndex || idx < 0 || idx > prog.Len() {
			issue := newIssue(IssueFlow, pc, inst,
				"jump target %s is outside a program of %d instructions", target, prog.Len())
			issue.Details = map[string]interface{}{"target": target.String(), "length": prog.Len()}
			issues = append(issues, issue)
			continue
		}
		numericTargets[idx] = true
	}

	// FLOW: labels no jump refers to
	if !dynamicJumps {
		for _, l := range prog.Labels().Names() {
			if usedLabels[l] {
				continue
			}
			pc, _ := prog.Labels().Lookup(l)
			issue := newIssue(IssueFlow, pc, prog.At(pc), "label %q is never jumped to", l)
			issue.Details = map[string]interface{}{"label": l}
			issues = append(issues, issue)
		}

		issues = append(issues, unreachable(cb, prog, numericTargets)...)
	}

	return issues
}

// unreachable reports the first instruction of every run of code that
// follows an unconditional jump and is neither a label nor a numeric target.
func unreachable(cb *codebook.Codebook, prog *core.Program, targets map[int]bool) []Issue {
	var issues []Issue

	pc := 0
	for pc < prog.Len() {
		if !isOp(cb, prog.At(pc), codebook.OpJmp) {
			pc++
			continue
		}

		pc++
		if pc >= prog.Len() || startsBlock(cb, prog, pc, targets) {
			continue
		}

		issues = append(issues, newIssue(IssueFlow, pc, prog.At(pc),
			"instruction follows an unconditional jump and is never reached"))
		for pc < prog.Len() && !startsBlock(cb, prog, pc, targets) {
			pc++
		}
	}

	return issues
}

func startsBlock(cb *codebook.Codebook, prog *core.Program, pc int, targets map[int]bool) bool {
	return targets[pc] || isOp(cb, prog.At(pc), codebook.OpLabel)
}

func isOp(cb *codebook.Codebook, inst core.Instruction, op codebook.Operation) bool {
	entry, err := cb.Instruction(inst.Opcode)
	return err == nil && entry.Op == op
}

// LintFile loads and lints a program file. Load errors are reported as a
// single STRUCT issue carrying the failing line.
func LintFile(cb *codebook.Codebook, path string) (*core.Program, []Issue, error) {
	prog, err := core.LoadFile(cb, path)
	if err == nil {
		return prog, RunLint(cb, prog), nil
	}

	var le *core.LoadError
	if !errors.As(err, &le) {
		return nil, nil, err
	}

	return nil, []Issue{{
		Type:    IssueStruct,
		PC:      -1,
		Line:    le.Line,
		Message: le.Error(),
		Details: map[string]interface{}{"file": le.File},
	}}, nil
}
