package verify

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
)

// VerificationReport represents a complete verification report
type VerificationReport struct {
	Program       *core.Program
	Codebook      *codebook.Codebook
	LintIssues    []Issue
	StructIssues  []Issue
	FlowIssues    []Issue
	SimulationErr error
	SimulationOK  bool
	Stats         core.RunStats
	FinalState    map[string]core.Value
}

// GenerateReport runs both lint and a budgeted dry run, returns a report
func GenerateReport(cb *codebook.Codebook, prog *core.Program, maxSimSteps int) *VerificationReport {
	report := &VerificationReport{
		Program:  prog,
		Codebook: cb,
	}

	report.LintIssues = RunLint(cb, prog)

	for _, issue := range report.LintIssues {
		if issue.Type == IssueStruct {
			report.StructIssues = append(report.StructIssues, issue)
		} else {
			report.FlowIssues = append(report.FlowIssues, issue)
		}
	}

	fs := NewFunctionalSimulator(cb, prog)
	report.SimulationErr = fs.Run(maxSimSteps)
	report.SimulationOK = report.SimulationErr == nil
	report.Stats = fs.Stats()
	report.FinalState = fs.Snapshot()

	return report
}

// Passed reports whether the program has no lint issues and ran to its end.
func (r *VerificationReport) Passed() bool {
	return len(r.LintIssues) == 0 && r.SimulationOK
}

// WriteReport writes a formatted report to a writer
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "VERIFICATION REPORT: %s\n", r.Program.Name())
	fmt.Fprintln(w, separator)

	fmt.Fprintf(w, "\nLoaded %d instructions, %d labels (codebook %q)\n",
		r.Program.Len(), len(r.Program.Labels().Names()), r.Codebook.Name())

	// STAGE 1: LINT
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 1: STATIC LINT CHECKS")
	fmt.Fprintln(w, separator)

	if len(r.LintIssues) == 0 {
		fmt.Fprintln(w, "No lint issues found")
	} else {
		fmt.Fprintf(w, "Found %d lint issues:\n\n", len(r.LintIssues))
		writeIssues(w, r.LintIssues)
	}

	// STAGE 2: DRY RUN
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 2: DRY RUN")
	fmt.Fprintln(w, separator)

	if r.SimulationOK {
		fmt.Fprintf(w, "Program ended after %d steps\n", r.Stats.Steps)
	} else {
		fmt.Fprintf(w, "Dry run stopped at pc %d after %d steps: %v\n",
			r.Stats.PC, r.Stats.Steps, r.SimulationErr)
	}
	writeState(w, r.FinalState)

	// STAGE 3: SUMMARY
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "VERIFICATION SUMMARY")
	fmt.Fprintln(w, separator)

	fmt.Fprintf(w, "Lint Result: %d issues detected (%d STRUCT, %d FLOW)\n",
		len(r.LintIssues), len(r.StructIssues), len(r.FlowIssues))
	simStatus := "SUCCESS"
	if !r.SimulationOK {
		simStatus = "FAILED (" + core.FaultKind(r.SimulationErr) + ")"
	}
	fmt.Fprintf(w, "Dry Run Result: %s\n", simStatus)

	if r.Passed() {
		fmt.Fprintln(w, "PROGRAM PASSED ALL CHECKS")
	}

	fmt.Fprintln(w)
}

func writeIssues(w io.Writer, issues []Issue) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Type", "PC", "Line", "Opcode", "Message"})
	for _, issue := range issues {
		pc, line, opcode := "-", "-", "-"
		if issue.PC >= 0 {
			pc = fmt.Sprint(issue.PC)
			opcode = fmt.Sprintf("0x%02X", issue.Opcode)
		}
		if issue.Line > 0 {
			line = fmt.Sprint(issue.Line)
		}
		t.AppendRow(table.Row{issue.Type, pc, line, opcode, issue.Message})
	}
	t.Render()
}

// writeState prints the variables the dry run left non-zero.
func writeState(w io.Writer, state map[string]core.Value) {
	names := make([]string, 0, len(state))
	for n, v := range state {
		if !v.Equal(core.Int(0)) || v.Kind() != core.KindInt {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Final State")
	t.AppendHeader(table.Row{"Variable", "Value"})
	for _, n := range names {
		t.AppendRow(table.Row{n, state[n].String()})
	}
	t.Render()
}

// SaveReportToFile saves the report to a file
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)
	return nil
}
