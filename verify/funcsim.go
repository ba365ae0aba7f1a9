package verify

import (
	"context"
	"io"
	"strings"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
)

// FunctionalSimulator runs a program on a private variable store. Output is
// discarded and input is empty unless SetInput provides some.
type FunctionalSimulator struct {
	prog  *core.Program
	vars  *core.VarStore
	emu   *core.Emulator
	stats core.RunStats
}

// NewFunctionalSimulator creates a strict simulator for prog.
func NewFunctionalSimulator(cb *codebook.Codebook, prog *core.Program) *FunctionalSimulator {
	vars := core.NewVarStore(cb.VariableNames())
	emu := core.NewEmulator(cb, vars)
	emu.SetInput(strings.NewReader(""))
	emu.SetOutput(io.Discard)

	return &FunctionalSimulator{
		prog: prog,
		vars: vars,
		emu:  emu,
	}
}

// SetInput feeds INPUT_INT.
func (fs *FunctionalSimulator) SetInput(r io.Reader) {
	fs.emu.SetInput(r)
}

// SetOutput captures what the program prints.
func (fs *FunctionalSimulator) SetOutput(w io.Writer) {
	fs.emu.SetOutput(w)
}

// Run executes the program for at most maxSteps instructions.
func (fs *FunctionalSimulator) Run(maxSteps int) error {
	stats, err := fs.emu.Run(context.Background(), fs.prog, maxSteps)
	fs.stats = stats
	return err
}

// Stats returns the counters of the last run.
func (fs *FunctionalSimulator) Stats() core.RunStats {
	return fs.stats
}

// GetValue returns a variable after the run.
func (fs *FunctionalSimulator) GetValue(name string) (core.Value, bool) {
	return fs.vars.Lookup(name)
}

// Snapshot returns a copy of every variable.
func (fs *FunctionalSimulator) Snapshot() map[string]core.Value {
	return fs.vars.Snapshot()
}
