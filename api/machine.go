// Package api defines the machine API of the vexi virtual machine.
package api

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
	"github.com/sarchlab/vexi/metrics"
)

// RunStats summarizes one run of a program.
type RunStats struct {
	Steps   int
	PC      int
	Halted  bool
	SimTime sim.VTimeInSec
	Elapsed time.Duration
}

// Machine is one VM instance. It owns a variable store that persists across
// runs and executes one instruction per tick of its engine.
type Machine struct {
	*sim.TickingComponent

	cb      *codebook.Codebook
	vars    *core.VarStore
	emu     *core.Emulator
	metrics *metrics.Collector

	maxSteps int
	timeout  time.Duration
	stateOut io.Writer

	prog    *core.Program
	ctx     context.Context
	stats   RunStats
	err     error
	running bool
}

// Run executes the program from its first instruction until it ends or
// faults. The returned error is a *core.Fault for faults, including an
// exhausted budget.
func (m *Machine) Run(ctx context.Context, prog *core.Program) (RunStats, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.prog = prog
	m.ctx = ctx
	m.stats = RunStats{}
	m.err = nil

	start := time.Now()
	startTime := m.Engine.CurrentTime()

	if prog.Len() == 0 {
		m.stats.Halted = true
	} else {
		// The last tick of an earlier run holds the current cycle, so the
		// first instruction goes on the next one.
		m.running = true
		m.TickLater()
		if err := m.Engine.Run(); err != nil {
			m.running = false
			return m.stats, fmt.Errorf("engine failed: %w", err)
		}
		if m.running {
			m.running = false
			return m.stats, fmt.Errorf("engine stopped at pc %d before %s ended", m.stats.PC, prog.Name())
		}
	}

	m.stats.Elapsed = time.Since(start)
	m.stats.SimTime = m.Engine.CurrentTime() - startTime

	m.metrics.ObserveRun(m.stats.Steps, m.err)
	core.LogState(m.stats.PC, m.vars)
	if m.stateOut != nil {
		core.PrintState(m.stateOut, m.stats.PC, m.vars)
	}

	return m.stats, m.err
}

// RunFile loads a program from disk and runs it.
func (m *Machine) RunFile(ctx context.Context, path string) (RunStats, error) {
	prog, err := core.LoadFile(m.cb, path)
	if err != nil {
		return RunStats{}, err
	}
	return m.Run(ctx, prog)
}

// Exec executes a single instruction outside of any program. There is no
// label table, so numeric jumps have no effect and label jumps fault.
func (m *Machine) Exec(inst core.Instruction) error {
	_, err := m.emu.Step(inst, 0, core.Labels{})
	if err == nil {
		m.metrics.ObserveInstruction(m.mnemonic(inst.Opcode))
	}
	return err
}

// Tick executes one instruction.
func (m *Machine) Tick() (madeProgress bool) {
	if !m.running {
		return false
	}

	if err := m.checkBudget(); err != nil {
		m.stop(err)
		return false
	}

	pc := m.stats.PC
	next, err := m.emu.StepProgram(m.prog, pc)
	if err != nil {
		m.stop(err)
		return false
	}

	m.metrics.ObserveInstruction(m.mnemonic(m.prog.At(pc).Opcode))
	m.stats.Steps++
	m.stats.PC = next

	if next == m.prog.Len() {
		m.stats.Halted = true
		m.stop(nil)
		return false
	}

	return true
}

func (m *Machine) checkBudget() error {
	if err := m.ctx.Err(); err != nil {
		return &core.Fault{PC: m.stats.PC, Err: fmt.Errorf("%w: %v", core.ErrBudgetExceeded, err)}
	}

	if m.maxSteps > 0 && m.stats.Steps >= m.maxSteps {
		return &core.Fault{PC: m.stats.PC, Err: fmt.Errorf("%w: %d steps", core.ErrBudgetExceeded, m.maxSteps)}
	}

	return nil
}

func (m *Machine) stop(err error) {
	m.running = false
	m.err = err

	if err != nil {
		core.Trace("MachineFault", "Machine", m.Name(), "PC", m.stats.PC, "Err", err)
		return
	}
	core.Trace("MachineHalt", "Machine", m.Name(), "Steps", m.stats.Steps)
}

func (m *Machine) mnemonic(opcode int) string {
	if e, err := m.cb.Instruction(opcode); err == nil {
		return e.Mnemonic
	}
	return "unknown"
}

// Codebook returns the opcode table of the machine.
func (m *Machine) Codebook() *codebook.Codebook {
	return m.cb
}

// Lookup returns the current value of a variable.
func (m *Machine) Lookup(name string) (core.Value, bool) {
	return m.vars.Lookup(name)
}

// Variables returns a copy of every variable.
func (m *Machine) Variables() map[string]core.Value {
	return m.vars.Snapshot()
}
