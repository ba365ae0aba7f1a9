package api

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
	"github.com/sarchlab/vexi/metrics"
)

// MachineBuilder creates a new instance of Machine.
type MachineBuilder struct {
	engine     sim.Engine
	freq       sim.Freq
	cb         *codebook.Codebook
	sink       codebook.Sink
	permissive bool
	maxSteps   int
	timeout    time.Duration
	in         io.Reader
	out        io.Writer
	stateOut   io.Writer
	metrics    *metrics.Collector
}

// WithEngine sets the engine. A serial engine is created when none is given.
func (b MachineBuilder) WithEngine(engine sim.Engine) MachineBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the machine, one instruction per cycle.
func (b MachineBuilder) WithFreq(freq sim.Freq) MachineBuilder {
	b.freq = freq
	return b
}

// WithCodebook sets the opcode table.
func (b MachineBuilder) WithCodebook(cb *codebook.Codebook) MachineBuilder {
	b.cb = cb
	return b
}

// WithSink sets where the codebook is mirrored when the machine is built.
func (b MachineBuilder) WithSink(sink codebook.Sink) MachineBuilder {
	b.sink = sink
	return b
}

// WithStrict selects whether unimplemented opcodes fault. Strict is the
// default.
func (b MachineBuilder) WithStrict(strict bool) MachineBuilder {
	b.permissive = !strict
	return b
}

// WithMaxSteps bounds the number of instructions per run. Zero means no
// bound.
func (b MachineBuilder) WithMaxSteps(n int) MachineBuilder {
	b.maxSteps = n
	return b
}

// WithTimeout bounds the wall-clock time of a run.
func (b MachineBuilder) WithTimeout(d time.Duration) MachineBuilder {
	b.timeout = d
	return b
}

// WithInput sets the source of INPUT_INT.
func (b MachineBuilder) WithInput(r io.Reader) MachineBuilder {
	b.in = r
	return b
}

// WithOutput sets the destination of the print instructions.
func (b MachineBuilder) WithOutput(w io.Writer) MachineBuilder {
	b.out = w
	return b
}

// WithStateDump prints the variable table to w after every run.
func (b MachineBuilder) WithStateDump(w io.Writer) MachineBuilder {
	b.stateOut = w
	return b
}

// WithMetrics sets the collector fed by the machine.
func (b MachineBuilder) WithMetrics(c *metrics.Collector) MachineBuilder {
	b.metrics = c
	return b
}

// Build creates a machine. A failing sink is logged and otherwise ignored.
func (b MachineBuilder) Build(name string) *Machine {
	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}
	if b.freq == 0 {
		b.freq = 1 * sim.GHz
	}
	if b.cb == nil {
		b.cb = codebook.Default()
	}
	if b.in == nil {
		b.in = os.Stdin
	}
	if b.out == nil {
		b.out = os.Stdout
	}

	vars := core.NewVarStore(b.cb.VariableNames())
	emu := core.NewEmulator(b.cb, vars)
	emu.SetStrict(!b.permissive)
	emu.SetInput(b.in)
	emu.SetOutput(b.out)

	m := &Machine{
		cb:       b.cb,
		vars:     vars,
		emu:      emu,
		maxSteps: b.maxSteps,
		timeout:  b.timeout,
		stateOut: b.stateOut,
		metrics:  b.metrics,
	}

	m.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, m)

	if err := codebook.Mirror(b.cb, b.sink); err != nil {
		slog.Warn("codebook mirror failed", "Machine", name, "Err", err)
	}

	return m
}
