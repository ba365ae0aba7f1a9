package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/vexi/api"
	"github.com/sarchlab/vexi/asm"
	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
	valgen "github.com/sarchlab/vexi/util"
)

var (
	start  = flag.Int("start", 5, "value to count down from")
	output = flag.String("o", "", "save the recorded program as VEXI text")
)

// record builds a loop that reads a start value and prints every value down
// to one.
func record(cb *codebook.Codebook) *asm.Builder {
	return asm.New(cb).
		InputInt("var_i").
		JmpIfEq("var_i", 0, "done").
		Label("loop").
		PrintVar("var_i").
		Sub("var_i", 1).
		JmpIfNeq("var_i", 0, "loop").
		Label("done").
		PrintStr("liftoff")
}

func countdown(m *api.Machine, b *asm.Builder) (api.RunStats, error) {
	prog, err := b.Program("countdown")
	if err != nil {
		return api.RunStats{}, err
	}
	return m.Run(context.Background(), prog)
}

func newMachine(in io.Reader, out io.Writer) *api.Machine {
	return api.MachineBuilder{}.
		WithEngine(sim.NewSerialEngine()).
		WithFreq(1 * sim.GHz).
		WithInput(in).
		WithOutput(out).
		Build("VM")
}

func main() {
	flag.Parse()

	m := newMachine(valgen.Lines(valgen.MakeConstGen(*start), 1), os.Stdout)
	b := record(m.Codebook())

	if _, err := countdown(m, b); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
	fmt.Println()

	if *output != "" {
		if err := b.Save(*output); err != nil {
			fmt.Fprintln(os.Stderr, err)
			atexit.Exit(1)
		}
	}

	v, _ := m.Lookup("var_i")
	if !v.Equal(core.Int(0)) {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
