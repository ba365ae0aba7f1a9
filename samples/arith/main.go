package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/vexi/api"
	"github.com/sarchlab/vexi/core"
)

//go:embed arith.vexi
var arithProgram string

func arith(m *api.Machine) (api.RunStats, error) {
	prog, err := core.ParseText(m.Codebook(), "arith.vexi", strings.NewReader(arithProgram))
	if err != nil {
		return api.RunStats{}, err
	}

	return m.Run(context.Background(), prog)
}

func main() {
	engine := sim.NewSerialEngine()

	m := api.MachineBuilder{}.
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithStateDump(os.Stdout).
		Build("VM")

	stats, err := arith(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	fmt.Printf("%d instructions in %.0f ns\n", stats.Steps, float64(stats.SimTime)*1e9)

	atexit.Exit(0)
}
