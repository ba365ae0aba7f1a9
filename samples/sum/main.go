package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/vexi/api"
	"github.com/sarchlab/vexi/core"
)

// sum.json is the compact form emitted by program generators:
// for i in 1..5, var_x += i.
//
//go:embed sum.json
var sumProgram []byte

func sum(m *api.Machine) (api.RunStats, error) {
	prog, err := core.ParseJSON(m.Codebook(), "sum.json", sumProgram)
	if err != nil {
		return api.RunStats{}, err
	}

	return m.Run(context.Background(), prog)
}

func main() {
	m := api.MachineBuilder{}.
		WithEngine(sim.NewSerialEngine()).
		WithFreq(500 * sim.MHz).
		WithMaxSteps(1000).
		Build("VM")

	stats, err := sum(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	fmt.Printf("%d instructions in %.0f ns\n", stats.Steps, float64(stats.SimTime)*1e9)

	atexit.Exit(0)
}
