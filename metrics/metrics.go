// Package metrics exports Prometheus counters for vexi machines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sarchlab/vexi/core"
)

// Collector records executed instructions, faults, and finished runs. A nil
// *Collector records nothing.
type Collector struct {
	instructions *prometheus.CounterVec
	faults       *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runSteps     prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		instructions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexi_instructions_total",
				Help: "Total number of executed instructions",
			},
			[]string{"mnemonic"},
		),
		faults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexi_faults_total",
				Help: "Total number of faults by kind",
			},
			[]string{"kind"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexi_runs_total",
				Help: "Total number of finished runs by outcome",
			},
			[]string{"outcome"},
		),
		runSteps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vexi_run_steps",
				Help:    "Instructions executed per run",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
	}
}

// ObserveInstruction counts one executed instruction.
func (c *Collector) ObserveInstruction(mnemonic string) {
	if c == nil {
		return
	}
	c.instructions.WithLabelValues(mnemonic).Inc()
}

// ObserveRun records a finished run. err is the fault that stopped it, nil
// for a run that reached the end of its program.
func (c *Collector) ObserveRun(steps int, err error) {
	if c == nil {
		return
	}

	outcome := "halted"
	if err != nil {
		outcome = "faulted"
		c.faults.WithLabelValues(core.FaultKind(err)).Inc()
	}

	c.runs.WithLabelValues(outcome).Inc()
	c.runSteps.Observe(float64(steps))
}
