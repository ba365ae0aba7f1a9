package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vexi/api"
	"github.com/sarchlab/vexi/codebook"
	"github.com/sarchlab/vexi/core"
	"github.com/sarchlab/vexi/metrics"
	"github.com/sarchlab/vexi/mirror"
	"github.com/sarchlab/vexi/verify"
)

func newFlagSet(env *cliEnv, name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.Usage = func() {
		fmt.Fprintf(env.stderr, "Usage: vexi %s [options] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// loadPrograms reads one file. JSONL files may hold several programs.
func loadPrograms(cb *codebook.Codebook, path string) ([]*core.Program, error) {
	if strings.ToLower(filepath.Ext(path)) != ".jsonl" {
		prog, err := core.LoadFile(cb, path)
		if err != nil {
			return nil, err
		}
		return []*core.Program{prog}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return core.DecodePrograms(cb, path, f)
}

func runCmd(env *cliEnv, args []string) int {
	fs := newFlagSet(env, "run", "<file>...")
	dump := fs.Bool("dump", env.cfg.DumpState, "print the variable table after each program")
	steps := fs.Int("steps", env.cfg.MaxSteps, "instruction budget per program, 0 for none")
	timeout := fs.Duration("timeout", env.cfg.Timeout, "wall-clock budget per program, 0 for none")
	permissive := fs.Bool("permissive", !env.cfg.Strict, "skip unimplemented opcodes instead of faulting")
	metricsFile := fs.String("metrics", "", "write Prometheus metrics to this text file")
	mirrorPath := fs.String("mirror", env.cfg.MirrorPath, "SQLite file the codebook is mirrored to")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	builder := env.cfg.MachineBuilder().
		WithEngine(sim.NewSerialEngine()).
		WithStrict(!*permissive).
		WithMaxSteps(*steps).
		WithTimeout(*timeout).
		WithInput(env.stdin).
		WithOutput(env.stdout)

	if *dump {
		builder = builder.WithStateDump(env.stdout)
	}

	if *mirrorPath != "" {
		store, err := mirror.Open(*mirrorPath)
		if err != nil {
			return env.failf("%v", err)
		}
		defer store.Close()
		builder = builder.WithSink(store)
	}

	reg := prometheus.NewRegistry()
	if *metricsFile != "" {
		builder = builder.WithMetrics(metrics.New(reg))
	}

	m := builder.Build("VM")

	code := 0
	for _, path := range fs.Args() {
		progs, err := loadPrograms(m.Codebook(), path)
		if err != nil {
			code = env.failf("%v", err)
			break
		}

		if err := runAll(m, progs); err != nil {
			code = env.failf("%s: %v", path, err)
			break
		}
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			return env.failf("cannot write metrics: %v", err)
		}
	}

	return code
}

func runAll(m *api.Machine, progs []*core.Program) error {
	for _, prog := range progs {
		stats, err := m.Run(context.Background(), prog)
		slog.Info("RunDone",
			"Program", prog.Name(),
			"Steps", stats.Steps,
			"Halted", stats.Halted,
			"SimTime", float64(stats.SimTime),
			"Elapsed", stats.Elapsed,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func lintCmd(env *cliEnv, args []string) int {
	fs := newFlagSet(env, "lint", "<file>...")
	steps := fs.Int("steps", 10000, "instruction budget of the dry run")
	reportPath := fs.String("report", "", "also save the report of a single file here")
	quiet := fs.Bool("q", false, "only print issues")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if *reportPath != "" && fs.NArg() > 1 {
		return env.failf("-report needs exactly one file")
	}

	cb := codebook.Default()
	code := 0

	for _, path := range fs.Args() {
		prog, issues, err := verify.LintFile(cb, path)
		if err != nil {
			return env.failf("%v", err)
		}
		if len(issues) > 0 {
			code = 1
		}

		if prog == nil || *quiet {
			for _, issue := range issues {
				fmt.Fprintf(env.stdout, "%s: %s\n", path, issue)
			}
			continue
		}

		report := verify.GenerateReport(cb, prog, *steps)
		report.WriteReport(env.stdout)

		if *reportPath != "" {
			if err := report.SaveReportToFile(*reportPath); err != nil {
				return env.failf("%v", err)
			}
		}
	}

	return code
}

func fmtCmd(env *cliEnv, args []string) int {
	fs := newFlagSet(env, "fmt", "<file>")
	compact := fs.Bool("compact", false, "print decimal opcodes separated by spaces")
	asJSON := fs.Bool("json", false, "print the JSON form")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if *compact && *asJSON {
		return env.failf("-compact and -json are exclusive")
	}

	cb := codebook.Default()
	prog, err := core.LoadFile(cb, fs.Arg(0))
	if err != nil {
		return env.failf("%v", err)
	}

	switch {
	case *compact:
		err = core.FormatCompact(env.stdout, prog)
	case *asJSON:
		var data []byte
		data, err = prog.MarshalJSON()
		if err == nil {
			_, err = fmt.Fprintln(env.stdout, string(data))
		}
	default:
		err = core.Format(env.stdout, cb, prog)
	}
	if err != nil {
		return env.failf("%v", err)
	}

	return 0
}

func codebookCmd(env *cliEnv, args []string) int {
	fs := newFlagSet(env, "codebook", "")
	category := fs.String("category", "", "only print one category")
	constants := fs.Bool("constants", false, "include the constant groups")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cb := codebook.Default()

	t := table.NewWriter()
	t.SetOutputMirror(env.stdout)
	t.SetTitle(cb.Name())
	t.AppendHeader(table.Row{"Opcode", "Category", "Mnemonic", "Arity", "Literal"})

	found := false
	for _, c := range codebook.Categories() {
		if *category != "" && c.Name() != *category {
			continue
		}
		if !c.Executable() && !*constants && *category == "" {
			continue
		}
		found = true

		for _, e := range cb.Group(c) {
			literal := ""
			if e.IsConstant() {
				literal = fmt.Sprint(e.Literal)
			}
			t.AppendRow(table.Row{fmt.Sprintf("0x%02X", e.Opcode), c.Name(), e.Mnemonic, e.Arity.String(), literal})
		}
	}

	if !found {
		return env.failf("unknown category %q", *category)
	}

	t.Render()
	return 0
}

func mirrorCmd(env *cliEnv, args []string) int {
	fs := newFlagSet(env, "mirror", "")
	defaultPath := env.cfg.MirrorPath
	if defaultPath == "" {
		defaultPath = "vexi-codebook.db"
	}
	dbPath := fs.String("db", defaultPath, "SQLite file to write")
	show := fs.String("show", "", "print the stored record of a mnemonic")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cb := codebook.Default()

	store, err := mirror.Open(*dbPath)
	if err != nil {
		return env.failf("%v", err)
	}
	defer store.Close()

	if err := codebook.Mirror(cb, store); err != nil {
		return env.failf("%v", err)
	}

	n, err := store.Count(cb.Name())
	if err != nil {
		return env.failf("%v", err)
	}
	fmt.Fprintf(env.stdout, "mirrored %d entries of %q to %s\n", n, cb.Name(), *dbPath)

	if *show == "" {
		return 0
	}

	e, err := cb.ByMnemonic(*show)
	if err != nil {
		return env.failf("%v", err)
	}
	rec, err := store.Get(cb.Name(), e.Category, e.Opcode)
	if errors.Is(err, mirror.ErrNotFound) {
		return env.failf("%s is not in the mirror", *show)
	}
	if err != nil {
		return env.failf("%v", err)
	}

	fmt.Fprintf(env.stdout, "%X %s %s args=%d..%d\n",
		mirror.Key(e.Category, e.Opcode), rec.Category, rec.Mnemonic, rec.MinArgs, rec.MaxArgs)
	return 0
}
