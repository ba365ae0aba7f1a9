// Command vexi runs, checks and formats vexi bytecode programs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/vexi/config"
)

const usage = `Usage: vexi [-config file] [-env file] <command> [options] [args]

Commands:
  run       run program files on one machine
  lint      lint program files and dry-run them
  fmt       print a program in text, compact or JSON form
  codebook  print the opcode table
  mirror    write the opcode table to a SQLite mirror
`

// command is one subcommand. It returns the process exit code.
type command func(env *cliEnv, args []string) int

var commands = map[string]command{
	"run":      runCmd,
	"lint":     lintCmd,
	"fmt":      fmtCmd,
	"codebook": codebookCmd,
	"mirror":   mirrorCmd,
}

// cliEnv carries what every subcommand needs.
type cliEnv struct {
	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (e *cliEnv) failf(format string, args ...any) int {
	fmt.Fprintf(e.stderr, "vexi: "+format+"\n", args...)
	return 1
}

func main() {
	atexit.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vexi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := fs.String("config", "", "TOML configuration file (default vexi.toml if present)")
	envFile := fs.String("env", "", "dotenv file loaded before reading VEXI_* variables")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "vexi: unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(*cfgPath, envFiles...)
	if err != nil {
		fmt.Fprintf(stderr, "vexi: %v\n", err)
		return 1
	}

	if err := setupLogging(cfg, stderr); err != nil {
		fmt.Fprintf(stderr, "vexi: %v\n", err)
		return 1
	}

	env := &cliEnv{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}
	return cmd(env, fs.Args()[1:])
}

// setupLogging installs the default slog handler. JSON logs go to a file,
// text logs go to stderr.
func setupLogging(cfg config.Config, stderr io.Writer) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat != "json" {
		slog.SetDefault(slog.New(slog.NewTextHandler(stderr, opts)))
		return nil
	}

	path := cfg.LogFile
	if path == "" {
		path = "vexi.json.log"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create log file: %w", err)
	}
	atexit.Register(func() {
		f.Sync()
		f.Close()
	})

	slog.SetDefault(slog.New(slog.NewJSONHandler(f, opts)))
	return nil
}
