package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	LevelTrace slog.Level = slog.LevelInfo + 1
)

func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// PrintState renders the variable store as a table.
func PrintState(w io.Writer, pc int, vars *VarStore) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("State@pc=%d", pc))
	t.AppendHeader(table.Row{"Variable", "Kind", "Value"})

	snap := vars.Snapshot()
	for _, name := range vars.Names() {
		v := snap[name]
		t.AppendRow(table.Row{name, v.Kind().Name(), v.String()})
	}

	t.Render()
}

func LogState(pc int, vars *VarStore) {
	snap := vars.Snapshot()
	attrs := make([]any, 0, len(snap)+1)
	attrs = append(attrs, "PC", pc)
	for _, name := range vars.Names() {
		attrs = append(attrs, name, snap[name].String())
	}
	slog.Debug("StateCheckpoint", attrs...)
}
