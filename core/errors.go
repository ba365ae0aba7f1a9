package core

import (
	"errors"
	"fmt"
)

// Fault causes. A *Fault wraps exactly one of them, so callers match with
// errors.Is.
var (
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrUnimplemented    = errors.New("opcode not implemented")
	ErrMalformed        = errors.New("malformed instruction")
	ErrInvalidOperand   = errors.New("invalid operand")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrNotArray         = errors.New("not an array")
	ErrUndefinedLabel   = errors.New("undefined label")
	ErrJumpOutOfRange   = errors.New("jump target out of range")
	ErrInvalidInput     = errors.New("invalid input")
	ErrBudgetExceeded   = errors.New("execution budget exceeded")
	ErrMalformedProgram = errors.New("malformed program")
)

// Fault stops a run. It records where the machine was when the instruction
// failed.
type Fault struct {
	PC       int
	Opcode   int
	Mnemonic string
	Line     int
	Err      error
}

func (f *Fault) Error() string {
	where := fmt.Sprintf("pc %d", f.PC)
	if f.Line > 0 {
		where += fmt.Sprintf(" (line %d)", f.Line)
	}

	op := fmt.Sprintf("0x%02X", f.Opcode)
	if f.Mnemonic != "" {
		op += " " + f.Mnemonic
	}

	return fmt.Sprintf("fault at %s, %s: %v", where, op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// LoadError reports a program that could not be parsed or validated.
type LoadError struct {
	File string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	file := e.File
	if file == "" {
		file = "<program>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", file, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", file, e.Err)
}

// Unwrap exposes both ErrMalformedProgram and the underlying cause.
func (e *LoadError) Unwrap() []error {
	return []error{ErrMalformedProgram, e.Err}
}

var faultKinds = []struct {
	err  error
	name string
}{
	{ErrUnknownOpcode, "unknown_opcode"},
	{ErrUnimplemented, "unimplemented"},
	{ErrMalformed, "malformed"},
	{ErrInvalidOperand, "invalid_operand"},
	{ErrIndexOutOfRange, "index_out_of_range"},
	{ErrNotArray, "not_array"},
	{ErrUndefinedLabel, "undefined_label"},
	{ErrJumpOutOfRange, "jump_out_of_range"},
	{ErrInvalidInput, "invalid_input"},
	{ErrBudgetExceeded, "budget_exceeded"},
	{ErrMalformedProgram, "malformed_program"},
}

// FaultKind names the cause of err, or returns "other".
func FaultKind(err error) string {
	for _, k := range faultKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
