package codebook

var defaultCodebook = newDefault()

// Default returns the shared vexi codebook.
func Default() *Codebook {
	return defaultCodebook
}

type op struct {
	code     Opcode
	mnemonic string
	arity    Arity
	behavior Operation
}

func newDefault() *Codebook {
	cb := New("vexi core")

	cb.registerGroup(Arithmetic, []op{
		{0x10, "ADD", Fixed(2), OpAdd},
		{0x11, "SUB", Fixed(2), OpSub},
		{0x12, "MUL", Fixed(2), OpMul},
		{0x13, "DIV", Fixed(2), OpDiv},
		{0x14, "MOD", Fixed(2), OpMod},
	})

	cb.registerGroup(Logic, []op{
		{0x20, "EQ", Fixed(3), OpEq},
		{0x21, "NEQ", Fixed(3), OpNeq},
		{0x22, "GT", Fixed(3), OpGt},
		{0x23, "LT", Fixed(3), OpLt},
		{0x24, "GTE", Fixed(3), OpGte},
		{0x25, "LTE", Fixed(3), OpLte},
		{0x26, "AND", Fixed(3), OpAnd},
		{0x27, "OR", Fixed(3), OpOr},
		{0x28, "NOT", Fixed(2), OpNot},
	})

	cb.registerGroup(Variables, []op{
		{0x30, "var_i", Fixed(1), OpAssign},
		{0x31, "var_x", Fixed(1), OpAssign},
		{0x32, "var_y", Fixed(1), OpAssign},
		{0x33, "var_z", Fixed(1), OpAssign},
		{0x34, "var_temp", Fixed(1), OpAssign},
		{0x35, "var_mov", Fixed(2), OpMov},
	})

	// Structured markers are recognized but have no behavior.
	cb.registerGroup(Control, []op{
		{0x40, "IF", Variadic, OpNone},
		{0x41, "ELSE", Variadic, OpNone},
		{0x42, "WHILE", Variadic, OpNone},
		{0x43, "FOR", Variadic, OpNone},
		{0x44, "BREAK", Variadic, OpNone},
		{0x45, "CONTINUE", Variadic, OpNone},
		{0x46, "SWITCH", Variadic, OpNone},
		{0x47, "CASE", Variadic, OpNone},
	})

	cb.registerGroup(Array, []op{
		{0x50, "ARRAY", Arity{Min: 1, Max: 3}, OpArray},
	})

	cb.registerGroup(ArrayOps, []op{
		{0x60, "PUSH", Fixed(2), OpPush},
		{0x61, "POP", Arity{Min: 1, Max: 2}, OpPop},
		{0x62, "GET", Arity{Min: 2, Max: 3}, OpGet},
		{0x63, "SET", Fixed(3), OpSet},
		{0x64, "LENGTH", Arity{Min: 1, Max: 2}, OpLength},
	})

	cb.registerGroup(IO, []op{
		{0x70, "PRINT_STR", Fixed(1), OpPrintStr},
		{0x71, "PRINT_VAR", Fixed(1), OpPrintVar},
		{0x72, "INPUT_INT", Fixed(1), OpInputInt},
	})

	cb.registerGroup(ControlFlow, []op{
		{0x80, "LABEL", Fixed(1), OpLabel},
		{0x81, "JMP", Fixed(1), OpJmp},
		{0x82, "JMP_IF_EQ", Fixed(3), OpJmpIfEq},
		{0x83, "JMP_IF_NEQ", Fixed(3), OpJmpIfNeq},
	})

	for i := 0; i <= 0xFF; i++ {
		cb.register(Entry{
			Opcode:   Opcode(i),
			Category: Constants,
			Literal:  int64(i),
		})
	}

	extra := []struct {
		code    Opcode
		literal any
	}{
		{0xF0, 0.0},
		{0xF1, 1.0},
		{0xF2, true},
		{0xF3, false},
	}
	for _, x := range extra {
		cb.register(Entry{
			Opcode:   x.code,
			Category: ExtraConstants,
			Literal:  x.literal,
		})
	}

	cb.alias("MOV", "var_mov")

	return cb
}

func (cb *Codebook) registerGroup(c Category, ops []op) {
	for _, o := range ops {
		cb.register(Entry{
			Opcode:   o.code,
			Category: c,
			Mnemonic: o.mnemonic,
			Arity:    o.arity,
			Op:       o.behavior,
		})
	}
}
