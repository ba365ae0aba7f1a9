package asm

import (
	"fmt"

	"github.com/sarchlab/vexi/core"
)

// operand converts a Go value into an instruction operand. Strings that look
// like identifiers name a variable or label; other strings are text.
func operand(v any) (core.Operand, error) {
	switch x := v.(type) {
	case core.Operand:
		return x, nil
	case core.Value:
		return core.Lit(x), nil
	case string:
		if isName(x) {
			return core.Ref(x), nil
		}
		return core.Lit(core.Text(x)), nil
	case int:
		return core.IntLit(int64(x)), nil
	case int64:
		return core.IntLit(x), nil
	case float64:
		return core.Lit(core.Float(x)), nil
	case bool:
		return core.Lit(core.Bool(x)), nil
	default:
		return core.Operand{}, fmt.Errorf("unsupported operand %v (%T)", v, v)
	}
}

func isName(s string) bool {
	if s == "" || s == "true" || s == "false" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
