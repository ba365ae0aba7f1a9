package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/sarchlab/vexi/codebook"
)

// LoadFile reads a program from disk. Files ending in .json are decoded as
// the JSON form, everything else as text.
func LoadFile(cb *codebook.Codebook, path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(cb, path, data)
	}

	return ParseText(cb, path, bytes.NewReader(data))
}

// ParseText reads the line-oriented text form. Each non-blank line holds an
// opcode followed by its arguments. Fields are separated by commas, or by
// whitespace when the line has no comma outside quotes. Lines starting with
// // or # are comments.
func ParseText(cb *codebook.Codebook, name string, r io.Reader) (*Program, error) {
	var insts []Instruction

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		inst, err := parseLine(cb, line)
		if err != nil {
			return nil, &LoadError{File: name, Line: lineNo, Err: err}
		}
		inst.Line = lineNo
		insts = append(insts, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{File: name, Line: lineNo, Err: err}
	}

	return NewProgram(cb, name, insts)
}

type field struct {
	text   string
	quoted bool
}

func parseLine(cb *codebook.Codebook, line string) (Instruction, error) {
	fields, err := splitFields(line)
	if err != nil {
		return Instruction{}, err
	}

	if fields[0].quoted {
		return Instruction{}, fmt.Errorf("%w: opcode %q is quoted", ErrMalformed, fields[0].text)
	}

	opcode, err := parseOpcode(cb, fields[0].text)
	if err != nil {
		return Instruction{}, err
	}

	inst := Instruction{Opcode: opcode}
	for _, f := range fields[1:] {
		arg, err := parseOperand(f)
		if err != nil {
			return Instruction{}, err
		}
		inst.Args = append(inst.Args, arg)
	}

	return inst, nil
}

// splitFields splits a line on commas, or on whitespace when no comma occurs
// outside double quotes.
func splitFields(line string) ([]field, error) {
	comma := hasUnquotedComma(line)

	var (
		fields  []field
		cur     strings.Builder
		quoted  bool
		inQuote bool
		started bool
	)

	flush := func() error {
		text := cur.String()
		if !quoted {
			text = strings.TrimSpace(text)
		}
		if comma && !started && text == "" {
			return fmt.Errorf("%w: empty field", ErrMalformed)
		}
		if started || text != "" {
			fields = append(fields, field{text: text, quoted: quoted})
		}
		cur.Reset()
		quoted, started = false, false
		return nil
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote:
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				i++
				cur.WriteByte(line[i])
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			if strings.TrimSpace(cur.String()) != "" {
				return nil, fmt.Errorf("%w: stray quote in %q", ErrMalformed, line)
			}
			cur.Reset()
			cur.WriteByte(c)
			inQuote, quoted, started = true, true, true
		case comma && c == ',', !comma && (c == ' ' || c == '\t'):
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			if quoted && c != ' ' && c != '\t' {
				return nil, fmt.Errorf("%w: text after closing quote in %q", ErrMalformed, line)
			}
			if !quoted {
				cur.WriteByte(c)
			}
		}
	}

	if inQuote {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrMalformed, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	for i, f := range fields {
		if !f.quoted {
			continue
		}
		s, err := strconv.Unquote(f.text)
		if err != nil {
			return nil, fmt.Errorf("%w: bad text literal %s", ErrMalformed, f.text)
		}
		fields[i].text = s
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no opcode", ErrMalformed)
	}

	return fields, nil
}

func hasUnquotedComma(line string) bool {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case inQuote && c == '\\':
			i++
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			return true
		}
	}
	return false
}

// parseOpcode accepts a decimal or 0x-prefixed number, or a mnemonic.
func parseOpcode(cb *codebook.Codebook, s string) (int, error) {
	if n, ok, err := parseInt(s); ok {
		if err != nil {
			return 0, fmt.Errorf("%w: opcode %q: %v", ErrMalformed, s, err)
		}
		if n < 0 || n > 0xFF {
			return 0, fmt.Errorf("%w: opcode %s does not fit in a byte", ErrMalformed, s)
		}
		return int(n), nil
	}

	e, err := cb.ByMnemonic(s)
	if err != nil {
		e, err = cb.ByMnemonic(strings.ToUpper(s))
	}
	if err != nil || e.IsConstant() {
		return 0, fmt.Errorf("%w: unknown mnemonic %q", ErrMalformed, s)
	}

	return int(e.Opcode), nil
}

// parseInt parses signed decimal or 0x-prefixed hex. ok is false when s does
// not look like an integer at all.
func parseInt(s string) (n int64, ok bool, err error) {
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" || body[0] < '0' || body[0] > '9' {
		return 0, false, nil
	}
	if strings.ContainsAny(body, ".eE") && !hasHexPrefix(body) {
		return 0, false, nil
	}

	base := 10
	digits := body
	if hasHexPrefix(body) {
		base = 16
		digits = body[2:]
	}

	n, err = strconv.ParseInt(digits, base, 64)
	if err != nil {
		return 0, true, err
	}
	if strings.HasPrefix(s, "-") {
		n = -n
	}
	return n, true, nil
}

func hasHexPrefix(s string) bool {
	return len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func parseOperand(f field) (Operand, error) {
	if f.quoted {
		return Lit(Text(f.text)), nil
	}

	s := f.text
	switch s {
	case "true":
		return Lit(Bool(true)), nil
	case "false":
		return Lit(Bool(false)), nil
	}

	if n, ok, err := parseInt(s); ok {
		if err != nil {
			return Operand{}, fmt.Errorf("%w: bad literal %q", ErrMalformed, s)
		}
		return IntLit(n), nil
	}

	if looksNumeric(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("%w: bad literal %q", ErrMalformed, s)
		}
		return Lit(Float(v)), nil
	}

	if isIdent(s) {
		return Ref(s), nil
	}

	return Lit(Text(s)), nil
}

func looksNumeric(s string) bool {
	body := strings.TrimLeft(s, "+-")
	if body == "" {
		return false
	}
	c := body[0]
	return c >= '0' && c <= '9' || c == '.' && len(body) > 1
}

// Format writes the program in the comma dialect, using mnemonics where the
// codebook knows the opcode.
func Format(w io.Writer, cb *codebook.Codebook, p *Program) error {
	bw := bufio.NewWriter(w)
	for _, inst := range p.insts {
		op := fmt.Sprintf("0x%02X", inst.Opcode)
		if e, err := cb.Instruction(inst.Opcode); err == nil {
			op = e.Mnemonic
		}

		bw.WriteString(op)
		for _, a := range inst.Args {
			bw.WriteByte(',')
			bw.WriteString(a.String())
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// FormatCompact writes one instruction per line as whitespace-separated
// decimal opcode and arguments.
func FormatCompact(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)
	for _, inst := range p.insts {
		bw.WriteString(strconv.Itoa(inst.Opcode))
		for _, a := range inst.Args {
			bw.WriteByte(' ')
			bw.WriteString(a.String())
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ParseCompact reads the output of FormatCompact.
func ParseCompact(cb *codebook.Codebook, name string, text string) (*Program, error) {
	return ParseText(cb, name, strings.NewReader(text))
}

// jsonInstruction is [opcode, args] where args is a single value or a list.
type jsonInstruction struct {
	Opcode int
	Args   []Operand
}

func (ji jsonInstruction) MarshalJSON() ([]byte, error) {
	args := make([]any, len(ji.Args))
	for i, a := range ji.Args {
		switch f, isFloat := a.Lit.AsFloat(); {
		case a.IsName():
			args[i] = a.Name
		case isFloat:
			args[i] = json.Number(formatFloat(f))
		default:
			args[i] = a.Lit.Native()
		}
	}
	return json.Marshal([]any{ji.Opcode, args})
}

func (ji *jsonInstruction) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: instruction is not a list: %v", ErrMalformed, err)
	}
	if len(raw) == 0 || len(raw) > 2 {
		return fmt.Errorf("%w: instruction needs [opcode, args]", ErrMalformed)
	}

	if err := json.Unmarshal(raw[0], &ji.Opcode); err != nil {
		return fmt.Errorf("%w: opcode: %v", ErrMalformed, err)
	}

	ji.Args = nil
	if len(raw) == 1 || string(bytes.TrimSpace(raw[1])) == "null" {
		return nil
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal(raw[1], &tuple); err != nil {
		tuple = []json.RawMessage{raw[1]}
	}

	for _, r := range tuple {
		arg, err := jsonOperand(r)
		if err != nil {
			return err
		}
		ji.Args = append(ji.Args, arg)
	}
	return nil
}

func jsonOperand(raw json.RawMessage) (Operand, error) {
	s := string(bytes.TrimSpace(raw))
	switch {
	case s == "true":
		return Lit(Bool(true)), nil
	case s == "false":
		return Lit(Bool(false)), nil
	case strings.HasPrefix(s, `"`):
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Operand{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if isIdent(text) {
			return Ref(text), nil
		}
		return Lit(Text(text)), nil
	case strings.ContainsAny(s, ".eE"):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("%w: bad literal %s", ErrMalformed, s)
		}
		return Lit(Float(f)), nil
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("%w: bad literal %s", ErrMalformed, s)
		}
		return IntLit(n), nil
	}
}

// ParseJSON decodes a program written as a list of [opcode, args] pairs.
func ParseJSON(cb *codebook.Codebook, name string, data []byte) (*Program, error) {
	var list []jsonInstruction
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &LoadError{File: name, Err: err}
	}
	return fromJSON(cb, name, list)
}

// DecodePrograms reads a stream of JSON programs, one per value, such as a
// JSON Lines dataset.
func DecodePrograms(cb *codebook.Codebook, name string, r io.Reader) ([]*Program, error) {
	dec := json.NewDecoder(r)

	var progs []*Program
	for i := 1; ; i++ {
		var list []jsonInstruction
		err := dec.Decode(&list)
		if errors.Is(err, io.EOF) {
			return progs, nil
		}
		if err != nil {
			return nil, &LoadError{File: name, Line: i, Err: err}
		}

		p, err := fromJSON(cb, fmt.Sprintf("%s#%d", name, i), list)
		if err != nil {
			return nil, err
		}
		progs = append(progs, p)
	}
}

func fromJSON(cb *codebook.Codebook, name string, list []jsonInstruction) (*Program, error) {
	insts := make([]Instruction, len(list))
	for i, ji := range list {
		insts[i] = Instruction{Opcode: ji.Opcode, Args: ji.Args}
	}
	return NewProgram(cb, name, insts)
}

// MarshalJSON encodes the program as a list of [opcode, args] pairs.
func (p *Program) MarshalJSON() ([]byte, error) {
	list := make([]jsonInstruction, len(p.insts))
	for i, inst := range p.insts {
		list[i] = jsonInstruction{Opcode: inst.Opcode, Args: inst.Args}
	}
	return json.Marshal(list)
}
