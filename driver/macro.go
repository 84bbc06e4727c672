package driver

import (
	"fmt"
	"strings"

	"github.com/retrocpc/basm/expr"
	"github.com/retrocpc/basm/parse"
	"github.com/retrocpc/basm/token"
	"github.com/retrocpc/basm/value"
	"github.com/retrocpc/basm/z80"
)

// fold canonicalises a macro/struct name per the driver's case-sensitivity
// mode, mirroring symbols.Table's own private fold so macro/struct lookup
// obeys the same mode without exposing the symbol table's private helper.
func (d *Driver) fold(name string) string {
	if d.opts.CaseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// execMacroCall dispatches a call-site `name(args...)`/`name args...` to
// either macro expansion or struct instantiation; both share the MacroCall
// node shape per §3's SaveCommand/struct-row overlap.
func (d *Driver) execMacroCall(t *token.MacroCall) error {
	key := d.fold(t.Name)
	if def, ok := d.macros[key]; ok {
		return d.expandMacro(def, t)
	}
	if def, ok := d.structs[key]; ok {
		return d.instantiateStruct(def, t)
	}
	return fmt.Errorf("%s: unknown macro or struct %q", t.Sp, t.Name)
}

// expandMacro implements the Lex/BindArgs/Splice/Reparse state machine
// §4.6 describes: bind positional args (falling back to declared defaults
// for an elided or empty position), splice them into the raw body text via
// both the `{arg}` and `\arg`/`\N` interpolation forms, then retokenize and
// reparse the spliced text as a transient source unit attributed to the
// call site before assembling it in place.
func (d *Driver) expandMacro(def *token.MacroDefinition, call *token.MacroCall) error {
	if d.expandDepth >= maxExpansionDepth {
		return fmt.Errorf("%s: macro expansion depth exceeded %d (recursive %q?)", call.Sp, maxExpansionDepth, def.Name)
	}

	body := def.RawBody
	for i, pname := range def.Params {
		argText := ""
		if i < len(call.Args) && strings.TrimSpace(call.Args[i]) != "" {
			argText = call.Args[i]
		} else if defVal, ok := def.Defaults[pname]; ok {
			argText = defVal
		}
		body = strings.ReplaceAll(body, "{"+pname+"}", argText)
		body = strings.ReplaceAll(body, "\\"+pname, argText)
		body = substituteParam(body, pname, argText, !d.opts.CaseSensitive)
	}
	for i := 0; i < len(call.Args); i++ {
		body = strings.ReplaceAll(body, fmt.Sprintf("\\%d", i+1), call.Args[i])
	}

	d.syntheticID++
	origin := fmt.Sprintf("<macro %s#%d>", def.Name, d.syntheticID)
	unit := d.store.Add(origin, body)
	p, err := parse.New(d.store, unit.ID)
	if err != nil {
		return fmt.Errorf("%s: expanding macro %q: %w", call.Sp, def.Name, err)
	}
	nodes, err := p.ParseProgram()
	if err != nil {
		return fmt.Errorf("%s: expanding macro %q: %w", call.Sp, def.Name, err)
	}

	d.expandDepth++
	err = d.execBody(nodes)
	d.expandDepth--
	return err
}

func isWordStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || ('0' <= c && c <= '9')
}

// substituteParam replaces whole-identifier occurrences of name in body
// with repl, leaving string/char literals and comments untouched, so a
// macro body can reference a parameter by its bare name.
func substituteParam(body, name, repl string, fold bool) string {
	var out strings.Builder
	i := 0
	for i < len(body) {
		c := body[i]
		if c == '"' || c == '\'' {
			j := i + 1
			for j < len(body) && body[j] != c && body[j] != '\n' {
				if body[j] == '\\' && j+1 < len(body) {
					j++
				}
				j++
			}
			if j < len(body) && body[j] == c {
				j++
			}
			out.WriteString(body[i:j])
			i = j
			continue
		}
		if c == ';' {
			j := strings.IndexByte(body[i:], '\n')
			if j < 0 {
				out.WriteString(body[i:])
				break
			}
			out.WriteString(body[i : i+j])
			i += j
			continue
		}
		if isWordStart(c) {
			j := i
			for j < len(body) && isWordChar(body[j]) {
				j++
			}
			word := body[i:j]
			if word == name || (fold && strings.EqualFold(word, name)) {
				out.WriteString(repl)
			} else {
				out.WriteString(word)
			}
			i = j
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

// CallUser implements expr.ExtendedEnv. duration("ld a,b") assembles its
// argument as a single instruction at the current PC and returns the CPC
// NOP count the encoder's cycle table reports for it.
func (d *Driver) CallUser(name string, args []value.Value) (value.Value, error) {
	if strings.ToLower(name) != "duration" {
		return value.Value{}, fmt.Errorf("undefined function: %q", name)
	}
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("duration expects 1 argument, got %d", len(args))
	}
	text, err := args[0].AsString()
	if err != nil {
		return value.Value{}, err
	}
	d.syntheticID++
	unit := d.store.Add(fmt.Sprintf("<duration#%d>", d.syntheticID), text)
	p, err := parse.New(d.store, unit.ID)
	if err != nil {
		return value.Value{}, fmt.Errorf("duration(%q): %w", text, err)
	}
	nodes, err := p.ParseProgram()
	if err != nil {
		return value.Value{}, fmt.Errorf("duration(%q): %w", text, err)
	}
	if len(nodes) != 1 {
		return value.Value{}, fmt.Errorf("duration(%q): expected exactly one instruction", text)
	}
	op, ok := nodes[0].(*token.OpCode)
	if !ok {
		return value.Value{}, fmt.Errorf("duration(%q): not an instruction", text)
	}
	ops := make([]z80.Operand, 0, len(op.Operands))
	for _, o := range op.Operands {
		zo, err := d.convertOperand(op.Mnemonic, o)
		if err != nil {
			return value.Value{}, err
		}
		ops = append(ops, zo)
	}
	_, cycles, err := d.enc.Encode(op.Mnemonic, ops, d.mem.PC)
	if err != nil {
		return value.Value{}, fmt.Errorf("duration(%q): %w", text, err)
	}
	return value.Int(int32(cycles)), nil
}

// instantiateStruct emits one field per struct.Field, in declaration
// order, using the call's positional argument as an override when present
// and non-empty, otherwise falling back to the field's own default token.
func (d *Driver) instantiateStruct(def *token.StructDefinition, call *token.MacroCall) error {
	for i, f := range def.Fields {
		override := ""
		hasOverride := i < len(call.Args) && strings.TrimSpace(call.Args[i]) != ""
		if hasOverride {
			override = call.Args[i]
		}
		if err := d.emitStructField(call, f, override, hasOverride); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) emitStructField(call *token.MacroCall, f token.StructField, override string, hasOverride bool) error {
	switch def := f.Default.(type) {
	case *token.Defb:
		if !hasOverride {
			return d.execDefb(def)
		}
		n, err := expr.Parse(override)
		if err != nil {
			return fmt.Errorf("%s: field %q: %w", call.Sp, f.Name, err)
		}
		v, err := d.eval(n)
		if err != nil {
			return err
		}
		bs, err := byteSerialize(v)
		if err != nil {
			return err
		}
		return d.emit(call, bs)
	case *token.Defw:
		if !hasOverride {
			return d.execDefw(def)
		}
		n, err := expr.Parse(override)
		if err != nil {
			return fmt.Errorf("%s: field %q: %w", call.Sp, f.Name, err)
		}
		v, err := d.evalInt(n)
		if err != nil {
			return err
		}
		return d.emit(call, []byte{byte(v), byte(v >> 8)})
	case *token.Defs:
		return d.execDefs(def)
	default:
		return fmt.Errorf("%s: struct field %q has no usable default", call.Sp, f.Name)
	}
}
