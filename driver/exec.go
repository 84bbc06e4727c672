package driver

import (
	"fmt"
	"strings"

	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/symbols"
	"github.com/retrocpc/basm/token"
	"github.com/retrocpc/basm/value"
)

func (d *Driver) execBody(body []token.Node) error {
	for _, n := range body {
		if err := d.execNode(n); err != nil {
			return err
		}
		if d.breakSignal {
			return nil
		}
	}
	return nil
}

// emit writes bs starting at the memory model's current PC, advancing it,
// and forwards each written cell to the recorder during the final pass.
func (d *Driver) emit(n token.Node, bs []byte) error {
	for _, b := range bs {
		addr, err := d.mem.CurrentAddress()
		if err != nil {
			return err
		}
		if err := d.mem.Write(b, !d.opts.Protect); err != nil {
			return err
		}
		if d.recording && d.recorder != nil {
			d.recorder.Record(n.Span(), addr, []byte{b})
		}
	}
	return nil
}

func (d *Driver) bindLabel(name string, sp source.Span) error {
	addr, err := d.mem.CurrentAddress()
	if err != nil {
		return err
	}
	// Define resolves a leading-dot local name itself and needs the raw
	// name to tell a local label from a non-local one
	return d.symbols.Define(name, value.Addr(addr), symbols.KindLabel, sp)
}

// labeled is implemented by every token.Base-embedding node; used to pick
// up an attached label without each Node implementation needing to widen
// the Node interface itself.
type labeled interface {
	GetLabel() string
}

func (d *Driver) execNode(n token.Node) error {
	if lb, ok := n.(labeled); ok && lb.GetLabel() != "" {
		if err := d.bindLabel(lb.GetLabel(), n.Span()); err != nil {
			return err
		}
	}
	switch t := n.(type) {
	case *token.Org:
		return d.execOrg(t)
	case *token.Align:
		return d.execAlign(t)
	case *token.Equ:
		return d.execEqu(t)
	case *token.Assign:
		return d.execAssign(t)
	case *token.LabelDef:
		// a standalone label line carries its name in Name, not Base.Label
		return d.bindLabel(t.Name, t.Sp)
	case *token.Comment:
		return nil
	case *token.Defb:
		return d.execDefb(t)
	case *token.Defw:
		return d.execDefw(t)
	case *token.Defs:
		return d.execDefs(t)
	case *token.OpCode:
		return d.execOpCode(t)
	case *token.Incbin:
		return d.execIncbin(t)
	case *token.Print:
		return d.execPrint(t)
	case *token.Assert:
		return d.execAssert(t)
	case *token.Limit:
		v, err := d.evalInt(t.Addr)
		if err != nil {
			return err
		}
		return d.mem.Limit(uint16(v))
	case *token.Protect:
		lo, err := d.evalInt(t.Lo)
		if err != nil {
			return err
		}
		hi, err := d.evalInt(t.Hi)
		if err != nil {
			return err
		}
		d.mem.Protect(uint16(lo), uint16(hi))
		return nil
	case *token.Run:
		return d.execRun(t)
	case *token.Breakpoint:
		return d.execBreakpoint(t)
	case *token.SaveCommand:
		return d.execSave(t)
	case *token.SnapshotDirective:
		return nil
	case *token.Bank:
		return d.execBank(t)
	case *token.Bankset:
		if t.N == nil {
			d.mem.SetCPRBloc(nil)
			return nil
		}
		n, err := d.evalInt(t.N)
		if err != nil {
			return err
		}
		b := byte(n)
		d.mem.SetCPRBloc(&b)
		return nil
	case *token.Page:
		if _, err := d.evalInt(t.N); err != nil {
			return err
		}
		return nil
	case *token.End:
		d.breakSignal = true
		return nil
	case *token.If:
		return d.execIf(t)
	case *token.Repeat:
		return d.execRepeat(t)
	case *token.RepeatUntil:
		return d.execRepeatUntil(t)
	case *token.While:
		return d.execWhile(t)
	case *token.Switch:
		return d.execSwitch(t)
	case *token.For:
		return d.execFor(t)
	case *token.MacroDefinition:
		d.macros[d.fold(t.Name)] = t
		return nil
	case *token.StructDefinition:
		d.structs[d.fold(t.Name)] = t
		return nil
	case *token.Module:
		d.symbols.PushModule(t.Name)
		err := d.execBody(t.Body)
		if perr := d.symbols.PopModule(); err == nil {
			err = perr
		}
		return err
	case *token.Rorg:
		addr, err := d.evalInt(t.Origin)
		if err != nil {
			return err
		}
		d.mem.BeginRorg(uint16(addr))
		err = d.execBody(t.Body)
		d.mem.EndRorg()
		return err
	case *token.CrunchedSection:
		return d.execCrunchedSection(t)
	case *token.MacroCall:
		return d.execMacroCall(t)
	case *token.Include:
		return d.execBody(t.Body)
	default:
		return fmt.Errorf("%s: unhandled node %T", n.Span(), n)
	}
}

func (d *Driver) execOrg(t *token.Org) error {
	addr, err := d.evalInt(t.Address)
	if err != nil {
		return err
	}
	var run *uint16
	if t.Run != nil {
		r, err := d.evalInt(t.Run)
		if err != nil {
			return err
		}
		u := uint16(r)
		run = &u
	}
	d.mem.Org(uint16(addr), run)
	d.sectionStart = uint16(addr)
	return nil
}

func (d *Driver) execAlign(t *token.Align) error {
	n, err := d.evalInt(t.N)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("align boundary must be positive, got %d", n)
	}
	fill := int32(d.mem.FillByte)
	if t.Fill != nil {
		fill, err = d.evalInt(t.Fill)
		if err != nil {
			return err
		}
	}
	for int32(d.mem.PC)%n != 0 {
		if err := d.emit(t, []byte{byte(fill)}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) execEqu(t *token.Equ) error {
	v, err := d.eval(t.Value)
	if err != nil {
		return err
	}
	return d.symbols.Define(t.Name, v, symbols.KindEqu, t.Sp)
}

func (d *Driver) execAssign(t *token.Assign) error {
	v, err := d.eval(t.Value)
	if err != nil {
		return err
	}
	return d.symbols.Define(t.Name, v, symbols.KindAssign, t.Sp)
}

func (d *Driver) execDefb(t *token.Defb) error {
	for _, e := range t.Values {
		v, err := d.eval(e)
		if err != nil {
			return err
		}
		bs, err := byteSerialize(v)
		if err != nil {
			return err
		}
		if err := d.emit(t, bs); err != nil {
			return err
		}
	}
	return nil
}

func byteSerialize(v value.Value) ([]byte, error) {
	switch v.Kind {
	case value.KindString:
		return []byte(v.Str), nil
	case value.KindList:
		out := make([]byte, 0, len(v.List))
		for _, item := range v.List {
			i, err := item.AsInt()
			if err != nil {
				return nil, err
			}
			out = append(out, byte(i))
		}
		return out, nil
	default:
		i, err := v.AsInt()
		if err != nil {
			return nil, err
		}
		return []byte{byte(i)}, nil
	}
}

func (d *Driver) execDefw(t *token.Defw) error {
	for _, e := range t.Values {
		v, err := d.evalInt(e)
		if err != nil {
			return err
		}
		if err := d.emit(t, []byte{byte(v), byte(v >> 8)}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) execDefs(t *token.Defs) error {
	count, err := d.evalInt(t.Count)
	if err != nil {
		return err
	}
	fill := int32(d.mem.FillByte)
	if t.Fill != nil {
		fill, err = d.evalInt(t.Fill)
		if err != nil {
			return err
		}
	}
	for i := int32(0); i < count; i++ {
		if err := d.emit(t, []byte{byte(fill)}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) execIncbin(t *token.Incbin) error {
	raw, _, err := d.opts.Resolver.Resolve(t.Path)
	if err != nil {
		return fmt.Errorf("incbin %q: %w", t.Path, err)
	}
	off := int32(0)
	if t.Offset != nil {
		off, err = d.evalInt(t.Offset)
		if err != nil {
			return err
		}
	}
	length := int32(len(raw)) - off
	if t.Length != nil {
		length, err = d.evalInt(t.Length)
		if err != nil {
			return err
		}
	}
	if off < 0 || int(off) > len(raw) || int(off+length) > len(raw) || length < 0 {
		return fmt.Errorf("incbin %q: offset/length out of range", t.Path)
	}
	data, err := d.compress(t.Transform, raw[off:off+length])
	if err != nil {
		return fmt.Errorf("%s: incbin %q: %w", t.Sp, t.Path, err)
	}
	return d.emit(t, data)
}

// compress routes data through the codec registered under name; "" and
// "none" pass through. An unregistered codec is a CompressionFailure: the
// core deliberately links no compression library itself.
func (d *Driver) compress(name string, data []byte) ([]byte, error) {
	key := strings.ToLower(name)
	if key == "" || key == "none" {
		return data, nil
	}
	if c, ok := d.opts.Compressors[key]; ok {
		out, err := c(data)
		if err != nil {
			return nil, fmt.Errorf("codec %q: %w", key, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("no compressor registered for codec %q", key)
}

// execCrunchedSection assembles the body at the current PC so labels bind
// and `peek` observes the raw, pre-compression bytes, then captures those
// bytes, rewinds, and replaces them with the codec's output stream.
func (d *Driver) execCrunchedSection(t *token.CrunchedSection) error {
	start := d.mem.PC
	wasRecording := d.recording
	d.recording = false // only the compressed stream reaches the listing
	err := d.execBody(t.Body)
	d.recording = wasRecording
	if err != nil {
		return err
	}
	raw := make([]byte, 0, d.mem.PC-start)
	for addr := start; addr != d.mem.PC; addr++ {
		v, err := d.mem.Peek(int32(addr))
		if err != nil {
			return err
		}
		b, err := v.AsInt()
		if err != nil {
			return err
		}
		raw = append(raw, byte(b))
	}
	packed, err := d.compress(t.Codec, raw)
	if err != nil {
		return fmt.Errorf("%s: crunched section: %w", t.Sp, err)
	}
	if err := d.mem.Rewind(start); err != nil {
		return err
	}
	return d.emit(t, packed)
}

func (d *Driver) execPrint(t *token.Print) error {
	var parts []string
	for _, a := range t.Args {
		v, err := d.eval(a)
		if err != nil {
			return err
		}
		parts = append(parts, v.String())
	}
	if d.recording {
		d.messages = append(d.messages, joinNoSep(parts))
	}
	return nil
}

func joinNoSep(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

func (d *Driver) execAssert(t *token.Assert) error {
	v, err := d.eval(t.Cond)
	if err != nil {
		return err
	}
	if v.IsPending() {
		return nil
	}
	ok, err := v.AsInt()
	if err != nil {
		return err
	}
	if ok == 0 {
		msg := t.Msg
		if msg == "" {
			msg = "assertion failed"
		}
		return fmt.Errorf("%s: %s", t.Sp, msg)
	}
	return nil
}

func (d *Driver) execRun(t *token.Run) error {
	addr := int32(d.mem.PC)
	var err error
	if t.Addr != nil {
		addr, err = d.evalInt(t.Addr)
		if err != nil {
			return err
		}
	}
	u := uint16(addr)
	d.runAddr = &u
	mmr := d.mem.MMR
	d.runMMR = &mmr
	if t.RAMCfg != nil {
		cfg, err := d.evalInt(t.RAMCfg)
		if err != nil {
			return err
		}
		d.mem.MMR = byte(cfg)
	}
	return nil
}

func (d *Driver) execBreakpoint(t *token.Breakpoint) error {
	addr := int32(d.mem.PC)
	var err error
	if t.Addr != nil {
		addr, err = d.evalInt(t.Addr)
		if err != nil {
			return err
		}
	}
	if d.recording {
		d.breakpoints = append(d.breakpoints, Breakpoint{Addr: uint16(addr), Type: t.Type})
	}
	return nil
}

func (d *Driver) execSave(t *token.SaveCommand) error {
	from := int32(0)
	length := int32(d.mem.PC)
	var err error
	if t.From != nil {
		from, err = d.evalInt(t.From)
		if err != nil {
			return err
		}
		length = int32(d.mem.PC) - from
	}
	if t.Length != nil {
		length, err = d.evalInt(t.Length)
		if err != nil {
			return err
		}
	}
	flag := int32(0)
	if t.Flag != nil {
		flag, err = d.evalInt(t.Flag)
		if err != nil {
			return err
		}
	}
	if !d.recording {
		return nil
	}
	data := make([]byte, length)
	for i := int32(0); i < length; i++ {
		v, err := d.mem.Peek(from + i)
		if err != nil {
			return err
		}
		b, _ := v.AsInt()
		data[i] = byte(b)
	}
	d.saves = append(d.saves, ResolvedSave{
		Path: t.Path, From: uint16(from), Length: uint16(length),
		Type: t.Type, Support: t.Support, Flag: flag, MMR: d.mem.MMR, Data: data,
	})
	return nil
}

func (d *Driver) execBank(t *token.Bank) error {
	if t.N == nil {
		d.mem.SetBank(nil)
		return nil
	}
	n, err := d.evalInt(t.N)
	if err != nil {
		return err
	}
	idx := int(n)
	d.mem.SetBank(&idx)
	return nil
}
