package parse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/token"
)

func parseText(t *testing.T, text string) []token.Node {
	t.Helper()
	store := source.New()
	unit := store.Add(source.Inline, text)
	p, err := New(store, unit.ID)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	return prog
}

func parseError(t *testing.T, text string) error {
	t.Helper()
	store := source.New()
	unit := store.Add(source.Inline, text)
	p, err := New(store, unit.ID)
	if err != nil {
		return err
	}
	_, err = p.ParseProgram()
	if err == nil {
		t.Fatalf("ParseProgram(%q) succeeded, want error", text)
	}
	return err
}

func TestParseBasicDirectives(t *testing.T) {
	prog := parseText(t, "org 0x4000\nstart: nop\n db 1, 2, 3\n dw 0x1234\n ds 8, 0xFF\n")
	if len(prog) != 5 {
		t.Fatalf("got %d nodes, want 5", len(prog))
	}
	if _, ok := prog[0].(*token.Org); !ok {
		t.Errorf("node 0 is %T, want *token.Org", prog[0])
	}
	op, ok := prog[1].(*token.OpCode)
	if !ok {
		t.Fatalf("node 1 is %T, want *token.OpCode", prog[1])
	}
	if op.Label != "start" || op.Mnemonic != "nop" {
		t.Errorf("node 1 = label %q mnemonic %q", op.Label, op.Mnemonic)
	}
	db, ok := prog[2].(*token.Defb)
	if !ok {
		t.Fatalf("node 2 is %T, want *token.Defb", prog[2])
	}
	if len(db.Values) != 3 {
		t.Errorf("node 2 has %d values, want 3", len(db.Values))
	}
	if _, ok := prog[3].(*token.Defw); !ok {
		t.Errorf("node 3 is %T, want *token.Defw", prog[3])
	}
	defs, ok := prog[4].(*token.Defs)
	if !ok || defs.Fill == nil {
		t.Errorf("node 4 = %T, want *token.Defs with a fill expression", prog[4])
	}
}

func TestParseColonSeparatedStatements(t *testing.T) {
	prog := parseText(t, "org 0 : db 1,2 : db 3,4\n")
	if len(prog) != 3 {
		t.Fatalf("got %d nodes, want 3", len(prog))
	}
	if _, ok := prog[0].(*token.Org); !ok {
		t.Errorf("node 0 is %T, want *token.Org", prog[0])
	}
	for i := 1; i <= 2; i++ {
		if _, ok := prog[i].(*token.Defb); !ok {
			t.Errorf("node %d is %T, want *token.Defb", i, prog[i])
		}
	}
}

func TestParseColonChainWithLabelsAndMnemonics(t *testing.T) {
	// a mnemonic before `:` is a statement followed by a separator, an
	// unknown identifier before `:` is a label
	prog := parseText(t, "ld b, 0xf5 : loop: in a,(c) : rra : jr nc, loop\n")
	if len(prog) != 4 {
		t.Fatalf("got %d nodes, want 4", len(prog))
	}
	in, ok := prog[1].(*token.OpCode)
	if !ok {
		t.Fatalf("node 1 is %T, want *token.OpCode", prog[1])
	}
	if in.Label != "loop" || in.Mnemonic != "in" {
		t.Errorf("node 1 = label %q mnemonic %q, want loop/in", in.Label, in.Mnemonic)
	}
	rra, ok := prog[2].(*token.OpCode)
	if !ok {
		t.Fatalf("node 2 is %T, want *token.OpCode", prog[2])
	}
	if rra.Mnemonic != "rra" || rra.Label != "" {
		t.Errorf("node 2 = label %q mnemonic %q, want bare rra", rra.Label, rra.Mnemonic)
	}
}

func TestParseLabelWithoutColon(t *testing.T) {
	prog := parseText(t, "screen equ 0xC000\nloop jr loop\n")
	if _, ok := prog[0].(*token.Equ); !ok {
		t.Fatalf("node 0 is %T, want *token.Equ", prog[0])
	}
	op, ok := prog[1].(*token.OpCode)
	if !ok {
		t.Fatalf("node 1 is %T, want *token.OpCode", prog[1])
	}
	if op.Label != "loop" {
		t.Errorf("node 1 label = %q, want loop", op.Label)
	}
}

func TestParseIfElifElse(t *testing.T) {
	prog := parseText(t, "if mode == 1\n nop\nelif mode == 2\n halt\nelse\n di\nendif\n")
	n, ok := prog[0].(*token.If)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.If", prog[0])
	}
	if len(n.Branches) != 2 {
		t.Errorf("got %d branches, want 2", len(n.Branches))
	}
	if n.Else == nil || len(n.Else) != 1 {
		t.Errorf("else body = %v, want one node", n.Else)
	}
}

func TestParseNestedBlocks(t *testing.T) {
	prog := parseText(t, "repeat 3\n if 1\n  nop\n endif\nendrepeat\n")
	rep, ok := prog[0].(*token.Repeat)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.Repeat", prog[0])
	}
	if len(rep.Body) != 1 {
		t.Fatalf("repeat body has %d nodes, want 1", len(rep.Body))
	}
	if _, ok := rep.Body[0].(*token.If); !ok {
		t.Errorf("repeat body node is %T, want *token.If", rep.Body[0])
	}
}

func TestParseRepeatWithCounter(t *testing.T) {
	prog := parseText(t, "repeat 4, idx, 10, 2\n db idx\nendrepeat\n")
	rep := prog[0].(*token.Repeat)
	if rep.CounterName != "idx" {
		t.Errorf("counter name = %q, want idx", rep.CounterName)
	}
	if rep.Start == nil || rep.Step == nil {
		t.Error("start/step expressions missing")
	}
}

func TestParseSwitch(t *testing.T) {
	prog := parseText(t, "switch n\ncase 1\n nop\n break\ncase 2\n halt\ndefault\n di\nendswitch\n")
	sw, ok := prog[0].(*token.Switch)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.Switch", prog[0])
	}
	if len(sw.Cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(sw.Cases))
	}
	if sw.Cases[0].Fallthrough {
		t.Error("case 1 ends in break but is marked fallthrough")
	}
	if !sw.Cases[1].Fallthrough {
		t.Error("case 2 has no break but is not marked fallthrough")
	}
	if sw.Default == nil {
		t.Error("default body missing")
	}
}

func TestParseMacroCapturesRawBody(t *testing.T) {
	prog := parseText(t, "macro drawrow b1, b2\n db b1, b2\nmend\n drawrow 1, 2\n")
	def, ok := prog[0].(*token.MacroDefinition)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.MacroDefinition", prog[0])
	}
	if def.Name != "drawrow" || len(def.Params) != 2 {
		t.Errorf("macro %q with params %v", def.Name, def.Params)
	}
	if !strings.Contains(def.RawBody, "db b1, b2") {
		t.Errorf("raw body %q does not contain the db line", def.RawBody)
	}
	call, ok := prog[1].(*token.MacroCall)
	if !ok {
		t.Fatalf("node 1 is %T, want *token.MacroCall", prog[1])
	}
	if call.Name != "drawrow" || len(call.Args) != 2 {
		t.Errorf("call %q args %v", call.Name, call.Args)
	}
}

func TestParseStructFields(t *testing.T) {
	prog := parseText(t, "struct point\n xx db 4\n yy db 5\n zz db 6\nendstruct\n")
	def, ok := prog[0].(*token.StructDefinition)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.StructDefinition", prog[0])
	}
	if def.Name != "point" || len(def.Fields) != 3 {
		t.Fatalf("struct %q with %d fields, want point/3", def.Name, len(def.Fields))
	}
	if def.Fields[0].Name != "xx" {
		t.Errorf("field 0 = %q, want xx", def.Fields[0].Name)
	}
	if _, ok := def.Fields[0].Default.(*token.Defb); !ok {
		t.Errorf("field 0 default is %T, want *token.Defb", def.Fields[0].Default)
	}
}

func TestParseOperandShapes(t *testing.T) {
	prog := parseText(t, " ld a, (hl)\n ld (ix+2), 5\n in a, (c)\n out (0xFE), a\n jr nc, 0x4000\n ld hl, (0x8000)\n")

	check := func(i int, wantKinds ...token.OperandKind) {
		t.Helper()
		op := prog[i].(*token.OpCode)
		if len(op.Operands) != len(wantKinds) {
			t.Fatalf("node %d has %d operands, want %d", i, len(op.Operands), len(wantKinds))
		}
		for j, k := range wantKinds {
			if op.Operands[j].Kind != k {
				t.Errorf("node %d operand %d kind = %d, want %d", i, j, op.Operands[j].Kind, k)
			}
		}
	}
	check(0, token.OperandRegister, token.OperandRegIndirect)
	check(1, token.OperandIndexed, token.OperandImmediate)
	check(2, token.OperandRegister, token.OperandRegIndirect)
	check(3, token.OperandImmediateIndirect, token.OperandRegister)
	check(4, token.OperandCondition, token.OperandImmediate)
	check(5, token.OperandRegPair, token.OperandImmediateIndirect)
}

func TestParseConditionNameAsPlainTarget(t *testing.T) {
	// the sole operand of jp is never taken as a condition code
	prog := parseText(t, " jp c\n")
	op := prog[0].(*token.OpCode)
	if len(op.Operands) != 1 {
		t.Fatalf("got %d operands, want 1", len(op.Operands))
	}
	// `jp c` with no comma is an absolute jump to the symbol c... except
	// that a bare register name parses as a register; what matters here is
	// that it is not a condition.
	if op.Operands[0].Kind == token.OperandCondition {
		t.Error("sole operand of jp parsed as a condition")
	}
}

func TestParseUnterminatedBlockError(t *testing.T) {
	err := parseError(t, "repeat 3\n nop\n")
	if !strings.Contains(strings.ToLower(err.Error()), "repeat") {
		t.Errorf("error %q does not name the unterminated opener", err)
	}
}

func TestParseUnknownDirectiveIsMacroCall(t *testing.T) {
	// an unknown bare identifier with arguments parses as a macro call;
	// whether the macro exists is the driver's business
	prog := parseText(t, " blit 1, 2\n")
	if _, ok := prog[0].(*token.MacroCall); !ok {
		t.Errorf("node 0 is %T, want *token.MacroCall", prog[0])
	}
}

func TestParseIncludeResolvesAtParseTime(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "inner.asm"), []byte(" nop\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store := source.New()
	unit := store.Add("main.asm", "include \"inner.asm\"\n halt\n")
	p, err := New(store, unit.ID)
	if err != nil {
		t.Fatal(err)
	}
	p.SetResolver(source.NewFileResolver(dir))
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	inc, ok := prog[0].(*token.Include)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.Include", prog[0])
	}
	if len(inc.Body) != 1 {
		t.Errorf("include body has %d nodes, want 1", len(inc.Body))
	}
}

func TestParseIncludeCycleDetected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.asm"), []byte("include \"b.asm\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.asm"), []byte("include \"a.asm\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	store := source.New()
	unit := store.Add("main.asm", "include \"a.asm\"\n")
	p, err := New(store, unit.ID)
	if err != nil {
		t.Fatal(err)
	}
	p.SetResolver(source.NewFileResolver(dir))
	_, err = p.ParseProgram()
	if err == nil {
		t.Fatal("include cycle parsed without error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention the cycle", err)
	}
}

func TestParseCrunchedSection(t *testing.T) {
	prog := parseText(t, "crunched_section lz48\n db 1, 2, 3\nlzclose\n")
	cs, ok := prog[0].(*token.CrunchedSection)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.CrunchedSection", prog[0])
	}
	if cs.Codec != "lz48" {
		t.Errorf("codec = %q, want lz48", cs.Codec)
	}
	if len(cs.Body) != 1 {
		t.Errorf("body has %d nodes, want 1", len(cs.Body))
	}
}

func TestParseModule(t *testing.T) {
	prog := parseText(t, "module gfx\nwidth equ 80\nendmodule\n")
	mod, ok := prog[0].(*token.Module)
	if !ok {
		t.Fatalf("node 0 is %T, want *token.Module", prog[0])
	}
	if mod.Name != "gfx" || len(mod.Body) != 1 {
		t.Errorf("module %q with %d nodes", mod.Name, len(mod.Body))
	}
}
