package lexer

import "testing"

func kinds(t *testing.T, input string) []Token {
	t.Helper()
	toks, err := TokenizeAll(0, input)
	if err != nil {
		t.Fatalf("TokenizeAll(%q): %v", input, err)
	}
	return toks
}

func TestTokenizeInstructionLine(t *testing.T) {
	toks := kinds(t, "loop: ld a, (hl) ; fetch")

	want := []struct {
		typ TokenType
		lit string
	}{
		{TokIdent, "loop"},
		{TokColon, ":"},
		{TokIdent, "ld"},
		{TokIdent, "a"},
		{TokComma, ","},
		{TokLParen, "("},
		{TokIdent, "hl"},
		{TokRParen, ")"},
	}
	for i, w := range want {
		if toks[i].Type != w.typ || toks[i].Literal != w.lit {
			t.Errorf("token %d = (%s, %q), want (%s, %q)", i, toks[i].Type, toks[i].Literal, w.typ, w.lit)
		}
	}
}

func TestNumericLiteralForms(t *testing.T) {
	cases := []struct {
		input string
		lit   string
	}{
		{"255", "255"},
		{"0xFF", "0xFF"},
		{"#FF", "0xFF"},
		{"&FF", "0xFF"},
		{"$FF", "0xFF"},
		{"0b1010", "0b1010"},
		{"%1010", "0b1010"},
		{"0o17", "0o17"},
	}
	for _, tc := range cases {
		toks := kinds(t, tc.input)
		if toks[0].Type != TokNumber {
			t.Errorf("%q: token type %s, want NUMBER", tc.input, toks[0].Type)
			continue
		}
		if toks[0].Literal != tc.lit {
			t.Errorf("%q: literal %q, want %q", tc.input, toks[0].Literal, tc.lit)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks := kinds(t, `"a\tb\n\"q\" \x{41}"`)
	if toks[0].Type != TokString {
		t.Fatalf("token type %s, want STRING", toks[0].Type)
	}
	if toks[0].Literal != "a\tb\n\"q\" A" {
		t.Errorf("literal = %q", toks[0].Literal)
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := kinds(t, "nop ; trailing\n/* block\n comment */ halt")
	var idents []string
	for _, tok := range toks {
		if tok.Type == TokIdent {
			idents = append(idents, tok.Literal)
		}
	}
	if len(idents) != 2 || idents[0] != "nop" || idents[1] != "halt" {
		t.Errorf("identifiers = %v, want [nop halt]", idents)
	}
}

func TestLocalAndMacroLabelPrefixes(t *testing.T) {
	toks := kinds(t, ".loop\n@tmp")
	if toks[0].Type != TokIdent || toks[0].Literal != ".loop" {
		t.Errorf("token 0 = (%s, %q), want local label ident", toks[0].Type, toks[0].Literal)
	}
	// token 1 is the newline
	if toks[2].Type != TokIdent || toks[2].Literal != "@tmp" {
		t.Errorf("token 2 = (%s, %q), want macro-local ident", toks[2].Type, toks[2].Literal)
	}
}

func TestAlternateRegisterSetName(t *testing.T) {
	toks := kinds(t, "ex af, af'")
	last := toks[len(toks)-2] // final token is EOF
	if last.Type != TokIdent || last.Literal != "af'" {
		t.Errorf("last operand = (%s, %q), want identifier af'", last.Type, last.Literal)
	}
}

func TestSpanTracksLineAndColumn(t *testing.T) {
	toks := kinds(t, "nop\n  halt")
	var haltTok *Token
	for i := range toks {
		if toks[i].Literal == "halt" {
			haltTok = &toks[i]
		}
	}
	if haltTok == nil {
		t.Fatal("halt token not found")
	}
	if haltTok.Span.Line != 2 {
		t.Errorf("halt line = %d, want 2", haltTok.Span.Line)
	}
	if haltTok.Span.Column != 3 {
		t.Errorf("halt column = %d, want 3", haltTok.Span.Column)
	}
}

func TestCRLFLineTermination(t *testing.T) {
	toks := kinds(t, "nop\r\nhalt")
	var lines []int
	for _, tok := range toks {
		if tok.Type == TokIdent {
			lines = append(lines, tok.Span.Line)
		}
	}
	if len(lines) != 2 || lines[0] != 1 || lines[1] != 2 {
		t.Errorf("identifier lines = %v, want [1 2]", lines)
	}
}

func TestUnterminatedStringErrors(t *testing.T) {
	if _, err := TokenizeAll(0, `db "open`); err == nil {
		t.Error("unterminated string literal did not error")
	}
}
