// Package parse turns a lexed token stream into the token tree §3/§4.1
// describe: one node per directive or instruction line, block directives
// recursively consuming their body until a matching closer. Expression
// operands are re-sliced from the originating source text and handed to
// the expr package's own tokenizer/parser, the same "raw text, retokenized"
// treatment the macro-body and arena-span design already uses elsewhere in
// this assembler. Grounded on the statement/block-consumption shape of
// parser/parser.go, generalized from ARM's flat instruction/directive list
// to the nested block-and-macro grammar this spec requires.
package parse

import (
	"fmt"
	"strings"

	"github.com/retrocpc/basm/expr"
	"github.com/retrocpc/basm/lexer"
	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/token"
)

// Error is a structured parse failure carrying the opener's span when the
// failure is an unterminated block.
type Error struct {
	Span    source.Span
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Span, e.Message) }

// Parser consumes one source unit's token stream.
type Parser struct {
	store  *source.Store
	unitID int
	toks   []lexer.Token
	pos    int

	resolver     source.Resolver
	includeStack []string // canonical ids of files currently being included
}

// New tokenizes unit and returns a Parser positioned at its first token.
func New(store *source.Store, unitID int) (*Parser, error) {
	unit := store.Unit(unitID)
	toks, err := lexer.TokenizeAll(unitID, unit.Text)
	if err != nil {
		return nil, err
	}
	return &Parser{store: store, unitID: unitID, toks: toks}, nil
}

// SetResolver attaches the include-path resolver; without one, an `include`
// directive fails with a "no resolver configured" error rather than
// touching the filesystem on its own.
func (p *Parser) SetResolver(r source.Resolver) { p.resolver = r }

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Type: lexer.TokEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return lexer.Token{Type: lexer.TokEOF}
	}
	return p.toks[p.pos+n]
}

func (p *Parser) advance() { p.pos++ }

func (p *Parser) skipNewlines() {
	for p.cur().Type == lexer.TokNewline {
		p.advance()
	}
}

func lower(s string) string { return strings.ToLower(s) }

// ParseProgram parses every top-level statement until EOF.
func (p *Parser) ParseProgram() ([]token.Node, error) {
	return p.parseBody(nil, "", source.Span{})
}

// parseBody parses statements until EOF or a closer keyword in closers is
// seen (not consumed); it returns the accumulated body. A nil closers means
// "parse to EOF" (top level); otherwise hitting EOF is an unterminated
// block, reported at the opener's span.
func (p *Parser) parseBody(closers map[string]bool, opener string, openerSpan source.Span) ([]token.Node, error) {
	var body []token.Node
	for {
		p.skipNewlines()
		t := p.cur()
		if t.Type == lexer.TokEOF {
			if closers != nil {
				return nil, &Error{Span: openerSpan, Message: fmt.Sprintf("unterminated %s block", opener)}
			}
			return body, nil
		}
		if closers != nil && t.Type == lexer.TokIdent && closers[lower(t.Literal)] {
			return body, nil
		}
		n, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if n != nil {
			body = append(body, n)
		}
	}
}

// stopAtLineEnd is the default expression terminator: end of line, a
// trailing comment, EOF, or a `:` statement separator (a label's colon is
// consumed before expression parsing ever starts, so a colon seen here at
// bracket depth 0 always chains the next statement).
func stopAtLineEnd(t lexer.Token) bool {
	return t.Type == lexer.TokNewline || t.Type == lexer.TokComment ||
		t.Type == lexer.TokEOF || t.Type == lexer.TokColon
}

func stopAtCommaOrLineEnd(t lexer.Token) bool {
	return t.Type == lexer.TokComma || stopAtLineEnd(t)
}

func stopAtCloseParenCommaOrLineEnd(t lexer.Token) bool {
	return t.Type == lexer.TokRParen || stopAtCommaOrLineEnd(t)
}

// exprText slices the verbatim source text from the current token up to
// (not including) the first token at bracket-depth 0 for which stop
// returns true, without consuming that boundary token.
func (p *Parser) exprText(stop func(lexer.Token) bool) string {
	unit := p.store.Unit(p.unitID)
	startOffset := p.cur().Span.Offset
	depth := 0
	for {
		t := p.cur()
		if t.Type == lexer.TokEOF {
			break
		}
		if depth == 0 && stop(t) {
			break
		}
		switch t.Type {
		case lexer.TokLParen, lexer.TokLBracket, lexer.TokLBrace:
			depth++
		case lexer.TokRParen, lexer.TokRBracket, lexer.TokRBrace:
			if depth > 0 {
				depth--
			}
		}
		p.advance()
	}
	endOffset := p.cur().Span.Offset
	if endOffset <= startOffset {
		return ""
	}
	return unit.Text[startOffset:endOffset]
}

func (p *Parser) parseExprUntil(stop func(lexer.Token) bool) (expr.Node, error) {
	text := strings.TrimSpace(p.exprText(stop))
	if text == "" {
		return nil, fmt.Errorf("expected expression")
	}
	return expr.Parse(text)
}

// parseExprList reads comma-separated expressions until end of line.
func (p *Parser) parseExprList() ([]expr.Node, error) {
	var out []expr.Node
	for {
		n, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		if p.cur().Type == lexer.TokComma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

// optionalExprUntil parses an expression if one is present before the stop
// boundary, returning nil if the boundary is immediate (an elided trailing
// argument).
func (p *Parser) optionalExprUntil(stop func(lexer.Token) bool) (expr.Node, error) {
	if stop(p.cur()) {
		return nil, nil
	}
	return p.parseExprUntil(stop)
}

func (p *Parser) expectIdent(lit string) error {
	t := p.cur()
	if t.Type != lexer.TokIdent || lower(t.Literal) != lower(lit) {
		return &Error{Span: t.Span, Message: fmt.Sprintf("expected %q, got %q", lit, t.Literal)}
	}
	p.advance()
	return nil
}

// finishLine consumes the current statement's terminator: a newline, EOF,
// or a bare `:` chaining another statement onto the same physical line
// (`org 0 : db 1,2 : db 3,4`). A `:` that forms a label never reaches here;
// the label path consumes it inside parseStatement.
func (p *Parser) finishLine() error {
	for p.cur().Type == lexer.TokComment {
		p.advance()
	}
	switch p.cur().Type {
	case lexer.TokNewline, lexer.TokColon:
		p.advance()
		return nil
	case lexer.TokEOF:
		return nil
	default:
		return &Error{Span: p.cur().Span, Message: fmt.Sprintf("unexpected token %q at end of line", p.cur().Literal)}
	}
}
