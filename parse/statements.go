package parse

import (
	"fmt"
	"strings"

	"github.com/retrocpc/basm/expr"
	"github.com/retrocpc/basm/lexer"
	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/token"
)

// parseStatement parses one logical line into a token.Node. It handles the
// `sym = e` / `sym equ e` assignment forms, optional label prefixes (with or
// without a trailing colon), and dispatches every directive and mnemonic
// keyword to its dedicated parser.
func (p *Parser) parseStatement() (token.Node, error) {
	t := p.cur()

	if t.Type == lexer.TokComment {
		sp := t.Span
		txt := t.Literal
		p.advance()
		if err := p.finishLine(); err != nil {
			return nil, err
		}
		return &token.Comment{Base: token.Base{Sp: sp}, Text: txt}, nil
	}

	if t.Type != lexer.TokIdent {
		return nil, &Error{Span: t.Span, Message: fmt.Sprintf("unexpected token %q", t.Literal)}
	}

	// sym = e
	if nxt := p.peekN(1); nxt.Type == lexer.TokOp && nxt.Literal == "=" {
		name, sp := t.Literal, t.Span
		p.advance()
		p.advance()
		val, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		if err := p.finishLine(); err != nil {
			return nil, err
		}
		return &token.Assign{Base: token.Base{Sp: sp}, Name: name, Value: val}, nil
	}

	// sym equ e
	if nxt := p.peekN(1); nxt.Type == lexer.TokIdent && lower(nxt.Literal) == "equ" {
		name, sp := t.Literal, t.Span
		p.advance()
		p.advance()
		val, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		if err := p.finishLine(); err != nil {
			return nil, err
		}
		return &token.Equ{Base: token.Base{Sp: sp}, Name: name, Value: val}, nil
	}

	firstKw := lower(t.Literal)

	// equ sym, e (directive-first form)
	if firstKw == "equ" {
		sp := t.Span
		p.advance()
		if p.cur().Type != lexer.TokIdent {
			return nil, &Error{Span: p.cur().Span, Message: "expected symbol name after equ"}
		}
		name := p.cur().Literal
		p.advance()
		if p.cur().Type == lexer.TokComma {
			p.advance()
		}
		val, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		if err := p.finishLine(); err != nil {
			return nil, err
		}
		return &token.Equ{Base: token.Base{Sp: sp}, Name: name, Value: val}, nil
	}

	var label string
	var labelSpan source.Span

	// `ident:` opens a label unless ident is a keyword/mnemonic, in which
	// case the colon is the statement separator after a no-operand
	// statement (`rra : jr nc, loop`).
	if nxt := p.peekN(1); nxt.Type == lexer.TokColon && !isKeywordOrMnemonic(firstKw) {
		label, labelSpan = t.Literal, t.Span
		p.advance()
		p.advance()
		if stopAtLineEnd(p.cur()) {
			if err := p.finishLine(); err != nil {
				return nil, err
			}
			return &token.LabelDef{Base: token.Base{Sp: labelSpan}, Name: label}, nil
		}
		t = p.cur()
	} else if !isKeywordOrMnemonic(firstKw) && nxt.Type == lexer.TokIdent && isKeywordOrMnemonic(lower(nxt.Literal)) {
		label, labelSpan = t.Literal, t.Span
		p.advance()
		t = p.cur()
	}

	return p.dispatch(lower(t.Literal), t, label, labelSpan)
}

// dispatch routes the keyword at t to its directive/mnemonic/macro-call
// parser, attaching label (if any) to the resulting node's Base.
func (p *Parser) dispatch(kw string, t lexer.Token, label string, labelSpan source.Span) (token.Node, error) {
	sp := t.Span
	base := token.Base{Sp: sp, Label: label}

	switch {
	case mnemonics[kw]:
		return p.parseOpCode(kw, base)
	}

	switch kw {
	case "org":
		p.advance()
		addr, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		var run expr.Node
		if p.cur().Type == lexer.TokComma {
			p.advance()
			run, err = p.parseExprUntil(stopAtLineEnd)
			if err != nil {
				return nil, err
			}
		}
		return &token.Org{Base: base, Address: addr, Run: run}, p.finishLine()

	case "align":
		p.advance()
		n, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		var fill expr.Node
		if p.cur().Type == lexer.TokComma {
			p.advance()
			fill, err = p.parseExprUntil(stopAtLineEnd)
			if err != nil {
				return nil, err
			}
		}
		return &token.Align{Base: base, N: n, Fill: fill}, p.finishLine()

	case "defb", "db":
		p.advance()
		vals, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &token.Defb{Base: base, Values: vals}, p.finishLine()

	case "defw", "dw":
		p.advance()
		vals, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &token.Defw{Base: base, Values: vals}, p.finishLine()

	case "defs", "ds":
		p.advance()
		count, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		var fill expr.Node
		if p.cur().Type == lexer.TokComma {
			p.advance()
			fill, err = p.parseExprUntil(stopAtLineEnd)
			if err != nil {
				return nil, err
			}
		}
		return &token.Defs{Base: base, Count: count, Fill: fill}, p.finishLine()

	case "incbin":
		return p.parseIncbin(base)
	case "include", "read":
		return p.parseIncludeDirective(base)

	case "if":
		return p.parseIf(base)
	case "ifdef":
		return p.parseIfdef(base, false)
	case "ifndef":
		return p.parseIfdef(base, true)

	case "repeat", "rept":
		return p.parseRepeat(base)
	case "while":
		return p.parseWhile(base)
	case "switch":
		return p.parseSwitch(base)
	case "for":
		return p.parseFor(base)
	case "macro":
		return p.parseMacroDef(base)
	case "struct":
		return p.parseStructDef(base)
	case "module":
		return p.parseModule(base)
	case "rorg":
		return p.parseRorg(base)
	case "crunched_section":
		return p.parseCrunchedSection(base)

	case "bank":
		p.advance()
		var n expr.Node
		var err error
		if !stopAtLineEnd(p.cur()) {
			n, err = p.parseExprUntil(stopAtLineEnd)
			if err != nil {
				return nil, err
			}
		}
		return &token.Bank{Base: base, N: n}, p.finishLine()

	case "bankset":
		p.advance()
		n, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		return &token.Bankset{Base: base, N: n}, p.finishLine()

	case "page":
		p.advance()
		n, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		return &token.Page{Base: base, N: n}, p.finishLine()

	case "limit":
		p.advance()
		addr, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		return &token.Limit{Base: base, Addr: addr}, p.finishLine()

	case "protect":
		p.advance()
		lo, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		if p.cur().Type != lexer.TokComma {
			return nil, &Error{Span: p.cur().Span, Message: "protect requires lo, hi"}
		}
		p.advance()
		hi, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		return &token.Protect{Base: base, Lo: lo, Hi: hi}, p.finishLine()

	case "run":
		p.advance()
		var addr, ramCfg expr.Node
		var err error
		if !stopAtLineEnd(p.cur()) {
			addr, err = p.parseExprUntil(stopAtCommaOrLineEnd)
			if err != nil {
				return nil, err
			}
			if p.cur().Type == lexer.TokComma {
				p.advance()
				ramCfg, err = p.parseExprUntil(stopAtLineEnd)
				if err != nil {
					return nil, err
				}
			}
		}
		return &token.Run{Base: base, Addr: addr, RAMCfg: ramCfg}, p.finishLine()

	case "save":
		return p.parseSave(base)

	case "breakpoint":
		p.advance()
		var addr expr.Node
		var err error
		typ := ""
		if !stopAtLineEnd(p.cur()) {
			addr, err = p.parseExprUntil(stopAtCommaOrLineEnd)
			if err != nil {
				return nil, err
			}
			if p.cur().Type == lexer.TokComma {
				p.advance()
				if p.cur().Type == lexer.TokIdent {
					typ = p.cur().Literal
					p.advance()
				}
			}
		}
		return &token.Breakpoint{Base: base, Addr: addr, Type: typ}, p.finishLine()

	case "brk", "label", "alias", "acebreak":
		p.advance()
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &token.SnapshotDirective{Base: base, Name: kw, Args: args}, p.finishLine()

	case "print":
		p.advance()
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &token.Print{Base: base, Args: args}, p.finishLine()

	case "assert":
		p.advance()
		cond, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		msg := ""
		if p.cur().Type == lexer.TokComma {
			p.advance()
			if p.cur().Type == lexer.TokString {
				msg = p.cur().Literal
				p.advance()
			} else {
				msg = strings.TrimSpace(p.exprText(stopAtLineEnd))
			}
		}
		return &token.Assert{Base: base, Cond: cond, Msg: msg}, p.finishLine()

	case "end":
		p.advance()
		return &token.End{Base: base}, p.finishLine()

	default:
		return p.parseMacroCallOrInstance(kw, base)
	}
}

// parseOpCode parses an instruction's operands and optional CPC repeat-count
// suffix.
func (p *Parser) parseOpCode(mne string, base token.Base) (token.Node, error) {
	p.advance()
	ops, err := p.parseOperandList(mne)
	if err != nil {
		return nil, err
	}
	var repeatCount expr.Node
	if len(ops) == 0 && mnemonicsAllowingRepeat[mne] && !stopAtLineEnd(p.cur()) {
		repeatCount, err = p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
	}
	return &token.OpCode{Base: base, Mnemonic: mne, Operands: ops, RepeatCount: repeatCount}, p.finishLine()
}

func (p *Parser) parseOperandList(mne string) ([]token.Operand, error) {
	if stopAtLineEnd(p.cur()) {
		return nil, nil
	}
	var ops []token.Operand
	for {
		op, err := p.parseOperand(mne, len(ops))
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		if p.cur().Type == lexer.TokComma {
			p.advance()
			continue
		}
		break
	}
	return ops, nil
}

func (p *Parser) parseOperand(mne string, index int) (token.Operand, error) {
	t := p.cur()
	if t.Type == lexer.TokLParen {
		return p.parseIndirectOperand()
	}
	if t.Type == lexer.TokIdent {
		lw := lower(t.Literal)
		if index == 0 && (mne == "jp" || mne == "jr" || mne == "call") && isConditionName(lw) && p.peekN(1).Type == lexer.TokComma {
			p.advance()
			return token.Operand{Kind: token.OperandCondition, Reg: lw}, nil
		}
		if mne == "ret" && index == 0 && isConditionName(lw) && stopAtLineEnd(p.peekN(1)) {
			p.advance()
			return token.Operand{Kind: token.OperandCondition, Reg: lw}, nil
		}
		if isRegisterName(lw) {
			p.advance()
			kind := token.OperandRegister
			if reg16Names[lw] {
				kind = token.OperandRegPair
			}
			return token.Operand{Kind: kind, Reg: lw}, nil
		}
	}
	exprNode, err := p.parseExprUntil(stopAtCommaOrLineEnd)
	if err != nil {
		return token.Operand{}, err
	}
	return token.Operand{Kind: token.OperandImmediate, Expr: exprNode}, nil
}

func (p *Parser) parseIndirectOperand() (token.Operand, error) {
	p.advance() // consume '('
	t := p.cur()
	if t.Type == lexer.TokIdent {
		lw := lower(t.Literal)
		if lw == "ix" || lw == "iy" {
			p.advance()
			if p.cur().Type == lexer.TokRParen {
				p.advance()
				return token.Operand{Kind: token.OperandIndexed, Reg: lw, Expr: expr.IntLit{Value: 0}}, nil
			}
			sign := ""
			if p.cur().Type == lexer.TokOp && (p.cur().Literal == "+" || p.cur().Literal == "-") {
				sign = p.cur().Literal
				p.advance()
			}
			text := strings.TrimSpace(p.exprText(stopAtCloseParenCommaOrLineEnd))
			if p.cur().Type != lexer.TokRParen {
				return token.Operand{}, &Error{Span: p.cur().Span, Message: "expected ')' after index displacement"}
			}
			dispNode, err := expr.Parse(sign + text)
			if err != nil {
				return token.Operand{}, err
			}
			p.advance()
			return token.Operand{Kind: token.OperandIndexed, Reg: lw, Expr: dispNode}, nil
		}
		if simpleIndirectRegs[lw] {
			save := p.pos
			p.advance()
			if p.cur().Type == lexer.TokRParen {
				p.advance()
				return token.Operand{Kind: token.OperandRegIndirect, Reg: lw}, nil
			}
			p.pos = save
		}
	}
	exprNode, err := p.parseExprUntil(stopAtCloseParenCommaOrLineEnd)
	if err != nil {
		return token.Operand{}, err
	}
	if p.cur().Type != lexer.TokRParen {
		return token.Operand{}, &Error{Span: p.cur().Span, Message: "expected ')'"}
	}
	p.advance()
	return token.Operand{Kind: token.OperandImmediateIndirect, Expr: exprNode}, nil
}

// parseIncbin parses `incbin "path" [,off [,len [,ext]]]` and the sibling
// `incbin "path", TRANSFORM` compression form.
func (p *Parser) parseIncbin(base token.Base) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokString {
		return nil, &Error{Span: p.cur().Span, Message: "incbin requires a string path"}
	}
	path := p.cur().Literal
	p.advance()
	n := &token.Incbin{Base: base, Path: path}
	if p.cur().Type != lexer.TokComma {
		return n, p.finishLine()
	}
	p.advance()
	if p.cur().Type == lexer.TokIdent && transformNames[lower(p.cur().Literal)] {
		n.Transform = lower(p.cur().Literal)
		p.advance()
		return n, p.finishLine()
	}
	off, err := p.parseExprUntil(stopAtCommaOrLineEnd)
	if err != nil {
		return nil, err
	}
	n.Offset = off
	if p.cur().Type == lexer.TokComma {
		p.advance()
		length, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		n.Length = length
		if p.cur().Type == lexer.TokComma {
			p.advance()
			if p.cur().Type == lexer.TokString || p.cur().Type == lexer.TokIdent {
				n.Ext = p.cur().Literal
				p.advance()
			}
		}
	}
	return n, p.finishLine()
}

// parseIncludeDirective parses `include "path"`, resolves it via the
// attached source.Resolver, and recursively parses the included text into
// an already-expanded token.Include node, so a bad path or an include
// cycle fails at parse time rather than surviving into the assembly
// passes. The resolver's canonical id (not the raw logical path) is what
// goes on the include stack, so two different-looking paths that resolve
// to the same file are still caught as a cycle.
func (p *Parser) parseIncludeDirective(base token.Base) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokString {
		return nil, &Error{Span: p.cur().Span, Message: "include requires a string path"}
	}
	path := p.cur().Literal
	p.advance()
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	if p.resolver == nil {
		return nil, &Error{Span: base.Sp, Message: fmt.Sprintf("include %q: no include resolver configured", path)}
	}

	data, canonicalID, err := p.resolver.Resolve(path)
	if err != nil {
		return nil, &Error{Span: base.Sp, Message: err.Error()}
	}
	for _, seen := range p.includeStack {
		if seen == canonicalID {
			return nil, &Error{Span: base.Sp, Message: (&source.IncludeCycleError{Path: path, Stack: p.includeStack}).Error()}
		}
	}

	unit := p.store.Add(canonicalID, string(data))
	child, err := New(p.store, unit.ID)
	if err != nil {
		return nil, &Error{Span: base.Sp, Message: fmt.Sprintf("include %q: %s", path, err)}
	}
	child.resolver = p.resolver
	child.includeStack = append(append([]string{}, p.includeStack...), canonicalID)

	body, err := child.ParseProgram()
	if err != nil {
		return nil, err
	}
	return &token.Include{Base: base, Path: path, Body: body}, nil
}

func (p *Parser) parseSave(base token.Base) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokString {
		return nil, &Error{Span: p.cur().Span, Message: "save requires a string path"}
	}
	n := &token.SaveCommand{Base: base, Path: p.cur().Literal}
	p.advance()
	if p.cur().Type != lexer.TokComma {
		return n, p.finishLine()
	}
	p.advance()
	from, err := p.parseExprUntil(stopAtCommaOrLineEnd)
	if err != nil {
		return nil, err
	}
	n.From = from
	if p.cur().Type == lexer.TokComma {
		p.advance()
		length, err := p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		n.Length = length
		if p.cur().Type == lexer.TokComma {
			p.advance()
			if p.cur().Type == lexer.TokIdent {
				n.Type = p.cur().Literal
				p.advance()
			}
			if p.cur().Type == lexer.TokComma {
				p.advance()
				if p.cur().Type == lexer.TokIdent || p.cur().Type == lexer.TokString {
					n.Support = p.cur().Literal
					p.advance()
				}
				if p.cur().Type == lexer.TokComma {
					p.advance()
					flag, err := p.parseExprUntil(stopAtLineEnd)
					if err != nil {
						return nil, err
					}
					n.Flag = flag
				}
			}
		}
	}
	return n, p.finishLine()
}

// parseIf parses `if e / elif e / else / endif`.
func (p *Parser) parseIf(base token.Base) (token.Node, error) {
	p.advance()
	cond, err := p.parseExprUntil(stopAtLineEnd)
	if err != nil {
		return nil, err
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	n := &token.If{Base: base}
	for {
		body, err := p.parseBody(map[string]bool{"elif": true, "else": true, "endif": true}, "if", base.Sp)
		if err != nil {
			return nil, err
		}
		n.Branches = append(n.Branches, token.IfBranch{Cond: cond, Body: body})
		closer := lower(p.cur().Literal)
		p.advance()
		if closer == "elif" {
			cond, err = p.parseExprUntil(stopAtLineEnd)
			if err != nil {
				return nil, err
			}
			if err := p.finishLine(); err != nil {
				return nil, err
			}
			continue
		}
		if closer == "else" {
			if err := p.finishLine(); err != nil {
				return nil, err
			}
			elseBody, err := p.parseBody(map[string]bool{"endif": true}, "if", base.Sp)
			if err != nil {
				return nil, err
			}
			n.Else = elseBody
			if lower(p.cur().Literal) != "endif" {
				return nil, &Error{Span: p.cur().Span, Message: "expected endif"}
			}
			p.advance()
		}
		break
	}
	return n, p.finishLine()
}

// parseIfdef builds an If node whose condition is a synthetic __ifdef__/
// __ifndef__ call the driver special-cases against symbol existence rather
// than value (§4.3's predicate directives have no value to evaluate).
func (p *Parser) parseIfdef(base token.Base, negate bool) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokIdent {
		return nil, &Error{Span: p.cur().Span, Message: "ifdef/ifndef requires a symbol name"}
	}
	name := p.cur().Literal
	p.advance()
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	fn := "__ifdef__"
	if negate {
		fn = "__ifndef__"
	}
	cond := expr.Call{Name: fn, Args: []expr.Node{expr.StringLit{Value: name}}}
	body, err := p.parseBody(map[string]bool{"else": true, "endif": true}, "ifdef", base.Sp)
	if err != nil {
		return nil, err
	}
	n := &token.If{Base: base, Branches: []token.IfBranch{{Cond: cond, Body: body}}}
	closer := lower(p.cur().Literal)
	p.advance()
	if closer == "else" {
		if err := p.finishLine(); err != nil {
			return nil, err
		}
		elseBody, err := p.parseBody(map[string]bool{"endif": true}, "if", base.Sp)
		if err != nil {
			return nil, err
		}
		n.Else = elseBody
		if lower(p.cur().Literal) != "endif" {
			return nil, &Error{Span: p.cur().Span, Message: "expected endif"}
		}
		p.advance()
	}
	return n, p.finishLine()
}

// parseRepeat parses `repeat n [,counter [,start [,step]]] ... endrepeat`
// and the post-test `repeat ... until cond` form.
func (p *Parser) parseRepeat(base token.Base) (token.Node, error) {
	p.advance()
	var count, start, step expr.Node
	counterName := ""
	if !stopAtLineEnd(p.cur()) {
		var err error
		count, err = p.parseExprUntil(stopAtCommaOrLineEnd)
		if err != nil {
			return nil, err
		}
		if p.cur().Type == lexer.TokComma {
			p.advance()
			if p.cur().Type != lexer.TokIdent {
				return nil, &Error{Span: p.cur().Span, Message: "expected counter name"}
			}
			counterName = p.cur().Literal
			p.advance()
			if p.cur().Type == lexer.TokComma {
				p.advance()
				start, err = p.parseExprUntil(stopAtCommaOrLineEnd)
				if err != nil {
					return nil, err
				}
				if p.cur().Type == lexer.TokComma {
					p.advance()
					step, err = p.parseExprUntil(stopAtLineEnd)
					if err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[string]bool{"endrepeat": true, "endr": true, "until": true}, "repeat", base.Sp)
	if err != nil {
		return nil, err
	}
	closer := lower(p.cur().Literal)
	p.advance()
	if closer == "until" {
		cond, err := p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
		return &token.RepeatUntil{Base: base, Cond: cond, Body: body}, p.finishLine()
	}
	return &token.Repeat{Base: base, Count: count, Body: body, CounterName: counterName, Start: start, Step: step}, p.finishLine()
}

func (p *Parser) parseWhile(base token.Base) (token.Node, error) {
	p.advance()
	cond, err := p.parseExprUntil(stopAtLineEnd)
	if err != nil {
		return nil, err
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[string]bool{"endw": true}, "while", base.Sp)
	if err != nil {
		return nil, err
	}
	p.advance()
	return &token.While{Base: base, Cond: cond, Body: body}, p.finishLine()
}

func (p *Parser) parseSwitch(base token.Base) (token.Node, error) {
	p.advance()
	selector, err := p.parseExprUntil(stopAtLineEnd)
	if err != nil {
		return nil, err
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	n := &token.Switch{Base: base, Selector: selector}
	for {
		p.skipNewlines()
		t := p.cur()
		if t.Type != lexer.TokIdent {
			return nil, &Error{Span: t.Span, Message: "expected case/default/endswitch"}
		}
		switch lower(t.Literal) {
		case "endswitch":
			p.advance()
			return n, p.finishLine()
		case "case":
			p.advance()
			val, err := p.parseExprUntil(stopAtLineEnd)
			if err != nil {
				return nil, err
			}
			if err := p.finishLine(); err != nil {
				return nil, err
			}
			body, err := p.parseBody(map[string]bool{"case": true, "default": true, "endswitch": true, "break": true}, "switch", base.Sp)
			if err != nil {
				return nil, err
			}
			fallthroughCase := true
			if lower(p.cur().Literal) == "break" {
				p.advance()
				if err := p.finishLine(); err != nil {
					return nil, err
				}
				fallthroughCase = false
			}
			n.Cases = append(n.Cases, token.SwitchCase{Value: val, Body: body, Fallthrough: fallthroughCase})
		case "default":
			p.advance()
			if err := p.finishLine(); err != nil {
				return nil, err
			}
			def, err := p.parseBody(map[string]bool{"endswitch": true}, "switch", base.Sp)
			if err != nil {
				return nil, err
			}
			n.Default = def
		default:
			return nil, &Error{Span: t.Span, Message: fmt.Sprintf("unexpected %q in switch", t.Literal)}
		}
	}
}

func (p *Parser) parseFor(base token.Base) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokIdent {
		return nil, &Error{Span: p.cur().Span, Message: "expected loop variable name"}
	}
	sym := p.cur().Literal
	p.advance()
	if p.cur().Type != lexer.TokComma {
		return nil, &Error{Span: p.cur().Span, Message: "expected ',' after for loop variable"}
	}
	p.advance()
	start, err := p.parseExprUntil(stopAtCommaOrLineEnd)
	if err != nil {
		return nil, err
	}
	if p.cur().Type != lexer.TokComma {
		return nil, &Error{Span: p.cur().Span, Message: "expected ',' before for loop end"}
	}
	p.advance()
	end, err := p.parseExprUntil(stopAtCommaOrLineEnd)
	if err != nil {
		return nil, err
	}
	var step expr.Node
	if p.cur().Type == lexer.TokComma {
		p.advance()
		step, err = p.parseExprUntil(stopAtLineEnd)
		if err != nil {
			return nil, err
		}
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[string]bool{"endfor": true, "next": true}, "for", base.Sp)
	if err != nil {
		return nil, err
	}
	p.advance()
	return &token.For{Base: base, Sym: sym, Start: start, End: end, Step: step, Body: body}, p.finishLine()
}

// parseMacroDef captures the macro body as raw, unparsed text; it is
// retokenised at each call site, per §3's MacroDefinition design.
func (p *Parser) parseMacroDef(base token.Base) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokIdent {
		return nil, &Error{Span: p.cur().Span, Message: "expected macro name"}
	}
	name := p.cur().Literal
	p.advance()
	var params []string
	defaults := map[string]string{}
	for !stopAtLineEnd(p.cur()) {
		if p.cur().Type != lexer.TokIdent {
			return nil, &Error{Span: p.cur().Span, Message: "expected macro parameter name"}
		}
		pname := p.cur().Literal
		p.advance()
		params = append(params, pname)
		if p.cur().Type == lexer.TokOp && p.cur().Literal == "=" {
			p.advance()
			defaults[pname] = strings.TrimSpace(p.exprText(stopAtCommaOrLineEnd))
		}
		if p.cur().Type == lexer.TokComma {
			p.advance()
			continue
		}
		break
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.captureRawBody("macro", map[string]bool{"mend": true, "endm": true}, "macro")
	if err != nil {
		return nil, err
	}
	return &token.MacroDefinition{Base: base, Name: name, Params: params, Defaults: defaults, RawBody: body, Dialect: "curly"}, nil
}

// captureRawBody slices the source verbatim from the current position up
// to (not including) the matching closer, tracking nesting via openKw, and
// leaves the parser positioned after the closer's own line.
func (p *Parser) captureRawBody(openKw string, closeKws map[string]bool, openCounter string) (string, error) {
	unit := p.store.Unit(p.unitID)
	startOffset := p.cur().Span.Offset
	depth := 1
	for {
		t := p.cur()
		if t.Type == lexer.TokEOF {
			return "", &Error{Span: t.Span, Message: fmt.Sprintf("unterminated %s block", openKw)}
		}
		if t.Type == lexer.TokIdent {
			lw := lower(t.Literal)
			if lw == openCounter {
				depth++
			} else if closeKws[lw] {
				depth--
				if depth == 0 {
					endOffset := t.Span.Offset
					body := unit.Text[startOffset:endOffset]
					p.advance()
					if err := p.finishLine(); err != nil {
						return "", err
					}
					return body, nil
				}
			}
		}
		p.advance()
	}
}

// parseStructDef reuses the ordinary statement grammar for its body: each
// field is written as `name db|dw|ds default`, which already parses as a
// label-prefixed leaf directive.
func (p *Parser) parseStructDef(base token.Base) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokIdent {
		return nil, &Error{Span: p.cur().Span, Message: "expected struct name"}
	}
	name := p.cur().Literal
	p.advance()
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[string]bool{"endstruct": true}, "struct", base.Sp)
	if err != nil {
		return nil, err
	}
	p.advance()
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	n := &token.StructDefinition{Base: base, Name: name}
	for _, node := range body {
		fieldName := ""
		switch v := node.(type) {
		case *token.Defb:
			fieldName = v.Label
			v.Label = ""
		case *token.Defw:
			fieldName = v.Label
			v.Label = ""
		case *token.Defs:
			fieldName = v.Label
			v.Label = ""
		default:
			continue
		}
		if fieldName == "" {
			continue
		}
		n.Fields = append(n.Fields, token.StructField{Name: fieldName, Default: node})
	}
	return n, nil
}

func (p *Parser) parseModule(base token.Base) (token.Node, error) {
	p.advance()
	if p.cur().Type != lexer.TokIdent {
		return nil, &Error{Span: p.cur().Span, Message: "expected module name"}
	}
	name := p.cur().Literal
	p.advance()
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[string]bool{"endmodule": true}, "module", base.Sp)
	if err != nil {
		return nil, err
	}
	p.advance()
	return &token.Module{Base: base, Name: name, Body: body}, p.finishLine()
}

func (p *Parser) parseRorg(base token.Base) (token.Node, error) {
	p.advance()
	origin, err := p.parseExprUntil(stopAtLineEnd)
	if err != nil {
		return nil, err
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[string]bool{"endrorg": true}, "rorg", base.Sp)
	if err != nil {
		return nil, err
	}
	p.advance()
	return &token.Rorg{Base: base, Origin: origin, Body: body}, p.finishLine()
}

func (p *Parser) parseCrunchedSection(base token.Base) (token.Node, error) {
	p.advance()
	codec := ""
	if p.cur().Type == lexer.TokIdent || p.cur().Type == lexer.TokString {
		codec = lower(p.cur().Literal)
		p.advance()
	}
	if err := p.finishLine(); err != nil {
		return nil, err
	}
	body, err := p.parseBody(map[string]bool{"lzclose": true}, "crunched_section", base.Sp)
	if err != nil {
		return nil, err
	}
	p.advance()
	return &token.CrunchedSection{Base: base, Codec: codec, Body: body}, p.finishLine()
}

// parseMacroCallOrInstance handles both `name(arg,...)`/`name arg,...`
// macro invocation and struct-instantiation syntax, which share the same
// call-site shape (§4.1 Macro parameters / §3 SaveCommand... struct rows).
func (p *Parser) parseMacroCallOrInstance(name string, base token.Base) (token.Node, error) {
	p.advance()
	args, err := p.parseRawArgList()
	if err != nil {
		return nil, err
	}
	return &token.MacroCall{Base: base, Name: name, Args: args}, p.finishLine()
}

func (p *Parser) parseRawArgList() ([]string, error) {
	var args []string
	if p.cur().Type == lexer.TokLParen {
		p.advance()
		for p.cur().Type != lexer.TokRParen {
			if p.cur().Type == lexer.TokEOF {
				return nil, &Error{Span: p.cur().Span, Message: "unterminated macro call"}
			}
			args = append(args, strings.TrimSpace(p.exprText(stopAtCloseParenCommaOrLineEnd)))
			if p.cur().Type == lexer.TokComma {
				p.advance()
				continue
			}
			break
		}
		if p.cur().Type != lexer.TokRParen {
			return nil, &Error{Span: p.cur().Span, Message: "expected ')'"}
		}
		p.advance()
		return args, nil
	}
	if stopAtLineEnd(p.cur()) {
		return nil, nil
	}
	for {
		args = append(args, strings.TrimSpace(p.exprText(stopAtCommaOrLineEnd)))
		if p.cur().Type == lexer.TokComma {
			p.advance()
			continue
		}
		break
	}
	return args, nil
}
