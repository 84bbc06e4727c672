package driver

import (
	"fmt"

	"github.com/retrocpc/basm/token"
	"github.com/retrocpc/basm/z80"
)

// convertOperand lowers a parsed token.Operand into the encoder's resolved
// z80.Operand, evaluating whatever expression it carries against the
// current pass's symbol table. `in`/`out`'s `(n)` immediate-port form is
// rewritten from OperandImmediateIndirect into an OpRegIndirect{Reg:"n"}
// here rather than in the parser, matching z80/misc.go's encodeIO, which
// keys the immediate-port encoding on that register-indirect shape and
// never sees a plain OpImmediateIndirect for in/out.
func (d *Driver) convertOperand(mne string, op token.Operand) (z80.Operand, error) {
	switch op.Kind {
	case token.OperandRegister:
		return z80.Operand{Kind: z80.OpReg, Reg: op.Reg}, nil
	case token.OperandRegPair:
		return z80.Operand{Kind: z80.OpRegPair, Reg: op.Reg}, nil
	case token.OperandRegIndirect:
		return z80.Operand{Kind: z80.OpRegIndirect, Reg: op.Reg}, nil
	case token.OperandIndexed:
		disp, err := d.evalInt(op.Expr)
		if err != nil {
			return z80.Operand{}, err
		}
		return z80.Operand{Kind: z80.OpIndexed, Reg: op.Reg, Value: disp, HasValue: true}, nil
	case token.OperandImmediate:
		v, err := d.eval(op.Expr)
		if err != nil {
			return z80.Operand{}, err
		}
		if v.IsPending() {
			// a forward reference settles on a later pass; assume the
			// current PC so relative branches stay in range meanwhile
			return z80.Operand{Kind: z80.OpImmediate, Value: int32(d.mem.PC), HasValue: true}, nil
		}
		i, err := v.AsInt()
		if err != nil {
			return z80.Operand{}, err
		}
		return z80.Operand{Kind: z80.OpImmediate, Value: i, HasValue: true}, nil
	case token.OperandImmediateIndirect:
		v, err := d.evalInt(op.Expr)
		if err != nil {
			return z80.Operand{}, err
		}
		if mne == "in" || mne == "out" {
			return z80.Operand{Kind: z80.OpRegIndirect, Reg: "n", Value: v, HasValue: true}, nil
		}
		return z80.Operand{Kind: z80.OpImmediateIndirect, Value: v, HasValue: true}, nil
	case token.OperandCondition:
		return z80.Operand{Kind: z80.OpCondition, Reg: op.Reg}, nil
	default:
		return z80.Operand{}, fmt.Errorf("unhandled operand kind %d", op.Kind)
	}
}

// execOpCode evaluates an instruction's operands against the current PC,
// encodes it, and emits the resulting bytes, expanding the CPC-style
// trailing repeat count (e.g. `ldir 4`) when the mnemonic admits one.
func (d *Driver) execOpCode(t *token.OpCode) error {
	pc := d.mem.PC
	ops := make([]z80.Operand, 0, len(t.Operands))
	for _, o := range t.Operands {
		zo, err := d.convertOperand(t.Mnemonic, o)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Sp, err)
		}
		ops = append(ops, zo)
	}
	bs, _, err := d.enc.Encode(t.Mnemonic, ops, pc)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Sp, err)
	}
	count := int32(1)
	if t.RepeatCount != nil {
		count, err = d.evalInt(t.RepeatCount)
		if err != nil {
			return err
		}
	}
	for i := int32(0); i < count; i++ {
		if err := d.emit(t, bs); err != nil {
			return err
		}
	}
	return nil
}
