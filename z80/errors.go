package z80

import "fmt"

// ErrKind enumerates the §7 Encoding error kinds.
type ErrKind int

const (
	ErrIllegalOperand ErrKind = iota
	ErrBranchOutOfRange
	ErrImmediateOutOfRange
)

// Error is the encoder's structured error type.
type Error struct {
	Kind     ErrKind
	Mnemonic string
	Detail   string
}

func (e *Error) Error() string { return e.Detail }

func errIllegal(mne string, operands []Operand) error {
	return &Error{
		Kind:     ErrIllegalOperand,
		Mnemonic: mne,
		Detail:   fmt.Sprintf("illegal operands for %s: %v", mne, describeOperands(operands)),
	}
}

func errBranchRange(delta int) error {
	return &Error{
		Kind:   ErrBranchOutOfRange,
		Detail: fmt.Sprintf("relative branch out of range: delta %+d does not fit in -128..127", delta),
	}
}

func errImmRange(value int32, bits int) error {
	return &Error{
		Kind:   ErrImmediateOutOfRange,
		Detail: fmt.Sprintf("immediate %d does not fit in %d bits", value, bits),
	}
}

func describeOperands(ops []Operand) []string {
	out := make([]string, len(ops))
	for i, o := range ops {
		switch o.Kind {
		case OpReg, OpRegPair, OpCondition:
			out[i] = o.Reg
		case OpRegIndirect:
			out[i] = "(" + o.Reg + ")"
		case OpIndexed:
			out[i] = fmt.Sprintf("(%s%+d)", o.Reg, o.Value)
		case OpImmediate:
			out[i] = fmt.Sprintf("%d", o.Value)
		case OpImmediateIndirect:
			out[i] = fmt.Sprintf("(%d)", o.Value)
		default:
			out[i] = "?"
		}
	}
	return out
}
