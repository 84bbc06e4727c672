package z80

import "strings"

// Encoder holds no mutable state beyond what a single Encode call needs;
// like the teacher's ARM Encoder it is a thin dispatcher, kept as a type so
// future per-run state (a literal pool analogue, if ever needed) has
// somewhere to live without changing the call sites.
type Encoder struct{}

func NewEncoder() *Encoder { return &Encoder{} }

// Encode maps (mnemonic, operands, pc) to its canonical byte encoding and
// CPC NOP-cycle count, implementing §4.5's encoder contract.
func (e *Encoder) Encode(mne string, ops []Operand, pc uint16) ([]byte, int, error) {
	mne = strings.ToLower(mne)
	switch mne {
	case "nop":
		return []byte{0x00}, 1, nil
	case "nops2":
		return []byte{0x00, 0x00}, 2, nil
	case "halt":
		return []byte{0x76}, 1, nil
	case "di":
		return []byte{0xF3}, 1, nil
	case "ei":
		return []byte{0xFB}, 1, nil
	case "scf":
		return []byte{0x37}, 1, nil
	case "ccf":
		return []byte{0x3F}, 1, nil
	case "cpl":
		return []byte{0x2F}, 1, nil
	case "daa":
		return []byte{0x27}, 1, nil
	case "neg":
		return []byte{0xED, 0x44}, 2, nil
	case "rlca":
		return []byte{0x07}, 1, nil
	case "rrca":
		return []byte{0x0F}, 1, nil
	case "rla":
		return []byte{0x17}, 1, nil
	case "rra":
		return []byte{0x1F}, 1, nil
	case "exx":
		return []byte{0xD9}, 1, nil
	case "ex":
		return encodeEx(ops)
	case "ld":
		return encodeLd(ops, pc)
	case "add", "adc", "sub", "sbc", "and", "or", "xor", "cp":
		return encodeAlu(mne, ops, pc)
	case "inc", "dec":
		return encodeIncDec(mne, ops)
	case "rlc", "rrc", "rl", "rr", "sla", "sra", "sll", "sl1", "srl":
		return encodeShift(mne, ops)
	case "bit", "set", "res":
		return encodeBitOp(mne, ops)
	case "jp", "jr", "call", "ret", "djnz":
		return encodeBranch(mne, ops, pc)
	case "rst":
		return encodeRst(ops)
	case "im":
		return encodeIm(ops)
	case "push", "pop":
		return encodeStack(mne, ops)
	case "in", "out":
		return encodeIO(mne, ops)
	case "ldi", "ldd", "ldir", "lddr", "cpi", "cpd", "cpir", "cpdr",
		"ini", "ind", "inir", "indr", "outi", "outd", "otir", "otdr",
		"outir", "outdr":
		return encodeBlock(mne)
	case "rld":
		return []byte{0xED, 0x6F}, 5, nil
	case "rrd":
		return []byte{0xED, 0x67}, 5, nil
	case "reti":
		return []byte{0xED, 0x4D}, 4, nil
	case "retn":
		return []byte{0xED, 0x45}, 4, nil
	case "exa":
		// CPC-dialect shorthand for `ex af,af'`; takes no operands.
		if len(ops) != 0 {
			return nil, 0, errIllegal(mne, ops)
		}
		return []byte{0x08}, 1, nil
	case "exd":
		// CPC-dialect shorthand for `ex de,hl`; takes no operands.
		if len(ops) != 0 {
			return nil, 0, errIllegal(mne, ops)
		}
		return []byte{0xEB}, 1, nil
	default:
		return nil, 0, errIllegal(mne, ops)
	}
}
