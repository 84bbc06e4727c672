package z80

// encodeStack handles push/pop over bc/de/hl/af/ix/iy.
func encodeStack(mne string, ops []Operand) ([]byte, int, error) {
	if len(ops) != 1 || ops[0].Kind != OpRegPair {
		return nil, 0, errIllegal(mne, ops)
	}
	op := ops[0]
	base := byte(0xC5)
	if mne == "pop" {
		base = 0xC1
	}
	if prefix, ok := isIdxReg(op.Reg); ok {
		return []byte{prefix, base + 0x20}, 4, nil
	}
	pair, ok := reg16push[op.Reg]
	if !ok {
		return nil, 0, errIllegal(mne, ops)
	}
	return []byte{base | pair<<4}, 3, nil
}

// encodeIO handles in/out over the `(n)` immediate-port and `(c)`
// register-port addressing forms.
func encodeIO(mne string, ops []Operand) ([]byte, int, error) {
	if len(ops) != 2 {
		return nil, 0, errIllegal(mne, ops)
	}
	if mne == "in" {
		dst, src := ops[0], ops[1]
		if dst.Kind == OpReg && dst.Reg == "a" && src.Kind == OpRegIndirect && src.Reg == "n" {
			return []byte{0xDB, byte(src.Value)}, 3, nil
		}
		if dst.Kind == OpReg && src.Kind == OpRegIndirect && src.Reg == "c" {
			slot, ok := reg8Slot(dst.Reg)
			if !ok {
				return nil, 0, errIllegal(mne, ops)
			}
			return []byte{0xED, 0x40 | slot<<3}, 3, nil
		}
	} else {
		dst, src := ops[0], ops[1]
		if dst.Kind == OpRegIndirect && dst.Reg == "n" && src.Kind == OpReg && src.Reg == "a" {
			return []byte{0xD3, byte(dst.Value)}, 3, nil
		}
		if dst.Kind == OpRegIndirect && dst.Reg == "c" && src.Kind == OpReg {
			slot, ok := reg8Slot(src.Reg)
			if !ok {
				return nil, 0, errIllegal(mne, ops)
			}
			return []byte{0xED, 0x41 | slot<<3}, 3, nil
		}
	}
	return nil, 0, errIllegal(mne, ops)
}

var blockOpcodes = map[string]byte{
	"ldi": 0xA0, "ldd": 0xA8, "ldir": 0xB0, "lddr": 0xB8,
	"cpi": 0xA1, "cpd": 0xA9, "cpir": 0xB1, "cpdr": 0xB9,
	"ini": 0xA2, "ind": 0xAA, "inir": 0xB2, "indr": 0xBA,
	"outi": 0xA3, "outd": 0xAB, "otir": 0xB3, "otdr": 0xBB,
	// outir/outdr are the same encodings as otir/otdr under their other
	// common vendor spelling.
	"outir": 0xB3, "outdr": 0xBB,
}

func encodeBlock(mne string) ([]byte, int, error) {
	op, ok := blockOpcodes[mne]
	if !ok {
		return nil, 0, errIllegal(mne, nil)
	}
	return []byte{0xED, op}, 4, nil
}
