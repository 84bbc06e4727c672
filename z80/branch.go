package z80

// jrCond maps the four condition codes legal on jr/djnz to their 2-bit
// field in the 0x20-range opcode.
var jrCond = map[string]byte{"nz": 0, "z": 1, "nc": 2, "c": 3}

// encodeBranch handles jp/jr/call/ret/djnz, including the relative-jump
// displacement computation and range check required by §4.5.
func encodeBranch(mne string, ops []Operand, pc uint16) ([]byte, int, error) {
	switch mne {
	case "jp":
		return encodeJp(ops)
	case "jr":
		return encodeJr(ops, pc)
	case "call":
		return encodeCall(ops)
	case "ret":
		return encodeRet(ops)
	case "djnz":
		return encodeDjnz(ops, pc)
	}
	return nil, 0, errIllegal(mne, ops)
}

func encodeJp(ops []Operand) ([]byte, int, error) {
	switch len(ops) {
	case 1:
		op := ops[0]
		switch op.Kind {
		case OpImmediate:
			return append([]byte{0xC3}, le16(op.Value)...), 3, nil
		case OpRegIndirect:
			if op.Reg == "hl" {
				return []byte{0xE9}, 1, nil
			}
			if prefix, ok := isIdxReg(op.Reg); ok {
				return []byte{prefix, 0xE9}, 2, nil
			}
		}
	case 2:
		cc, ok := condCodes[ops[0].Reg]
		if !ok || ops[0].Kind != OpCondition || ops[1].Kind != OpImmediate {
			return nil, 0, errIllegal("jp", ops)
		}
		return append([]byte{0xC2 | cc<<3}, le16(ops[1].Value)...), 3, nil
	}
	return nil, 0, errIllegal("jp", ops)
}

func relDisplacement(target int32, pc uint16, instrSize uint16) (int8, error) {
	delta := target - int32(pc) - int32(instrSize)
	if delta < -128 || delta > 127 {
		return 0, errBranchRange(int(delta))
	}
	return int8(delta), nil
}

func encodeJr(ops []Operand, pc uint16) ([]byte, int, error) {
	switch len(ops) {
	case 1:
		if ops[0].Kind != OpImmediate {
			return nil, 0, errIllegal("jr", ops)
		}
		d, err := relDisplacement(ops[0].Value, pc, 2)
		if err != nil {
			return nil, 0, err
		}
		return []byte{0x18, byte(d)}, 3, nil
	case 2:
		cc, ok := jrCond[ops[0].Reg]
		if !ok || ops[0].Kind != OpCondition || ops[1].Kind != OpImmediate {
			return nil, 0, errIllegal("jr", ops)
		}
		d, err := relDisplacement(ops[1].Value, pc, 2)
		if err != nil {
			return nil, 0, err
		}
		return []byte{0x20 | cc<<3, byte(d)}, 2, nil
	}
	return nil, 0, errIllegal("jr", ops)
}

func encodeDjnz(ops []Operand, pc uint16) ([]byte, int, error) {
	if len(ops) != 1 || ops[0].Kind != OpImmediate {
		return nil, 0, errIllegal("djnz", ops)
	}
	d, err := relDisplacement(ops[0].Value, pc, 2)
	if err != nil {
		return nil, 0, err
	}
	return []byte{0x10, byte(d)}, 3, nil
}

func encodeCall(ops []Operand) ([]byte, int, error) {
	switch len(ops) {
	case 1:
		if ops[0].Kind != OpImmediate {
			return nil, 0, errIllegal("call", ops)
		}
		return append([]byte{0xCD}, le16(ops[0].Value)...), 5, nil
	case 2:
		cc, ok := condCodes[ops[0].Reg]
		if !ok || ops[0].Kind != OpCondition || ops[1].Kind != OpImmediate {
			return nil, 0, errIllegal("call", ops)
		}
		return append([]byte{0xC4 | cc<<3}, le16(ops[1].Value)...), 5, nil
	}
	return nil, 0, errIllegal("call", ops)
}

func encodeRet(ops []Operand) ([]byte, int, error) {
	if len(ops) == 0 {
		return []byte{0xC9}, 3, nil
	}
	if len(ops) == 1 && ops[0].Kind == OpCondition {
		cc, ok := condCodes[ops[0].Reg]
		if !ok {
			return nil, 0, errIllegal("ret", ops)
		}
		return []byte{0xC0 | cc<<3}, 3, nil
	}
	return nil, 0, errIllegal("ret", ops)
}

var validRst = map[int32]bool{0: true, 8: true, 16: true, 24: true, 32: true, 40: true, 48: true, 56: true}

func encodeRst(ops []Operand) ([]byte, int, error) {
	if len(ops) != 1 || ops[0].Kind != OpImmediate {
		return nil, 0, errIllegal("rst", ops)
	}
	n := ops[0].Value
	if !validRst[n] {
		return nil, 0, errIllegal("rst", ops)
	}
	return []byte{0xC7 | byte(n)}, 3, nil
}

func encodeIm(ops []Operand) ([]byte, int, error) {
	if len(ops) != 1 || ops[0].Kind != OpImmediate {
		return nil, 0, errIllegal("im", ops)
	}
	switch ops[0].Value {
	case 0:
		return []byte{0xED, 0x46}, 2, nil
	case 1:
		return []byte{0xED, 0x56}, 2, nil
	case 2:
		return []byte{0xED, 0x5E}, 2, nil
	default:
		return nil, 0, errIllegal("im", ops)
	}
}
