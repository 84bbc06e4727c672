package z80

var aluBase = map[string]byte{
	"add": 0x80, "adc": 0x88, "sub": 0x90, "sbc": 0x98,
	"and": 0xA0, "xor": 0xA8, "or": 0xB0, "cp": 0xB8,
}

var aluImm = map[string]byte{
	"add": 0xC6, "adc": 0xCE, "sub": 0xD6, "sbc": 0xDE,
	"and": 0xE6, "xor": 0xEE, "or": 0xF6, "cp": 0xFE,
}

// encodeAlu handles the 8-bit ALU group (add/adc/sub/sbc/and/xor/or/cp) and
// the 16-bit add/adc/sbc hl,rr and add ix/iy,rr forms.
func encodeAlu(mne string, ops []Operand, pc uint16) ([]byte, int, error) {
	// sub/and/xor/or/cp accept a single operand implicitly against a;
	// add/adc/sbc require the explicit `a,` destination.
	var src Operand
	switch {
	case len(ops) == 1:
		src = ops[0]
	case len(ops) == 2 && ops[0].Kind == OpReg && ops[0].Reg == "a":
		src = ops[1]
	case len(ops) == 2 && ops[0].Kind == OpRegPair:
		return encode16Alu(mne, ops)
	default:
		return nil, 0, errIllegal(mne, ops)
	}

	base := aluBase[mne]
	switch src.Kind {
	case OpReg:
		if h, ok := ixyHalf[src.Reg]; ok {
			return []byte{h.Prefix, base | h.Slot}, 2, nil
		}
		if slot, ok := reg8Slot(src.Reg); ok {
			return []byte{base | slot}, 1, nil
		}
	case OpRegIndirect:
		if src.Reg == "hl" {
			return []byte{base | 6}, 2, nil
		}
	case OpIndexed:
		prefix, ok := isIdxReg(src.Reg)
		if !ok {
			return nil, 0, errIllegal(mne, ops)
		}
		return []byte{prefix, base | 6, byte(src.Value)}, 5, nil
	case OpImmediate:
		return []byte{aluImm[mne], byte(src.Value)}, 2, nil
	}
	return nil, 0, errIllegal(mne, ops)
}

func encode16Alu(mne string, ops []Operand) ([]byte, int, error) {
	dst, src := ops[0], ops[1]
	if src.Kind != OpRegPair {
		return nil, 0, errIllegal(mne, ops)
	}
	if dst.Reg == "hl" {
		pair, ok := reg16[src.Reg]
		if !ok {
			return nil, 0, errIllegal(mne, ops)
		}
		switch mne {
		case "add":
			return []byte{0x09 | pair<<4}, 3, nil
		case "adc":
			return []byte{0xED, 0x4A | pair<<4}, 4, nil
		case "sbc":
			return []byte{0xED, 0x42 | pair<<4}, 4, nil
		}
	}
	if prefix, ok := isIdxReg(dst.Reg); ok && mne == "add" {
		pair, ok := indexedPairSlot(dst.Reg, src.Reg)
		if !ok {
			return nil, 0, errIllegal(mne, ops)
		}
		return []byte{prefix, 0x09 | pair<<4}, 4, nil
	}
	return nil, 0, errIllegal(mne, ops)
}

// indexedPairSlot encodes the operand-pair field for `add ix,pp`/`add iy,rr`,
// where the index register itself may appear as its own pp=10 slot.
func indexedPairSlot(idx, src string) (byte, bool) {
	switch src {
	case "bc":
		return 0, true
	case "de":
		return 1, true
	case "ix", "iy":
		if src == idx {
			return 2, true
		}
		return 0, false
	case "sp":
		return 3, true
	default:
		return 0, false
	}
}

// encodeIncDec handles inc/dec over every addressing form: 8-bit registers
// (including the undocumented IX/IY halves), 16-bit register pairs, (hl),
// and (ix+d)/(iy+d).
func encodeIncDec(mne string, ops []Operand) ([]byte, int, error) {
	if len(ops) != 1 {
		return nil, 0, errIllegal(mne, ops)
	}
	op := ops[0]
	base8 := byte(0x04)
	if mne == "dec" {
		base8 = 0x05
	}
	base16 := byte(0x03)
	if mne == "dec" {
		base16 = 0x0B
	}

	switch op.Kind {
	case OpReg:
		if h, ok := ixyHalf[op.Reg]; ok {
			return []byte{h.Prefix, base8 | h.Slot<<3}, 2, nil
		}
		if slot, ok := reg8Slot(op.Reg); ok {
			return []byte{base8 | slot<<3}, 1, nil
		}
	case OpRegPair:
		if prefix, ok := isIdxReg(op.Reg); ok {
			return []byte{prefix, base16 | 2<<4}, 3, nil
		}
		if pair, ok := reg16[op.Reg]; ok {
			return []byte{base16 | pair<<4}, 2, nil
		}
	case OpRegIndirect:
		if op.Reg == "hl" {
			return []byte{base8 | 6<<3}, 3, nil
		}
	case OpIndexed:
		prefix, ok := isIdxReg(op.Reg)
		if !ok {
			return nil, 0, errIllegal(mne, ops)
		}
		return []byte{prefix, base8 | 6<<3, byte(op.Value)}, 6, nil
	}
	return nil, 0, errIllegal(mne, ops)
}
