package z80

func le16(v int32) []byte { return []byte{byte(v), byte(v >> 8)} }

func isIdxReg(name string) (prefix byte, ok bool) {
	switch name {
	case "ix":
		return 0xDD, true
	case "iy":
		return 0xFD, true
	default:
		return 0, false
	}
}

func reg8Slot(name string) (byte, bool) {
	slot, ok := reg8[name]
	return slot, ok
}

// encodeLd handles the full `ld dst, src` operand matrix: 8-bit/16-bit
// register and immediate moves, (hl)/(ix+d)/(iy+d) indirection, the
// undocumented IX/IY half-register forms, and the ED-prefixed
// interrupt/refresh-register and extended 16-bit indirect forms.
func encodeLd(ops []Operand, pc uint16) ([]byte, int, error) {
	if len(ops) != 2 {
		return nil, 0, errIllegal("ld", ops)
	}
	dst, src := ops[0], ops[1]

	// ld a,(bc) / ld a,(de) / ld (bc),a / ld (de),a
	if dst.Kind == OpReg && dst.Reg == "a" && src.Kind == OpRegIndirect && (src.Reg == "bc" || src.Reg == "de") {
		if src.Reg == "bc" {
			return []byte{0x0A}, 2, nil
		}
		return []byte{0x1A}, 2, nil
	}
	if src.Kind == OpReg && src.Reg == "a" && dst.Kind == OpRegIndirect && (dst.Reg == "bc" || dst.Reg == "de") {
		if dst.Reg == "bc" {
			return []byte{0x02}, 2, nil
		}
		return []byte{0x12}, 2, nil
	}

	// ld a,(nn) / ld (nn),a
	if dst.Kind == OpReg && dst.Reg == "a" && src.Kind == OpImmediateIndirect {
		return append([]byte{0x3A}, le16(src.Value)...), 4, nil
	}
	if src.Kind == OpReg && src.Reg == "a" && dst.Kind == OpImmediateIndirect {
		return append([]byte{0x32}, le16(dst.Value)...), 4, nil
	}

	// ld i,a / ld r,a / ld a,i / ld a,r
	if dst.Kind == OpReg && src.Kind == OpReg {
		switch {
		case dst.Reg == "i" && src.Reg == "a":
			return []byte{0xED, 0x47}, 3, nil
		case dst.Reg == "r" && src.Reg == "a":
			return []byte{0xED, 0x4F}, 3, nil
		case dst.Reg == "a" && src.Reg == "i":
			return []byte{0xED, 0x57}, 3, nil
		case dst.Reg == "a" && src.Reg == "r":
			return []byte{0xED, 0x5F}, 3, nil
		}
	}

	// ld sp,hl / ld sp,ix / ld sp,iy
	if dst.Kind == OpRegPair && dst.Reg == "sp" && src.Kind == OpRegPair {
		if src.Reg == "hl" {
			return []byte{0xF9}, 2, nil
		}
		if prefix, ok := isIdxReg(src.Reg); ok {
			return []byte{prefix, 0xF9}, 3, nil
		}
	}

	// ld rr,nn / ld ix,nn / ld iy,nn
	if dst.Kind == OpRegPair && src.Kind == OpImmediate {
		if prefix, ok := isIdxReg(dst.Reg); ok {
			return append([]byte{prefix, 0x21}, le16(src.Value)...), 4, nil
		}
		if pair, ok := reg16[dst.Reg]; ok {
			return append([]byte{0x01 | pair<<4}, le16(src.Value)...), 3, nil
		}
	}

	// ld hl,(nn) / ld (nn),hl / ld ix,(nn) / ld (nn),ix / ld rr,(nn) / ld (nn),rr
	if dst.Kind == OpRegPair && src.Kind == OpImmediateIndirect {
		if dst.Reg == "hl" {
			return append([]byte{0x2A}, le16(src.Value)...), 5, nil
		}
		if prefix, ok := isIdxReg(dst.Reg); ok {
			return append([]byte{prefix, 0x2A}, le16(src.Value)...), 6, nil
		}
		if pair, ok := reg16[dst.Reg]; ok {
			return append([]byte{0xED, 0x4B | pair<<4}, le16(src.Value)...), 6, nil
		}
	}
	if src.Kind == OpRegPair && dst.Kind == OpImmediateIndirect {
		if src.Reg == "hl" {
			return append([]byte{0x22}, le16(dst.Value)...), 5, nil
		}
		if prefix, ok := isIdxReg(src.Reg); ok {
			return append([]byte{prefix, 0x22}, le16(dst.Value)...), 6, nil
		}
		if pair, ok := reg16[src.Reg]; ok {
			return append([]byte{0xED, 0x43 | pair<<4}, le16(dst.Value)...), 6, nil
		}
	}

	// ld (ix+d),n / ld (iy+d),n
	if dst.Kind == OpIndexed && src.Kind == OpImmediate {
		prefix, _ := isIdxReg(dst.Reg)
		return []byte{prefix, 0x36, byte(dst.Value), byte(src.Value)}, 5, nil
	}

	// ld r,(ix+d) / ld r,(iy+d)
	if dst.Kind == OpReg && src.Kind == OpIndexed {
		prefix, _ := isIdxReg(src.Reg)
		slot, ok := reg8Slot(dst.Reg)
		if !ok {
			return nil, 0, errIllegal("ld", ops)
		}
		return []byte{prefix, 0x46 | slot<<3, byte(src.Value)}, 5, nil
	}
	// ld (ix+d),r / ld (iy+d),r
	if dst.Kind == OpIndexed && src.Kind == OpReg {
		prefix, _ := isIdxReg(dst.Reg)
		slot, ok := reg8Slot(src.Reg)
		if !ok {
			return nil, 0, errIllegal("ld", ops)
		}
		return []byte{prefix, 0x70 | slot, byte(dst.Value)}, 5, nil
	}

	// ld (hl),n
	if dst.Kind == OpRegIndirect && dst.Reg == "hl" && src.Kind == OpImmediate {
		return []byte{0x36, byte(src.Value)}, 3, nil
	}
	// ld (hl),r
	if dst.Kind == OpRegIndirect && dst.Reg == "hl" && src.Kind == OpReg {
		slot, ok := reg8Slot(src.Reg)
		if !ok {
			return nil, 0, errIllegal("ld", ops)
		}
		return []byte{0x70 | slot}, 2, nil
	}
	// ld r,(hl)
	if dst.Kind == OpReg && src.Kind == OpRegIndirect && src.Reg == "hl" {
		slot, ok := reg8Slot(dst.Reg)
		if !ok {
			return nil, 0, errIllegal("ld", ops)
		}
		return []byte{0x46 | slot<<3}, 2, nil
	}

	// ld r,n — including ixh/ixl/iyh/iyl
	if dst.Kind == OpReg && src.Kind == OpImmediate {
		if h, ok := ixyHalf[dst.Reg]; ok {
			return []byte{h.Prefix, 0x06 | h.Slot<<3, byte(src.Value)}, 3, nil
		}
		if slot, ok := reg8Slot(dst.Reg); ok {
			return []byte{0x06 | slot<<3, byte(src.Value)}, 2, nil
		}
	}

	// ld r,r' — including ixh/ixl/iyh/iyl on either side (same index register
	// family only; mixing ixh with iyl etc. is not a legal encoding).
	if dst.Kind == OpReg && src.Kind == OpReg {
		dh, dIsHalf := ixyHalf[dst.Reg]
		sh, sIsHalf := ixyHalf[src.Reg]
		switch {
		case dIsHalf && sIsHalf:
			if dh.Prefix != sh.Prefix {
				return nil, 0, errIllegal("ld", ops)
			}
			return []byte{dh.Prefix, 0x40 | dh.Slot<<3 | sh.Slot}, 2, nil
		case dIsHalf && !sIsHalf:
			slot, ok := reg8Slot(src.Reg)
			if !ok || src.Reg == "(hl)" {
				return nil, 0, errIllegal("ld", ops)
			}
			return []byte{dh.Prefix, 0x40 | dh.Slot<<3 | slot}, 2, nil
		case !dIsHalf && sIsHalf:
			slot, ok := reg8Slot(dst.Reg)
			if !ok || dst.Reg == "(hl)" {
				return nil, 0, errIllegal("ld", ops)
			}
			return []byte{sh.Prefix, 0x40 | slot<<3 | sh.Slot}, 2, nil
		}
		dslot, ok1 := reg8Slot(dst.Reg)
		sslot, ok2 := reg8Slot(src.Reg)
		if !ok1 || !ok2 {
			return nil, 0, errIllegal("ld", ops)
		}
		return []byte{0x40 | dslot<<3 | sslot}, 1, nil
	}

	return nil, 0, errIllegal("ld", ops)
}

func encodeEx(ops []Operand) ([]byte, int, error) {
	if len(ops) != 2 {
		return nil, 0, errIllegal("ex", ops)
	}
	a, b := ops[0], ops[1]
	switch {
	case a.Kind == OpRegPair && a.Reg == "de" && b.Kind == OpRegPair && b.Reg == "hl":
		return []byte{0xEB}, 1, nil
	case a.Kind == OpRegPair && a.Reg == "af" && b.Kind == OpRegPair && b.Reg == "af'":
		return []byte{0x08}, 1, nil
	case a.Kind == OpRegIndirect && a.Reg == "sp" && b.Kind == OpRegPair && b.Reg == "hl":
		return []byte{0xE3}, 5, nil
	case a.Kind == OpRegIndirect && a.Reg == "sp" && b.Kind == OpRegPair:
		if prefix, ok := isIdxReg(b.Reg); ok {
			return []byte{prefix, 0xE3}, 6, nil
		}
	}
	return nil, 0, errIllegal("ex", ops)
}
