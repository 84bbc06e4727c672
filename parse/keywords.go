package parse

// mnemonics is the complete Z80 + CPC-extension opcode set §6 enumerates.
var mnemonics = map[string]bool{
	"adc": true, "add": true, "and": true, "bit": true, "call": true, "ccf": true,
	"cp": true, "cpd": true, "cpdr": true, "cpi": true, "cpir": true, "cpl": true,
	"daa": true, "dec": true, "di": true, "djnz": true, "ei": true, "ex": true,
	"exa": true, "exd": true, "exx": true, "halt": true, "im": true, "in": true,
	"inc": true, "ind": true, "indr": true, "ini": true, "inir": true, "jp": true,
	"jr": true, "ld": true, "ldd": true, "lddr": true, "ldi": true, "ldir": true,
	"neg": true, "nop": true, "nops2": true, "or": true, "otdr": true, "otir": true,
	"out": true, "outd": true, "outdr": true, "outi": true, "outir": true,
	"pop": true, "push": true, "res": true, "ret": true, "reti": true, "retn": true,
	"rl": true, "rla": true, "rlc": true, "rlca": true, "rld": true, "rr": true,
	"rra": true, "rrc": true, "rrca": true, "rrd": true, "rst": true, "sbc": true,
	"scf": true, "set": true, "sla": true, "sll": true, "sl1": true, "sra": true,
	"srl": true, "sub": true, "xor": true,
}

// mnemonicsAllowingRepeat is the subset of zero-operand mnemonics that may
// be followed by a bare CPC-style repeat count (§6 asterisked entries; the
// block instructions besides the asterisked set behave identically so they
// are included too, matching what every CPC assembler in practice accepts).
var mnemonicsAllowingRepeat = map[string]bool{
	"halt": true, "rla": true, "rlca": true, "rrca": true,
	"ldi": true, "ldd": true, "ldir": true, "lddr": true,
	"cpi": true, "cpd": true, "cpir": true, "cpdr": true,
	"ini": true, "ind": true, "inir": true, "indr": true,
	"outi": true, "outd": true, "otir": true, "otdr": true,
	"outir": true, "outdr": true,
}

// directiveKeywords is every non-mnemonic keyword the grammar recognises,
// including block openers and closers, used to disambiguate a bare leading
// identifier (no colon) as a label versus the statement itself.
var directiveKeywords = map[string]bool{
	"org": true, "align": true, "equ": true,
	"defb": true, "db": true, "defw": true, "dw": true, "defs": true, "ds": true,
	"incbin": true, "include": true, "read": true,
	"if": true, "elif": true, "else": true, "endif": true, "ifdef": true, "ifndef": true,
	"repeat": true, "rept": true, "endrepeat": true, "endr": true, "until": true,
	"while": true, "endw": true,
	"switch": true, "case": true, "default": true, "endswitch": true, "break": true,
	"for": true, "endfor": true, "next": true,
	"macro": true, "mend": true, "endm": true,
	"struct": true, "endstruct": true,
	"module": true, "endmodule": true,
	"rorg": true, "endrorg": true,
	"bank": true, "bankset": true, "page": true,
	"limit": true, "protect": true, "run": true, "save": true, "breakpoint": true,
	"print": true, "assert": true, "end": true,
	"crunched_section": true, "lzclose": true,
	"brk": true, "label": true, "alias": true, "acebreak": true,
}

func isKeywordOrMnemonic(kw string) bool {
	return mnemonics[kw] || directiveKeywords[kw]
}

// conditionNames is the set of Z80 condition codes legal on jp/call/jr/ret.
var conditionNames = map[string]bool{
	"z": true, "nz": true, "c": true, "nc": true,
	"po": true, "pe": true, "p": true, "m": true,
}

// reg8Names are the plain 8-bit register names plus i/r.
var reg8Names = map[string]bool{
	"a": true, "b": true, "c": true, "d": true, "e": true, "h": true, "l": true,
	"i": true, "r": true,
}

// reg16Names are the 16-bit register-pair names, including the alternate af'.
var reg16Names = map[string]bool{
	"bc": true, "de": true, "hl": true, "sp": true, "af": true, "af'": true,
	"ix": true, "iy": true,
}

// ixyHalfNames are the undocumented IX/IY half-registers and their aliases.
var ixyHalfNames = map[string]bool{
	"ixh": true, "ixl": true, "iyh": true, "iyl": true,
	"hx": true, "lx": true, "xh": true, "xl": true,
	"hy": true, "ly": true, "yh": true, "yl": true,
}

// simpleIndirectRegs are register names legal as the sole content of a
// parenthesized indirect operand (besides ix/iy, which take the dedicated
// displacement-parsing path).
var simpleIndirectRegs = map[string]bool{
	"bc": true, "de": true, "hl": true, "sp": true, "c": true,
}

// transformNames are the incbin compression codec identifiers §6 lists.
var transformNames = map[string]bool{
	"none": true, "lz48": true, "lz49": true, "lzsa1": true, "lzsa2": true,
	"lz4": true, "zx0": true, "exo": true, "aplib": true, "shrinkler": true, "upkr": true,
}

func isRegisterName(name string) bool {
	return reg8Names[name] || reg16Names[name] || ixyHalfNames[name]
}

func isConditionName(name string) bool { return conditionNames[name] }
