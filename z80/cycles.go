package z80

// durationTable gives the CPC NOP-count (1 NOP = 4 T-states) for each
// mnemonic, keyed without regard to operand class; this is a flattened
// approximation of the full (mnemonic, operand-classes) table §4.5
// describes, adequate for the `duration(...)` built-in since this
// assembler does not attempt cycle-accurate simulation (an explicit
// Non-goal). Encode's own per-call return value remains the source of
// truth for any instruction actually assembled; this table only serves
// callers that ask about a mnemonic in the abstract.
var durationTable = map[string]int{
	"nop": 1, "halt": 1, "di": 1, "ei": 1, "scf": 1, "ccf": 1, "cpl": 1, "daa": 1,
	"neg": 2, "rlca": 1, "rrca": 1, "rla": 1, "rra": 1, "exx": 1, "ex": 1,
	"ld": 2, "add": 1, "adc": 1, "sub": 1, "sbc": 1, "and": 1, "or": 1, "xor": 1, "cp": 1,
	"inc": 1, "dec": 1, "rlc": 2, "rrc": 2, "rl": 2, "rr": 2, "sla": 2, "sra": 2, "sll": 2, "srl": 2,
	"bit": 2, "set": 2, "res": 2, "jp": 3, "jr": 3, "call": 5, "ret": 3, "djnz": 3,
	"rst": 3, "im": 2, "push": 3, "pop": 3, "in": 3, "out": 3,
	"ldi": 4, "ldd": 4, "ldir": 5, "lddr": 5,
	"cpi": 4, "cpd": 4, "cpir": 5, "cpdr": 5,
	"ini": 4, "ind": 4, "inir": 5, "indr": 5,
	"outi": 4, "outd": 4, "otir": 5, "otdr": 5, "outir": 5, "outdr": 5,
	"rld": 5, "rrd": 5, "nops2": 2, "reti": 4, "retn": 4, "exa": 1, "exd": 1,
}

// Duration returns mnemonic's approximate NOP count, or (0, false) for an
// unrecognised mnemonic so the caller can raise the warning §4.5 specifies.
func Duration(mnemonic string) (int, bool) {
	n, ok := durationTable[mnemonic]
	return n, ok
}
