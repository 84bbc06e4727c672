package output

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/retrocpc/basm/driver"
	"github.com/retrocpc/basm/symbols"
	"github.com/retrocpc/basm/value"
)

// SymbolRecord is one entry of a SYMB chunk, per §6's layout
// `{name_len u8, name bytes, mem_type u8, bank u8, page u8, reserved 3,
// symb_type u8, address BE u16}`. Grounded on original_source's
// cpclib-sna/src/chunks (one file per chunk kind); this package mirrors
// that one-function-per-chunk-kind layout.
type SymbolRecord struct {
	Name     string
	MemType  byte
	Bank     byte
	Page     byte
	SymbType byte
	Address  uint16
}

// SYMBChunk encodes recs as a concatenated sequence of variable-length
// records and frames the result as a "SYMB" chunk.
func SYMBChunk(recs []SymbolRecord) ([]byte, error) {
	var body []byte
	for _, r := range recs {
		if len(r.Name) > 255 {
			return nil, fmt.Errorf("symbol name %q exceeds 255 bytes", r.Name)
		}
		body = append(body, byte(len(r.Name)))
		body = append(body, []byte(r.Name)...)
		body = append(body, r.MemType, r.Bank, r.Page, 0, 0, 0, r.SymbType)
		var addr [2]byte
		binary.BigEndian.PutUint16(addr[:], r.Address)
		body = append(body, addr[:]...)
	}
	return riffChunk("SYMB", body), nil
}

// SymbolsFromTable converts every address-valued entry of tbl into a
// SymbolRecord with MemType/Bank/Page derived from its PhysicalAddress,
// the usual input to SYMBChunk for a full symbol dump.
func SymbolsFromTable(tbl *symbols.Table) []SymbolRecord {
	var out []SymbolRecord
	for _, e := range tbl.Snapshot() {
		if e.Value.Kind != value.KindAddress {
			continue
		}
		addr := e.Value.Address
		rec := SymbolRecord{Name: e.Name, Address: addr.Address, SymbType: byte(e.Kind)}
		switch addr.Space {
		case value.SpaceMemory:
			rec.MemType, rec.Page = 0, byte(addr.Page)
			rec.Bank = byte(addr.Bank)
		case value.SpaceBank:
			rec.MemType, rec.Bank = 1, byte(addr.Index)
		case value.SpaceCartridge:
			rec.MemType, rec.Bank = 2, byte(addr.Index)
		}
		out = append(out, rec)
	}
	return out
}

// BreakpointRecordSize is the fixed ACE breakpoint record length §6 names.
const BreakpointRecordSize = 216

// BRKCChunk encodes one 216-byte fixed record per breakpoint, address at
// offset 0 (little-endian u16) and type byte at offset 2, the remainder
// zero-padded; ACE's own reserved layout beyond those two fields is not
// otherwise specified by the spec and is left zero.
func BRKCChunk(bps []driver.Breakpoint) []byte {
	body := make([]byte, 0, len(bps)*BreakpointRecordSize)
	for _, bp := range bps {
		rec := make([]byte, BreakpointRecordSize)
		binary.LittleEndian.PutUint16(rec[0:2], bp.Addr)
		var t byte
		switch strings.ToLower(bp.Type) {
		case "exec", "":
			t = 0
		case "read":
			t = 1
		case "write":
			t = 2
		default:
			t = 3
		}
		rec[2] = t
		body = append(body, rec...)
	}
	return riffChunk("BRKC", body)
}

// WinapeBreakpoint is one entry of a WABP chunk.
type WinapeBreakpoint struct {
	Address uint16
	Bank    byte
}

// WinapeBreakpointRecordSize is WABP's fixed per-entry width: a 2-byte
// little-endian address plus a 1-byte bank/page selector.
const WinapeBreakpointRecordSize = 3

// WABPChunk encodes a 2-byte little-endian count followed by one fixed-
// width record per breakpoint, per §6's "counts + fixed-width records"
// description.
func WABPChunk(bps []WinapeBreakpoint) []byte {
	body := make([]byte, 2, 2+len(bps)*WinapeBreakpointRecordSize)
	binary.LittleEndian.PutUint16(body[0:2], uint16(len(bps)))
	for _, bp := range bps {
		var rec [WinapeBreakpointRecordSize]byte
		binary.LittleEndian.PutUint16(rec[0:2], bp.Address)
		rec[2] = bp.Bank
		body = append(body, rec[:]...)
	}
	return riffChunk("WABP", body)
}

// REMUStatement is one `brk`/`label`/`alias`/`acebreak` line of a REMU
// script chunk.
type REMUStatement struct {
	Kind string // brk, label, alias, acebreak
	Args []string
}

// REMUChunk renders stmts as the ASCII script §6 describes: one
// "kind arg1 arg2 …;" line per statement, terminated by a semicolon.
func REMUChunk(stmts []REMUStatement) []byte {
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s.Kind)
		for _, a := range s.Args {
			b.WriteByte(' ')
			b.WriteString(a)
		}
		b.WriteString(";\n")
	}
	return riffChunk("REMU", []byte(b.String()))
}
