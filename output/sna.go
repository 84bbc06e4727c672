package output

import (
	"encoding/binary"
	"fmt"

	"github.com/retrocpc/basm/memmodel"
)

// SnapshotFlag names one settable field of the SNA header, per §6's
// "header fields per SnapshotFlag enumeration (Z80_PC, Z80_SP, Z80_AF…,
// GA_PAL(i), CRTC_REG(i), PPI_CTL, etc.)". Indexed flags (palette entries,
// CRTC registers) are constructed with GAPal/CRTCReg rather than spelled
// out as 30-odd individual constants.
type SnapshotFlag string

const (
	FlagZ80AF    SnapshotFlag = "Z80_AF"
	FlagZ80AFAlt SnapshotFlag = "Z80_AF_ALT"
	FlagZ80BC    SnapshotFlag = "Z80_BC"
	FlagZ80BCAlt SnapshotFlag = "Z80_BC_ALT"
	FlagZ80DE    SnapshotFlag = "Z80_DE"
	FlagZ80DEAlt SnapshotFlag = "Z80_DE_ALT"
	FlagZ80HL    SnapshotFlag = "Z80_HL"
	FlagZ80HLAlt SnapshotFlag = "Z80_HL_ALT"
	FlagZ80IX    SnapshotFlag = "Z80_IX"
	FlagZ80IY    SnapshotFlag = "Z80_IY"
	FlagZ80SP    SnapshotFlag = "Z80_SP"
	FlagZ80PC    SnapshotFlag = "Z80_PC"
	FlagZ80I     SnapshotFlag = "Z80_I"
	FlagZ80R     SnapshotFlag = "Z80_R"
	FlagZ80IFF0  SnapshotFlag = "Z80_IFF0"
	FlagZ80IFF1  SnapshotFlag = "Z80_IFF1"
	FlagZ80IM    SnapshotFlag = "Z80_IM"
	FlagGASelPen SnapshotFlag = "GA_SELECTED_PEN"
	FlagGAMulti  SnapshotFlag = "GA_MULTI_CONFIG"
	FlagCRTCSel  SnapshotFlag = "CRTC_SELECTED"
	FlagROMSel   SnapshotFlag = "ROM_SELECTED"
	FlagPPIA     SnapshotFlag = "PPI_A"
	FlagPPIB     SnapshotFlag = "PPI_B"
	FlagPPIC     SnapshotFlag = "PPI_C"
	FlagPPICTL   SnapshotFlag = "PPI_CTL"
	FlagPSGSel   SnapshotFlag = "PSG_SELECTED"
)

// GAPal names the gate-array ink register for pen i (0-16, 16 being the
// border), §6's "GA_PAL(i)".
func GAPal(i int) SnapshotFlag { return SnapshotFlag(fmt.Sprintf("GA_PAL(%d)", i)) }

// CRTCReg names CRTC register i (0-17), §6's "CRTC_REG(i)".
func CRTCReg(i int) SnapshotFlag { return SnapshotFlag(fmt.Sprintf("CRTC_REG(%d)", i)) }

// fieldLoc is one header flag's (offset, width-in-bytes) within the
// 256-byte SNA header.
type fieldLoc struct {
	offset int
	width  int // 1 or 2, little-endian for width 2
}

func headerLayout() map[SnapshotFlag]fieldLoc {
	m := map[SnapshotFlag]fieldLoc{
		FlagZ80AF: {0x10, 2}, FlagZ80BC: {0x12, 2}, FlagZ80DE: {0x14, 2}, FlagZ80HL: {0x16, 2},
		FlagZ80R: {0x18, 1}, FlagZ80I: {0x19, 1},
		FlagZ80IFF0: {0x1A, 1}, FlagZ80IFF1: {0x1B, 1},
		FlagZ80IX: {0x1C, 2}, FlagZ80IY: {0x1E, 2},
		FlagZ80SP: {0x20, 2}, FlagZ80PC: {0x22, 2}, FlagZ80IM: {0x24, 1},
		FlagZ80AFAlt: {0x25, 2}, FlagZ80BCAlt: {0x27, 2}, FlagZ80DEAlt: {0x29, 2}, FlagZ80HLAlt: {0x2B, 2},
		FlagGASelPen: {0x2D, 1}, FlagGAMulti: {0x3F, 1},
		FlagCRTCSel: {0x40, 1}, FlagROMSel: {0x53, 1},
		FlagPPIA: {0x54, 1}, FlagPPIB: {0x55, 1}, FlagPPIC: {0x56, 1}, FlagPPICTL: {0x57, 1},
		FlagPSGSel: {0x58, 1},
	}
	for i := 0; i <= 16; i++ {
		m[GAPal(i)] = fieldLoc{0x2E + i, 1}
	}
	for i := 0; i <= 17; i++ {
		m[CRTCReg(i)] = fieldLoc{0x41 + i, 1}
	}
	return m
}

// HeaderSize is the fixed SNA header length ahead of the MEM chunks.
const HeaderSize = 256

// Snapshot accumulates header field values and page data for one SNA
// image, mirroring the `Snapshot directives` token family's set_flag/
// set_memory collaborator contract (§1).
type Snapshot struct {
	Version int
	fields  map[SnapshotFlag]int32
}

// NewSnapshot creates a Snapshot targeting the given SNA version (1-3).
func NewSnapshot(version int) *Snapshot {
	return &Snapshot{Version: version, fields: make(map[SnapshotFlag]int32)}
}

// SetFlag records one header field's value, the `set_flag(name, value)`
// collaborator operation named in §1.
func (s *Snapshot) SetFlag(flag SnapshotFlag, value int32) { s.fields[flag] = value }

// Build renders the 256-byte header followed by one MEMn chunk per written
// page of mem, RLE-compressing each page (marker byte 0xE5) when
// compress is true.
func (s *Snapshot) Build(mem *memmodel.Model, compress bool) ([]byte, error) {
	var hdr [HeaderSize]byte
	copy(hdr[0:8], []byte("MV - SNA"))
	hdr[0x0F] = byte(s.Version)

	layout := headerLayout()
	for flag, v := range s.fields {
		loc, ok := layout[flag]
		if !ok {
			return nil, fmt.Errorf("unknown snapshot flag %q", flag)
		}
		switch loc.width {
		case 1:
			hdr[loc.offset] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(hdr[loc.offset:loc.offset+2], uint16(v))
		}
	}

	out := append([]byte{}, hdr[:]...)
	for i := 0; i < memmodel.NumPages; i++ {
		if !mem.PageWritten(i) {
			continue
		}
		page := mem.PageBytes(i)
		chunkName := fmt.Sprintf("MEM%d", i)
		var payload []byte
		if compress {
			payload = rleCompress(page)
		} else {
			payload = page
		}
		out = append(out, riffChunk(chunkName, payload)...)
	}
	return out, nil
}

// riffChunk frames name (padded/truncated to 4 ASCII bytes) + little-endian
// 32-bit length + data, the "RIFF-style CODE LEN4 DATA" framing §6 uses for
// every snapshot chunk (MEMn, SYMB, BRKC, WABP, REMU).
func riffChunk(name string, data []byte) []byte {
	var code [4]byte
	copy(code[:], name)
	for i := len(name); i < 4; i++ {
		code[i] = ' '
	}
	out := make([]byte, 0, 8+len(data))
	out = append(out, code[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	out = append(out, lenBuf[:]...)
	out = append(out, data...)
	return out
}

// rleCompress applies the SNA memory-chunk RLE scheme: a literal run of the
// marker byte 0xE5 itself is always escaped as 0xE5 count 0xE5 (even a run
// of one); any other run of length >= 4 is worth the 3-byte encoding and
// becomes 0xE5 count value (count capped at 255, longer runs split across
// multiple triples); shorter runs and non-repeating bytes pass through
// as-is.
func rleCompress(data []byte) []byte {
	const marker = 0xE5
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]
		runLen := 1
		for i+runLen < len(data) && data[i+runLen] == b && runLen < 255 {
			runLen++
		}
		switch {
		case b == marker:
			// every occurrence of the marker byte must be escaped, even a
			// run of one, since an unescaped 0xE5 always starts a run.
			for remaining := runLen; remaining > 0; {
				n := remaining
				if n > 255 {
					n = 255
				}
				out = append(out, marker, byte(n), marker)
				remaining -= n
			}
		case runLen >= 4:
			out = append(out, marker, byte(runLen), b)
		default:
			for k := 0; k < runLen; k++ {
				out = append(out, b)
			}
		}
		i += runLen
	}
	return out
}
