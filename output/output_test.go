package output

import (
	"bytes"
	"testing"

	"github.com/retrocpc/basm/driver"
	"github.com/retrocpc/basm/memmodel"
)

func TestBuildAmsdosHeaderChecksum(t *testing.T) {
	h := AmsdosHeader{Filename: "test", Extension: "bin", Type: AmsdosBinary, DataLength: 4, LoadAddr: 0x4000, ExecAddr: 0x4000}
	hdr := BuildAmsdosHeader(h)

	if got, want := string(bytes.TrimRight(hdr[0x01:0x09], " ")), "TEST"; got != want {
		t.Errorf("filename = %q, want %q", got, want)
	}
	if got, want := string(bytes.TrimRight(hdr[0x09:0x0C], " ")), "BIN"; got != want {
		t.Errorf("extension = %q, want %q", got, want)
	}
	if hdr[0x12] != byte(AmsdosBinary) {
		t.Errorf("file type = %d, want %d", hdr[0x12], AmsdosBinary)
	}
	if hdr[0x17] != 0xFF {
		t.Errorf("first-block marker = %#x, want 0xFF", hdr[0x17])
	}

	var sum uint32
	for _, b := range hdr[0x00:0x43] {
		sum += uint32(b)
	}
	got := uint16(hdr[0x44]) | uint16(hdr[0x45])<<8
	if got != uint16(sum%0x10000) {
		t.Errorf("checksum = %#x, want %#x", got, uint16(sum%0x10000))
	}
}

func TestWrapAmsdosSetsLength(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	out, err := WrapAmsdos(data, AmsdosHeader{Filename: "x", Type: AmsdosBinary})
	if err != nil {
		t.Fatalf("WrapAmsdos: %v", err)
	}
	if len(out) != AmsdosHeaderSize+len(data) {
		t.Fatalf("len(out) = %d, want %d", len(out), AmsdosHeaderSize+len(data))
	}
	if !bytes.Equal(out[AmsdosHeaderSize:], data) {
		t.Errorf("payload mismatch")
	}
	gotLen := uint16(out[0x13]) | uint16(out[0x14])<<8
	if gotLen != uint16(len(data)) {
		t.Errorf("data length field = %d, want %d", gotLen, len(data))
	}
}

func TestRawBinaryConcatenatesWrittenPages(t *testing.T) {
	mem := memmodel.New()
	mem.Org(0, nil)
	for _, b := range []byte{1, 2, 3, 4} {
		if err := mem.Write(b, true); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	raw := RawBinary(mem)
	if len(raw) != memmodel.PageSize {
		t.Fatalf("len(raw) = %d, want %d", len(raw), memmodel.PageSize)
	}
	if !bytes.Equal(raw[:4], []byte{1, 2, 3, 4}) {
		t.Errorf("raw[:4] = %v, want [1 2 3 4]", raw[:4])
	}
}

func TestRawBinaryEmptyWhenNothingWritten(t *testing.T) {
	mem := memmodel.New()
	if raw := RawBinary(mem); raw != nil {
		t.Errorf("RawBinary on an empty model = %v, want nil", raw)
	}
}

func TestRLECompressEscapesMarkerByte(t *testing.T) {
	data := []byte{0xE5, 0xE5, 0xE5}
	out := rleCompress(data)
	want := []byte{0xE5, 3, 0xE5}
	if !bytes.Equal(out, want) {
		t.Errorf("rleCompress(%v) = %v, want %v", data, out, want)
	}
}

func TestRLECompressShortRunPassesThrough(t *testing.T) {
	data := []byte{7, 7, 7}
	out := rleCompress(data)
	if !bytes.Equal(out, data) {
		t.Errorf("rleCompress(%v) = %v, want unchanged", data, out)
	}
}

func TestRLECompressLongRunEncodes(t *testing.T) {
	data := bytes.Repeat([]byte{9}, 10)
	out := rleCompress(data)
	want := []byte{0xE5, 10, 9}
	if !bytes.Equal(out, want) {
		t.Errorf("rleCompress(10x9) = %v, want %v", out, want)
	}
}

func TestSnapshotBuildHeaderAndMemChunk(t *testing.T) {
	mem := memmodel.New()
	mem.Org(0x4000, nil)
	if err := mem.Write(0xC9, true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	snap := NewSnapshot(3)
	snap.SetFlag(FlagZ80PC, 0x4000)
	snap.SetFlag(FlagZ80SP, 0xC000)
	data, err := snap.Build(mem, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if string(data[0:8]) != "MV - SNA" {
		t.Errorf("signature = %q, want \"MV - SNA\"", data[0:8])
	}
	if data[0x0F] != 3 {
		t.Errorf("version = %d, want 3", data[0x0F])
	}
	pc := uint16(data[0x22]) | uint16(data[0x23])<<8
	if pc != 0x4000 {
		t.Errorf("PC field = %#x, want 0x4000", pc)
	}

	chunkStart := HeaderSize
	if string(data[chunkStart:chunkStart+4]) != "MEM0" {
		t.Errorf("first chunk code = %q, want MEM0", data[chunkStart:chunkStart+4])
	}
}

func TestBuildSaveNoHeader(t *testing.T) {
	s := driver.ResolvedSave{Path: "out.bin", Type: "NoHeader", Data: []byte{1, 2, 3}}
	data, hdr, err := BuildSave(s)
	if err != nil {
		t.Fatalf("BuildSave: %v", err)
	}
	if hdr != nil {
		t.Errorf("expected no header for NoHeader save")
	}
	if !bytes.Equal(data, s.Data) {
		t.Errorf("data = %v, want unchanged %v", data, s.Data)
	}
}

func TestBuildSaveAmsdosBin(t *testing.T) {
	s := driver.ResolvedSave{Path: "out.bin", Type: "AmsdosBin", From: 0x4000, Data: []byte{1, 2, 3, 4}}
	data, hdr, err := BuildSave(s)
	if err != nil {
		t.Fatalf("BuildSave: %v", err)
	}
	if hdr == nil {
		t.Fatalf("expected an AMSDOS header")
	}
	if hdr.Type != AmsdosBinary {
		t.Errorf("header type = %v, want AmsdosBinary", hdr.Type)
	}
	if len(data) != AmsdosHeaderSize+len(s.Data) {
		t.Errorf("len(data) = %d, want %d", len(data), AmsdosHeaderSize+len(s.Data))
	}
}

func TestSYMBChunkRoundTripsLength(t *testing.T) {
	recs := []SymbolRecord{{Name: "start", Address: 0x4000}, {Name: "loop", Address: 0x4010}}
	chunk, err := SYMBChunk(recs)
	if err != nil {
		t.Fatalf("SYMBChunk: %v", err)
	}
	if string(chunk[0:4]) != "SYMB" {
		t.Errorf("chunk code = %q, want SYMB", chunk[0:4])
	}
	length := uint32(chunk[4]) | uint32(chunk[5])<<8 | uint32(chunk[6])<<16 | uint32(chunk[7])<<24
	if int(length) != len(chunk)-8 {
		t.Errorf("length field = %d, want %d", length, len(chunk)-8)
	}
}

func TestWABPChunkEncodesCount(t *testing.T) {
	bps := []WinapeBreakpoint{{Address: 0x4000}, {Address: 0x4010, Bank: 1}}
	chunk := WABPChunk(bps)
	body := chunk[8:]
	count := uint16(body[0]) | uint16(body[1])<<8
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(body) != 2+2*WinapeBreakpointRecordSize {
		t.Errorf("len(body) = %d, want %d", len(body), 2+2*WinapeBreakpointRecordSize)
	}
}

func TestBRKCChunkFixedRecordSize(t *testing.T) {
	bps := []driver.Breakpoint{{Addr: 0x4000, Type: "exec"}, {Addr: 0x5000, Type: "write"}}
	chunk := BRKCChunk(bps)
	body := chunk[8:]
	if len(body) != 2*BreakpointRecordSize {
		t.Errorf("len(body) = %d, want %d", len(body), 2*BreakpointRecordSize)
	}
	if body[BreakpointRecordSize+2] != 2 {
		t.Errorf("second record type byte = %d, want 2 (write)", body[BreakpointRecordSize+2])
	}
}

func TestREMUChunkTerminatesStatements(t *testing.T) {
	stmts := []REMUStatement{{Kind: "label", Args: []string{"start", "0x4000"}}}
	chunk := REMUChunk(stmts)
	body := string(chunk[8:])
	if body != "label start 0x4000;\n" {
		t.Errorf("REMU body = %q", body)
	}
}
