package z80

import (
	"bytes"
	"testing"
)

func mustEncode(t *testing.T, mne string, ops []Operand, pc uint16) []byte {
	t.Helper()
	e := NewEncoder()
	bs, _, err := e.Encode(mne, ops, pc)
	if err != nil {
		t.Fatalf("Encode(%s, %v) error: %v", mne, ops, err)
	}
	return bs
}

func TestEncodeLdImmediate(t *testing.T) {
	got := mustEncode(t, "ld", []Operand{Reg("b"), Imm(0xF5)}, 0x4000)
	want := []byte{0x06, 0xF5}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %X want %X", got, want)
	}
}

func TestEncodeInACPort(t *testing.T) {
	got := mustEncode(t, "in", []Operand{Reg("a"), RegIndirect("c")}, 0x4002)
	want := []byte{0xED, 0x78}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %X want %X", got, want)
	}
}

func TestEncodeJrRelativeBackward(t *testing.T) {
	// jr nc,loop where loop=0x4002 and this instruction starts at 0x4005
	got := mustEncode(t, "jr", []Operand{Cond("nc"), Imm(0x4002)}, 0x4005)
	want := []byte{0x30, 0xFB}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %X want %X", got, want)
	}
}

func TestEncodeJrSelfLoop(t *testing.T) {
	got := mustEncode(t, "jr", []Operand{Imm(0x4007)}, 0x4007)
	want := []byte{0x18, 0xFE}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %X want %X", got, want)
	}
}

func TestEncodeBranchOutOfRange(t *testing.T) {
	e := NewEncoder()
	_, _, err := e.Encode("jr", []Operand{Imm(0x4000 + 200)}, 0x4000)
	if err == nil {
		t.Fatal("expected BranchOutOfRange error")
	}
	zerr, ok := err.(*Error)
	if !ok || zerr.Kind != ErrBranchOutOfRange {
		t.Fatalf("expected ErrBranchOutOfRange, got %v", err)
	}
}

func TestEncodeIXHalfRegisters(t *testing.T) {
	got := mustEncode(t, "ld", []Operand{Reg("ixh"), Imm(0x10)}, 0)
	want := []byte{0xDD, 0x26, 0x10}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %X want %X", got, want)
	}
}

func TestEncodeRstValidatesTarget(t *testing.T) {
	e := NewEncoder()
	if _, _, err := e.Encode("rst", []Operand{Imm(10)}, 0); err == nil {
		t.Fatal("expected illegal operand for rst 10")
	}
	got := mustEncode(t, "rst", []Operand{Imm(24)}, 0)
	if !bytes.Equal(got, []byte{0xC7 | 24}) {
		t.Fatalf("unexpected rst encoding: %X", got)
	}
}

func TestEncodeLdIndirectHLFromA(t *testing.T) {
	// ld (hl),a encodes to the single byte 0x77
	got := mustEncode(t, "ld", []Operand{RegIndirect("hl"), Reg("a")}, 0)
	if !bytes.Equal(got, []byte{0x77}) {
		t.Fatalf("ld (hl),a: got %X", got)
	}
}
