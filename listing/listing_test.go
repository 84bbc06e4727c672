package listing

import (
	"strings"
	"testing"

	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/symbols"
	"github.com/retrocpc/basm/value"
)

func span(store *source.Store, unitID, offset, length, line int) source.Span {
	return source.MakeSpan(unitID, offset, length, line, 1)
}

func TestWriterRenderGroupsBytesPerLine(t *testing.T) {
	store := source.New()
	unit := store.Add("main.asm", "org 100\ndb 1,2,3,4,5,6,7,8,9,10\n")

	w := NewWriter(store)
	w.BytesPerLine = 4

	addr := value.PhysicalAddress{Address: 0x0064}
	line2Offset := strings.Index(unit.Text, "db")
	for i, b := range []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} {
		sp := span(store, unit.ID, line2Offset, 2, 2)
		w.Record(sp, value.PhysicalAddress{Address: addr.Address + uint16(i)}, []byte{b})
	}

	out := w.Render()
	if !strings.Contains(out, "Context: main.asm") {
		t.Errorf("expected a Context marker, got:\n%s", out)
	}
	if !strings.Contains(out, "01 02 03 04") {
		t.Errorf("expected the first 4-byte chunk, got:\n%s", out)
	}
	if !strings.Contains(out, "09 0A") {
		t.Errorf("expected the trailing 2-byte chunk, got:\n%s", out)
	}
}

func TestDumpSymbolsFormats(t *testing.T) {
	tbl := symbols.New(false)
	store := source.New()
	unit := store.Add("main.asm", "start:\n")
	sp := span(store, unit.ID, 0, 5, 1)

	if err := tbl.Define("start", value.Addr(value.PhysicalAddress{Address: 0x4000}), symbols.KindLabel, sp); err != nil {
		t.Fatalf("Define: %v", err)
	}
	if err := tbl.Define("data.count", value.Int(10), symbols.KindEqu, sp); err != nil {
		t.Fatalf("Define: %v", err)
	}

	basm := DumpSymbols(tbl, FormatBASM, nil, nil)
	if !strings.Contains(basm, "start equ #4000") {
		t.Errorf("expected BASM-format start entry, got:\n%s", basm)
	}

	winape := DumpSymbols(tbl, FormatWinape, nil, nil)
	if !strings.Contains(winape, "start #4000") {
		t.Errorf("expected Winape-format start entry, got:\n%s", winape)
	}

	filtered := DumpSymbols(tbl, FormatBASM, []string{"data"}, nil)
	if strings.Contains(filtered, "start") || !strings.Contains(filtered, "data.count") {
		t.Errorf("expected allow-list to keep only data.*, got:\n%s", filtered)
	}

	denied := DumpSymbols(tbl, FormatBASM, nil, []string{"data"})
	if strings.Contains(denied, "data.count") || !strings.Contains(denied, "start") {
		t.Errorf("expected deny-list to drop data.*, got:\n%s", denied)
	}
}

func TestMatchesPrefixIsDotBoundary(t *testing.T) {
	if matchesPrefix("foobar", "foo") {
		t.Error("foobar should not match prefix foo (no dot boundary)")
	}
	if !matchesPrefix("foo.bar", "foo") {
		t.Error("foo.bar should match prefix foo")
	}
	if !matchesPrefix("foo", "foo") {
		t.Error("foo should match prefix foo exactly")
	}
}
