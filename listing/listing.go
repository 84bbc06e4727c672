// Package listing renders the driver's final pass as a human-readable
// assembly listing and a symbol dump, generalizing the teacher's
// vm/coverage.go and vm/statistics.go passive-observer pattern: the
// writer only accumulates what the driver reports through Record, and
// does all its formatting afterward, in Render.
package listing

import (
	"fmt"
	"strings"

	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/symbols"
	"github.com/retrocpc/basm/value"
)

// DefaultBytesPerLine matches §4.7's default grouping width.
const DefaultBytesPerLine = 8

type entry struct {
	span  source.Span
	addr  value.PhysicalAddress
	bytes []byte
}

// Writer implements driver.Recorder, observing every byte the final pass
// commits to memory and rendering them into a listing on demand.
type Writer struct {
	store        *source.Store
	BytesPerLine int

	entries []entry
}

// NewWriter creates a listing Writer over store, reading source text back
// for the source column of each listed line.
func NewWriter(store *source.Store) *Writer {
	return &Writer{store: store, BytesPerLine: DefaultBytesPerLine}
}

// Record appends one emitted byte block; called once per byte by the
// driver's emit, so consecutive bytes from the same statement arrive as
// separate calls sharing the same span.
func (w *Writer) Record(span source.Span, addr value.PhysicalAddress, bytes []byte) {
	w.entries = append(w.entries, entry{span: span, addr: addr, bytes: bytes})
}

// line groups every byte recorded against the same source line, in the
// order the driver first reached that line.
type line struct {
	origin    string
	lineNo    int
	firstAddr uint16
	text      string
	bytes     []byte
}

// lineText returns the full text of the source line containing sp,
// trimmed of its trailing newline; used for the listing's source column.
// Only lines that recorded bytes are listed: source lines that emitted
// nothing (comments, labels alone, directives without output) are not
// back-filled into the listing.
func lineText(store *source.Store, sp source.Span) string {
	unit := store.Unit(sp.UnitID)
	text := unit.Text
	start := sp.Offset
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	end := sp.Offset
	for end < len(text) && text[end] != '\n' {
		end++
	}
	return strings.TrimRight(text[start:end], "\r")
}

func (w *Writer) groupByLine() []*line {
	var groups []*line
	var cur *line
	for _, e := range w.entries {
		origin := w.store.Unit(e.span.UnitID).Origin
		if cur == nil || cur.origin != origin || cur.lineNo != e.span.Line {
			cur = &line{origin: origin, lineNo: e.span.Line, firstAddr: e.addr.Address, text: lineText(w.store, e.span)}
			groups = append(groups, cur)
		}
		cur.bytes = append(cur.bytes, e.bytes...)
	}
	return groups
}

// Render produces the full listing text: one "Context: <file>" marker per
// file-origin change, then one row per BytesPerLine-sized chunk of each
// source line's emitted bytes, continuation rows leaving the line number,
// address, and source text blank.
func (w *Writer) Render() string {
	groups := w.groupByLine()
	var b strings.Builder
	lastOrigin := ""
	for _, g := range groups {
		if g.origin != lastOrigin {
			fmt.Fprintf(&b, "Context: %s\n", g.origin)
			lastOrigin = g.origin
		}
		perLine := w.BytesPerLine
		if perLine <= 0 {
			perLine = DefaultBytesPerLine
		}
		if len(g.bytes) == 0 {
			fmt.Fprintf(&b, "%4d      %-*s %s\n", g.lineNo, perLine*3, "", g.text)
			continue
		}
		addr := g.firstAddr
		for i := 0; i < len(g.bytes); i += perLine {
			end := i + perLine
			if end > len(g.bytes) {
				end = len(g.bytes)
			}
			chunk := g.bytes[i:end]
			hexCols := make([]string, 0, perLine)
			for _, bb := range chunk {
				hexCols = append(hexCols, fmt.Sprintf("%02X", bb))
			}
			hexStr := strings.Join(hexCols, " ")
			if i == 0 {
				fmt.Fprintf(&b, "%4d %04X %-*s %s\n", g.lineNo, addr, perLine*3, hexStr, g.text)
			} else {
				fmt.Fprintf(&b, "%4s %4s %-*s\n", "", "", perLine*3, hexStr)
			}
			addr += uint16(len(chunk))
		}
	}
	return b.String()
}

// SymbolFormat selects the symbol dump's rendering convention.
type SymbolFormat int

const (
	FormatBASM SymbolFormat = iota
	FormatWinape
)

// matchesPrefix reports whether name equals p or has p as a dotted
// ancestor ("foo.bar" matches prefix "foo", not prefix "fo").
func matchesPrefix(name, p string) bool {
	return name == p || strings.HasPrefix(name, p+".")
}

func anyPrefixMatches(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if matchesPrefix(name, p) {
			return true
		}
	}
	return false
}

// DumpSymbols renders tbl's entries in case-insensitive sorted order,
// restricted to allow (if non-empty) and excluding deny, in the given
// format. Non-address/non-integer values are skipped: a symbol dump only
// ever reports a machine word.
func DumpSymbols(tbl *symbols.Table, format SymbolFormat, allow, deny []string) string {
	var b strings.Builder
	for _, e := range tbl.Snapshot() {
		if len(allow) > 0 && !anyPrefixMatches(e.Name, allow) {
			continue
		}
		if anyPrefixMatches(e.Name, deny) {
			continue
		}
		word, err := symbolWord(e.Value)
		if err != nil {
			continue
		}
		switch format {
		case FormatWinape:
			fmt.Fprintf(&b, "%s #%04X\n", e.Name, word)
		default:
			fmt.Fprintf(&b, "%s equ #%04X\n", e.Name, word)
		}
	}
	return b.String()
}

func symbolWord(v value.Value) (uint16, error) {
	switch v.Kind {
	case value.KindAddress:
		return v.Address.Address, nil
	default:
		i, err := v.AsInt()
		if err != nil {
			return 0, err
		}
		return uint16(i), nil
	}
}
