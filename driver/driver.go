// Package driver implements the assembler driver: the fixed-point
// multi-pass loop that walks the token tree against a symbol table, a
// memory model, and the instruction encoder until label addresses stop
// moving between passes, then replays one final pass to capture the
// bytes actually emitted. It generalizes the teacher's vm/executor.go
// instruction-dispatch loop from a single-pass CPU emulator step to an
// assembler's repeat-until-stable evaluation.
package driver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/retrocpc/basm/expr"
	"github.com/retrocpc/basm/memmodel"
	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/symbols"
	"github.com/retrocpc/basm/token"
	"github.com/retrocpc/basm/value"
	"github.com/retrocpc/basm/z80"
)

// Compressor is the narrow external-collaborator interface for the
// crunched-section and incbin codecs: raw bytes in, compressed stream out.
// The assembler core never links a compression library itself; callers
// register real codecs by name in Options.Compressors.
type Compressor func(raw []byte) ([]byte, error)

// Options configures one assembly run.
type Options struct {
	CaseSensitive bool
	MaxPasses     int // 0 => 64, per §4.6
	FillByte      byte
	Protect       bool // when true, a same-pass overwrite is a hard error

	// Resolver locates incbin/include paths; nil means a FileResolver
	// rooted at the current directory.
	Resolver source.Resolver

	// Compressors maps a lower-cased codec name (lz48, zx0, ...) to its
	// implementation. "none" is always available as a pass-through.
	Compressors map[string]Compressor
}

// Recorder observes every byte the driver commits to memory during its
// final, recording pass; the listing package implements this.
type Recorder interface {
	Record(span source.Span, addr value.PhysicalAddress, bytes []byte)
}

// Warning is a non-fatal diagnostic collected during the final pass.
type Warning struct {
	Span    source.Span
	Message string
}

// ResolvedSave is one `save` directive fully resolved against the final
// pass's memory image, ready for the output package to write out.
type ResolvedSave struct {
	Path    string
	From    uint16
	Length  uint16
	Type    string
	Support string
	Flag    int32
	MMR     byte // the MMR active when `save` was encountered, not at `run`
	Data    []byte
}

// Breakpoint is a resolved `breakpoint`/`brk` directive.
type Breakpoint struct {
	Addr uint16
	Type string
}

// Result is everything an output/listing stage needs after a converged
// assembly.
type Result struct {
	Symbols     *symbols.Table
	Memory      *memmodel.Model
	Passes      int
	Warnings    []Warning
	Messages    []string // `print` directive output, in emission order
	Saves       []ResolvedSave
	Breakpoints []Breakpoint
	RunAddr     *uint16
	RunMMR      *byte
}

// NonConvergentError is returned when no two consecutive passes produced
// an identical symbol table within MaxPasses, per §4.6's convergence
// requirement.
type NonConvergentError struct {
	Passes int
	Names  []string
}

func (e *NonConvergentError) Error() string {
	return fmt.Sprintf("assembly did not converge after %d passes; still oscillating: %s",
		e.Passes, strings.Join(e.Names, ", "))
}

const defaultMaxPasses = 64
const maxLoopIterations = 1 << 20
const maxExpansionDepth = 64

// Driver runs one assembly from a parsed token tree.
type Driver struct {
	store *source.Store
	opts  Options
	enc   *z80.Encoder

	symbols *symbols.Table
	mem     *memmodel.Model

	pass         int
	recording    bool
	recorder     Recorder
	sectionStart uint16

	macros  map[string]*token.MacroDefinition
	structs map[string]*token.StructDefinition

	warnings    []Warning
	messages    []string
	saves       []ResolvedSave
	breakpoints []Breakpoint
	runAddr     *uint16
	runMMR      *byte

	unresolved map[string]bool

	breakSignal bool
	expandDepth int
	syntheticID int
}

// New creates a Driver over store using the given options.
func New(store *source.Store, opts Options) *Driver {
	if opts.MaxPasses == 0 {
		opts.MaxPasses = defaultMaxPasses
	}
	if opts.Resolver == nil {
		opts.Resolver = source.NewFileResolver()
	}
	return &Driver{
		store: store,
		opts:  opts,
		enc:   z80.NewEncoder(),
	}
}

// SetRecorder attaches a listing/byte observer for the final pass.
func (d *Driver) SetRecorder(r Recorder) { d.recorder = r }

// Assemble runs the fixed-point pass loop over program, then a final
// recording pass, and returns the converged Result.
func (d *Driver) Assemble(program []token.Node) (*Result, error) {
	var prevSnap, olderSnap map[string]string
	stable := false
	last := 0

	for pass := 1; pass <= d.opts.MaxPasses; pass++ {
		d.beginPass(pass, false)
		if err := d.execBody(program); err != nil {
			return nil, fmt.Errorf("pass %d: %w", pass, err)
		}
		snap := snapshot(d.symbols)
		last = pass
		if pass > 1 && snapshotsEqual(prevSnap, snap) {
			stable = true
			break
		}
		olderSnap = prevSnap
		prevSnap = snap
	}

	if !stable {
		return nil, &NonConvergentError{Passes: last, Names: diffNames(olderSnap, prevSnap)}
	}

	d.beginPass(last+1, true)
	if err := d.execBody(program); err != nil {
		return nil, fmt.Errorf("final pass: %w", err)
	}

	// A symbol still unresolved once passes have converged can never be
	// satisfied; surface it as a hard error rather than a warning.
	if len(d.unresolved) > 0 {
		names := make([]string, 0, len(d.unresolved))
		for name := range d.unresolved {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("undefined symbol(s): %s", strings.Join(names, ", "))
	}

	return &Result{
		Symbols:     d.symbols,
		Memory:      d.mem,
		Passes:      last + 1,
		Warnings:    d.warnings,
		Messages:    d.messages,
		Saves:       d.saves,
		Breakpoints: d.breakpoints,
		RunAddr:     d.runAddr,
		RunMMR:      d.runMMR,
	}, nil
}

func (d *Driver) beginPass(pass int, recording bool) {
	if d.symbols == nil {
		d.symbols = symbols.New(d.opts.CaseSensitive)
		d.macros = make(map[string]*token.MacroDefinition)
		d.structs = make(map[string]*token.StructDefinition)
	}
	d.symbols.BeginPass(pass)
	d.mem = memmodel.New()
	d.mem.FillByte = d.opts.FillByte
	d.pass = pass
	d.recording = recording
	d.sectionStart = 0
	d.breakSignal = false
	d.warnings = nil
	d.messages = nil
	d.saves = nil
	d.breakpoints = nil
	d.runAddr = nil
	d.runMMR = nil
	d.unresolved = make(map[string]bool)
}

func snapshot(tbl *symbols.Table) map[string]string {
	out := make(map[string]string)
	for _, e := range tbl.Snapshot() {
		out[e.Name] = e.Value.String()
	}
	return out
}

func snapshotsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func diffNames(a, b map[string]string) []string {
	var out []string
	for k, v := range b {
		if a[k] != v {
			out = append(out, k)
		}
	}
	return out
}

// --- expr.Env implementation --------------------------------------------

func (d *Driver) Lookup(name string) (value.Value, error) {
	if e, ok := d.symbols.Lookup(name); ok {
		return e.Value, nil
	}
	d.unresolved[name] = true
	return value.Pending(2), nil
}

func (d *Driver) PC() value.Value                      { return value.Int(int32(d.mem.PC)) }
func (d *Driver) SectionStart() value.Value            { return value.Int(int32(d.sectionStart)) }
func (d *Driver) Peek(addr int32) (value.Value, error) { return d.mem.Peek(addr) }

func (d *Driver) eval(n expr.Node) (value.Value, error) {
	if n == nil {
		return value.Value{}, fmt.Errorf("missing expression")
	}
	if call, ok := n.(expr.Call); ok && (call.Name == "__ifdef__" || call.Name == "__ifndef__") {
		return d.evalIfdef(call)
	}
	return expr.Eval(n, d)
}

func (d *Driver) evalIfdef(call expr.Call) (value.Value, error) {
	if len(call.Args) != 1 {
		return value.Value{}, fmt.Errorf("%s requires a single symbol name", call.Name)
	}
	lit, ok := call.Args[0].(expr.StringLit)
	if !ok {
		return value.Value{}, fmt.Errorf("%s requires a literal symbol name", call.Name)
	}
	_, defined := d.symbols.Lookup(lit.Value)
	if call.Name == "__ifndef__" {
		defined = !defined
	}
	return value.Bool(defined), nil
}

func (d *Driver) evalInt(n expr.Node) (int32, error) {
	v, err := d.eval(n)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}
