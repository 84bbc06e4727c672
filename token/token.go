// Package token defines the assembler's token tree: one node per directive
// or instruction, each carrying its originating span. Composite directives
// (blocks) carry a nested body slice rather than forming a class hierarchy,
// per the arena/tagged-variant design the source arena replaces inheritance
// with.
package token

import (
	"github.com/retrocpc/basm/expr"
	"github.com/retrocpc/basm/source"
)

// Node is any token-tree element. Every concrete type embeds Base, which
// supplies Span() and an optional attached label.
type Node interface {
	Span() source.Span
}

// Base is embedded by every concrete node; it carries the node's span and
// an optional label that preceded it on the same source line.
type Base struct {
	Sp    source.Span
	Label string
}

func (b Base) Span() source.Span { return b.Sp }

// GetLabel returns the label that preceded this node on its source line,
// or "" if none did. Exposed as a method (rather than a Node interface
// requirement) so driver code can probe for it via a local interface
// assertion without every Node implementation needing to declare it.
func (b Base) GetLabel() string { return b.Label }

// --- Leaf tokens -----------------------------------------------------

type Org struct {
	Base
	Address expr.Node
	Run     expr.Node // nil if not given
}

type Align struct {
	Base
	N    expr.Node
	Fill expr.Node // nil => driver's current fill_byte
}

type Equ struct {
	Base
	Name  string
	Value expr.Node
}

type Assign struct {
	Base
	Name  string
	Value expr.Node
}

// LabelDef is a standalone label with no attached directive/opcode.
type LabelDef struct {
	Base
	Name string
}

type Comment struct {
	Base
	Text string
}

type Defb struct {
	Base
	Values []expr.Node
}

type Defw struct {
	Base
	Values []expr.Node
}

type Defs struct {
	Base
	Count expr.Node
	Fill  expr.Node
}

// OperandKind classifies an instruction operand's syntactic shape before
// expression evaluation.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandRegPair
	OperandRegIndirect
	OperandIndexed
	OperandImmediate
	OperandImmediateIndirect
	OperandCondition
)

// Operand is one raw operand of an OpCode, as produced by the parser;
// Reg is populated for register/condition/indirect-register operands,
// Expr carries the expression for immediates and index displacements.
type Operand struct {
	Kind OperandKind
	Reg  string
	Expr expr.Node
}

type OpCode struct {
	Base
	Mnemonic string
	Operands []Operand
	// RepeatCount is non-nil for the CPC-style repetition suffix some
	// mnemonics accept (e.g. `ldir 4` expands the block op four times);
	// resolved by the driver, not the encoder.
	RepeatCount expr.Node
}

type Incbin struct {
	Base
	Path      string
	Offset    expr.Node
	Length    expr.Node
	Ext       string
	Transform string // "" == none
}

// Include is resolved entirely at parse time: its Body is the already
// parsed token tree of the included file, spliced in place of the
// directive, so an unresolvable path or an include cycle surfaces as a
// parse error rather than surviving into the multi-pass assembly loop.
type Include struct {
	Base
	Path string
	Body []Node
}

type Print struct {
	Base
	Args []expr.Node
}

type Assert struct {
	Base
	Cond expr.Node
	Msg  string
}

type Limit struct {
	Base
	Addr expr.Node
}

type Protect struct {
	Base
	Lo, Hi expr.Node
}

type Run struct {
	Base
	Addr   expr.Node // nil => use current PC
	RAMCfg expr.Node // nil => no MMR restore requested
}

type Breakpoint struct {
	Base
	Addr expr.Node
	Type string
}

type SaveCommand struct {
	Base
	Path    string
	From    expr.Node
	Length  expr.Node
	Type    string // AmsdosBin, AmsdosBas, Ascii, NoHeader, Auto
	Support string // host path, disc+inner path, tape
	Flag    expr.Node
}

// SnapshotDirective covers the small family of CPC-snapshot-specific
// directives (breakpoint-chunk hints, symbol/alias declarations for REMU)
// that don't warrant their own node type.
type SnapshotDirective struct {
	Base
	Name string
	Args []expr.Node
}

type Bank struct {
	Base
	N expr.Node // nil => detach / default bank
}

type Bankset struct {
	Base
	N expr.Node
}

type Page struct {
	Base
	N expr.Node
}

type End struct{ Base }

// --- Composite tokens --------------------------------------------------

type IfBranch struct {
	Cond expr.Node
	Body []Node
}

type If struct {
	Base
	Branches []IfBranch
	Else     []Node // nil if no else
}

type Repeat struct {
	Base
	Count       expr.Node
	Body        []Node
	CounterName string // "" if none bound
	Start, Step expr.Node
}

type RepeatUntil struct {
	Base
	Cond expr.Node
	Body []Node
}

type While struct {
	Base
	Cond expr.Node
	Body []Node
}

type SwitchCase struct {
	Value       expr.Node
	Body        []Node
	Fallthrough bool
}

type Switch struct {
	Base
	Selector expr.Node
	Cases    []SwitchCase
	Default  []Node // nil if no default
}

type Rorg struct {
	Base
	Origin expr.Node
	Body   []Node
}

type CrunchedSection struct {
	Base
	Codec string
	Body  []Node
}

type For struct {
	Base
	Sym              string
	Start, End, Step expr.Node
	Body             []Node
}

type MacroDefinition struct {
	Base
	Name     string
	Params   []string
	Defaults map[string]string
	RawBody  string
	Dialect  string // determines how {arg}/\arg interpolation is read
}

type StructField struct {
	Name    string
	Default Node // a Defb/Defw/Defs-shaped default, for sizing
}

type StructDefinition struct {
	Base
	Name   string
	Fields []StructField
}

// MacroCall covers both `name(arg,...)` and `name arg,...` invocation
// syntaxes, and struct instantiation (`name field_values...`) which shares
// the same call-site shape.
type MacroCall struct {
	Base
	Name string
	Args []string // raw, comma-separated, bracket/brace-depth aware
}

type Module struct {
	Base
	Name string
	Body []Node
}
