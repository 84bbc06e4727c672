// Package symbols implements the hierarchical, scope-aware symbol table
// described in the assembler design: a stack of scopes, each a map from
// canonicalised name to (Value, span, kind, pass_defined), with dotted
// module prefixes and local-label inheritance.
package symbols

import (
	"fmt"
	"sort"
	"strings"

	"github.com/retrocpc/basm/source"
	"github.com/retrocpc/basm/value"
)

// Kind categorises how a symbol was bound.
type Kind int

const (
	KindLabel Kind = iota
	KindEqu
	KindAssign
	KindMacro
	KindStruct
	KindCounter
)

func (k Kind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindEqu:
		return "equ"
	case KindAssign:
		return "assign"
	case KindMacro:
		return "macro"
	case KindStruct:
		return "struct"
	case KindCounter:
		return "counter"
	default:
		return "symbol"
	}
}

// Entry is one binding in a scope.
type Entry struct {
	Name        string
	Value       value.Value
	Span        source.Span
	Kind        Kind
	PassDefined int
}

// ErrRedefinition is returned by Define when the rebinding rules in §4.3
// forbid the new definition.
type ErrRedefinition struct {
	Name     string
	Previous source.Span
}

func (e *ErrRedefinition) Error() string {
	return fmt.Sprintf("symbol %q already defined (previously at %s)", e.Name, e.Previous)
}

// scope is one level of the scope stack: a module body or the file root.
type scope struct {
	prefix  string // dotted module prefix, "" at the root
	entries map[string]*Entry
	// lastNonLocalLabel is the most recently defined non-local label in
	// this scope, used to qualify a following `.local` label.
	lastNonLocalLabel string
}

func newScope(prefix string) *scope {
	return &scope{prefix: prefix, entries: make(map[string]*Entry)}
}

// Table is the driver-wide symbol table: a stack of scopes plus the
// case-sensitivity mode selected at driver init.
type Table struct {
	scopes        []*scope
	caseSensitive bool
	pass          int
}

// New creates a Table with just the root scope.
func New(caseSensitive bool) *Table {
	t := &Table{caseSensitive: caseSensitive}
	t.scopes = []*scope{newScope("")}
	return t
}

// BeginPass tells the table which pass is starting; Define uses this to
// stamp PassDefined and the driver uses it to detect value changes between
// passes.
func (t *Table) BeginPass(pass int) { t.pass = pass }

// fold canonicalises a name per the case-sensitivity mode.
func (t *Table) fold(name string) string {
	if t.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// PushModule enters a `module name` scope, prefixing subsequent
// definitions with "name.".
func (t *Table) PushModule(name string) {
	top := t.scopes[len(t.scopes)-1]
	prefix := name
	if top.prefix != "" {
		prefix = top.prefix + "." + name
	}
	t.scopes = append(t.scopes, newScope(prefix))
}

// PopModule exits the innermost module scope. The popped scope's entries
// are folded into the parent: they are keyed by their fully dotted names,
// so `foo.bar` stays resolvable after `endmodule` and survives into the
// symbol dump and the driver's convergence snapshots.
func (t *Table) PopModule() error {
	if len(t.scopes) <= 1 {
		return fmt.Errorf("endmodule without matching module")
	}
	popped := t.scopes[len(t.scopes)-1]
	t.scopes = t.scopes[:len(t.scopes)-1]
	parent := t.scopes[len(t.scopes)-1]
	for key, e := range popped.entries {
		// keys are fully qualified, so a collision can only be this same
		// symbol from an earlier pass; the fresh binding wins
		parent.entries[key] = e
	}
	return nil
}

// qualify returns the fully dotted name for a bare identifier defined in
// the current (innermost) scope.
func (t *Table) qualify(name string) string {
	top := t.scopes[len(t.scopes)-1]
	if top.prefix == "" {
		return name
	}
	return top.prefix + "." + name
}

// ResolveLocal expands a leading-dot local label (".foo") to
// "parent.foo" where parent is the last non-local label defined in the
// current module scope.
func (t *Table) ResolveLocal(name string) (string, error) {
	if !strings.HasPrefix(name, ".") {
		return name, nil
	}
	top := t.scopes[len(t.scopes)-1]
	if top.lastNonLocalLabel == "" {
		return "", fmt.Errorf("local label %q has no preceding non-local label", name)
	}
	return top.lastNonLocalLabel + name, nil
}

// Define binds name to v with the given kind at span, enforcing §4.3's
// rebinding rules: equ forbids a prior Equ/Label; assign always succeeds;
// a label may only be (re-)defined once per pass at the same kind.
func (t *Table) Define(name string, v value.Value, kind Kind, sp source.Span) error {
	qualified := name
	local := strings.HasPrefix(name, ".")
	if !strings.HasPrefix(name, "::") {
		if resolved, err := t.ResolveLocalOrSelf(name); err == nil {
			name = resolved
		}
		qualified = t.qualify(name)
	} else {
		qualified = strings.TrimPrefix(name, "::")
	}
	key := t.fold(qualified)

	top := t.scopes[len(t.scopes)-1]
	if existing, ok := top.entries[key]; ok {
		switch kind {
		case KindAssign:
			// always rebindable
		case KindEqu:
			// The same equ statement re-executes on every pass; only a
			// second definition within one pass is a redefinition.
			if (existing.Kind == KindEqu || existing.Kind == KindLabel) && existing.PassDefined == t.pass {
				return &ErrRedefinition{Name: qualified, Previous: existing.Span}
			}
		case KindLabel:
			if existing.PassDefined == t.pass {
				return &ErrRedefinition{Name: qualified, Previous: existing.Span}
			}
		}
	}

	top.entries[key] = &Entry{Name: qualified, Value: v, Span: sp, Kind: kind, PassDefined: t.pass}
	if kind == KindLabel && !local {
		top.lastNonLocalLabel = name
	}
	return nil
}

// ResolveLocalOrSelf resolves a local label if name starts with '.', else
// returns name unchanged.
func (t *Table) ResolveLocalOrSelf(name string) (string, error) {
	if strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "::") {
		return t.ResolveLocal(name)
	}
	return name, nil
}

// Lookup walks the scope stack from innermost to outermost, or forces the
// outermost scope for a "::name" lookup.
func (t *Table) Lookup(name string) (*Entry, bool) {
	if strings.HasPrefix(name, "::") {
		key := t.fold(strings.TrimPrefix(name, "::"))
		e, ok := t.scopes[0].entries[key]
		return e, ok
	}
	if resolved, err := t.ResolveLocalOrSelf(name); err == nil {
		name = resolved
	}
	for i := len(t.scopes) - 1; i >= 0; i-- {
		sc := t.scopes[i]
		qualified := name
		if sc.prefix != "" && !strings.Contains(name, ".") {
			qualified = sc.prefix + "." + name
		}
		if e, ok := sc.entries[t.fold(qualified)]; ok {
			return e, ok
		}
		if e, ok := sc.entries[t.fold(name)]; ok {
			return e, ok
		}
	}
	return nil, false
}

// Snapshot returns an immutable copy of every entry in sorted order, used
// by the symbol dump and listing diagnostics.
func (t *Table) Snapshot() []*Entry {
	var all []*Entry
	for _, sc := range t.scopes {
		for _, e := range sc.entries {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	return all
}

// Get is a convenience wrapper returning a symbol's Value or an error when
// undefined, mirroring the teacher's SymbolTable.Get.
func (t *Table) Get(name string) (value.Value, error) {
	e, ok := t.Lookup(name)
	if !ok {
		return value.Value{}, fmt.Errorf("undefined symbol: %q", name)
	}
	return e.Value, nil
}
