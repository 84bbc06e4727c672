package expr

import (
	"math"
	"strings"
	"testing"

	"github.com/retrocpc/basm/value"
)

// testEnv is a minimal Env: a flat symbol map, a fixed PC, and a sparse
// byte map backing peek.
type testEnv struct {
	syms map[string]value.Value
	pc   int32
	mem  map[int32]byte
}

func (e *testEnv) Lookup(name string) (value.Value, error) {
	if v, ok := e.syms[name]; ok {
		return v, nil
	}
	return value.Pending(2), nil
}

func (e *testEnv) PC() value.Value           { return value.Int(e.pc) }
func (e *testEnv) SectionStart() value.Value { return value.Int(0x8000) }

func (e *testEnv) Peek(addr int32) (value.Value, error) {
	return value.Int(int32(e.mem[addr])), nil
}

func evalString(t *testing.T, env *testEnv, input string) (value.Value, error) {
	t.Helper()
	n, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return Eval(n, env)
}

func evalInt(t *testing.T, env *testEnv, input string) int32 {
	t.Helper()
	v, err := evalString(t, env, input)
	if err != nil {
		t.Fatalf("Eval(%q): %v", input, err)
	}
	i, err := v.AsInt()
	if err != nil {
		t.Fatalf("Eval(%q) = %s, not an integer: %v", input, v, err)
	}
	return i
}

func TestEvalIntegerExpressions(t *testing.T) {
	env := &testEnv{
		syms: map[string]value.Value{
			"ten":  value.Int(10),
			"addr": value.Addr(value.PhysicalAddress{Page: 3, Bank: 1, Index: 2, Address: 0xC000}),
		},
		pc:  0x4000,
		mem: map[int32]byte{0x4000: 0xAB},
	}

	cases := []struct {
		input string
		want  int32
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"10/3", 3},
		{"-10/3", -3},
		{"10%3", 1},
		{"-10%3", -1},
		{"2**10", 1024},
		{"2**3**2", 512}, // right associative
		{"0x10 + #10 + &10 + $10", 64},
		{"0b101 + %101", 10},
		{"0o17", 15},
		{"'A'", 65},
		{"1 << 8 | 0xFF", 0x1FF},
		{"~0", -1},
		{"!0", 1},
		{"5 > 3", 1},
		{"5 == 3", 0},
		{"(5 > 3) + (2 < 1)", 1},
		{"1 && 0", 0},
		{"1 || 0", 1},
		{"ten * ten", 100},
		{"hi(0x1234)", 0x12},
		{"lo(0x1234)", 0x34},
		{"min(3, 1, 2)", 1},
		{"max(3, 1, 2)", 3},
		{"int(3.7)", 3},
		{"$", 0x4000},
		{"$$", 0x8000},
		{"$ + 2", 0x4002},
		{"peek(0x4000)", 0xAB},
		{"peek(0x4001)", 0},
		{"{page}addr", 3},
		{"{bank}addr", 1},
		{"{pageset}addr", 2},
		{"[10,20,30][1]", 20},
		{"0x7FFFFFFF + 1", -2147483648}, // wraps modulo 2^32
	}
	for _, tc := range cases {
		if got := evalInt(t, env, tc.input); got != tc.want {
			t.Errorf("Eval(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestEvalFloatPromotion(t *testing.T) {
	env := &testEnv{}
	v, err := evalString(t, env, "1 + 2.5")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Kind != value.KindFloat {
		t.Fatalf("1 + 2.5 has kind %s, want float", v.Kind)
	}
	if v.Float != 3.5 {
		t.Errorf("1 + 2.5 = %g, want 3.5", v.Float)
	}

	v, err = evalString(t, env, "sqrt(2)")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	f, _ := v.AsFloat()
	if math.Abs(f-math.Sqrt2) > 1e-12 {
		t.Errorf("sqrt(2) = %g", f)
	}
}

func TestEvalStrings(t *testing.T) {
	env := &testEnv{}
	cases := []struct {
		input string
		want  string
	}{
		{`"foo" + "bar"`, "foobar"},
		{`"ab" * 3`, "ababab"},
		{`"x" + 1`, "x1"},
	}
	for _, tc := range cases {
		v, err := evalString(t, env, tc.input)
		if err != nil {
			t.Fatalf("Eval(%q): %v", tc.input, err)
		}
		s, err := v.AsString()
		if err != nil {
			t.Fatalf("Eval(%q) not a string: %v", tc.input, err)
		}
		if s != tc.want {
			t.Errorf("Eval(%q) = %q, want %q", tc.input, s, tc.want)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	env := &testEnv{}
	cases := []struct {
		input string
		frag  string
	}{
		{"1/0", "division by zero"},
		{"1 % 0", "division by zero"},
		{"[1,2][5]", "out of bounds"},
		{"min(5)", "at least 2"},
		{"max(5)", "at least 2"},
		{"nosuchfn(1)", "undefined function"},
		{"{page}5", "address"},
	}
	for _, tc := range cases {
		_, err := evalString(t, env, tc.input)
		if err == nil {
			t.Errorf("Eval(%q) succeeded, want error containing %q", tc.input, tc.frag)
			continue
		}
		if !strings.Contains(strings.ToLower(err.Error()), tc.frag) {
			t.Errorf("Eval(%q) error = %q, want it to contain %q", tc.input, err, tc.frag)
		}
	}
}

func TestEvalPendingPropagates(t *testing.T) {
	env := &testEnv{} // every lookup is Pending
	v, err := evalString(t, env, "later + 1")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.IsPending() {
		t.Errorf("later + 1 = %s, want a pending placeholder", v)
	}
}

func TestParseRejectsTrailingInput(t *testing.T) {
	if _, err := Parse("1 + 2 )"); err == nil {
		t.Error("Parse accepted unbalanced trailing token")
	}
	if _, err := Parse(""); err == nil {
		t.Error("Parse accepted an empty expression")
	}
}
