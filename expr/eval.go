package expr

import (
	"math"
	"strings"

	"github.com/retrocpc/basm/value"
)

// Env supplies the evaluator with everything outside the expression text
// itself: symbol lookup, the current program counter, the active section's
// start address, and a byte-peek hook for the `peek` builtin. A driver's
// per-pass environment implements this; during non-final passes Lookup may
// return a Pending value for a symbol not yet resolved.
type Env interface {
	Lookup(name string) (value.Value, error)
	PC() value.Value
	SectionStart() value.Value
	Peek(addr int32) (value.Value, error)
}

// Eval evaluates an AST node against env, implementing the arithmetic,
// coercion, and forward-reference semantics of the expression language.
func Eval(n Node, env Env) (value.Value, error) {
	switch node := n.(type) {
	case IntLit:
		return value.Int(int32(node.Value)), nil
	case FloatLit:
		return value.Float(node.Value), nil
	case StringLit:
		return value.Str(node.Value), nil
	case CharLit:
		return value.Char(node.Value), nil
	case Ident:
		return env.Lookup(node.Name)
	case PC:
		return env.PC(), nil
	case SectionStart:
		return env.SectionStart(), nil
	case ListLit:
		items := make([]value.Value, 0, len(node.Items))
		for _, it := range node.Items {
			v, err := Eval(it, env)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.List(items), nil
	case Unary:
		return evalUnary(node, env)
	case Binary:
		return evalBinary(node, env)
	case Index:
		return evalIndex(node, env)
	case FieldAccess:
		return evalFieldAccess(node, env)
	case Call:
		return evalCall(node, env)
	default:
		return value.Value{}, errType("expression node", "unknown")
	}
}

func evalUnary(n Unary, env Env) (value.Value, error) {
	v, err := Eval(n.Inner, env)
	if err != nil {
		return value.Value{}, err
	}
	if v.IsPending() {
		return v, nil
	}
	switch n.Op {
	case "-":
		if v.IsFloat() {
			f, _ := v.AsFloat()
			return value.Float(-f), nil
		}
		i, err := v.AsInt()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(wrap32(-int64(i))), nil
	case "+":
		return v, nil
	case "!":
		b, err := asBool(v)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(!b), nil
	case "~":
		i, err := v.AsInt()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(wrap32(int64(^i))), nil
	default:
		return value.Value{}, errType("unary operator", n.Op)
	}
}

func evalBinary(n Binary, env Env) (value.Value, error) {
	left, err := Eval(n.Left, env)
	if err != nil {
		return value.Value{}, err
	}

	// short-circuit logical operators
	if n.Op == "&&" {
		lb, err := asBool(left)
		if err != nil {
			return value.Value{}, err
		}
		if !lb {
			return value.Bool(false), nil
		}
		right, err := Eval(n.Right, env)
		if err != nil {
			return value.Value{}, err
		}
		rb, err := asBool(right)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(rb), nil
	}
	if n.Op == "||" {
		lb, err := asBool(left)
		if err != nil {
			return value.Value{}, err
		}
		if lb {
			return value.Bool(true), nil
		}
		right, err := Eval(n.Right, env)
		if err != nil {
			return value.Value{}, err
		}
		rb, err := asBool(right)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(rb), nil
	}

	right, err := Eval(n.Right, env)
	if err != nil {
		return value.Value{}, err
	}

	if left.IsPending() || right.IsPending() {
		return value.Pending(0), nil
	}

	switch n.Op {
	case "+":
		return evalAdd(left, right)
	case "-", "*", "/", "%":
		return evalArith(n.Op, left, right)
	case "==", "!=", "<", "<=", ">", ">=":
		return evalCompare(n.Op, left, right)
	case "|", "^", "&", "<<", ">>":
		return evalBitwise(n.Op, left, right)
	case "**":
		return evalPow(left, right)
	default:
		return value.Value{}, errType("binary operator", n.Op)
	}
}

func wrap32(v int64) int32 { return int32(uint32(v)) }

func asBool(v value.Value) (bool, error) {
	switch v.Kind {
	case value.KindBool:
		return v.Bool, nil
	case value.KindInt:
		return v.Int != 0, nil
	case value.KindFloat:
		return v.Float != 0, nil
	default:
		return false, errType("boolean", v.Kind.String())
	}
}

func evalAdd(left, right value.Value) (value.Value, error) {
	if left.Kind == value.KindString || right.Kind == value.KindString {
		ls, err := left.AsString()
		if err != nil {
			return value.Value{}, errStringExpected(left.Kind.String())
		}
		rs, err := right.AsString()
		if err != nil {
			return value.Value{}, errStringExpected(right.Kind.String())
		}
		return value.Str(ls + rs), nil
	}
	if left.Kind == value.KindList && right.Kind == value.KindList {
		return value.List(append(append([]value.Value{}, left.List...), right.List...)), nil
	}
	return evalArith("+", left, right)
}

func evalArith(op string, left, right value.Value) (value.Value, error) {
	if op == "*" && left.Kind == value.KindString && right.Kind == value.KindInt {
		return value.Str(strings.Repeat(left.Str, int(right.Int))), nil
	}
	if op == "*" && right.Kind == value.KindString && left.Kind == value.KindInt {
		return value.Str(strings.Repeat(right.Str, int(left.Int))), nil
	}

	if left.IsFloat() || right.IsFloat() {
		lf, err := left.AsFloat()
		if err != nil {
			return value.Value{}, err
		}
		rf, err := right.AsFloat()
		if err != nil {
			return value.Value{}, err
		}
		switch op {
		case "+":
			return value.Float(lf + rf), nil
		case "-":
			return value.Float(lf - rf), nil
		case "*":
			return value.Float(lf * rf), nil
		case "/":
			if rf == 0 {
				return value.Value{}, errDivZero()
			}
			return value.Float(lf / rf), nil
		case "%":
			if rf == 0 {
				return value.Value{}, errDivZero()
			}
			return value.Float(math.Mod(lf, rf)), nil
		}
	}

	li, err := left.AsInt()
	if err != nil {
		return value.Value{}, err
	}
	ri, err := right.AsInt()
	if err != nil {
		return value.Value{}, err
	}
	switch op {
	case "+":
		return value.Int(wrap32(int64(li) + int64(ri))), nil
	case "-":
		return value.Int(wrap32(int64(li) - int64(ri))), nil
	case "*":
		return value.Int(wrap32(int64(li) * int64(ri))), nil
	case "/":
		if ri == 0 {
			return value.Value{}, errDivZero()
		}
		// truncate toward zero, matching the integer-division semantics
		// the assembled source relies on.
		return value.Int(wrap32(int64(li) / int64(ri))), nil
	case "%":
		if ri == 0 {
			return value.Value{}, errDivZero()
		}
		// sign follows the dividend, matching Go's own %.
		return value.Int(wrap32(int64(li) % int64(ri))), nil
	default:
		return value.Value{}, errType("arithmetic operator", op)
	}
}

func evalCompare(op string, left, right value.Value) (value.Value, error) {
	if left.Kind == value.KindString || right.Kind == value.KindString {
		ls, err := left.AsString()
		if err != nil {
			return value.Value{}, err
		}
		rs, err := right.AsString()
		if err != nil {
			return value.Value{}, err
		}
		switch op {
		case "==":
			return value.Bool(ls == rs), nil
		case "!=":
			return value.Bool(ls != rs), nil
		case "<":
			return value.Bool(ls < rs), nil
		case "<=":
			return value.Bool(ls <= rs), nil
		case ">":
			return value.Bool(ls > rs), nil
		case ">=":
			return value.Bool(ls >= rs), nil
		}
	}
	if left.IsFloat() || right.IsFloat() {
		lf, err := left.AsFloat()
		if err != nil {
			return value.Value{}, err
		}
		rf, err := right.AsFloat()
		if err != nil {
			return value.Value{}, err
		}
		return cmpResult(op, lf < rf, lf == rf, lf > rf), nil
	}
	li, err := left.AsInt()
	if err != nil {
		return value.Value{}, err
	}
	ri, err := right.AsInt()
	if err != nil {
		return value.Value{}, err
	}
	return cmpResult(op, li < ri, li == ri, li > ri), nil
}

func cmpResult(op string, lt, eq, gt bool) value.Value {
	switch op {
	case "==":
		return value.Bool(eq)
	case "!=":
		return value.Bool(!eq)
	case "<":
		return value.Bool(lt)
	case "<=":
		return value.Bool(lt || eq)
	case ">":
		return value.Bool(gt)
	case ">=":
		return value.Bool(gt || eq)
	default:
		return value.Bool(false)
	}
}

func evalBitwise(op string, left, right value.Value) (value.Value, error) {
	li, err := left.AsInt()
	if err != nil {
		return value.Value{}, err
	}
	ri, err := right.AsInt()
	if err != nil {
		return value.Value{}, err
	}
	switch op {
	case "|":
		return value.Int(li | ri), nil
	case "^":
		return value.Int(li ^ ri), nil
	case "&":
		return value.Int(li & ri), nil
	case "<<":
		return value.Int(wrap32(int64(li) << uint(ri))), nil
	case ">>":
		return value.Int(li >> uint(ri)), nil
	default:
		return value.Value{}, errType("bitwise operator", op)
	}
}

func evalPow(left, right value.Value) (value.Value, error) {
	lf, err := left.AsFloat()
	if err != nil {
		return value.Value{}, err
	}
	rf, err := right.AsFloat()
	if err != nil {
		return value.Value{}, err
	}
	result := math.Pow(lf, rf)
	if left.IsFloat() || right.IsFloat() || result != math.Trunc(result) {
		return value.Float(result), nil
	}
	return value.Int(wrap32(int64(result))), nil
}

func evalIndex(n Index, env Env) (value.Value, error) {
	base, err := Eval(n.Base, env)
	if err != nil {
		return value.Value{}, err
	}
	if base.IsPending() {
		return base, nil
	}
	iv, err := Eval(n.I, env)
	if err != nil {
		return value.Value{}, err
	}
	i, err := iv.AsInt()
	if err != nil {
		return value.Value{}, err
	}

	if n.J != nil {
		if base.Kind != value.KindMatrix {
			return value.Value{}, errType("matrix", base.Kind.String())
		}
		jv, err := Eval(n.J, env)
		if err != nil {
			return value.Value{}, err
		}
		j, err := jv.AsInt()
		if err != nil {
			return value.Value{}, err
		}
		return base.Matrix.At(int(i), int(j))
	}

	if base.Kind != value.KindList {
		return value.Value{}, errListExpected(base.Kind.String())
	}
	if int(i) < 0 || int(i) >= len(base.List) {
		return value.Value{}, errIndexOOB(int(i), len(base.List))
	}
	return base.List[i], nil
}

func evalFieldAccess(n FieldAccess, env Env) (value.Value, error) {
	inner, err := Eval(n.Inner, env)
	if err != nil {
		return value.Value{}, err
	}
	if inner.IsPending() {
		return inner, nil
	}
	if inner.Kind != value.KindAddress {
		return value.Value{}, errType("address", inner.Kind.String())
	}
	switch strings.ToLower(n.Field) {
	case "page":
		return value.Int(int32(inner.Address.Page)), nil
	case "bank":
		return value.Int(int32(inner.Address.Bank)), nil
	case "pageset":
		return value.Int(int32(inner.Address.Index)), nil
	default:
		return value.Value{}, errType("page, bank, or pageset field", n.Field)
	}
}

func evalCall(n Call, env Env) (value.Value, error) {
	args := make([]value.Value, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := Eval(a, env)
		if err != nil {
			return value.Value{}, err
		}
		if v.IsPending() {
			return v, nil
		}
		args = append(args, v)
	}
	return callBuiltin(n.Name, args, env)
}
