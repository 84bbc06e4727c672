package expr

import (
	"fmt"
	"math"
	"strings"

	"github.com/retrocpc/basm/value"
)

// callBuiltin dispatches a function-call expression to its implementation.
// The set mirrors the arithmetic/bit/string builtins a Z80 assembler's
// expression language conventionally exposes: byte extraction, the common
// transcendental functions, rounding, and the peek memory-read hook.
func callBuiltin(name string, args []value.Value, env Env) (value.Value, error) {
	switch strings.ToLower(name) {
	case "hi", "high":
		return unaryIntFn(name, args, func(i int32) int32 { return (i >> 8) & 0xFF })
	case "lo", "low":
		return unaryIntFn(name, args, func(i int32) int32 { return i & 0xFF })
	case "abs":
		return unaryFloatFn(name, args, math.Abs)
	case "sqrt":
		return unaryFloatFn(name, args, math.Sqrt)
	case "sin":
		return unaryFloatFn(name, args, math.Sin)
	case "cos":
		return unaryFloatFn(name, args, math.Cos)
	case "asin":
		return unaryFloatFn(name, args, math.Asin)
	case "acos":
		return unaryFloatFn(name, args, math.Acos)
	case "atan":
		return unaryFloatFn(name, args, math.Atan)
	case "ln":
		return unaryFloatFn(name, args, math.Log)
	case "log10":
		return unaryFloatFn(name, args, math.Log10)
	case "exp":
		return unaryFloatFn(name, args, math.Exp)
	case "floor":
		return unaryFloatFn(name, args, math.Floor)
	case "ceil":
		return unaryFloatFn(name, args, math.Ceil)
	case "frac":
		return unaryFloatFn(name, args, func(f float64) float64 { _, frac := math.Modf(f); return frac })
	case "atan2":
		if len(args) != 2 {
			return value.Value{}, fmt.Errorf("%s expects 2 arguments, got %d", name, len(args))
		}
		a, err := args[0].AsFloat()
		if err != nil {
			return value.Value{}, err
		}
		b, err := args[1].AsFloat()
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(math.Atan2(a, b)), nil
	case "int":
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("int expects 1 argument, got %d", len(args))
		}
		i, err := args[0].AsInt()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case "char":
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("char expects 1 argument, got %d", len(args))
		}
		i, err := args[0].AsInt()
		if err != nil {
			return value.Value{}, err
		}
		return value.Char(rune(i)), nil
	case "min":
		return reduceInt(name, args, func(a, b int32) int32 {
			if a < b {
				return a
			}
			return b
		})
	case "max":
		return reduceInt(name, args, func(a, b int32) int32 {
			if a > b {
				return a
			}
			return b
		})
	case "peek":
		if len(args) != 1 {
			return value.Value{}, fmt.Errorf("peek expects 1 argument, got %d", len(args))
		}
		addr, err := args[0].AsInt()
		if err != nil {
			return value.Value{}, err
		}
		return env.Peek(addr)
	default:
		if ext, ok := env.(ExtendedEnv); ok {
			return ext.CallUser(name, args)
		}
		return value.Value{}, fmt.Errorf("undefined function: %q", name)
	}
}

// ExtendedEnv is an Env that supplies functions beyond the built-in set;
// unrecognised call names are routed to CallUser. The driver uses this for
// duration(), which needs the instruction encoder's cycle table.
type ExtendedEnv interface {
	Env
	CallUser(name string, args []value.Value) (value.Value, error)
}

func unaryIntFn(name string, args []value.Value, f func(int32) int32) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
	}
	i, err := args[0].AsInt()
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(f(i)), nil
}

func unaryFloatFn(name string, args []value.Value, f func(float64) float64) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
	}
	v, err := args[0].AsFloat()
	if err != nil {
		return value.Value{}, err
	}
	return value.Float(f(v)), nil
}

func reduceInt(name string, args []value.Value, f func(a, b int32) int32) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, fmt.Errorf("%s expects at least 2 arguments, got %d", name, len(args))
	}
	acc, err := args[0].AsInt()
	if err != nil {
		return value.Value{}, err
	}
	for _, a := range args[1:] {
		i, err := a.AsInt()
		if err != nil {
			return value.Value{}, err
		}
		acc = f(acc, i)
	}
	return value.Int(acc), nil
}
