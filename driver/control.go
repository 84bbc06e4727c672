package driver

import (
	"fmt"

	"github.com/retrocpc/basm/expr"
	"github.com/retrocpc/basm/symbols"
	"github.com/retrocpc/basm/token"
	"github.com/retrocpc/basm/value"
)

const maxWhileIterations = 65536

// evalBool evaluates cond and coerces it to a boolean the way `if`/`while`/
// `until` conditions do; a still-unresolved Pending value coerces to 0
// (false) via value.Value.AsInt, matching the engine's existing sizing
// degrade rather than raising a special-cased error here.
func (d *Driver) evalBool(n expr.Node) (bool, error) {
	v, err := d.eval(n)
	if err != nil {
		return false, err
	}
	i, err := v.AsInt()
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

func (d *Driver) execIf(t *token.If) error {
	for _, br := range t.Branches {
		ok, err := d.evalBool(br.Cond)
		if err != nil {
			return err
		}
		if ok {
			return d.execBody(br.Body)
		}
	}
	if t.Else != nil {
		return d.execBody(t.Else)
	}
	return nil
}

func (d *Driver) execRepeat(t *token.Repeat) error {
	count, err := d.evalInt(t.Count)
	if err != nil {
		return err
	}
	start, step := int32(0), int32(1)
	if t.Start != nil {
		if start, err = d.evalInt(t.Start); err != nil {
			return err
		}
	}
	if t.Step != nil {
		if step, err = d.evalInt(t.Step); err != nil {
			return err
		}
	}
	for i := int32(0); i < count; i++ {
		if t.CounterName != "" {
			if err := d.symbols.Define(t.CounterName, value.Int(start+i*step), symbols.KindCounter, t.Sp); err != nil {
				return err
			}
		}
		if err := d.execBody(t.Body); err != nil {
			return err
		}
		if d.breakSignal {
			return nil
		}
	}
	return nil
}

func (d *Driver) execRepeatUntil(t *token.RepeatUntil) error {
	for i := 0; i < maxLoopIterations; i++ {
		if err := d.execBody(t.Body); err != nil {
			return err
		}
		if d.breakSignal {
			return nil
		}
		done, err := d.evalBool(t.Cond)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%s: repeat/until exceeded the iteration cap", t.Sp)
}

func (d *Driver) execWhile(t *token.While) error {
	for i := 0; i < maxWhileIterations; i++ {
		cond, err := d.evalBool(t.Cond)
		if err != nil {
			return err
		}
		if !cond {
			return nil
		}
		if err := d.execBody(t.Body); err != nil {
			return err
		}
		if d.breakSignal {
			return nil
		}
	}
	return fmt.Errorf("%s: while loop exceeded %d iterations", t.Sp, maxWhileIterations)
}

func valuesEqual(a, b value.Value) bool {
	if a.Kind == value.KindString || b.Kind == value.KindString {
		as, aerr := a.AsString()
		bs, berr := b.AsString()
		return aerr == nil && berr == nil && as == bs
	}
	ai, aerr := a.AsInt()
	bi, berr := b.AsInt()
	if aerr == nil && berr == nil {
		return ai == bi
	}
	return a.String() == b.String()
}

func (d *Driver) execSwitch(t *token.Switch) error {
	sel, err := d.eval(t.Selector)
	if err != nil {
		return err
	}
	matched := false
	for _, c := range t.Cases {
		if !matched {
			cv, err := d.eval(c.Value)
			if err != nil {
				return err
			}
			if !valuesEqual(sel, cv) {
				continue
			}
			matched = true
		}
		if err := d.execBody(c.Body); err != nil {
			return err
		}
		if d.breakSignal {
			return nil
		}
		if !c.Fallthrough {
			return nil
		}
	}
	if !matched && t.Default != nil {
		return d.execBody(t.Default)
	}
	return nil
}

func (d *Driver) execFor(t *token.For) error {
	start, err := d.evalInt(t.Start)
	if err != nil {
		return err
	}
	end, err := d.evalInt(t.End)
	if err != nil {
		return err
	}
	step := int32(1)
	if t.Step != nil {
		if step, err = d.evalInt(t.Step); err != nil {
			return err
		}
	}
	if step == 0 {
		return fmt.Errorf("%s: for loop step must be non-zero", t.Sp)
	}
	iterations := 0
	for cur := start; (step > 0 && cur <= end) || (step < 0 && cur >= end); cur += step {
		iterations++
		if iterations > maxLoopIterations {
			return fmt.Errorf("%s: for loop exceeded the iteration cap", t.Sp)
		}
		if err := d.symbols.Define(t.Sym, value.Int(cur), symbols.KindCounter, t.Sp); err != nil {
			return err
		}
		if err := d.execBody(t.Body); err != nil {
			return err
		}
		if d.breakSignal {
			return nil
		}
	}
	return nil
}
