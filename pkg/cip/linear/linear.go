// Package linear provides a linear constraint handler over ranged rows
// lhs <= sum(coef_i * x_i) <= rhs. Propagation is interval arithmetic on
// the variable bounds; separation reports violated rows as cuts.
package linear

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/operator-framework/cippy/pkg/cip"
)

// Var is a problem variable with mutable bounds and rounding-lock
// counters maintained through the handler's lock callback.
type Var struct {
	name string
	lb   float64
	ub   float64

	nLocksDown int
	nLocksUp   int
}

func NewVar(name string, lb, ub float64) *Var {
	return &Var{name: name, lb: lb, ub: ub}
}

func (v *Var) Name() string { return v.name }
func (v *Var) Lb() float64  { return v.lb }
func (v *Var) Ub() float64  { return v.ub }

func (v *Var) NLocksDown() int { return v.nLocksDown }
func (v *Var) NLocksUp() int   { return v.nLocksUp }

// IsFixed reports whether the domain collapsed to a single value.
func (v *Var) IsFixed() bool { return v.lb == v.ub }

// TightenLb raises the lower bound, bumping the shared bound-change
// counter. Returns whether the bound moved; crossing the upper bound
// fails.
func (v *Var) TightenLb(lb float64, stat *cip.Stats) (bool, error) {
	if lb <= v.lb {
		return false, nil
	}
	if lb > v.ub {
		return false, errors.Errorf("variable %q: new lower bound %g above upper bound %g", v.name, lb, v.ub)
	}
	v.lb = lb
	stat.NBoundChgs++
	return true, nil
}

// TightenUb lowers the upper bound, bumping the shared bound-change
// counter.
func (v *Var) TightenUb(ub float64, stat *cip.Stats) (bool, error) {
	if ub >= v.ub {
		return false, nil
	}
	if ub < v.lb {
		return false, errors.Errorf("variable %q: new upper bound %g below lower bound %g", v.name, ub, v.lb)
	}
	v.ub = ub
	stat.NBoundChgs++
	return true, nil
}

func (v *Var) addLocks(down, up int) {
	v.nLocksDown += down
	v.nLocksUp += up
}

// Term is one coefficient-variable pair of a row.
type Term struct {
	Var  *Var
	Coef float64
}

// Row is the payload of one linear constraint: Lhs <= Terms <= Rhs, with
// an infinite side meaning unbounded.
type Row struct {
	Terms []Term
	Lhs   float64
	Rhs   float64

	inLP bool
}

func (r *Row) String() string {
	parts := make([]string, len(r.Terms))
	for i, t := range r.Terms {
		parts[i] = fmt.Sprintf("%g*%s", t.Coef, t.Var.Name())
	}
	expr := strings.Join(parts, " + ")
	switch {
	case math.IsInf(r.Lhs, -1) && math.IsInf(r.Rhs, 1):
		return expr + " free"
	case math.IsInf(r.Lhs, -1):
		return fmt.Sprintf("%s <= %g", expr, r.Rhs)
	case math.IsInf(r.Rhs, 1):
		return fmt.Sprintf("%g <= %s", r.Lhs, expr)
	default:
		return fmt.Sprintf("%g <= %s <= %g", r.Lhs, expr, r.Rhs)
	}
}

// activity evaluates the row under the given solution.
func (r *Row) activity(sol cip.Solution) float64 {
	act := 0.0
	for _, t := range r.Terms {
		act += t.Coef * sol.Value(t.Var)
	}
	return act
}

// activityBounds computes the interval of reachable activities under the
// current variable bounds.
func (r *Row) activityBounds() (float64, float64) {
	min, max := 0.0, 0.0
	for _, t := range r.Terms {
		if t.Coef > 0 {
			min += t.Coef * t.Var.Lb()
			max += t.Coef * t.Var.Ub()
		} else {
			min += t.Coef * t.Var.Ub()
			max += t.Coef * t.Var.Lb()
		}
	}
	return min, max
}

// NewCons creates a linear constraint with the standard linear roles.
func NewCons(h *cip.Handler, name string, row *Row) *cip.Cons {
	return h.NewCons(name, row, cip.ConsFlags{
		Initial:   true,
		Separate:  true,
		Enforce:   true,
		Check:     true,
		Propagate: true,
		Removable: true,
	})
}

func rowOf(c *cip.Cons) *Row {
	return c.Data().(*Row)
}
