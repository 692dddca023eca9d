// Package clausal provides a logic-or constraint handler: each constraint
// requires at least one of its literals to be true. Feasibility checking
// is delegated to the gini SAT engine; propagation is unit propagation
// over the variable store.
package clausal

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/operator-framework/cippy/pkg/cip"
)

// Var is a binary problem variable with a current domain within [0, 1]
// and rounding-lock counters maintained through the handler's lock
// callback.
type Var struct {
	name string
	lb   float64
	ub   float64

	nLocksDown int
	nLocksUp   int
}

func NewVar(name string) *Var {
	return &Var{name: name, lb: 0, ub: 1}
}

func (v *Var) Name() string { return v.name }
func (v *Var) Lb() float64  { return v.lb }
func (v *Var) Ub() float64  { return v.ub }

func (v *Var) NLocksDown() int { return v.nLocksDown }
func (v *Var) NLocksUp() int   { return v.nLocksUp }

// IsFixed reports whether the domain collapsed to a single value.
func (v *Var) IsFixed() bool { return v.lb == v.ub }

// FixedTrue reports whether the variable is fixed to one.
func (v *Var) FixedTrue() bool { return v.lb > 0.5 }

// FixedFalse reports whether the variable is fixed to zero.
func (v *Var) FixedFalse() bool { return v.ub < 0.5 }

// Fix collapses the domain to val, bumping the shared bound-change
// counter. Fixing to the already-fixed value is a no-op; fixing against
// an opposite fixing fails.
func (v *Var) Fix(val float64, stat *cip.Stats) error {
	if v.IsFixed() {
		if v.lb == val {
			return nil
		}
		return errors.Errorf("variable %q already fixed to %g", v.name, v.lb)
	}
	v.lb = val
	v.ub = val
	stat.NBoundChgs++
	return nil
}

func (v *Var) addLocks(down, up int) {
	v.nLocksDown += down
	v.nLocksUp += up
}

// Lit is a possibly negated variable reference.
type Lit struct {
	Var *Var
	Neg bool
}

func Pos(v *Var) Lit { return Lit{Var: v} }
func Neg(v *Var) Lit { return Lit{Var: v, Neg: true} }

func (l Lit) String() string {
	if l.Neg {
		return "!" + l.Var.Name()
	}
	return l.Var.Name()
}

// satisfiedBy reports whether the literal holds under the given value of
// its variable.
func (l Lit) satisfiedBy(val float64) bool {
	return (val > 0.5) != l.Neg
}

// fixedTrue reports whether the literal is satisfied by the variable's
// current fixing.
func (l Lit) fixedTrue() bool {
	if l.Neg {
		return l.Var.FixedFalse()
	}
	return l.Var.FixedTrue()
}

func (l Lit) fixedFalse() bool {
	if l.Neg {
		return l.Var.FixedTrue()
	}
	return l.Var.FixedFalse()
}

// satisfyingValue is the value the variable must take to satisfy the
// literal.
func (l Lit) satisfyingValue() float64 {
	if l.Neg {
		return 0
	}
	return 1
}

// Clause is the payload of one logic-or constraint.
type Clause struct {
	Lits []Lit
}

func (cl *Clause) String() string {
	parts := make([]string, len(cl.Lits))
	for i, l := range cl.Lits {
		parts[i] = l.String()
	}
	return "or(" + strings.Join(parts, ", ") + ")"
}

// NewCons creates a clause constraint with the standard logic-or roles.
func NewCons(h *cip.Handler, name string, lits []Lit) *cip.Cons {
	return h.NewCons(name, &Clause{Lits: lits}, cip.ConsFlags{
		Initial:   true,
		Enforce:   true,
		Check:     true,
		Propagate: true,
		Removable: true,
	})
}

func clauseOf(c *cip.Cons) *Clause {
	return c.Data().(*Clause)
}
