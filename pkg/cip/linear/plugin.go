package linear

import (
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/cippy/pkg/cip"
)

// HandlerName is the registration name of the linear handler.
const HandlerName = "linear"

// Plugin implements the linear constraint handler callbacks.
type Plugin struct {
	log logrus.FieldLogger
}

func NewPlugin(log logrus.FieldLogger) *Plugin {
	return &Plugin{log: log.WithField("plugin", HandlerName)}
}

// Register registers the linear handler with the runtime.
func Register(rt *cip.Runtime, log logrus.FieldLogger, cfg cip.HandlerConfig) (*cip.Handler, error) {
	return rt.Register(HandlerName, "ranged linear constraints", cfg, NewPlugin(log))
}

func feasTol(conss []*cip.Cons) float64 {
	if len(conss) == 0 {
		return 0
	}
	return conss[0].Handler().Runtime().Settings().FeasTol
}

// Check evaluates each row under the candidate solution. Rows already in
// the LP relaxation are skipped unless checkLPRows is set.
func (p *Plugin) Check(conss []*cip.Cons, nUseful int, sol cip.Solution, checkIntegrality, checkLPRows bool) (cip.Result, error) {
	tol := feasTol(conss)
	for _, c := range conss {
		r := rowOf(c)
		if r.inLP && !checkLPRows {
			continue
		}
		act := r.activity(sol)
		if act < r.Lhs-tol || act > r.Rhs+tol {
			return cip.Infeasible, nil
		}
	}
	return cip.Feasible, nil
}

// enforce decides the rows against the current bounds: a row whose
// reachable activities all violate a side cuts off the node, a row not
// yet decided reports infeasibility for branching.
func (p *Plugin) enforce(conss []*cip.Cons) (cip.Result, error) {
	tol := feasTol(conss)
	res := cip.Feasible
	for _, c := range conss {
		r := rowOf(c)
		min, max := r.activityBounds()
		switch {
		case min > r.Rhs+tol || max < r.Lhs-tol:
			if err := c.ResetAge(); err != nil {
				return cip.Cutoff, err
			}
			return cip.Cutoff, nil
		case min >= r.Lhs-tol && max <= r.Rhs+tol:
			continue
		default:
			res = cip.Infeasible
		}
	}
	return res, nil
}

func (p *Plugin) EnforceLP(conss []*cip.Cons, nUseful int, solInfeasible bool) (cip.Result, error) {
	return p.enforce(conss)
}

func (p *Plugin) EnforcePseudo(conss []*cip.Cons, nUseful int, solInfeasible, objInfeasible bool) (cip.Result, error) {
	if objInfeasible {
		return cip.DidNotRun, nil
	}
	return p.enforce(conss)
}

// Lock reports rounding locks per term: a positive coefficient endangers
// a finite left side when rounded down and a finite right side when
// rounded up; negative coefficients mirror.
func (p *Plugin) Lock(c *cip.Cons, nLocksPos, nLocksNeg int) error {
	r := rowOf(c)
	lhsFinite := !math.IsInf(r.Lhs, -1)
	rhsFinite := !math.IsInf(r.Rhs, 1)
	for _, t := range r.Terms {
		if t.Coef > 0 {
			if lhsFinite {
				t.Var.addLocks(nLocksPos, nLocksNeg)
			}
			if rhsFinite {
				t.Var.addLocks(nLocksNeg, nLocksPos)
			}
		} else {
			if lhsFinite {
				t.Var.addLocks(nLocksNeg, nLocksPos)
			}
			if rhsFinite {
				t.Var.addLocks(nLocksPos, nLocksNeg)
			}
		}
	}
	return nil
}

// SeparateLP has no LP solution to work from in this runtime.
func (p *Plugin) SeparateLP(conss []*cip.Cons, nUseful, depth int) (cip.Result, error) {
	return cip.DidNotFind, nil
}

// SeparateSol reports each violated row as one found cut.
func (p *Plugin) SeparateSol(conss []*cip.Cons, nUseful int, sol cip.Solution, depth int) (cip.Result, error) {
	tol := feasTol(conss)
	res := cip.DidNotFind
	for _, c := range conss {
		r := rowOf(c)
		act := r.activity(sol)
		if act < r.Lhs-tol || act > r.Rhs+tol {
			c.Handler().Runtime().Stat().NCutsFound++
			if err := c.ResetAge(); err != nil {
				return res, err
			}
			res = cip.Separated
			continue
		}
		if err := c.IncAge(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Propagate performs interval propagation: infeasible activity ranges cut
// off the node, otherwise each side tightens the bound of every term.
func (p *Plugin) Propagate(conss []*cip.Cons, nUseful, depth int) (cip.Result, error) {
	tol := feasTol(conss)
	res := cip.DidNotFind
	for _, c := range conss {
		stat := c.Handler().Runtime().Stat()
		r := rowOf(c)
		min, max := r.activityBounds()
		if min > r.Rhs+tol || max < r.Lhs-tol {
			if err := c.ResetAge(); err != nil {
				return cip.Cutoff, err
			}
			return cip.Cutoff, nil
		}
		tightened := false
		for _, t := range r.Terms {
			changed, err := tightenTerm(t, r, min, max, tol, stat)
			if err != nil {
				return res, err
			}
			tightened = tightened || changed
		}
		if tightened {
			if err := c.ResetAge(); err != nil {
				return res, err
			}
			res = cip.ReducedDom
			continue
		}
		if err := c.IncAge(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// tightenTerm derives new bounds for one term from the row's sides and
// the residual activity of the remaining terms.
func tightenTerm(t Term, r *Row, min, max, tol float64, stat *cip.Stats) (bool, error) {
	tightened := false
	if t.Coef > 0 {
		if !math.IsInf(r.Rhs, 1) && !math.IsInf(min, -1) {
			resid := min - t.Coef*t.Var.Lb()
			if ub := (r.Rhs - resid) / t.Coef; ub < t.Var.Ub()-tol {
				changed, err := t.Var.TightenUb(ub, stat)
				if err != nil {
					return tightened, err
				}
				tightened = tightened || changed
			}
		}
		if !math.IsInf(r.Lhs, -1) && !math.IsInf(max, 1) {
			resid := max - t.Coef*t.Var.Ub()
			if lb := (r.Lhs - resid) / t.Coef; lb > t.Var.Lb()+tol {
				changed, err := t.Var.TightenLb(lb, stat)
				if err != nil {
					return tightened, err
				}
				tightened = tightened || changed
			}
		}
		return tightened, nil
	}
	if !math.IsInf(r.Rhs, 1) && !math.IsInf(min, -1) {
		resid := min - t.Coef*t.Var.Ub()
		if lb := (r.Rhs - resid) / t.Coef; lb > t.Var.Lb()+tol {
			changed, err := t.Var.TightenLb(lb, stat)
			if err != nil {
				return tightened, err
			}
			tightened = tightened || changed
		}
	}
	if !math.IsInf(r.Lhs, -1) && !math.IsInf(max, 1) {
		resid := max - t.Coef*t.Var.Lb()
		if ub := (r.Lhs - resid) / t.Coef; ub < t.Var.Ub()-tol {
			changed, err := t.Var.TightenUb(ub, stat)
			if err != nil {
				return tightened, err
			}
			tightened = tightened || changed
		}
	}
	return tightened, nil
}

// Presolve substitutes fixed variables into the sides, drops redundant
// rows, and detects trivially infeasible ones.
func (p *Plugin) Presolve(conss []*cip.Cons, round int, since cip.PresolveDeltas) (cip.PresolveDeltas, cip.Result, error) {
	var made cip.PresolveDeltas
	tol := feasTol(conss)
	for _, c := range conss {
		r := rowOf(c)
		shift := 0.0
		kept := r.Terms[:0]
		for _, t := range r.Terms {
			if t.Var.IsFixed() {
				shift += t.Coef * t.Var.Lb()
				made.NChgCoefs++
				continue
			}
			kept = append(kept, t)
		}
		r.Terms = kept
		if shift != 0 {
			if !math.IsInf(r.Lhs, -1) {
				r.Lhs -= shift
				made.NChgSides++
			}
			if !math.IsInf(r.Rhs, 1) {
				r.Rhs -= shift
				made.NChgSides++
			}
		}
		if len(r.Terms) == 0 {
			if r.Lhs > tol || r.Rhs < -tol {
				return made, cip.Cutoff, nil
			}
			if err := c.Delete(); err != nil {
				return made, cip.DidNotFind, err
			}
			made.NDelConss++
			continue
		}
		min, max := r.activityBounds()
		if min >= r.Lhs-tol && max <= r.Rhs+tol {
			if err := c.Delete(); err != nil {
				return made, cip.DidNotFind, err
			}
			made.NDelConss++
		}
	}
	if made.Empty() {
		return made, cip.DidNotFind, nil
	}
	p.log.WithFields(logrus.Fields{
		"round":   round,
		"deleted": made.NDelConss,
		"coefs":   made.NChgCoefs,
		"sides":   made.NChgSides,
	}).Debug("presolved rows")
	return made, cip.Success, nil
}

// InitLP marks the initial rows as members of the LP relaxation.
func (p *Plugin) InitLP(conss []*cip.Cons) error {
	for _, c := range conss {
		rowOf(c).inLP = true
	}
	return nil
}

// Transform clones the row payload for the transformed constraint.
func (p *Plugin) Transform(src *cip.Cons) (interface{}, error) {
	r := rowOf(src)
	return &Row{Terms: append([]Term(nil), r.Terms...), Lhs: r.Lhs, Rhs: r.Rhs}, nil
}

// Delete releases the row payload.
func (p *Plugin) Delete(c *cip.Cons, data interface{}) error {
	data.(*Row).Terms = nil
	return nil
}

// Print writes the row in ranged form.
func (p *Plugin) Print(c *cip.Cons, w io.Writer) error {
	_, err := fmt.Fprint(w, rowOf(c).String())
	return err
}
