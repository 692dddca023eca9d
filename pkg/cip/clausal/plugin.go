package clausal

import (
	"fmt"
	"io"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/cippy/pkg/cip"
)

// HandlerName is the registration name of the clause handler.
const HandlerName = "logicor"

// Plugin implements the clause constraint handler callbacks.
type Plugin struct {
	log logrus.FieldLogger
}

func NewPlugin(log logrus.FieldLogger) *Plugin {
	return &Plugin{log: log.WithField("plugin", HandlerName)}
}

// Register registers the clause handler with the runtime.
func Register(rt *cip.Runtime, log logrus.FieldLogger, cfg cip.HandlerConfig) (*cip.Handler, error) {
	return rt.Register(HandlerName, "logic-or constraints over binary variables", cfg, NewPlugin(log))
}

// Check encodes the given clauses and the candidate assignment into the
// SAT engine and asks for feasibility under full assumptions.
func (p *Plugin) Check(conss []*cip.Cons, nUseful int, sol cip.Solution, checkIntegrality, checkLPRows bool) (cip.Result, error) {
	if len(conss) == 0 {
		return cip.Feasible, nil
	}
	tol := conss[0].Handler().Runtime().Settings().FeasTol

	g := gini.New()
	lits := map[*Var]z.Lit{}
	litOf := func(v *Var) z.Lit {
		m, ok := lits[v]
		if !ok {
			m = g.Lit()
			lits[v] = m
		}
		return m
	}
	for _, c := range conss {
		for _, l := range clauseOf(c).Lits {
			m := litOf(l.Var)
			if l.Neg {
				m = m.Not()
			}
			g.Add(m)
		}
		g.Add(z.LitNull)
	}
	for v, m := range lits {
		val := sol.Value(v)
		if checkIntegrality && val > tol && val < 1-tol {
			return cip.Infeasible, nil
		}
		if val <= 0.5 {
			m = m.Not()
		}
		g.Assume(m)
	}
	if g.Solve() == 1 {
		return cip.Feasible, nil
	}
	return cip.Infeasible, nil
}

// enforce decides the clauses against the current fixings: a fully
// falsified clause cuts off the node, a unit clause fixes its last
// literal, anything undetermined reports infeasibility for branching.
func (p *Plugin) enforce(conss []*cip.Cons) (cip.Result, error) {
	res := cip.Feasible
	for _, c := range conss {
		stat := c.Handler().Runtime().Stat()
		cl := clauseOf(c)
		satisfied := false
		var unfixed []Lit
		for _, l := range cl.Lits {
			switch {
			case l.fixedTrue():
				satisfied = true
			case !l.fixedFalse():
				unfixed = append(unfixed, l)
			}
		}
		switch {
		case satisfied:
			continue
		case len(unfixed) == 0:
			if err := c.ResetAge(); err != nil {
				return cip.Cutoff, err
			}
			return cip.Cutoff, nil
		case len(unfixed) == 1:
			if err := unfixed[0].Var.Fix(unfixed[0].satisfyingValue(), stat); err != nil {
				return cip.ReducedDom, err
			}
			if err := c.ResetAge(); err != nil {
				return cip.ReducedDom, err
			}
			res = cip.ReducedDom
		default:
			if res == cip.Feasible {
				res = cip.Infeasible
			}
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

// Lock reports rounding locks: a positive literal is endangered by
// rounding its variable down, a negated one by rounding up.
func (p *Plugin) Lock(c *cip.Cons, nLocksPos, nLocksNeg int) error {
	for _, l := range clauseOf(c).Lits {
		if l.Neg {
			l.Var.addLocks(nLocksNeg, nLocksPos)
		} else {
			l.Var.addLocks(nLocksPos, nLocksNeg)
		}
	}
	return nil
}

// Propagate performs unit propagation: clauses with all literals false cut
// off the node, clauses with a single undetermined literal fix it.
func (p *Plugin) Propagate(conss []*cip.Cons, nUseful, depth int) (cip.Result, error) {
	res := cip.DidNotFind
	for _, c := range conss {
		stat := c.Handler().Runtime().Stat()
		cl := clauseOf(c)
		satisfied := false
		var unfixed []Lit
		for _, l := range cl.Lits {
			switch {
			case l.fixedTrue():
				satisfied = true
			case !l.fixedFalse():
				unfixed = append(unfixed, l)
			}
		}
		switch {
		case satisfied:
			if err := c.IncAge(); err != nil {
				return res, err
			}
		case len(unfixed) == 0:
			if err := c.ResetAge(); err != nil {
				return cip.Cutoff, err
			}
			return cip.Cutoff, nil
		case len(unfixed) == 1:
			if err := unfixed[0].Var.Fix(unfixed[0].satisfyingValue(), stat); err != nil {
				return res, err
			}
			if err := c.ResetAge(); err != nil {
				return res, err
			}
			res = cip.ReducedDom
		default:
			if err := c.IncAge(); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Presolve deletes satisfied clauses, strengthens clauses by dropping
// falsified literals, and fixes the variables of unit clauses.
func (p *Plugin) Presolve(conss []*cip.Cons, round int, since cip.PresolveDeltas) (cip.PresolveDeltas, cip.Result, error) {
	var made cip.PresolveDeltas
	for _, c := range conss {
		stat := c.Handler().Runtime().Stat()
		cl := clauseOf(c)
		satisfied := false
		kept := cl.Lits[:0]
		for _, l := range cl.Lits {
			switch {
			case l.fixedTrue():
				satisfied = true
			case l.fixedFalse():
				made.NChgCoefs++
			default:
				kept = append(kept, l)
			}
		}
		cl.Lits = kept
		if satisfied {
			if err := c.Delete(); err != nil {
				return made, cip.DidNotFind, err
			}
			made.NDelConss++
			continue
		}
		switch len(cl.Lits) {
		case 0:
			return made, cip.Cutoff, nil
		case 1:
			if err := cl.Lits[0].Var.Fix(cl.Lits[0].satisfyingValue(), stat); err != nil {
				return made, cip.DidNotFind, err
			}
			made.NFixedVars++
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
		"round":    round,
		"fixed":    made.NFixedVars,
		"deleted":  made.NDelConss,
		"shrunken": made.NChgCoefs,
	}).Debug("presolved clauses")
	return made, cip.Success, nil
}

// Transform clones the clause payload for the transformed constraint.
func (p *Plugin) Transform(src *cip.Cons) (interface{}, error) {
	cl := clauseOf(src)
	return &Clause{Lits: append([]Lit(nil), cl.Lits...)}, nil
}

// Delete releases the clause payload.
func (p *Plugin) Delete(c *cip.Cons, data interface{}) error {
	data.(*Clause).Lits = nil
	return nil
}

// Print writes the clause in or(...) form.
func (p *Plugin) Print(c *cip.Cons, w io.Writer) error {
	_, err := fmt.Fprint(w, clauseOf(c).String())
	return err
}
