package cip

import (
	"io"

	"github.com/sirupsen/logrus"
)

// stubPlugin implements the full callback surface with overridable
// functions; unset callbacks return the neutral result of their family.
type stubPlugin struct {
	checkFn  func(conss []*Cons, nUseful int, sol Solution) (Result, error)
	enfoLPFn func(conss []*Cons, nUseful int, solInfeasible bool) (Result, error)
	enfoPSFn func(conss []*Cons, nUseful int, solInfeasible, objInfeasible bool) (Result, error)
	sepaFn   func(conss []*Cons, nUseful, depth int) (Result, error)
	propFn   func(conss []*Cons, nUseful, depth int) (Result, error)
	presolFn func(conss []*Cons, round int, since PresolveDeltas) (PresolveDeltas, Result, error)
	lockFn   func(c *Cons, nLocksPos, nLocksNeg int) error

	freed  []string
	events []string
}

func (p *stubPlugin) Check(conss []*Cons, nUseful int, sol Solution, checkIntegrality, checkLPRows bool) (Result, error) {
	if p.checkFn != nil {
		return p.checkFn(conss, nUseful, sol)
	}
	return Feasible, nil
}

func (p *stubPlugin) EnforceLP(conss []*Cons, nUseful int, solInfeasible bool) (Result, error) {
	if p.enfoLPFn != nil {
		return p.enfoLPFn(conss, nUseful, solInfeasible)
	}
	return Feasible, nil
}

func (p *stubPlugin) EnforcePseudo(conss []*Cons, nUseful int, solInfeasible, objInfeasible bool) (Result, error) {
	if p.enfoPSFn != nil {
		return p.enfoPSFn(conss, nUseful, solInfeasible, objInfeasible)
	}
	return Feasible, nil
}

func (p *stubPlugin) Lock(c *Cons, nLocksPos, nLocksNeg int) error {
	if p.lockFn != nil {
		return p.lockFn(c, nLocksPos, nLocksNeg)
	}
	return nil
}

func (p *stubPlugin) SeparateLP(conss []*Cons, nUseful, depth int) (Result, error) {
	if p.sepaFn != nil {
		return p.sepaFn(conss, nUseful, depth)
	}
	return DidNotFind, nil
}

func (p *stubPlugin) SeparateSol(conss []*Cons, nUseful int, sol Solution, depth int) (Result, error) {
	if p.sepaFn != nil {
		return p.sepaFn(conss, nUseful, depth)
	}
	return DidNotFind, nil
}

func (p *stubPlugin) Propagate(conss []*Cons, nUseful, depth int) (Result, error) {
	if p.propFn != nil {
		return p.propFn(conss, nUseful, depth)
	}
	return DidNotFind, nil
}

func (p *stubPlugin) Presolve(conss []*Cons, round int, since PresolveDeltas) (PresolveDeltas, Result, error) {
	if p.presolFn != nil {
		return p.presolFn(conss, round, since)
	}
	return PresolveDeltas{}, DidNotFind, nil
}

func (p *stubPlugin) Delete(c *Cons, data interface{}) error {
	p.freed = append(p.freed, c.Name())
	return nil
}

func (p *stubPlugin) Activated(c *Cons) error {
	p.events = append(p.events, "activate:"+c.Name())
	return nil
}

func (p *stubPlugin) Deactivated(c *Cons) error {
	p.events = append(p.events, "deactivate:"+c.Name())
	return nil
}

func (p *stubPlugin) Enabled(c *Cons) error {
	p.events = append(p.events, "enable:"+c.Name())
	return nil
}

func (p *stubPlugin) Disabled(c *Cons) error {
	p.events = append(p.events, "disable:"+c.Name())
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRuntime(opts ...Option) *Runtime {
	rt, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		panic(err)
	}
	return rt
}

func newTestHandler(rt *Runtime, name string, cfg HandlerConfig) (*Handler, *stubPlugin) {
	p := &stubPlugin{}
	h, err := rt.Register(name, "test handler", cfg, p)
	if err != nil {
		panic(err)
	}
	return h, p
}

// allFlags enables every role so a constraint lands in all four arrays.
func allFlags() ConsFlags {
	return ConsFlags{Initial: true, Separate: true, Enforce: true, Check: true, Propagate: true, Removable: true}
}

// mapSol is a trivial Solution keyed by variable name.
type mapSol map[string]float64

func (s mapSol) Value(v Variable) float64 { return s[v.Name()] }
