package cip

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Runtime is the constraint-handling core: the registry of constraint
// handlers, the shared statistics, the global settings, and the original
// and transformed problem containers. It is single-threaded; reentrancy is
// handled by the per-handler update queues, not by locking.
type Runtime struct {
	log  logrus.FieldLogger
	set  Settings
	stat *Stats

	handlers map[string]*Handler
	order    []*Handler

	sepaOrder  []*Handler
	enfoOrder  []*Handler
	checkOrder []*Handler

	origProb  *Prob
	transProb *Prob
}

// Option mutates a Runtime under construction.
type Option func(rt *Runtime) error

func WithLogger(log logrus.FieldLogger) Option {
	return func(rt *Runtime) error {
		if log == nil {
			return errors.New("nil logger")
		}
		rt.log = log
		return nil
	}
}

func WithSettings(set Settings) Option {
	return func(rt *Runtime) error {
		rt.set = set
		return nil
	}
}

// New constructs a Runtime with default settings and a standard logger
// unless overridden by options.
func New(options ...Option) (*Runtime, error) {
	rt := &Runtime{
		log:       logrus.StandardLogger(),
		set:       DefaultSettings(),
		stat:      &Stats{},
		handlers:  map[string]*Handler{},
		origProb:  NewProb("origprob", false),
		transProb: NewProb("transprob", true),
	}
	for _, o := range options {
		if err := o(rt); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func (rt *Runtime) Settings() Settings { return rt.set }
func (rt *Runtime) Stat() *Stats       { return rt.stat }
func (rt *Runtime) OrigProb() *Prob    { return rt.origProb }
func (rt *Runtime) TransProb() *Prob   { return rt.transProb }

// Handlers returns all handlers in registration order.
func (rt *Runtime) Handlers() []*Handler { return rt.order }

func (rt *Runtime) Handler(name string) (*Handler, bool) {
	h, ok := rt.handlers[name]
	return h, ok
}

// Register adds a constraint handler under a unique name and slots it into
// the priority-ordered dispatch lists.
func (rt *Runtime) Register(name, desc string, cfg HandlerConfig, p Plugin) (*Handler, error) {
	if p == nil {
		return nil, errors.Errorf("constraint handler %q has no plugin", name)
	}
	if _, ok := rt.handlers[name]; ok {
		return nil, DuplicateHandler(name)
	}
	h := &Handler{
		name:   name,
		desc:   desc,
		cfg:    cfg,
		plugin: p,
		log:    rt.log.WithField("conshdlr", name),
		rt:     rt,
	}
	for r := role(0); r < numRoles; r++ {
		h.arrays[r] = newConsArray(r)
	}
	rt.handlers[name] = h
	rt.order = append(rt.order, h)
	rt.sepaOrder = insertByPriority(rt.sepaOrder, h, (*Handler).SepaPriority)
	rt.enfoOrder = insertByPriority(rt.enfoOrder, h, (*Handler).EnfoPriority)
	rt.checkOrder = insertByPriority(rt.checkOrder, h, (*Handler).CheckPriority)
	rt.log.WithFields(logrus.Fields{"conshdlr": name, "desc": desc}).Debug("registered constraint handler")
	return h, nil
}

// insertByPriority keeps the list sorted by descending priority, stable
// with respect to registration order.
func insertByPriority(list []*Handler, h *Handler, pri func(*Handler) int) []*Handler {
	i := sort.Search(len(list), func(i int) bool { return pri(list[i]) < pri(h) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = h
	return list
}

// TransformProb creates the transformed copies of all original problem
// constraints and adds them to the transformed problem, activating them.
func (rt *Runtime) TransformProb() error {
	for _, c := range rt.origProb.Conss() {
		tc, err := c.Transform()
		if err != nil {
			return err
		}
		if err := rt.transProb.AddCons(tc); err != nil {
			return err
		}
		if err := tc.Release(); err != nil {
			return err
		}
	}
	return nil
}

// Init notifies every handler that the runtime starts using it.
func (rt *Runtime) Init() error {
	for _, h := range rt.order {
		if err := h.Init(); err != nil {
			return err
		}
	}
	return nil
}

// Exit notifies every handler that the runtime stops using it.
func (rt *Runtime) Exit() error {
	for _, h := range rt.order {
		if err := h.Exit(); err != nil {
			return err
		}
	}
	return nil
}

// Free releases handler-global plugin resources.
func (rt *Runtime) Free() error {
	for _, h := range rt.order {
		if f, ok := h.plugin.(Freer); ok {
			if err := f.Free(); err != nil {
				return errors.Wrapf(err, "freeing constraint handler %q", h.name)
			}
		}
	}
	return nil
}

// InitPresolve enters the presolving phase.
func (rt *Runtime) InitPresolve() error {
	for _, h := range rt.order {
		if err := h.InitPresolve(); err != nil {
			return err
		}
	}
	return nil
}

// ExitPresolve leaves the presolving phase.
func (rt *Runtime) ExitPresolve() error {
	for _, h := range rt.order {
		if err := h.ExitPresolve(); err != nil {
			return err
		}
	}
	return nil
}

// InitSolve enters the branch-and-bound phase.
func (rt *Runtime) InitSolve() error {
	for _, h := range rt.order {
		if err := h.InitSolve(); err != nil {
			return err
		}
	}
	return nil
}

// ExitSolve leaves the branch-and-bound phase.
func (rt *Runtime) ExitSolve() error {
	for _, h := range rt.order {
		if err := h.ExitSolve(); err != nil {
			return err
		}
	}
	return nil
}

// InitLPAll collects initial LP rows from every handler.
func (rt *Runtime) InitLPAll() error {
	for _, h := range rt.enfoOrder {
		if err := h.InitLP(); err != nil {
			return err
		}
	}
	return nil
}

// SeparateAll runs one separation round over all handlers in separation
// priority order, stopping at the first cutoff.
func (rt *Runtime) SeparateAll(depth int) (Result, error) {
	res := DidNotRun
	for _, h := range rt.sepaOrder {
		r, err := h.SeparateLP(depth)
		if err != nil {
			return r, err
		}
		if r == Cutoff {
			return Cutoff, nil
		}
		res = stronger(res, r)
	}
	return res, nil
}

// SeparateSolAll separates a primal solution over all handlers.
func (rt *Runtime) SeparateSolAll(sol Solution, depth int) (Result, error) {
	res := DidNotRun
	for _, h := range rt.sepaOrder {
		r, err := h.SeparateSol(sol, depth)
		if err != nil {
			return r, err
		}
		if r == Cutoff {
			return Cutoff, nil
		}
		res = stronger(res, r)
	}
	return res, nil
}

// EnforceLPAll enforces the current LP solution in enforcement priority
// order. The round stops as soon as a handler resolves the infeasibility
// by cutting off, branching, reducing a domain, separating, or adding a
// constraint.
func (rt *Runtime) EnforceLPAll(solInfeasible bool) (Result, error) {
	res := Feasible
	for _, h := range rt.enfoOrder {
		r, err := h.EnforceLP(solInfeasible)
		if err != nil {
			return r, err
		}
		switch r {
		case Cutoff, Branched, ReducedDom, Separated, ConsAdded:
			return r, nil
		case Infeasible:
			res = Infeasible
			solInfeasible = true
		}
	}
	return res, nil
}

// EnforcePseudoAll enforces the current pseudo solution in enforcement
// priority order.
func (rt *Runtime) EnforcePseudoAll(solInfeasible, objInfeasible bool) (Result, error) {
	res := Feasible
	if objInfeasible {
		res = DidNotRun
	}
	for _, h := range rt.enfoOrder {
		r, err := h.EnforcePseudo(solInfeasible, objInfeasible)
		if err != nil {
			return r, err
		}
		switch r {
		case Cutoff, Branched, ReducedDom, ConsAdded, SolveLP:
			return r, nil
		case Infeasible:
			res = Infeasible
			solInfeasible = true
		case Feasible:
			if res == DidNotRun {
				res = Feasible
			}
		}
	}
	return res, nil
}

// CheckAll tests a candidate solution against every handler in check
// priority order, stopping at the first violation.
func (rt *Runtime) CheckAll(sol Solution, checkIntegrality, checkLPRows bool) (Result, error) {
	for _, h := range rt.checkOrder {
		r, err := h.Check(sol, checkIntegrality, checkLPRows)
		if err != nil {
			return r, err
		}
		if r == Infeasible {
			return Infeasible, nil
		}
	}
	return Feasible, nil
}

// PropagateAll runs one propagation round over all handlers, stopping at
// the first cutoff.
func (rt *Runtime) PropagateAll(depth int) (Result, error) {
	res := DidNotRun
	for _, h := range rt.checkOrder {
		r, err := h.Propagate(depth)
		if err != nil {
			return r, err
		}
		if r == Cutoff {
			return Cutoff, nil
		}
		res = stronger(res, r)
	}
	return res, nil
}

// PresolveAll runs one presolving round over all handlers, stopping when
// one proves the problem infeasible or unbounded.
func (rt *Runtime) PresolveAll(round int) (Result, error) {
	res := DidNotRun
	for _, h := range rt.order {
		r, err := h.Presolve(round)
		if err != nil {
			return r, err
		}
		if r == Cutoff || r == Unbounded {
			return r, nil
		}
		res = stronger(res, r)
	}
	return res, nil
}

// Presolve runs presolving rounds until fixpoint or the round limit,
// returning the final aggregate result.
func (rt *Runtime) Presolve() (Result, error) {
	if err := rt.InitPresolve(); err != nil {
		return DidNotRun, err
	}
	res := DidNotRun
	for round := 0; rt.set.MaxPresolRounds < 0 || round < rt.set.MaxPresolRounds; round++ {
		before := rt.stat.Presolve
		r, err := rt.PresolveAll(round)
		if err != nil {
			return r, err
		}
		if r == Cutoff || r == Unbounded {
			res = r
			break
		}
		res = stronger(res, r)
		if rt.stat.Presolve.Minus(before).Empty() {
			break
		}
	}
	if err := rt.ExitPresolve(); err != nil {
		return res, err
	}
	return res, nil
}

// stronger picks the aggregate outcome of a round loop: stronger outcomes
// displace weaker ones in the value reported to the caller.
func stronger(cur, next Result) Result {
	rank := func(r Result) int {
		switch r {
		case DidNotRun:
			return 0
		case DidNotFind, Feasible:
			return 1
		case Success:
			return 2
		case ReducedDom:
			return 3
		case Separated:
			return 4
		case ConsAdded:
			return 5
		case Branched, SolveLP:
			return 6
		case Infeasible:
			return 7
		case Unbounded:
			return 8
		case Cutoff:
			return 9
		}
		return 0
	}
	if rank(next) > rank(cur) {
		return next
	}
	return cur
}
