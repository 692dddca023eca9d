package cip

import "github.com/pkg/errors"

// Dispatch wrappers. Each protocol follows the same shape: gate on
// frequency and constraint count, pick the slice to pass (everything on
// the first call since a reset, only the constraints added since the
// previous call otherwise), open a delay window around the plugin
// callback, validate the result code against the closed set of the
// callback family, and attribute before/after deltas of the shared
// counters to the handler.

func (h *Handler) depthOK(depth, freq int) bool {
	return (depth == 0 && freq == 0) || (freq > 0 && depth%freq == 0)
}

// sliceFor returns the constraints to hand to the callback. Eager cadence
// forces periodic full passes over the useful and obsolete sets.
func (h *Handler) sliceFor(a *consArray, calls int) ([]*Cons, int) {
	eager := h.cfg.EagerFreq > 0 && calls%h.cfg.EagerFreq == 0
	if a.lastNUseful < 0 || eager {
		return a.conss, a.nUseful
	}
	first := a.lastNUseful
	if first > a.nUseful {
		first = a.nUseful
	}
	return a.conss[first:a.nUseful], a.nUseful - first
}

// SeparateLP runs the handler's LP separation callback for the given
// search depth.
func (h *Handler) SeparateLP(depth int) (Result, error) {
	sep, ok := h.plugin.(Separator)
	if !ok || !h.depthOK(depth, h.cfg.SepaFreq) {
		return DidNotRun, nil
	}
	a := &h.arrays[roleSepa]
	if h.cfg.NeedsCons && a.len() == 0 {
		return DidNotRun, nil
	}
	conss, nUseful := h.sliceFor(a, h.nSepaCalls)
	cutsBefore := h.rt.stat.NCutsFound
	domBefore := h.rt.stat.NDomChgs()

	h.DelayUpdates()
	res, err := sep.SeparateLP(conss, nUseful, depth)
	ferr := h.FlushUpdates()
	a.lastNUseful = a.nUseful
	if err != nil {
		return res, errors.Wrapf(err, "LP separation of constraint handler %q failed", h.name)
	}
	if ferr != nil {
		return res, ferr
	}
	if !separateResults.contains(res) {
		return res, &ContractError{Handler: h.name, Callback: "separatelp", Result: res}
	}
	h.nSepaCalls++
	h.reconcile(res, cutsBefore, domBefore, h.rt.stat.NChildren)
	return res, nil
}

// SeparateSol runs the handler's primal-solution separation callback.
func (h *Handler) SeparateSol(sol Solution, depth int) (Result, error) {
	sep, ok := h.plugin.(Separator)
	if !ok || !h.depthOK(depth, h.cfg.SepaFreq) {
		return DidNotRun, nil
	}
	a := &h.arrays[roleSepa]
	if h.cfg.NeedsCons && a.len() == 0 {
		return DidNotRun, nil
	}
	conss, nUseful := h.sliceFor(a, h.nSepaCalls)
	cutsBefore := h.rt.stat.NCutsFound
	domBefore := h.rt.stat.NDomChgs()

	h.DelayUpdates()
	res, err := sep.SeparateSol(conss, nUseful, sol, depth)
	ferr := h.FlushUpdates()
	a.lastNUseful = a.nUseful
	if err != nil {
		return res, errors.Wrapf(err, "solution separation of constraint handler %q failed", h.name)
	}
	if ferr != nil {
		return res, ferr
	}
	if !separateResults.contains(res) {
		return res, &ContractError{Handler: h.name, Callback: "separatesol", Result: res}
	}
	h.nSepaCalls++
	h.reconcile(res, cutsBefore, domBefore, h.rt.stat.NChildren)
	return res, nil
}

// EnforceLP runs the handler's LP enforcement callback.
func (h *Handler) EnforceLP(solInfeasible bool) (Result, error) {
	a := &h.arrays[roleEnfo]
	if h.cfg.NeedsCons && a.len() == 0 {
		return Feasible, nil
	}
	conss, nUseful := h.sliceFor(a, h.nEnfoLPCalls)
	cutsBefore := h.rt.stat.NCutsFound
	domBefore := h.rt.stat.NDomChgs()
	childrenBefore := h.rt.stat.NChildren

	h.DelayUpdates()
	res, err := h.plugin.EnforceLP(conss, nUseful, solInfeasible)
	ferr := h.FlushUpdates()
	a.lastNUseful = a.nUseful
	if err != nil {
		return res, errors.Wrapf(err, "LP enforcement of constraint handler %q failed", h.name)
	}
	if ferr != nil {
		return res, ferr
	}
	if !enforceLPResults.contains(res) {
		return res, &ContractError{Handler: h.name, Callback: "enforcelp", Result: res}
	}
	h.nEnfoLPCalls++
	h.reconcile(res, cutsBefore, domBefore, childrenBefore)
	return res, nil
}

// EnforcePseudo runs the handler's pseudo-solution enforcement callback.
// Skipping with DidNotRun is legal only for objective-infeasible pseudo
// solutions.
func (h *Handler) EnforcePseudo(solInfeasible, objInfeasible bool) (Result, error) {
	a := &h.arrays[roleEnfo]
	if h.cfg.NeedsCons && a.len() == 0 {
		return Feasible, nil
	}
	conss, nUseful := h.sliceFor(a, h.nEnfoPSCalls)
	cutsBefore := h.rt.stat.NCutsFound
	domBefore := h.rt.stat.NDomChgs()
	childrenBefore := h.rt.stat.NChildren

	h.DelayUpdates()
	res, err := h.plugin.EnforcePseudo(conss, nUseful, solInfeasible, objInfeasible)
	ferr := h.FlushUpdates()
	a.lastNUseful = a.nUseful
	if err != nil {
		return res, errors.Wrapf(err, "pseudo enforcement of constraint handler %q failed", h.name)
	}
	if ferr != nil {
		return res, ferr
	}
	if !enforcePseudoResults.contains(res) || (res == DidNotRun && !objInfeasible) {
		return res, &ContractError{Handler: h.name, Callback: "enforcepseudo", Result: res}
	}
	h.nEnfoPSCalls++
	h.reconcile(res, cutsBefore, domBefore, childrenBefore)
	return res, nil
}

// Check tests a candidate solution against all of the handler's check
// constraints. Feasibility is never judged incrementally: obsolete and
// disabled constraints are included.
func (h *Handler) Check(sol Solution, checkIntegrality, checkLPRows bool) (Result, error) {
	a := &h.arrays[roleCheck]
	if h.cfg.NeedsCons && a.len() == 0 {
		return Feasible, nil
	}

	h.DelayUpdates()
	res, err := h.plugin.Check(a.conss, a.nUseful, sol, checkIntegrality, checkLPRows)
	ferr := h.FlushUpdates()
	if err != nil {
		return res, errors.Wrapf(err, "feasibility check of constraint handler %q failed", h.name)
	}
	if ferr != nil {
		return res, ferr
	}
	if !checkResults.contains(res) {
		return res, &ContractError{Handler: h.name, Callback: "check", Result: res}
	}
	h.nCheckCalls++
	return res, nil
}

// Propagate runs the handler's domain propagation callback for the given
// search depth.
func (h *Handler) Propagate(depth int) (Result, error) {
	prop, ok := h.plugin.(Propagator)
	if !ok || !h.depthOK(depth, h.cfg.PropFreq) {
		return DidNotRun, nil
	}
	a := &h.arrays[roleProp]
	if h.cfg.NeedsCons && a.len() == 0 {
		return DidNotRun, nil
	}
	conss, nUseful := h.sliceFor(a, h.nPropCalls)
	domBefore := h.rt.stat.NDomChgs()

	h.DelayUpdates()
	res, err := prop.Propagate(conss, nUseful, depth)
	ferr := h.FlushUpdates()
	a.lastNUseful = a.nUseful
	if err != nil {
		return res, errors.Wrapf(err, "propagation of constraint handler %q failed", h.name)
	}
	if ferr != nil {
		return res, ferr
	}
	if !propagateResults.contains(res) {
		return res, &ContractError{Handler: h.name, Callback: "propagate", Result: res}
	}
	h.nPropCalls++
	h.reconcile(res, h.rt.stat.NCutsFound, domBefore, h.rt.stat.NChildren)
	return res, nil
}

// InitLP hands the handler's initial constraints to the LP initialization
// callback.
func (h *Handler) InitLP() error {
	ini, ok := h.plugin.(LPInitializer)
	if !ok {
		return nil
	}
	var conss []*Cons
	for _, c := range h.conss {
		if c.initial {
			conss = append(conss, c)
		}
	}
	if h.cfg.NeedsCons && len(conss) == 0 {
		return nil
	}
	h.DelayUpdates()
	err := ini.InitLP(conss)
	ferr := h.FlushUpdates()
	if err != nil {
		return errors.Wrapf(err, "LP initialization of constraint handler %q failed", h.name)
	}
	return ferr
}

// reconcile folds the deltas of the shared counters into the handler's
// statistics.
func (h *Handler) reconcile(res Result, cutsBefore, domBefore, childrenBefore int) {
	h.nCutsFound += h.rt.stat.NCutsFound - cutsBefore
	h.nDomredsFound += h.rt.stat.NDomChgs() - domBefore
	h.nChildren += h.rt.stat.NChildren - childrenBefore
	if res == Cutoff {
		h.nCutoffs++
	}
}

// Init notifies the plugin that the runtime starts using the handler.
func (h *Handler) Init() error {
	h.maxNConss = len(h.conss)
	if ini, ok := h.plugin.(Initializer); ok {
		h.DelayUpdates()
		err := ini.Init(h.conss)
		ferr := h.FlushUpdates()
		if err != nil {
			return errors.Wrapf(err, "initialization of constraint handler %q failed", h.name)
		}
		if ferr != nil {
			return ferr
		}
	}
	h.initialized = true
	return nil
}

// Exit notifies the plugin that the runtime stops using the handler.
func (h *Handler) Exit() error {
	if ini, ok := h.plugin.(Initializer); ok {
		h.DelayUpdates()
		err := ini.Exit(h.conss)
		ferr := h.FlushUpdates()
		if err != nil {
			return errors.Wrapf(err, "deinitialization of constraint handler %q failed", h.name)
		}
		if ferr != nil {
			return ferr
		}
	}
	h.initialized = false
	return nil
}

// InitPresolve enters the presolving phase for this handler.
func (h *Handler) InitPresolve() error {
	h.nPresolCalls = 0
	h.lastPresol = h.rt.stat.Presolve
	if hooks, ok := h.plugin.(PresolveHooks); ok {
		h.DelayUpdates()
		err := hooks.InitPresolve(h.conss)
		ferr := h.FlushUpdates()
		if err != nil {
			return errors.Wrapf(err, "presolve initialization of constraint handler %q failed", h.name)
		}
		return ferr
	}
	return nil
}

// ExitPresolve leaves the presolving phase for this handler.
func (h *Handler) ExitPresolve() error {
	if hooks, ok := h.plugin.(PresolveHooks); ok {
		h.DelayUpdates()
		err := hooks.ExitPresolve(h.conss)
		ferr := h.FlushUpdates()
		if err != nil {
			return errors.Wrapf(err, "presolve deinitialization of constraint handler %q failed", h.name)
		}
		return ferr
	}
	return nil
}

// InitSolve enters the branch-and-bound phase: the incremental markers are
// reset so the first round of each protocol sees everything.
func (h *Handler) InitSolve() error {
	h.startNConss = len(h.conss)
	for r := range h.arrays {
		h.arrays[r].lastNUseful = -1
	}
	if hooks, ok := h.plugin.(SolveHooks); ok {
		h.DelayUpdates()
		err := hooks.InitSolve(h.conss)
		ferr := h.FlushUpdates()
		if err != nil {
			return errors.Wrapf(err, "solve initialization of constraint handler %q failed", h.name)
		}
		return ferr
	}
	return nil
}

// ExitSolve leaves the branch-and-bound phase.
func (h *Handler) ExitSolve() error {
	if hooks, ok := h.plugin.(SolveHooks); ok {
		h.DelayUpdates()
		err := hooks.ExitSolve(h.conss)
		ferr := h.FlushUpdates()
		if err != nil {
			return errors.Wrapf(err, "solve deinitialization of constraint handler %q failed", h.name)
		}
		return ferr
	}
	return nil
}
