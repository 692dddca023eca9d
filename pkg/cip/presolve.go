package cip

import "github.com/pkg/errors"

// Presolve runs the handler's presolving callback for one round. The
// callback sees the reductions other handlers made since its own previous
// call; its returned reductions are folded into the global totals and the
// handler's running totals, and a fresh snapshot is taken so the next call
// sees only newer changes.
func (h *Handler) Presolve(round int) (Result, error) {
	pre, ok := h.plugin.(Presolver)
	if !ok {
		return DidNotRun, nil
	}
	if h.cfg.MaxPresolveRounds >= 0 && h.nPresolCalls >= h.cfg.MaxPresolveRounds {
		return DidNotRun, nil
	}
	if h.cfg.NeedsCons && len(h.conss) == 0 {
		return DidNotRun, nil
	}
	since := h.rt.stat.Presolve.Minus(h.lastPresol)

	h.DelayUpdates()
	made, res, err := pre.Presolve(h.conss, round, since)
	ferr := h.FlushUpdates()
	if err != nil {
		return res, errors.Wrapf(err, "presolving of constraint handler %q failed", h.name)
	}
	if ferr != nil {
		return res, ferr
	}
	if !presolveResults.contains(res) {
		return res, &ContractError{Handler: h.name, Callback: "presolve", Result: res}
	}
	h.nPresolCalls++
	h.rt.stat.Presolve = h.rt.stat.Presolve.Plus(made)
	h.presolTotals = h.presolTotals.Plus(made)
	h.lastPresol = h.rt.stat.Presolve
	return res, nil
}
