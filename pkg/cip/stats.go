package cip

// Stats holds the solver-wide counters shared between the dispatcher and
// all plugins. Plugins bump these directly when they find cuts, tighten
// bounds, or create children; the dispatch wrappers read them before and
// after each callback to attribute the delta to the handler that ran.
type Stats struct {
	NBoundChgs int
	NHoleChgs  int
	NCutsFound int
	NChildren  int

	// Presolve accumulates the reductions of all presolving handlers.
	Presolve PresolveDeltas
}

// NDomChgs returns the combined number of domain changes.
func (s *Stats) NDomChgs() int {
	return s.NBoundChgs + s.NHoleChgs
}

// PresolveDeltas counts the reductions made during presolving. The
// dispatcher hands each presolving callback the deltas accumulated by other
// handlers since its own previous call, and folds the callback's returned
// deltas into the global totals.
type PresolveDeltas struct {
	NFixedVars   int
	NAggrVars    int
	NChgVarTypes int
	NChgBds      int
	NAddHoles    int
	NDelConss    int
	NUpgdConss   int
	NChgCoefs    int
	NChgSides    int
}

func (d PresolveDeltas) Plus(o PresolveDeltas) PresolveDeltas {
	return PresolveDeltas{
		NFixedVars:   d.NFixedVars + o.NFixedVars,
		NAggrVars:    d.NAggrVars + o.NAggrVars,
		NChgVarTypes: d.NChgVarTypes + o.NChgVarTypes,
		NChgBds:      d.NChgBds + o.NChgBds,
		NAddHoles:    d.NAddHoles + o.NAddHoles,
		NDelConss:    d.NDelConss + o.NDelConss,
		NUpgdConss:   d.NUpgdConss + o.NUpgdConss,
		NChgCoefs:    d.NChgCoefs + o.NChgCoefs,
		NChgSides:    d.NChgSides + o.NChgSides,
	}
}

func (d PresolveDeltas) Minus(o PresolveDeltas) PresolveDeltas {
	return PresolveDeltas{
		NFixedVars:   d.NFixedVars - o.NFixedVars,
		NAggrVars:    d.NAggrVars - o.NAggrVars,
		NChgVarTypes: d.NChgVarTypes - o.NChgVarTypes,
		NChgBds:      d.NChgBds - o.NChgBds,
		NAddHoles:    d.NAddHoles - o.NAddHoles,
		NDelConss:    d.NDelConss - o.NDelConss,
		NUpgdConss:   d.NUpgdConss - o.NUpgdConss,
		NChgCoefs:    d.NChgCoefs - o.NChgCoefs,
		NChgSides:    d.NChgSides - o.NChgSides,
	}
}

// Empty reports whether no reduction is recorded.
func (d PresolveDeltas) Empty() bool {
	return d == PresolveDeltas{}
}
