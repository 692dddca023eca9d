package cip

import "fmt"

// Result is the outcome a plugin callback reports back to the dispatcher.
// Each callback family documents the subset of values it may return;
// anything outside that subset is a contract violation, not a recoverable
// condition.
type Result int

const (
	// DidNotRun indicates the callback was skipped entirely.
	DidNotRun Result = iota
	// DidNotFind indicates the callback searched but found nothing.
	DidNotFind
	// Feasible indicates all given constraints are satisfied.
	Feasible
	// Infeasible indicates at least one given constraint is violated.
	Infeasible
	// Cutoff indicates the current node was proven infeasible and must be
	// pruned.
	Cutoff
	// Separated indicates a cutting plane was added.
	Separated
	// ReducedDom indicates at least one variable domain was tightened.
	ReducedDom
	// ConsAdded indicates an additional constraint was generated.
	ConsAdded
	// Branched indicates the callback created child nodes.
	Branched
	// SolveLP indicates the pseudo solution cannot be resolved without
	// solving the node's LP relaxation.
	SolveLP
	// Success indicates a presolver found at least one reduction.
	Success
	// Unbounded indicates a presolver proved the problem unbounded.
	Unbounded
)

var resultNames = map[Result]string{
	DidNotRun:  "didnotrun",
	DidNotFind: "didnotfind",
	Feasible:   "feasible",
	Infeasible: "infeasible",
	Cutoff:     "cutoff",
	Separated:  "separated",
	ReducedDom: "reduceddom",
	ConsAdded:  "consadded",
	Branched:   "branched",
	SolveLP:    "solvelp",
	Success:    "success",
	Unbounded:  "unbounded",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// resultSet is a bitmask over Result values, used to validate callback
// return codes per family.
type resultSet uint32

func results(rs ...Result) resultSet {
	var s resultSet
	for _, r := range rs {
		s |= 1 << uint(r)
	}
	return s
}

func (s resultSet) contains(r Result) bool {
	return r >= 0 && int(r) < 32 && s&(1<<uint(r)) != 0
}

var (
	separateResults      = results(Cutoff, Separated, ReducedDom, ConsAdded, DidNotFind, DidNotRun)
	enforceLPResults     = results(Cutoff, Branched, ReducedDom, Separated, ConsAdded, Infeasible, Feasible)
	enforcePseudoResults = results(DidNotRun, Cutoff, Branched, ReducedDom, ConsAdded, SolveLP, Infeasible, Feasible)
	checkResults         = results(Feasible, Infeasible)
	propagateResults     = results(Cutoff, ReducedDom, DidNotFind, DidNotRun)
	presolveResults      = results(Cutoff, Unbounded, Success, DidNotFind, DidNotRun)
)
